package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseColumns(t *testing.T) {
	testCases := []struct {
		name     string
		expr     string
		expected []Column
	}{
		{
			name:     "star",
			expr:     "*",
			expected: []Column{{Star: true}},
		},
		{
			name:     "bare names",
			expr:     "id, login, created_at",
			expected: []Column{{Name: "id"}, {Name: "login"}, {Name: "created_at"}},
		},
		{
			name:     "decrypt projection",
			expr:     "DECRYPT(api_key)",
			expected: []Column{{Name: "api_key", Decrypt: true}},
		},
		{
			name: "star with decrypt override",
			expr: "*, DECRYPT(api_key)",
			expected: []Column{
				{Star: true},
				{Name: "api_key", Decrypt: true},
			},
		},
		{
			name:     "whitespace and empty items",
			expr:     " id ,, DECRYPT( api_key ) ",
			expected: []Column{{Name: "id"}, {Name: "api_key", Decrypt: true}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ParseColumns(tc.expr))
		})
	}
}

func TestDecrypt(t *testing.T) {
	assert.Equal(t, "DECRYPT(api_key)", Decrypt("api_key"))

	cols := ParseColumns(Decrypt("api_key"))
	assert.Len(t, cols, 1)
	assert.True(t, cols[0].Decrypt)
	assert.Equal(t, "api_key", cols[0].Name)
}

func TestLooseEqual(t *testing.T) {
	testCases := []struct {
		name string
		a, b any
		want bool
	}{
		{"both nil", nil, nil, true},
		{"nil vs value", nil, 0, false},
		{"same int widths", int(7), int(7), true},
		{"int vs int64", int(7), int64(7), true},
		{"int vs float64", int(7), float64(7), true},
		{"different numbers", int64(7), int64(8), false},
		{"string vs same string", "go", "go", true},
		{"string vs bytes", "go", []byte("go"), true},
		{"string never coerces to number", "7", int64(7), false},
		{"bools", true, true, true},
		{"bool mismatch", true, false, false},
		{"slices deep equal", []any{"a", "b"}, []any{"a", "b"}, true},
		{"slices differ", []any{"a"}, []any{"b"}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, LooseEqual(tc.a, tc.b))
		})
	}
}
