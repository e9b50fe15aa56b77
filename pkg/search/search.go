package search

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/cadogan/recmap/pkg/executor"
)

// Table is the backing table of the index. One row per indexed
// entity, keyed by the source table name and the entity identifier.
const Table = "search_index"

// Tokenizer splits source text into index terms.
type Tokenizer func(text string) []string

// Tokenize is the default tokenizer. Terms are lowercased runs of
// letters and digits; the first occurrence of a term wins, so the
// stored content never repeats itself.
func Tokenize(text string) []string {
	var terms []string
	seen := make(map[string]bool)
	var b strings.Builder
	flush := func() {
		if b.Len() == 0 {
			return
		}
		term := b.String()
		b.Reset()
		if !seen[term] {
			seen[term] = true
			terms = append(terms, term)
		}
	}
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		flush()
	}
	flush()
	return terms
}

// Index maintains per-entity search terms.
type Index struct {
	exec      executor.Executor
	tokenizer Tokenizer
}

// New returns an index writing through exec. A nil tokenizer selects
// Tokenize.
func New(exec executor.Executor, tokenizer Tokenizer) *Index {
	if tokenizer == nil {
		tokenizer = Tokenize
	}
	return &Index{exec: exec, tokenizer: tokenizer}
}

// Refresh replaces the indexed terms for one entity. A source that
// tokenizes to nothing clears the entry instead of storing an empty
// one.
func (i *Index) Refresh(table string, id any, source string) error {
	if err := i.Remove(table, id); err != nil {
		return err
	}
	terms := i.tokenizer(source)
	if len(terms) == 0 {
		return nil
	}
	key := fmt.Sprint(id)
	row := executor.Row{
		"entity_table": table,
		"entity_id":    key,
		"content":      strings.Join(terms, " "),
	}
	i.exec.Reset()
	if _, err := i.exec.InsertIgnore(Table, row); err != nil {
		return fmt.Errorf("failed to index %s/%s: %w", table, key, err)
	}
	return nil
}

// Remove drops the indexed terms for one entity.
func (i *Index) Remove(table string, id any) error {
	key := fmt.Sprint(id)
	i.exec.Reset()
	_, err := i.exec.
		Where("entity_table", table, executor.OpEq, executor.ConjAnd).
		Where("entity_id", key, executor.OpEq, executor.ConjAnd).
		Delete(Table)
	if err != nil {
		return fmt.Errorf("failed to clear search terms for %s/%s: %w", table, key, err)
	}
	return nil
}

// Lookup returns the identifiers of entities under table whose
// indexed terms contain term. Matching is exact on whole terms after
// the same normalization Tokenize applies.
func (i *Index) Lookup(table, term string) ([]string, error) {
	needles := Tokenize(term)
	if len(needles) != 1 {
		return nil, nil
	}
	needle := needles[0]

	i.exec.Reset()
	rows, err := i.exec.
		Where("entity_table", table, executor.OpEq, executor.ConjAnd).
		FetchMany(Table, "entity_id", "entity_id, content")
	if err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", table, err)
	}

	var ids []string
	for _, row := range rows {
		for _, have := range strings.Fields(text(row["content"])) {
			if have == needle {
				ids = append(ids, text(row["entity_id"]))
				break
			}
		}
	}
	return ids, nil
}

func text(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}
