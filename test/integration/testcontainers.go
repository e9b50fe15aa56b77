package integration

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/cadogan/recmap/db"
	"github.com/cadogan/recmap/pkg/entity"
	gormexec "github.com/cadogan/recmap/pkg/executor/gorm"
)

// testKey is the pgcrypto passphrase used for encrypted fields.
const testKey = "integration-test-key"

// The schema the integration tests run against. Writers publish
// articles and articles share labels through a join table.
var (
	itWriter  *entity.Type
	itArticle *entity.Type
	itLabel   *entity.Type
)

func init() {
	itWriter = &entity.Type{
		Name:      "Writer",
		Table:     "writers",
		Encrypted: []string{"api_key"},
		Encoded:   []string{"scopes"},
		Order:     "id",
	}
	itArticle = &entity.Type{
		Name:         "Article",
		Table:        "articles",
		SearchFields: []string{"title", "body"},
		Order:        "id",
	}
	itLabel = &entity.Type{
		Name:  "Label",
		Table: "labels",
		Order: "id",
	}

	itWriter.Relations = map[string]entity.Relation{
		"articles": entity.OwnedMany(itArticle, "writer_id"),
	}
	itArticle.Relations = map[string]entity.Relation{
		"writer": entity.Direct(itWriter, "writer_id"),
		"labels": entity.Through(itLabel, "article_labels", "article_id", "label_id"),
	}

	entity.Define(itWriter)
	entity.Define(itArticle)
	entity.Define(itLabel)
}

// schemaSQL creates the tables the fixture types map onto. The unique
// constraints back the conflict and idempotent-membership tests.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS writers (
    id BIGSERIAL PRIMARY KEY,
    pen_name TEXT,
    api_key BYTEA,
    scopes TEXT
);
CREATE UNIQUE INDEX IF NOT EXISTS writers_pen_name ON writers (pen_name);

CREATE TABLE IF NOT EXISTS articles (
    id BIGSERIAL PRIMARY KEY,
    title TEXT,
    body TEXT,
    writer_id BIGINT
);

CREATE TABLE IF NOT EXISTS labels (
    id BIGSERIAL PRIMARY KEY,
    name TEXT
);

CREATE TABLE IF NOT EXISTS article_labels (
    id BIGSERIAL PRIMARY KEY,
    article_id BIGINT,
    label_id BIGINT
);
CREATE UNIQUE INDEX IF NOT EXISTS article_labels_pair ON article_labels (article_id, label_id);
`

// TestContext holds the resources shared by the integration tests.
type TestContext struct {
	Container   testcontainers.Container
	Exec        *gormexec.Executor
	RawDB       *sql.DB
	DatabaseURL string
}

// NewTestContext starts a PostgreSQL testcontainer, applies the engine
// migrations plus the fixture schema, and opens the executor under
// test against it.
func NewTestContext(ctx context.Context) (*TestContext, error) {
	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("recmap_test"),
		tcpostgres.WithUsername("recmap"),
		tcpostgres.WithPassword("recmap"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	host, err := pgContainer.Host(ctx)
	if err != nil {
		_ = pgContainer.Terminate(ctx)
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}
	port, err := pgContainer.MappedPort(ctx, "5432")
	if err != nil {
		_ = pgContainer.Terminate(ctx)
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}
	connStr := fmt.Sprintf("postgres://recmap:recmap@%s:%s/recmap_test?sslmode=disable", host, port.Port())

	rawDB, err := sql.Open("postgres", connStr)
	if err != nil {
		_ = pgContainer.Terminate(ctx)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := runMigrations(rawDB); err != nil {
		_ = rawDB.Close()
		_ = pgContainer.Terminate(ctx)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	if _, err := rawDB.Exec(schemaSQL); err != nil {
		_ = rawDB.Close()
		_ = pgContainer.Terminate(ctx)
		return nil, fmt.Errorf("failed to create fixture schema: %w", err)
	}

	exec, err := gormexec.Open(gormexec.Config{URL: connStr, Key: testKey})
	if err != nil {
		_ = rawDB.Close()
		_ = pgContainer.Terminate(ctx)
		return nil, fmt.Errorf("failed to open executor: %w", err)
	}

	return &TestContext{
		Container:   pgContainer,
		Exec:        exec,
		RawDB:       rawDB,
		DatabaseURL: connStr,
	}, nil
}

// runMigrations applies the embedded engine migrations in order.
func runMigrations(rawDB *sql.DB) error {
	var files []string
	err := fs.WalkDir(db.Migrations, "migrations", func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !d.IsDir() && strings.HasSuffix(path, ".up.sql") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return err
	}
	sort.Strings(files)

	for _, file := range files {
		content, err := fs.ReadFile(db.Migrations, file)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", file, err)
		}
		if _, err := rawDB.Exec(string(content)); err != nil {
			return fmt.Errorf("migration %s failed: %w", file, err)
		}
	}
	return nil
}

// Truncate clears the given tables between tests.
func (tc *TestContext) Truncate(tables ...string) error {
	for _, table := range tables {
		if _, err := tc.RawDB.Exec("TRUNCATE TABLE " + table + " RESTART IDENTITY"); err != nil {
			return fmt.Errorf("failed to truncate %s: %w", table, err)
		}
	}
	return nil
}

// Close cleans up all test resources.
func (tc *TestContext) Close(ctx context.Context) {
	if tc.RawDB != nil {
		_ = tc.RawDB.Close()
	}
	if tc.Container != nil {
		_ = tc.Container.Terminate(ctx)
	}
}
