package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/andresmejia3/moodlens/internal/emotion"
	"github.com/andresmejia3/moodlens/internal/suggest"
	"github.com/jackc/pgx/v5"
)

// ErrEmptyCatalog is returned when the suggestion table holds no rows.
var ErrEmptyCatalog = errors.New("no suggestion catalog stored")

// Store manages the PostgreSQL connection holding the suggestion catalog.
type Store struct {
	conn *pgx.Conn
}

// New establishes a connection to the database and ensures the schema is initialized.
func New(ctx context.Context, connString string) (*Store, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, err
	}

	// Initialize schema (Auto-Migration)
	if err := initSchema(ctx, conn); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return &Store{conn: conn}, nil
}

// initSchema creates the catalog table if it doesn't exist (Auto-Migration).
func initSchema(ctx context.Context, conn *pgx.Conn) error {
	query := `
		CREATE TABLE IF NOT EXISTS suggestion_entries (
			id BIGSERIAL PRIMARY KEY,
			emotion TEXT NOT NULL,
			position INT NOT NULL,
			url TEXT NOT NULL,
			description TEXT NOT NULL,
			UNIQUE (emotion, position)
		);
		CREATE INDEX IF NOT EXISTS suggestion_entries_emotion_idx ON suggestion_entries (emotion);
	`
	_, err := conn.Exec(ctx, query)
	return err
}

// Close terminates the database connection.
func (s *Store) Close(ctx context.Context) {
	s.conn.Close(ctx)
}

// LoadCatalog reads every stored entry and validates it as a catalog.
func (s *Store) LoadCatalog(ctx context.Context) (*suggest.Catalog, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT emotion, url, description
		FROM suggestion_entries
		ORDER BY emotion, position
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make(map[emotion.Label][]suggest.Entry)
	n := 0
	for rows.Next() {
		var name string
		var e suggest.Entry
		if err := rows.Scan(&name, &e.URL, &e.Description); err != nil {
			return nil, err
		}
		l := emotion.Label(name)
		entries[l] = append(entries[l], e)
		n++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrEmptyCatalog
	}
	return suggest.NewCatalog(entries)
}

// ReplaceCatalog swaps the stored catalog for c in a single transaction.
// It returns the number of rows written.
func (s *Store) ReplaceCatalog(ctx context.Context, c *suggest.Catalog) (int64, error) {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	// 1. Clear the old catalog
	if _, err := tx.Exec(ctx, "DELETE FROM suggestion_entries"); err != nil {
		return 0, err
	}

	// 2. Bulk insert, preserving list order per emotion
	var rows [][]any
	for _, l := range c.Labels() {
		list, _ := c.Lookup(l)
		for i, e := range list {
			rows = append(rows, []any{string(l), i, e.URL, e.Description})
		}
	}
	n, err := tx.CopyFrom(ctx,
		pgx.Identifier{"suggestion_entries"},
		[]string{"emotion", "position", "url", "description"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return 0, err
	}

	return n, tx.Commit(ctx)
}

// Reset drops all application tables to clear the database state.
// This is useful for development to force a schema refresh without migrations.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.conn.Exec(ctx, `
		DROP TABLE IF EXISTS suggestion_entries CASCADE;
	`)
	return err
}
