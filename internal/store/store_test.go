package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/andresmejia3/moodlens/internal/emotion"
	"github.com/andresmejia3/moodlens/internal/suggest"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestStoreIntegration runs a full integration test against a real Postgres container.
// It requires Docker to be running.
func TestStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	// Explicitly check for Docker availability and fail hard if missing
	// We wrap this in a function to recover from panics inside testcontainers (e.g. socket not found)
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("testcontainers panicked: %v", r)
			}
		}()
		_, err = testcontainers.NewDockerClientWithOpts(ctx)
		return
	}()
	if err != nil {
		t.Fatalf("Docker not available, cannot run integration test: %v", err)
	}

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("moodlens_test"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
		testcontainers.WithLogger(noopLogger{}),
	)
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Fatalf("Failed to terminate container: %v", err)
		}
	}()

	// Get Connection String
	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}

	// Initialize Store (runs migrations)
	s, err := New(ctx, connStr)
	if err != nil {
		t.Fatalf("Failed to connect to store: %v", err)
	}
	defer s.Close(ctx)

	// --- Test Scenarios ---

	// Empty table
	if _, err := s.LoadCatalog(ctx); !errors.Is(err, ErrEmptyCatalog) {
		t.Fatalf("Expected ErrEmptyCatalog, got %v", err)
	}

	// Round trip keeps per-emotion order
	want, err := suggest.NewCatalog(map[emotion.Label][]suggest.Entry{
		emotion.Happy: {
			{URL: "https://a.example", Description: "first"},
			{URL: "https://b.example", Description: "second"},
			{URL: "https://c.example", Description: "third"},
		},
		emotion.Neutral: {
			{URL: "https://n.example", Description: "calm"},
		},
	})
	if err != nil {
		t.Fatalf("NewCatalog failed: %v", err)
	}
	n, err := s.ReplaceCatalog(ctx, want)
	if err != nil {
		t.Fatalf("ReplaceCatalog failed: %v", err)
	}
	if n != 4 {
		t.Errorf("Expected 4 rows written, got %d", n)
	}

	got, err := s.LoadCatalog(ctx)
	if err != nil {
		t.Fatalf("LoadCatalog failed: %v", err)
	}
	happy, ok := got.Lookup(emotion.Happy)
	if !ok || len(happy) != 3 {
		t.Fatalf("Expected 3 happy entries, got %v", happy)
	}
	for i, u := range []string{"https://a.example", "https://b.example", "https://c.example"} {
		if happy[i].URL != u {
			t.Errorf("Entry %d: expected %s, got %s", i, u, happy[i].URL)
		}
	}
	if _, ok := got.Lookup(emotion.Sad); ok {
		t.Error("Expected no sad entries")
	}

	// Replacing swaps the whole table
	smaller, _ := suggest.NewCatalog(map[emotion.Label][]suggest.Entry{
		emotion.Neutral: {{URL: "https://only.example", Description: "only"}},
	})
	if _, err := s.ReplaceCatalog(ctx, smaller); err != nil {
		t.Fatalf("ReplaceCatalog failed: %v", err)
	}
	got, err = s.LoadCatalog(ctx)
	if err != nil {
		t.Fatalf("LoadCatalog failed: %v", err)
	}
	if got.Len() != 1 {
		t.Errorf("Expected 1 entry after replace, got %d", got.Len())
	}

	// Reset drops the table; reconnecting recreates it empty
	if err := s.Reset(ctx); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	s2, err := New(ctx, connStr)
	if err != nil {
		t.Fatalf("Failed to reconnect: %v", err)
	}
	defer s2.Close(ctx)
	if _, err := s2.LoadCatalog(ctx); !errors.Is(err, ErrEmptyCatalog) {
		t.Errorf("Expected ErrEmptyCatalog after reset, got %v", err)
	}
}

type noopLogger struct{}

func (n noopLogger) Printf(format string, v ...interface{}) {}
