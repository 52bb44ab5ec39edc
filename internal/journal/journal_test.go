package journal

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/danuarif/duitbot/pkg/api"
	"github.com/danuarif/duitbot/pkg/config"
)

func TestOpenDisabledWhenHostEmpty(t *testing.T) {
	j, err := Open(context.Background(), config.PostgresConfig{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if j != nil {
		t.Fatal("expected nil journal when host is empty")
	}
}

func TestNilJournalIsSafe(t *testing.T) {
	var j *Journal
	// Must not panic.
	j.Record(context.Background(), "42", "telegram", &api.Transaction{Title: "Kabel", Amount: 60471})
	j.Close()
}

func TestOpenConnectionFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg := config.PostgresConfig{
		Host:     "nonexistent-host",
		Database: "duitbot",
		User:     "duitbot",
		Password: "password",
	}

	_, err := Open(ctx, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err == nil {
		t.Error("expected error when connecting to nonexistent host, got nil")
	}
}

func TestRecordRoundTrip(t *testing.T) {
	if os.Getenv("TEST_POSTGRES_HOST") == "" {
		t.Skip("TEST_POSTGRES_HOST not set, skipping integration test")
	}

	cfg := config.PostgresConfig{
		Host:     os.Getenv("TEST_POSTGRES_HOST"),
		Database: os.Getenv("TEST_POSTGRES_DB"),
		User:     os.Getenv("TEST_POSTGRES_USER"),
		Password: os.Getenv("TEST_POSTGRES_PASSWORD"),
	}

	ctx := context.Background()
	j, err := Open(ctx, cfg, slog.New(slog.NewTextHandler(os.Stdout, nil)))
	if err != nil {
		t.Fatalf("failed to open journal: %v", err)
	}
	defer j.Close()

	j.Record(ctx, "42", "telegram", &api.Transaction{
		Title:    "Kabel Data USB-C",
		Amount:   60471,
		Account:  "SeaBank",
		Category: "Shopee",
		Date:     "15/01/2026",
		Time:     "09:41:00",
	})

	var count int
	err = j.pool.QueryRow(ctx, `SELECT COUNT(*) FROM journal_entries WHERE user_id = $1`, "42").Scan(&count)
	if err != nil {
		t.Fatalf("counting journal entries: %v", err)
	}
	if count == 0 {
		t.Error("expected at least one journal entry for user 42")
	}
}
