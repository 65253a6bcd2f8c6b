package usage

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestSQLStore_WriteAndList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.db")
	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("new sqlite store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	now := time.Now().UTC()
	records := []Record{
		{UserID: "u1", ModelID: "openai.gpt-4o", ProviderName: "openai", PromptTokens: 10, CompletionTokens: 5, RequestType: RequestTypeCompletion, Timestamp: now.Add(-time.Hour)},
		{UserID: "u1", ModelID: "openai.gpt-4o", ProviderName: "openai", PromptTokens: 20, CompletionTokens: 8, RequestType: RequestTypeStreamingCompletion, Timestamp: now},
		{UserID: "u2", ModelID: "anthropic.claude-3-haiku", ProviderName: "anthropic", PromptTokens: 4, CompletionTokens: 0, RequestType: RequestTypeEmbedding, Timestamp: now},
	}
	for _, r := range records {
		if err := s.Write(context.Background(), r); err != nil {
			t.Fatalf("write record: %v", err)
		}
	}

	all, err := s.List(context.Background(), Query{Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 records, got %d", len(all))
	}

	filtered, err := s.List(context.Background(), Query{ModelID: "openai.gpt-4o"})
	if err != nil {
		t.Fatalf("list filtered: %v", err)
	}
	if len(filtered) != 2 {
		t.Errorf("expected 2 records for openai.gpt-4o, got %d", len(filtered))
	}
}

func TestSQLStore_PruneOlderThan(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage-prune.db")
	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("new sqlite store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	now := time.Now().UTC()
	_ = s.Write(context.Background(), Record{ModelID: "m1", ProviderName: "p1", Timestamp: now.Add(-48 * time.Hour)})
	_ = s.Write(context.Background(), Record{ModelID: "m1", ProviderName: "p1", Timestamp: now})

	n, err := s.PruneOlderThan(context.Background(), now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 pruned record, got %d", n)
	}

	remaining, err := s.List(context.Background(), Query{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(remaining) != 1 {
		t.Errorf("expected 1 remaining record, got %d", len(remaining))
	}
}

func TestNewPostgresStore_RequiresDSN(t *testing.T) {
	if _, err := NewPostgresStore(""); err == nil {
		t.Error("expected error for empty postgres dsn")
	}
}
