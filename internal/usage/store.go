package usage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Writer persists Token Usage Records. Failure here is always best-effort:
// callers log and continue rather than failing the in-flight request.
type Writer interface {
	Write(ctx context.Context, rec Record) error
}

// Reader loads recorded Token Usage Records, for retention sweeps and
// offline aggregation.
type Reader interface {
	List(ctx context.Context, q Query) ([]Record, error)
	// PruneOlderThan deletes records whose timestamp is before cutoff,
	// implementing the DataRetentionPeriod sweep.
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Query filters a token usage listing.
type Query struct {
	ModelID  string
	UserID   string
	Provider string
	Since    *time.Time
	Limit    int
}

// NoopWriter discards every record. Used when TokenUsage.StorageProvider is
// "none" or "memory" without a backing aggregate.
type NoopWriter struct{}

// Write implements Writer.
func (NoopWriter) Write(_ context.Context, _ Record) error { return nil }

// SQLStore persists Token Usage Records to SQLite or Postgres, generalizing
// the request-log store's dual-dialect pattern to the Token Usage table.
type SQLStore struct {
	db      *sql.DB
	dialect string
}

// NewSQLiteStore opens (creating if necessary) a SQLite-backed token usage
// store at path.
func NewSQLiteStore(path string) (*SQLStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = "llmgw-token-usage.db"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite token usage store: %w", err)
	}
	s := &SQLStore{db: db, dialect: "sqlite"}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresStore opens a Postgres-backed token usage store.
func NewPostgresStore(dsn string) (*SQLStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres token usage store: %w", err)
	}
	s := &SQLStore{db: db, dialect: "postgres"}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) init() error {
	if err := s.db.Ping(); err != nil {
		return fmt.Errorf("ping %s token usage store: %w", s.dialect, err)
	}

	ddl := `
CREATE TABLE IF NOT EXISTS token_usage (
	id INTEGER PRIMARY KEY,
	user_id TEXT,
	model_id TEXT NOT NULL,
	provider_name TEXT NOT NULL,
	prompt_tokens INTEGER NOT NULL,
	completion_tokens INTEGER NOT NULL,
	request_type TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);`
	if s.dialect == "postgres" {
		ddl = `
CREATE TABLE IF NOT EXISTS token_usage (
	id BIGSERIAL PRIMARY KEY,
	user_id TEXT,
	model_id TEXT NOT NULL,
	provider_name TEXT NOT NULL,
	prompt_tokens INTEGER NOT NULL,
	completion_tokens INTEGER NOT NULL,
	request_type TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);`
	}
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("initialize token usage schema: %w", err)
	}
	return nil
}

// Write implements Writer.
func (s *SQLStore) Write(ctx context.Context, rec Record) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	query := `INSERT INTO token_usage(user_id, model_id, provider_name, prompt_tokens, completion_tokens, request_type, created_at)
	VALUES(?, ?, ?, ?, ?, ?, ?)`
	if s.dialect == "postgres" {
		query = bindPostgres(query)
	}
	_, err := s.db.ExecContext(ctx, query,
		rec.UserID, rec.ModelID, rec.ProviderName, rec.PromptTokens, rec.CompletionTokens,
		string(rec.RequestType), rec.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("write token usage record: %w", err)
	}
	return nil
}

// List implements Reader.
func (s *SQLStore) List(ctx context.Context, q Query) ([]Record, error) {
	var (
		where []string
		args  []interface{}
	)
	if q.ModelID != "" {
		where = append(where, "model_id = ?")
		args = append(args, q.ModelID)
	}
	if q.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, q.UserID)
	}
	if q.Provider != "" {
		where = append(where, "provider_name = ?")
		args = append(args, q.Provider)
	}
	if q.Since != nil {
		where = append(where, "created_at >= ?")
		args = append(args, q.Since.UTC())
	}
	whereSQL := ""
	if len(where) > 0 {
		whereSQL = " WHERE " + strings.Join(where, " AND ")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}

	query := fmt.Sprintf("SELECT user_id, model_id, provider_name, prompt_tokens, completion_tokens, request_type, created_at FROM token_usage%s ORDER BY created_at DESC LIMIT ?", whereSQL)
	args = append(args, limit)
	if s.dialect == "postgres" {
		query = bindPostgres(query)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list token usage: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			r        Record
			userID   sql.NullString
			reqType  string
		)
		if err := rows.Scan(&userID, &r.ModelID, &r.ProviderName, &r.PromptTokens, &r.CompletionTokens, &reqType, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("scan token usage row: %w", err)
		}
		if userID.Valid {
			r.UserID = userID.String
		}
		r.RequestType = RequestType(reqType)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate token usage rows: %w", err)
	}
	return records, nil
}

// PruneOlderThan implements Reader, deleting records older than cutoff —
// the retention sweep described for TokenUsage.DataRetentionPeriod.
func (s *SQLStore) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := "DELETE FROM token_usage WHERE created_at < ?"
	if s.dialect == "postgres" {
		query = bindPostgres(query)
	}
	res, err := s.db.ExecContext(ctx, query, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune token usage: %w", err)
	}
	return res.RowsAffected()
}

// Close releases the underlying database handle.
func (s *SQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func bindPostgres(query string) string {
	var b strings.Builder
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			fmt.Fprintf(&b, "$%d", n)
			n++
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}
