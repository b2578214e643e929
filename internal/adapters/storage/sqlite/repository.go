package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mparedes/chatstore/internal/domain"
	"github.com/mparedes/chatstore/internal/observability"
)

// Repository stores conversations in a local SQLite database, one row per
// (pk, sk) with the conversation as a JSON column. Expired rows are
// filtered on read.
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the database at path, ensuring the parent
// directory exists and the schema is in place.
func Open(path string) (*Repository, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening db at %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging db at %s: %w", path, err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS conversations (
			pk TEXT NOT NULL,
			sk TEXT NOT NULL,
			conversation TEXT NOT NULL,
			expires_at INTEGER,
			PRIMARY KEY (pk, sk)
		);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Repository{db: db, now: time.Now}, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) Get(ctx context.Context, primary, secondary string) ([]domain.Record, error) {
	var payload string
	err := r.db.QueryRowContext(ctx, `
		SELECT conversation FROM conversations
		WHERE pk = ? AND sk = ? AND (expires_at IS NULL OR expires_at > ?)`,
		primary, secondary, r.now().Unix(),
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite get: %v: %w", err, domain.ErrStoreUnavailable)
	}

	var conversation []domain.Record
	if err := json.Unmarshal([]byte(payload), &conversation); err != nil {
		return nil, fmt.Errorf("sqlite get decode: %v: %w", err, domain.ErrMalformedRecord)
	}
	return conversation, nil
}

func (r *Repository) Put(ctx context.Context, primary, secondary string, conversation []domain.Record, expiresAt time.Time) error {
	payload, err := json.Marshal(conversation)
	if err != nil {
		return fmt.Errorf("sqlite put encode: %v: %w", err, domain.ErrMalformedRecord)
	}

	var expiry sql.NullInt64
	if !expiresAt.IsZero() {
		expiry = sql.NullInt64{Int64: expiresAt.Unix(), Valid: true}
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO conversations (pk, sk, conversation, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (pk, sk) DO UPDATE SET
			conversation = excluded.conversation,
			expires_at = excluded.expires_at`,
		primary, secondary, string(payload), expiry,
	)
	if err != nil {
		return fmt.Errorf("sqlite put: %v: %w", err, domain.ErrStoreUnavailable)
	}
	return nil
}

func (r *Repository) QueryByPrefix(ctx context.Context, primary, secondaryPrefix string) ([]domain.Item, error) {
	query := `
		SELECT sk, conversation FROM conversations
		WHERE pk = ? AND sk >= ? AND (expires_at IS NULL OR expires_at > ?)`
	args := []any{primary, secondaryPrefix, r.now().Unix()}

	if upper := prefixUpperBound(secondaryPrefix); upper != "" {
		query += ` AND sk < ?`
		args = append(args, upper)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite query: %v: %w", err, domain.ErrStoreUnavailable)
	}
	defer rows.Close()

	var out []domain.Item
	for rows.Next() {
		var sk, payload string
		if err := rows.Scan(&sk, &payload); err != nil {
			return nil, fmt.Errorf("sqlite query scan: %v: %w", err, domain.ErrStoreUnavailable)
		}

		var conversation []domain.Record
		if err := json.Unmarshal([]byte(payload), &conversation); err != nil {
			observability.Logger().Error("skipping item with unexpected structure",
				"secondary_key", sk,
				"error", err)
			continue
		}
		out = append(out, domain.Item{Secondary: sk, Conversation: conversation})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite query: %v: %w", err, domain.ErrStoreUnavailable)
	}
	return out, nil
}

// prefixUpperBound returns the smallest string greater than every string
// with the given prefix, for a half-open [prefix, upper) range scan.
// Empty means unbounded (prefix was empty or all 0xff bytes).
func prefixUpperBound(prefix string) string {
	b := []byte(prefix)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 0xff {
			b[i]++
			return string(b[:i+1])
		}
	}
	return ""
}
