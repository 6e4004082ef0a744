package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/PabloGalante/keepsake/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS keepsakes (
	id           TEXT PRIMARY KEY,
	session_id   TEXT NOT NULL,
	name         TEXT NOT NULL,
	relationship TEXT NOT NULL,
	detail       TEXT NOT NULL,
	mood         TEXT NOT NULL,
	result       TEXT NOT NULL,
	created_at   TEXT NOT NULL,
	updated_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_keepsakes_created ON keepsakes(created_at DESC, id DESC);
`

// Store keeps keepsakes in a local SQLite file. The generation result is
// stored as one JSON column.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and makes sure the schema exists.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	s := &Store{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveKeepsake inserts the keepsake or replaces its result.
func (s *Store) SaveKeepsake(ctx context.Context, k *domain.Keepsake) error {
	result, err := json.Marshal(k.Result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO keepsakes (id, session_id, name, relationship, detail, mood, result, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			result = excluded.result,
			updated_at = excluded.updated_at`,
		string(k.ID), string(k.SessionID),
		k.Input.Name, k.Input.Relationship, k.Input.Detail, string(k.Input.Mood),
		string(result), formatTime(k.CreatedAt), formatTime(k.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite SaveKeepsake: %w", err)
	}
	return nil
}

func (s *Store) GetKeepsake(ctx context.Context, id domain.KeepsakeID) (*domain.Keepsake, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, session_id, name, relationship, detail, mood, result, created_at, updated_at
		FROM keepsakes WHERE id = ?`, string(id))

	k, err := scanKeepsake(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrKeepsakeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite GetKeepsake: %w", err)
	}
	return k, nil
}

// ListKeepsakes returns the newest keepsakes first. limit <= 0 returns all.
func (s *Store) ListKeepsakes(ctx context.Context, limit int) ([]*domain.Keepsake, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, name, relationship, detail, mood, result, created_at, updated_at
		FROM keepsakes ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite ListKeepsakes: %w", err)
	}
	defer rows.Close()

	var out []*domain.Keepsake
	for rows.Next() {
		k, err := scanKeepsake(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite ListKeepsakes scan: %w", err)
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanKeepsake(sc scanner) (*domain.Keepsake, error) {
	var (
		k                    domain.Keepsake
		id, sessionID, mood  string
		result               string
		createdAt, updatedAt string
	)
	if err := sc.Scan(&id, &sessionID, &k.Input.Name, &k.Input.Relationship, &k.Input.Detail,
		&mood, &result, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(result), &k.Result); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}

	k.ID = domain.KeepsakeID(id)
	k.SessionID = domain.SessionID(sessionID)
	k.Input.Mood = domain.Mood(mood)

	var err error
	if k.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if k.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &k, nil
}

// timeLayout is fixed width so lexical order in SQL matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}
