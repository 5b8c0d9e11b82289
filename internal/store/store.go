// Package store persists the client's workspace state: the session token and
// the activity log.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"fivew2h/internal/db"
	"fivew2h/internal/domain"
	"fivew2h/internal/migrate"
)

type Store struct {
	DB  *sql.DB
	Now func() time.Time
}

var ErrNotFound = errors.New("not found")

// TokenKey is the single key holding the bearer token.
const TokenKey = "auth.token"

// Open opens and migrates the workspace store.
func Open(ctx context.Context, workspace string) (Store, error) {
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return Store{}, err
	}
	if _, err := migrate.Migrate(ctx, conn); err != nil {
		conn.Close()
		return Store{}, fmt.Errorf("migrate %s: %w", db.Path(workspace), err)
	}
	return Store{DB: conn, Now: time.Now}, nil
}

func (s Store) Close() error { return s.DB.Close() }

func (s Store) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// Get returns the value stored under key.
func (s Store) Get(ctx context.Context, key string) (string, error) {
	var v string
	err := s.DB.QueryRowContext(ctx, `SELECT value FROM session_state WHERE key=?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return v, err
}

// Put upserts key.
func (s Store) Put(ctx context.Context, key, value string) error {
	_, err := s.DB.ExecContext(ctx, `INSERT INTO session_state(key,value,updated_at) VALUES (?,?,?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`,
		key, value, s.now().UTC().Format(time.RFC3339))
	return err
}

// Delete removes key. Missing keys are not an error.
func (s Store) Delete(ctx context.Context, key string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM session_state WHERE key=?`, key)
	return err
}

// LoadToken returns the stored bearer token, or "" when none is stored.
func (s Store) LoadToken(ctx context.Context) (string, error) {
	v, err := s.Get(ctx, TokenKey)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return v, err
}

func (s Store) SaveToken(ctx context.Context, token string) error {
	return s.Put(ctx, TokenKey, token)
}

func (s Store) ClearToken(ctx context.Context) error {
	return s.Delete(ctx, TokenKey)
}

// ActivityFilter narrows LatestActivity. Empty fields match everything.
type ActivityFilter struct {
	Type      string
	Target    string
	EntityID  string
	ProjectID string
	Before    int64
}

// LatestActivity returns up to limit entries, newest first.
func (s Store) LatestActivity(ctx context.Context, limit int, f ActivityFilter) ([]domain.Activity, error) {
	if limit <= 0 {
		limit = 20
	}
	clauses := []string{"1=1"}
	var args []any
	if f.Type != "" {
		clauses = append(clauses, "type=?")
		args = append(args, f.Type)
	}
	if f.Target != "" {
		clauses = append(clauses, "target=?")
		args = append(args, f.Target)
	}
	if f.EntityID != "" {
		clauses = append(clauses, "entity_id=?")
		args = append(args, f.EntityID)
	}
	if f.ProjectID != "" {
		clauses = append(clauses, "project_id=?")
		args = append(args, f.ProjectID)
	}
	if f.Before > 0 {
		clauses = append(clauses, "id<?")
		args = append(args, f.Before)
	}
	query := fmt.Sprintf(`SELECT id,ts,type,target,COALESCE(entity_id,''),COALESCE(project_id,''),COALESCE(actor_id,''),request_id,payload_json
		FROM activity WHERE %s ORDER BY id DESC LIMIT ?`, strings.Join(clauses, " AND "))
	args = append(args, limit)
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Activity
	for rows.Next() {
		var a domain.Activity
		var payload sql.NullString
		if err := rows.Scan(&a.ID, &a.TS, &a.Type, &a.Target, &a.EntityID, &a.ProjectID, &a.ActorID, &a.RequestID, &payload); err != nil {
			return nil, err
		}
		if payload.Valid {
			a.Payload = payload.String
		}
		res = append(res, a)
	}
	return res, rows.Err()
}
