package prefs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Repo stores preferences in the sqlite `preferences` table.
type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

func (r *Repo) For(visitorID string) Storage {
	return repoStorage{repo: r, visitorID: visitorID}
}

func (r *Repo) Get(ctx context.Context, visitorID, key string) (string, bool, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT value
		FROM preferences
		WHERE visitor_id = ? AND pref_key = ?
	`, visitorID, key)

	var value string
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get preference %s: %w", key, err)
	}
	return value, true, nil
}

func (r *Repo) Set(ctx context.Context, visitorID, key, value string) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO preferences (visitor_id, pref_key, value, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(visitor_id, pref_key) DO UPDATE SET
			value = excluded.value,
			updated_at = CURRENT_TIMESTAMP
	`, visitorID, key, value)
	if err != nil {
		return fmt.Errorf("set preference %s: %w", key, err)
	}
	return nil
}

// Update runs fn inside one transaction on the visitor's row.
func (r *Repo) Update(ctx context.Context, visitorID, key string, fn func(old string, ok bool) (string, error)) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin preference tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var old string
	ok := true
	err = tx.QueryRowContext(ctx, `
		SELECT value
		FROM preferences
		WHERE visitor_id = ? AND pref_key = ?
	`, visitorID, key).Scan(&old)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("get preference %s: %w", key, err)
		}
		ok = false
	}

	value, err := fn(old, ok)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO preferences (visitor_id, pref_key, value, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(visitor_id, pref_key) DO UPDATE SET
			value = excluded.value,
			updated_at = CURRENT_TIMESTAMP
	`, visitorID, key, value); err != nil {
		return fmt.Errorf("set preference %s: %w", key, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit preference %s: %w", key, err)
	}
	return nil
}

type repoStorage struct {
	repo      *Repo
	visitorID string
}

func (s repoStorage) Get(ctx context.Context, key string) (string, bool, error) {
	return s.repo.Get(ctx, s.visitorID, key)
}

func (s repoStorage) Set(ctx context.Context, key, value string) error {
	return s.repo.Set(ctx, s.visitorID, key, value)
}

func (s repoStorage) Update(ctx context.Context, key string, fn func(old string, ok bool) (string, error)) error {
	return s.repo.Update(ctx, s.visitorID, key, fn)
}
