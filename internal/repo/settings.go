package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// SettingsRepo is a plain key/value store. Typed settings are encoded and
// validated by the service layer; this layer only moves strings.
type SettingsRepo interface {
	// GetMany returns the stored values for keys. Missing keys are absent
	// from the map rather than an error.
	GetMany(ctx context.Context, keys []string) (map[string]string, error)

	// PutMany upserts every entry. An empty value deletes the key.
	PutMany(ctx context.Context, values map[string]string) error
}

// pgSettingsRepo is the Postgres implementation of SettingsRepo.
type pgSettingsRepo struct {
	db db
}

// NewSettingsRepo constructs a SettingsRepo backed by the provided db connection.
func NewSettingsRepo(db db) SettingsRepo {
	return &pgSettingsRepo{db: db}
}

// GetMany reads all requested keys in one round trip.
func (r *pgSettingsRepo) GetMany(ctx context.Context, keys []string) (map[string]string, error) {
	const q = `SELECT key, value FROM settings WHERE key = ANY(@keys)`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"keys": keys})
	if err != nil {
		return nil, fmt.Errorf("repo.SettingsRepo.GetMany: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string, len(keys))
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("repo.SettingsRepo.GetMany: scan: %w", err)
		}
		out[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.SettingsRepo.GetMany: rows: %w", err)
	}
	return out, nil
}

// PutMany writes every entry as its own statement. Callers that need
// all-or-nothing semantics construct the repo on a pgx.Tx.
func (r *pgSettingsRepo) PutMany(ctx context.Context, values map[string]string) error {
	const upsert = `
		INSERT INTO settings (key, value, updated_at)
		VALUES (@key, @value, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`
	const del = `DELETE FROM settings WHERE key = @key`

	for k, v := range values {
		var err error
		if v == "" {
			_, err = r.db.Exec(ctx, del, pgx.NamedArgs{"key": k})
		} else {
			_, err = r.db.Exec(ctx, upsert, pgx.NamedArgs{"key": k, "value": v})
		}
		if err != nil {
			return fmt.Errorf("repo.SettingsRepo.PutMany: %s: %w", k, err)
		}
	}
	return nil
}
