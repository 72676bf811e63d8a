package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// validTable guards against table names outside the collection whitelist.
// Table names are interpolated into SQL, so this is load-bearing.
func validTable(table string) error {
	for _, t := range collections {
		if t == table {
			return nil
		}
	}
	return fmt.Errorf("unknown collection %q", table)
}

// putDoc upserts one document.
func putDoc(ctx context.Context, db *sql.DB, table, key string, doc any) error {
	if err := validTable(table); err != nil {
		return err
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal %s document: %w", table, err)
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (key, doc, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET doc = EXCLUDED.doc, updated_at = now()
	`, table)
	if _, err := db.ExecContext(ctx, query, key, raw); err != nil {
		return fmt.Errorf("failed to write %s/%s: %w", table, key, err)
	}
	return nil
}

// insertDoc creates one document, failing with ErrAlreadyExists on key clash.
func insertDoc(ctx context.Context, db *sql.DB, table, key string, doc any) error {
	if err := validTable(table); err != nil {
		return err
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal %s document: %w", table, err)
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (key, doc, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO NOTHING
	`, table)
	res, err := db.ExecContext(ctx, query, key, raw)
	if err != nil {
		return fmt.Errorf("failed to insert %s/%s: %w", table, key, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrAlreadyExists
	}
	return nil
}

// getDoc loads one document into out. Returns ErrNotFound for missing keys.
func getDoc(ctx context.Context, db *sql.DB, table, key string, out any) error {
	if err := validTable(table); err != nil {
		return err
	}
	query := fmt.Sprintf(`SELECT doc FROM %s WHERE key = $1`, table)
	var raw []byte
	err := db.QueryRowContext(ctx, query, key).Scan(&raw)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to query %s/%s: %w", table, key, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to unmarshal %s/%s: %w", table, key, err)
	}
	return nil
}

// deleteDoc removes one document. Missing keys are reported as ErrNotFound.
func deleteDoc(ctx context.Context, db *sql.DB, table, key string) error {
	if err := validTable(table); err != nil {
		return err
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE key = $1`, table)
	res, err := db.ExecContext(ctx, query, key)
	if err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", table, key, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// listDocs loads documents into a slice of T, optionally filtered by a JSONB
// field equality. Ordered by key for stable listings.
func listDocs[T any](ctx context.Context, db *sql.DB, table, field, value string) ([]T, error) {
	if err := validTable(table); err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT doc FROM %s ORDER BY key`, table)
	args := []any{}
	if field != "" {
		query = fmt.Sprintf(`SELECT doc FROM %s WHERE doc->>'%s' = $1 ORDER BY key`, table, field)
		args = append(args, value)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", table, err)
		}
		var doc T
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s row: %w", table, err)
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

// deleteDocsByField removes all documents whose JSONB field equals value.
func deleteDocsByField(ctx context.Context, db *sql.DB, table, field, value string) error {
	if err := validTable(table); err != nil {
		return err
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE doc->>'%s' = $1`, table, field)
	if _, err := db.ExecContext(ctx, query, value); err != nil {
		return fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	return nil
}
