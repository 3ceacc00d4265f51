package directory

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// sqliteRecord mirrors the models table the admin surface maintains.
type sqliteRecord struct {
	ID              string `db:"id"`
	DisplayName     string `db:"display_name"`
	Provider        string `db:"provider"`
	InternalModelID string `db:"internal_model_id"`
	EndpointURL     string `db:"endpoint_url"`
	APIKeyRef       string `db:"api_key_ref"`
	IsDefault       bool   `db:"is_default"`
	IsActive        bool   `db:"is_active"`
}

// LoadSQLite reads the active model records from the admin-managed SQLite
// database into an immutable Static snapshot. Schema and writes belong to
// the admin surface; this core only SELECTs.
func LoadSQLite(ctx context.Context, dsn string) (*Static, error) {
	db, err := sqlx.ConnectContext(ctx, "sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open model directory: %w", err)
	}
	defer func() {
		_ = db.Close()
	}()

	query := `
		SELECT id, display_name, provider, internal_model_id,
		       COALESCE(endpoint_url, '') AS endpoint_url,
		       COALESCE(api_key_ref, '') AS api_key_ref,
		       is_default, is_active
		FROM models
		WHERE is_active = 1
		ORDER BY rowid
	`

	var rows []sqliteRecord
	if err := db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to load model records: %w", err)
	}

	records := make([]ModelRecord, 0, len(rows))
	for _, r := range rows {
		provider, err := ParseProvider(r.Provider)
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", r.ID, err)
		}
		records = append(records, ModelRecord{
			ID:              r.ID,
			DisplayName:     r.DisplayName,
			Provider:        provider,
			InternalModelID: r.InternalModelID,
			EndpointURL:     r.EndpointURL,
			APIKeyRef:       r.APIKeyRef,
			IsDefault:       r.IsDefault,
			IsActive:        r.IsActive,
		})
	}

	return NewStatic(records), nil
}
