package sqlite

import (
	"context"
	"fmt"

	"github.com/sakif/bird-dropper/internal/model"
	"github.com/sakif/bird-dropper/internal/repository"
)

// compile-time check that *DB implements repository.SettingsRepository
var _ repository.SettingsRepository = (*DB)(nil)

// GetWebsiteSettings reads the singleton row seeded by migrate.
func (db *DB) GetWebsiteSettings(ctx context.Context) (*model.WebsiteSettings, error) {
	var ws model.WebsiteSettings
	err := db.conn.QueryRowContext(ctx,
		`SELECT theme, language, updated_at FROM website_settings WHERE id = 1`,
	).Scan(&ws.Theme, &ws.Language, &ws.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("sqlite: reading website settings: %w", err)
	}
	return &ws, nil
}

// UpdateWebsiteSettings overwrites the singleton row. Permission checks are
// the caller's job.
func (db *DB) UpdateWebsiteSettings(ctx context.Context, theme, language string) error {
	_, err := db.conn.ExecContext(ctx,
		`UPDATE website_settings SET theme = ?, language = ?, updated_at = ? WHERE id = 1`,
		theme, language, db.now(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating website settings: %w", err)
	}
	return nil
}
