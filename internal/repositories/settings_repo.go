package repositories

import (
	"context"

	"finsync/internal/models"
)

// SettingsRepository reads the category/key configuration table.
type SettingsRepository interface {
	Get(ctx context.Context, category, key string) (string, error)
	ListByCategory(ctx context.Context, category string) ([]*models.Setting, error)
}

type settingsRepo struct {
	db DBTX
}

func NewSettingsRepository(db DBTX) SettingsRepository {
	return &settingsRepo{db: db}
}

func (r *settingsRepo) Get(ctx context.Context, category, key string) (string, error) {
	var value string
	query := `SELECT value FROM settings WHERE category = $1 AND key = $2`
	if err := r.db.QueryRow(ctx, query, category, key).Scan(&value); err != nil {
		return "", notFound(err)
	}
	return value, nil
}

func (r *settingsRepo) ListByCategory(ctx context.Context, category string) ([]*models.Setting, error) {
	query := `
		SELECT category, key, value, updated_at
		FROM settings
		WHERE category = $1
		ORDER BY key
	`
	rows, err := r.db.Query(ctx, query, category)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var settings []*models.Setting
	for rows.Next() {
		s := &models.Setting{}
		if err := rows.Scan(&s.Category, &s.Key, &s.Value, &s.UpdatedAt); err != nil {
			return nil, err
		}
		settings = append(settings, s)
	}
	return settings, rows.Err()
}
