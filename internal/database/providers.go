package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"repairhub/internal/models"
)

func (db *DB) GetProvider(ctx context.Context, id int64) (*models.Provider, error) {
	query := `SELECT id, name, email, phone, telegram_chat_id, is_active, created_at, updated_at
	          FROM providers WHERE id = ?`
	var p models.Provider
	var phone sql.NullString
	err := db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.Name, &p.Email, &phone, &p.TelegramChatID, &p.IsActive, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProviderNotFound
		}
		return nil, fmt.Errorf("failed to get provider: %w", err)
	}
	p.Phone = phone.String
	return &p, nil
}

// UpsertProvider creates a provider or refreshes its contact details. Used by
// the seed catalog loader so restarts keep provider ids stable.
func (db *DB) UpsertProvider(ctx context.Context, provider *models.Provider) error {
	query := `INSERT INTO providers (id, name, email, phone, telegram_chat_id, is_active, created_at, updated_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	          ON CONFLICT(id) DO UPDATE SET
	              name = excluded.name,
	              email = excluded.email,
	              phone = excluded.phone,
	              telegram_chat_id = excluded.telegram_chat_id,
	              is_active = excluded.is_active,
	              updated_at = excluded.updated_at`
	now := time.Now().UTC()
	_, err := db.ExecContext(ctx, query,
		provider.ID,
		provider.Name,
		provider.Email,
		provider.Phone,
		provider.TelegramChatID,
		provider.IsActive,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert provider: %w", err)
	}
	return nil
}

func (db *DB) ListActiveProviders(ctx context.Context) ([]*models.Provider, error) {
	query := `SELECT id, name, email, phone, telegram_chat_id, is_active, created_at, updated_at
	          FROM providers WHERE is_active = 1 ORDER BY name ASC`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query providers: %w", err)
	}
	defer rows.Close()

	var providers []*models.Provider
	for rows.Next() {
		var p models.Provider
		var phone sql.NullString
		err := rows.Scan(&p.ID, &p.Name, &p.Email, &phone, &p.TelegramChatID, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan provider: %w", err)
		}
		p.Phone = phone.String
		providers = append(providers, &p)
	}
	return providers, rows.Err()
}
