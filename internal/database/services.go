package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"repairhub/internal/models"
)

const serviceColumns = `id, provider_id, name, description, category, price,
                 duration_minutes, available, created_at, updated_at`

func (db *DB) CreateService(ctx context.Context, service *models.Service) error {
	query := `INSERT INTO services (provider_id, name, description, category, price,
	              duration_minutes, available, created_at, updated_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now().UTC()
	result, err := db.ExecContext(ctx, query,
		service.ProviderID,
		service.Name,
		service.Description,
		service.Category,
		service.Price,
		service.DurationMinutes,
		service.Available,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	service.ID = id
	service.CreatedAt = now
	service.UpdatedAt = now

	return nil
}

func (db *DB) GetService(ctx context.Context, id int64) (*models.Service, error) {
	query := `SELECT ` + serviceColumns + ` FROM services WHERE id = ?`
	var s models.Service
	err := db.QueryRowContext(ctx, query, id).Scan(
		&s.ID, &s.ProviderID, &s.Name, &s.Description, &s.Category, &s.Price,
		&s.DurationMinutes, &s.Available, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrServiceNotFound
		}
		return nil, fmt.Errorf("failed to get service: %w", err)
	}
	return &s, nil
}

func (db *DB) UpdateService(ctx context.Context, service *models.Service) error {
	query := `UPDATE services SET name = ?, description = ?, category = ?, price = ?,
	              duration_minutes = ?, available = ?, updated_at = ?
	          WHERE id = ? AND provider_id = ?`
	result, err := db.ExecContext(ctx, query,
		service.Name,
		service.Description,
		service.Category,
		service.Price,
		service.DurationMinutes,
		service.Available,
		time.Now().UTC(),
		service.ID,
		service.ProviderID,
	)
	if err != nil {
		return fmt.Errorf("failed to update service: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrServiceNotFound
	}
	return nil
}

func (db *DB) DeleteService(ctx context.Context, id, providerID int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM services WHERE id = ? AND provider_id = ?`, id, providerID)
	if err != nil {
		return fmt.Errorf("failed to delete service: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrServiceNotFound
	}
	return nil
}

func (db *DB) ListServicesByProvider(ctx context.Context, providerID int64) ([]*models.Service, error) {
	query := `SELECT ` + serviceColumns + ` FROM services WHERE provider_id = ? ORDER BY name ASC`
	return db.queryServices(ctx, query, providerID)
}

func (db *DB) ListAvailableServices(ctx context.Context) ([]*models.Service, error) {
	query := `SELECT ` + serviceColumns + ` FROM services WHERE available = 1 ORDER BY category, name ASC`
	return db.queryServices(ctx, query)
}

func (db *DB) queryServices(ctx context.Context, query string, args ...any) ([]*models.Service, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query services: %w", err)
	}
	defer rows.Close()

	var services []*models.Service
	for rows.Next() {
		var s models.Service
		err := rows.Scan(
			&s.ID, &s.ProviderID, &s.Name, &s.Description, &s.Category, &s.Price,
			&s.DurationMinutes, &s.Available, &s.CreatedAt, &s.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan service: %w", err)
		}
		services = append(services, &s)
	}
	return services, rows.Err()
}
