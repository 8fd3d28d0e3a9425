package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"repairhub/internal/models"
)

const bookingColumns = `id, access_secret_hash, service_id, service_name, provider_id,
                 client_name, client_email, client_phone, equipment_type, equipment_model,
                 issue_description, service_location, scheduled_date, scheduled_time,
                 status, cancellation_fee, created_at, confirmed_at, cancelled_at,
                 updated_at, version`

func (db *DB) CreateBooking(ctx context.Context, booking *models.Booking) error {
	query := `INSERT INTO bookings (
				id, access_secret_hash, service_id, service_name, provider_id,
				client_name, client_email, client_phone, equipment_type, equipment_model,
				issue_description, service_location, scheduled_date, scheduled_time,
				status, cancellation_fee, created_at, updated_at, version
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now().UTC()
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = now
	}
	_, err := db.ExecContext(ctx, query,
		booking.ID,
		booking.AccessSecretHash,
		booking.ServiceID,
		booking.ServiceName,
		booking.ProviderID,
		booking.ClientName,
		booking.ClientEmail,
		booking.ClientPhone,
		booking.EquipmentType,
		booking.EquipmentModel,
		booking.IssueDescription,
		booking.ServiceLocation,
		booking.ScheduledDate.Format("2006-01-02"),
		booking.ScheduledTime,
		booking.Status,
		booking.CancellationFee,
		booking.CreatedAt,
		now,
		1,
	)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	booking.UpdatedAt = now
	booking.Version = 1

	return nil
}

func (db *DB) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	booking, err := scanBooking(db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return booking, nil
}

// UpdateBookingStatusWithVersion applies a status change guarded by the version
// the caller read. Timestamp columns for confirmation/cancellation are set only
// when the matching pointer is non-nil.
func (db *DB) UpdateBookingStatusWithVersion(ctx context.Context, id string, fromVersion int64, update *models.BookingStatusUpdate) error {
	query := `UPDATE bookings SET status = ?,
	              confirmed_at = COALESCE(?, confirmed_at),
	              cancelled_at = COALESCE(?, cancelled_at),
	              cancellation_fee = COALESCE(?, cancellation_fee),
	              version = version + 1, updated_at = ?
	          WHERE id = ? AND version = ?`

	var fee any
	if update.CancellationFee != "" {
		fee = update.CancellationFee
	}

	result, err := db.ExecContext(ctx, query,
		update.Status, update.ConfirmedAt, update.CancelledAt, fee,
		time.Now().UTC(), id, fromVersion)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		// Distinguish a lost race from a missing record.
		if _, err := db.GetBooking(ctx, id); err != nil {
			return err
		}
		return ErrConcurrentModification
	}
	return nil
}

func (db *DB) ListBookingsByStatus(ctx context.Context, providerID int64, status string) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
	          WHERE provider_id = ? AND status = ? ORDER BY created_at DESC`
	return db.queryBookings(ctx, query, providerID, status)
}

func (db *DB) ListBookingsByProvider(ctx context.Context, providerID int64) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
	          WHERE provider_id = ? ORDER BY created_at DESC`
	return db.queryBookings(ctx, query, providerID)
}

func (db *DB) ListBookingsByClient(ctx context.Context, email string) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
	          WHERE client_email = ? ORDER BY created_at DESC`
	return db.queryBookings(ctx, query, email)
}

func (db *DB) ListBookingsByService(ctx context.Context, serviceID int64) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
	          WHERE service_id = ? ORDER BY created_at DESC`
	return db.queryBookings(ctx, query, serviceID)
}

func (db *DB) GetBookingsByDateRange(ctx context.Context, providerID int64, startDate, endDate time.Time) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
	          WHERE provider_id = ? AND date(scheduled_date) >= ? AND date(scheduled_date) <= ?
	          ORDER BY scheduled_date ASC`
	return db.queryBookings(ctx, query, providerID,
		startDate.Format("2006-01-02"), endDate.Format("2006-01-02"))
}

func (db *DB) CountBookingsByStatus(ctx context.Context, providerID int64) (map[string]int, error) {
	query := `SELECT status, COUNT(*) FROM bookings WHERE provider_id = ? GROUP BY status`
	rows, err := db.QueryContext(ctx, query, providerID)
	if err != nil {
		return nil, fmt.Errorf("failed to count bookings: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan booking count: %w", err)
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

func (db *DB) queryBookings(ctx context.Context, query string, args ...any) ([]*models.Booking, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	var b models.Booking
	var dateStr string
	var model, schedTime, fee sql.NullString
	var confirmedAt, cancelledAt sql.NullTime

	err := row.Scan(
		&b.ID, &b.AccessSecretHash, &b.ServiceID, &b.ServiceName, &b.ProviderID,
		&b.ClientName, &b.ClientEmail, &b.ClientPhone, &b.EquipmentType, &model,
		&b.IssueDescription, &b.ServiceLocation, &dateStr, &schedTime,
		&b.Status, &fee, &b.CreatedAt, &confirmedAt, &cancelledAt,
		&b.UpdatedAt, &b.Version,
	)
	if err != nil {
		return nil, err
	}

	b.EquipmentModel = model.String
	b.ScheduledTime = schedTime.String
	b.CancellationFee = fee.String
	if confirmedAt.Valid {
		t := confirmedAt.Time
		b.ConfirmedAt = &t
	}
	if cancelledAt.Valid {
		t := cancelledAt.Time
		b.CancelledAt = &t
	}

	b.ScheduledDate, err = parseScheduledDate(dateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse scheduled date %s: %w", dateStr, err)
	}
	return &b, nil
}

func parseScheduledDate(raw string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", time.RFC3339, "2006-01-02 15:04:05-07:00", "2006-01-02T15:04:05Z07:00"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format: %s", raw)
}
