package database

import (
	"context"
	"testing"
	"time"

	"repairhub/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.Nop()
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func insertBooking(t *testing.T, db *DB, id string, providerID, serviceID int64, status string) *models.Booking {
	t.Helper()
	booking := &models.Booking{
		ID:               id,
		AccessSecretHash: "$2a$04$hashhashhashhashhashha",
		ServiceID:        serviceID,
		ServiceName:      "Laptop Repair",
		ProviderID:       providerID,
		ClientName:       "Dana",
		ClientEmail:      "dana@example.com",
		ClientPhone:      "+15550100",
		EquipmentType:    "laptop",
		IssueDescription: "screen flickers",
		ServiceLocation:  models.LocationShop,
		ScheduledDate:    time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC),
		ScheduledTime:    "14:00",
		Status:           status,
	}
	require.NoError(t, db.CreateBooking(context.Background(), booking))
	return booking
}

func TestCreateAndGetBooking(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	created := insertBooking(t, db, "RPR-AAA1", 1, 10, models.StatusPending)
	assert.Equal(t, int64(1), created.Version)

	got, err := db.GetBooking(ctx, "RPR-AAA1")
	require.NoError(t, err)

	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, created.AccessSecretHash, got.AccessSecretHash)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Equal(t, "2025-12-01", got.ScheduledDate.Format("2006-01-02"))
	assert.Equal(t, "14:00", got.ScheduledTime)
	assert.Nil(t, got.ConfirmedAt)
	assert.Nil(t, got.CancelledAt)
	assert.Empty(t, got.CancellationFee)
}

func TestGetBookingNotFound(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.GetBooking(context.Background(), "RPR-MISSING")
	assert.ErrorIs(t, err, ErrBookingNotFound)
}

func TestUpdateBookingStatusWithVersion(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	t.Run("ConfirmSetsTimestamp", func(t *testing.T) {
		insertBooking(t, db, "RPR-V1", 1, 10, models.StatusPending)

		confirmedAt := time.Date(2025, 1, 15, 11, 0, 0, 0, time.UTC)
		err := db.UpdateBookingStatusWithVersion(ctx, "RPR-V1", 1, &models.BookingStatusUpdate{
			Status:      models.StatusConfirmed,
			ConfirmedAt: &confirmedAt,
		})
		require.NoError(t, err)

		got, err := db.GetBooking(ctx, "RPR-V1")
		require.NoError(t, err)
		assert.Equal(t, models.StatusConfirmed, got.Status)
		assert.Equal(t, int64(2), got.Version)
		require.NotNil(t, got.ConfirmedAt)
		assert.True(t, got.ConfirmedAt.Equal(confirmedAt))
	})

	t.Run("LaterUpdateKeepsConfirmedAt", func(t *testing.T) {
		err := db.UpdateBookingStatusWithVersion(ctx, "RPR-V1", 2, &models.BookingStatusUpdate{
			Status: models.StatusCompleted,
		})
		require.NoError(t, err)

		got, err := db.GetBooking(ctx, "RPR-V1")
		require.NoError(t, err)
		assert.Equal(t, models.StatusCompleted, got.Status)
		require.NotNil(t, got.ConfirmedAt)
	})

	t.Run("StaleVersion", func(t *testing.T) {
		err := db.UpdateBookingStatusWithVersion(ctx, "RPR-V1", 1, &models.BookingStatusUpdate{
			Status: models.StatusRejected,
		})
		assert.ErrorIs(t, err, ErrConcurrentModification)
	})

	t.Run("MissingBooking", func(t *testing.T) {
		err := db.UpdateBookingStatusWithVersion(ctx, "RPR-NOPE", 1, &models.BookingStatusUpdate{
			Status: models.StatusRejected,
		})
		assert.ErrorIs(t, err, ErrBookingNotFound)
	})

	t.Run("CancelRecordsFee", func(t *testing.T) {
		insertBooking(t, db, "RPR-V2", 1, 10, models.StatusConfirmed)

		cancelledAt := time.Date(2025, 1, 16, 12, 0, 0, 0, time.UTC)
		err := db.UpdateBookingStatusWithVersion(ctx, "RPR-V2", 1, &models.BookingStatusUpdate{
			Status:          models.StatusCancelled,
			CancelledAt:     &cancelledAt,
			CancellationFee: models.FeeFull,
		})
		require.NoError(t, err)

		got, err := db.GetBooking(ctx, "RPR-V2")
		require.NoError(t, err)
		assert.Equal(t, models.StatusCancelled, got.Status)
		assert.Equal(t, models.FeeFull, got.CancellationFee)
		require.NotNil(t, got.CancelledAt)
	})
}

func TestListBookings(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	insertBooking(t, db, "RPR-L1", 1, 10, models.StatusPending)
	insertBooking(t, db, "RPR-L2", 1, 10, models.StatusConfirmed)
	insertBooking(t, db, "RPR-L3", 2, 20, models.StatusPending)

	t.Run("ByStatus", func(t *testing.T) {
		got, err := db.ListBookingsByStatus(ctx, 1, models.StatusPending)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "RPR-L1", got[0].ID)
	})

	t.Run("ByProvider", func(t *testing.T) {
		got, err := db.ListBookingsByProvider(ctx, 1)
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("ByClient", func(t *testing.T) {
		got, err := db.ListBookingsByClient(ctx, "dana@example.com")
		require.NoError(t, err)
		assert.Len(t, got, 3)
	})

	t.Run("ByService", func(t *testing.T) {
		got, err := db.ListBookingsByService(ctx, 20)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "RPR-L3", got[0].ID)
	})

	t.Run("ByDateRange", func(t *testing.T) {
		got, err := db.GetBookingsByDateRange(ctx, 1,
			time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		assert.Len(t, got, 2)

		empty, err := db.GetBookingsByDateRange(ctx, 1,
			time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("CountByStatus", func(t *testing.T) {
		counts, err := db.CountBookingsByStatus(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, 1, counts[models.StatusPending])
		assert.Equal(t, 1, counts[models.StatusConfirmed])
	})
}

func TestParseScheduledDate(t *testing.T) {
	cases := []string{
		"2025-12-01",
		"2025-12-01T00:00:00Z",
	}
	for _, raw := range cases {
		got, err := parseScheduledDate(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, "2025-12-01", got.Format("2006-01-02"))
	}

	_, err := parseScheduledDate("01.12.2025")
	assert.Error(t, err)
}
