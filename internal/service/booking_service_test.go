package service

import (
	"context"
	"testing"
	"time"

	"repairhub/internal/database"
	"repairhub/internal/logging"
	"repairhub/internal/models"
	"repairhub/internal/policy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) CreateBooking(ctx context.Context, b *models.Booking) error {
	return m.Called(ctx, b).Error(0)
}
func (m *mockStore) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}
func (m *mockStore) UpdateBookingStatusWithVersion(ctx context.Context, id string, v int64, u *models.BookingStatusUpdate) error {
	return m.Called(ctx, id, v, u).Error(0)
}
func (m *mockStore) ListBookingsByStatus(ctx context.Context, pid int64, s string) ([]*models.Booking, error) {
	args := m.Called(ctx, pid, s)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}
func (m *mockStore) ListBookingsByProvider(ctx context.Context, pid int64) ([]*models.Booking, error) {
	args := m.Called(ctx, pid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}
func (m *mockStore) ListBookingsByClient(ctx context.Context, email string) ([]*models.Booking, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}
func (m *mockStore) ListBookingsByService(ctx context.Context, sid int64) ([]*models.Booking, error) {
	args := m.Called(ctx, sid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}
func (m *mockStore) GetBookingsByDateRange(ctx context.Context, pid int64, s, e time.Time) ([]*models.Booking, error) {
	args := m.Called(ctx, pid, s, e)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}
func (m *mockStore) CountBookingsByStatus(ctx context.Context, pid int64) (map[string]int, error) {
	args := m.Called(ctx, pid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]int), args.Error(1)
}
func (m *mockStore) CreateService(ctx context.Context, s *models.Service) error {
	return m.Called(ctx, s).Error(0)
}
func (m *mockStore) GetService(ctx context.Context, id int64) (*models.Service, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Service), args.Error(1)
}
func (m *mockStore) UpdateService(ctx context.Context, s *models.Service) error {
	return m.Called(ctx, s).Error(0)
}
func (m *mockStore) DeleteService(ctx context.Context, id, pid int64) error {
	return m.Called(ctx, id, pid).Error(0)
}
func (m *mockStore) ListServicesByProvider(ctx context.Context, pid int64) ([]*models.Service, error) {
	args := m.Called(ctx, pid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Service), args.Error(1)
}
func (m *mockStore) ListAvailableServices(ctx context.Context) ([]*models.Service, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Service), args.Error(1)
}
func (m *mockStore) GetProvider(ctx context.Context, id int64) (*models.Provider, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Provider), args.Error(1)
}
func (m *mockStore) UpsertProvider(ctx context.Context, p *models.Provider) error {
	return m.Called(ctx, p).Error(0)
}
func (m *mockStore) ListActiveProviders(ctx context.Context) ([]*models.Provider, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Provider), args.Error(1)
}

type mockEventBus struct {
	mock.Mock
}

func (m *mockEventBus) PublishJSON(et string, p interface{}) error { return m.Called(et, p).Error(0) }

type mockDispatcher struct {
	mock.Mock
}

func (m *mockDispatcher) EnqueueEmail(ctx context.Context, msg *models.ClientMessage) error {
	return m.Called(ctx, msg).Error(0)
}
func (m *mockDispatcher) EnqueueTelegram(ctx context.Context, chatID int64, bookingID, text string) error {
	return m.Called(ctx, chatID, bookingID, text).Error(0)
}

func validInput() *models.BookingInput {
	return &models.BookingInput{
		ServiceID:        1,
		ClientName:       "Dana",
		ClientEmail:      "dana@example.com",
		ClientPhone:      "+15550100",
		EquipmentType:    "laptop",
		EquipmentModel:   "XPS 13",
		IssueDescription: "screen flickers",
		ServiceLocation:  models.LocationShop,
		ScheduledDate:    time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		ScheduledTime:    "14:00",
	}
}

func hashSecret(t *testing.T, secret string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func newTestService(store *mockStore, bus *mockEventBus, disp *mockDispatcher, now time.Time) *BookingService {
	svc := NewBookingService(store, bus, disp, policy.NewCancellationPolicy(24*time.Hour), logging.Nop())
	return svc.WithClock(func() time.Time { return now })
}

func TestCreateBooking(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)

	t.Run("Success", func(t *testing.T) {
		store := new(mockStore)
		bus := new(mockEventBus)
		disp := new(mockDispatcher)
		svc := newTestService(store, bus, disp, now)

		store.On("GetService", ctx, int64(1)).Return(&models.Service{ID: 1, ProviderID: 100, Name: "Laptop Repair", DurationMinutes: 90, Available: true}, nil).Once()
		store.On("CreateBooking", ctx, mock.AnythingOfType("*models.Booking")).Return(nil).Once()
		bus.On("PublishJSON", "booking_created", mock.Anything).Return(nil).Once()

		booking, secret, err := svc.CreateBooking(ctx, validInput())
		require.NoError(t, err)

		assert.Regexp(t, `^RPR-[0-9A-F]{10}$`, booking.ID)
		assert.NotEmpty(t, secret)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(booking.AccessSecretHash), []byte(secret)))
		assert.Equal(t, models.StatusPending, booking.Status)
		assert.Equal(t, int64(100), booking.ProviderID)
		assert.Equal(t, "Laptop Repair", booking.ServiceName)
		assert.Equal(t, now, booking.CreatedAt)
		assert.Nil(t, booking.ConfirmedAt)
		store.AssertExpectations(t)
		bus.AssertExpectations(t)
	})

	t.Run("ServiceUnavailable", func(t *testing.T) {
		store := new(mockStore)
		svc := newTestService(store, new(mockEventBus), new(mockDispatcher), now)

		store.On("GetService", ctx, int64(1)).Return(&models.Service{ID: 1, Available: false}, nil).Once()

		_, _, err := svc.CreateBooking(ctx, validInput())
		var verr *ValidationError
		assert.ErrorAs(t, err, &verr)
	})

	t.Run("ServiceWithoutDuration", func(t *testing.T) {
		store := new(mockStore)
		svc := newTestService(store, new(mockEventBus), new(mockDispatcher), now)

		store.On("GetService", ctx, int64(1)).Return(&models.Service{ID: 1, DurationMinutes: 0, Available: true}, nil).Once()

		_, _, err := svc.CreateBooking(ctx, validInput())
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "service_id", verr.Field)
		store.AssertNotCalled(t, "CreateBooking", mock.Anything, mock.Anything)
	})

	t.Run("Validation", func(t *testing.T) {
		svc := newTestService(new(mockStore), new(mockEventBus), new(mockDispatcher), now)

		cases := []struct {
			name   string
			mutate func(*models.BookingInput)
			field  string
		}{
			{"MissingName", func(in *models.BookingInput) { in.ClientName = "  " }, "client_name"},
			{"BadEmail", func(in *models.BookingInput) { in.ClientEmail = "not-an-email" }, "client_email"},
			{"MissingPhone", func(in *models.BookingInput) { in.ClientPhone = "" }, "client_phone"},
			{"MissingIssue", func(in *models.BookingInput) { in.IssueDescription = "" }, "issue_description"},
			{"BadLocation", func(in *models.BookingInput) { in.ServiceLocation = "moon" }, "service_location"},
			{"MissingDate", func(in *models.BookingInput) { in.ScheduledDate = time.Time{} }, "scheduled_date"},
		}

		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				input := validInput()
				tc.mutate(input)

				_, _, err := svc.CreateBooking(ctx, input)
				var verr *ValidationError
				require.ErrorAs(t, err, &verr)
				assert.Equal(t, tc.field, verr.Field)
			})
		}
	})
}

func TestTrack(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)
	booking := &models.Booking{ID: "RPR-1", AccessSecretHash: hashSecret(t, "s3cret"), Status: models.StatusPending}

	t.Run("Success", func(t *testing.T) {
		store := new(mockStore)
		svc := newTestService(store, new(mockEventBus), new(mockDispatcher), now)
		store.On("GetBooking", ctx, "RPR-1").Return(booking, nil).Once()

		got, err := svc.Track(ctx, "RPR-1", "s3cret")
		require.NoError(t, err)
		assert.Equal(t, booking, got)
	})

	t.Run("WrongSecret", func(t *testing.T) {
		store := new(mockStore)
		svc := newTestService(store, new(mockEventBus), new(mockDispatcher), now)
		store.On("GetBooking", ctx, "RPR-1").Return(booking, nil).Once()

		_, err := svc.Track(ctx, "RPR-1", "guess")
		assert.ErrorIs(t, err, ErrAccessDenied)
	})

	t.Run("NotFound", func(t *testing.T) {
		store := new(mockStore)
		svc := newTestService(store, new(mockEventBus), new(mockDispatcher), now)
		store.On("GetBooking", ctx, "RPR-X").Return(nil, database.ErrBookingNotFound).Once()

		_, err := svc.Track(ctx, "RPR-X", "s3cret")
		assert.ErrorIs(t, err, database.ErrBookingNotFound)
	})
}

func TestProviderTransitions(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 15, 11, 0, 0, 0, time.UTC)

	t.Run("Confirm", func(t *testing.T) {
		store := new(mockStore)
		bus := new(mockEventBus)
		disp := new(mockDispatcher)
		svc := newTestService(store, bus, disp, now)

		pending := &models.Booking{ID: "RPR-1", ProviderID: 100, Status: models.StatusPending, ClientEmail: "dana@example.com", Version: 1}
		confirmed := &models.Booking{ID: "RPR-1", ProviderID: 100, Status: models.StatusConfirmed, ClientEmail: "dana@example.com", ConfirmedAt: &now, Version: 2}

		store.On("GetBooking", ctx, "RPR-1").Return(pending, nil).Once()
		store.On("UpdateBookingStatusWithVersion", ctx, "RPR-1", int64(1), mock.MatchedBy(func(u *models.BookingStatusUpdate) bool {
			return u.Status == models.StatusConfirmed && u.ConfirmedAt != nil && u.ConfirmedAt.Equal(now)
		})).Return(nil).Once()
		store.On("GetBooking", ctx, "RPR-1").Return(confirmed, nil).Once()
		bus.On("PublishJSON", "booking_confirmed", mock.Anything).Return(nil).Once()
		disp.On("EnqueueEmail", ctx, mock.MatchedBy(func(msg *models.ClientMessage) bool {
			return msg.TemplateKey == "booking_confirmed" && msg.ServiceDetails != nil
		})).Return(nil).Once()

		got, err := svc.Confirm(ctx, "RPR-1", 1, 100)
		require.NoError(t, err)
		assert.Equal(t, models.StatusConfirmed, got.Status)
		store.AssertExpectations(t)
		bus.AssertExpectations(t)
		disp.AssertExpectations(t)
	})

	t.Run("ConfirmWrongProvider", func(t *testing.T) {
		store := new(mockStore)
		svc := newTestService(store, new(mockEventBus), new(mockDispatcher), now)
		store.On("GetBooking", ctx, "RPR-1").Return(&models.Booking{ID: "RPR-1", ProviderID: 100, Status: models.StatusPending}, nil).Once()

		_, err := svc.Confirm(ctx, "RPR-1", 1, 200)
		assert.ErrorIs(t, err, ErrAccessDenied)
	})

	t.Run("ConfirmUnknownBooking", func(t *testing.T) {
		store := new(mockStore)
		svc := newTestService(store, new(mockEventBus), new(mockDispatcher), now)
		store.On("GetBooking", ctx, "RPR-MISSING").Return(nil, database.ErrBookingNotFound).Once()

		_, err := svc.Confirm(ctx, "RPR-MISSING", 1, 100)
		assert.ErrorIs(t, err, database.ErrBookingNotFound)
		store.AssertNotCalled(t, "UpdateBookingStatusWithVersion", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("ConfirmTerminal", func(t *testing.T) {
		store := new(mockStore)
		svc := newTestService(store, new(mockEventBus), new(mockDispatcher), now)
		store.On("GetBooking", ctx, "RPR-1").Return(&models.Booking{ID: "RPR-1", ProviderID: 100, Status: models.StatusRejected}, nil).Once()

		_, err := svc.Confirm(ctx, "RPR-1", 1, 100)
		assert.ErrorIs(t, err, ErrTerminalState)
	})

	t.Run("ConfirmTwice", func(t *testing.T) {
		store := new(mockStore)
		svc := newTestService(store, new(mockEventBus), new(mockDispatcher), now)
		store.On("GetBooking", ctx, "RPR-1").Return(&models.Booking{ID: "RPR-1", ProviderID: 100, Status: models.StatusConfirmed, ConfirmedAt: &now, Version: 2}, nil).Once()

		_, err := svc.Confirm(ctx, "RPR-1", 2, 100)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("CompleteFromPending", func(t *testing.T) {
		store := new(mockStore)
		svc := newTestService(store, new(mockEventBus), new(mockDispatcher), now)
		store.On("GetBooking", ctx, "RPR-1").Return(&models.Booking{ID: "RPR-1", ProviderID: 100, Status: models.StatusPending}, nil).Once()

		_, err := svc.Complete(ctx, "RPR-1", 1, 100)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("ConcurrentModification", func(t *testing.T) {
		store := new(mockStore)
		svc := newTestService(store, new(mockEventBus), new(mockDispatcher), now)
		store.On("GetBooking", ctx, "RPR-1").Return(&models.Booking{ID: "RPR-1", ProviderID: 100, Status: models.StatusPending, Version: 2}, nil).Once()
		store.On("UpdateBookingStatusWithVersion", ctx, "RPR-1", int64(1), mock.Anything).Return(database.ErrConcurrentModification).Once()

		_, err := svc.Reject(ctx, "RPR-1", 1, 100)
		assert.ErrorIs(t, err, database.ErrConcurrentModification)
	})

	t.Run("RejectNotifiesClient", func(t *testing.T) {
		store := new(mockStore)
		bus := new(mockEventBus)
		disp := new(mockDispatcher)
		svc := newTestService(store, bus, disp, now)

		pending := &models.Booking{ID: "RPR-2", ProviderID: 100, Status: models.StatusPending, ClientEmail: "dana@example.com", Version: 1}
		rejected := &models.Booking{ID: "RPR-2", ProviderID: 100, Status: models.StatusRejected, ClientEmail: "dana@example.com", Version: 2}

		store.On("GetBooking", ctx, "RPR-2").Return(pending, nil).Once()
		store.On("UpdateBookingStatusWithVersion", ctx, "RPR-2", int64(1), mock.Anything).Return(nil).Once()
		store.On("GetBooking", ctx, "RPR-2").Return(rejected, nil).Once()
		bus.On("PublishJSON", "booking_rejected", mock.Anything).Return(nil).Once()
		disp.On("EnqueueEmail", ctx, mock.MatchedBy(func(msg *models.ClientMessage) bool {
			return msg.TemplateKey == "booking_rejected" && msg.ServiceDetails == nil
		})).Return(nil).Once()

		got, err := svc.Reject(ctx, "RPR-2", 1, 100)
		require.NoError(t, err)
		assert.Equal(t, models.StatusRejected, got.Status)
		disp.AssertExpectations(t)
	})
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	hash := hashSecret(t, "s3cret")
	confirmedAt := time.Date(2025, 1, 15, 11, 0, 0, 0, time.UTC)

	confirmedBooking := func() *models.Booking {
		return &models.Booking{
			ID:               "RPR-1",
			AccessSecretHash: hash,
			ProviderID:       100,
			Status:           models.StatusConfirmed,
			CreatedAt:        time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC),
			ConfirmedAt:      &confirmedAt,
			Version:          2,
		}
	}

	run := func(t *testing.T, now time.Time, wantFree bool, wantFee string) {
		store := new(mockStore)
		bus := new(mockEventBus)
		disp := new(mockDispatcher)
		svc := newTestService(store, bus, disp, now)

		booking := confirmedBooking()
		cancelled := confirmedBooking()
		cancelled.Status = models.StatusCancelled
		cancelled.CancellationFee = wantFee
		cancelled.CancelledAt = &now
		cancelled.Version = 3

		store.On("GetBooking", ctx, "RPR-1").Return(booking, nil).Once()
		store.On("UpdateBookingStatusWithVersion", ctx, "RPR-1", int64(2), mock.MatchedBy(func(u *models.BookingStatusUpdate) bool {
			return u.Status == models.StatusCancelled && u.CancellationFee == wantFee && u.CancelledAt != nil
		})).Return(nil).Once()
		store.On("GetBooking", ctx, "RPR-1").Return(cancelled, nil).Once()
		bus.On("PublishJSON", "booking_cancelled", mock.Anything).Return(nil).Once()

		got, outcome, err := svc.Cancel(ctx, "RPR-1", "s3cret")
		require.NoError(t, err)
		assert.Equal(t, models.StatusCancelled, got.Status)
		assert.Equal(t, wantFree, outcome.WithinFreeWindow)
		assert.Equal(t, wantFee, outcome.Fee)
		assert.Equal(t, confirmedAt.Add(24*time.Hour), outcome.Deadline)
		store.AssertExpectations(t)
		// no client email on cancellation
		disp.AssertNotCalled(t, "EnqueueEmail", mock.Anything, mock.Anything)
	}

	t.Run("ExactDeadlineIsFree", func(t *testing.T) {
		run(t, time.Date(2025, 1, 16, 11, 0, 0, 0, time.UTC), true, models.FeeNone)
	})

	t.Run("OneSecondPastChargesFull", func(t *testing.T) {
		run(t, time.Date(2025, 1, 16, 11, 0, 1, 0, time.UTC), false, models.FeeFull)
	})

	t.Run("UnconfirmedUsesCreationTime", func(t *testing.T) {
		now := time.Date(2025, 1, 16, 10, 29, 0, 0, time.UTC)
		store := new(mockStore)
		bus := new(mockEventBus)
		svc := newTestService(store, bus, new(mockDispatcher), now)

		booking := confirmedBooking()
		booking.Status = models.StatusPending
		booking.ConfirmedAt = nil

		updated := confirmedBooking()
		updated.Status = models.StatusCancelled
		updated.ConfirmedAt = nil

		store.On("GetBooking", ctx, "RPR-1").Return(booking, nil).Once()
		store.On("UpdateBookingStatusWithVersion", ctx, "RPR-1", int64(2), mock.Anything).Return(nil).Once()
		store.On("GetBooking", ctx, "RPR-1").Return(updated, nil).Once()
		bus.On("PublishJSON", "booking_cancelled", mock.Anything).Return(nil).Once()

		_, outcome, err := svc.Cancel(ctx, "RPR-1", "s3cret")
		require.NoError(t, err)
		assert.True(t, outcome.WithinFreeWindow)
		assert.Equal(t, booking.CreatedAt.Add(24*time.Hour), outcome.Deadline)
	})

	t.Run("WrongSecret", func(t *testing.T) {
		store := new(mockStore)
		svc := newTestService(store, new(mockEventBus), new(mockDispatcher), time.Now().UTC())
		store.On("GetBooking", ctx, "RPR-1").Return(confirmedBooking(), nil).Once()

		_, _, err := svc.Cancel(ctx, "RPR-1", "guess")
		assert.ErrorIs(t, err, ErrAccessDenied)
	})

	t.Run("AlreadyTerminal", func(t *testing.T) {
		store := new(mockStore)
		svc := newTestService(store, new(mockEventBus), new(mockDispatcher), time.Now().UTC())
		booking := confirmedBooking()
		booking.Status = models.StatusCompleted
		store.On("GetBooking", ctx, "RPR-1").Return(booking, nil).Once()

		_, _, err := svc.Cancel(ctx, "RPR-1", "s3cret")
		assert.ErrorIs(t, err, ErrTerminalState)
	})
}
