package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"repairhub/internal/domain"
	"repairhub/internal/events"
	"repairhub/internal/models"
	"repairhub/internal/notify"
	"repairhub/internal/policy"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// transitionTable lists the legal lifecycle edges. Any requested edge missing
// here fails with ErrInvalidTransition; edges out of a terminal status fail
// with ErrTerminalState before this table is consulted.
var transitionTable = map[string]map[string]string{
	models.StatusPending: {
		"confirm": models.StatusConfirmed,
		"reject":  models.StatusRejected,
		"cancel":  models.StatusCancelled,
	},
	models.StatusConfirmed: {
		"complete": models.StatusCompleted,
		"cancel":   models.StatusCancelled,
	},
}

type BookingService struct {
	store      domain.Store
	eventBus   domain.EventPublisher
	dispatcher domain.Dispatcher
	policy     policy.CancellationPolicy
	logger     *zerolog.Logger
	now        func() time.Time
}

func NewBookingService(store domain.Store, eventBus domain.EventPublisher, dispatcher domain.Dispatcher, cancellation policy.CancellationPolicy, logger *zerolog.Logger) *BookingService {
	return &BookingService{
		store:      store,
		eventBus:   eventBus,
		dispatcher: dispatcher,
		policy:     cancellation,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source. Tests only.
func (s *BookingService) WithClock(now func() time.Time) *BookingService {
	s.now = now
	return s
}

// CreateBooking validates the request, persists a pending booking and returns
// it together with the plain access secret. The secret is stored hashed and
// this is the only moment it is visible.
func (s *BookingService) CreateBooking(ctx context.Context, input *models.BookingInput) (*models.Booking, string, error) {
	if err := validateBookingInput(input); err != nil {
		return nil, "", err
	}

	svc, err := s.store.GetService(ctx, input.ServiceID)
	if err != nil {
		return nil, "", err
	}
	if !svc.Available {
		return nil, "", validationErr("service_id", "service is not available for booking")
	}
	if svc.DurationMinutes <= 0 {
		return nil, "", validationErr("service_id", "service has no valid duration")
	}

	secret := newAccessSecret()
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("hash access secret: %w", err)
	}

	now := s.now()
	booking := &models.Booking{
		ID:               newBookingID(),
		AccessSecretHash: string(hash),
		ServiceID:        svc.ID,
		ServiceName:      svc.Name,
		ProviderID:       svc.ProviderID,
		ClientName:       strings.TrimSpace(input.ClientName),
		ClientEmail:      strings.TrimSpace(input.ClientEmail),
		ClientPhone:      strings.TrimSpace(input.ClientPhone),
		EquipmentType:    input.EquipmentType,
		EquipmentModel:   input.EquipmentModel,
		IssueDescription: strings.TrimSpace(input.IssueDescription),
		ServiceLocation:  input.ServiceLocation,
		ScheduledDate:    input.ScheduledDate,
		ScheduledTime:    input.ScheduledTime,
		Status:           models.StatusPending,
		CreatedAt:        now,
	}

	if err := s.store.CreateBooking(ctx, booking); err != nil {
		return nil, "", err
	}

	s.publishEvent(events.EventBookingCreated, booking, "client")

	return booking, secret, nil
}

// Track resolves a booking by id and access secret. This is the anonymous
// lookup path; no other identity check applies to it.
func (s *BookingService) Track(ctx context.Context, id, secret string) (*models.Booking, error) {
	booking, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(booking.AccessSecretHash), []byte(secret)) != nil {
		return nil, ErrAccessDenied
	}
	return booking, nil
}

// Confirm moves a pending booking into confirmed, stamps confirmed_at once and
// notifies the client.
func (s *BookingService) Confirm(ctx context.Context, bookingID string, version int64, providerID int64) (*models.Booking, error) {
	now := s.now()
	update := &models.BookingStatusUpdate{Status: models.StatusConfirmed, ConfirmedAt: &now}
	booking, err := s.applyProviderTransition(ctx, bookingID, version, providerID, "confirm", update)
	if err != nil {
		return nil, err
	}

	s.publishEvent(events.EventBookingConfirmed, booking, "provider")
	s.enqueueClientEmail(ctx, models.StatusConfirmed, booking)

	return booking, nil
}

// Reject moves a pending booking into rejected and notifies the client.
func (s *BookingService) Reject(ctx context.Context, bookingID string, version int64, providerID int64) (*models.Booking, error) {
	update := &models.BookingStatusUpdate{Status: models.StatusRejected}
	booking, err := s.applyProviderTransition(ctx, bookingID, version, providerID, "reject", update)
	if err != nil {
		return nil, err
	}

	s.publishEvent(events.EventBookingRejected, booking, "provider")
	s.enqueueClientEmail(ctx, models.StatusRejected, booking)

	return booking, nil
}

// Complete moves a confirmed booking into completed and notifies the client.
func (s *BookingService) Complete(ctx context.Context, bookingID string, version int64, providerID int64) (*models.Booking, error) {
	update := &models.BookingStatusUpdate{Status: models.StatusCompleted}
	booking, err := s.applyProviderTransition(ctx, bookingID, version, providerID, "complete", update)
	if err != nil {
		return nil, err
	}

	s.publishEvent(events.EventBookingCompleted, booking, "provider")
	s.enqueueClientEmail(ctx, models.StatusCompleted, booking)

	return booking, nil
}

// Cancel is the client-initiated path, authorized by id + access secret. The
// fee is decided by the cancellation policy against the confirmation time (or
// creation time while unconfirmed) and recorded on the booking. No client
// notification is sent for cancellations.
func (s *BookingService) Cancel(ctx context.Context, id, secret string) (*models.Booking, *models.CancellationOutcome, error) {
	booking, err := s.Track(ctx, id, secret)
	if err != nil {
		return nil, nil, err
	}

	if err := checkTransition(booking.Status, "cancel"); err != nil {
		return nil, nil, err
	}

	now := s.now()
	decision := s.policy.Evaluate(policy.ReferenceTime(booking), now)
	outcome := &models.CancellationOutcome{
		WithinFreeWindow: decision.WithinFreeWindow,
		Deadline:         decision.Deadline,
		Fee:              decision.Fee,
	}

	update := &models.BookingStatusUpdate{
		Status:          models.StatusCancelled,
		CancelledAt:     &now,
		CancellationFee: decision.Fee,
	}
	if err := s.store.UpdateBookingStatusWithVersion(ctx, id, booking.Version, update); err != nil {
		return nil, nil, err
	}

	updated, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	s.publishEvent(events.EventBookingCancelled, updated, "client")

	return updated, outcome, nil
}

func (s *BookingService) ListByStatus(ctx context.Context, providerID int64, status string) ([]*models.Booking, error) {
	return s.store.ListBookingsByStatus(ctx, providerID, status)
}

func (s *BookingService) ListByClient(ctx context.Context, email string) ([]*models.Booking, error) {
	return s.store.ListBookingsByClient(ctx, email)
}

func (s *BookingService) ListByProvider(ctx context.Context, providerID int64) ([]*models.Booking, error) {
	return s.store.ListBookingsByProvider(ctx, providerID)
}

func (s *BookingService) CountByStatus(ctx context.Context, providerID int64) (map[string]int, error) {
	return s.store.CountBookingsByStatus(ctx, providerID)
}

func (s *BookingService) BookingsForExport(ctx context.Context, providerID int64, start, end time.Time) ([]*models.Booking, error) {
	return s.store.GetBookingsByDateRange(ctx, providerID, start, end)
}

// applyProviderTransition runs the shared provider-side transition steps:
// load, authorize owner, validate the edge, version-guarded write, reread.
func (s *BookingService) applyProviderTransition(ctx context.Context, bookingID string, version int64, providerID int64, event string, update *models.BookingStatusUpdate) (*models.Booking, error) {
	booking, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if booking.ProviderID != providerID {
		return nil, ErrAccessDenied
	}

	if err := checkTransition(booking.Status, event); err != nil {
		return nil, err
	}

	if err := s.store.UpdateBookingStatusWithVersion(ctx, bookingID, version, update); err != nil {
		return nil, err
	}

	return s.store.GetBooking(ctx, bookingID)
}

func checkTransition(from, event string) error {
	if models.IsTerminalStatus(from) {
		return ErrTerminalState
	}
	edges, ok := transitionTable[from]
	if !ok {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, from)
	}
	if _, ok := edges[event]; !ok {
		return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, event, from)
	}
	return nil
}

func (s *BookingService) publishEvent(eventType string, booking *models.Booking, changedBy string) {
	if s.eventBus == nil {
		return
	}

	payload := events.BookingEventPayload{
		BookingID:   booking.ID,
		ProviderID:  booking.ProviderID,
		ServiceID:   booking.ServiceID,
		ServiceName: booking.ServiceName,
		ClientName:  booking.ClientName,
		ClientEmail: booking.ClientEmail,
		Status:      booking.Status,
		Fee:         booking.CancellationFee,
		Date:        booking.ScheduledDate,
		ChangedBy:   changedBy,
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Str("booking_id", booking.ID).Msg("publish event error")
	}
}

// enqueueClientEmail hands the message to the dispatcher. Failures are logged
// and swallowed; delivery must never affect the transition that triggered it.
func (s *BookingService) enqueueClientEmail(ctx context.Context, status string, booking *models.Booking) {
	if s.dispatcher == nil {
		return
	}

	msg, err := notify.BuildClientMessage(status, booking)
	if err != nil {
		s.logger.Error().Err(err).Str("booking_id", booking.ID).Msg("build notification error")
		return
	}

	if err := s.dispatcher.EnqueueEmail(ctx, msg); err != nil {
		s.logger.Error().Err(err).Str("booking_id", booking.ID).Str("status", status).Msg("notification enqueue error")
	}
}

func validateBookingInput(input *models.BookingInput) error {
	if input.ServiceID == 0 {
		return validationErr("service_id", "required")
	}
	if strings.TrimSpace(input.ClientName) == "" {
		return validationErr("client_name", "required")
	}
	if email := strings.TrimSpace(input.ClientEmail); email == "" || !strings.Contains(email, "@") {
		return validationErr("client_email", "valid email is required")
	}
	if strings.TrimSpace(input.ClientPhone) == "" {
		return validationErr("client_phone", "required")
	}
	if input.EquipmentType == "" {
		return validationErr("equipment_type", "required")
	}
	if strings.TrimSpace(input.IssueDescription) == "" {
		return validationErr("issue_description", "required")
	}
	if input.ServiceLocation != models.LocationShop && input.ServiceLocation != models.LocationResidence {
		return validationErr("service_location", "must be shop or residence")
	}
	if input.ScheduledDate.IsZero() {
		return validationErr("scheduled_date", "required")
	}
	return nil
}

func newBookingID() string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return "RPR-" + raw[:10]
}

func newAccessSecret() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return raw[:12]
}
