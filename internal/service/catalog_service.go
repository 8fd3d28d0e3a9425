package service

import (
	"context"
	"strconv"
	"strings"

	"repairhub/internal/domain"
	"repairhub/internal/events"
	"repairhub/internal/models"
	"repairhub/internal/notify"

	"github.com/rs/zerolog"
)

type CatalogService struct {
	store      domain.Store
	eventBus   domain.EventPublisher
	dispatcher domain.Dispatcher
	logger     *zerolog.Logger
}

func NewCatalogService(store domain.Store, eventBus domain.EventPublisher, dispatcher domain.Dispatcher, logger *zerolog.Logger) *CatalogService {
	return &CatalogService{
		store:      store,
		eventBus:   eventBus,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

func (s *CatalogService) CreateService(ctx context.Context, service *models.Service) error {
	if err := validateService(service); err != nil {
		return err
	}
	return s.store.CreateService(ctx, service)
}

func (s *CatalogService) GetService(ctx context.Context, id int64) (*models.Service, error) {
	return s.store.GetService(ctx, id)
}

func (s *CatalogService) UpdateService(ctx context.Context, service *models.Service) error {
	if err := validateService(service); err != nil {
		return err
	}
	return s.store.UpdateService(ctx, service)
}

// DeleteService removes a listing and rejects every booking still open
// against it. Clients of the rejected bookings get the usual rejection
// notice; failures there are logged and do not undo the delete.
func (s *CatalogService) DeleteService(ctx context.Context, id, providerID int64) error {
	open, err := s.store.ListBookingsByService(ctx, id)
	if err != nil {
		return err
	}

	if err := s.store.DeleteService(ctx, id, providerID); err != nil {
		return err
	}

	for _, booking := range open {
		if models.IsTerminalStatus(booking.Status) {
			continue
		}
		update := &models.BookingStatusUpdate{Status: models.StatusRejected}
		if err := s.store.UpdateBookingStatusWithVersion(ctx, booking.ID, booking.Version, update); err != nil {
			s.logger.Error().Err(err).Str("booking_id", booking.ID).Msg("reject booking on service delete error")
			continue
		}
		booking.Status = models.StatusRejected
		s.publishServiceDeleted(id, booking)
		s.notifyRejected(ctx, booking)
	}

	return nil
}

func (s *CatalogService) ListByProvider(ctx context.Context, providerID int64) ([]*models.Service, error) {
	return s.store.ListServicesByProvider(ctx, providerID)
}

func (s *CatalogService) ListAvailable(ctx context.Context) ([]*models.Service, error) {
	return s.store.ListAvailableServices(ctx)
}

func (s *CatalogService) publishServiceDeleted(serviceID int64, booking *models.Booking) {
	if s.eventBus == nil {
		return
	}
	payload := events.BookingEventPayload{
		BookingID:   booking.ID,
		ProviderID:  booking.ProviderID,
		ServiceID:   serviceID,
		ServiceName: booking.ServiceName,
		ClientName:  booking.ClientName,
		ClientEmail: booking.ClientEmail,
		Status:      booking.Status,
		Date:        booking.ScheduledDate,
		ChangedBy:   "provider",
	}
	if err := s.eventBus.PublishJSON(events.EventServiceDeleted, payload); err != nil {
		s.logger.Error().Err(err).Str("booking_id", booking.ID).Msg("publish event error")
	}
}

func (s *CatalogService) notifyRejected(ctx context.Context, booking *models.Booking) {
	if s.dispatcher == nil {
		return
	}
	msg, err := notify.BuildClientMessage(models.StatusRejected, booking)
	if err != nil {
		s.logger.Error().Err(err).Str("booking_id", booking.ID).Msg("build notification error")
		return
	}
	if err := s.dispatcher.EnqueueEmail(ctx, msg); err != nil {
		s.logger.Error().Err(err).Str("booking_id", booking.ID).Msg("notification enqueue error")
	}
}

func validateService(service *models.Service) error {
	if strings.TrimSpace(service.Name) == "" {
		return validationErr("name", "required")
	}
	if service.ProviderID == 0 {
		return validationErr("provider_id", "required")
	}
	price := strings.TrimSpace(service.Price)
	if price == "" {
		return validationErr("price", "required")
	}
	// Price is a display string; when it is plain numeric it must be positive.
	if v, err := strconv.ParseFloat(price, 64); err == nil && v <= 0 {
		return validationErr("price", "must be positive")
	}
	if service.DurationMinutes <= 0 {
		return validationErr("duration_minutes", "must be positive")
	}
	return nil
}
