package domain

import (
	"context"
	"time"

	"repairhub/internal/models"
)

// Store is the persistence surface consumed by the services. Keyed-record
// access; no whole-collection snapshots.
type Store interface {
	CreateBooking(ctx context.Context, booking *models.Booking) error
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	UpdateBookingStatusWithVersion(ctx context.Context, id string, fromVersion int64, update *models.BookingStatusUpdate) error
	ListBookingsByStatus(ctx context.Context, providerID int64, status string) ([]*models.Booking, error)
	ListBookingsByProvider(ctx context.Context, providerID int64) ([]*models.Booking, error)
	ListBookingsByClient(ctx context.Context, email string) ([]*models.Booking, error)
	ListBookingsByService(ctx context.Context, serviceID int64) ([]*models.Booking, error)
	GetBookingsByDateRange(ctx context.Context, providerID int64, start, end time.Time) ([]*models.Booking, error)
	CountBookingsByStatus(ctx context.Context, providerID int64) (map[string]int, error)

	CreateService(ctx context.Context, service *models.Service) error
	GetService(ctx context.Context, id int64) (*models.Service, error)
	UpdateService(ctx context.Context, service *models.Service) error
	DeleteService(ctx context.Context, id, providerID int64) error
	ListServicesByProvider(ctx context.Context, providerID int64) ([]*models.Service, error)
	ListAvailableServices(ctx context.Context) ([]*models.Service, error)

	GetProvider(ctx context.Context, id int64) (*models.Provider, error)
	UpsertProvider(ctx context.Context, provider *models.Provider) error
	ListActiveProviders(ctx context.Context) ([]*models.Provider, error)
}

// Dispatcher accepts notification requests for asynchronous delivery.
// Enqueue failures are the caller's to log; they never block a transition.
type Dispatcher interface {
	EnqueueEmail(ctx context.Context, msg *models.ClientMessage) error
	EnqueueTelegram(ctx context.Context, chatID int64, bookingID, text string) error
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// EmailSender delivers a single rendered message. Implementations must be safe
// for concurrent use.
type EmailSender interface {
	Send(ctx context.Context, msg *models.ClientMessage) error
}

// TelegramSender delivers a plain-text message to a chat.
type TelegramSender interface {
	SendMessage(chatID int64, text string) error
}

// TrackingLimiter bounds anonymous id+secret lookups per caller key.
type TrackingLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// BookingService is the lifecycle surface exposed to the API layer.
type BookingService interface {
	CreateBooking(ctx context.Context, input *models.BookingInput) (*models.Booking, string, error)
	Track(ctx context.Context, id, secret string) (*models.Booking, error)
	Confirm(ctx context.Context, bookingID string, version int64, providerID int64) (*models.Booking, error)
	Reject(ctx context.Context, bookingID string, version int64, providerID int64) (*models.Booking, error)
	Complete(ctx context.Context, bookingID string, version int64, providerID int64) (*models.Booking, error)
	Cancel(ctx context.Context, id, secret string) (*models.Booking, *models.CancellationOutcome, error)
	ListByStatus(ctx context.Context, providerID int64, status string) ([]*models.Booking, error)
	ListByClient(ctx context.Context, email string) ([]*models.Booking, error)
	ListByProvider(ctx context.Context, providerID int64) ([]*models.Booking, error)
	CountByStatus(ctx context.Context, providerID int64) (map[string]int, error)
	BookingsForExport(ctx context.Context, providerID int64, start, end time.Time) ([]*models.Booking, error)
}

// CatalogService manages a provider's service listings.
type CatalogService interface {
	CreateService(ctx context.Context, service *models.Service) error
	GetService(ctx context.Context, id int64) (*models.Service, error)
	UpdateService(ctx context.Context, service *models.Service) error
	DeleteService(ctx context.Context, id, providerID int64) error
	ListByProvider(ctx context.Context, providerID int64) ([]*models.Service, error)
	ListAvailable(ctx context.Context) ([]*models.Service, error)
}
