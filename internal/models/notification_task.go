package models

import "time"

// NotificationTask represents a queued delivery job in the outbox.
type NotificationTask struct {
	ID          int64      `json:"id"`
	Channel     string     `json:"channel"` // email, telegram
	BookingID   string     `json:"booking_id"`
	Recipient   string     `json:"recipient"`
	Payload     string     `json:"payload"`
	Status      string     `json:"status"` // pending, retry, completed, failed
	RetryCount  int        `json:"retry_count"`
	LastError   *string    `json:"last_error"`
	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at"`
	NextRetryAt *time.Time `json:"next_retry_at"`
}

const (
	ChannelEmail    = "email"
	ChannelTelegram = "telegram"
)

// ClientMessage is a rendered notification request for the booking owner.
type ClientMessage struct {
	Subject        string          `json:"subject"`
	TemplateKey    string          `json:"template_key"`
	Recipient      string          `json:"recipient"`
	BookingID      string          `json:"booking_id"`
	ClientName     string          `json:"client_name"`
	Body           string          `json:"body"`
	ServiceDetails *ServiceDetails `json:"service_details,omitempty"`
}

// ServiceDetails is the extended block attached to confirmation messages.
type ServiceDetails struct {
	ServiceName   string `json:"service_name"`
	EquipmentType string `json:"equipment_type"`
	PreferredDate string `json:"preferred_date"`
}
