package models

import "time"

type Booking struct {
	ID               string     `json:"id"`
	AccessSecretHash string     `json:"-"`
	ServiceID        int64      `json:"service_id"`
	ServiceName      string     `json:"service_name"`
	ProviderID       int64      `json:"provider_id"`
	ClientName       string     `json:"client_name"`
	ClientEmail      string     `json:"client_email"`
	ClientPhone      string     `json:"client_phone"`
	EquipmentType    string     `json:"equipment_type"`
	EquipmentModel   string     `json:"equipment_model,omitempty"`
	IssueDescription string     `json:"issue_description"`
	ServiceLocation  string     `json:"service_location"` // shop, residence
	ScheduledDate    time.Time  `json:"scheduled_date"`
	ScheduledTime    string     `json:"scheduled_time,omitempty"`
	Status           string     `json:"status"` // pending, confirmed, rejected, cancelled, completed
	CancellationFee  string     `json:"cancellation_fee,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	ConfirmedAt      *time.Time `json:"confirmed_at,omitempty"`
	CancelledAt      *time.Time `json:"cancelled_at,omitempty"`
	UpdatedAt        time.Time  `json:"updated_at"`
	Version          int64      `json:"version"`
}

// BookingInput carries the client-submitted fields of a new booking request.
type BookingInput struct {
	ServiceID        int64     `json:"service_id"`
	ClientName       string    `json:"client_name"`
	ClientEmail      string    `json:"client_email"`
	ClientPhone      string    `json:"client_phone"`
	EquipmentType    string    `json:"equipment_type"`
	EquipmentModel   string    `json:"equipment_model"`
	IssueDescription string    `json:"issue_description"`
	ServiceLocation  string    `json:"service_location"`
	ScheduledDate    time.Time `json:"scheduled_date"`
	ScheduledTime    string    `json:"scheduled_time"`
}

// CancellationOutcome reports the fee decision applied to a cancellation.
type CancellationOutcome struct {
	WithinFreeWindow bool      `json:"within_free_window"`
	Deadline         time.Time `json:"free_cancellation_deadline"`
	Fee              string    `json:"fee"`
}

// BookingStatusUpdate carries the fields a lifecycle transition writes.
// Nil/empty fields leave the stored values untouched.
type BookingStatusUpdate struct {
	Status          string
	ConfirmedAt     *time.Time
	CancelledAt     *time.Time
	CancellationFee string
}
