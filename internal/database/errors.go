package database

import "errors"

var (
	// ErrBookingNotFound is returned when a booking id does not exist in the store.
	ErrBookingNotFound = errors.New("booking not found")

	// ErrServiceNotFound is returned when a service id does not exist in the store.
	ErrServiceNotFound = errors.New("service not found")

	// ErrProviderNotFound is returned when a provider id does not exist in the store.
	ErrProviderNotFound = errors.New("provider not found")

	// ErrConcurrentModification is returned when a version-guarded update loses a race.
	ErrConcurrentModification = errors.New("booking was modified concurrently")
)
