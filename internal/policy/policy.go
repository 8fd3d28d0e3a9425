package policy

import (
	"time"

	"repairhub/internal/models"
)

// CancellationPolicy decides whether a booking may still be cancelled free of
// charge. The reference instant is the confirmation time when the booking has
// been confirmed, otherwise its creation time.
type CancellationPolicy struct {
	Window time.Duration
}

// Decision carries the outcome of a policy evaluation. Deadline is the last
// instant at which cancellation is still free, for display purposes.
type Decision struct {
	WithinFreeWindow bool
	Deadline         time.Time
	Fee              string
}

func NewCancellationPolicy(window time.Duration) CancellationPolicy {
	if window <= 0 {
		window = models.DefaultCancellationWindowHours * time.Hour
	}
	return CancellationPolicy{Window: window}
}

// Evaluate computes the free-window decision for a given reference timestamp
// and current time. The boundary instant itself is inside the window; one
// unit past it is outside.
func (p CancellationPolicy) Evaluate(reference, now time.Time) Decision {
	deadline := reference.Add(p.Window)
	within := !now.After(deadline)

	fee := models.FeeFull
	if within {
		fee = models.FeeNone
	}

	return Decision{
		WithinFreeWindow: within,
		Deadline:         deadline,
		Fee:              fee,
	}
}

// ReferenceTime returns the timestamp the window is measured from.
func ReferenceTime(b *models.Booking) time.Time {
	if b.ConfirmedAt != nil {
		return *b.ConfirmedAt
	}
	return b.CreatedAt
}
