package policy

import (
	"testing"
	"time"

	"repairhub/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestCancellationPolicy_Evaluate(t *testing.T) {
	p := NewCancellationPolicy(24 * time.Hour)
	ref := time.Date(2025, 1, 15, 11, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		now        time.Time
		wantWithin bool
		wantFee    string
	}{
		{"ImmediatelyAfter", ref.Add(time.Minute), true, models.FeeNone},
		{"WellWithinWindow", ref.Add(12 * time.Hour), true, models.FeeNone},
		{"ExactBoundary", ref.Add(24 * time.Hour), true, models.FeeNone},
		{"OneSecondPast", ref.Add(24*time.Hour + time.Second), false, models.FeeFull},
		{"DaysLater", ref.Add(72 * time.Hour), false, models.FeeFull},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := p.Evaluate(ref, tt.now)
			assert.Equal(t, tt.wantWithin, d.WithinFreeWindow)
			assert.Equal(t, tt.wantFee, d.Fee)
			assert.Equal(t, ref.Add(24*time.Hour), d.Deadline)
		})
	}
}

func TestCancellationPolicy_ConfirmedBookingWindow(t *testing.T) {
	// Booking created 2025-01-15T10:30:00Z, confirmed 11:00:00Z. Cancelling at
	// exactly 2025-01-16T11:00:00Z is free, one second later carries full fee.
	p := NewCancellationPolicy(24 * time.Hour)
	created := time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)
	confirmed := time.Date(2025, 1, 15, 11, 0, 0, 0, time.UTC)

	booking := &models.Booking{CreatedAt: created, ConfirmedAt: &confirmed}
	ref := ReferenceTime(booking)
	assert.Equal(t, confirmed, ref)

	free := p.Evaluate(ref, time.Date(2025, 1, 16, 11, 0, 0, 0, time.UTC))
	assert.True(t, free.WithinFreeWindow)
	assert.Equal(t, models.FeeNone, free.Fee)

	late := p.Evaluate(ref, time.Date(2025, 1, 16, 11, 0, 1, 0, time.UTC))
	assert.False(t, late.WithinFreeWindow)
	assert.Equal(t, models.FeeFull, late.Fee)
}

func TestReferenceTime_Unconfirmed(t *testing.T) {
	created := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	booking := &models.Booking{CreatedAt: created}
	assert.Equal(t, created, ReferenceTime(booking))
}

func TestNewCancellationPolicy_DefaultWindow(t *testing.T) {
	p := NewCancellationPolicy(0)
	assert.Equal(t, models.DefaultCancellationWindowHours*time.Hour, p.Window)
}
