package notify

import (
	"fmt"

	"repairhub/internal/models"
)

// BuildClientMessage renders the outgoing client message for a booking status.
// Only confirmation messages carry the service details block; rejection and
// completion notices are plain. Cancellations produce no client message at all
// and are not handled here.
func BuildClientMessage(status string, booking *models.Booking) (*models.ClientMessage, error) {
	msg := &models.ClientMessage{
		Recipient:  booking.ClientEmail,
		BookingID:  booking.ID,
		ClientName: booking.ClientName,
	}

	switch status {
	case models.StatusConfirmed:
		msg.TemplateKey = "booking_confirmed"
		msg.Subject = fmt.Sprintf("Booking %s confirmed", booking.ID)
		msg.Body = fmt.Sprintf(
			"Hello %s,\n\nYour booking %s has been confirmed. We look forward to seeing you on %s at %s.",
			booking.ClientName, booking.ID, booking.ScheduledDate.Format("2006-01-02"), booking.ScheduledTime,
		)
		msg.ServiceDetails = &models.ServiceDetails{
			ServiceName:   booking.ServiceName,
			EquipmentType: booking.EquipmentType,
			PreferredDate: booking.ScheduledDate.Format("2006-01-02"),
		}
	case models.StatusRejected:
		msg.TemplateKey = "booking_rejected"
		msg.Subject = fmt.Sprintf("Booking %s could not be accepted", booking.ID)
		msg.Body = fmt.Sprintf(
			"Hello %s,\n\nUnfortunately your booking %s could not be accepted. You are welcome to book a different time or service.",
			booking.ClientName, booking.ID,
		)
	case models.StatusCompleted:
		msg.TemplateKey = "booking_completed"
		msg.Subject = fmt.Sprintf("Booking %s completed", booking.ID)
		msg.Body = fmt.Sprintf(
			"Hello %s,\n\nYour booking %s is complete. Thank you for choosing us.",
			booking.ClientName, booking.ID,
		)
	default:
		return nil, fmt.Errorf("no client message for status %q", status)
	}

	return msg, nil
}
