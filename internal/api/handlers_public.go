package api

import (
	"net"
	"net/http"
	"strings"
	"time"

	"repairhub/internal/models"
)

// bookingView is the wire form of a booking. The access secret hash never
// leaves the service.
type bookingView struct {
	ID               string     `json:"id"`
	ServiceID        int64      `json:"service_id"`
	ServiceName      string     `json:"service_name"`
	ClientName       string     `json:"client_name"`
	ClientEmail      string     `json:"client_email"`
	ClientPhone      string     `json:"client_phone"`
	EquipmentType    string     `json:"equipment_type"`
	EquipmentModel   string     `json:"equipment_model,omitempty"`
	IssueDescription string     `json:"issue_description"`
	ServiceLocation  string     `json:"service_location"`
	ScheduledDate    string     `json:"scheduled_date"`
	ScheduledTime    string     `json:"scheduled_time"`
	Status           string     `json:"status"`
	CancellationFee  string     `json:"cancellation_fee,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	ConfirmedAt      *time.Time `json:"confirmed_at,omitempty"`
	CancelledAt      *time.Time `json:"cancelled_at,omitempty"`
	Version          int64      `json:"version"`
}

func toBookingView(b *models.Booking) bookingView {
	return bookingView{
		ID:               b.ID,
		ServiceID:        b.ServiceID,
		ServiceName:      b.ServiceName,
		ClientName:       b.ClientName,
		ClientEmail:      b.ClientEmail,
		ClientPhone:      b.ClientPhone,
		EquipmentType:    b.EquipmentType,
		EquipmentModel:   b.EquipmentModel,
		IssueDescription: b.IssueDescription,
		ServiceLocation:  b.ServiceLocation,
		ScheduledDate:    b.ScheduledDate.Format("2006-01-02"),
		ScheduledTime:    b.ScheduledTime,
		Status:           b.Status,
		CancellationFee:  b.CancellationFee,
		CreatedAt:        b.CreatedAt,
		ConfirmedAt:      b.ConfirmedAt,
		CancelledAt:      b.CancelledAt,
		Version:          b.Version,
	}
}

func toBookingViews(bookings []*models.Booking) []bookingView {
	views := make([]bookingView, 0, len(bookings))
	for _, b := range bookings {
		views = append(views, toBookingView(b))
	}
	return views
}

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	type request struct {
		ServiceID        int64  `json:"service_id"`
		ClientName       string `json:"client_name"`
		ClientEmail      string `json:"client_email"`
		ClientPhone      string `json:"client_phone"`
		EquipmentType    string `json:"equipment_type"`
		EquipmentModel   string `json:"equipment_model"`
		IssueDescription string `json:"issue_description"`
		ServiceLocation  string `json:"service_location"`
		ScheduledDate    string `json:"scheduled_date"`
		ScheduledTime    string `json:"scheduled_time"`
	}

	var body request
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var scheduledDate time.Time
	if strings.TrimSpace(body.ScheduledDate) != "" {
		parsed, err := time.Parse("2006-01-02", body.ScheduledDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid scheduled_date; expected YYYY-MM-DD")
			return
		}
		scheduledDate = parsed
	}

	input := &models.BookingInput{
		ServiceID:        body.ServiceID,
		ClientName:       body.ClientName,
		ClientEmail:      body.ClientEmail,
		ClientPhone:      body.ClientPhone,
		EquipmentType:    body.EquipmentType,
		EquipmentModel:   body.EquipmentModel,
		IssueDescription: body.IssueDescription,
		ServiceLocation:  body.ServiceLocation,
		ScheduledDate:    scheduledDate,
		ScheduledTime:    body.ScheduledTime,
	}

	booking, secret, err := s.bookings.CreateBooking(r.Context(), input)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"booking":       toBookingView(booking),
		"access_secret": secret,
	})
}

type trackRequest struct {
	ID     string `json:"id"`
	Secret string `json:"secret"`
}

func (s *HTTPServer) handleTrackBooking(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !s.allowTracking(w, r) {
		return
	}

	var body trackRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.ID == "" || body.Secret == "" {
		writeError(w, http.StatusBadRequest, "id and secret are required")
		return
	}

	booking, err := s.bookings.Track(r.Context(), body.ID, body.Secret)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"booking": toBookingView(booking)})
}

func (s *HTTPServer) handleCancelBooking(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !s.allowTracking(w, r) {
		return
	}

	var body trackRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.ID == "" || body.Secret == "" {
		writeError(w, http.StatusBadRequest, "id and secret are required")
		return
	}

	booking, outcome, err := s.bookings.Cancel(r.Context(), body.ID, body.Secret)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"booking": toBookingView(booking),
		"cancellation": map[string]any{
			"within_free_window": outcome.WithinFreeWindow,
			"deadline":           outcome.Deadline,
			"fee":                outcome.Fee,
		},
	})
}

func (s *HTTPServer) handleListServices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	services, err := s.catalog.ListAvailable(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"services": services})
}

// allowTracking applies the anonymous lookup rate limit keyed by client host.
// A broken limiter fails open; the bcrypt check still guards the data.
func (s *HTTPServer) allowTracking(w http.ResponseWriter, r *http.Request) bool {
	if s.tracker == nil {
		return true
	}

	limit := s.cfg.Tracking.Limit
	if limit <= 0 {
		limit = models.TrackingRateLimit
	}
	window := time.Duration(s.cfg.Tracking.Window) * time.Second
	if window <= 0 {
		window = models.TrackingRateWindow * time.Second
	}

	key := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		key = host
	}

	allowed, err := s.tracker.Allow(r.Context(), key, limit, window)
	if err != nil {
		s.logger.Error().Err(err).Msg("tracking limiter error")
		return true
	}
	if !allowed {
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return false
	}
	return true
}
