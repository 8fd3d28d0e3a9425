package api

import (
	"net/http"
	"strconv"
	"strings"

	"repairhub/internal/models"
)

func (s *HTTPServer) handleProviderBookings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	providerID, ok := ProviderFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "provider identity missing")
		return
	}

	status := strings.TrimSpace(r.URL.Query().Get("status"))
	clientEmail := strings.TrimSpace(r.URL.Query().Get("client_email"))

	var bookings []*models.Booking
	var err error
	switch {
	case clientEmail != "":
		bookings, err = s.bookings.ListByClient(r.Context(), clientEmail)
		if err == nil {
			// Client search spans providers; keep only this provider's rows.
			own := bookings[:0]
			for _, b := range bookings {
				if b.ProviderID == providerID {
					own = append(own, b)
				}
			}
			bookings = own
		}
	case status != "":
		bookings, err = s.bookings.ListByStatus(r.Context(), providerID, status)
	default:
		bookings, err = s.bookings.ListByProvider(r.Context(), providerID)
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"bookings": toBookingViews(bookings)})
}

// transitionHandler builds the handler for one provider-side lifecycle event.
func (s *HTTPServer) transitionHandler(event string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		providerID, ok := ProviderFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "provider identity missing")
			return
		}

		type request struct {
			ID      string `json:"id"`
			Version int64  `json:"version"`
		}
		var body request
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if body.ID == "" {
			writeError(w, http.StatusBadRequest, "id is required")
			return
		}

		var booking *models.Booking
		var err error
		switch event {
		case "confirm":
			booking, err = s.bookings.Confirm(r.Context(), body.ID, body.Version, providerID)
		case "reject":
			booking, err = s.bookings.Reject(r.Context(), body.ID, body.Version, providerID)
		case "complete":
			booking, err = s.bookings.Complete(r.Context(), body.ID, body.Version, providerID)
		default:
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"booking": toBookingView(booking)})
	}
}

func (s *HTTPServer) handleProviderStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	providerID, ok := ProviderFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "provider identity missing")
		return
	}

	counts, err := s.bookings.CountByStatus(r.Context(), providerID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"counts": counts})
}

func (s *HTTPServer) handleProviderServices(w http.ResponseWriter, r *http.Request) {
	providerID, ok := ProviderFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "provider identity missing")
		return
	}

	switch r.Method {
	case http.MethodGet:
		services, err := s.catalog.ListByProvider(r.Context(), providerID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"services": services})
	case http.MethodPost:
		var svc models.Service
		if err := decodeJSON(r, &svc); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		svc.ProviderID = providerID
		if err := s.catalog.CreateService(r.Context(), &svc); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"service": svc})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handleProviderServiceByID(w http.ResponseWriter, r *http.Request) {
	providerID, ok := ProviderFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "provider identity missing")
		return
	}

	const prefix = "/api/v1/provider/services/"
	raw := strings.TrimPrefix(r.URL.Path, prefix)
	if raw == "" || strings.Contains(raw, "/") {
		writeError(w, http.StatusBadRequest, "service id is required")
		return
	}
	serviceID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid service id")
		return
	}

	switch r.Method {
	case http.MethodPut:
		var svc models.Service
		if err := decodeJSON(r, &svc); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		svc.ID = serviceID
		svc.ProviderID = providerID
		if err := s.catalog.UpdateService(r.Context(), &svc); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"service": svc})
	case http.MethodDelete:
		if err := s.catalog.DeleteService(r.Context(), serviceID, providerID); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}
