package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"repairhub/internal/models"

	"github.com/xuri/excelize/v2"
)

var exportColumns = []string{
	"Booking ID", "Service", "Client", "Email", "Phone",
	"Equipment", "Location", "Date", "Time", "Status", "Fee",
}

// handleExport streams the provider's bookings for a date range as an xlsx
// workbook. Defaults to the trailing 30 days.
func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	providerID, ok := ProviderFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "provider identity missing")
		return
	}

	end := time.Now().UTC()
	start := end.AddDate(0, 0, -models.DefaultExportRangeDays)

	if raw := strings.TrimSpace(r.URL.Query().Get("start")); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid start date; expected YYYY-MM-DD")
			return
		}
		start = parsed
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("end")); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid end date; expected YYYY-MM-DD")
			return
		}
		end = parsed
	}
	if end.Before(start) {
		writeError(w, http.StatusBadRequest, "end date is before start date")
		return
	}

	bookings, err := s.bookings.BookingsForExport(r.Context(), providerID, start, end)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	f, err := buildExportWorkbook(bookings, start, end)
	if err != nil {
		s.logger.Error().Err(err).Msg("build export workbook error")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	defer f.Close()

	fileName := fmt.Sprintf("bookings_%s_to_%s.xlsx", start.Format("2006-01-02"), end.Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	if err := f.Write(w); err != nil {
		s.logger.Error().Err(err).Msg("write export workbook error")
	}
}

func buildExportWorkbook(bookings []*models.Booking, start, end time.Time) (*excelize.File, error) {
	f := excelize.NewFile()

	sheetName := "Bookings"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("error creating sheet: %v", err)
	}
	f.SetActiveSheet(index)

	_ = f.SetCellValue(sheetName, "A1", fmt.Sprintf("Period: %s - %s",
		start.Format("2006-01-02"), end.Format("2006-01-02")))

	for i, col := range exportColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(sheetName, cell, col)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	lastHeader, _ := excelize.CoordinatesToCellName(len(exportColumns), 2)
	_ = f.SetCellStyle(sheetName, "A2", lastHeader, headerStyle)

	for i, b := range bookings {
		row := i + 3
		values := []any{
			b.ID, b.ServiceName, b.ClientName, b.ClientEmail, b.ClientPhone,
			b.EquipmentType, b.ServiceLocation, b.ScheduledDate.Format("2006-01-02"),
			b.ScheduledTime, b.Status, b.CancellationFee,
		}
		for j, v := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, row)
			_ = f.SetCellValue(sheetName, cell, v)
		}
	}

	_ = f.SetColWidth(sheetName, "A", "B", 25)
	_ = f.SetColWidth(sheetName, "C", "K", 18)
	_ = f.DeleteSheet("Sheet1")

	return f, nil
}
