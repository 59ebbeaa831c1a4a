package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"form-analytics-server/database"
	"form-analytics-server/models"
)

const ExportFormatCSV = "csv"

// ExportService renders a form's responses as a flat table.
type ExportService struct {
	store database.Store
}

func NewExportService(store database.Store) *ExportService {
	return &ExportService{store: store}
}

// UnsupportedFormat reports a validation error for any format but csv.
func UnsupportedFormat(format string) error {
	return &ValidationError{Fields: map[string]string{
		"format": fmt.Sprintf("Unsupported export format %q.", format),
	}}
}

// WriteCSV writes one header row and one row per response, oldest first.
// Columns are id, submitted_at, ip_address, then one per field label.
func (s *ExportService) WriteCSV(ctx context.Context, w io.Writer, formID string) (*models.Form, error) {
	form, err := s.store.GetForm(ctx, formID)
	if err != nil {
		return nil, err
	}
	responses, err := s.store.ListResponses(ctx, form.ID, models.ResponseQuery{Order: models.OldestFirst})
	if err != nil {
		return nil, err
	}

	cw := csv.NewWriter(w)
	header := []string{"response_id", "submitted_at", "ip_address"}
	for _, field := range form.Fields {
		header = append(header, field.Label)
	}
	if err := cw.Write(header); err != nil {
		return nil, err
	}

	for _, r := range responses {
		row := []string{r.ID, r.SubmittedAt.UTC().Format(time.RFC3339), r.IPAddress}
		for _, field := range form.Fields {
			row = append(row, formatCell(r.Values[field.ID]))
		}
		if err := cw.Write(row); err != nil {
			return nil, err
		}
	}

	cw.Flush()
	return form, cw.Error()
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case []any:
		parts := make([]string, len(x))
		for i, item := range x {
			parts[i] = formatCell(item)
		}
		return strings.Join(parts, "; ")
	}
	return fmt.Sprint(v)
}
