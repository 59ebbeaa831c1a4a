package services

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"form-analytics-server/database"
	"form-analytics-server/metrics"
	"form-analytics-server/models"
)

// EventPublisher hands an event to the notification channel. Implementations
// must not block and must not report delivery failures to the caller.
type EventPublisher interface {
	Publish(event models.ResponseEvent)
}

// SubmissionService stores responses and announces them.
type SubmissionService struct {
	store     database.Store
	publisher EventPublisher
	log       *logrus.Entry
}

func NewSubmissionService(store database.Store, publisher EventPublisher, log *logrus.Entry) *SubmissionService {
	return &SubmissionService{store: store, publisher: publisher, log: log}
}

// Submit validates values against the form and stores them. The broadcast
// happens after the write succeeds and never affects the result.
func (s *SubmissionService) Submit(ctx context.Context, formID string, values map[string]any, ipAddress string) (*models.Response, error) {
	form, err := s.store.GetForm(ctx, formID)
	if err != nil {
		return nil, err
	}

	values = models.NormalizeValues(values)
	if err := validateSubmission(form, values); err != nil {
		return nil, err
	}

	response, err := s.store.CreateResponse(ctx, form.ID, values, ipAddress)
	if err != nil {
		if errors.Is(err, database.ErrFormNotFound) {
			return nil, err
		}
		s.log.WithError(err).WithField("form_id", formID).Error("❌ Failed to store response")
		return nil, err
	}
	metrics.ResponsesSubmitted.WithLabelValues(s.store.Backend()).Inc()

	if s.publisher != nil {
		s.publisher.Publish(models.ResponseEvent{
			FormID:      form.ID,
			FormTitle:   form.Title,
			ResponseID:  response.ID,
			SubmittedAt: response.SubmittedAt,
		})
	}

	s.log.WithFields(logrus.Fields{"form_id": form.ID, "response_id": response.ID}).Info("📨 Response submitted")
	return response, nil
}

// validateSubmission enforces that keys are a subset of the form's fields,
// required fields are present and each value fits its field type. A blank
// string for an optional field counts as unanswered.
func validateSubmission(form *models.Form, values map[string]any) error {
	verr := &ValidationError{}

	for key := range values {
		if _, ok := form.FieldByID(key); !ok {
			verr.add("responses."+key, "Unknown field.")
		}
	}

	for _, field := range form.Fields {
		value, present := values[field.ID]
		if !present || value == nil || (!field.Required && isBlank(value)) {
			if field.Required {
				verr.add("responses."+field.ID, "This field is required.")
			}
			delete(values, field.ID)
			continue
		}
		if msg := checkValue(field, value); msg != "" {
			verr.add("responses."+field.ID, msg)
		}
	}

	return verr.orNil()
}

func isBlank(value any) bool {
	s, ok := value.(string)
	return ok && strings.TrimSpace(s) == ""
}
