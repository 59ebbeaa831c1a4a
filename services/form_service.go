package services

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"form-analytics-server/database"
	"form-analytics-server/models"
)

// FormService manages form definitions.
type FormService struct {
	store    database.Store
	validate *validator.Validate
	log      *logrus.Entry
}

func NewFormService(store database.Store, log *logrus.Entry) *FormService {
	return &FormService{
		store:    store,
		validate: NewValidator(),
		log:      log,
	}
}

func (s *FormService) Create(ctx context.Context, input models.FormInput) (*models.Form, error) {
	verr := &ValidationError{}
	if err := s.validate.Struct(input); err != nil {
		translateValidatorErrors(err, verr)
	}
	input.Fields = normalizeFields(input.Fields, "fields", verr)
	if err := verr.orNil(); err != nil {
		return nil, err
	}

	form, err := s.store.CreateForm(ctx, input)
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"form_id": form.ID, "fields": len(form.Fields)}).Info("📝 Form created")
	return form, nil
}

func (s *FormService) Get(ctx context.Context, id string) (*models.Form, error) {
	return s.store.GetForm(ctx, id)
}

func (s *FormService) List(ctx context.Context) ([]models.Form, error) {
	return s.store.ListForms(ctx)
}

func (s *FormService) Update(ctx context.Context, id string, patch models.FormPatch) (*models.Form, error) {
	verr := &ValidationError{}
	if err := s.validate.Struct(patch); err != nil {
		translateValidatorErrors(err, verr)
	}
	if patch.Fields != nil {
		fields := normalizeFields(*patch.Fields, "fields", verr)
		patch.Fields = &fields
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}

	// An empty patch still refreshes updated_at.
	form, err := s.store.UpdateForm(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	s.log.WithField("form_id", id).Info("✏️ Form updated")
	return form, nil
}

func (s *FormService) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteForm(ctx, id); err != nil {
		return err
	}
	s.log.WithField("form_id", id).Info("🗑️ Form deleted with its responses")
	return nil
}

// ListResponses returns a form's responses newest first.
func (s *FormService) ListResponses(ctx context.Context, formID string) ([]models.Response, error) {
	if _, err := s.store.GetForm(ctx, formID); err != nil {
		return nil, err
	}
	return s.store.ListResponses(ctx, formID, models.ResponseQuery{Order: models.NewestFirst})
}
