package services

import (
	"context"

	"form-analytics-server/database"
	"form-analytics-server/models"
)

const (
	GlobalRecentLimit = 20
	FormRecentLimit   = 10
)

// AnalyticsService derives summaries from the store on every call. There is
// no cache, so a summary always reflects the latest writes.
type AnalyticsService struct {
	store database.Store
}

func NewAnalyticsService(store database.Store) *AnalyticsService {
	return &AnalyticsService{store: store}
}

// GlobalSummary counts per form and sums those counts, so responses whose
// form has gone never contribute.
func (s *AnalyticsService) GlobalSummary(ctx context.Context) (*models.AnalyticsSummary, error) {
	forms, err := s.store.ListForms(ctx)
	if err != nil {
		return nil, err
	}

	summary := &models.AnalyticsSummary{
		TotalForms:      len(forms),
		ResponsesByForm: make([]models.FormResponseCount, 0, len(forms)),
		FieldAnalytics:  []models.FieldAnalytics{},
	}

	titles := make(map[string]string, len(forms))
	ids := make([]string, 0, len(forms))
	for _, form := range forms {
		count, err := s.store.CountResponses(ctx, form.ID)
		if err != nil {
			return nil, err
		}
		summary.TotalResponses += count
		summary.ResponsesByForm = append(summary.ResponsesByForm, models.FormResponseCount{
			FormID:        form.ID,
			FormTitle:     form.Title,
			ResponseCount: count,
		})
		titles[form.ID] = form.Title
		ids = append(ids, form.ID)
	}

	recent, err := s.store.ListRecentResponses(ctx, ids, GlobalRecentLimit)
	if err != nil {
		return nil, err
	}
	summary.RecentResponses = toRecent(recent, titles)
	return summary, nil
}

// FormSummary breaks one form down by field. Field values are listed in
// submission order; responses that skipped a field contribute nothing to it.
func (s *AnalyticsService) FormSummary(ctx context.Context, formID string) (*models.AnalyticsSummary, error) {
	form, err := s.store.GetForm(ctx, formID)
	if err != nil {
		return nil, err
	}

	count, err := s.store.CountResponses(ctx, form.ID)
	if err != nil {
		return nil, err
	}
	responses, err := s.store.ListResponses(ctx, form.ID, models.ResponseQuery{Order: models.OldestFirst})
	if err != nil {
		return nil, err
	}

	fields := make([]models.FieldAnalytics, 0, len(form.Fields))
	for _, field := range form.Fields {
		values := make([]any, 0, len(responses))
		for _, r := range responses {
			if v, ok := r.Values[field.ID]; ok {
				values = append(values, v)
			}
		}
		fields = append(fields, models.FieldAnalytics{
			FieldID:    field.ID,
			FieldLabel: field.Label,
			FieldType:  field.Type,
			Options:    field.Options,
			Responses:  values,
		})
	}

	recent, err := s.store.ListResponses(ctx, form.ID, models.ResponseQuery{Order: models.NewestFirst, Limit: FormRecentLimit})
	if err != nil {
		return nil, err
	}

	return &models.AnalyticsSummary{
		TotalForms:     1,
		TotalResponses: count,
		ResponsesByForm: []models.FormResponseCount{{
			FormID:        form.ID,
			FormTitle:     form.Title,
			ResponseCount: count,
		}},
		FieldAnalytics:  fields,
		RecentResponses: toRecent(recent, map[string]string{form.ID: form.Title}),
	}, nil
}

func toRecent(responses []models.Response, titles map[string]string) []models.RecentResponse {
	out := make([]models.RecentResponse, 0, len(responses))
	for _, r := range responses {
		out = append(out, models.RecentResponse{
			FormID:      r.FormID,
			FormTitle:   titles[r.FormID],
			ResponseID:  r.ID,
			SubmittedAt: r.SubmittedAt,
		})
	}
	return out
}
