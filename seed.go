package main

import (
	"context"

	"github.com/sirupsen/logrus"

	"form-analytics-server/models"
	"form-analytics-server/services"
)

func sampleForms() []models.FormInput {
	return []models.FormInput{
		{
			Title:       "Customer Feedback Survey",
			Description: "Help us improve our service by sharing your experience",
			Fields: []models.Field{
				{ID: "overall_rating", Type: models.FieldTypeRating, Label: "Overall Satisfaction", Required: true},
				{
					ID:       "service_quality",
					Type:     models.FieldTypeMultipleChoice,
					Label:    "How would you rate our service quality?",
					Options:  []string{"Excellent", "Good", "Average", "Poor"},
					Required: true,
				},
				{
					ID:      "features_used",
					Type:    models.FieldTypeCheckbox,
					Label:   "Which features did you use?",
					Options: []string{"Customer Support", "Online Portal", "Mobile App", "Email Notifications"},
				},
				{
					ID:         "comments",
					Type:       models.FieldTypeText,
					Label:      "Additional Comments",
					Validation: map[string]any{"minLength": 10, "maxLength": 500},
				},
			},
		},
		{
			Title:       "Event Registration Form",
			Description: "Register for our upcoming tech conference",
			Fields: []models.Field{
				{
					ID:         "full_name",
					Type:       models.FieldTypeText,
					Label:      "Full Name",
					Validation: map[string]any{"minLength": 2, "maxLength": 100},
					Required:   true,
				},
				{
					ID:       "experience_level",
					Type:     models.FieldTypeMultipleChoice,
					Label:    "Experience Level",
					Options:  []string{"Beginner", "Intermediate", "Advanced", "Expert"},
					Required: true,
				},
				{
					ID:       "interests",
					Type:     models.FieldTypeCheckbox,
					Label:    "Areas of Interest",
					Options:  []string{"AI/ML", "Web Development", "Mobile Development", "DevOps", "Data Science"},
					Required: true,
				},
				{ID: "session_rating", Type: models.FieldTypeRating, Label: "Expected Value (1-5 stars)"},
			},
		},
	}
}

// seedSampleForms creates the demo forms, but only into an empty store.
func seedSampleForms(ctx context.Context, forms *services.FormService, log *logrus.Entry) error {
	existing, err := forms.List(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		log.WithField("forms", len(existing)).Info("⏭️  Forms already exist, skipping sample data")
		return nil
	}

	for _, input := range sampleForms() {
		form, err := forms.Create(ctx, input)
		if err != nil {
			log.WithError(err).WithField("title", input.Title).Error("Failed to create sample form")
			return err
		}
		log.WithFields(logrus.Fields{"id": form.ID, "title": form.Title}).Info("✅ Created sample form")
	}
	return nil
}
