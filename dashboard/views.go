package dashboard

import (
	"math"
	"strings"
	"time"

	"form-analytics-server/models"
)

const (
	textSampleCount = 3
	textSampleRunes = 100
	ratingScale     = 5
)

// ChoiceCount is how often one option was picked.
type ChoiceCount struct {
	Option string
	Count  int
}

type RatingStats struct {
	Count int
	Mean  float64
	// Histogram[i] counts ratings of i+1.
	Histogram [ratingScale]int
}

type TextStats struct {
	Count    int
	AvgWords float64
	Samples  []string
}

// FieldView is the presentation of one field's raw values, chosen by type.
type FieldView struct {
	FieldID string
	Label   string
	Type    models.FieldType
	Choices []ChoiceCount
	Rating  *RatingStats
	Text    *TextStats
}

type View struct {
	TotalForms     int
	TotalResponses int64
	AveragePerForm float64
	ThisWeek       int
	ByForm         []models.FormResponseCount
	Recent         []models.RecentResponse
	Fields         []FieldView
}

// BuildView turns a summary into the figures the dashboard renders.
func BuildView(summary *models.AnalyticsSummary, now time.Time) View {
	view := View{
		TotalForms:     summary.TotalForms,
		TotalResponses: summary.TotalResponses,
		ByForm:         summary.ResponsesByForm,
		Recent:         summary.RecentResponses,
	}
	if summary.TotalForms > 0 {
		view.AveragePerForm = round1(float64(summary.TotalResponses) / float64(summary.TotalForms))
	}

	weekAgo := now.Add(-7 * 24 * time.Hour)
	for _, r := range summary.RecentResponses {
		if !r.SubmittedAt.Before(weekAgo) {
			view.ThisWeek++
		}
	}

	for _, fa := range summary.FieldAnalytics {
		view.Fields = append(view.Fields, buildField(fa))
	}
	return view
}

func buildField(fa models.FieldAnalytics) FieldView {
	fv := FieldView{FieldID: fa.FieldID, Label: fa.FieldLabel, Type: fa.FieldType.Normalize()}
	switch fv.Type {
	case models.FieldTypeRating:
		fv.Rating = ratingStats(fa.Responses)
	case models.FieldTypeMultipleChoice, models.FieldTypeCheckbox:
		fv.Choices = tally(fa.Options, fa.Responses)
	default:
		fv.Text = textStats(fa.Responses)
	}
	return fv
}

// tally counts picks per option. Checkbox lists are flattened. Values not in
// options are appended in first-seen order.
func tally(options []string, values []any) []ChoiceCount {
	counts := make(map[string]int)
	order := append([]string(nil), options...)
	known := make(map[string]bool, len(options))
	for _, o := range options {
		known[o] = true
	}

	count := func(v any) {
		s, ok := v.(string)
		if !ok || s == "" {
			return
		}
		if !known[s] {
			known[s] = true
			order = append(order, s)
		}
		counts[s]++
	}
	for _, v := range values {
		if list, ok := v.([]any); ok {
			for _, item := range list {
				count(item)
			}
			continue
		}
		count(v)
	}

	out := make([]ChoiceCount, len(order))
	for i, o := range order {
		out[i] = ChoiceCount{Option: o, Count: counts[o]}
	}
	return out
}

func ratingStats(values []any) *RatingStats {
	stats := &RatingStats{}
	var sum float64
	for _, v := range values {
		n, ok := v.(float64)
		if !ok {
			continue
		}
		stats.Count++
		sum += n
		if n == math.Trunc(n) && n >= 1 && n <= ratingScale {
			stats.Histogram[int(n)-1]++
		}
	}
	if stats.Count > 0 {
		stats.Mean = round1(sum / float64(stats.Count))
	}
	return stats
}

func textStats(values []any) *TextStats {
	var texts []string
	for _, v := range values {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			texts = append(texts, s)
		}
	}

	stats := &TextStats{Count: len(texts)}
	if len(texts) == 0 {
		return stats
	}

	words := 0
	for _, s := range texts {
		words += len(strings.Fields(s))
	}
	stats.AvgWords = round1(float64(words) / float64(len(texts)))

	start := len(texts) - textSampleCount
	if start < 0 {
		start = 0
	}
	for _, s := range texts[start:] {
		stats.Samples = append(stats.Samples, truncate(s, textSampleRunes))
	}
	return stats
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}
