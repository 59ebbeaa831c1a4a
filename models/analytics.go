package models

import "time"

// AnalyticsSummary is derived on demand and never stored.
type AnalyticsSummary struct {
	TotalForms      int                 `json:"totalForms"`
	TotalResponses  int64               `json:"totalResponses"`
	ResponsesByForm []FormResponseCount `json:"responsesByForm"`
	FieldAnalytics  []FieldAnalytics    `json:"fieldAnalytics"`
	RecentResponses []RecentResponse    `json:"recentResponses"`
}

type FormResponseCount struct {
	FormID        string `json:"formId"`
	FormTitle     string `json:"formTitle"`
	ResponseCount int64  `json:"responseCount"`
}

// FieldAnalytics holds the raw submitted values for one field, oldest first.
type FieldAnalytics struct {
	FieldID    string    `json:"fieldId"`
	FieldLabel string    `json:"fieldLabel"`
	FieldType  FieldType `json:"fieldType"`
	Options    []string  `json:"options,omitempty"`
	Responses  []any     `json:"responses"`
}

type RecentResponse struct {
	FormID      string    `json:"formId"`
	FormTitle   string    `json:"formTitle"`
	ResponseID  string    `json:"responseId"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// Event types pushed over the notification channel.
const (
	EventNewResponse = "new_response"
)

// ResponseEvent announces a stored submission.
type ResponseEvent struct {
	FormID      string    `json:"form_id"`
	FormTitle   string    `json:"form_title"`
	ResponseID  string    `json:"response_id"`
	SubmittedAt time.Time `json:"submitted_at"`
}
