package models

import "time"

// Response is one submission against a form. Values is keyed by field id.
type Response struct {
	ID          string         `json:"id"`
	FormID      string         `json:"form_id"`
	Values      map[string]any `json:"responses"`
	SubmittedAt time.Time      `json:"submitted_at"`
	IPAddress   string         `json:"ip_address,omitempty"`
}

// SubmissionInput is the body of POST /forms/{id}/responses/.
type SubmissionInput struct {
	Responses map[string]any `json:"responses" binding:"required"`
}

type ResponseOrder int

const (
	NewestFirst ResponseOrder = iota
	OldestFirst
)

// ResponseQuery controls listing order and size. Limit <= 0 means unbounded.
type ResponseQuery struct {
	Order ResponseOrder
	Limit int
}

// NormalizeValue converts decoded driver values into the JSON-shaped set
// the rest of the code works with: string, float64, bool, []any and map[string]any.
func NormalizeValue(v any) any {
	switch x := v.(type) {
	case int:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case uint:
		return float64(x)
	case uint32:
		return float64(x)
	case uint64:
		return float64(x)
	case float32:
		return float64(x)
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = NormalizeValue(item)
		}
		return out
	case map[string]any:
		return NormalizeValues(x)
	}
	return v
}

func NormalizeValues(values map[string]any) map[string]any {
	out := make(map[string]any, len(values))
	for k, v := range values {
		out[k] = NormalizeValue(v)
	}
	return out
}
