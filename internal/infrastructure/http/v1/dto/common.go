// Package dto provides Data Transfer Objects for API requests/responses.
package dto

// ErrorResponse is the body of every 4xx/5xx answer.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ListResponse wraps list results.
type ListResponse struct {
	Items any `json:"items"`
	Count int `json:"count"`
}

// NewListResponse wraps items of a slice of length n.
func NewListResponse(items any, n int) ListResponse {
	return ListResponse{Items: items, Count: n}
}
