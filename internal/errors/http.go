// Package errors defines the JSON error envelope shared by all HTTP
// surfaces. Every non-2xx response carries this shape so clients can
// parse failures uniformly.
package errors

import (
	"encoding/json"
	"net/http"
)

// ErrorDetail is the inner error document of an HTTP error response.
type ErrorDetail struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	RequestID string         `json:"request_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// HTTPErrorResponse is the wire envelope for HTTP errors.
type HTTPErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// WriteHTTPError writes a JSON error envelope with the given status.
// requestID may be empty, in which case it is omitted from the body.
func WriteHTTPError(w http.ResponseWriter, status int, code, message, requestID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(HTTPErrorResponse{
		Error: ErrorDetail{
			Code:      code,
			Message:   message,
			RequestID: requestID,
		},
	})
}
