// Package httpapi serves the bidding dashboard REST API and the prebuilt
// frontend.
package httpapi

// DatesResponse is the response for GET /api/bidding/dates.
type DatesResponse struct {
	Dates []string `json:"dates"`
}

// HashResponse is the response for GET /api/password_hash.
type HashResponse struct {
	Hash string `json:"hash"`
}

// HealthResponse is the response for GET /api/health.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Service   string `json:"service"`
}

// ErrorResponse is the body of every JSON error.
type ErrorResponse struct {
	Error string `json:"error"`
}

// RealtimeErrorResponse is the body of a failed realtime proxy call. The
// frontend iterates data unconditionally, so it is always an empty array.
type RealtimeErrorResponse struct {
	Error string `json:"error"`
	Data  []any  `json:"data"`
}
