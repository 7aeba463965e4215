package models

// API Error response
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

// ErrorResponse keeps a flat message/cause pair next to the structured error
// so browser clients can show the message without unwrapping.
type ErrorResponse struct {
	Message string   `json:"message"`
	Cause   string   `json:"cause,omitempty"`
	Error   APIError `json:"error"`
}
