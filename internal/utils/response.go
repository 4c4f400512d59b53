package utils

import "time"

// APIResponse is the envelope for ticket-service endpoints that report an
// action rather than return a record; record endpoints (ticket lookup,
// verify, stats) write their payload bare. The timestamp is server time,
// handy when correlating POS terminal logs against a store that sits in a
// different clock domain.
type APIResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func SuccessResponse(message string, data interface{}) APIResponse {
	return APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
	}
}

// ErrorResponse carries the operator-facing message plus the underlying
// error detail for the terminal log.
func ErrorResponse(message, detail string) APIResponse {
	return APIResponse{
		Success:   false,
		Message:   message,
		Error:     detail,
		Timestamp: time.Now(),
	}
}
