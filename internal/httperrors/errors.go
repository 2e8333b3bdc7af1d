// Package httperrors provides error response formatting for the operator
// HTTP API.
package httperrors

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// ErrorCode represents application-specific error codes.
type ErrorCode string

const (
	ErrorCodeInvalidRequest  ErrorCode = "INVALID_REQUEST"
	ErrorCodeInternalError   ErrorCode = "INTERNAL_ERROR"
	ErrorCodeRateLimited     ErrorCode = "RATE_LIMITED"
	ErrorCodeNoCustodian     ErrorCode = "NO_CUSTODIAN_AVAILABLE"
	ErrorCodePeerNotFound    ErrorCode = "PEER_NOT_FOUND"
	ErrorCodeServiceDegraded ErrorCode = "SERVICE_DEGRADED"
)

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Status    string    `json:"status"`
	ErrorCode ErrorCode `json:"error_code"`
	Message   string    `json:"message"`
	RequestID string    `json:"request_id,omitempty"`
}

// Handler writes error responses in the standard format.
type Handler struct {
	logger *zap.Logger
}

// NewHandler creates a new error handler.
func NewHandler(logger *zap.Logger) *Handler {
	return &Handler{logger: logger}
}

// WriteErrorResponse writes a JSON error response with the given status.
func (h *Handler) WriteErrorResponse(w http.ResponseWriter, statusCode int, errorCode ErrorCode, message, requestID string) {
	resp := ErrorResponse{
		Status:    "error",
		ErrorCode: errorCode,
		Message:   message,
		RequestID: requestID,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("Failed to encode error response", zap.Error(err))
	}

	if statusCode >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.Int("status", statusCode),
			zap.String("error_code", string(errorCode)),
			zap.String("message", message),
			zap.String("request_id", requestID))
	}
}

// WriteValidationError writes a 400 response for a malformed request.
func (h *Handler) WriteValidationError(w http.ResponseWriter, message, requestID string) {
	h.WriteErrorResponse(w, http.StatusBadRequest, ErrorCodeInvalidRequest, message, requestID)
}
