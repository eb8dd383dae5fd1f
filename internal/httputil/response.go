package httputil

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/redmonkez12/nagarseva-api/internal/apperror"
)

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	Field string `json:"field,omitempty"`
}

// RespondJSON sends a JSON response with the given status code.
// Logs encoding errors to avoid silent failures.
func RespondJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("ERROR: failed to encode JSON response: %v", err)
	}
}

// RespondError sends a JSON error response with the given message and status code.
func RespondError(w http.ResponseWriter, message string, statusCode int) {
	RespondJSON(w, ErrorResponse{Error: message}, statusCode)
}

// RespondErrorWithCode sends a JSON error response with a machine-readable error code.
func RespondErrorWithCode(w http.ResponseWriter, message string, code string, statusCode int) {
	RespondJSON(w, ErrorResponse{Error: message, Code: code}, statusCode)
}

// RespondAppError renders a classified application error. Internal errors
// never leak their message.
func RespondAppError(w http.ResponseWriter, err error) {
	kind := apperror.KindOf(err)
	status, code := StatusForKind(kind)

	resp := ErrorResponse{Code: code}
	var appErr *apperror.Error
	if errors.As(err, &appErr) && kind != apperror.KindInternal {
		resp.Error = appErr.Message
		resp.Field = appErr.Field
	} else {
		resp.Error = "internal server error"
	}

	RespondJSON(w, resp, status)
}

// StatusForKind maps an error kind to its HTTP status and response code.
func StatusForKind(kind apperror.Kind) (int, string) {
	switch kind {
	case apperror.KindValidation:
		return http.StatusBadRequest, CodeValidationFailed
	case apperror.KindConflict:
		return http.StatusConflict, CodeConflict
	case apperror.KindUnauthenticated:
		return http.StatusUnauthorized, CodeMissingAuth
	case apperror.KindForbidden:
		return http.StatusForbidden, CodeForbidden
	case apperror.KindNotFound:
		return http.StatusNotFound, CodeNotFound
	case apperror.KindInvalidCredentials:
		return http.StatusUnauthorized, CodeInvalidCredentials
	case apperror.KindEmailNotVerified:
		return http.StatusForbidden, CodeEmailNotVerified
	case apperror.KindInvalidOrExpiredToken:
		return http.StatusBadRequest, CodeInvalidOrExpiredToken
	case apperror.KindAlreadyVerified:
		return http.StatusConflict, CodeAlreadyVerified
	case apperror.KindUserNotFound:
		return http.StatusNotFound, CodeUserNotFound
	case apperror.KindDependencyFailure:
		return http.StatusBadGateway, CodeDependencyFailure
	default:
		return http.StatusInternalServerError, CodeInternalError
	}
}
