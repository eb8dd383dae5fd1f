package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/nagarseva-api/internal/apperror"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestRespondAppError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{"validation", apperror.Validation("title", "title is required"), http.StatusBadRequest, CodeValidationFailed, "title is required"},
		{"forbidden", apperror.Forbidden("not authorized"), http.StatusForbidden, CodeForbidden, "not authorized"},
		{"not verified", apperror.New(apperror.KindEmailNotVerified, "verify first"), http.StatusForbidden, CodeEmailNotVerified, "verify first"},
		{"expired token", apperror.New(apperror.KindInvalidOrExpiredToken, "invalid or expired token"), http.StatusBadRequest, CodeInvalidOrExpiredToken, "invalid or expired token"},
		{"dependency", apperror.Dependency("image upload failed", errors.New("s3 down")), http.StatusBadGateway, CodeDependencyFailure, "image upload failed"},
		{"internal hides message", apperror.Internal("db exploded", errors.New("pq: secret detail")), http.StatusInternalServerError, CodeInternalError, "internal server error"},
		{"unclassified", errors.New("boom"), http.StatusInternalServerError, CodeInternalError, "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			RespondAppError(rec, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			resp := decodeError(t, rec)
			assert.Equal(t, tt.wantCode, resp.Code)
			assert.Equal(t, tt.wantMsg, resp.Error)
		})
	}
}

func TestRespondAppErrorIncludesField(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondAppError(rec, apperror.Validation("urgency", "urgency must be one of Low, Medium, High"))

	resp := decodeError(t, rec)
	assert.Equal(t, "urgency", resp.Field)
}
