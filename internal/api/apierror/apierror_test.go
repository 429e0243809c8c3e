package apierror

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saas-billing/internal/domain/billing"
)

func TestRespond(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{"missing signature", billing.MissingSignature(), http.StatusBadRequest, "missing_signature", "Missing signature header"},
		{"invalid signature", billing.InvalidSignature(errors.New("bad mac")), http.StatusBadRequest, "invalid_signature", "Invalid signature"},
		{"invalid request", billing.InvalidRequest("You are already on this plan", nil), http.StatusBadRequest, "invalid_request", "You are already on this plan"},
		{"not found", billing.NotFound("No active subscription"), http.StatusNotFound, "not_found", "No active subscription"},
		{"conflict", billing.Conflict("You already have an active subscription"), http.StatusConflict, "conflict", "You already have an active subscription"},
		{"internal hides cause", billing.Internal("stripe failed", errors.New("secret detail")), http.StatusInternalServerError, "internal_error", "An internal error occurred. Please try again later."},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, "internal_error", "An internal error occurred. Please try again later."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Set(RequestIDKey, "req-1")

			Respond(c, tt.err)

			assert.Equal(t, tt.status, w.Code)
			assert.True(t, c.IsAborted())

			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.message, body["error"])
			assert.Equal(t, tt.code, body["code"])
			assert.Equal(t, "req-1", body["request_id"])
			assert.NotContains(t, w.Body.String(), "secret detail")
		})
	}
}
