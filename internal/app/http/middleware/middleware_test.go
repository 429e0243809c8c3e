package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saas-billing/internal/api/apierror"
)

func TestSanitizeAndCleanInputMiddleware(t *testing.T) {
	type payload struct {
		Reason      string `json:"reason"`
		Immediately bool   `json:"immediately"`
	}
	var got payload
	var bindErr error

	r := gin.New()
	r.Use(SanitizeAndCleanInputMiddleware())
	r.DELETE("/subscription", func(c *gin.Context) {
		got, bindErr = payload{}, nil
		if c.Request.ContentLength != 0 {
			bindErr = c.ShouldBindJSON(&got)
		}
		c.Status(http.StatusNoContent)
	})

	do := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodDelete, "/subscription", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := do(`{"reason":"<script>alert(1)</script>too <b>expensive</b>","immediately":true}`)
	require.Equal(t, http.StatusNoContent, w.Code)
	require.NoError(t, bindErr)
	assert.Equal(t, "too expensive", got.Reason)
	assert.True(t, got.Immediately)

	w = do("")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, payload{}, got)

	w = do(`{"reason":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(apierror.RequestIDKey))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-abc", w.Body.String())
	assert.Equal(t, "req-abc", w.Header().Get(RequestIDHeader))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, w.Body.String(), 36)
	assert.Equal(t, w.Body.String(), w.Header().Get(RequestIDHeader))
}

func TestRegisterValidators(t *testing.T) {
	require.NoError(t, RegisterValidators())

	type body struct {
		PlanID       string `json:"planId" binding:"required,plan_slug"`
		BillingCycle string `json:"billingCycle" binding:"required,billing_cycle"`
	}
	bind := func(raw string) error {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(raw))
		c.Request.Header.Set("Content-Type", "application/json")
		var b body
		return c.ShouldBindJSON(&b)
	}

	assert.NoError(t, bind(`{"planId":"starter","billingCycle":"yearly"}`))

	err := bind(`{"planId":"enterprise","billingCycle":"monthly"}`)
	require.Error(t, err)
	assert.Equal(t, "planId must be one of free, starter, pro", BindingMessage(err))

	err = bind(`{"planId":"pro","billingCycle":"weekly"}`)
	require.Error(t, err)
	assert.Equal(t, "billingCycle must be monthly or yearly", BindingMessage(err))

	err = bind(`{"billingCycle":"monthly"}`)
	require.Error(t, err)
	assert.Equal(t, "planId is required", BindingMessage(err))

	assert.Equal(t, "Malformed request body", BindingMessage(bind(`{`)))
}
