package apierror

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"saas-billing/internal/domain/billing"
)

// RequestIDKey is the gin context key the request id middleware writes.
const RequestIDKey = "request_id"

// Status maps a billing error kind to its HTTP status.
func Status(kind billing.ErrorKind) int {
	switch kind {
	case billing.KindMissingSignature, billing.KindInvalidSignature, billing.KindInvalidRequest:
		return http.StatusBadRequest
	case billing.KindNotFound:
		return http.StatusNotFound
	case billing.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Respond aborts the request with the JSON error body for err.
// Internal causes are attached to the gin context for logging, never sent.
func Respond(c *gin.Context, err error) {
	kind := billing.KindOf(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(Status(kind), gin.H{
		"error":      billing.MessageOf(err),
		"code":       kind,
		"request_id": c.GetString(RequestIDKey),
	})
}

// BadRequest rejects a malformed body.
func BadRequest(c *gin.Context, msg string) {
	Respond(c, billing.InvalidRequest(msg, nil))
}
