package middleware

import (
	"crypto/subtle"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"weddinghub/internal/pkg/response"
)

// WebhookTokenAuth protects gateway callbacks with a static bearer token.
// An empty expected token disables the endpoint.
func WebhookTokenAuth(expected string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if expected == "" {
			logWebhookAuthFailure(c, http.StatusServiceUnavailable, "token_not_configured")
			response.Abort(c, http.StatusServiceUnavailable, "WEBHOOK_DISABLED", "Payment webhook is not configured")
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			logWebhookAuthFailure(c, http.StatusUnauthorized, "missing_auth")
			response.Abort(c, http.StatusUnauthorized, "AUTH_MISSING", "Authorization header is required")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			logWebhookAuthFailure(c, http.StatusUnauthorized, "invalid_auth_format")
			response.Abort(c, http.StatusUnauthorized, "AUTH_INVALID", "Authorization header must be 'Bearer <token>'")
			return
		}

		if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(expected)) != 1 {
			logWebhookAuthFailure(c, http.StatusForbidden, "invalid_token")
			response.Abort(c, http.StatusForbidden, "AUTH_INVALID", "Invalid webhook token")
			return
		}

		c.Next()
	}
}

func logWebhookAuthFailure(c *gin.Context, status int, reason string) {
	log.Printf("payment_webhook_auth status=%d client_ip=%s request_id=%s reason=%s", status, c.ClientIP(), requestID(c), reason)
}
