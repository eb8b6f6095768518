package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"retailledger/internal/core/apperror"
)

const (
	HeaderIdempotencyKey       = "Idempotency-Key"
	HeaderLegacyIdempotencyKey = "X-Idempotency-Key"

	maxIdempotencyKeyLen = 255
	idempotencyKeyCtxKey = "idempotency_key"
)

// IdempotencyKey reads the client's idempotency key from mutating requests
// and stores it on the gin context. The engines deduplicate on it.
func IdempotencyKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost {
			c.Next()
			return
		}

		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			key = c.GetHeader(HeaderLegacyIdempotencyKey)
		}
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxIdempotencyKeyLen {
			_ = c.Error(apperror.NewValidation("idempotency key is too long").WithDetail("max_length", maxIdempotencyKeyLen))
			c.Abort()
			return
		}

		c.Set(idempotencyKeyCtxKey, key)
		c.Next()
	}
}

// GetIdempotencyKey returns the request's idempotency key or "".
func GetIdempotencyKey(c *gin.Context) string {
	return c.GetString(idempotencyKeyCtxKey)
}
