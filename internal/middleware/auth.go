package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kosarica/catalog-service/internal/apperror"
)

// APIKeyHeader carries the shared secret of internal callers.
const APIKeyHeader = "X-Internal-API-Key"

// InternalAuth checks the X-Internal-API-Key header against apiKey. An empty
// apiKey disables the check.
func InternalAuth(apiKey string) gin.HandlerFunc {
	if apiKey == "" {
		return func(c *gin.Context) { c.Next() }
	}
	apiKeyBytes := []byte(apiKey)

	return func(c *gin.Context) {
		key := c.GetHeader(APIKeyHeader)
		if subtle.ConstantTimeCompare([]byte(key), apiKeyBytes) != 1 {
			err := apperror.Client("Unauthorized.").WithStatus(http.StatusUnauthorized)
			c.AbortWithStatusJSON(err.HTTPStatus, err.Body())
			return
		}
		c.Next()
	}
}
