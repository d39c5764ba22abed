package exports

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"

	"sentra_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// APIKeyHeader carries the export API key.
const APIKeyHeader = "X-Export-API-Key"

// HashKey hashes a plaintext API key for comparison.
func HashKey(plaintext string) [32]byte {
	return sha256.Sum256([]byte(plaintext))
}

// APIKeyAuthMiddleware validates the export API key on export endpoints.
func APIKeyAuthMiddleware(apiKey string) gin.HandlerFunc {
	want := HashKey(apiKey)
	return func(c *gin.Context) {
		plaintext := c.GetHeader(APIKeyHeader)
		if plaintext == "" {
			httpkit.Error(c, http.StatusUnauthorized, "missing export API key", nil)
			c.Abort()
			return
		}

		got := HashKey(plaintext)
		if subtle.ConstantTimeCompare(got[:], want[:]) != 1 {
			httpkit.Error(c, http.StatusUnauthorized, "invalid export API key", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}
