package auth

import (
	"crypto/subtle"
	"fmt"

	"prediction-engine/internal/models"

	"github.com/gin-gonic/gin"
)

// AdminKeyHeader may carry the admin secret instead of the request body
const AdminKeyHeader = "X-Admin-Key"

// KeyMatches compares a presented key to the configured secret in constant
// time. An empty secret never matches.
func KeyMatches(secret, key string) bool {
	if secret == "" || key == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(secret), []byte(key)) == 1
}

// RequireAdmin checks the key from the body, falling back to the header
func RequireAdmin(c *gin.Context, secret, bodyKey string) error {
	key := bodyKey
	if key == "" {
		key = c.GetHeader(AdminKeyHeader)
	}
	if !KeyMatches(secret, key) {
		return fmt.Errorf("admin key rejected: %w", models.ErrUnauthorized)
	}
	return nil
}
