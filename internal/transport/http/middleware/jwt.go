package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"pdfshelf/internal/pkg/jwtutil"
	"pdfshelf/internal/transport/http/response"
)

// ContextUserIDKey holds the authenticated owner id (uint) for handlers.
const ContextUserIDKey = "user_id"

// AuthJWT accepts "Authorization: Bearer <access token>" and rejects
// everything else with 401.
func AuthJWT(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, msg := bearerToken(c.GetHeader("Authorization"))
		if msg != "" {
			unauthorized(c, msg)
			return
		}

		claims, err := jwtutil.ParseToken(secret, token)
		if err != nil || claims.UserID == 0 {
			unauthorized(c, "invalid or expired token")
			return
		}

		c.Set(ContextUserIDKey, claims.UserID)
		c.Next()
	}
}

func bearerToken(header string) (string, string) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", "missing authorization header"
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", "invalid authorization scheme"
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", "missing bearer token"
	}
	return token, ""
}

func unauthorized(c *gin.Context, msg string) {
	response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, msg)
	c.Abort()
}
