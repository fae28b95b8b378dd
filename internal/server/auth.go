package restapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/havenhealth/haven/internal/i18n"
	debuglog "github.com/havenhealth/haven/internal/log"
)

const (
	ctxUserID  = "haven.user_id"
	ctxIsAdmin = "haven.is_admin"
)

// Claims is the subset of a Supabase access token haven reads.
type Claims struct {
	jwt.RegisteredClaims
	Role        string         `json:"role,omitempty"`
	Email       string         `json:"email,omitempty"`
	AppMetadata map[string]any `json:"app_metadata,omitempty"`
}

// IsAdmin reports service-role tokens and users flagged admin in
// app_metadata.
func (c *Claims) IsAdmin() bool {
	if c.Role == "service_role" {
		return true
	}
	role, _ := c.AppMetadata["role"].(string)
	return role == "admin"
}

// Authenticator verifies HS256 tokens signed with the project's JWT secret.
type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

func (a *Authenticator) Parse(token string) (*Claims, error) {
	if len(a.secret) == 0 {
		return nil, errors.New(i18n.T("functions_error_auth_not_configured"))
	}
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(claims.Subject) == "" && !claims.IsAdmin() {
		return nil, errors.New("token has no subject")
	}
	return &claims, nil
}

// Middleware rejects requests without a valid bearer token and stores the
// caller's user id in the gin context.
func (a *Authenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(a.secret) == 0 {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": i18n.T("functions_error_auth_not_configured")})
			return
		}
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": i18n.T("functions_error_unauthorized")})
			return
		}
		claims, err := a.Parse(strings.TrimSpace(token))
		if err != nil {
			debuglog.Debug(debuglog.Detailed, "auth: rejected token: %v\n", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": i18n.T("functions_error_unauthorized")})
			return
		}
		c.Set(ctxUserID, claims.Subject)
		c.Set(ctxIsAdmin, claims.IsAdmin())
		c.Next()
	}
}

// RequireAdmin must run after Middleware.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !c.GetBool(ctxIsAdmin) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": i18n.T("functions_error_forbidden")})
			return
		}
		c.Next()
	}
}

func userID(c *gin.Context) string {
	return c.GetString(ctxUserID)
}
