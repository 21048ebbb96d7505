package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Mohhit1230/Chat-App/internal/core/domain"
	"github.com/Mohhit1230/Chat-App/internal/usecase"
)

const (
	// SessionCookieName is the cookie carrying the session token.
	SessionCookieName = "token"
	// ClaimsKey is the gin context key holding *domain.Claims.
	ClaimsKey = "claims"
	// SessionTokenKey is the gin context key holding the presented token.
	SessionTokenKey = "session_token"

	unauthorizedMessage = "Unauthorized User"
)

// Gate evaluates request credentials.
type Gate interface {
	Evaluate(ctx context.Context, creds usecase.Credentials) domain.AuthDecision
}

// ErrorResponse matches the handlers.ErrorResponse structure
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// RequireAuth admits requests whose session token passes the gate. Every
// denial answers 401 with the same body; revoked tokens also drop the cookie.
func RequireAuth(gate Gate) gin.HandlerFunc {
	return func(c *gin.Context) {
		cookie, _ := c.Cookie(SessionCookieName)
		creds := usecase.Credentials{
			CookieToken:   cookie,
			Authorization: c.GetHeader("Authorization"),
		}

		decision := gate.Evaluate(c.Request.Context(), creds)
		if !decision.Allowed {
			if decision.ClearCookie {
				ClearSessionCookie(c)
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: unauthorizedMessage})
			return
		}

		c.Set(ClaimsKey, decision.Claims)
		c.Set(SessionTokenKey, decision.Token)
		if decision.Claims != nil {
			userID := decision.Claims.Identity()
			c.Set(UserIDKey, userID)
			if reqCtx := GetRequestContext(c); reqCtx != nil {
				reqCtx.UserID = userID
			}
		}

		c.Next()
	}
}

// ClearSessionCookie expires the session cookie on the client.
func ClearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookieName, "", -1, "/", "", false, true)
}

// GetClaims retrieves the verified claims stored by RequireAuth.
func GetClaims(c *gin.Context) (*domain.Claims, bool) {
	value, exists := c.Get(ClaimsKey)
	if !exists {
		return nil, false
	}
	claims, ok := value.(*domain.Claims)
	return claims, ok && claims != nil
}

// GetSessionToken retrieves the token admitted by RequireAuth.
func GetSessionToken(c *gin.Context) (string, bool) {
	token := c.GetString(SessionTokenKey)
	return token, token != ""
}

// GetAuthenticatedUserID retrieves the user ID from context (helper for handlers)
func GetAuthenticatedUserID(c *gin.Context) (string, bool) {
	id := c.GetString(UserIDKey)
	return id, id != ""
}
