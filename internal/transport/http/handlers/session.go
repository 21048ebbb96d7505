package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Mohhit1230/Chat-App/internal/core/domain"
	"github.com/Mohhit1230/Chat-App/internal/transport/http/middleware"
	"github.com/Mohhit1230/Chat-App/internal/usecase"
)

// SessionRevoker ends a session.
type SessionRevoker interface {
	Logout(ctx context.Context, token string, claims *domain.Claims) error
}

// SessionHandler exposes logout and profile endpoints for authenticated users.
type SessionHandler struct {
	sessions SessionRevoker
}

// NewSessionHandler constructs a session handler.
func NewSessionHandler(sessions SessionRevoker) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// RegisterRoutes binds the session routes. The group must already require auth.
func (h *SessionHandler) RegisterRoutes(r *gin.RouterGroup) {
	if r == nil {
		return
	}

	r.POST("/logout", h.Logout)
	r.GET("/profile", h.Profile)
}

// Logout godoc
// @Summary Log out
// @Description Revokes the presented session token for its remaining lifetime and clears the session cookie.
// @Tags Users
// @Produce json
// @Success 200 {object} MessageResponse
// @Failure 401 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /api/v1/users/logout [post]
func (h *SessionHandler) Logout(c *gin.Context) {
	token, ok := middleware.GetSessionToken(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "Unauthorized User"))
		return
	}
	claims, _ := middleware.GetClaims(c)

	// A client hanging up mid-logout must not leave the token usable.
	ctx := context.WithoutCancel(c.Request.Context())
	if err := h.sessions.Logout(ctx, token, claims); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrTokenRequired, Status: http.StatusUnauthorized, Message: "Unauthorized User"},
			{Err: domain.ErrBackendUnavailable, Status: http.StatusServiceUnavailable, Message: "logout unavailable, try again"},
		}, http.StatusInternalServerError, "failed to log out")
		return
	}

	middleware.ClearSessionCookie(c)
	c.JSON(http.StatusOK, MessageResponse{Message: "Logged out successfully"})
}

// Profile godoc
// @Summary Current user
// @Description Returns the claims of the authenticated session.
// @Tags Users
// @Produce json
// @Success 200 {object} ProfileResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/users/profile [get]
func (h *SessionHandler) Profile(c *gin.Context) {
	claims, ok := middleware.GetClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "Unauthorized User"))
		return
	}
	c.JSON(http.StatusOK, newProfileResponse(claims))
}
