package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Mohhit1230/Chat-App/internal/core/domain"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Error:   errorMsg,
		TraceID: c.GetString("trace_id"),
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// ProfileResponse is the authenticated user's view of their session.
type ProfileResponse struct {
	UserID    string     `json:"_id,omitempty"`
	Email     string     `json:"email"`
	IssuedAt  *time.Time `json:"issued_at,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func newProfileResponse(claims *domain.Claims) ProfileResponse {
	resp := ProfileResponse{UserID: claims.Subject, Email: claims.Email}
	if !claims.IssuedAt.IsZero() {
		issued := claims.IssuedAt
		resp.IssuedAt = &issued
	}
	if !claims.ExpiresAt.IsZero() {
		expires := claims.ExpiresAt
		resp.ExpiresAt = &expires
	}
	return resp
}

// HealthResponse describes the service health payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadinessResponse reports dependency checks and the active revocation backend.
type ReadinessResponse struct {
	Status          string            `json:"status"`
	RevocationStore string            `json:"revocation_store"`
	Checks          map[string]string `json:"checks,omitempty"`
}
