package domain

import "errors"

var (
	// ErrBackendUnavailable indicates neither revocation backend could serve an operation.
	ErrBackendUnavailable = errors.New("revocation backend unavailable")
	// ErrConfigurationIncomplete indicates the remote backend lacks host, port or password.
	ErrConfigurationIncomplete = errors.New("remote revocation backend configuration incomplete")
	// ErrTokenExpired indicates the token signature is valid but its lifetime elapsed.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid indicates the token is malformed or carries a bad signature.
	ErrTokenInvalid = errors.New("token invalid")
)
