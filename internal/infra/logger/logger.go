package logger

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	lg   *zap.Logger
	once sync.Once
)

// New returns the process-wide zap.Logger. Production uses JSON output with
// ISO timestamps; every other environment gets the colored console encoder.
func New(env string) (*zap.Logger, error) {
	var err error
	once.Do(func() {
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		if env == "production" {
			cfg = zap.NewProductionConfig()
			cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		}

		lg, err = cfg.Build(zap.Fields(zap.String("env", env)))
	})

	return lg, err
}

// RequestIDKey is used to store a request identifier on the context.
type RequestIDKey struct{}

// RequestIDFromContext returns the correlation identifier stored by the request ID middleware.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(RequestIDKey{}).(string)
	return id
}

// MaskToken hides a bearer credential, keeping only enough to correlate log lines.
// Example: "eyJhbGciOi...xyz9" -> "eyJh***xyz9"
func MaskToken(token string) string {
	switch {
	case token == "":
		return ""
	case len(token) <= 12:
		return "***"
	default:
		return token[:4] + "***" + token[len(token)-4:]
	}
}

// MaskIP keeps the network part of an address: two octets for IPv4, four
// groups for IPv6. Anything unparsable becomes "***".
func MaskIP(ip string) string {
	if ip == "" {
		return ""
	}

	parsed := net.ParseIP(ip)
	if parsed == nil {
		return "***"
	}
	if v4 := parsed.To4(); v4 != nil {
		return fmt.Sprintf("%d.%d.*.*", v4[0], v4[1])
	}

	groups := strings.SplitN(ip, ":", 5)
	if len(groups) < 5 {
		return "***"
	}
	return strings.Join(groups[:4], ":") + ":*:*:*:*"
}
