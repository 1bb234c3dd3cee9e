package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/cors"
)

const (
	defaultMaxBodyBytes   int64 = 1 << 20
	defaultMaxRequestWait       = 30 * time.Second
)

// Options tunes the router. Zero values select defaults.
type Options struct {
	// MaxBodyBytes limits JSON request bodies.
	MaxBodyBytes int64
	// MaxRequestWait caps the ?wait= long-poll on request endpoints.
	// Negative disables waiting.
	MaxRequestWait time.Duration
	// CORSOrigins enables CORS for the listed origins when non-empty.
	CORSOrigins []string
	CORSMethods []string
	CORSHeaders []string
}

func (o Options) withDefaults() Options {
	if o.MaxBodyBytes <= 0 {
		o.MaxBodyBytes = defaultMaxBodyBytes
	}
	switch {
	case o.MaxRequestWait == 0:
		o.MaxRequestWait = defaultMaxRequestWait
	case o.MaxRequestWait < 0:
		o.MaxRequestWait = 0
	}
	if len(o.CORSMethods) == 0 {
		o.CORSMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	}
	if len(o.CORSHeaders) == 0 {
		o.CORSHeaders = []string{"Content-Type", "X-Log-Level", "X-Request-Id"}
	}
	return o
}

// corsMiddleware returns nil when CORS is not configured.
func (o Options) corsMiddleware() func(http.Handler) http.Handler {
	if len(o.CORSOrigins) == 0 {
		return nil
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: o.CORSOrigins,
		AllowedMethods: o.CORSMethods,
		AllowedHeaders: o.CORSHeaders,
		MaxAge:         300,
	})
}
