package httpapi

import (
	"time"

	"golang.org/x/time/rate"
)

// maxBodyBytes controls the maximum allowed request body size for JSON endpoints.
var maxBodyBytes int64 = 1 << 20

// SetMaxBodyBytes allows configuring the maximum request body size.
func SetMaxBodyBytes(n int64) {
	if n <= 0 {
		maxBodyBytes = 1 << 20
		return
	}
	maxBodyBytes = n
}

// inferTimeout bounds one /infer request. Zero means no additional timeout
// beyond the per-tier backend timeouts.
var inferTimeout time.Duration

// SetInferTimeout sets the /infer timeout (0 disables).
func SetInferTimeout(d time.Duration) {
	if d < 0 {
		d = 0
	}
	inferTimeout = d
}

// inferLimiter admits /infer requests; nil admits everything.
var inferLimiter *rate.Limiter

// SetRateLimit installs a token bucket on /infer. rps <= 0 disables it.
func SetRateLimit(rps float64, burst int) {
	if rps <= 0 {
		inferLimiter = nil
		return
	}
	if burst < 1 {
		burst = 1
	}
	inferLimiter = rate.NewLimiter(rate.Limit(rps), burst)
}

// CORS configuration (opt-in). If disabled, no CORS middleware is added.
var (
	corsEnabled        bool
	corsAllowedOrigins []string
	corsAllowedMethods []string
	corsAllowedHeaders []string
)

// SetCORSOptions configures CORS behavior for the HTTP server.
func SetCORSOptions(enabled bool, origins, methods, headers []string) {
	corsEnabled = enabled
	corsAllowedOrigins = append([]string(nil), origins...)
	corsAllowedMethods = append([]string(nil), methods...)
	corsAllowedHeaders = append([]string(nil), headers...)
}

var swaggerEnabled bool

// SetSwaggerEnabled toggles the /swagger/ UI.
func SetSwaggerEnabled(on bool) { swaggerEnabled = on }
