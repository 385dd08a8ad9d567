package gateway

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

type resolver struct {
	provider IdentityProvider
	logger   Logger
	metrics  *Collector
}

// ResolverOption configures the session resolution middleware.
type ResolverOption func(*resolver)

func WithResolverLogger(l Logger) ResolverOption {
	return func(r *resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

func WithResolverMetrics(m *Collector) ResolverOption {
	return func(r *resolver) {
		r.metrics = m
	}
}

// SessionResolver returns the middleware that resolves the caller's session
// on every request and publishes it on the request context. It never rejects
// a request: resolution failures count as "no session" so one malformed
// cookie cannot take down unrelated routes. Authorization stays with each
// handler.
func SessionResolver(provider IdentityProvider, opts ...ResolverOption) fiber.Handler {
	if provider == nil {
		panic("session resolver requires an identity provider")
	}

	r := &resolver{
		provider: provider,
		logger:   defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}

	return func(c *fiber.Ctx) error {
		data, err := r.provider.GetSession(c.UserContext(), RequestHeaders(c))
		if err != nil {
			// Fail open: swallowed by contract, but surfaced to operators
			// through the counter and a log line.
			r.metrics.RecordResolution(ResolutionError)
			r.logger.Warn("session resolution failed, continuing anonymous", "error", err, "path", c.Path())
			WithResolvedSession(c, nil)
			return c.Next()
		}

		if data == nil {
			r.metrics.RecordResolution(ResolutionAnonymous)
			WithResolvedSession(c, nil)
			return c.Next()
		}

		r.metrics.RecordResolution(ResolutionAuthenticated)
		WithResolvedSession(c, data)
		return c.Next()
	}
}

// RequestHeaders copies the inbound fiber headers into a net/http Header so
// the provider boundary stays framework neutral.
func RequestHeaders(c *fiber.Ctx) http.Header {
	headers := http.Header{}
	for key, values := range c.GetReqHeaders() {
		for _, value := range values {
			headers.Add(key, value)
		}
	}
	return headers
}
