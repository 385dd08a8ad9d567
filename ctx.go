package gateway

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

const sessionLocalsKey = "gateway.session"

var sessionCtxKey = &contextKey{"session"}

type contextKey struct {
	name string
}

// WithResolvedSession publishes the resolved session pair on the request.
// This is the only write site for the request context slot: passing nil marks
// the caller anonymous, passing data with a missing half is rejected so the
// "user present iff session present" invariant cannot be broken downstream.
func WithResolvedSession(c *fiber.Ctx, data *SessionData) {
	if data != nil && (data.User == nil || data.Session == nil) {
		data = nil
	}
	c.Locals(sessionLocalsKey, data)
	c.SetUserContext(WithSessionContext(c.UserContext(), data))
}

// ResolvedSession returns the session pair published by the resolution
// middleware, or nil when the caller is anonymous.
func ResolvedSession(c *fiber.Ctx) *SessionData {
	data, ok := c.Locals(sessionLocalsKey).(*SessionData)
	if !ok {
		return nil
	}
	return data
}

// UserFromCtx is a convenience accessor for handlers that only care about the
// identity half of the pair.
func UserFromCtx(c *fiber.Ctx) (*User, bool) {
	data := ResolvedSession(c)
	if data == nil {
		return nil, false
	}
	return data.User, true
}

// SessionFromCtx is a convenience accessor for the session half of the pair.
func SessionFromCtx(c *fiber.Ctx) (*Session, bool) {
	data := ResolvedSession(c)
	if data == nil {
		return nil, false
	}
	return data.Session, true
}

// WithSessionContext sets the session pair in a standard context so code
// below the transport layer can read it without a fiber dependency.
func WithSessionContext(ctx context.Context, data *SessionData) context.Context {
	return context.WithValue(ctx, sessionCtxKey, data)
}

// SessionFromContext finds the session pair in a standard context.
func SessionFromContext(ctx context.Context) (*SessionData, bool) {
	data, ok := ctx.Value(sessionCtxKey).(*SessionData)
	if !ok || data == nil {
		return nil, false
	}
	return data, true
}
