package gateway

import "time"

// User is the provider's public view of an account. Field names follow the
// JSON shape the provider emits, which is also what clients consume.
type User struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	EmailVerified bool      `json:"emailVerified"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Session is one authenticated browsing context. The gateway reads sessions,
// never mutates them; creation and expiry belong to the provider.
type Session struct {
	ID        string    `json:"id"`
	Token     string    `json:"token"`
	UserID    string    `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
	IPAddress string    `json:"ipAddress,omitempty"`
	UserAgent string    `json:"userAgent,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// SessionData pairs a resolved session with its owning user. A nil
// SessionData means the caller is anonymous; when non nil both fields are
// set, the middleware enforces that at its single write site.
type SessionData struct {
	Session *Session `json:"session"`
	User    *User    `json:"user"`
}
