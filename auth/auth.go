package auth

import (
	"net/http"
	"strings"
)

// Identity of the current session. The chat core treats it as read-only.
type Identity struct {
	ID          string // stable, e.g. account email.
	DisplayName string // optional, from the identity provider.
}

// Provider exposes the identity of the current session.
type Provider interface {
	Current() Identity
}

// Static is a fixed identity provider.
type Static Identity

func (s Static) Current() Identity {
	return Identity(s)
}

// LocalPart returns the part of `id` before `@`, or `id` itself.
func LocalPart(id string) string {
	if i := strings.IndexByte(id, '@'); i >= 0 {
		return id[:i]
	}
	return id
}

type Client interface {
	// Auth authenticate current user, return identity.
	Auth(r *http.Request) (string, error)
}
