package auth

import (
	"fmt"
	"net/http"
	"strings"
)

const IdentityHeader = "X-Identity"

// MockClient trusts the identity sent by the peer, in cookie `x-identity` or header `X-Identity`.
type MockClient struct {
	Client
}

func (c *MockClient) Auth(r *http.Request) (string, error) {
	var id string

	if c, err := r.Cookie("x-identity"); err == nil {
		id = c.Value
	}
	if id == "" {
		id = r.Header.Get(IdentityHeader)
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("empty x-identity from cookie or header")
	}
	if strings.ContainsAny(id, " \t\r\n") {
		return "", fmt.Errorf("invalid identity: %q", id)
	}
	return id, nil
}
