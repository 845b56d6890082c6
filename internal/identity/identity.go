// Package identity resolves the acting player from an HTTP request. Games
// are casual and accounts are throwaway: a guest picks a display name, gets
// a signed token, and presents it on every call.
package identity

import (
	"errors"
	"net/http"
	"strings"
)

var (
	ErrUnauthenticated = errors.New("missing or invalid credentials")
	ErrTokenExpired    = errors.New("token expired")
)

// User is an authenticated player identity.
type User struct {
	UID         string
	DisplayName string
}

// Provider resolves the user behind a request.
type Provider interface {
	CurrentUser(r *http.Request) (User, error)
}

// bearerToken pulls the credential from the Authorization header, falling
// back to the token query parameter for WebSocket upgrades, where browsers
// cannot set headers.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if tok, ok := strings.CutPrefix(h, "Bearer "); ok {
			return tok
		}
		return ""
	}
	return r.URL.Query().Get("token")
}
