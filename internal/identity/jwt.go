package identity

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// guestClaims carries the player identity inside the token.
type guestClaims struct {
	DisplayName string `json:"display_name"`
	jwt.RegisteredClaims
}

// JWT signs and verifies guest tokens with a shared HS256 secret.
type JWT struct {
	secret []byte
	ttl    time.Duration
}

// NewJWT creates a provider with the given signing secret. Tokens live for
// ttl; a casual game night fits comfortably inside a day.
func NewJWT(secret string, ttl time.Duration) *JWT {
	return &JWT{secret: []byte(secret), ttl: ttl}
}

// IssueGuest mints a token for a new guest with the given display name and
// a fresh UID.
func (j *JWT) IssueGuest(displayName string) (User, string, error) {
	user := User{UID: uuid.New().String(), DisplayName: displayName}
	claims := guestClaims{
		DisplayName: user.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.UID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(j.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
	if err != nil {
		return User{}, "", fmt.Errorf("failed to sign guest token: %w", err)
	}
	return user, signed, nil
}

// CurrentUser resolves the user from the request's bearer token.
func (j *JWT) CurrentUser(r *http.Request) (User, error) {
	raw := bearerToken(r)
	if raw == "" {
		return User{}, ErrUnauthenticated
	}

	token, err := jwt.ParseWithClaims(raw, &guestClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrUnauthenticated
		}
		return j.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return User{}, ErrTokenExpired
		}
		return User{}, ErrUnauthenticated
	}

	claims, ok := token.Claims.(*guestClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return User{}, ErrUnauthenticated
	}
	return User{UID: claims.Subject, DisplayName: claims.DisplayName}, nil
}

// Static resolves fixed token-to-user mappings. Test use only.
type Static map[string]User

func (s Static) CurrentUser(r *http.Request) (User, error) {
	if user, ok := s[bearerToken(r)]; ok {
		return user, nil
	}
	return User{}, ErrUnauthenticated
}
