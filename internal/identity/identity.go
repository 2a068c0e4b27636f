// Package identity talks to the external OpenID Connect provider. It reports
// identity facts and token material only; it makes no access decisions.
package identity

import (
	"context"
	"errors"
	"time"
)

// ErrNoSession reports missing, invalid or expired credential material.
var ErrNoSession = errors.New("identity: no session")

// expirySkew treats tokens that are about to expire as already expired.
const expirySkew = 30 * time.Second

// Identity is the authenticated principal as reported by the provider.
type Identity struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	DisplayName   string `json:"full_name,omitempty"`
	Name          string `json:"name,omitempty"`
	AvatarURL     string `json:"avatar_url,omitempty"`
	Picture       string `json:"picture,omitempty"`
}

// Token is the provider session material kept server side.
type Token struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	IDToken      string    `json:"id_token"`
	Expiry       time.Time `json:"expiry"`
}

// Valid reports whether the access token can still be used at now.
func (t Token) Valid(now time.Time) bool {
	if t.AccessToken == "" {
		return false
	}
	if t.Expiry.IsZero() {
		return true
	}
	return now.Add(expirySkew).Before(t.Expiry)
}

// Provider is the identity provider contract consumed by the sign-in flow and
// the session resolver.
type Provider interface {
	// AuthCodeURL returns the authorization URL for a PKCE code flow.
	AuthCodeURL(state, codeChallenge string) string
	// ExchangeCode trades an authorization code for an identity and token.
	ExchangeCode(ctx context.Context, code, codeVerifier string) (*Identity, *Token, error)
	// GetUser validates tok and returns the identity behind it. When the
	// provider had to refresh the token the new token is returned, otherwise
	// the returned token is nil.
	GetUser(ctx context.Context, tok Token) (*Identity, *Token, error)
}

type claims struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	FullName      string `json:"full_name"`
	Name          string `json:"name"`
	AvatarURL     string `json:"avatar_url"`
	Picture       string `json:"picture"`
}

func (c claims) identity() (*Identity, error) {
	if c.Subject == "" || c.Email == "" {
		return nil, errors.New("identity: id_token missing sub or email")
	}
	return &Identity{
		ID:            c.Subject,
		Email:         c.Email,
		EmailVerified: c.EmailVerified,
		DisplayName:   c.FullName,
		Name:          c.Name,
		AvatarURL:     c.AvatarURL,
		Picture:       c.Picture,
	}, nil
}
