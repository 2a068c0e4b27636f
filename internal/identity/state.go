package identity

import (
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/oauth2"
)

// StateTTL bounds how long a sign-in attempt may take.
const StateTTL = 5 * time.Minute

var (
	// ErrInvalidState is returned when the state cookie is missing, forged,
	// expired or does not match the state echoed by the provider.
	ErrInvalidState = errors.New("identity: invalid oauth state")
)

// State is the per-attempt material carried across the provider redirect.
type State struct {
	Nonce     string
	Verifier  string
	Challenge string
	Next      string
}

type stateClaims struct {
	Nonce    string `json:"nonce"`
	Verifier string `json:"pkce"`
	Next     string `json:"next,omitempty"`
	jwt.RegisteredClaims
}

// StateSigner issues and verifies signed state tokens stored in a cookie.
type StateSigner struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewStateSigner derives a signing key from the session secret.
func NewStateSigner(secret string) (*StateSigner, error) {
	if secret == "" {
		return nil, errors.New("identity: state secret required")
	}
	key, err := DeriveKey(secret, "devcampus oauth state")
	if err != nil {
		return nil, err
	}
	return &StateSigner{key: key, ttl: StateTTL, now: time.Now}, nil
}

// DeriveKey expands secret into a 32 byte subkey bound to purpose.
func DeriveKey(secret, purpose string) ([]byte, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(purpose)), key); err != nil {
		return nil, fmt.Errorf("identity: derive key: %w", err)
	}
	return key, nil
}

// Issue creates a new sign-in attempt and its signed cookie value.
func (s *StateSigner) Issue(next string) (string, State, error) {
	st := State{
		Nonce:    uuid.NewString(),
		Verifier: oauth2.GenerateVerifier(),
		Next:     next,
	}
	st.Challenge = oauth2.S256ChallengeFromVerifier(st.Verifier)

	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, stateClaims{
		Nonce:    st.Nonce,
		Verifier: st.Verifier,
		Next:     st.Next,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	})
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", State{}, fmt.Errorf("identity: sign state: %w", err)
	}
	return signed, st, nil
}

// Verify parses the cookie value and checks it against the state query value.
func (s *StateSigner) Verify(cookieValue, echoed string) (*State, error) {
	if cookieValue == "" || echoed == "" {
		return nil, ErrInvalidState
	}
	var c stateClaims
	_, err := jwt.ParseWithClaims(cookieValue, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.key, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, ErrInvalidState
	}
	if !hmac.Equal([]byte(c.Nonce), []byte(echoed)) {
		return nil, ErrInvalidState
	}
	return &State{
		Nonce:     c.Nonce,
		Verifier:  c.Verifier,
		Challenge: oauth2.S256ChallengeFromVerifier(c.Verifier),
		Next:      c.Next,
	}, nil
}
