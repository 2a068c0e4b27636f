package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// OIDCConfig carries the client registration at the provider.
type OIDCConfig struct {
	Issuer       string
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// OIDCProvider implements Provider on top of OpenID Connect discovery.
type OIDCProvider struct {
	oauth    *oauth2.Config
	verifier *oidc.IDTokenVerifier
	// sessions validates stored ID tokens; access token expiry governs
	// session lifetime so the ID token expiry is not checked there.
	sessions *oidc.IDTokenVerifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewOIDCProvider discovers the issuer and prepares the OAuth2 client.
func NewOIDCProvider(ctx context.Context, cfg OIDCConfig, logger *slog.Logger) (*OIDCProvider, error) {
	if cfg.Issuer == "" || cfg.ClientID == "" || cfg.RedirectURL == "" {
		return nil, errors.New("identity: oidc config missing required fields")
	}
	provider, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("identity: discover %s: %w", cfg.Issuer, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OIDCProvider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, oidc.ScopeOfflineAccess, "profile", "email"},
		},
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		sessions: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID, SkipExpiryCheck: true}),
		logger:   logger,
		now:      time.Now,
	}, nil
}

// AuthCodeURL builds the authorization URL with PKCE parameters.
func (p *OIDCProvider) AuthCodeURL(state, codeChallenge string) string {
	return p.oauth.AuthCodeURL(
		state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("code_challenge", codeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)
}

// ExchangeCode trades the authorization code for tokens and verifies the ID token.
func (p *OIDCProvider) ExchangeCode(ctx context.Context, code, codeVerifier string) (*Identity, *Token, error) {
	tok, err := p.oauth.Exchange(ctx, code, oauth2.VerifierOption(codeVerifier))
	if err != nil {
		return nil, nil, fmt.Errorf("identity: token exchange: %w", err)
	}
	rawIDToken, _ := tok.Extra("id_token").(string)
	if rawIDToken == "" {
		return nil, nil, errors.New("identity: provider did not return id_token")
	}
	ident, err := p.verify(ctx, p.verifier, rawIDToken)
	if err != nil {
		return nil, nil, err
	}
	return ident, fromOAuth(tok, rawIDToken), nil
}

// GetUser returns the identity behind tok, refreshing it when expired.
// Every failure collapses to ErrNoSession.
func (p *OIDCProvider) GetUser(ctx context.Context, tok Token) (*Identity, *Token, error) {
	if tok.Valid(p.now()) {
		ident, err := p.verify(ctx, p.sessions, tok.IDToken)
		if err != nil {
			p.logger.Debug("stored id_token rejected", slog.Any("error", err))
			return nil, nil, ErrNoSession
		}
		return ident, nil, nil
	}
	if tok.RefreshToken == "" {
		return nil, nil, ErrNoSession
	}

	refreshed, err := p.oauth.TokenSource(ctx, &oauth2.Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}).Token()
	if err != nil {
		p.logger.Debug("token refresh failed", slog.Any("error", err))
		return nil, nil, ErrNoSession
	}
	rawIDToken, _ := refreshed.Extra("id_token").(string)
	if rawIDToken == "" {
		rawIDToken = tok.IDToken
	}
	ident, err := p.verify(ctx, p.sessions, rawIDToken)
	if err != nil {
		p.logger.Debug("refreshed id_token rejected", slog.Any("error", err))
		return nil, nil, ErrNoSession
	}
	next := fromOAuth(refreshed, rawIDToken)
	if next.RefreshToken == "" {
		next.RefreshToken = tok.RefreshToken
	}
	return ident, next, nil
}

func (p *OIDCProvider) verify(ctx context.Context, verifier *oidc.IDTokenVerifier, raw string) (*Identity, error) {
	if raw == "" {
		return nil, errors.New("identity: empty id_token")
	}
	idToken, err := verifier.Verify(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("identity: verify id_token: %w", err)
	}
	var c claims
	if err := idToken.Claims(&c); err != nil {
		return nil, fmt.Errorf("identity: decode claims: %w", err)
	}
	return c.identity()
}

func fromOAuth(tok *oauth2.Token, rawIDToken string) *Token {
	return &Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		IDToken:      rawIDToken,
		Expiry:       tok.Expiry,
	}
}

var _ Provider = (*OIDCProvider)(nil)
