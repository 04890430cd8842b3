package auth

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/platinummonkey/groundwork/pkg/apierr"
	"github.com/platinummonkey/groundwork/pkg/config"
	"github.com/platinummonkey/groundwork/pkg/models"
)

// MsgEmailUnverified rejects tokens whose provider has not verified the address
const MsgEmailUnverified = "email address is not verified"

// Claims are the identity fields read from a verified ID token
type Claims struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	// EmailVerified is nil when the provider omits the claim
	EmailVerified *bool  `json:"email_verified,omitempty"`
	Name          string `json:"name"`
}

// OIDCAuthenticator verifies ID tokens issued by the configured provider
type OIDCAuthenticator struct {
	verifier *oidc.IDTokenVerifier
	oauth2   *oauth2.Config
}

// NewOIDCAuthenticator discovers the provider and builds the verifier. The sign-in
// flow is enabled only when ClientSecret and RedirectURL are set.
func NewOIDCAuthenticator(ctx context.Context, cfg config.AuthConfig) (*OIDCAuthenticator, error) {
	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}

	var oauth2Config *oauth2.Config
	if cfg.ClientSecret != "" && cfg.RedirectURL != "" {
		oauth2Config = &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     provider.Endpoint(),
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
		}
	}

	return NewAuthenticator(provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}), oauth2Config), nil
}

// NewAuthenticator wraps an existing verifier. oauth2Config may be nil.
func NewAuthenticator(verifier *oidc.IDTokenVerifier, oauth2Config *oauth2.Config) *OIDCAuthenticator {
	return &OIDCAuthenticator{verifier: verifier, oauth2: oauth2Config}
}

// Authenticate verifies a raw ID token and returns its claims
func (a *OIDCAuthenticator) Authenticate(ctx context.Context, rawToken string) (*Claims, error) {
	idToken, err := a.verifier.Verify(ctx, rawToken)
	if err != nil {
		return nil, &apierr.Error{Code: apierr.CodeUnauthorized, Message: "invalid or expired token", Err: err}
	}

	var claims Claims
	if err := idToken.Claims(&claims); err != nil {
		return nil, &apierr.Error{Code: apierr.CodeUnauthorized, Message: "invalid token claims", Err: err}
	}
	claims.Subject = idToken.Subject
	claims.Email = models.NormalizeEmail(claims.Email)
	if claims.Email == "" {
		return nil, apierr.Unauthorized("token has no email claim")
	}
	if claims.EmailVerified != nil && !*claims.EmailVerified {
		return nil, apierr.Unauthorized(MsgEmailUnverified)
	}
	return &claims, nil
}

// SignInEnabled reports whether the code exchange is configured
func (a *OIDCAuthenticator) SignInEnabled() bool {
	return a.oauth2 != nil
}

// LoginURL returns the provider's authorization URL carrying state
func (a *OIDCAuthenticator) LoginURL(state string) string {
	return a.oauth2.AuthCodeURL(state)
}

// Exchange trades an authorization code for an ID token and verifies it
func (a *OIDCAuthenticator) Exchange(ctx context.Context, code string) (string, *Claims, error) {
	token, err := a.oauth2.Exchange(ctx, code)
	if err != nil {
		return "", nil, &apierr.Error{Code: apierr.CodeUnauthorized, Message: "failed to exchange authorization code", Err: err}
	}
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return "", nil, apierr.Unauthorized("provider response has no id_token")
	}
	claims, err := a.Authenticate(ctx, rawIDToken)
	if err != nil {
		return "", nil, err
	}
	return rawIDToken, claims, nil
}
