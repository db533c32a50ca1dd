package auth

import (
	"context"
	"time"

	"golang.org/x/oauth2"
)

// ProviderConfig describes the OIDC public client.
type ProviderConfig struct {
	ClientID    string
	AuthURL     string
	TokenURL    string
	RedirectURL string
	Scopes      []string
	// Prompt is sent as the prompt parameter when non-empty.
	Prompt string
}

// Token is the result of a successful code exchange.
type Token struct {
	AccessToken string
	IDToken     string
	Expiry      time.Time
}

// Provider performs the Authorization Code + PKCE (S256) flow.
type Provider struct {
	config *oauth2.Config
	prompt string
}

// NewProvider constructs a Provider.
func NewProvider(cfg ProviderConfig) *Provider {
	return &Provider{
		config: &oauth2.Config{
			ClientID:    cfg.ClientID,
			RedirectURL: cfg.RedirectURL,
			Scopes:      cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		prompt: cfg.Prompt,
	}
}

// RedirectURL returns the configured callback address.
func (p *Provider) RedirectURL() string {
	return p.config.RedirectURL
}

// NewVerifier returns a fresh PKCE code verifier.
func NewVerifier() string {
	return oauth2.GenerateVerifier()
}

// AuthCodeURL builds the authorization redirect for state and verifier.
func (p *Provider) AuthCodeURL(state, verifier string) string {
	opts := []oauth2.AuthCodeOption{oauth2.S256ChallengeOption(verifier)}
	if p.prompt != "" {
		opts = append(opts, oauth2.SetAuthURLParam("prompt", p.prompt))
	}
	return p.config.AuthCodeURL(state, opts...)
}

// Exchange trades the authorization code for tokens.
func (p *Provider) Exchange(ctx context.Context, code, verifier string) (Token, error) {
	tok, err := p.config.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return Token{}, err
	}
	idToken, _ := tok.Extra("id_token").(string)
	return Token{
		AccessToken: tok.AccessToken,
		IDToken:     idToken,
		Expiry:      tok.Expiry,
	}, nil
}
