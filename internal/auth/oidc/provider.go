// Package oidc performs the actual OAuth2/OIDC login flows for resolved
// client registrations, delegating to golang.org/x/oauth2 and
// github.com/coreos/go-oidc.
package oidc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"authgate/internal/registration"
)

// DefaultRedirectTemplate is used when a registration resolves without a
// redirect URI of its own.
const DefaultRedirectTemplate = "{baseUrl}/login/oauth2/code/{registrationId}"

// authStyles maps resolved client authentication methods onto the token
// endpoint auth styles of golang.org/x/oauth2. An absent method falls back
// to auto-detection.
var authStyles = map[registration.ClientAuthenticationMethod]oauth2.AuthStyle{
	registration.AuthMethodBasic: oauth2.AuthStyleInHeader,
	registration.AuthMethodPost:  oauth2.AuthStyleInParams,
}

// Client wraps the oauth2 config and token verification machinery for one
// resolved registration.
type Client struct {
	registrationID string
	oauth2Config   oauth2.Config
	verifier       *gooidc.IDTokenVerifier
	userInfoURI    string
}

// NewClient builds the login machinery for a resolved registration. The
// registration's endpoints are used as-is; no discovery round trip happens.
// When the registration carries a JWK set URI, ID tokens returned by the
// token endpoint are verified against it.
func NewClient(ctx context.Context, reg registration.ClientRegistration, baseURL string) (*Client, error) {
	if reg.AuthorizationURI == "" || reg.TokenURI == "" {
		return nil, fmt.Errorf("registration %q: authorization and token URIs are required for login", reg.RegistrationID)
	}

	style := oauth2.AuthStyleAutoDetect
	if s, ok := authStyles[reg.AuthenticationMethod]; ok {
		style = s
	}

	c := &Client{
		registrationID: reg.RegistrationID,
		userInfoURI:    reg.UserInfoURI,
		oauth2Config: oauth2.Config{
			ClientID:     reg.ClientID,
			ClientSecret: reg.ClientSecret,
			RedirectURL:  ExpandRedirectURI(reg.RedirectURI, baseURL, reg.RegistrationID),
			Scopes:       reg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   reg.AuthorizationURI,
				TokenURL:  reg.TokenURI,
				AuthStyle: style,
			},
		},
	}

	if reg.JWKSetURI != "" {
		keySet := gooidc.NewRemoteKeySet(ctx, reg.JWKSetURI)
		c.verifier = gooidc.NewVerifier("", keySet, &gooidc.Config{
			ClientID: reg.ClientID,
			// Registrations carry endpoints, not an issuer identity.
			SkipIssuerCheck: true,
		})
	}
	return c, nil
}

// ExpandRedirectURI substitutes the {baseUrl} and {registrationId}
// placeholders that template redirect URIs use. An empty URI falls back to
// DefaultRedirectTemplate.
func ExpandRedirectURI(uri, baseURL, registrationID string) string {
	if uri == "" {
		uri = DefaultRedirectTemplate
	}
	return strings.NewReplacer(
		"{baseUrl}", strings.TrimRight(baseURL, "/"),
		"{registrationId}", registrationID,
	).Replace(uri)
}

// RegistrationID returns the registration this client was built from.
func (c *Client) RegistrationID() string { return c.registrationID }

// RedirectURL returns the fully expanded redirect URL.
func (c *Client) RedirectURL() string { return c.oauth2Config.RedirectURL }

// AuthCodeURL generates the provider redirect URL with the given state.
func (c *Client) AuthCodeURL(state string, opts ...oauth2.AuthCodeOption) string {
	return c.oauth2Config.AuthCodeURL(state, opts...)
}

// Identity is the outcome of a completed login: the token plus whatever
// identity claims could be extracted.
type Identity struct {
	Token  *oauth2.Token
	Claims Claims
}

// Exchange swaps an authorization code for tokens and extracts identity
// claims. A returned ID token is verified when a JWK set URI was configured;
// otherwise claims come from the user-info endpoint when one is configured.
func (c *Client) Exchange(ctx context.Context, code string) (*Identity, error) {
	token, err := c.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("token exchange: %w", err)
	}

	ident := &Identity{Token: token}

	rawIDToken, hasIDToken := token.Extra("id_token").(string)
	if c.verifier != nil && hasIDToken {
		idToken, err := c.verifier.Verify(ctx, rawIDToken)
		if err != nil {
			return nil, fmt.Errorf("verify id_token: %w", err)
		}
		if err := idToken.Claims(&ident.Claims); err != nil {
			return nil, fmt.Errorf("extract claims: %w", err)
		}
		return ident, nil
	}

	if c.userInfoURI != "" {
		claims, err := c.fetchUserInfo(ctx, token)
		if err != nil {
			return nil, err
		}
		ident.Claims = claims
	}
	return ident, nil
}

// fetchUserInfo retrieves identity claims from the registration's user-info
// endpoint with the access token.
func (c *Client) fetchUserInfo(ctx context.Context, token *oauth2.Token) (Claims, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userInfoURI, nil)
	if err != nil {
		return Claims{}, fmt.Errorf("build user-info request: %w", err)
	}

	resp, err := c.oauth2Config.Client(ctx, token).Do(req)
	if err != nil {
		return Claims{}, fmt.Errorf("fetch user-info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Claims{}, fmt.Errorf("user-info endpoint returned %d", resp.StatusCode)
	}

	var claims Claims
	if err := json.NewDecoder(resp.Body).Decode(&claims); err != nil {
		return Claims{}, fmt.Errorf("decode user-info: %w", err)
	}
	return claims, nil
}
