package api

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"

	"authgate/internal/auth/oidc"
	"authgate/internal/registration"
	"authgate/internal/storage"
)

const stateCookieName = "oauth2_state"

var errRegistrationNotFound = errors.New("client registration not found")

// lookupRegistration finds a resolved registration by id. The static set is
// checked first; ids not bound in configuration fall through to the dynamic
// store, where the stored raw properties go through the same template
// resolution as the static ones.
func (s *Server) lookupRegistration(ctx context.Context, id string) (registration.ClientRegistration, error) {
	if reg, ok := s.repo.FindByRegistrationID(id); ok {
		return reg, nil
	}

	if s.store == nil {
		return registration.ClientRegistration{}, errRegistrationNotFound
	}

	rec, err := s.store.GetRegistration(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return registration.ClientRegistration{}, errRegistrationNotFound
		}
		return registration.ClientRegistration{}, err
	}
	if !rec.Enabled {
		return registration.ClientRegistration{}, errRegistrationNotFound
	}

	props := rec.Properties
	if props.ClientSecret != "" && len(s.secretKey) > 0 {
		secret, err := oidc.DecryptSecret(props.ClientSecret, s.secretKey)
		if err != nil {
			return registration.ClientRegistration{}, err
		}
		props.ClientSecret = secret
	}

	resolved := registration.Resolve(s.catalog, map[string]registration.ClientProperties{rec.ID: props})
	reg, ok := resolved.FindByRegistrationID(rec.ID)
	if !ok {
		// Still no client id after template defaulting.
		return registration.ClientRegistration{}, errRegistrationNotFound
	}
	return reg, nil
}

// getOrCreateClient returns a cached login client or builds a new one.
func (s *Server) getOrCreateClient(ctx context.Context, reg registration.ClientRegistration) (*oidc.Client, error) {
	if cached, ok := s.clientCache.Load(reg.RegistrationID); ok {
		return cached.(*oidc.Client), nil
	}

	client, err := oidc.NewClient(ctx, reg, s.baseURL)
	if err != nil {
		return nil, err
	}
	s.clientCache.Store(reg.RegistrationID, client)
	return client, nil
}

// handleAuthorize redirects the user to the registration's identity provider.
// GET /oauth2/authorization/{id}
func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	reg, err := s.lookupRegistration(ctx, id)
	if err != nil {
		if errors.Is(err, errRegistrationNotFound) {
			s.writeErr(ctx, w, http.StatusNotFound, "client registration not found", "")
			return
		}
		s.writeErr(ctx, w, http.StatusInternalServerError, "failed to load registration", err.Error())
		return
	}

	client, err := s.getOrCreateClient(ctx, reg)
	if err != nil {
		s.writeErr(ctx, w, http.StatusInternalServerError, "failed to initialize login client", err.Error())
		return
	}

	randomBytes := make([]byte, 24)
	if _, err := rand.Read(randomBytes); err != nil {
		s.writeErr(ctx, w, http.StatusInternalServerError, "failed to generate state", err.Error())
		return
	}
	nonce := base64.RawURLEncoding.EncodeToString(randomBytes)
	state := id + ":" + nonce

	isSecure := r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https"
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/login/oauth2/code/",
		HttpOnly: true,
		Secure:   isSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   600, // 10 minutes
	})

	authURL := client.AuthCodeURL(state, oauth2.SetAuthURLParam("nonce", nonce))
	http.Redirect(w, r, authURL, http.StatusFound)
}

// loginResult is the response body of a completed login.
type loginResult struct {
	RegistrationID string      `json:"registration_id"`
	ClientName     string      `json:"client_name,omitempty"`
	Claims         oidc.Claims `json:"claims"`
	TokenType      string      `json:"token_type,omitempty"`
	ExpiresAt      *time.Time  `json:"expires_at,omitempty"`
}

// handleCallback completes the login after the identity provider redirects
// back with an authorization code.
// GET /login/oauth2/code/{id}
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		if s.metrics != nil {
			s.metrics.RecordLogin(id, false)
		}
		s.writeErr(ctx, w, http.StatusUnauthorized, "authorization failed", url.QueryEscape(errParam))
		return
	}

	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" || state == "" {
		s.writeErr(ctx, w, http.StatusBadRequest, "missing code or state", "")
		return
	}

	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value != state {
		s.writeErr(ctx, w, http.StatusForbidden, "invalid state", "state mismatch")
		return
	}

	// Clear state cookie.
	isSecure := r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https"
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     "/login/oauth2/code/",
		HttpOnly: true,
		Secure:   isSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})

	reg, err := s.lookupRegistration(ctx, id)
	if err != nil {
		if errors.Is(err, errRegistrationNotFound) {
			s.writeErr(ctx, w, http.StatusNotFound, "client registration not found", "")
			return
		}
		s.writeErr(ctx, w, http.StatusInternalServerError, "failed to load registration", err.Error())
		return
	}

	client, err := s.getOrCreateClient(ctx, reg)
	if err != nil {
		s.writeErr(ctx, w, http.StatusInternalServerError, "failed to initialize login client", err.Error())
		return
	}

	ident, err := client.Exchange(ctx, code)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordLogin(id, false)
		}
		s.writeErr(ctx, w, http.StatusUnauthorized, "token exchange failed", err.Error())
		return
	}

	if s.metrics != nil {
		s.metrics.RecordLogin(id, true)
	}
	attrs := appendRequestID(ctx, []any{
		"registration_id", id,
		"subject", ident.Claims.Subject,
	})
	s.logger.InfoContext(ctx, "login completed", attrs...)

	result := loginResult{
		RegistrationID: id,
		ClientName:     reg.ClientName,
		Claims:         ident.Claims,
	}
	if ident.Token != nil {
		result.TokenType = ident.Token.TokenType
		if !ident.Token.Expiry.IsZero() {
			expiry := ident.Token.Expiry
			result.ExpiresAt = &expiry
		}
	}
	writeJSON(w, http.StatusOK, result)
}

// handleListRegistrations returns the resolved registrations usable for
// login. Client secrets never serialize.
// GET /api/v1/registrations
func (s *Server) handleListRegistrations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	regs := s.repo.Registrations()

	if s.store != nil {
		records, err := s.store.ListEnabledRegistrations(ctx)
		if err != nil {
			s.writeStoreErr(ctx, w, err)
			return
		}
		for _, rec := range records {
			if _, ok := s.repo.FindByRegistrationID(rec.ID); ok {
				// Static registrations shadow dynamic ones with the same id.
				continue
			}
			resolved := registration.Resolve(s.catalog, map[string]registration.ClientProperties{rec.ID: rec.Properties})
			if reg, ok := resolved.FindByRegistrationID(rec.ID); ok {
				reg.ClientSecret = ""
				regs = append(regs, reg)
			}
		}
	}

	writeJSON(w, http.StatusOK, struct {
		Registrations []registration.ClientRegistration `json:"registrations"`
	}{Registrations: regs})
}
