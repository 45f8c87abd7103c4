// Package registration resolves bound OAuth 2.0 / OpenID Connect client
// properties against provider templates and holds the resulting set of
// client registrations.
package registration

// ClientAuthenticationMethod identifies how the client authenticates against
// the token endpoint. The empty value means the raw attribute was absent or
// had no mapping.
type ClientAuthenticationMethod string

const (
	AuthMethodBasic ClientAuthenticationMethod = "basic"
	AuthMethodPost  ClientAuthenticationMethod = "post"
)

// AuthorizationGrantType identifies the OAuth2 grant used by a registration.
type AuthorizationGrantType string

// GrantTypeAuthorizationCode is the only grant with a library-facing mapping.
const GrantTypeAuthorizationCode AuthorizationGrantType = "authorization_code"

// ClientRegistration is one fully resolved OAuth2/OIDC client. Instances are
// built once by Resolve and never mutated afterwards.
type ClientRegistration struct {
	RegistrationID       string                     `json:"registration_id"`
	ClientID             string                     `json:"client_id"`
	ClientSecret         string                     `json:"-"`
	AuthenticationMethod ClientAuthenticationMethod `json:"client_authentication_method,omitempty"`
	GrantType            AuthorizationGrantType     `json:"authorization_grant_type,omitempty"`
	RedirectURI          string                     `json:"redirect_uri,omitempty"`
	Scopes               []string                   `json:"scopes,omitempty"`
	AuthorizationURI     string                     `json:"authorization_uri,omitempty"`
	TokenURI             string                     `json:"token_uri,omitempty"`
	UserInfoURI          string                     `json:"user_info_uri,omitempty"`
	JWKSetURI            string                     `json:"jwk_set_uri,omitempty"`
	ClientName           string                     `json:"client_name,omitempty"`
}

// copy returns a deep copy so callers can never alias repository state.
func (c ClientRegistration) copy() ClientRegistration {
	cpy := c
	if c.Scopes != nil {
		cpy.Scopes = append([]string(nil), c.Scopes...)
	}
	return cpy
}

// Repository is an immutable, ordered collection of resolved client
// registrations, looked up by registration id. Registration ids are unique
// by construction: Resolve builds the set from a map keyed by id.
type Repository struct {
	order []string
	byID  map[string]ClientRegistration
}

// NewRepository builds a repository from resolved registrations, preserving
// the given order.
func NewRepository(regs []ClientRegistration) *Repository {
	r := &Repository{
		order: make([]string, 0, len(regs)),
		byID:  make(map[string]ClientRegistration, len(regs)),
	}
	for _, reg := range regs {
		if _, exists := r.byID[reg.RegistrationID]; exists {
			continue
		}
		r.order = append(r.order, reg.RegistrationID)
		r.byID[reg.RegistrationID] = reg.copy()
	}
	return r
}

// FindByRegistrationID returns the registration for the given id. The lookup
// is case-sensitive: registration ids keep their configured identity even
// though template names do not.
func (r *Repository) FindByRegistrationID(id string) (ClientRegistration, bool) {
	reg, ok := r.byID[id]
	if !ok {
		return ClientRegistration{}, false
	}
	return reg.copy(), true
}

// Registrations returns all registrations in order.
func (r *Repository) Registrations() []ClientRegistration {
	out := make([]ClientRegistration, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id].copy())
	}
	return out
}

// Len returns the number of registrations in the set.
func (r *Repository) Len() int { return len(r.order) }
