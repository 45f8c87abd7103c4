package registration

import "sort"

// clientAuthenticationMethods maps raw bound values to library-facing ones.
// Raw values without an entry resolve to the zero value; the registration is
// still built. This mirrors longstanding behavior that existing
// configurations depend on, so a typo degrades silently instead of failing
// resolution.
var clientAuthenticationMethods = map[string]ClientAuthenticationMethod{
	MethodBasic: AuthMethodBasic,
	MethodPost:  AuthMethodPost,
}

// authorizationGrantTypes maps raw grant values. Note "implicit" binds but is
// deliberately unmapped.
var authorizationGrantTypes = map[string]AuthorizationGrantType{
	GrantAuthorizationCode: GrantTypeAuthorizationCode,
}

// TemplateCatalog resolves provider template names to their default client
// properties. Lookup must be a case-insensitive exact match.
type TemplateCatalog interface {
	Lookup(name string) (ClientProperties, bool)
}

// Resolve merges every bound entry against its provider template and builds
// the repository of resolved registrations. An entry names its template
// explicitly via template-id, or implicitly by its own registration id.
// Entries whose client id is still empty after defaulting are dropped
// without error. Output order is the sorted registration ids, so resolution
// is deterministic regardless of map iteration order.
func Resolve(catalog TemplateCatalog, entries map[string]ClientProperties) *Repository {
	ids := make([]string, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	regs := make([]ClientRegistration, 0, len(entries))
	for _, id := range ids {
		props := entries[id]

		templateID := id
		if props.TemplateID != nil {
			templateID = *props.TemplateID
		}
		if catalog != nil {
			if tmpl, ok := catalog.Lookup(templateID); ok {
				applyTemplateDefaults(&props, tmpl)
			}
		}

		if props.ClientID == "" {
			continue
		}
		regs = append(regs, newRegistration(id, props))
	}
	return NewRepository(regs)
}

// applyTemplateDefaults copies each template attribute into the entry when
// the entry does not set it. This is field-by-field: an entry overriding a
// single attribute still draws every other attribute from the template, and
// an explicit entry value is never overwritten.
func applyTemplateDefaults(props *ClientProperties, tmpl ClientProperties) {
	if props.ClientAuthenticationMethod == "" && tmpl.ClientAuthenticationMethod != "" {
		props.ClientAuthenticationMethod = tmpl.ClientAuthenticationMethod
	}
	if props.AuthorizationGrantType == "" && tmpl.AuthorizationGrantType != "" {
		props.AuthorizationGrantType = tmpl.AuthorizationGrantType
	}
	if props.RedirectURI == "" && tmpl.RedirectURI != "" {
		props.RedirectURI = tmpl.RedirectURI
	}
	if len(props.Scope) == 0 && len(tmpl.Scope) > 0 {
		// Copy, never alias: entries sharing a template must stay independent.
		props.Scope = append([]string(nil), tmpl.Scope...)
	}
	if props.AuthorizationURI == "" && tmpl.AuthorizationURI != "" {
		props.AuthorizationURI = tmpl.AuthorizationURI
	}
	if props.TokenURI == "" && tmpl.TokenURI != "" {
		props.TokenURI = tmpl.TokenURI
	}
	if props.UserInfoURI == "" && tmpl.UserInfoURI != "" {
		props.UserInfoURI = tmpl.UserInfoURI
	}
	if props.JWKSetURI == "" && tmpl.JWKSetURI != "" {
		props.JWKSetURI = tmpl.JWKSetURI
	}
	if props.ClientName == "" && tmpl.ClientName != "" {
		props.ClientName = tmpl.ClientName
	}
	if props.ClientAlias == "" && tmpl.ClientAlias != "" {
		props.ClientAlias = tmpl.ClientAlias
	}
}

func newRegistration(id string, props ClientProperties) ClientRegistration {
	reg := ClientRegistration{
		RegistrationID:   id,
		ClientID:         props.ClientID,
		ClientSecret:     props.ClientSecret,
		RedirectURI:      props.RedirectURI,
		AuthorizationURI: props.AuthorizationURI,
		TokenURI:         props.TokenURI,
		UserInfoURI:      props.UserInfoURI,
		JWKSetURI:        props.JWKSetURI,
		ClientName:       props.ClientName,
	}
	if props.ClientAuthenticationMethod != "" {
		reg.AuthenticationMethod = clientAuthenticationMethods[props.ClientAuthenticationMethod]
	}
	if props.AuthorizationGrantType != "" {
		reg.GrantType = authorizationGrantTypes[props.AuthorizationGrantType]
	}
	if len(props.Scope) > 0 {
		reg.Scopes = append([]string(nil), props.Scope...)
	}
	return reg
}

// ClientsConfigured reports whether at least one bound entry carries a
// client id. It inspects the raw entries only: templates never contribute
// client credentials, so a raw check matches post-resolution validity
// without paying for template defaulting. Callers gate construction of the
// whole registration subsystem on this.
func ClientsConfigured(entries map[string]ClientProperties) bool {
	return len(ConfiguredRegistrationIDs(entries)) > 0
}

// ConfiguredRegistrationIDs returns the sorted registration ids whose raw
// entry has a client id set.
func ConfiguredRegistrationIDs(entries map[string]ClientProperties) []string {
	var ids []string
	for id, props := range entries {
		if props.ClientID != "" {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
