package registration

// Raw values accepted for the client-authentication-method attribute.
const (
	MethodBasic = "basic"
	MethodPost  = "post"
)

// Raw values accepted for the authorization-grant-type attribute.
// GrantImplicit binds but has no library-facing mapping; a registration
// configured with it resolves with an absent grant type.
const (
	GrantAuthorizationCode = "authorization_code"
	GrantImplicit          = "implicit"
)

// ClientProperties holds the raw, partially filled attributes bound for a
// single registration id. Provider templates use the same shape, which keeps
// the template merge symmetric. The zero value of each attribute means
// "not configured"; the resolver treats absent and empty alike when deciding
// whether a template value fills in.
type ClientProperties struct {
	ClientID     string `yaml:"client-id" json:"client-id,omitempty"`
	ClientSecret string `yaml:"client-secret" json:"client-secret,omitempty"`

	// TemplateID names the provider template to default from. nil falls back
	// to the registration id itself; an explicit empty string matches no
	// template. The nil/empty distinction is meaningful only here.
	TemplateID *string `yaml:"template-id" json:"template-id,omitempty"`

	ClientAuthenticationMethod string   `yaml:"client-authentication-method" json:"client-authentication-method,omitempty"`
	AuthorizationGrantType     string   `yaml:"authorization-grant-type" json:"authorization-grant-type,omitempty"`
	RedirectURI                string   `yaml:"redirect-uri" json:"redirect-uri,omitempty"`
	Scope                      []string `yaml:"scope" json:"scope,omitempty"`
	AuthorizationURI           string   `yaml:"authorization-uri" json:"authorization-uri,omitempty"`
	TokenURI                   string   `yaml:"token-uri" json:"token-uri,omitempty"`
	UserInfoURI                string   `yaml:"user-info-uri" json:"user-info-uri,omitempty"`
	JWKSetURI                  string   `yaml:"jwk-set-uri" json:"jwk-set-uri,omitempty"`
	ClientName                 string   `yaml:"client-name" json:"client-name,omitempty"`
	ClientAlias                string   `yaml:"client-alias" json:"client-alias,omitempty"`
}
