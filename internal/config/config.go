// Package config binds the authgate configuration: server settings plus the
// raw OAuth2 client registration entries that the resolver consumes.
package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"authgate/internal/registration"
)

// Config holds the full bound configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	OAuth2  OAuth2Config  `yaml:"oauth2"`
	Storage StorageConfig `yaml:"storage"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Addr is the listen address (host:port).
	Addr string `yaml:"addr"`
	// ExternalURL is the externally reachable base URL, used to expand
	// {baseUrl} in redirect URI templates.
	ExternalURL string `yaml:"external_url"`
}

// OAuth2Config nests the client registration entries under the same property
// path shape they are documented with: oauth2.client.registrations.<id>.<attr>.
type OAuth2Config struct {
	Client ClientConfig `yaml:"client"`
}

// ClientConfig holds the raw registration entries keyed by registration id.
// Keys are case-sensitive; two ids differing only in case are distinct
// registrations.
type ClientConfig struct {
	Registrations map[string]registration.ClientProperties `yaml:"registrations"`
}

// StorageConfig selects the backend for dynamically managed registrations.
type StorageConfig struct {
	SQLiteDSN   string `yaml:"sqlite_dsn"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// Load reads configuration from a YAML file and applies environment variable
// overrides. Environment variables win over YAML values. An empty path skips
// the file and binds from the environment alone.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Addr:        ":8080",
			ExternalURL: "http://localhost:8080",
		},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if v := os.Getenv("AUTHGATE_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("AUTHGATE_EXTERNAL_URL"); v != "" {
		cfg.Server.ExternalURL = v
	}
	if v := os.Getenv("AUTHGATE_SQLITE_DSN"); v != "" {
		cfg.Storage.SQLiteDSN = v
	}
	if v := os.Getenv("AUTHGATE_POSTGRES_DSN"); v != "" {
		cfg.Storage.PostgresDSN = v
	}

	applyClientEnvOverrides(cfg.OAuth2.Client.Registrations)

	cfg.Server.ExternalURL = strings.TrimRight(cfg.Server.ExternalURL, "/")
	return cfg, nil
}

// resolvedRegistration is the YAML shape of one pre-resolved registration in
// a standalone registrations file. Unlike the raw entries under oauth2.client,
// these do not go through template defaulting.
type resolvedRegistration struct {
	ClientID                   string   `yaml:"client-id"`
	ClientSecret               string   `yaml:"client-secret"`
	ClientAuthenticationMethod string   `yaml:"client-authentication-method"`
	AuthorizationGrantType     string   `yaml:"authorization-grant-type"`
	RedirectURI                string   `yaml:"redirect-uri"`
	Scope                      []string `yaml:"scope"`
	AuthorizationURI           string   `yaml:"authorization-uri"`
	TokenURI                   string   `yaml:"token-uri"`
	UserInfoURI                string   `yaml:"user-info-uri"`
	JWKSetURI                  string   `yaml:"jwk-set-uri"`
	ClientName                 string   `yaml:"client-name"`
}

// LoadRegistrationsFile reads a standalone YAML file of pre-resolved
// registrations keyed by registration id. The file replaces the configured
// set outright: no template defaulting runs, the registrations are taken
// as-is. Entries without a client id are still dropped. Output order is the
// sorted registration ids.
func LoadRegistrationsFile(path string) ([]registration.ClientRegistration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registrations file: %w", err)
	}
	var raw map[string]resolvedRegistration
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse registrations file: %w", err)
	}

	ids := make([]string, 0, len(raw))
	for id := range raw {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	regs := make([]registration.ClientRegistration, 0, len(raw))
	for _, id := range ids {
		r := raw[id]
		if r.ClientID == "" {
			continue
		}
		regs = append(regs, registration.ClientRegistration{
			RegistrationID:       id,
			ClientID:             r.ClientID,
			ClientSecret:         r.ClientSecret,
			AuthenticationMethod: registration.ClientAuthenticationMethod(r.ClientAuthenticationMethod),
			GrantType:            registration.AuthorizationGrantType(r.AuthorizationGrantType),
			RedirectURI:          r.RedirectURI,
			Scopes:               r.Scope,
			AuthorizationURI:     r.AuthorizationURI,
			TokenURI:             r.TokenURI,
			UserInfoURI:          r.UserInfoURI,
			JWKSetURI:            r.JWKSetURI,
			ClientName:           r.ClientName,
		})
	}
	return regs, nil
}

// applyClientEnvOverrides lets deployments keep client credentials out of the
// config file: AUTHGATE_CLIENT_<ID>_CLIENT_ID and ..._CLIENT_SECRET override
// the bound values for a declared registration id. Dashes in the id map to
// underscores in the variable name.
func applyClientEnvOverrides(entries map[string]registration.ClientProperties) {
	for id, props := range entries {
		key := "AUTHGATE_CLIENT_" + strings.ToUpper(strings.ReplaceAll(id, "-", "_"))
		changed := false
		if v := os.Getenv(key + "_CLIENT_ID"); v != "" {
			props.ClientID = v
			changed = true
		}
		if v := os.Getenv(key + "_CLIENT_SECRET"); v != "" {
			props.ClientSecret = v
			changed = true
		}
		if changed {
			entries[id] = props
		}
	}
}
