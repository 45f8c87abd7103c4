// Package templates ships the static catalog of provider templates: named
// default client properties for well-known OAuth2/OIDC providers. The
// catalog is embedded in the binary, loaded once, and immutable afterwards.
package templates

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"authgate/internal/registration"
)

//go:embed templates.yaml
var catalogYAML []byte

// Catalog maps template names to their default client properties.
// It implements registration.TemplateCatalog.
type Catalog struct {
	templates map[string]registration.ClientProperties
}

// Load parses the embedded catalog. Templates never carry client credentials;
// a catalog entry that does is a packaging mistake and is rejected.
func Load() (*Catalog, error) {
	return parse(catalogYAML)
}

func parse(data []byte) (*Catalog, error) {
	var templates map[string]registration.ClientProperties
	if err := yaml.Unmarshal(data, &templates); err != nil {
		return nil, fmt.Errorf("parse template catalog: %w", err)
	}
	for name, tmpl := range templates {
		if tmpl.ClientID != "" || tmpl.ClientSecret != "" {
			return nil, fmt.Errorf("template %q carries client credentials", name)
		}
	}
	return &Catalog{templates: templates}, nil
}

// Lookup returns the template with the given name using a case-insensitive
// exact match.
func (c *Catalog) Lookup(name string) (registration.ClientProperties, bool) {
	if tmpl, ok := c.templates[name]; ok {
		return tmpl, true
	}
	for key, tmpl := range c.templates {
		if strings.EqualFold(key, name) {
			return tmpl, true
		}
	}
	return registration.ClientProperties{}, false
}

// Names returns the template names in the catalog.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.templates))
	for name := range c.templates {
		names = append(names, name)
	}
	return names
}
