package oidc

// Claims are the identity attributes extracted from a verified ID token or
// the user-info endpoint. Providers differ in which attributes they return;
// absent attributes stay zero.
type Claims struct {
	Subject string `json:"sub"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Picture string `json:"picture"`
}

// DisplayName returns the best human-readable identifier available.
func (c Claims) DisplayName() string {
	switch {
	case c.Name != "":
		return c.Name
	case c.Email != "":
		return c.Email
	default:
		return c.Subject
	}
}
