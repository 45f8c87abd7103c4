package templates

import (
	"reflect"
	"testing"

	"authgate/internal/registration"
)

func TestLoad_EmbeddedCatalog(t *testing.T) {
	catalog, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	for _, name := range []string{"google", "github", "facebook", "okta"} {
		if _, ok := catalog.Lookup(name); !ok {
			t.Errorf("template %q missing from catalog", name)
		}
	}
}

func TestLookup_CaseInsensitive(t *testing.T) {
	catalog, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	lower, _ := catalog.Lookup("google")
	upper, ok := catalog.Lookup("GoOgLe")
	if !ok {
		t.Fatal("case-insensitive lookup failed")
	}
	if !reflect.DeepEqual(lower, upper) {
		t.Error("lookup results differ by case")
	}

	if _, ok := catalog.Lookup("no-such-provider"); ok {
		t.Error("unknown template must not match")
	}
}

func TestLoad_GoogleDefaults(t *testing.T) {
	catalog, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	google, ok := catalog.Lookup("google")
	if !ok {
		t.Fatal("google template missing")
	}
	if google.ClientAuthenticationMethod != registration.MethodBasic {
		t.Errorf("authentication method = %q, want basic", google.ClientAuthenticationMethod)
	}
	if google.AuthorizationGrantType != registration.GrantAuthorizationCode {
		t.Errorf("grant type = %q, want authorization_code", google.AuthorizationGrantType)
	}
	wantScopes := []string{"openid", "profile", "email", "address", "phone"}
	if !reflect.DeepEqual(google.Scope, wantScopes) {
		t.Errorf("scope = %v, want %v", google.Scope, wantScopes)
	}
	if google.ClientID != "" || google.ClientSecret != "" {
		t.Error("templates must never carry credentials")
	}
}

func TestParse_RejectsCredentials(t *testing.T) {
	data := []byte("evil:\n  client-id: leaked\n")
	if _, err := parse(data); err == nil {
		t.Fatal("expected error for template carrying a client id")
	}
}

func TestParse_Invalid(t *testing.T) {
	if _, err := parse([]byte("{not yaml")); err == nil {
		t.Fatal("expected parse error")
	}
}
