// Package preset defines the provider presets: named configuration bundles
// that reshape issued claims to imitate a real identity provider. The preset
// set is closed; adding a provider is a data change, not new control flow.
package preset

import (
	"fmt"
	"sort"
	"time"
)

// ScopeFormat selects the wire encoding of the granted-scope claim.
type ScopeFormat string

const (
	// ScopeFormatString encodes scopes space-delimited in one string.
	ScopeFormatString ScopeFormat = "string"
	// ScopeFormatArray encodes scopes as a JSON array of strings.
	ScopeFormatArray ScopeFormat = "array"
)

// RoleFormat selects the container shape of the roles claim.
type RoleFormat string

const (
	// RoleFormatArray emits roles as a flat array.
	RoleFormatArray RoleFormat = "array"
	// RoleFormatNested emits roles inside a single-key object, the way
	// Keycloak nests them under realm_access.roles.
	RoleFormatNested RoleFormat = "nested"
)

// Preset is an immutable, config-time bundle describing how one identity
// provider names and shapes its token claims.
type Preset struct {
	Name string `json:"name"`

	ScopeClaim  string      `json:"scope_claim"`
	ScopeFormat ScopeFormat `json:"scope_format"`

	// RolesClaim empty means the preset never emits a roles claim.
	RolesClaim     string     `json:"roles_claim,omitempty"`
	RoleFormat     RoleFormat `json:"role_format,omitempty"`
	RolesNestedKey string     `json:"roles_nested_key,omitempty"`

	GroupsClaim      string `json:"groups_claim,omitempty"`
	PermissionsClaim string `json:"permissions_claim,omitempty"`

	// RequireNamespacedClaims prefixes non-standard claim names with
	// NamespacePrefix, as Auth0 mandates for custom claims.
	RequireNamespacedClaims bool   `json:"require_namespaced_claims,omitempty"`
	NamespacePrefix         string `json:"namespace_prefix,omitempty"`

	SigningAlg     string        `json:"signing_alg"`
	AccessTokenTTL time.Duration `json:"access_token_ttl"`
	IDTokenTTL     time.Duration `json:"id_token_ttl"`
}

var builtin = map[string]Preset{
	"keycloak": {
		Name:           "keycloak",
		ScopeClaim:     "scope",
		ScopeFormat:    ScopeFormatString,
		RolesClaim:     "realm_access",
		RoleFormat:     RoleFormatNested,
		RolesNestedKey: "roles",
		GroupsClaim:    "groups",
		SigningAlg:     "RS256",
		AccessTokenTTL: 5 * time.Minute,
		IDTokenTTL:     5 * time.Minute,
	},
	"auth0": {
		Name:                    "auth0",
		ScopeClaim:              "scope",
		ScopeFormat:             ScopeFormatString,
		RolesClaim:              "roles",
		RoleFormat:              RoleFormatArray,
		PermissionsClaim:        "permissions",
		RequireNamespacedClaims: true,
		NamespacePrefix:         "https://claims.mockauth.dev/",
		SigningAlg:              "RS256",
		AccessTokenTTL:          24 * time.Hour,
		IDTokenTTL:              10 * time.Hour,
	},
	"azuread": {
		Name:           "azuread",
		ScopeClaim:     "scp",
		ScopeFormat:    ScopeFormatString,
		RolesClaim:     "roles",
		RoleFormat:     RoleFormatArray,
		GroupsClaim:    "groups",
		SigningAlg:     "RS256",
		AccessTokenTTL: time.Hour,
		IDTokenTTL:     time.Hour,
	},
	"okta": {
		Name:           "okta",
		ScopeClaim:     "scp",
		ScopeFormat:    ScopeFormatArray,
		GroupsClaim:    "groups",
		SigningAlg:     "RS256",
		AccessTokenTTL: time.Hour,
		IDTokenTTL:     time.Hour,
	},
	"cognito": {
		Name:           "cognito",
		ScopeClaim:     "scope",
		ScopeFormat:    ScopeFormatString,
		GroupsClaim:    "cognito:groups",
		SigningAlg:     "RS256",
		AccessTokenTTL: time.Hour,
		IDTokenTTL:     time.Hour,
	},
	"google": {
		Name:           "google",
		ScopeClaim:     "scope",
		ScopeFormat:    ScopeFormatString,
		SigningAlg:     "RS256",
		AccessTokenTTL: time.Hour,
		IDTokenTTL:     time.Hour,
	},
	"github": {
		Name:           "github",
		ScopeClaim:     "scope",
		ScopeFormat:    ScopeFormatString,
		SigningAlg:     "RS256",
		AccessTokenTTL: 8 * time.Hour,
		IDTokenTTL:     8 * time.Hour,
	},
	"fusionauth": {
		Name:           "fusionauth",
		ScopeClaim:     "scope",
		ScopeFormat:    ScopeFormatString,
		RolesClaim:     "roles",
		RoleFormat:     RoleFormatArray,
		SigningAlg:     "RS256",
		AccessTokenTTL: time.Hour,
		IDTokenTTL:     time.Hour,
	},
}

// Load returns the named preset. The returned value is a copy; presets are
// never mutated after startup.
func Load(name string) (*Preset, error) {
	p, ok := builtin[name]
	if !ok {
		return nil, fmt.Errorf("unknown preset %q (known: %v)", name, Names())
	}
	return &p, nil
}

// Default returns the preset used when none is configured.
func Default() *Preset {
	p := builtin["keycloak"]
	return &p
}

// Names lists the available preset names in stable order.
func Names() []string {
	names := make([]string, 0, len(builtin))
	for name := range builtin {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
