package mockauth

import (
	"strings"

	"go.pilab.hu/mockauth/preset"
)

// OpenIDConfiguration is the discovery document served at
// /.well-known/openid-configuration. Its claim and algorithm lists depend on
// the active provider preset.
type OpenIDConfiguration struct {
	Issuer                           string   `json:"issuer"`
	AuthorizationEndpoint            string   `json:"authorization_endpoint"`
	TokenEndpoint                    string   `json:"token_endpoint"`
	UserInfoEndpoint                 string   `json:"userinfo_endpoint"`
	JWKSURI                          string   `json:"jwks_uri"`
	RegistrationEndpoint             string   `json:"registration_endpoint"`
	ResponseTypesSupported           []string `json:"response_types_supported"`
	GrantTypesSupported              []string `json:"grant_types_supported"`
	SubjectTypesSupported            []string `json:"subject_types_supported"`
	IDTokenSigningAlgValuesSupported []string `json:"id_token_signing_alg_values_supported"`
	ScopesSupported                  []string `json:"scopes_supported"`
	TokenEndpointAuthMethods         []string `json:"token_endpoint_auth_methods_supported"`
	ClaimsSupported                  []string `json:"claims_supported"`
}

// NewOpenIDConfiguration builds the discovery document for the given issuer
// and preset.
func NewOpenIDConfiguration(issuer string, p *preset.Preset) *OpenIDConfiguration {
	base := strings.TrimSuffix(issuer, "/")

	claims := []string{
		"sub", "iss", "aud", "exp", "iat", "nonce",
		"name", "preferred_username", "updated_at",
		"email", "email_verified",
		p.ScopeClaim,
	}
	if p.RolesClaim != "" {
		claims = append(claims, namespaced(p, p.RolesClaim))
	}
	if p.GroupsClaim != "" {
		claims = append(claims, namespaced(p, p.GroupsClaim))
	}
	if p.PermissionsClaim != "" {
		claims = append(claims, namespaced(p, p.PermissionsClaim))
	}

	return &OpenIDConfiguration{
		Issuer:                           issuer,
		AuthorizationEndpoint:            base + "/authorize",
		TokenEndpoint:                    base + "/token",
		UserInfoEndpoint:                 base + "/userinfo",
		JWKSURI:                          base + "/.well-known/jwks.json",
		RegistrationEndpoint:             base + "/register",
		ResponseTypesSupported:           []string{"code"},
		GrantTypesSupported:              []string{"authorization_code", "client_credentials"},
		SubjectTypesSupported:            []string{"public"},
		IDTokenSigningAlgValuesSupported: []string{p.SigningAlg},
		ScopesSupported:                  []string{"openid", "profile", "email", "offline_access"},
		TokenEndpointAuthMethods:         []string{"client_secret_basic", "client_secret_post"},
		ClaimsSupported:                  claims,
	}
}
