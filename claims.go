package mockauth

import (
	"strings"

	"go.pilab.hu/mockauth/domain"
	"go.pilab.hu/mockauth/preset"
)

// Standard scopes accepted for any client regardless of its allow-list.
var standardScopes = map[string]bool{
	"openid":         true,
	"profile":        true,
	"email":          true,
	"offline_access": true,
}

// ScopeTokens splits a space-delimited scope string into its tokens.
func ScopeTokens(scope string) []string {
	return strings.Fields(scope)
}

// ScopeContains reports whether a scope string contains the given token.
func ScopeContains(scope, token string) bool {
	for _, s := range ScopeTokens(scope) {
		if s == token {
			return true
		}
	}
	return false
}

// ClaimsForScope projects user data into a claim bag according to the
// granted scope. The bag always contains sub; the profile and email scopes
// add their OIDC Core claims. Unknown scope tokens are ignored. Role, group
// and permission data rides along under its raw names when the user has any,
// ready for the preset projection to reshape.
func ClaimsForScope(scope string, user *domain.User) map[string]any {
	bag := map[string]any{
		"sub": user.ID,
	}

	for _, token := range ScopeTokens(scope) {
		switch token {
		case "profile":
			bag["name"] = user.Name
			bag["preferred_username"] = user.PreferredUsername
			bag["updated_at"] = user.UpdatedAt.Unix()
		case "email":
			bag["email"] = user.Email
			bag["email_verified"] = user.EmailVerified
		}
	}

	if len(user.Roles) > 0 {
		bag["roles"] = user.Roles
	}
	if len(user.Groups) > 0 {
		bag["groups"] = user.Groups
	}
	if len(user.Permissions) > 0 {
		bag["permissions"] = user.Permissions
	}

	return bag
}

// ProjectForPreset reshapes a claim bag into the wire format of the given
// provider preset. The input bag is not mutated. The result always contains
// sub and the renamed scope claim; a preset without a roles claim name never
// emits roles.
func ProjectForPreset(bag map[string]any, p *preset.Preset) map[string]any {
	out := make(map[string]any, len(bag)+1)
	for k, v := range bag {
		switch k {
		case "scope", "roles", "groups", "permissions":
			// Reshaped below.
		default:
			out[k] = v
		}
	}
	if _, ok := out["sub"]; !ok {
		out["sub"] = ""
	}

	scope, _ := bag["scope"].(string)
	switch p.ScopeFormat {
	case preset.ScopeFormatArray:
		tokens := ScopeTokens(scope)
		if tokens == nil {
			tokens = []string{}
		}
		out[p.ScopeClaim] = tokens
	default:
		out[p.ScopeClaim] = scope
	}

	if roles := stringSlice(bag["roles"]); len(roles) > 0 && p.RolesClaim != "" {
		name := namespaced(p, p.RolesClaim)
		if p.RoleFormat == preset.RoleFormatNested {
			out[name] = map[string]any{p.RolesNestedKey: roles}
		} else {
			out[name] = roles
		}
	}

	if groups := stringSlice(bag["groups"]); len(groups) > 0 && p.GroupsClaim != "" {
		out[namespaced(p, p.GroupsClaim)] = groups
	}

	if perms := stringSlice(bag["permissions"]); len(perms) > 0 && p.PermissionsClaim != "" {
		out[namespaced(p, p.PermissionsClaim)] = perms
	}

	return out
}

// namespaced applies the preset's namespace prefix to non-standard claim
// names when the preset demands it.
func namespaced(p *preset.Preset, claim string) string {
	if !p.RequireNamespacedClaims || p.NamespacePrefix == "" {
		return claim
	}
	return p.NamespacePrefix + claim
}

func stringSlice(v any) []string {
	switch s := v.(type) {
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}
