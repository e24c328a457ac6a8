package identity

import (
	pstrings "boxoffice/pkg/platform/strings"
)

// RolesFromClaims flattens the role claims an issuer may emit into a sorted,
// de-duplicated set of managed role names. It understands
//
//	realm_access.roles
//	resource_access.<clientID>.roles
//	roles (top-level array)
//
// and strips ROLE_ prefixes case-insensitively. Names that do not map to a
// managed role are dropped.
func RolesFromClaims(claims map[string]any, clientID string) []string {
	var raw []string

	if realm, ok := claims["realm_access"].(map[string]any); ok {
		raw = append(raw, stringSlice(realm["roles"])...)
	}
	if resources, ok := claims["resource_access"].(map[string]any); ok && clientID != "" {
		if client, ok := resources[clientID].(map[string]any); ok {
			raw = append(raw, stringSlice(client["roles"])...)
		}
	}
	raw = append(raw, stringSlice(claims["roles"])...)

	out := pstrings.SortedSet(raw, func(s string) string {
		r := Role(normalizeRoleName(s))
		if !r.IsValid() {
			return ""
		}
		return string(r)
	})
	if out == nil {
		return []string{}
	}
	return out
}

func stringSlice(v any) []string {
	switch vals := v.(type) {
	case []string:
		return vals
	case []any:
		out := make([]string, 0, len(vals))
		for _, item := range vals {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return []string{vals}
	default:
		return nil
	}
}

// RolesOf converts a claims-derived role set to typed roles, dropping any
// name that is not a managed role.
func RolesOf(names []string) []Role {
	out := make([]Role, 0, len(names))
	for _, n := range names {
		if r, err := ParseRole(n); err == nil {
			out = append(out, r)
		}
	}
	return out
}
