package gate

import "net/http"

// Route is one exact method+path pair that bypasses the approval gate.
type Route struct {
	Method    string
	Path      string
	Rationale string
}

// DefaultAllowList is the complete set of gate bypasses. Paths are matched
// exactly; there is no prefix or pattern matching.
func DefaultAllowList() []Route {
	return []Route{
		{
			Method:    http.MethodPost,
			Path:      "/api/auth/register",
			Rationale: "registration creates the PENDING account the gate would otherwise check; callers have no account yet",
		},
		{
			Method:    http.MethodPost,
			Path:      "/api/invites/redeem",
			Rationale: "an invite is an out-of-band grant from an admin or organizer; redeeming it is how a PENDING user receives a role",
		},
		{
			Method:    http.MethodGet,
			Path:      "/health",
			Rationale: "liveness probe; unauthenticated and reveals no account data",
		},
		{
			Method:    http.MethodGet,
			Path:      "/api/info",
			Rationale: "public service metadata; reads no account-scoped state",
		},
	}
}

type routeKey struct {
	method string
	path   string
}

func indexRoutes(routes []Route) map[routeKey]Route {
	out := make(map[routeKey]Route, len(routes))
	for _, r := range routes {
		out[routeKey{method: r.Method, path: r.Path}] = r
	}
	return out
}
