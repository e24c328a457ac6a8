package testutil

import (
	"net/http"

	id "boxoffice/pkg/domain"
	"boxoffice/pkg/requestcontext"
)

// WithPrincipal attaches a verified principal to the request, the way the
// authenticate stage does for a valid bearer token.
func WithPrincipal(req *http.Request, p requestcontext.VerifiedPrincipal) *http.Request {
	return req.WithContext(requestcontext.WithPrincipal(req.Context(), p))
}

// AsAccount attaches a principal for accountID holding the given realm roles.
func AsAccount(req *http.Request, accountID id.AccountID, roles ...string) *http.Request {
	return WithPrincipal(req, requestcontext.VerifiedPrincipal{Subject: accountID, Roles: roles})
}
