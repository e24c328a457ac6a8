package requestid

import (
	"net/http"
	"regexp"

	"github.com/google/uuid"

	"boxoffice/pkg/requestcontext"
)

const Header = "X-Request-ID"

var validID = regexp.MustCompile(`^[A-Za-z0-9._\-]{1,64}$`)

// Middleware propagates a caller-supplied request id when it is well formed
// and mints one otherwise. The id is echoed in the response header.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(Header)
		if !validID.MatchString(reqID) {
			reqID = uuid.NewString()
		}
		w.Header().Set(Header, reqID)
		ctx := requestcontext.WithRequestID(r.Context(), reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
