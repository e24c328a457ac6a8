package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	id "boxoffice/pkg/domain"
	"boxoffice/pkg/platform/httputil"
	"boxoffice/pkg/requestcontext"
)

type stubVerifier struct {
	principal requestcontext.VerifiedPrincipal
	err       error
	gotToken  string
}

func (s *stubVerifier) Verify(_ context.Context, raw string) (requestcontext.VerifiedPrincipal, error) {
	s.gotToken = raw
	return s.principal, s.err
}

func TestRequireAuth(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	subject := id.AccountID(uuid.New())

	newHandler := func(v Verifier) (http.Handler, *bool) {
		called := false
		h := RequireAuth(v, httputil.Responder{}, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
			assert.Equal(t, subject, requestcontext.AccountID(r.Context()))
		}))
		return h, &called
	}

	t.Run("missing header", func(t *testing.T) {
		h, called := newHandler(&stubVerifier{})
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.False(t, *called)
	})

	t.Run("invalid token", func(t *testing.T) {
		h, called := newHandler(&stubVerifier{err: errors.New("bad signature")})
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer abc")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.False(t, *called)
	})

	t.Run("valid token stores principal", func(t *testing.T) {
		v := &stubVerifier{principal: requestcontext.VerifiedPrincipal{Subject: subject}}
		h, called := newHandler(v)
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer abc")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, *called)
		assert.Equal(t, "abc", v.gotToken)
	})
}
