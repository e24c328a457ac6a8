// Package httputil renders JSON responses and translates domain errors to
// HTTP status codes.
package httputil

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	id "boxoffice/pkg/domain"
	dErrors "boxoffice/pkg/domain-errors"
	"boxoffice/pkg/platform/sanitize"
	"boxoffice/pkg/requestcontext"
)

// ErrorBody is the structured denial body returned for every failed request.
type ErrorBody struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Status    int       `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason,omitempty"`
}

// StatusFor maps a domain error code to its HTTP status.
func StatusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeBadRequest, dErrors.CodeInvalidInput, dErrors.CodeValidation,
		dErrors.CodeInvalidInviteCode:
		return http.StatusBadRequest
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict, dErrors.CodeEmailInUse, dErrors.CodeInvariantViolation:
		return http.StatusConflict
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	case dErrors.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Responder writes JSON bodies. With Sanitize set, client-facing messages are
// scrubbed; callers keep the full error for logs.
type Responder struct {
	Sanitize bool
}

// Error writes err as an ErrorBody with the mapped status.
func (rs Responder) Error(w http.ResponseWriter, r *http.Request, err error) {
	code := dErrors.CodeOf(err)
	status := StatusFor(code)

	msg := dErrors.Message(err)
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	body := ErrorBody{
		Code:      string(code),
		Message:   rs.message(msg),
		Status:    status,
		Timestamp: requestcontext.Now(r.Context()).UTC(),
	}
	if reason, ok := dErrors.InviteReasonOf(err); ok {
		body.Reason = string(reason)
	}
	WriteJSON(w, status, body)
}

// Deny writes a denial with an explicit machine-readable code.
func (rs Responder) Deny(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	rs.DenyWithReason(w, r, status, code, msg, "")
}

// DenyWithReason is Deny plus a stored, human-entered reason.
func (rs Responder) DenyWithReason(w http.ResponseWriter, r *http.Request, status int, code, msg, reason string) {
	body := ErrorBody{
		Code:      code,
		Message:   rs.message(msg),
		Status:    status,
		Timestamp: requestcontext.Now(r.Context()).UTC(),
	}
	if reason != "" {
		body.Reason = rs.message(reason)
	}
	WriteJSON(w, status, body)
}

func (rs Responder) message(msg string) string {
	if !rs.Sanitize {
		return msg
	}
	return sanitize.Message(msg, "request failed")
}

// WriteJSON writes v with status. Encoding errors are dropped since the
// header is already on the wire.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// DecodeJSON decodes the request body into T, rejecting unknown fields.
func DecodeJSON[T any](r *http.Request) (*T, error) {
	var v T
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid json payload")
	}
	return &v, nil
}

// LogFailure logs err at warn for client errors and at error for server
// errors, tagged with the request id.
func LogFailure(ctx context.Context, logger *slog.Logger, msg string, err error) {
	level := slog.LevelWarn
	if StatusFor(dErrors.CodeOf(err)) >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	logger.Log(ctx, level, msg,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
}

// PageFromQuery reads zero-based ?page= and ?size= parameters. Missing or
// malformed values fall back to defaults via PageRequest.Normalize.
func PageFromQuery(r *http.Request) id.PageRequest {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("size"))
	return id.PageRequest{Page: page, Size: size}.Normalize()
}

// Caller returns the verified principal of r, or CodeUnauthorized when the
// request reached a handler without one.
func Caller(r *http.Request) (requestcontext.VerifiedPrincipal, error) {
	p, ok := requestcontext.Principal(r.Context())
	if !ok || p.Subject.IsNil() {
		return requestcontext.VerifiedPrincipal{}, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	return p, nil
}
