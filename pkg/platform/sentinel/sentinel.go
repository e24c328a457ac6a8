package sentinel

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
)

// Store-level facts. Stores return these (optionally wrapped) and services
// translate them into coded domain errors:
//   - ErrNotFound: no row for the key
//   - ErrAlreadyUsed: a unique key (email, invite code) is taken
//   - ErrConflict: an insert-only write found a row with the same id
//   - ErrInvalidState: a conditional transition matched zero rows because the
//     row is no longer in the expected state
//   - ErrUnavailable: the backing store cannot be reached
var (
	ErrNotFound     = errors.New("not found")
	ErrAlreadyUsed  = errors.New("already used")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)

// IsUnavailable reports whether err means the backend could not be reached
// or did not answer in time, as opposed to rejecting the request.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnavailable) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
