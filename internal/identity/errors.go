package identity

import (
	"errors"

	dErrors "boxoffice/pkg/domain-errors"
	"boxoffice/pkg/platform/sentinel"
)

// Fault maps a directory failure onto a coded error. An unreachable
// directory is CodeUnavailable, anything else CodeInternal.
func Fault(err error, msg string) error {
	if sentinel.IsUnavailable(err) {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, msg)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}

// ignoreConflict treats a taken e-mail as a healthy round trip.
func ignoreConflict(err error) error {
	if errors.Is(err, sentinel.ErrAlreadyUsed) {
		return nil
	}
	return err
}
