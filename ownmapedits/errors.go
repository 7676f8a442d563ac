package ownmapedits

import (
	"errors"
	"fmt"

	"github.com/jamesrr39/goutil/errorsx"
)

var (
	// ErrConflict means the remote element has diverged from what the edit was based on.
	// An edit failing with it can never be applied.
	ErrConflict = errors.New("conflict")
	// ErrUnresolvedPlaceholder means an edit references a locally created element that has not been uploaded (yet)
	ErrUnresolvedPlaceholder = errors.New("unresolved placeholder id")
)

func NewConflictError(reason string, args ...interface{}) errorsx.Error {
	return errorsx.Wrap(ErrConflict, "reason", fmt.Sprintf(reason, args...))
}

// IsConflict reports whether err was caused by a conflict with the remote state
func IsConflict(err error) bool {
	if err == nil {
		return false
	}
	return errorsx.Cause(err) == ErrConflict
}
