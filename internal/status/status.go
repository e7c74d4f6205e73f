package status

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("forbidden")
	ErrSessionLocked       = errors.New("session: locked to new participants")
	ErrSessionFull         = errors.New("session: participant limit reached")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrUpstreamUnavailable = errors.New("upstream provider unavailable")
	ErrPermissionDenied    = errors.New("permission denied")
)
