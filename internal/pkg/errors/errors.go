package errors

import "errors"

var (
	ErrInvalid  = errors.New("invalid")
	ErrNotFound = errors.New("not found")
	ErrUpstream = errors.New("upstream unavailable")
	ErrInternal = errors.New("internal")
)

func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalid)
}

func IsUpstream(err error) bool {
	return errors.Is(err, ErrUpstream)
}
