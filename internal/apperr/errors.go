package apperr

import "errors"

var (
	ErrNotFound   = errors.New("not found")
	ErrDuplicate  = errors.New("duplicate id")
	ErrValidation = errors.New("invalid value")
	ErrConflict   = errors.New("conflict")
)
