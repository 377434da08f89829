package model

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrValidation     = errors.New("validation error")
	ErrConflict       = errors.New("conflict")
	ErrExternalSource = errors.New("external source error")
	ErrStorage        = errors.New("storage error")
)
