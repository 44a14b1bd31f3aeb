package apperrors

import "errors"

var (
	ErrUnauthorized    = errors.New("unauthorized")
	ErrValidation      = errors.New("invalid request")
	ErrNotFound        = errors.New("not found")
	ErrInvalidSnapshot = errors.New("invalid snapshot")
)
