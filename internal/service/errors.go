package service

import "errors"

var (
	ErrInvalidToken          = errors.New("invalid or expired token")
	ErrNameInvalid           = errors.New("display name is invalid")
	ErrNameTaken             = errors.New("display name is already held for this room")
	ErrAdminPasswordRequired = errors.New("admin password required")
	ErrAdminPasswordInvalid  = errors.New("invalid admin password")
	ErrInternalServer        = errors.New("internal server error")
)
