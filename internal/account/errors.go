package account

import "errors"

// Domain-level error values returned by the account service.
var (
	ErrEmailTaken           = errors.New("email already registered")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrInvalidRegistration  = errors.New("invalid registration")
	ErrAgentNotFound        = errors.New("agent not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrInvalidServiceConfig = errors.New("invalid service config")
)
