package listing

import "errors"

// Domain-level error values returned by the listing service.
var (
	ErrPropertyNotFound     = errors.New("property not found")
	ErrProjectNotFound      = errors.New("project not found")
	ErrNotOwner             = errors.New("listing owned by another agent")
	ErrInvalidProperty      = errors.New("invalid property")
	ErrInvalidProject       = errors.New("invalid project")
	ErrInvalidServiceConfig = errors.New("invalid service config")
)
