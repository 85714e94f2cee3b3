package marketplace

import "errors"

var (
	ErrUnknownTemplate = errors.New("marketplace: unknown template")
	// ErrNoPointerConfigured means the template has no grid value to write or
	// preview: no static source and no live value on its profile.
	ErrNoPointerConfigured = errors.New("marketplace: template has no grid value configured")
	ErrInvalidAddress      = errors.New("marketplace: invalid address")
	ErrProfileNotFound     = errors.New("marketplace: no profile metadata for address")
	// ErrWritePending rejects a second apply of the same value to the same
	// profile while the first is unconfirmed.
	ErrWritePending = errors.New("marketplace: write already pending")
)
