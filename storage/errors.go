package storage

import "errors"

var (
	ErrNotFound = errors.New("storage: not found")
	// ErrInvalidCID is returned for undefined CIDs and unparsable names.
	ErrInvalidCID = errors.New("storage: invalid cid")
	// ErrCIDMismatch means bytes do not hash to the CID they were stored or
	// requested under.
	ErrCIDMismatch = errors.New("storage: cid mismatch")
	// ErrImmutable is returned when a Put would replace a document.
	ErrImmutable  = errors.New("storage: immutable document mismatch")
	ErrNoBackends = errors.New("storage: no mirror backends configured")
)

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
