package pointer

import "errors"

var (
	ErrInvalidHashLength     = errors.New("pointer: invalid hash length")
	ErrMalformedPointerValue = errors.New("pointer: malformed pointer value")
	ErrHashMismatch          = errors.New("pointer: content hash mismatch")
)

func IsMalformed(err error) bool { return errors.Is(err, ErrMalformedPointerValue) }
