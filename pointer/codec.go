package pointer

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	selectorSize = 2
	methodSize   = 4
	lengthSize   = 2
	minValueSize = 4
)

// Encode builds the stored value for locator. A nil or all-zero hash yields the
// unverified form; any other hash must be exactly HashSize bytes and yields the
// keccak256(utf8) verified form. The locator is written as its UTF-8 bytes,
// without any escaping.
func Encode(locator string, hash []byte) ([]byte, error) {
	if len(hash) != 0 && len(hash) != HashSize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidHashLength, len(hash), HashSize)
	}
	if len(hash) == 0 || isZero(hash) {
		out := make([]byte, 0, minValueSize+len(locator))
		out = append(out, 0x00, 0x00, 0x00, 0x00)
		return append(out, locator...), nil
	}
	return encodeWith(MethodKeccak256UTF8, locator, hash)
}

func encodeWith(m Method, locator string, hash []byte) ([]byte, error) {
	if len(hash) != HashSize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidHashLength, len(hash), HashSize)
	}
	if m == MethodNone || !m.known() {
		return nil, fmt.Errorf("%w: cannot encode method %s", ErrMalformedPointerValue, m)
	}
	out := make([]byte, selectorSize+methodSize+lengthSize, selectorSize+methodSize+lengthSize+HashSize+len(locator))
	binary.BigEndian.PutUint32(out[selectorSize:], uint32(m))
	binary.BigEndian.PutUint16(out[selectorSize+methodSize:], HashSize)
	out = append(out, hash...)
	return append(out, locator...), nil
}

// Decode parses a stored value. Callers treat zero-length values as unset
// before calling Decode; Decode itself rejects them as malformed. Locator
// bytes are returned as stored, even when they are not valid UTF-8.
//
// Accepted layouts:
//
//	0x0000 0000 <locator>                        unverified (short form)
//	0x0000 00000000 0000 <locator>               unverified (LSP2 form)
//	0x0000 <method> 0020 <digest> <locator>      verified
//	0x0000 <method> <digest> <locator>           verified, legacy form without length
func Decode(b []byte) (*Pointer, error) {
	if len(b) < minValueSize {
		return nil, fmt.Errorf("%w: %d bytes, need at least %d", ErrMalformedPointerValue, len(b), minValueSize)
	}
	if b[0] != 0x00 || b[1] != 0x00 {
		return nil, fmt.Errorf("%w: unrecognized selector 0x%02x%02x", ErrMalformedPointerValue, b[0], b[1])
	}

	if b[2] == 0x00 && b[3] == 0x00 {
		return decodeUnverified(b)
	}

	if len(b) < selectorSize+methodSize {
		return nil, fmt.Errorf("%w: truncated verification method", ErrMalformedPointerValue)
	}
	m := Method(binary.BigEndian.Uint32(b[selectorSize:]))
	if m == MethodNone || !m.known() {
		return nil, fmt.Errorf("%w: unrecognized verification method 0x%08x", ErrMalformedPointerValue, uint32(m))
	}

	body := b[selectorSize+methodSize:]
	if len(body) >= lengthSize+HashSize && binary.BigEndian.Uint16(body) == HashSize {
		body = body[lengthSize:]
	} else if len(body) < HashSize {
		return nil, fmt.Errorf("%w: truncated %s digest", ErrMalformedPointerValue, m)
	}

	hash := make([]byte, HashSize)
	copy(hash, body[:HashSize])
	return &Pointer{Method: m, Hash: hash, Locator: string(body[HashSize:])}, nil
}

func decodeUnverified(b []byte) (*Pointer, error) {
	rest := b[minValueSize:]
	// A locator never starts with NUL, so two more zero bytes mean the LSP2
	// layout with an explicit zero data length.
	if len(rest) >= 2 && rest[0] == 0x00 && rest[1] == 0x00 {
		if len(rest) < 2+lengthSize {
			return nil, fmt.Errorf("%w: truncated data length", ErrMalformedPointerValue)
		}
		if n := binary.BigEndian.Uint16(rest[2:]); n != 0 {
			return nil, fmt.Errorf("%w: unverified value declares %d bytes of verification data", ErrMalformedPointerValue, n)
		}
		rest = rest[2+lengthSize:]
	}
	return &Pointer{Method: MethodNone, Locator: string(rest)}, nil
}

// EncodeHex is Encode rendered as a 0x-prefixed hex string.
func EncodeHex(locator string, hash []byte) (string, error) {
	b, err := Encode(locator, hash)
	if err != nil {
		return "", err
	}
	return "0x" + hex.EncodeToString(b), nil
}

// DecodeHex parses a 0x-prefixed (or bare) hex value and decodes it.
func DecodeHex(s string) (*Pointer, error) {
	b, err := ParseHex(s)
	if err != nil {
		return nil, err
	}
	return Decode(b)
}

// ParseHex decodes 0x-prefixed or bare hex. "0x" yields an empty slice.
func ParseHex(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPointerValue, err)
	}
	return b, nil
}

// ParseHash decodes a 32-byte hex digest.
func ParseHash(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHashLength, err)
	}
	if len(b) != HashSize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidHashLength, len(b), HashSize)
	}
	return b, nil
}

func isZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}
