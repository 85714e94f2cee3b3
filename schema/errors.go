package schema

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrWriteFailed is wrapped by every WriteError.
	ErrWriteFailed = errors.New("schema: write failed")
	// ErrEmptyValue is returned when asked to write a zero-length value.
	ErrEmptyValue = errors.New("schema: refusing to write empty value")
)

// WriteStage names where a write failed.
type WriteStage string

const (
	StageEncode  WriteStage = "encode"
	StageSubmit  WriteStage = "submit"
	StageConfirm WriteStage = "confirm"
)

// WriteError reports a failed setData. It is surfaced to callers as-is and
// never retried.
type WriteError struct {
	Stage   WriteStage
	Profile common.Address
	Key     common.Hash
	Tx      common.Hash
	Err     error
}

func (e *WriteError) Error() string {
	msg := fmt.Sprintf("schema: setData(%s) on %s failed at %s", KeyName(e.Key), e.Profile.Hex(), e.Stage)
	if e.Tx != (common.Hash{}) {
		msg += " (tx " + e.Tx.Hex() + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *WriteError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrWriteFailed}
	}
	return []error{ErrWriteFailed, e.Err}
}
