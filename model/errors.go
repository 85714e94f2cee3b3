package model

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"xdao.co/gridstore/catalog"
	"xdao.co/gridstore/chain"
	"xdao.co/gridstore/grid"
	"xdao.co/gridstore/marketplace"
	"xdao.co/gridstore/pointer"
	"xdao.co/gridstore/resolver"
	"xdao.co/gridstore/schema"
)

type ErrorCode string

const (
	ErrInvalidRequest   ErrorCode = "INVALID_REQUEST"
	ErrInvalidAddress   ErrorCode = "INVALID_ADDRESS"
	ErrInvalidHash      ErrorCode = "INVALID_HASH_LENGTH"
	ErrMalformedPointer ErrorCode = "MALFORMED_POINTER_VALUE"
	ErrInvalidLayout    ErrorCode = "INVALID_LAYOUT"
	ErrUnknownNetwork   ErrorCode = "UNKNOWN_NETWORK"
	ErrNotFound         ErrorCode = "NOT_FOUND"
	ErrNoStore          ErrorCode = "NO_STORE"
	ErrNoPointer        ErrorCode = "NO_POINTER_CONFIGURED"
	ErrFetchFailed      ErrorCode = "FETCH_FAILED"
	ErrIntegrity        ErrorCode = "INTEGRITY"
	ErrWriteFailed      ErrorCode = "WRITE_FAILED"
	ErrWritePending     ErrorCode = "WRITE_PENDING"
	ErrTimeout          ErrorCode = "TIMEOUT"
	ErrInternal         ErrorCode = "INTERNAL"
)

// CodedError is a stable error with a machine-readable code and a human message.
type CodedError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func (e *CodedError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewError(code ErrorCode, message string) *CodedError {
	return &CodedError{Code: code, Message: message}
}

var codes = []struct {
	target error
	code   ErrorCode
}{
	{pointer.ErrInvalidHashLength, ErrInvalidHash},
	{pointer.ErrMalformedPointerValue, ErrMalformedPointer},
	{grid.ErrInvalidLayout, ErrInvalidLayout},
	{chain.ErrUnknownNetwork, ErrUnknownNetwork},
	{chain.ErrNoStore, ErrNoStore},
	{marketplace.ErrInvalidAddress, ErrInvalidAddress},
	{marketplace.ErrUnknownTemplate, ErrNotFound},
	{marketplace.ErrProfileNotFound, ErrNotFound},
	{marketplace.ErrNoPointerConfigured, ErrNoPointer},
	{marketplace.ErrWritePending, ErrWritePending},
	{catalog.ErrLiveSource, ErrNoPointer},
	{resolver.ErrIntegrity, ErrIntegrity},
	{resolver.ErrFetchFailed, ErrFetchFailed},
	{resolver.ErrEmptyLocator, ErrInvalidRequest},
	{schema.ErrWriteFailed, ErrWriteFailed},
	{context.DeadlineExceeded, ErrTimeout},
}

// FromError classifies err. Errors that already carry a code pass through;
// unrecognised errors become INTERNAL.
func FromError(err error) *CodedError {
	if err == nil {
		return nil
	}
	var ce *CodedError
	if errors.As(err, &ce) {
		return ce
	}
	for _, c := range codes {
		if errors.Is(err, c.target) {
			return NewError(c.code, err.Error())
		}
	}
	return NewError(ErrInternal, err.Error())
}

// HTTPStatus is the response status for code.
func (c ErrorCode) HTTPStatus() int {
	switch c {
	case ErrInvalidRequest, ErrInvalidAddress, ErrInvalidHash, ErrMalformedPointer, ErrUnknownNetwork:
		return http.StatusBadRequest
	case ErrNotFound, ErrNoStore:
		return http.StatusNotFound
	case ErrNoPointer, ErrInvalidLayout:
		return http.StatusUnprocessableEntity
	case ErrWritePending:
		return http.StatusConflict
	case ErrFetchFailed, ErrIntegrity, ErrWriteFailed:
		return http.StatusBadGateway
	case ErrTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
