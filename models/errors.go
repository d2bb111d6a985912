// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	CodeNotFound         ErrorCode = "NotFound"
	CodeConflict         ErrorCode = "Conflict"
	CodeBadRequest       ErrorCode = "BadRequest"
	CodeUnauthorized     ErrorCode = "Unauthorized"
	CodeStoreUnavailable ErrorCode = "StoreUnavailable"
	CodeUnknown          ErrorCode = "Unknown"
)

// PollError carries one of the error codes above. Two PollErrors match
// under errors.Is when their codes are equal, so the sentinels below can be
// used to classify any error produced by the store, service, or auth layers.
type PollError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *PollError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *PollError) Unwrap() error { return e.Err }

func (e *PollError) Is(target error) bool {
	var t *PollError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

var (
	ErrNotFound         = &PollError{Code: CodeNotFound, Message: "not found"}
	ErrConflict         = &PollError{Code: CodeConflict, Message: "conflict"}
	ErrBadRequest       = &PollError{Code: CodeBadRequest, Message: "bad request"}
	ErrUnauthorized     = &PollError{Code: CodeUnauthorized, Message: "unauthorized"}
	ErrStoreUnavailable = &PollError{Code: CodeStoreUnavailable, Message: "store unavailable"}
)

func NewNotFoundError(format string, args ...any) error {
	return &PollError{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

func NewConflictError(format string, args ...any) error {
	return &PollError{Code: CodeConflict, Message: fmt.Sprintf(format, args...)}
}

func NewBadRequestError(format string, args ...any) error {
	return &PollError{Code: CodeBadRequest, Message: fmt.Sprintf(format, args...)}
}

func NewUnauthorizedError(format string, args ...any) error {
	return &PollError{Code: CodeUnauthorized, Message: fmt.Sprintf(format, args...)}
}

// NewStoreUnavailableError wraps a driver error. The cause stays reachable
// through errors.Unwrap for logging but is never shown to clients.
func NewStoreUnavailableError(op string, err error) error {
	return &PollError{Code: CodeStoreUnavailable, Message: op, Err: err}
}

// AsPollError extracts the first PollError in err's chain.
func AsPollError(err error) (*PollError, bool) {
	var pe *PollError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// CodeOf classifies err. Errors outside the taxonomy are CodeUnknown.
func CodeOf(err error) ErrorCode {
	if pe, ok := AsPollError(err); ok {
		return pe.Code
	}
	return CodeUnknown
}

// PublicMessage is the text safe to send to a client for err.
func PublicMessage(err error) string {
	pe, ok := AsPollError(err)
	if !ok {
		return "internal error"
	}
	return pe.Message
}

// Retryable reports whether the caller may retry the same action unchanged.
func Retryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
