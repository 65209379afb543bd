package types

import (
	"errors"
	"fmt"
	"time"
)

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// NewErrorResponse builds a consistent API error payload.
// details can be string, map, struct, etc.
func NewErrorResponse(code, message string, details any) ErrorResponse {
	return ErrorResponse{
		Error: ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

// Error classes, usable with errors.Is.
var (
	ErrValidation    = errors.New("validation error")
	ErrProtocol      = errors.New("protocol error")
	ErrConfiguration = errors.New("configuration error")
	ErrTimeout       = errors.New("timeout")
)

// ValidationError is returned by a validator before anything reaches the wire.
type ValidationError struct {
	Value  any
	Domain string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("value %v rejected: expected %s", e.Value, e.Domain)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// ProtocolError means a reply could not be decoded into the expected type.
// The connection stays usable.
type ProtocolError struct {
	Command string
	Reply   string
	Err     error
}

func (e *ProtocolError) Error() string {
	if e.Reply == "" {
		return fmt.Sprintf("protocol error on %q: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("protocol error on %q (reply %q): %v", e.Command, e.Reply, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

func (e *ProtocolError) Is(target error) bool {
	return target == ErrProtocol
}

// ConfigurationError reports a request that is structurally invalid
// regardless of instrument state.
type ConfigurationError struct {
	Op     string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// TimeoutError reports a bounded wait that ran out of budget.
type TimeoutError struct {
	Op     string
	Budget time.Duration
	Err    error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: no completion within %s", e.Op, e.Budget)
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}
