package service

import (
	"errors"
	"fmt"
)

// ErrNotFound is wrapped by rule errors about a missing demand, project,
// allocation or party.
var ErrNotFound = errors.New("not found")

// RuleError is a ledger rule violation. Its message is meant for the caller
// verbatim.
type RuleError struct {
	Msg string
	Err error
}

func (e *RuleError) Error() string { return e.Msg }

func (e *RuleError) Unwrap() error { return e.Err }

func rule(format string, args ...any) error {
	return &RuleError{Msg: fmt.Sprintf(format, args...)}
}

func missing(format string, args ...any) error {
	return &RuleError{Msg: fmt.Sprintf(format, args...), Err: ErrNotFound}
}
