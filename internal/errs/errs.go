package errs

import (
	"errors"
	"fmt"
)

// Sentinel errors for the engine. Handlers dispatch on these with
// errors.Is to pick an HTTP status; services wrap them with context.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidEvidence    = errors.New("invalid evidence")
	ErrDuplicateEvidence  = errors.New("duplicate evidence")
	ErrInsufficientData   = errors.New("insufficient transaction history")
	ErrNotFound           = errors.New("not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrTransientProvider  = errors.New("transient provider failure")
	ErrTerminalProvider   = errors.New("terminal provider failure")
)

// Wrap adds context and preserves the error chain (errors.Is/As works).
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf adds formatted context and preserves the error chain.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	args = append(args, err)
	return fmt.Errorf(format+": %w", args...)
}
