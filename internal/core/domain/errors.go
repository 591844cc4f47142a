package domain

import (
	"errors"
	"fmt"
)

var (
	// Input errors: surfaced to the caller before any model call, never retried.
	ErrUnsupportedMedia = errors.New("unsupported media type")
	ErrPayloadTooLarge  = errors.New("payload too large")
	ErrFetchFailed      = errors.New("remote fetch failed")
	ErrCorruptMedia     = errors.New("corrupt media")

	// Model errors: retried once inside the gateway, then fail the whole request.
	ErrModelUnavailable = errors.New("model unavailable")
	ErrModelTimeout     = errors.New("model timeout")
	ErrModelRefusal     = errors.New("model refused")

	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("analysis not found")
	ErrForbidden    = errors.New("forbidden")
	ErrTemporary    = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
