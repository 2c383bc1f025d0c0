package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedFormat   = errors.New("unsupported format")
	ErrCorruptInput        = errors.New("corrupt input")
	ErrExtractionFailure   = errors.New("extraction failure")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrDeliveryFailure     = errors.New("delivery failure")
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionBusy         = errors.New("session busy")
	ErrInvalidInput        = errors.New("invalid input")
	ErrTemporary           = errors.New("temporary failure")
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
