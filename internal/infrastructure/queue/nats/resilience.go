package nats

import (
	"context"
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/carebridge/carechat/internal/core/domain"
	"github.com/carebridge/carechat/internal/infrastructure/resilience"
)

// retryableConnErrs are connection-level failures a reconnecting client can
// outlive; a report publish hitting one is worth another attempt.
var retryableConnErrs = []error{
	nats.ErrNoServers,
	nats.ErrTimeout,
	nats.ErrConnectionClosed,
	nats.ErrDisconnected,
	nats.ErrReconnectBufExceeded,
}

func classifyNATSError(err error) resilience.ErrorClassification {
	switch {
	case err == nil:
		return resilience.ErrorClassification{}
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		// The caller gave up; retrying on their behalf helps nobody.
		return resilience.ErrorClassification{}
	case resilience.IsCircuitOpen(err):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	for _, sentinel := range retryableConnErrs {
		if errors.Is(err, sentinel) {
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		}
	}
	// Bad subject, oversized payload and the like are deterministic: count
	// them against the breaker but do not retry.
	return resilience.ErrorClassification{RecordFailure: true}
}

// wrapTemporaryIfNeeded marks connection-level publish failures as temporary
// so session teardown can log-and-continue instead of failing the whole End
// call over a transcript that can still be re-sent.
func wrapTemporaryIfNeeded(err error) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if class := classifyNATSError(err); class.Retryable {
		return domain.WrapError(domain.ErrTemporary, "report publish", err)
	}
	return err
}
