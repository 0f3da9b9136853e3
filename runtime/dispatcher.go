package runtime

import (
	"context"
	"log/slog"
	"time"

	"social-lab/contract"
	"social-lab/domain/event"
	"social-lab/observability"
)

var _ contract.IDispatcher = (*Dispatcher)(nil)

type DeliveryCounter interface {
	IncrDelivered()
	IncrSkipped()
	IncrFailed()
}

// Dispatcher pushes one event to one user's live connection.
//
// It provides best-effort delivery with no queueing, retry or persistence: an
// offline recipient is a silent no-op and a failing connection is logged and
// forgotten. The persisted domain record stays the source of truth.
//
// Dispatcher is safe for concurrent use by multiple goroutines.
type Dispatcher struct {
	log             *slog.Logger
	presence        contract.IPresenceReader
	deliveryTimeout time.Duration
	counter         DeliveryCounter
}

func NewDispatcher(log *slog.Logger, presence contract.IPresenceReader, deliveryTimeout time.Duration, counter DeliveryCounter) *Dispatcher {
	return &Dispatcher{log: log, presence: presence, deliveryTimeout: deliveryTimeout, counter: counter}
}

// Dispatch sends e on targetUserID's current connection only, at most once.
func (d *Dispatcher) Dispatch(ctx context.Context, targetUserID string, e event.Event) contract.Outcome {
	entry, ok := d.presence.Get(targetUserID)
	if !ok {
		d.log.Debug("Recipient offline, dispatch skipped", "user_id", targetUserID, "type", e.Type())
		return d.record(e, contract.Skipped)
	}

	// The producer's request may end right after this call, delivery must not depend on it.
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.deliveryTimeout)
	defer cancel()

	if err := entry.Sink.Consume(sendCtx, e); err != nil {
		d.log.Warn("Dispatch failed, event dropped",
			"user_id", targetUserID,
			"connection_id", entry.ConnectionID,
			"type", e.Type(),
			"error", err)
		return d.record(e, contract.Failed)
	}
	return d.record(e, contract.Delivered)
}

func (d *Dispatcher) record(e event.Event, outcome contract.Outcome) contract.Outcome {
	observability.Dispatches.WithLabelValues(string(e.Type()), string(outcome)).Inc()
	if d.counter == nil {
		return outcome
	}
	switch outcome {
	case contract.Delivered:
		d.counter.IncrDelivered()
	case contract.Skipped:
		d.counter.IncrSkipped()
	case contract.Failed:
		d.counter.IncrFailed()
	}
	return outcome
}
