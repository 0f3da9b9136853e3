package runtime

import (
	"context"
	"log/slog"
	"sync"

	"social-lab/contract"
	"social-lab/errors"
	"social-lab/observability"
)

var (
	_ contract.Worker          = (*PresenceRouter)(nil)
	_ contract.IPresenceRouter = (*PresenceRouter)(nil)
)

type lifecycleKind int

const (
	connectionEstablished lifecycleKind = iota
	connectionClosed
)

type lifecycleEvent struct {
	kind         lifecycleKind
	userID       string
	connectionID contract.ConnectionID
	sink         contract.EventSink
	applied      chan struct{}
}

// PresenceRouter owns every write to the Registry.
//
// Transports report connect and close through Connected and Closed; both enqueue a
// lifecycle event and wait until the Run loop has applied it. Run is the single
// event-processing path, so registry mutations are serialized whatever the number
// of transports or goroutines reporting them.
type PresenceRouter struct {
	log       *slog.Logger
	registry  *Registry
	lifecycle chan lifecycleEvent
	stopped   chan struct{}
	stopOnce  sync.Once
}

func NewPresenceRouter(log *slog.Logger, registry *Registry, bufferSize int) *PresenceRouter {
	return &PresenceRouter{
		log:       log,
		registry:  registry,
		lifecycle: make(chan lifecycleEvent, bufferSize),
		stopped:   make(chan struct{}),
	}
}

// Run applies lifecycle events until ctx is done. Once stopped, the router rejects new events.
func (p *PresenceRouter) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			p.stopOnce.Do(func() { close(p.stopped) })
			p.log.Debug("Context done, presence router stopped")
			return nil
		case evt := <-p.lifecycle:
			p.apply(evt)
		}
	}
}

func (p *PresenceRouter) apply(evt lifecycleEvent) {
	// Released even if applying panics, the supervisor restarts Run.
	defer close(evt.applied)

	switch evt.kind {
	case connectionEstablished:
		superseded, replaced := p.registry.Put(evt.userID, evt.connectionID, evt.sink)
		p.log.Info("Connection registered", "user_id", evt.userID, "connection_id", evt.connectionID)
		if replaced {
			p.log.Debug("Previous connection superseded",
				"user_id", evt.userID,
				"superseded_connection_id", superseded)
		}
	case connectionClosed:
		userID, ok := p.registry.Remove(evt.connectionID)
		if !ok {
			p.log.Debug("Close of a superseded or unknown connection ignored", "connection_id", evt.connectionID)
			break
		}
		p.log.Info("Connection unregistered", "user_id", userID, "connection_id", evt.connectionID)
	}
	observability.ConnectedUsers.Set(float64(p.registry.Len()))
}

// Connected registers connectionID as userID's live connection (last connection wins).
func (p *PresenceRouter) Connected(ctx context.Context, userID string, connectionID contract.ConnectionID, sink contract.EventSink) error {
	return p.submit(ctx, lifecycleEvent{
		kind:         connectionEstablished,
		userID:       userID,
		connectionID: connectionID,
		sink:         sink,
	})
}

// Closed removes the mapping of connectionID, if it is still the user's current one.
func (p *PresenceRouter) Closed(ctx context.Context, connectionID contract.ConnectionID) error {
	return p.submit(ctx, lifecycleEvent{
		kind:         connectionClosed,
		connectionID: connectionID,
	})
}

func (p *PresenceRouter) submit(ctx context.Context, evt lifecycleEvent) error {
	evt.applied = make(chan struct{})

	select {
	case <-p.stopped:
		return errors.ErrRouterStopped
	default:
	}

	select {
	case p.lifecycle <- evt:
	case <-p.stopped:
		return errors.ErrRouterStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-evt.applied:
		return nil
	case <-p.stopped:
		select {
		case <-evt.applied:
			return nil
		default:
			return errors.ErrRouterStopped
		}
	case <-ctx.Done():
		if evt.kind == connectionEstablished {
			p.withdraw(evt.connectionID)
		}
		return ctx.Err()
	}
}

// withdraw queues the close of a connection whose caller gave up after its event was queued.
// The lifecycle channel is FIFO so the close is applied after the registration.
func (p *PresenceRouter) withdraw(connectionID contract.ConnectionID) {
	evt := lifecycleEvent{
		kind:         connectionClosed,
		connectionID: connectionID,
		applied:      make(chan struct{}),
	}
	go func() {
		select {
		case p.lifecycle <- evt:
		case <-p.stopped:
		}
	}()
}
