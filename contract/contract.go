//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"
	"time"

	"social-lab/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink is the write side of one live connection.
type EventSink interface {
	Consume(ctx context.Context, e event.Event) error
}

// ConnectionID is opaque outside the transport that created it.
type ConnectionID string

// Entry is what the registry holds for an online user.
type Entry struct {
	ConnectionID ConnectionID
	Sink         EventSink
	Since        time.Time
}

// IPresenceReader is the read-only view handed to the dispatcher and services.
type IPresenceReader interface {
	Get(userID string) (Entry, bool)
	Online(userID string) bool
	Len() int
}

// IPresenceRouter is the only writer of connection state.
type IPresenceRouter interface {
	Connected(ctx context.Context, userID string, connectionID ConnectionID, sink EventSink) error
	Closed(ctx context.Context, connectionID ConnectionID) error
}

type Outcome string

const (
	Delivered Outcome = "delivered"
	Skipped   Outcome = "skipped"
	Failed    Outcome = "failed"
)

// IDispatcher pushes one event to one user, best effort.
// Implementations never return an error to the producer.
type IDispatcher interface {
	Dispatch(ctx context.Context, targetUserID string, e event.Event) Outcome
}
