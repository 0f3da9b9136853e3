package runtime

import (
	"sync"
	"time"

	"social-lab/contract"
)

var _ contract.IPresenceReader = (*Registry)(nil)

// Registry maps each online user to the single connection currently receiving its events.
//
// It keeps a reverse index (connection -> user) so a close event can be resolved
// without scanning. The only writer is the PresenceRouter; readers (the dispatcher,
// presence queries) may run concurrently and always observe whole entries.
type Registry struct {
	mu          sync.RWMutex
	sessions    map[string]contract.Entry        // map user -> current connection
	connections map[contract.ConnectionID]string // map connection -> user
	now         func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		sessions:    make(map[string]contract.Entry),
		connections: make(map[contract.ConnectionID]string),
		now:         time.Now,
	}
}

// Put registers connectionID as the user's live connection.
// A previous connection of the same user is superseded: it stays open on the transport
// side but is no longer reachable through the registry. The superseded id is returned.
func (r *Registry) Put(userID string, connectionID contract.ConnectionID, sink contract.EventSink) (contract.ConnectionID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	previous, existed := r.sessions[userID]
	if existed {
		delete(r.connections, previous.ConnectionID)
	}
	// The same connection id cannot belong to two users.
	if owner, ok := r.connections[connectionID]; ok && owner != userID {
		delete(r.sessions, owner)
	}

	r.sessions[userID] = contract.Entry{ConnectionID: connectionID, Sink: sink, Since: r.now()}
	r.connections[connectionID] = userID

	if existed && previous.ConnectionID != connectionID {
		return previous.ConnectionID, true
	}
	return "", false
}

// Remove deletes the mapping held by connectionID and returns the user it belonged to.
// A connection that was already superseded holds no mapping, so its late close
// cannot evict the newer session.
func (r *Registry) Remove(connectionID contract.ConnectionID) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.connections[connectionID]
	if !ok {
		return "", false
	}
	delete(r.connections, connectionID)

	if current, exists := r.sessions[userID]; exists && current.ConnectionID == connectionID {
		delete(r.sessions, userID)
	}
	return userID, true
}

// Get returns a copy of the user's current entry.
func (r *Registry) Get(userID string) (contract.Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.sessions[userID]
	return entry, ok
}

func (r *Registry) Online(userID string) bool {
	_, ok := r.Get(userID)
	return ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Reset drops every mapping. Used on shutdown.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = make(map[string]contract.Entry)
	r.connections = make(map[contract.ConnectionID]string)
}
