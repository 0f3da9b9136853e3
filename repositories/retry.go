package repositories

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
)

const appendStripes = 64

// appendLocks serializes appends per conversation inside the process.
// Stripes are picked from the random bits of the conversation id.
type appendLocks [appendStripes]sync.Mutex

func (l *appendLocks) of(conversationID uuid.UUID) *sync.Mutex {
	return &l[int(conversationID[15])%appendStripes]
}

// conflictPause waits a jittered, growing delay before a transaction rejected with
// badger.ErrConflict is retried.
func conflictPause(attempt int) {
	base := time.Duration(attempt) * time.Millisecond
	time.Sleep(base + rand.N(base))
}
