package replay

import (
	"log/slog"
	"sync"

	"replay-manager/internal/platform/logger"
)

// DefaultActionQueueSize bounds pending actions when no size is configured.
const DefaultActionQueueSize = 32

// ActionQueue is the FIFO between request handlers and the external poller.
// A new LoadClip or SetSpeed supersedes a pending action of the same kind;
// when the queue is still full the oldest action is dropped.
type ActionQueue struct {
	mu       sync.Mutex
	items    []Action
	capacity int
	dropped  int
	log      *slog.Logger
}

// NewActionQueue returns a queue holding at most capacity actions.
func NewActionQueue(capacity int, log *slog.Logger) *ActionQueue {
	if capacity <= 0 {
		capacity = DefaultActionQueueSize
	}
	if log == nil {
		log = logger.Discard()
	}
	return &ActionQueue{capacity: capacity, log: log}
}

// Enqueue appends a and returns how many pending actions it displaced.
func (q *ActionQueue) Enqueue(a Action) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	displaced := 0
	if a.Kind == ActionLoadClip || a.Kind == ActionSetSpeed {
		kept := q.items[:0]
		for _, pending := range q.items {
			if pending.Kind == a.Kind {
				displaced++
				q.log.Debug("action superseded",
					slog.String("id", pending.ID),
					slog.String("action", string(pending.Kind)),
					slog.String("by", a.ID))
				continue
			}
			kept = append(kept, pending)
		}
		q.items = kept
	}

	for len(q.items) >= q.capacity {
		q.log.Warn("action queue full, dropping oldest",
			slog.String("id", q.items[0].ID),
			slog.String("action", string(q.items[0].Kind)),
			slog.Int("capacity", q.capacity))
		q.items = q.items[1:]
		displaced++
	}

	q.items = append(q.items, a)
	q.dropped += displaced
	return displaced
}

// DequeueIfPresent pops the oldest action without blocking.
func (q *ActionQueue) DequeueIfPresent() (Action, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return Action{}, false
	}
	a := q.items[0]
	q.items[0] = Action{}
	q.items = q.items[1:]
	return a, true
}

// Len returns the number of pending actions.
func (q *ActionQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Dropped returns the total number of displaced actions.
func (q *ActionQueue) Dropped() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Pending returns a copy of the pending actions, oldest first.
func (q *ActionQueue) Pending() []Action {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Action(nil), q.items...)
}
