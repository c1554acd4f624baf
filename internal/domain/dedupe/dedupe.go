// Package dedupe tracks recently seen score batch ids so replays are answered
// without writing twice.
package dedupe

import (
	"container/list"
	"context"
	"strings"
	"sync"
)

const defaultMaxSize = 50000

// State is what a window knows about a batch key.
type State int

const (
	// Fresh keys were not seen before.
	Fresh State = iota
	// Pending keys belong to a batch whose write has not finished.
	Pending
	// Committed keys belong to a stored batch.
	Committed
)

// Deduper records batch keys from first sight until their write commits.
type Deduper interface {
	// Begin reports the state key had and records a fresh key as pending.
	Begin(ctx context.Context, key string) State
	// Commit marks a pending key as stored.
	Commit(ctx context.Context, key string)
	// Unrecord forgets key so the batch can be retried after a failed write.
	Unrecord(ctx context.Context, key string)
	Size() int64
}

// BatchKey scopes a client batch id to the evaluator, team and stage it targets.
func BatchKey(evaluatorID, teamID, stageID, batchID string) string {
	return strings.Join([]string{evaluatorID, teamID, stageID, batchID}, "|")
}

type entry struct {
	key       string
	committed bool
}

// Window is a bounded in-memory Deduper. When full, the oldest key is evicted.
// A non-positive max size disables eviction.
type Window struct {
	mu      sync.Mutex
	maxSize int
	order   *list.List
	seen    map[string]*list.Element
}

// NewWindow creates a window with the given options.
func NewWindow(opts ...Option) *Window {
	w := &Window{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(w)
	}
	w.order = list.New()
	w.seen = make(map[string]*list.Element)
	return w
}

// Begin implements Deduper.
func (w *Window) Begin(_ context.Context, key string) State {
	w.mu.Lock()
	defer w.mu.Unlock()

	if el, ok := w.seen[key]; ok {
		if el.Value.(*entry).committed {
			return Committed
		}
		return Pending
	}
	if w.maxSize > 0 && len(w.seen) >= w.maxSize {
		if oldest := w.order.Front(); oldest != nil {
			delete(w.seen, oldest.Value.(*entry).key)
			w.order.Remove(oldest)
		}
	}
	w.seen[key] = w.order.PushBack(&entry{key: key})
	return Fresh
}

// Commit implements Deduper. Evicted keys stay forgotten.
func (w *Window) Commit(_ context.Context, key string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if el, ok := w.seen[key]; ok {
		el.Value.(*entry).committed = true
	}
}

// Unrecord implements Deduper.
func (w *Window) Unrecord(_ context.Context, key string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if el, ok := w.seen[key]; ok {
		w.order.Remove(el)
		delete(w.seen, key)
	}
}

// Size implements Deduper.
func (w *Window) Size() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return int64(len(w.seen))
}
