package emitter

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// StartFunc starts an item with the remote side and returns its id.
type StartFunc func(ctx context.Context) (string, error)

// Item is an owner context whose id may still be in flight.
type Item struct {
	Key    string
	Name   string
	Parent *Item

	ready chan struct{}
	id    string
	err   error

	StartedAt  int64
	FinishedAt int64
}

func newItem(name string, parent *Item) *Item {
	return &Item{
		Key:       uuid.New().String(),
		Name:      name,
		Parent:    parent,
		ready:     make(chan struct{}),
		StartedAt: time.Now().UnixMilli(),
	}
}

func (it *Item) resolve(id string, err error) {
	it.id, it.err = id, err
	close(it.ready)
}

// ID waits for the item id or for ctx to end.
func (it *Item) ID(ctx context.Context) (string, error) {
	select {
	case <-it.ready:
		return it.id, it.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Resolved reports whether the id is known, without blocking.
func (it *Item) Resolved() bool {
	select {
	case <-it.ready:
		return true
	default:
		return false
	}
}

type ctxKey struct{}

// WithItem binds item as the owner of records emitted with ctx.
func WithItem(ctx context.Context, item *Item) context.Context {
	return context.WithValue(ctx, ctxKey{}, item)
}

// ItemFrom returns the item bound to ctx, if any.
func ItemFrom(ctx context.Context) *Item {
	if ctx == nil {
		return nil
	}
	item, _ := ctx.Value(ctxKey{}).(*Item)
	return item
}

// Registry tracks started items. The most recently started unfinished
// item is the current owner.
type Registry struct {
	mu     sync.RWMutex
	items  map[string]*Item
	active []*Item
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		items: make(map[string]*Item),
	}
}

// Register adds a started item and makes it current.
func (r *Registry) Register(item *Item) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[item.Key] = item
	r.active = append(r.active, item)
}

// Finish marks the item finished and removes it from the active stack.
func (r *Registry) Finish(item *Item) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.items[item.Key]
	if !ok || stored.FinishedAt != 0 {
		return false
	}
	stored.FinishedAt = time.Now().UnixMilli()
	for i := len(r.active) - 1; i >= 0; i-- {
		if r.active[i] == stored {
			r.active = append(r.active[:i], r.active[i+1:]...)
			break
		}
	}
	return true
}

// Current returns the innermost active item, or nil.
func (r *Registry) Current() *Item {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.active) == 0 {
		return nil
	}
	return r.active[len(r.active)-1]
}

// Get retrieves an item by key.
func (r *Registry) Get(key string) (*Item, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	item, ok := r.items[key]
	return item, ok
}

// Len returns the number of tracked items, finished ones included.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// PruneFinished forgets items finished longer than retention ago.
func (r *Registry) PruneFinished(retention time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	threshold := time.Now().Add(-retention).UnixMilli()
	count := 0
	for key, item := range r.items {
		if item.FinishedAt != 0 && item.FinishedAt <= threshold {
			delete(r.items, key)
			count++
		}
	}
	return count
}

// StartCleanupLoop prunes finished items every interval until ctx ends.
func (r *Registry) StartCleanupLoop(ctx context.Context, interval, retention time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.PruneFinished(retention)
			case <-ctx.Done():
				return
			}
		}
	}()
}
