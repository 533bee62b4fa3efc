package emitter

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coffersTech/rplog/internal/engine"
	"github.com/coffersTech/rplog/internal/logging"
	"github.com/coffersTech/rplog/internal/model"
)

var (
	// ErrNoItem is returned by Emit when no owner is active and the policy drops.
	ErrNoItem = errors.New("no active item")
	// ErrQueueFull is returned when the dispatch queue cannot take more records.
	ErrQueueFull = errors.New("emit queue full")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("emitter closed")
)

// Policy decides what happens to records emitted while no item is active.
type Policy int

const (
	// PolicyDrop discards the record.
	PolicyDrop Policy = iota
	// PolicyQueue holds the record until the next item starts.
	PolicyQueue
)

// ParsePolicy converts "drop" or "queue"; anything else drops.
func ParsePolicy(s string) Policy {
	if s == "queue" {
		return PolicyQueue
	}
	return PolicyDrop
}

// Sink receives finished records in batches.
type Sink interface {
	Write(ctx context.Context, records []model.SubmissionRecord) error
}

// Options configures an Emitter.
type Options struct {
	Sink           Sink
	Policy         Policy
	BatchSize      int
	FlushInterval  time.Duration
	QueueSize      int
	MaxPending     int
	ResolveTimeout time.Duration

	// ItemRetention is how long finished items stay known. Default 10m.
	ItemRetention time.Duration
	Logger        *slog.Logger
}

// Stats counts what happened to emitted records.
type Stats struct {
	Emitted int64
	Dropped int64
	Failed  int64
	Pending int
}

type job struct {
	item    *Item
	resolve engine.ResolveFunc
	flushed chan struct{}
}

type resolution struct {
	item *Item
	id   string
	err  error
}

// flushWaiter is a Flush call waiting for items that were unresolved when
// it reached the dispatch loop.
type flushWaiter struct {
	done    chan struct{}
	waiting map[*Item]struct{}
}

// Emitter resolves the owner of prepared records and hands the finished
// records to a sink from a single dispatch goroutine.
type Emitter struct {
	opts  Options
	log   *slog.Logger
	items *Registry

	queue chan job
	done  chan struct{}
	wg    sync.WaitGroup

	stopCleanup context.CancelFunc

	// closeMu is held for reading around every send on queue so Close
	// cannot stop the loop between the closed check and the send.
	closeMu sync.RWMutex
	closed  bool

	mu      sync.Mutex
	pending []engine.ResolveFunc

	emitted atomic.Int64
	dropped atomic.Int64
	failed  atomic.Int64
}

// New starts an emitter writing to opts.Sink.
func New(opts Options) *Emitter {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = time.Second
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 10000
	}
	if opts.MaxPending <= 0 {
		opts.MaxPending = opts.QueueSize
	}
	if opts.ResolveTimeout <= 0 {
		opts.ResolveTimeout = 30 * time.Second
	}
	if opts.ItemRetention <= 0 {
		opts.ItemRetention = 10 * time.Minute
	}
	cleanupCtx, stopCleanup := context.WithCancel(context.Background())
	e := &Emitter{
		opts:  opts,
		log:   opts.Logger,
		items: NewRegistry(),
		queue: make(chan job, opts.QueueSize),
		done:  make(chan struct{}),

		stopCleanup: stopCleanup,
	}
	if e.log == nil {
		e.log = logging.Internal("emitter")
	}

	e.items.StartCleanupLoop(cleanupCtx, opts.ItemRetention, opts.ItemRetention)
	e.wg.Add(1)
	go e.runLoop()
	return e
}

// Items exposes the item registry.
func (e *Emitter) Items() *Registry {
	return e.items
}

// StartItem registers a new current item below parent and resolves its id
// in the background with start. Records queued while no item was active
// are assigned to it.
func (e *Emitter) StartItem(ctx context.Context, name string, parent *Item, start StartFunc) *Item {
	item := newItem(name, parent)
	e.items.Register(item)

	go func() {
		if start == nil {
			item.resolve(item.Key, nil)
			return
		}
		id, err := start(ctx)
		if err == nil && id == "" {
			err = errors.New("empty item id")
		}
		item.resolve(id, err)
	}()

	e.closeMu.RLock()
	defer e.closeMu.RUnlock()
	if e.closed {
		return item
	}
	e.mu.Lock()
	pending := e.pending
	e.pending = nil
	e.mu.Unlock()
	for _, fn := range pending {
		_ = e.enqueue(job{item: item, resolve: fn})
	}
	return item
}

// FinishItem removes item from the active stack.
func (e *Emitter) FinishItem(item *Item) {
	if item != nil {
		e.items.Finish(item)
	}
}

// Emit schedules fn for the item bound to ctx, or the current item.
func (e *Emitter) Emit(ctx context.Context, fn engine.ResolveFunc) error {
	if fn == nil {
		return nil
	}
	e.closeMu.RLock()
	defer e.closeMu.RUnlock()
	if e.closed {
		e.dropped.Add(1)
		return ErrClosed
	}

	e.mu.Lock()
	item := ItemFrom(ctx)
	if item == nil {
		item = e.items.Current()
	}
	if item == nil {
		defer e.mu.Unlock()
		if e.opts.Policy == PolicyQueue && len(e.pending) < e.opts.MaxPending {
			e.pending = append(e.pending, fn)
			return nil
		}
		e.dropped.Add(1)
		return ErrNoItem
	}
	e.mu.Unlock()

	return e.enqueue(job{item: item, resolve: fn})
}

func (e *Emitter) enqueue(j job) error {
	select {
	case e.queue <- j:
		return nil
	default:
		e.dropped.Add(1)
		return ErrQueueFull
	}
}

// Flush waits until every record emitted before the call reached the sink.
func (e *Emitter) Flush(ctx context.Context) error {
	flushed := make(chan struct{})
	if err := e.sendFlush(ctx, flushed); err != nil {
		return err
	}
	select {
	case <-flushed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Emitter) sendFlush(ctx context.Context, flushed chan struct{}) error {
	e.closeMu.RLock()
	defer e.closeMu.RUnlock()
	if e.closed {
		return ErrClosed
	}
	select {
	case e.queue <- job{flushed: flushed}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting records, drains the queue and waits for the
// dispatch goroutine. Records still waiting for an item are dropped.
func (e *Emitter) Close(ctx context.Context) error {
	e.closeMu.Lock()
	if e.closed {
		e.closeMu.Unlock()
		return nil
	}
	e.closed = true
	e.closeMu.Unlock()

	e.mu.Lock()
	e.dropped.Add(int64(len(e.pending)))
	e.pending = nil
	e.mu.Unlock()

	e.stopCleanup()
	close(e.done)
	finished := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns a snapshot of the counters.
func (e *Emitter) Stats() Stats {
	e.mu.Lock()
	pending := len(e.pending)
	e.mu.Unlock()
	return Stats{
		Emitted: e.emitted.Load(),
		Dropped: e.dropped.Load(),
		Failed:  e.failed.Load(),
		Pending: pending,
	}
}

// runLoop batches records into the sink. Records of an item whose id is
// still in flight wait in waiting, in emit order, while records of other
// items keep flowing.
func (e *Emitter) runLoop() {
	defer e.wg.Done()
	ticker := time.NewTicker(e.opts.FlushInterval)
	defer ticker.Stop()

	var (
		batch    []model.SubmissionRecord
		flushes  []*flushWaiter
		waiting  = make(map[*Item][]engine.ResolveFunc)
		resolved = make(chan resolution)
	)

	send := func() {
		if len(batch) == 0 {
			return
		}
		if e.opts.Sink == nil {
			e.dropped.Add(int64(len(batch)))
		} else if err := e.opts.Sink.Write(context.Background(), batch); err != nil {
			e.failed.Add(int64(len(batch)))
			e.log.Warn("sink write failed", "records", len(batch), "error", err)
		} else {
			e.emitted.Add(int64(len(batch)))
		}
		batch = nil
	}

	add := func(fn engine.ResolveFunc, id string) {
		batch = append(batch, fn(id))
		if len(batch) >= e.opts.BatchSize {
			send()
		}
	}

	await := func(item *Item) {
		ctx, cancel := context.WithTimeout(context.Background(), e.opts.ResolveTimeout)
		defer cancel()
		id, err := item.ID(ctx)
		resolved <- resolution{item: item, id: id, err: err}
	}

	handle := func(j job) {
		if j.flushed != nil {
			send()
			if len(waiting) == 0 {
				close(j.flushed)
				return
			}
			fw := &flushWaiter{done: j.flushed, waiting: make(map[*Item]struct{}, len(waiting))}
			for item := range waiting {
				fw.waiting[item] = struct{}{}
			}
			flushes = append(flushes, fw)
			return
		}
		if fns, ok := waiting[j.item]; ok {
			waiting[j.item] = append(fns, j.resolve)
			return
		}
		if !j.item.Resolved() {
			waiting[j.item] = []engine.ResolveFunc{j.resolve}
			go await(j.item)
			return
		}
		id, err := j.item.ID(context.Background())
		if err != nil {
			e.failed.Add(1)
			e.log.Warn("item id not resolved", "item", j.item.Name, "error", err)
			return
		}
		add(j.resolve, id)
	}

	complete := func(r resolution) {
		fns := waiting[r.item]
		delete(waiting, r.item)
		if r.err != nil {
			e.failed.Add(int64(len(fns)))
			e.log.Warn("item id not resolved", "item", r.item.Name, "records", len(fns), "error", r.err)
		} else {
			for _, fn := range fns {
				add(fn, r.id)
			}
		}

		remaining := flushes[:0]
		for _, fw := range flushes {
			delete(fw.waiting, r.item)
			if len(fw.waiting) == 0 {
				send()
				close(fw.done)
				continue
			}
			remaining = append(remaining, fw)
		}
		flushes = remaining
	}

	for {
		select {
		case j := <-e.queue:
			handle(j)
		case r := <-resolved:
			complete(r)
		case <-ticker.C:
			send()
		case <-e.done:
			for {
				select {
				case j := <-e.queue:
					handle(j)
					continue
				default:
				}
				if len(waiting) == 0 {
					break
				}
				complete(<-resolved)
			}
			send()
			for _, fw := range flushes {
				close(fw.done)
			}
			return
		}
	}
}
