package emitter

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coffersTech/rplog/internal/engine"
	"github.com/coffersTech/rplog/internal/model"
)

func resolver(msg string) engine.ResolveFunc {
	return func(owner string) model.SubmissionRecord {
		return model.SubmissionRecord{OwnerID: owner, Level: model.LevelInfo, Message: msg}
	}
}

func fixedID(id string) StartFunc {
	return func(context.Context) (string, error) { return id, nil }
}

func newTestEmitter(t *testing.T, opts Options) (*Emitter, *Memory) {
	t.Helper()
	sink := NewMemory()
	if opts.Sink == nil {
		opts.Sink = sink
	}
	if opts.FlushInterval == 0 {
		opts.FlushInterval = time.Hour
	}
	e := New(opts)
	t.Cleanup(func() { _ = e.Close(context.Background()) })
	return e, sink
}

func flush(t *testing.T, e *Emitter) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, e.Flush(ctx))
}

func TestEmit_UsesCurrentItem(t *testing.T) {
	e, sink := newTestEmitter(t, Options{})
	ctx := context.Background()

	e.StartItem(ctx, "suite", nil, fixedID("item-1"))
	require.NoError(t, e.Emit(ctx, resolver("hello")))
	flush(t, e)

	records := sink.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "item-1", records[0].OwnerID)
	assert.Equal(t, "hello", records[0].Message)
	assert.Equal(t, int64(1), e.Stats().Emitted)
}

func TestEmit_ContextItemWins(t *testing.T) {
	e, sink := newTestEmitter(t, Options{})
	ctx := context.Background()

	outer := e.StartItem(ctx, "outer", nil, fixedID("outer"))
	e.StartItem(ctx, "inner", outer, fixedID("inner"))

	require.NoError(t, e.Emit(WithItem(ctx, outer), resolver("a")))
	require.NoError(t, e.Emit(ctx, resolver("b")))
	flush(t, e)

	records := sink.Records()
	require.Len(t, records, 2)
	assert.Equal(t, "outer", records[0].OwnerID)
	assert.Equal(t, "inner", records[1].OwnerID)
}

func TestEmit_WaitsForInFlightStart(t *testing.T) {
	e, sink := newTestEmitter(t, Options{})
	release := make(chan struct{})

	item := e.StartItem(context.Background(), "slow", nil, func(context.Context) (string, error) {
		<-release
		return "late-id", nil
	})
	require.NoError(t, e.Emit(context.Background(), resolver("queued")))
	assert.False(t, item.Resolved())

	close(release)
	flush(t, e)

	records := sink.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "late-id", records[0].OwnerID)
}

func TestEmit_SlowItemDoesNotStallOthers(t *testing.T) {
	e, sink := newTestEmitter(t, Options{FlushInterval: 10 * time.Millisecond, ResolveTimeout: 5 * time.Second})
	startCtx, cancelStart := context.WithCancel(context.Background())
	defer cancelStart()

	slow := e.StartItem(startCtx, "slow", nil, func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	fast := e.StartItem(context.Background(), "fast", nil, nil)

	require.NoError(t, e.Emit(WithItem(context.Background(), slow), resolver("stuck")))
	require.NoError(t, e.Emit(WithItem(context.Background(), fast), resolver("through")))

	require.Eventually(t, func() bool { return len(sink.Records()) == 1 }, time.Second, 5*time.Millisecond)
	records := sink.Records()
	assert.Equal(t, fast.Key, records[0].OwnerID)
	assert.Equal(t, "through", records[0].Message)

	cancelStart()
	flush(t, e)
	assert.Len(t, sink.Records(), 1)
	assert.Equal(t, int64(1), e.Stats().Failed)
}

func TestEmit_PreservesOrderWithinWaitingItem(t *testing.T) {
	e, sink := newTestEmitter(t, Options{})
	release := make(chan struct{})

	e.StartItem(context.Background(), "slow", nil, func(context.Context) (string, error) {
		<-release
		return "late-id", nil
	})
	for _, msg := range []string{"a", "b", "c"} {
		require.NoError(t, e.Emit(context.Background(), resolver(msg)))
	}
	close(release)
	flush(t, e)

	records := sink.Records()
	require.Len(t, records, 3)
	for i, msg := range []string{"a", "b", "c"} {
		assert.Equal(t, msg, records[i].Message)
		assert.Equal(t, "late-id", records[i].OwnerID)
	}
}

func TestEmit_FailedStartCountsFailure(t *testing.T) {
	e, sink := newTestEmitter(t, Options{})

	e.StartItem(context.Background(), "broken", nil, func(context.Context) (string, error) {
		return "", errors.New("rejected")
	})
	require.NoError(t, e.Emit(context.Background(), resolver("lost")))
	flush(t, e)

	assert.Empty(t, sink.Records())
	assert.Equal(t, int64(1), e.Stats().Failed)
}

func TestEmit_DropPolicy(t *testing.T) {
	e, sink := newTestEmitter(t, Options{Policy: PolicyDrop})

	err := e.Emit(context.Background(), resolver("nobody"))
	assert.ErrorIs(t, err, ErrNoItem)

	e.StartItem(context.Background(), "later", nil, fixedID("later"))
	flush(t, e)

	assert.Empty(t, sink.Records())
	assert.Equal(t, int64(1), e.Stats().Dropped)
}

func TestEmit_QueuePolicy(t *testing.T) {
	e, sink := newTestEmitter(t, Options{Policy: PolicyQueue})

	require.NoError(t, e.Emit(context.Background(), resolver("early")))
	assert.Equal(t, 1, e.Stats().Pending)

	e.StartItem(context.Background(), "later", nil, fixedID("later"))
	flush(t, e)

	records := sink.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "later", records[0].OwnerID)
	assert.Equal(t, 0, e.Stats().Pending)
}

func TestEmit_QueuePolicyBounded(t *testing.T) {
	e, _ := newTestEmitter(t, Options{Policy: PolicyQueue, MaxPending: 1})

	require.NoError(t, e.Emit(context.Background(), resolver("kept")))
	assert.ErrorIs(t, e.Emit(context.Background(), resolver("over")), ErrNoItem)
}

func TestFinishItem_RestoresParent(t *testing.T) {
	e, sink := newTestEmitter(t, Options{})
	ctx := context.Background()

	outer := e.StartItem(ctx, "outer", nil, fixedID("outer"))
	inner := e.StartItem(ctx, "inner", outer, fixedID("inner"))
	e.FinishItem(inner)

	assert.Same(t, outer, e.Items().Current())
	require.NoError(t, e.Emit(ctx, resolver("x")))
	flush(t, e)
	assert.Equal(t, "outer", sink.Records()[0].OwnerID)
}

func TestNilStartUsesLocalKey(t *testing.T) {
	e, sink := newTestEmitter(t, Options{})

	item := e.StartItem(context.Background(), "local", nil, nil)
	require.NoError(t, e.Emit(context.Background(), resolver("x")))
	flush(t, e)

	assert.Equal(t, item.Key, sink.Records()[0].OwnerID)
}

func TestBatchesBySize(t *testing.T) {
	sink := &countingSink{}
	e, _ := newTestEmitter(t, Options{Sink: sink, BatchSize: 2})
	e.StartItem(context.Background(), "i", nil, fixedID("i"))

	for i := 0; i < 5; i++ {
		require.NoError(t, e.Emit(context.Background(), resolver("r")))
	}
	flush(t, e)

	assert.Equal(t, []int{2, 2, 1}, sink.batches)
}

func TestSinkFailureCounted(t *testing.T) {
	e, sink := newTestEmitter(t, Options{})
	sink.FailWith(errors.New("disk full"))
	e.StartItem(context.Background(), "i", nil, fixedID("i"))

	require.NoError(t, e.Emit(context.Background(), resolver("r")))
	flush(t, e)

	assert.Equal(t, int64(1), e.Stats().Failed)
}

func TestClose_DrainsQueue(t *testing.T) {
	sink := NewMemory()
	e := New(Options{Sink: sink, FlushInterval: time.Hour})
	e.StartItem(context.Background(), "i", nil, fixedID("i"))
	require.NoError(t, e.Emit(context.Background(), resolver("last")))

	require.NoError(t, e.Close(context.Background()))

	assert.Len(t, sink.Records(), 1)
	assert.ErrorIs(t, e.Emit(context.Background(), resolver("after")), ErrClosed)
	assert.ErrorIs(t, e.Flush(context.Background()), ErrClosed)
	assert.NoError(t, e.Close(context.Background()))
}

func TestClose_RacingEmitsAreAccounted(t *testing.T) {
	sink := NewMemory()
	e := New(Options{Sink: sink, FlushInterval: time.Hour})
	e.StartItem(context.Background(), "i", nil, fixedID("i"))

	const workers, perWorker = 8, 200
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				_ = e.Emit(context.Background(), resolver("r"))
			}
		}()
	}
	flushed := make(chan error, 1)
	go func() { flushed <- e.Flush(context.Background()) }()

	require.NoError(t, e.Close(context.Background()))
	wg.Wait()

	select {
	case err := <-flushed:
		if err != nil {
			assert.ErrorIs(t, err, ErrClosed)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Flush racing Close did not return")
	}

	stats := e.Stats()
	assert.Equal(t, int64(workers*perWorker), stats.Emitted+stats.Dropped)
	assert.Equal(t, stats.Emitted, int64(len(sink.Records())))
}

func TestParsePolicy(t *testing.T) {
	assert.Equal(t, PolicyQueue, ParsePolicy("queue"))
	assert.Equal(t, PolicyDrop, ParsePolicy("drop"))
	assert.Equal(t, PolicyDrop, ParsePolicy(""))
}

type countingSink struct {
	batches []int
}

func (s *countingSink) Write(_ context.Context, records []model.SubmissionRecord) error {
	s.batches = append(s.batches, len(records))
	return nil
}
