// Package runtime implements the Runtime Coordinator (§4.6): the glue
// between the durable Event Store's live subscription and the in-memory
// Application Data Store. It owns the one subscription that turns
// newly-persisted note ids into materialized projections, and it is the
// only component that calls datastore.Store.HandleEvent for non-ephemeral
// events — ephemeral project-status events bypass it entirely and reach
// the Application Data Store directly from the Relay Worker.
package runtime

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/tenex-chat/tenexd/internal/bus"
	"github.com/tenex-chat/tenexd/internal/datastore"
	"github.com/tenex-chat/tenexd/internal/eventstore"
	"github.com/tenex-chat/tenexd/internal/nostrtypes"
)

// ErrSubscriptionClosed is returned by NextNoteKeys once the
// coordinator's event-store subscription has been torn down.
var ErrSubscriptionClosed = errors.New("runtime: subscription closed")

// Coordinator drains the Event Store's live note-key stream and applies
// each persisted event to the Application Data Store, reconciling full
// resyncs when the subscription reports it has lagged.
type Coordinator struct {
	worker bus.CommandHandle
	store  *eventstore.Store
	sub    *eventstore.Subscription
	data   *datastore.Store
	logger *slog.Logger
}

// New creates a Coordinator subscribed to store's live note-key stream.
func New(worker bus.CommandHandle, store *eventstore.Store, data *datastore.Store, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		worker: worker,
		store:  store,
		sub:    store.Subscribe(eventstore.Filter{}),
		data:   data,
		logger: logger,
	}
}

// Handle returns the command handle producers (JSON-RPC server, HTTP
// API) use to enqueue relay worker commands.
func (c *Coordinator) Handle() bus.CommandHandle {
	return c.worker
}

// Run blocks, applying batches from the Event Store subscription to the
// Application Data Store until the subscription is closed by Shutdown.
func (c *Coordinator) Run(ctx context.Context) {
	for {
		batch, ok := c.sub.Next()
		if !ok {
			return
		}
		if err := c.applyBatch(ctx, batch); err != nil {
			c.logger.Error("runtime: apply batch failed", "error", err)
		}
	}
}

func (c *Coordinator) applyBatch(ctx context.Context, batch eventstore.Batch) error {
	if batch.LaggedCount > 0 {
		c.logger.Warn("runtime: subscription lagged, rebuilding from store", "missed_batches", batch.LaggedCount)
		return c.data.RebuildFromStore(c.store)
	}
	c.ProcessNoteKeys(batch.NoteKeys)
	return nil
}

// ProcessNoteKeys looks up each note id in the Event Store and applies it
// to the Application Data Store, returning every delta produced. Ids that
// can no longer be found (e.g. a race with a future compaction) are
// skipped rather than treated as an error.
func (c *Coordinator) ProcessNoteKeys(noteKeys []string) []bus.Delta {
	var deltas []bus.Delta
	for _, id := range noteKeys {
		ev, found, err := c.store.LookupByID(id)
		if err != nil {
			c.logger.Error("runtime: lookup note failed", "id", id, "error", err)
			continue
		}
		if !found || nostrtypes.IsEphemeral(ev.Kind) {
			continue
		}
		deltas = append(deltas, c.data.HandleEvent(ev.Kind, ev)...)
	}
	return deltas
}

// NextNoteKeys blocks until the next batch is available or ctx is
// cancelled, giving synchronous callers (tests, the FFI bulk-scan path)
// a context-aware alternative to Run's push loop.
func (c *Coordinator) NextNoteKeys(ctx context.Context) (eventstore.Batch, error) {
	type result struct {
		batch eventstore.Batch
		ok    bool
	}
	done := make(chan result, 1)
	go func() {
		b, ok := c.sub.Next()
		done <- result{b, ok}
	}()

	select {
	case r := <-done:
		if !r.ok {
			return eventstore.Batch{}, ErrSubscriptionClosed
		}
		return r.batch, nil
	case <-ctx.Done():
		return eventstore.Batch{}, ctx.Err()
	}
}

// Shutdown tears down the event-store subscription and asks the relay
// worker to stop. It does not wait for the worker goroutine to exit;
// callers join that separately via sync.WaitGroup per §4.4.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.store.Unsubscribe(c.sub)
	return c.worker.Send(ctx, bus.Shutdown{})
}

// logoutTimeout bounds how long Logout waits for the relay worker to
// confirm disconnection before giving up, per §5's supplemented
// "logout/disconnect bounded teardown" behavior (the Rust original never
// blocks a user-initiated logout indefinitely on a wedged relay).
const logoutTimeout = 5 * time.Second

// Logout disconnects from every relay without terminating the worker
// goroutine, so a subsequent Connect can resume without rebuilding the
// command channel. It gives the worker bounded time to confirm; if the
// worker doesn't answer within logoutTimeout (a wedged relay round-trip),
// it escalates to a full Shutdown instead of leaving a zombie relay
// session running, while local Application Data Store and preferences
// state is left intact either way (§5).
func (c *Coordinator) Logout(ctx context.Context) error {
	logoutCtx, cancel := context.WithTimeout(ctx, logoutTimeout)
	defer cancel()

	reply := make(chan struct{}, 1)
	if err := c.worker.Send(logoutCtx, bus.Disconnect{Reply: reply}); err != nil {
		return err
	}
	select {
	case <-reply:
		return nil
	case <-logoutCtx.Done():
		c.logger.Warn("logout: worker did not confirm disconnect in time, escalating to shutdown")
		return c.worker.Send(ctx, bus.Shutdown{})
	}
}
