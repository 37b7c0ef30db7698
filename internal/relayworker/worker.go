// Package relayworker owns the relay connections and runs the single
// consumer loop that turns commands from internal/bus into wire
// operations (§4.4). It is the only component that touches the Nostr
// relay pool directly; everything else reaches it through a
// bus.CommandHandle.
//
// The single-consumer command loop is adapted from the teacher's
// internal/mqtt subscriber/publisher pair, generalized from a single
// broker connection to a set of relay URLs. There is no startup probe,
// ready/down transition tracking or inbound rate limiting: Connect dials
// each relay once.
package relayworker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nbd-wtf/go-nostr"

	"github.com/tenex-chat/tenexd/internal/bus"
	"github.com/tenex-chat/tenexd/internal/datastore"
	"github.com/tenex-chat/tenexd/internal/eventstore"
	"github.com/tenex-chat/tenexd/internal/nostrtypes"
	"github.com/tenex-chat/tenexd/internal/publish"
)

// Config configures the worker's relay set and timeouts, sourced from
// config.RelaysConfig.
type Config struct {
	RelayURLs      []string
	ConnectTimeout time.Duration
	SendTimeout    time.Duration
}

// Worker owns one or more relay connections on a dedicated goroutine. It
// translates commands into wire operations and ingests incoming events
// into the Event Store, from which the Runtime Coordinator's live
// subscription surfaces them to the Application Data Store.
type Worker struct {
	cfg    Config
	store  *eventstore.Store
	data   *datastore.Store
	bus    *bus.DataBus
	logger *slog.Logger

	pool       *nostr.SimplePool
	publisher  *publish.Publisher
	privateKey string
	pubkey     string

	mu                 sync.Mutex
	connectedRelays    map[string]struct{}
	subscribedProjects map[string]struct{} // dedup for per-project status subscriptions (§5 supplement)
	neededProfiles     map[string]struct{} // pubkeys awaiting a lazy kind-0 fetch (§5 supplement)

	connCtx    context.Context
	cancelSubs context.CancelFunc
}

// New creates a worker bound to the given Event Store, Application Data
// Store, and data bus. The worker does not connect to any relay until a
// Connect command arrives.
func New(cfg Config, store *eventstore.Store, data *datastore.Store, b *bus.DataBus, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 15 * time.Second
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 5 * time.Second
	}
	return &Worker{
		cfg:                cfg,
		store:              store,
		data:               data,
		bus:                b,
		logger:             logger,
		connectedRelays:    make(map[string]struct{}),
		subscribedProjects: make(map[string]struct{}),
		neededProfiles:     make(map[string]struct{}),
	}
}

// Run is the worker's single-flight command loop. It returns after
// handling a Shutdown command, when cmds is closed, or when ctx is
// cancelled; it never closes cmds itself. Callers run this in its own goroutine and join
// it with a sync.WaitGroup per §4.4/§5.
func (w *Worker) Run(ctx context.Context, cmds <-chan bus.Command) {
	for {
		select {
		case <-ctx.Done():
			w.teardown()
			return
		case cmd, ok := <-cmds:
			if !ok {
				w.teardown()
				return
			}
			w.dispatch(ctx, cmd)
			if _, isShutdown := cmd.(bus.Shutdown); isShutdown {
				w.teardown()
				return
			}
		}
	}
}

func (w *Worker) dispatch(ctx context.Context, cmd bus.Command) {
	switch c := cmd.(type) {
	case bus.Connect:
		w.handleConnect(ctx, c)
	case bus.Sync:
		w.handleSync(ctx)
	case bus.PublishThread:
		w.handlePublishThread(ctx, c)
	case bus.PublishMessage:
		w.handlePublishMessage(ctx, c)
	case bus.BootProject:
		w.handleBootProject(ctx, c)
	case bus.StopOperations:
		w.handleStopOperations(ctx, c)
	case bus.UpdateAgentConfig:
		w.handleUpdateAgentConfig(ctx, c)
	case bus.UpdateProjectAgents:
		w.handleUpdateProjectAgents(ctx, c)
	case bus.SaveProject:
		w.handleSaveProject(ctx, c)
	case bus.CreateAgentDefinition:
		w.handleCreateAgentDefinition(ctx, c)
	case bus.GetRelayStatus:
		w.handleGetRelayStatus(c)
	case bus.Disconnect:
		w.handleDisconnect(c)
	case bus.Shutdown:
		w.logger.Info("relay worker shutting down")
	default:
		w.logger.Warn("relay worker: unknown command type", "type", cmd)
	}
}

func (w *Worker) teardown() {
	w.mu.Lock()
	cancel := w.cancelSubs
	w.cancelSubs = nil
	w.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// relayURLs returns the configured relay set, cfg.RelayURLs, whether or
// not those relays are currently connected.
func (w *Worker) relayURLs() []string {
	return w.cfg.RelayURLs
}

// sendTimeoutCtx wraps ctx with the worker's configured send timeout
// (cfg.SendTimeout, 5s by default), the same cap for every command that
// calls it. Connect uses cfg.ConnectTimeout instead, and GetRelayStatus
// does not call it.
func (w *Worker) sendTimeoutCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, w.cfg.SendTimeout)
}

// markProfileNeeded records that pubkey's display name is unknown to the
// Application Data Store and queues it for a one-shot kind-0 fetch on the
// next Sync, mirroring the Rust worker's `needed_profiles` field (§5).
func (w *Worker) markProfileNeeded(pubkey string) {
	if pubkey == "" {
		return
	}
	if _, known := w.data.GetProfile(pubkey); known {
		return
	}
	w.mu.Lock()
	w.neededProfiles[pubkey] = struct{}{}
	w.mu.Unlock()
}

// drainNeededProfiles returns and clears the set of pubkeys queued for a
// profile fetch.
func (w *Worker) drainNeededProfiles() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.neededProfiles))
	for pk := range w.neededProfiles {
		out = append(out, pk)
	}
	w.neededProfiles = make(map[string]struct{})
	return out
}

// ingestIncoming hands a wire event to the Event Store and, for
// ephemeral status events, directly into the Application Data Store
// (§3 invariant: status events never enter the durable store).
func (w *Worker) ingestIncoming(ev nostr.Event, relayURL string) {
	if ev.Kind == nostrtypes.KindProjectStatus {
		aTag, ok := nostrtypes.FirstTagValue(ev.Tags, "a")
		if !ok {
			return
		}
		if _, err := w.data.HandleStatusEventJSON(aTag, int64(ev.CreatedAt), []byte(ev.Content)); err != nil {
			w.logger.Debug("discarding malformed project status event", "event_id", ev.ID, "error", err)
		}
		return
	}

	if _, err := w.store.Ingest([]nostr.Event{ev}, relayURL); err != nil {
		w.logger.Warn("ingest failed", "event_id", ev.ID, "kind", ev.Kind, "relay", relayURL, "error", err)
	}
}
