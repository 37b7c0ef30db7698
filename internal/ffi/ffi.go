// Package ffi is the thin projection wrapper mobile shells bind against
// through cgo. It exposes the same read surface as internal/rpcserver
// but shaped for a foreign-function boundary: every accessor returns an
// owned snapshot (a fresh slice/struct copy, never a pointer into the
// data store's live maps), and the only way a host learns about change
// is a callback function value it supplies up front — no channel or
// internal reference ever crosses the boundary (§4.6 Design Notes).
package ffi

import (
	"context"
	"log/slog"
	"sync"

	"github.com/tenex-chat/tenexd/internal/bus"
	"github.com/tenex-chat/tenexd/internal/datastore"
	"github.com/tenex-chat/tenexd/internal/eventstore"
	"github.com/tenex-chat/tenexd/internal/projections"
)

// ChangeKind is a host-friendly enumeration of bus.Delta variants. Hosts
// on the other side of a cgo boundary cannot switch on a Go interface
// type, so deltas are flattened to this tag plus a single string
// payload (a coordinate, thread id, or empty) before the callback fires.
type ChangeKind int

const (
	ChangeUnknown ChangeKind = iota
	ChangeProjectAdded
	ChangeThreadActivityUpdated
	ChangeMessageAppended
	ChangeProjectStatusUpdated
	ChangeInboxChanged
	ChangeLagged
)

// ChangeNotification is what the background listener hands to the
// host's callback. ID is the coordinate or thread id the change
// concerns, empty for kinds that carry none.
type ChangeNotification struct {
	Kind ChangeKind
	ID   string
}

// Callback is the host function pointer invoked for every data-bus
// delta. Implementations must return quickly; the listener goroutine
// calls it synchronously and a slow callback throttles every other
// consumer of the bus only indirectly, through this listener's own
// subscription buffer filling and reporting Lagged.
type Callback func(ChangeNotification)

// Runtime is the FFI-facing handle bound to one running daemon.
// Constructed once by the host's bridge layer and retained for the
// process lifetime; Close tears down the listener goroutine.
type Runtime struct {
	data   *datastore.Store
	store  *eventstore.Store
	worker bus.CommandHandle
	dataBus *bus.DataBus
	logger *slog.Logger

	mu       sync.Mutex
	cancel   context.CancelFunc
	listenWG sync.WaitGroup
}

// New wraps an already-running daemon's store, event log, bus, and
// command handle for FFI consumption.
func New(data *datastore.Store, store *eventstore.Store, worker bus.CommandHandle, dataBus *bus.DataBus, logger *slog.Logger) *Runtime {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runtime{data: data, store: store, worker: worker, dataBus: dataBus, logger: logger}
}

// Listen starts a background goroutine that drains the data bus and
// invokes cb for every delta, translated to the flattened
// ChangeNotification shape. Calling Listen again replaces the prior
// listener. Safe to call with a nil cb to stop notifications while
// keeping the runtime otherwise usable.
func (r *Runtime) Listen(cb Callback) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil {
		r.cancel()
		r.listenWG.Wait()
		r.cancel = nil
	}
	if cb == nil || r.dataBus == nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	ch := r.dataBus.Subscribe(256)

	r.listenWG.Add(1)
	go func() {
		defer r.listenWG.Done()
		defer r.dataBus.Unsubscribe(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-ch:
				if !ok {
					return
				}
				cb(translate(d))
			}
		}
	}()
}

// Close stops the background listener, if any. It does not close the
// underlying store, bus, or worker handle, which the host's daemon
// lifecycle owns.
func (r *Runtime) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
		r.listenWG.Wait()
		r.cancel = nil
	}
}

func translate(d bus.Delta) ChangeNotification {
	switch v := d.(type) {
	case bus.ProjectAdded:
		return ChangeNotification{Kind: ChangeProjectAdded, ID: v.ATag}
	case bus.ThreadActivityUpdated:
		return ChangeNotification{Kind: ChangeThreadActivityUpdated, ID: v.ThreadID}
	case bus.MessageAppended:
		return ChangeNotification{Kind: ChangeMessageAppended, ID: v.ThreadID}
	case bus.ProjectStatusUpdated:
		return ChangeNotification{Kind: ChangeProjectStatusUpdated, ID: v.ATag}
	case bus.InboxChanged:
		return ChangeNotification{Kind: ChangeInboxChanged}
	case bus.Lagged:
		return ChangeNotification{Kind: ChangeLagged}
	default:
		return ChangeNotification{Kind: ChangeUnknown}
	}
}

// SnapshotProjects returns every known project.
func (r *Runtime) SnapshotProjects() []projections.Project {
	return r.data.GetProjects()
}

// SnapshotThreads returns the threads belonging to a project coordinate.
func (r *Runtime) SnapshotThreads(projectCoord string) []projections.Thread {
	return r.data.GetThreadsByProject(projectCoord)
}

// SnapshotMessages returns the messages of one thread in store order.
func (r *Runtime) SnapshotMessages(threadID string) []projections.Message {
	return r.data.GetMessages(threadID)
}

// SnapshotAgentDefinitions returns every known agent definition.
func (r *Runtime) SnapshotAgentDefinitions() []projections.AgentDefinition {
	return r.data.GetAgentDefinitions()
}

// SnapshotProjectStatus returns the ephemeral online-agent snapshot for
// a project, if one has been received.
func (r *Runtime) SnapshotProjectStatus(projectCoord string) (projections.ProjectStatus, bool) {
	return r.data.GetProjectStatus(projectCoord)
}

// SnapshotSkills returns every known skill.
func (r *Runtime) SnapshotSkills() []projections.Skill {
	return r.data.GetSkills()
}

// SnapshotNudges returns every known nudge.
func (r *Runtime) SnapshotNudges() []projections.Nudge {
	return r.data.GetNudges()
}

// SnapshotReports returns every known report.
func (r *Runtime) SnapshotReports() []projections.Report {
	return r.data.GetReports()
}

// Counts returns entity counts, the same diagnostic view rpcserver's
// get_state method exposes over the JSON-RPC socket.
func (r *Runtime) Counts() datastore.CountSnapshot {
	return r.data.Counts()
}

// BulkScanResult summarizes a full durable-store replay, used by mobile
// diagnostics screens to confirm the on-disk log and the in-memory
// projection agree on volume.
type BulkScanResult struct {
	EventCount int
	Err        error
}

// BulkScan replays every event in the durable store in creation order
// and returns a count. It rides AllInCreationOrder's own exclusive scan
// lock, which already excludes concurrent writers for the duration of
// the scan (internal/eventstore.Store.Stats uses the same lock for the
// same reason) — ffi does not need its own locking here.
func (r *Runtime) BulkScan() BulkScanResult {
	events, err := r.store.AllInCreationOrder()
	if err != nil {
		return BulkScanResult{Err: err}
	}
	return BulkScanResult{EventCount: len(events)}
}

// SendPublishMessage asks the relay worker to publish a reply within an
// existing thread, blocking until the worker replies or ctx expires.
// This is the one mutating call FFI exposes; mobile shells otherwise
// only read snapshots.
func (r *Runtime) SendPublishMessage(ctx context.Context, threadID, content, recipientPubkey string) (string, error) {
	reply := make(chan bus.PublishResult, 1)
	if err := r.worker.Send(ctx, bus.PublishMessage{
		ThreadID:        threadID,
		Content:         content,
		RecipientPubkey: recipientPubkey,
		Reply:           reply,
	}); err != nil {
		return "", err
	}
	select {
	case result := <-reply:
		if result.Err != nil {
			return "", result.Err
		}
		return result.EventID, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
