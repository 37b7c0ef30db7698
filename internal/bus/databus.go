// Package bus provides the two channels that connect the relay worker,
// the application data store, and every front end: a command channel
// feeding commands to the relay worker's single consumer goroutine, and
// a broadcast data-change bus fanning projection updates out to however
// many listeners (HTTP API, JSON-RPC server, FFI snapshot watchers) are
// attached at any moment. The bus is nil-safe: calling Publish on a nil
// *DataBus is a no-op, so callers do not need guard checks.
package bus

import "sync"

// Delta describes what changed in the application data store after a
// mutating call. Deltas are coarse on purpose — they name what changed,
// not the new value, so a slow consumer can always fall back to reading
// the store directly instead of trying to replay a value stream.
type Delta interface {
	deltaMarker()
}

// ProjectAdded signals that a new project entity appeared in the store.
type ProjectAdded struct {
	ATag string
}

// ThreadActivityUpdated signals that a thread's effective-activity
// timestamp changed, either directly or via propagation from a
// descendant thread.
type ThreadActivityUpdated struct {
	ATag     string
	ThreadID string
}

// MessageAppended signals a new message was added to a thread.
type MessageAppended struct {
	ThreadID string
}

// ProjectStatusUpdated signals a project's ephemeral status snapshot
// (online agents, model slugs) changed.
type ProjectStatusUpdated struct {
	ATag string
}

// InboxChanged signals the unread-inbox view needs to be recomputed by
// the consumer; it carries no payload because the inbox is derived from
// several other maps at once.
type InboxChanged struct{}

// StreamChunk carries a token-level delta from a local agent runner,
// arriving over the stream bridge socket rather than the relay
// connection (§3.3's ephemeral "streaming chunks" runtime state). The
// HTTP API's chat-completions route is the primary consumer, filtering
// by ThreadID and AgentPubkey to assemble one conversation's SSE frames.
type StreamChunk struct {
	ThreadID       string
	AgentPubkey    string
	TextDelta      string
	ReasoningDelta string
	IsFinish       bool
}

// Lagged is delivered to a subscriber instead of silently dropping
// events when its buffer fills. count is how many deltas were skipped.
// A subscriber that receives Lagged should treat its view as stale and
// re-fetch a fresh snapshot rather than trying to reconcile piecemeal.
type Lagged struct {
	Count int
}

func (ProjectAdded) deltaMarker()          {}
func (ThreadActivityUpdated) deltaMarker() {}
func (MessageAppended) deltaMarker()       {}
func (ProjectStatusUpdated) deltaMarker()  {}
func (InboxChanged) deltaMarker()          {}
func (Lagged) deltaMarker()                {}
func (StreamChunk) deltaMarker()           {}

// bufferDepth is the per-subscriber channel buffer. Deltas are emitted
// in tight loops during bulk ingestion; a shallow buffer would turn
// every such loop into a Lagged storm.
const bufferDepth = 1024

// DataBus is a non-blocking broadcast bus. Subscribers receive deltas
// on buffered channels; a subscriber that falls behind receives a
// Lagged notice in place of the deltas it missed, rather than blocking
// the publisher or silently losing updates.
type DataBus struct {
	mu   sync.RWMutex
	subs map[chan Delta]*subState
	// recvToSend maps the receive-only channel returned by Subscribe
	// back to the bidirectional channel stored in subs, so Unsubscribe
	// can accept <-chan Delta (the caller's view) without an illegal
	// type conversion.
	recvToSend map[<-chan Delta]chan Delta
}

type subState struct {
	lagged int
}

// NewDataBus creates a data-change bus ready for use.
func NewDataBus() *DataBus {
	return &DataBus{
		subs:       make(map[chan Delta]*subState),
		recvToSend: make(map[<-chan Delta]chan Delta),
	}
}

// Publish sends a delta to all subscribers. Non-blocking: if a
// subscriber's channel is full, the delta is dropped and the
// subscriber's lag counter increments; the next publish that finds room
// in that subscriber's channel delivers a Lagged notice first.
// Unsubscribe discards any pending lag count. Safe to call on a nil
// receiver (no-op), so components can hold an unconfigured *DataBus
// during tests without guard checks.
func (b *DataBus) Publish(d Delta) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch, st := range b.subs {
		if st.lagged > 0 {
			select {
			case ch <- Lagged{Count: st.lagged}:
				st.lagged = 0
			default:
				st.lagged++
				continue
			}
		}
		select {
		case ch <- d:
		default:
			st.lagged++
		}
	}
}

// Subscribe returns a channel that receives published deltas. The
// caller must eventually call Unsubscribe to avoid resource leaks.
// bufSize controls the channel buffer; bufferDepth is a reasonable
// default for interactive consumers.
func (b *DataBus) Subscribe(bufSize int) <-chan Delta {
	if bufSize <= 0 {
		bufSize = bufferDepth
	}
	ch := make(chan Delta, bufSize)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[ch] = &subState{}
	b.recvToSend[ch] = ch
	return ch
}

// Unsubscribe removes a subscription and closes its channel. Safe to
// call with a channel that is already unsubscribed (no-op).
func (b *DataBus) Unsubscribe(ch <-chan Delta) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sendCh, ok := b.recvToSend[ch]
	if !ok {
		return
	}
	delete(b.subs, sendCh)
	delete(b.recvToSend, ch)
	close(sendCh)
}

// SubscriberCount returns the number of active subscribers.
func (b *DataBus) SubscriberCount() int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
