// Package publish implements the signing and local-first transmission
// sequence every outbound event goes through (§4.7): build, sign, ingest
// into the local Event Store under origin "local", then attempt relay
// transmission under a bounded timeout. A transmit timeout still returns
// success to the caller, since the event is already durable locally and
// will reach relays on the next reconnect/resync; only a signing or
// local-ingest failure is reported as an error.
//
// The sign-then-store-then-send ordering mirrors the teacher's
// internal/memory write-then-notify pattern in internal/api/server.go,
// generalized from an HTTP response to a signed wire event.
package publish

import (
	"context"
	"fmt"
	"time"

	"github.com/nbd-wtf/go-nostr"

	"github.com/tenex-chat/tenexd/internal/eventstore"
)

// Transmitter sends a signed event to the relays. relayworker satisfies
// this with poolTransmitter, which dials each configured relay directly;
// tests substitute a fake.
type Transmitter interface {
	Publish(ctx context.Context, ev nostr.Event) error
}

// Publisher signs outgoing events with a single identity's private key,
// commits them to the local Event Store, and hands them to a
// Transmitter. It is the sole attacher of the "client" tag (§4.7).
type Publisher struct {
	privateKeyHex string
	pubkeyHex     string
	clientTag     string
	store         *eventstore.Store
	transmitter   Transmitter
	sendTimeout   time.Duration
}

// New creates a Publisher for the identity given by privateKeyHex.
// clientTag is the value attached as ["client", clientTag] to every
// event this Publisher signs (e.g. "tenexd").
func New(privateKeyHex, pubkeyHex, clientTag string, store *eventstore.Store, transmitter Transmitter, sendTimeout time.Duration) *Publisher {
	if sendTimeout <= 0 {
		sendTimeout = 5 * time.Second
	}
	return &Publisher{
		privateKeyHex: privateKeyHex,
		pubkeyHex:     pubkeyHex,
		clientTag:     clientTag,
		store:         store,
		transmitter:   transmitter,
		sendTimeout:   sendTimeout,
	}
}

// Draft is the unsigned shape of an outbound event.
type Draft struct {
	Kind      int
	Content   string
	Tags      nostr.Tags
	CreatedAt time.Time
}

// Result reports what happened to a published event: EventID is always
// set once signing succeeds, even if transmission ultimately times out.
type Result struct {
	EventID    string
	Delivered  bool
	TransmitErr error
}

// Publish signs draft, appends the client tag, commits the signed event
// to the local store, and attempts transmission within the Publisher's
// configured send timeout. A non-nil error here means the event was
// never durably recorded; a timed-out transmission still returns a
// populated Result with TransmitErr set and Delivered false, per §4.7
// ("never surface a publish failure to the caller just because the
// relay round-trip timed out").
func (p *Publisher) Publish(ctx context.Context, draft Draft) (Result, error) {
	ev := nostr.Event{
		PubKey:    p.pubkeyHex,
		CreatedAt: nostr.Timestamp(draft.CreatedAt.Unix()),
		Kind:      draft.Kind,
		Tags:      append(nostr.Tags{}, draft.Tags...),
		Content:   draft.Content,
	}
	if p.clientTag != "" {
		ev.Tags = append(ev.Tags, nostr.Tag{"client", p.clientTag})
	}

	if err := ev.Sign(p.privateKeyHex); err != nil {
		return Result{}, fmt.Errorf("publish: sign event: %w", err)
	}

	if _, err := p.store.Ingest([]nostr.Event{ev}, "local"); err != nil {
		return Result{}, fmt.Errorf("publish: local ingest: %w", err)
	}

	result := Result{EventID: ev.ID}

	sendCtx, cancel := context.WithTimeout(ctx, p.sendTimeout)
	defer cancel()

	if p.transmitter == nil {
		return result, nil
	}

	if err := p.transmitter.Publish(sendCtx, ev); err != nil {
		result.TransmitErr = err
		return result, nil
	}
	result.Delivered = true
	return result, nil
}
