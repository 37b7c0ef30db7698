package relayworker

import (
	"context"

	"github.com/nbd-wtf/go-nostr"
)

// poolTransmitter implements publish.Transmitter without using the
// worker's *nostr.SimplePool: it dials each configured relay URL directly
// and publishes to it,
// mirroring the per-relay RelayConnect+Publish fanout the reference
// publisher (a Nostr status-reporting daemon in other_examples) uses
// rather than relying on pool-internal connection bookkeeping for the
// one-shot publish path.
type poolTransmitter struct {
	relayURLs []string
}

// Publish dials every configured relay and publishes ev to each,
// tolerating individual relay failures; it only reports an error if
// every relay failed.
func (t *poolTransmitter) Publish(ctx context.Context, ev nostr.Event) error {
	var lastErr error
	delivered := 0
	for _, url := range t.relayURLs {
		relay, err := nostr.RelayConnect(ctx, url)
		if err != nil {
			lastErr = err
			continue
		}
		if err := relay.Publish(ctx, ev); err != nil {
			lastErr = err
			continue
		}
		delivered++
	}
	if delivered == 0 && lastErr != nil {
		return lastErr
	}
	return nil
}
