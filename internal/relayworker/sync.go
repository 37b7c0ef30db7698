package relayworker

import (
	"context"
	"time"

	"github.com/nbd-wtf/go-nostr"

	"github.com/tenex-chat/tenexd/internal/nostrtypes"
)

// profileFetchTimeout bounds a single lazy-profile-fetch round; relays
// that don't answer within this window are skipped for this round and
// retried on the next Sync.
const profileFetchTimeout = 5 * time.Second

func (w *Worker) handleSync(ctx context.Context) {
	w.mu.Lock()
	subCtx := w.connCtx
	w.mu.Unlock()
	if subCtx == nil {
		subCtx = ctx
	}

	for _, project := range w.data.GetProjects() {
		w.subscribeProjectStatus(subCtx, project.Coordinate)
	}

	w.fetchNeededProfiles(ctx)
}

// fetchNeededProfiles drains the queued pubkeys awaiting a profile and
// performs a single bounded kind-0 fetch for all of them at once (§5).
func (w *Worker) fetchNeededProfiles(ctx context.Context) {
	pubkeys := w.drainNeededProfiles()
	if len(pubkeys) == 0 || w.pool == nil {
		return
	}

	fetchCtx, cancel := context.WithTimeout(ctx, profileFetchTimeout)
	defer cancel()

	filter := nostr.Filters{{Kinds: []int{nostrtypes.KindProfile}, Authors: pubkeys}}
	events := w.pool.SubMany(fetchCtx, w.relayURLs(), filter)
	for relayEvent := range events {
		if relayEvent.Event == nil {
			continue
		}
		w.ingestIncoming(*relayEvent.Event, relayEvent.Relay.URL)
	}

	// Pubkeys whose profile is still unknown go back on the queue for
	// the next Sync.
	for _, pk := range pubkeys {
		w.markProfileNeeded(pk)
	}
}
