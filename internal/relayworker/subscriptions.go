package relayworker

import (
	"context"
	"errors"

	"github.com/nbd-wtf/go-nostr"

	"github.com/tenex-chat/tenexd/internal/nostrtypes"
)

// errNoRelaysReachable is ConnectResult's error when every configured
// relay failed to connect.
var errNoRelaysReachable = errors.New("relayworker: no configured relay could be reached")

// installStandingSubscriptions opens the set of long-lived filters
// described in §4.4: projects authored by userPubkey, mentions of
// userPubkey, agent definitions, project status, thread/conversation
// metadata, and agent lessons (nudges/skills). Each filter runs on its
// own SubMany stream so one relay misbehaving on one filter doesn't
// block the others, adapted from the mqtt subscriber's per-topic
// handler registration.
func (w *Worker) installStandingSubscriptions(ctx context.Context, userPubkey string) {
	filterSets := []nostr.Filter{
		{Authors: []string{userPubkey}, Kinds: []int{nostrtypes.KindProject}},
		{Kinds: []int{nostrtypes.KindNote}, Tags: nostr.TagMap{"p": {userPubkey}}},
		{Kinds: []int{nostrtypes.KindAgentDefinition}},
		{Kinds: []int{nostrtypes.KindProjectStatus}},
		{Kinds: []int{nostrtypes.KindNote}, Tags: nostr.TagMap{"p": {userPubkey}}, Authors: []string{userPubkey}},
		{Kinds: []int{nostrtypes.KindNudge, nostrtypes.KindSkill}},
	}

	relays := w.relayURLs()
	for _, filter := range filterSets {
		go w.runSubscription(ctx, relays, nostr.Filters{filter})
	}
}

// runSubscription drains one SubMany stream until ctx is cancelled,
// ingesting every event it sees and queueing unknown authors for a
// lazy profile fetch (§5).
func (w *Worker) runSubscription(ctx context.Context, relays []string, filters nostr.Filters) {
	events := w.pool.SubMany(ctx, relays, filters)
	for relayEvent := range events {
		if relayEvent.Event == nil {
			continue
		}
		w.ingestIncoming(*relayEvent.Event, relayEvent.Relay.URL)
		w.markProfileNeeded(relayEvent.Event.PubKey)
	}
}

// subscribeProjectStatus installs a one-shot, deduplicated subscription
// for a single project's status and metadata kinds, used by BootProject
// and by Sync when a project is newly discovered (§5 "subscribed-project
// dedup").
func (w *Worker) subscribeProjectStatus(ctx context.Context, projectATag string) {
	w.mu.Lock()
	if _, already := w.subscribedProjects[projectATag]; already {
		w.mu.Unlock()
		return
	}
	w.subscribedProjects[projectATag] = struct{}{}
	w.mu.Unlock()

	filter := nostr.Filters{{
		Kinds: []int{nostrtypes.KindProjectStatus, nostrtypes.KindNote},
		Tags:  nostr.TagMap{"a": {projectATag}},
	}}
	go w.runSubscription(ctx, w.relayURLs(), filter)
}
