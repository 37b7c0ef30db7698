package projections

import (
	"strings"

	"github.com/nbd-wtf/go-nostr"

	"github.com/tenex-chat/tenexd/internal/nostrtypes"
)

// DefaultThreadTitle is substituted when a thread root carries an empty or
// whitespace-only title tag.
const DefaultThreadTitle = "Untitled"

// ThreadFromEvent parses a kind-1 event into a Thread. It requires a
// project a-tag and the absence of any non-skill-marker e-tag (Testable
// Property: thread/message disjointness) — callers should gate on
// ClassifyKind1 returning Kind1Thread before calling this, but the function
// re-derives the same condition defensively.
func ThreadFromEvent(ev *nostr.Event) (Thread, bool) {
	if ev.Kind != 1 {
		return Thread{}, false
	}

	var projectCoord string
	hasATag := false
	for _, tag := range ev.Tags {
		if len(tag) >= 2 && tag[0] == "a" {
			projectCoord = tag[1]
			hasATag = true
		}
	}

	for _, ref := range nostrtypes.ETagRefs(ev.Tags) {
		if ref.Marker == "skill" {
			continue
		}
		// A relay that omits the relay-hint field shifts the marker
		// into the position we'd otherwise treat as the hint.
		if ref.Relay == "skill" {
			continue
		}
		return Thread{}, false
	}

	if !hasATag {
		return Thread{}, false
	}

	title := strings.TrimSpace(nostrtypes.TagValueOrDefault(ev.Tags, "title", ""))
	if title == "" {
		title = DefaultThreadTitle
	}

	parent, _ := nostrtypes.FirstTagValue(ev.Tags, "delegation")
	if parent == "" {
		parent, _ = nostrtypes.FirstTagValue(ev.Tags, "parent")
	}

	created := int64(ev.CreatedAt)

	return Thread{
		ID:                    ev.ID,
		ProjectCoordinate:     projectCoord,
		Title:                 title,
		Content:               ev.Content,
		Author:                ev.PubKey,
		CreatedAt:             created,
		LastActivity:          created,
		EffectiveLastActivity: created,
		ParentConversationID:  parent,
		PTags:                 nostrtypes.AllTagValues(ev.Tags, "p"),
		IsScheduled:           nostrtypes.HasTag(ev.Tags, "scheduled-task-id"),
	}, true
}
