// Package projections turns signed Nostr events into the typed domain
// entities the application data store indexes: projects, threads,
// messages, agent definitions, skills, nudges, team packs, project
// status snapshots, and profiles. Each function is pure and total with
// respect to tag absence — a note of the wrong kind, or missing a
// required tag, is rejected silently (ok=false), never with an error.
// Malformed content for the right kind (e.g. unparseable status JSON)
// is reported as an error instead, since the caller already committed
// to treating the event as that kind.
package projections

import "github.com/nbd-wtf/go-nostr"

// Kind1Class distinguishes what a kind-1 event can be: the root of a
// conversation, a message within one, or neither (Kind1Unknown).
// Skill-marker e-tags count toward neither shape.
type Kind1Class int

const (
	// Kind1Unknown is returned when a kind-1 event matches neither a
	// thread nor a message shape (e.g. no a-tag and no e-tag at all).
	Kind1Unknown Kind1Class = iota
	Kind1Thread
	Kind1Message
)

// ClassifyKind1 determines whether a kind-1 event is a thread root or a
// message. A note is a thread root iff it carries a project a-tag and
// no non-skill-marker e-tag; a note is a message iff it carries an
// e-tag with a root (or unmarked, for backward compatibility) marker.
// The two are mutually exclusive (Testable Property: thread/message
// disjointness) — skill-marker e-tags (["e", id, "", "skill"]) are
// excluded from the scan so a thread root that merely cross-references
// a skill is not misclassified as a message.
func ClassifyKind1(ev *nostr.Event) (Kind1Class, bool) {
	if ev.Kind != 1 {
		return Kind1Unknown, false
	}

	hasATag := false
	hasNonSkillETag := false
	for _, tag := range ev.Tags {
		if len(tag) >= 2 && tag[0] == "a" {
			hasATag = true
		}
		if len(tag) >= 2 && tag[0] == "e" {
			// The marker normally sits at index 3 (["e", id, relay,
			// marker]), but some clients omit the relay hint and put
			// it at index 2 instead; check both.
			isSkill := (len(tag) >= 4 && tag[3] == "skill") || (len(tag) >= 3 && tag[2] == "skill")
			if !isSkill {
				hasNonSkillETag = true
			}
		}
	}

	if hasATag && !hasNonSkillETag {
		return Kind1Thread, true
	}
	if hasNonSkillETag {
		return Kind1Message, true
	}
	return Kind1Unknown, false
}
