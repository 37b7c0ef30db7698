// Package nostrtypes holds the kind constants, a-coordinate helpers, and
// tag builders shared by every package that reads or writes Nostr
// events: the projections, the event store, the relay worker, and the
// publish path.
package nostrtypes

import (
	"fmt"
	"strconv"
	"strings"
)

// Standard kinds reused as-is.
const (
	KindProfile = 0 // NIP-01 profile metadata
	KindNote    = 1 // thread roots and messages, disambiguated by tags
)

// Domain-specific kinds.
const (
	KindAgentDefinition = 4199  // agent definition: name, role, instructions, model, tools
	KindNudge           = 4201  // reusable instruction snippet with tool filters
	KindSkill           = 4202  // reusable instruction snippet with hashtags
	KindProject         = 31933 // project: slug, name, owner, agent/tool references
	KindTeamPack        = 34199 // curated bundle of agent definitions
	KindProjectStatus   = 24010 // ephemeral snapshot of a project's online agents
	KindReport          = 30023 // NIP-23 long-form content, versioned by created_at inside a project
)

// EphemeralRangeStart and EphemeralRangeEnd bound the conventional
// ephemeral kind range (NIP-01 §Kinds). Events in this range (project
// status, streaming chunks, stop signals) are transient by convention
// and must never be written to the durable event store.
const (
	EphemeralRangeStart = 20000
	EphemeralRangeEnd   = 29999
)

// IsEphemeral reports whether kind falls in the conventional ephemeral
// range and must be rejected before any durable write is attempted.
func IsEphemeral(kind int) bool {
	return kind >= EphemeralRangeStart && kind <= EphemeralRangeEnd
}

// Coordinate identifies a replaceable entity across relays and time: the
// triple kind:pubkey:d-tag. Two events with the same Coordinate and
// author are different versions of the same logical entity; the one
// with the greatest CreatedAt (lexicographic event id as tiebreaker)
// wins.
type Coordinate struct {
	Kind   int
	Pubkey string
	DTag   string
}

// String renders the coordinate in the canonical "kind:pubkey:d" form
// used in "a" tags.
func (c Coordinate) String() string {
	return fmt.Sprintf("%d:%s:%s", c.Kind, c.Pubkey, c.DTag)
}

// ParseCoordinate parses an "a" tag value of the form "kind:pubkey:d".
// The d-tag segment may itself contain colons (free-form slugs rarely
// do, but nothing forbids it), so only the first two colons are treated
// as separators.
func ParseCoordinate(s string) (Coordinate, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 {
		return Coordinate{}, fmt.Errorf("malformed a-coordinate %q", s)
	}
	kind, err := strconv.Atoi(parts[0])
	if err != nil {
		return Coordinate{}, fmt.Errorf("malformed a-coordinate %q: bad kind: %w", s, err)
	}
	if parts[1] == "" {
		return Coordinate{}, fmt.Errorf("malformed a-coordinate %q: empty pubkey", s)
	}
	return Coordinate{Kind: kind, Pubkey: parts[1], DTag: parts[2]}, nil
}

// ATag returns a complete ["a", "kind:pubkey:d"] tag.
func ATag(c Coordinate) []string {
	return []string{"a", c.String()}
}

// DTag returns a ["d", slug] tag for a parameterized replaceable event.
func DTag(slug string) []string {
	return []string{"d", slug}
}

// ETag builds an ["e", id, relayHint, marker] tag per NIP-10. marker is
// "root", "reply", or "" for legacy unmarked references; relayHint may
// be empty.
func ETag(id, relayHint, marker string) []string {
	return []string{"e", id, relayHint, marker}
}

// PTag returns a ["p", pubkey] mention tag.
func PTag(pubkey string) []string {
	return []string{"p", pubkey}
}
