package nostrtypes

import "github.com/nbd-wtf/go-nostr"

// FirstTagValue returns the first value of the first tag named name, and
// whether it was found. Mirrors the single-value extraction helper every
// projection needs (project d-tag, agent model, etc.).
func FirstTagValue(tags nostr.Tags, name string) (string, bool) {
	for _, tag := range tags {
		if len(tag) >= 2 && tag[0] == name {
			return tag[1], true
		}
	}
	return "", false
}

// AllTagValues returns every value for tags named name, in document
// order. Used for repeated tags like "agent", "mcp", "tool", "p", "t".
func AllTagValues(tags nostr.Tags, name string) []string {
	var values []string
	for _, tag := range tags {
		if len(tag) >= 2 && tag[0] == name {
			values = append(values, tag[1])
		}
	}
	return values
}

// HasTag reports whether any tag named name is present, regardless of
// value. Used for presence-only markers like "reasoning".
func HasTag(tags nostr.Tags, name string) bool {
	for _, tag := range tags {
		if len(tag) >= 1 && tag[0] == name {
			return true
		}
	}
	return false
}

// TagValueOrDefault returns the first value of tag name, or def if the
// tag is absent or its value is empty.
func TagValueOrDefault(tags nostr.Tags, name, def string) string {
	v, ok := FirstTagValue(tags, name)
	if !ok || v == "" {
		return def
	}
	return v
}

// ETagRef describes one parsed "e" tag: id, optional relay hint, and
// marker ("root", "reply", or "" for legacy unmarked references).
type ETagRef struct {
	ID     string
	Relay  string
	Marker string
}

// ETagRefs returns every "e" tag on the event in document order.
func ETagRefs(tags nostr.Tags) []ETagRef {
	var refs []ETagRef
	for _, tag := range tags {
		if len(tag) < 2 || tag[0] != "e" {
			continue
		}
		ref := ETagRef{ID: tag[1]}
		if len(tag) >= 3 {
			ref.Relay = tag[2]
		}
		if len(tag) >= 4 {
			ref.Marker = tag[3]
		}
		refs = append(refs, ref)
	}
	return refs
}
