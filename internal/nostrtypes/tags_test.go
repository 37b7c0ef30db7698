package nostrtypes

import (
	"testing"

	"github.com/nbd-wtf/go-nostr"
)

func TestFirstTagValue(t *testing.T) {
	tags := nostr.Tags{{"d", "proj1"}, {"name", "Demo"}}
	v, ok := FirstTagValue(tags, "name")
	if !ok || v != "Demo" {
		t.Errorf("FirstTagValue(name) = (%q, %v), want (Demo, true)", v, ok)
	}
	_, ok = FirstTagValue(tags, "missing")
	if ok {
		t.Error("FirstTagValue(missing) should report false")
	}
}

func TestAllTagValues(t *testing.T) {
	tags := nostr.Tags{{"agent", "a1"}, {"agent", "a2"}, {"mcp", "m1"}}
	got := AllTagValues(tags, "agent")
	if len(got) != 2 || got[0] != "a1" || got[1] != "a2" {
		t.Errorf("AllTagValues(agent) = %v, want [a1 a2]", got)
	}
}

func TestHasTag(t *testing.T) {
	tags := nostr.Tags{{"reasoning"}}
	if !HasTag(tags, "reasoning") {
		t.Error("HasTag(reasoning) = false, want true")
	}
	if HasTag(tags, "missing") {
		t.Error("HasTag(missing) = true, want false")
	}
}

func TestTagValueOrDefault(t *testing.T) {
	tags := nostr.Tags{{"role", ""}, {"title", "Custom"}}
	if got := TagValueOrDefault(tags, "role", "Assistant"); got != "Assistant" {
		t.Errorf("TagValueOrDefault(role) = %q, want %q (empty value falls back)", got, "Assistant")
	}
	if got := TagValueOrDefault(tags, "title", "Agent"); got != "Custom" {
		t.Errorf("TagValueOrDefault(title) = %q, want %q", got, "Custom")
	}
	if got := TagValueOrDefault(tags, "missing", "fallback"); got != "fallback" {
		t.Errorf("TagValueOrDefault(missing) = %q, want %q", got, "fallback")
	}
}

func TestETagRefs(t *testing.T) {
	tags := nostr.Tags{
		{"e", "root-id", "", "root"},
		{"e", "parent-id", "wss://relay", "reply"},
		{"e", "legacy-id"},
		{"a", "31933:pk:proj1"},
	}
	refs := ETagRefs(tags)
	if len(refs) != 3 {
		t.Fatalf("ETagRefs returned %d refs, want 3", len(refs))
	}
	if refs[0].ID != "root-id" || refs[0].Marker != "root" {
		t.Errorf("refs[0] = %+v, want id=root-id marker=root", refs[0])
	}
	if refs[1].ID != "parent-id" || refs[1].Relay != "wss://relay" || refs[1].Marker != "reply" {
		t.Errorf("refs[1] = %+v", refs[1])
	}
	if refs[2].ID != "legacy-id" || refs[2].Marker != "" {
		t.Errorf("refs[2] = %+v, want id=legacy-id marker=\"\"", refs[2])
	}
}
