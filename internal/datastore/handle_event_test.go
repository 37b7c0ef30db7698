package datastore

import (
	"reflect"
	"testing"

	"github.com/nbd-wtf/go-nostr"

	"github.com/tenex-chat/tenexd/internal/nostrtypes"
)

func projectEvent(id, pubkey, dTag, name string, createdAt int64) nostr.Event {
	return nostr.Event{
		ID:        id,
		PubKey:    pubkey,
		Kind:      nostrtypes.KindProject,
		CreatedAt: nostr.Timestamp(createdAt),
		Tags: nostr.Tags{
			{"d", dTag},
			{"name", name},
		},
	}
}

func TestHandleEvent_ReplaceableLatestWins(t *testing.T) {
	s := New(nil, nil)

	ev1 := projectEvent("id1", "pk", "proj1", "Demo", 100)
	s.HandleEvent(nostrtypes.KindProject, ev1)

	ev2 := projectEvent("id2", "pk", "proj1", "Demo v2", 200)
	s.HandleEvent(nostrtypes.KindProject, ev2)

	proj, ok := s.FindProjectBySlug("proj1")
	if !ok {
		t.Fatal("expected project to be found")
	}
	if proj.Name != "Demo v2" {
		t.Errorf("Name = %q, want Demo v2 (later created_at must win)", proj.Name)
	}

	if projects := s.GetProjects(); len(projects) != 1 {
		t.Fatalf("expected exactly one project, got %d", len(projects))
	}
}

func TestHandleEvent_ReplaceableOlderEventIgnored(t *testing.T) {
	s := New(nil, nil)

	s.HandleEvent(nostrtypes.KindProject, projectEvent("id2", "pk", "proj1", "Newer", 200))
	s.HandleEvent(nostrtypes.KindProject, projectEvent("id1", "pk", "proj1", "Older", 100))

	proj, _ := s.FindProjectBySlug("proj1")
	if proj.Name != "Newer" {
		t.Errorf("Name = %q, want Newer (an older event must never overwrite a newer one)", proj.Name)
	}
}

func TestHandleEvent_ReplaceableTieBreaksByEventID(t *testing.T) {
	s := New(nil, nil)

	s.HandleEvent(nostrtypes.KindProject, projectEvent("aaa", "pk", "proj1", "A", 100))
	s.HandleEvent(nostrtypes.KindProject, projectEvent("bbb", "pk", "proj1", "B", 100))

	proj, _ := s.FindProjectBySlug("proj1")
	if proj.Name != "B" {
		t.Errorf("Name = %q, want B (equal created_at ties break on lexicographically greater event id)", proj.Name)
	}
}

func TestHandleEvent_ThreadThenReplyMessage(t *testing.T) {
	s := New(nil, nil)

	projCoord := "31933:pk:proj1"
	threadEv := nostr.Event{
		ID:        "root1",
		Kind:      1,
		CreatedAt: 100,
		Tags: nostr.Tags{
			{"a", projCoord},
			{"title", "Hello"},
		},
	}
	s.HandleEvent(1, threadEv)

	msgEv := nostr.Event{
		ID:        "msg1",
		Kind:      1,
		CreatedAt: 200,
		Tags: nostr.Tags{
			{"e", "root1", "", "root"},
			{"e", "parent1", "", "reply"},
			{"a", projCoord},
		},
	}
	s.HandleEvent(1, msgEv)

	threads := s.GetThreadsByProject(projCoord)
	if len(threads) != 1 || threads[0].Title != "Hello" {
		t.Fatalf("expected one thread titled Hello, got %+v", threads)
	}

	msgs := s.GetMessages("root1")
	if len(msgs) != 1 || msgs[0].ReplyTo != "parent1" {
		t.Fatalf("expected one message with reply_to=parent1, got %+v", msgs)
	}
}

func TestHandleEvent_EffectiveActivityPropagatesToAncestor(t *testing.T) {
	s := New(nil, nil)
	projCoord := "31933:pk:proj1"

	parentThread := nostr.Event{
		ID:        "parent-thread",
		Kind:      1,
		CreatedAt: 100,
		Tags:      nostr.Tags{{"a", projCoord}, {"title", "Parent"}},
	}
	s.HandleEvent(1, parentThread)

	childThread := nostr.Event{
		ID:        "child-thread",
		Kind:      1,
		CreatedAt: 150,
		Tags:      nostr.Tags{{"a", projCoord}, {"title", "Child"}, {"delegation", "parent-thread"}},
	}
	s.HandleEvent(1, childThread)

	msg := nostr.Event{
		ID:        "msg-in-child",
		Kind:      1,
		CreatedAt: 500,
		Tags:      nostr.Tags{{"e", "child-thread", "", "root"}},
	}
	s.HandleEvent(1, msg)

	parent, ok := s.GetThread("parent-thread")
	if !ok {
		t.Fatal("expected parent thread to exist")
	}
	if parent.EffectiveLastActivity < 500 {
		t.Errorf("EffectiveLastActivity = %d, want >= 500 (propagated from descendant)", parent.EffectiveLastActivity)
	}
	if parent.LastActivity >= 500 {
		t.Errorf("LastActivity = %d, want < 500 (own activity is independent of descendants)", parent.LastActivity)
	}
}

func TestHandleEvent_IngestIdempotent(t *testing.T) {
	s := New(nil, nil)
	ev := projectEvent("id1", "pk", "proj1", "Demo", 100)

	s.HandleEvent(nostrtypes.KindProject, ev)
	before := s.GetProjects()

	s.HandleEvent(nostrtypes.KindProject, ev)
	after := s.GetProjects()

	if len(before) != 1 || len(after) != 1 {
		t.Fatalf("expected exactly one project after re-ingesting the same event, got %d then %d", len(before), len(after))
	}
	if !reflect.DeepEqual(before[0], after[0]) {
		t.Errorf("re-ingesting the same event changed the stored projection: %+v != %+v", before[0], after[0])
	}
}

func TestHandleEvent_MessageAppendOnly(t *testing.T) {
	s := New(nil, nil)

	threadEv := nostr.Event{ID: "root1", Kind: 1, CreatedAt: 100, Tags: nostr.Tags{{"a", "31933:pk:proj1"}}}
	s.HandleEvent(1, threadEv)

	msgEv := nostr.Event{ID: "msg1", Kind: 1, CreatedAt: 200, Tags: nostr.Tags{{"e", "root1", "", "root"}}}
	s.HandleEvent(1, msgEv)
	s.HandleEvent(1, msgEv)

	if msgs := s.GetMessages("root1"); len(msgs) != 1 {
		t.Fatalf("expected exactly one message after duplicate ingest, got %d", len(msgs))
	}
}

func TestHandleEvent_EphemeralStatusNeverStoredDurably(t *testing.T) {
	s := New(nil, nil)
	deltas := s.HandleEvent(nostrtypes.KindProjectStatus, nostr.Event{Kind: nostrtypes.KindProjectStatus, Content: "{}"})
	if deltas != nil {
		t.Errorf("expected HandleEvent on a status-range kind to be a no-op dispatch, got %v", deltas)
	}
	if _, ok := s.GetProjectStatus("31933:pk:proj1"); ok {
		t.Error("project status must only enter the store via HandleStatusEventJSON")
	}
}

func TestHandleStatusEventJSON_ReplacesSnapshot(t *testing.T) {
	s := New(nil, nil)
	coord := "31933:pk:proj1"

	if _, err := s.HandleStatusEventJSON(coord, 100, []byte(`{"agents":[{"name":"pm","pubkey":"abc","is_pm":true,"model":"gpt-x"}]}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	status, ok := s.GetProjectStatus(coord)
	if !ok || len(status.Agents) != 1 {
		t.Fatalf("expected one online agent, got %+v ok=%v", status, ok)
	}

	// An older status must not replace a newer one.
	if _, err := s.HandleStatusEventJSON(coord, 50, []byte(`{"agents":[]}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	status, _ = s.GetProjectStatus(coord)
	if len(status.Agents) != 1 {
		t.Errorf("an older status event must not replace a newer snapshot, got %+v", status)
	}
}
