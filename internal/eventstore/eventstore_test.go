package eventstore

import (
	"path/filepath"
	"testing"

	"github.com/nbd-wtf/go-nostr"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "events.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestIngest_Idempotent(t *testing.T) {
	s := openTestStore(t)
	ev := nostr.Event{ID: "id1", PubKey: "pk", Kind: 1, CreatedAt: 100, Content: "hi"}

	n1, err := s.Ingest([]nostr.Event{ev}, "local")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if n1 != 1 {
		t.Fatalf("first ingest count = %d, want 1", n1)
	}

	n2, err := s.Ingest([]nostr.Event{ev}, "local")
	if err != nil {
		t.Fatalf("Ingest (repeat): %v", err)
	}
	if n2 != 0 {
		t.Fatalf("repeat ingest count = %d, want 0 (no-op success)", n2)
	}

	events, err := s.Query(Filter{}, 0)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("stored events = %d, want 1", len(events))
	}
}

func TestIngest_EphemeralNeverPersisted(t *testing.T) {
	s := openTestStore(t)
	ev := nostr.Event{ID: "id1", Kind: 24010, CreatedAt: 100, Content: "{}"}

	n, err := s.Ingest([]nostr.Event{ev}, "local")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if n != 0 {
		t.Fatalf("ephemeral ingest count = %d, want 0", n)
	}

	events, err := s.Query(Filter{Kinds: []int{24010}}, 0)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("ephemeral events persisted = %d, want 0", len(events))
	}
}

func TestSubscribe_ReceivesNoteKeys(t *testing.T) {
	s := openTestStore(t)
	sub := s.Subscribe(Filter{})
	defer s.Unsubscribe(sub)

	ev := nostr.Event{ID: "id1", Kind: 1, CreatedAt: 100}
	if _, err := s.Ingest([]nostr.Event{ev}, "local"); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	batch, ok := sub.Next()
	if !ok {
		t.Fatal("expected a batch")
	}
	if len(batch.NoteKeys) != 1 || batch.NoteKeys[0] != "id1" {
		t.Fatalf("NoteKeys = %v, want [id1]", batch.NoteKeys)
	}
}

func TestLookupByID(t *testing.T) {
	s := openTestStore(t)
	ev := nostr.Event{ID: "id1", Kind: 1, CreatedAt: 100, Content: "hi", Tags: nostr.Tags{{"a", "31933:pk:p1"}}}
	if _, err := s.Ingest([]nostr.Event{ev}, "local"); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	got, ok, err := s.LookupByID("id1")
	if err != nil {
		t.Fatalf("LookupByID: %v", err)
	}
	if !ok {
		t.Fatal("expected event to be found")
	}
	if got.Content != "hi" || len(got.Tags) != 1 {
		t.Fatalf("got = %+v", got)
	}

	_, ok, err = s.LookupByID("missing")
	if err != nil {
		t.Fatalf("LookupByID (missing): %v", err)
	}
	if ok {
		t.Fatal("expected missing id to report not found")
	}
}
