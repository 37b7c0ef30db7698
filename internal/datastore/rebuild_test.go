package datastore

import (
	"path/filepath"
	"reflect"
	"testing"

	"github.com/nbd-wtf/go-nostr"

	"github.com/tenex-chat/tenexd/internal/eventstore"
)

func TestRebuildFromStore_MatchesIncrementalIngestion(t *testing.T) {
	store, err := eventstore.Open(filepath.Join(t.TempDir(), "rebuild.db"))
	if err != nil {
		t.Fatalf("open eventstore: %v", err)
	}
	defer store.Close()

	events := []nostr.Event{
		{ID: "proj1", Kind: 31933, PubKey: "pk", CreatedAt: 100, Tags: nostr.Tags{{"d", "proj1"}, {"name", "Demo"}}},
		{ID: "root1", Kind: 1, CreatedAt: 150, Tags: nostr.Tags{{"a", "31933:pk:proj1"}, {"title", "Hello"}}},
		{ID: "msg1", Kind: 1, CreatedAt: 200, Tags: nostr.Tags{{"e", "root1", "", "root"}}},
	}

	if _, err := store.Ingest(events, "local"); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	incremental := New(nil, nil)
	for _, ev := range events {
		incremental.HandleEvent(ev.Kind, ev)
	}

	rebuilt := New(nil, nil)
	if err := rebuilt.RebuildFromStore(store); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	if !reflect.DeepEqual(incremental.GetProjects(), rebuilt.GetProjects()) {
		t.Errorf("projects differ: incremental=%+v rebuilt=%+v", incremental.GetProjects(), rebuilt.GetProjects())
	}
	if !reflect.DeepEqual(incremental.GetThreadsByProject("31933:pk:proj1"), rebuilt.GetThreadsByProject("31933:pk:proj1")) {
		t.Error("threads differ between incremental ingestion and rebuild")
	}
	if !reflect.DeepEqual(incremental.GetMessages("root1"), rebuilt.GetMessages("root1")) {
		t.Error("messages differ between incremental ingestion and rebuild")
	}
}
