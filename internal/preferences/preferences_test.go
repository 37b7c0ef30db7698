package preferences

import (
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileIsEmptyNotError(t *testing.T) {
	dir := t.TempDir()
	s, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(s.Snapshot().ArchivedProjectIDs) != 0 {
		t.Fatalf("expected empty document, got %+v", s.Snapshot())
	}
}

func TestMarkInboxRead_PersistsAndReloads(t *testing.T) {
	dir := t.TempDir()
	s, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := s.MarkInboxRead("msg1"); err != nil {
		t.Fatalf("MarkInboxRead: %v", err)
	}
	if !s.IsInboxRead("msg1") {
		t.Fatal("expected msg1 to be read")
	}

	reloaded, err := Load(dir)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !reloaded.IsInboxRead("msg1") {
		t.Fatal("expected read flag to survive reload")
	}

	if _, err := filepath.Glob(filepath.Join(dir, ".tenex_preferences-*.tmp")); err != nil {
		t.Fatalf("glob: %v", err)
	}
}

func TestSetProjectArchived_Toggles(t *testing.T) {
	dir := t.TempDir()
	s, _ := Load(dir)

	if err := s.SetProjectArchived("p1", true); err != nil {
		t.Fatalf("archive: %v", err)
	}
	if len(s.Snapshot().ArchivedProjectIDs) != 1 {
		t.Fatalf("expected 1 archived project, got %+v", s.Snapshot().ArchivedProjectIDs)
	}

	if err := s.SetProjectArchived("p1", false); err != nil {
		t.Fatalf("unarchive: %v", err)
	}
	if len(s.Snapshot().ArchivedProjectIDs) != 0 {
		t.Fatalf("expected 0 archived projects, got %+v", s.Snapshot().ArchivedProjectIDs)
	}
}
