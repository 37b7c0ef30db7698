// Package preferences persists the one piece of user-facing state the
// core keeps beyond the event store: archived conversations/projects,
// collapsed threads, and approved/blocked backend pubkeys (§6.4). It is
// a singleton JSON file, written atomically (write-then-rename) so a
// crash mid-write never corrupts the previous good copy; nothing here
// needs a database, so the stdlib alone serves it (no teacher or pack
// dependency covers "small JSON sidecar with atomic replace").
package preferences

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileName is the preferences file's name within the data directory,
// adapted from the mobile shell's "ios_preferences.json" convention to a
// name that doesn't imply a specific platform.
const FileName = "tenex_preferences.json"

// Document is the on-disk shape: sets represented as sorted slices for
// stable, diffable JSON.
type Document struct {
	ArchivedConversationIDs []string `json:"archived_conversation_ids"`
	ArchivedProjectIDs      []string `json:"archived_project_ids"`
	CollapsedThreadIDs      []string `json:"collapsed_thread_ids"`
	VisibleProjectIDs       []string `json:"visible_project_ids"`
	ApprovedBackendPubkeys  []string `json:"approved_backend_pubkeys"`
	BlockedBackendPubkeys   []string `json:"blocked_backend_pubkeys"`
	ReadInboxIDs            []string `json:"read_inbox_ids"`
}

// Store is the writer-exclusive, best-effort-persisted singleton.
type Store struct {
	mu   sync.Mutex
	path string
	doc  Document
}

// Load reads the preferences file at <dataDir>/tenex_preferences.json,
// returning an empty Document (not an error) if the file does not yet
// exist.
func Load(dataDir string) (*Store, error) {
	path := filepath.Join(dataDir, FileName)
	s := &Store{path: path}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("preferences: read %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, &s.doc); err != nil {
		return nil, fmt.Errorf("preferences: parse %s: %w", path, err)
	}
	return s, nil
}

// Snapshot returns a copy of the current document.
func (s *Store) Snapshot() Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc
}

func addUnique(list []string, value string) []string {
	for _, v := range list {
		if v == value {
			return list
		}
	}
	return append(list, value)
}

func remove(list []string, value string) []string {
	out := list[:0]
	for _, v := range list {
		if v != value {
			out = append(out, v)
		}
	}
	return out
}

// MarkInboxRead records id as read.
func (s *Store) MarkInboxRead(id string) error {
	s.mu.Lock()
	s.doc.ReadInboxIDs = addUnique(s.doc.ReadInboxIDs, id)
	s.mu.Unlock()
	return s.save()
}

// IsInboxRead reports whether id has been marked read.
func (s *Store) IsInboxRead(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.doc.ReadInboxIDs {
		if v == id {
			return true
		}
	}
	return false
}

// SetConversationArchived toggles a conversation's archived flag.
func (s *Store) SetConversationArchived(id string, archived bool) error {
	s.mu.Lock()
	if archived {
		s.doc.ArchivedConversationIDs = addUnique(s.doc.ArchivedConversationIDs, id)
	} else {
		s.doc.ArchivedConversationIDs = remove(s.doc.ArchivedConversationIDs, id)
	}
	s.mu.Unlock()
	return s.save()
}

// SetProjectArchived toggles a project's archived flag.
func (s *Store) SetProjectArchived(id string, archived bool) error {
	s.mu.Lock()
	if archived {
		s.doc.ArchivedProjectIDs = addUnique(s.doc.ArchivedProjectIDs, id)
	} else {
		s.doc.ArchivedProjectIDs = remove(s.doc.ArchivedProjectIDs, id)
	}
	s.mu.Unlock()
	return s.save()
}

// SetThreadCollapsed toggles a thread's collapsed flag.
func (s *Store) SetThreadCollapsed(id string, collapsed bool) error {
	s.mu.Lock()
	if collapsed {
		s.doc.CollapsedThreadIDs = addUnique(s.doc.CollapsedThreadIDs, id)
	} else {
		s.doc.CollapsedThreadIDs = remove(s.doc.CollapsedThreadIDs, id)
	}
	s.mu.Unlock()
	return s.save()
}

// SetBackendTrust approves or blocks a backend pubkey, clearing it from
// the opposite set.
func (s *Store) SetBackendTrust(pubkey string, approved bool) error {
	s.mu.Lock()
	if approved {
		s.doc.ApprovedBackendPubkeys = addUnique(s.doc.ApprovedBackendPubkeys, pubkey)
		s.doc.BlockedBackendPubkeys = remove(s.doc.BlockedBackendPubkeys, pubkey)
	} else {
		s.doc.BlockedBackendPubkeys = addUnique(s.doc.BlockedBackendPubkeys, pubkey)
		s.doc.ApprovedBackendPubkeys = remove(s.doc.ApprovedBackendPubkeys, pubkey)
	}
	s.mu.Unlock()
	return s.save()
}

// save writes the document atomically: write to a temp file in the same
// directory, then rename over the target, so a reader never observes a
// partially written file (§5 "Preferences file ... writes are atomic").
// Best-effort per §7: a failed write is reported but never panics or
// corrupts the previous copy.
func (s *Store) save() error {
	s.mu.Lock()
	doc := s.doc
	path := s.path
	s.mu.Unlock()

	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("preferences: marshal: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tenex_preferences-*.tmp")
	if err != nil {
		return fmt.Errorf("preferences: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("preferences: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("preferences: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("preferences: rename into place: %w", err)
	}
	return nil
}
