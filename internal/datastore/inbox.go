package datastore

import (
	"sort"

	"github.com/tenex-chat/tenexd/internal/bus"
)

// InboxItem is a derived view over messages that mention or reply to the
// user; the read flag is sourced from preferences, not the event log
// (§3: "Derived; read flag lives in preferences").
type InboxItem struct {
	MessageID         string
	AuthorPubkey      string
	ProjectCoordinate string
	ThreadID          string
	EventType         string // "mention" | "reply" | "thread-reply"
	IsRead            bool
}

// GetInbox returns every message that mentions userPubkey (via a p-tag)
// or replies to one of their messages, ordered newest first, with the
// read flag resolved from preferences.
func (s *Store) GetInbox(userPubkey string) []InboxItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var items []InboxItem
	createdAt := make(map[string]int64)
	for threadID, messages := range s.messagesByThread {
		thread := s.threads[threadID]
		for _, msg := range messages {
			eventType := ""
			for _, p := range msg.PTags {
				if p == userPubkey {
					eventType = "mention"
					break
				}
			}
			if eventType == "" && msg.ReplyTo != "" {
				for _, parent := range s.messagesByThread[threadID] {
					if parent.ID == msg.ReplyTo && parent.Author == userPubkey {
						eventType = "reply"
						break
					}
				}
			}
			if eventType == "" && msg.ReplyTo == "" && thread.Author == userPubkey {
				eventType = "thread-reply"
			}
			if eventType == "" {
				continue
			}

			createdAt[msg.ID] = msg.CreatedAt
			items = append(items, InboxItem{
				MessageID:         msg.ID,
				AuthorPubkey:      msg.Author,
				ProjectCoordinate: thread.ProjectCoordinate,
				ThreadID:          threadID,
				EventType:         eventType,
				IsRead:            s.isInboxReadLocked(msg.ID),
			})
		}
	}

	sort.Slice(items, func(i, j int) bool {
		ci, cj := createdAt[items[i].MessageID], createdAt[items[j].MessageID]
		if ci != cj {
			return ci > cj
		}
		return items[i].MessageID > items[j].MessageID
	})
	return items
}

func (s *Store) isInboxReadLocked(id string) bool {
	if s.prefs == nil {
		return false
	}
	return s.prefs.IsInboxRead(id)
}

// MarkInboxRead persists id as read via preferences (if configured) and
// emits InboxChanged.
func (s *Store) MarkInboxRead(id string) ([]bus.Delta, error) {
	if s.prefs != nil {
		if err := s.prefs.MarkInboxRead(id); err != nil {
			return nil, err
		}
	}
	return []bus.Delta{bus.InboxChanged{}}, nil
}

// SetConversationArchived toggles a conversation's archived flag.
func (s *Store) SetConversationArchived(id string, archived bool) error {
	if s.prefs == nil {
		return nil
	}
	return s.prefs.SetConversationArchived(id, archived)
}

// SetProjectArchived toggles a project's archived flag.
func (s *Store) SetProjectArchived(id string, archived bool) error {
	if s.prefs == nil {
		return nil
	}
	return s.prefs.SetProjectArchived(id, archived)
}

// SetThreadCollapsed toggles a thread's collapsed flag.
func (s *Store) SetThreadCollapsed(id string, collapsed bool) error {
	if s.prefs == nil {
		return nil
	}
	return s.prefs.SetThreadCollapsed(id, collapsed)
}

// SetBackendTrust approves or blocks a backend pubkey.
func (s *Store) SetBackendTrust(pubkey string, approved bool) error {
	if s.prefs == nil {
		return nil
	}
	return s.prefs.SetBackendTrust(pubkey, approved)
}
