package eventstore

import (
	"errors"
	"fmt"
	"time"

	"github.com/nbd-wtf/go-nostr"

	"github.com/tenex-chat/tenexd/internal/nostrtypes"
)

// maxIngestAttempts mirrors original_source's `ingest_events`
// (crates/tenex-core/src/store/events.rs): 24 attempts per event before
// giving up.
const maxIngestAttempts = 24

// ErrIngestRetriesExhausted is returned when every retry attempt for an
// event failed and a final re-probe still finds it absent (§4.1, §7).
var ErrIngestRetriesExhausted = errors.New("eventstore: ingest retries exhausted")

// backoffFor returns the delay before the next attempt, following the
// {5ms x4, 15ms x6, 30ms thereafter} schedule.
func backoffFor(attempt int) time.Duration {
	switch {
	case attempt <= 3:
		return 5 * time.Millisecond
	case attempt <= 9:
		return 15 * time.Millisecond
	default:
		return 30 * time.Millisecond
	}
}

// Ingest persists each non-ephemeral event in events, deduplicating by id.
// source is an origin label (a relay URL, or "local" for self-originated
// events); it is attached to the stored row for diagnostics and is not
// part of the event's identity. Returns the count of newly persisted
// (non-duplicate) events.
func (s *Store) Ingest(events []nostr.Event, source string) (int, error) {
	newlyPersisted := 0
	var noteKeys []string

	for _, ev := range events {
		if nostrtypes.IsEphemeral(ev.Kind) {
			// Ephemeral kinds are rejected pre-write and never count
			// as a failure (§4.1).
			continue
		}

		inserted, err := s.ingestOne(ev, source)
		if err != nil {
			return newlyPersisted, err
		}
		if inserted {
			newlyPersisted++
			noteKeys = append(noteKeys, ev.ID)
		}
	}

	if len(noteKeys) > 0 {
		s.notifySubscribers(noteKeys)
	}

	return newlyPersisted, nil
}

// ingestOne runs the retry/backoff/fallback algorithm for a single event.
func (s *Store) ingestOne(ev nostr.Event, origin string) (bool, error) {
	handled := false
	insertedNew := false
	var lastErr error

	for attempt := 0; attempt < maxIngestAttempts; attempt++ {
		exists, err := s.noteExists(ev.ID)
		if err == nil && exists {
			handled = true
			break
		}

		inserted, err := s.insertOne(ev, origin)
		if err == nil {
			handled = true
			insertedNew = inserted
			break
		}
		lastErr = err

		// Another writer may have won while we were retrying.
		if exists, probeErr := s.noteExists(ev.ID); probeErr == nil && exists {
			handled = true
			break
		}

		// If the write carried relay-origin metadata, retry once
		// without it before counting this attempt as failed, to
		// accommodate events received with invalid origin headers.
		if origin != "" {
			if inserted, fallbackErr := s.insertOne(ev, ""); fallbackErr == nil {
				handled = true
				insertedNew = inserted
				break
			}
		}

		if attempt < maxIngestAttempts-1 {
			time.Sleep(backoffFor(attempt))
		}
	}

	if handled {
		return insertedNew, nil
	}

	if exists, err := s.noteExists(ev.ID); err == nil && exists {
		return false, nil
	}

	return false, fmt.Errorf("%w: id=%s kind=%d after %d attempts: %v", ErrIngestRetriesExhausted, ev.ID, ev.Kind, maxIngestAttempts, lastErr)
}
