package eventstore

// subscriptionBuffer bounds how many note-key batches a lagging consumer
// may have outstanding before it receives a Lagged notice instead of
// further silent buffering (§4.5's broadcast-bus convention, applied here
// to the event store's own live subscription per §4.1).
const subscriptionBuffer = 1024

// Batch is one delivery on a Subscription: either a set of newly
// persisted note ids, or a lag notice telling the consumer it missed
// LaggedCount batches and should consider a full resync.
type Batch struct {
	NoteKeys    []string
	LaggedCount int
}

// Subscription is a live, single-consumer stream of newly persisted note
// identifiers. The store's Ingest calls deliver to every open Subscription
// whose buffer has room; a full buffer increments a lag counter instead of
// blocking the writer or dropping data from other subscribers.
type Subscription struct {
	store   *Store
	ch      chan Batch
	lagged  int
}

// Subscribe returns a new live subscription. filter is currently advisory
// (kind-indexed client-side filtering happens at the consumer, matching
// §4.1's "lazy, potentially infinite, single-consumer queue"); it is
// accepted here so call sites can be filter-aware without the store yet
// needing server-side filter pushdown.
func (s *Store) Subscribe(_ Filter) *Subscription {
	sub := &Subscription{store: s, ch: make(chan Batch, subscriptionBuffer)}
	s.subMu.Lock()
	s.subs = append(s.subs, sub)
	s.subMu.Unlock()
	return sub
}

// Unsubscribe stops delivery to this subscription and releases its slot.
func (s *Store) Unsubscribe(sub *Subscription) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for i, existing := range s.subs {
		if existing == sub {
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			close(sub.ch)
			return
		}
	}
}

// Next blocks until the next batch of note keys (or a lag notice) is
// available on this subscription.
func (sub *Subscription) Next() (Batch, bool) {
	b, ok := <-sub.ch
	return b, ok
}

// TryNext returns the next batch without blocking, or false if none is
// ready.
func (sub *Subscription) TryNext() (Batch, bool) {
	select {
	case b, ok := <-sub.ch:
		return b, ok
	default:
		return Batch{}, false
	}
}

func (s *Store) notifySubscribers(noteKeys []string) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, sub := range s.subs {
		// Surface any pending lag before the next batch so the consumer
		// is not silently starved.
		if sub.lagged > 0 {
			select {
			case sub.ch <- Batch{LaggedCount: sub.lagged}:
				sub.lagged = 0
			default:
				sub.lagged++
				continue
			}
		}
		select {
		case sub.ch <- Batch{NoteKeys: noteKeys}:
		default:
			sub.lagged++
		}
	}
}
