package bus

import (
	"sync"
	"testing"
)

func TestNilDataBusPublish(t *testing.T) {
	var b *DataBus
	// Must not panic.
	b.Publish(ProjectAdded{ATag: "31933:abc:proj"})
}

func TestNilDataBusSubscriberCount(t *testing.T) {
	var b *DataBus
	if got := b.SubscriberCount(); got != 0 {
		t.Errorf("SubscriberCount() on nil bus = %d, want 0", got)
	}
}

func TestPublishSingleSubscriber(t *testing.T) {
	b := NewDataBus()
	ch := b.Subscribe(8)
	defer b.Unsubscribe(ch)

	want := ThreadActivityUpdated{ATag: "31933:abc:proj", ThreadID: "thread1"}
	b.Publish(want)

	select {
	case got := <-ch:
		tu, ok := got.(ThreadActivityUpdated)
		if !ok || tu != want {
			t.Errorf("got delta %v, want %v", got, want)
		}
	default:
		t.Fatal("expected delta to be immediately available")
	}
}

func TestPublishMultipleSubscribers(t *testing.T) {
	b := NewDataBus()
	const n = 5
	channels := make([]<-chan Delta, n)
	for i := range n {
		channels[i] = b.Subscribe(8)
	}
	defer func() {
		for _, ch := range channels {
			b.Unsubscribe(ch)
		}
	}()

	b.Publish(MessageAppended{ThreadID: "thread1"})

	for i, ch := range channels {
		select {
		case got := <-ch:
			ma, ok := got.(MessageAppended)
			if !ok || ma.ThreadID != "thread1" {
				t.Errorf("subscriber %d: got %v, want MessageAppended{thread1}", i, got)
			}
		default:
			t.Errorf("subscriber %d: expected delta to be immediately available", i)
		}
	}
}

func TestLaggedOnFull(t *testing.T) {
	b := NewDataBus()
	// Buffer size 1 — second publish should be dropped and surfaced as Lagged.
	ch := b.Subscribe(1)
	defer b.Unsubscribe(ch)

	b.Publish(InboxChanged{})
	b.Publish(ProjectStatusUpdated{ATag: "one"})
	b.Publish(ProjectStatusUpdated{ATag: "two"})

	got := <-ch
	if _, ok := got.(InboxChanged); !ok {
		t.Errorf("first received = %v, want InboxChanged", got)
	}

	// Next successful send after the buffer drains should surface Lagged,
	// not silently resume with ProjectStatusUpdated{two}.
	b.Publish(InboxChanged{})
	got = <-ch
	lagged, ok := got.(Lagged)
	if !ok {
		t.Fatalf("second received = %v, want Lagged", got)
	}
	if lagged.Count != 2 {
		t.Errorf("Lagged.Count = %d, want 2", lagged.Count)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := NewDataBus()
	ch := b.Subscribe(8)

	b.Unsubscribe(ch)

	_, ok := <-ch
	if ok {
		t.Error("expected channel to be closed after Unsubscribe")
	}
}

func TestDoubleUnsubscribe(t *testing.T) {
	b := NewDataBus()
	ch := b.Subscribe(8)

	b.Unsubscribe(ch)
	// Must not panic.
	b.Unsubscribe(ch)
}

func TestSubscriberCount(t *testing.T) {
	b := NewDataBus()

	if got := b.SubscriberCount(); got != 0 {
		t.Errorf("initial count = %d, want 0", got)
	}

	ch1 := b.Subscribe(4)
	ch2 := b.Subscribe(4)

	if got := b.SubscriberCount(); got != 2 {
		t.Errorf("after 2 subscribes = %d, want 2", got)
	}

	b.Unsubscribe(ch1)
	if got := b.SubscriberCount(); got != 1 {
		t.Errorf("after 1 unsubscribe = %d, want 1", got)
	}

	b.Unsubscribe(ch2)
	if got := b.SubscriberCount(); got != 0 {
		t.Errorf("after all unsubscribed = %d, want 0", got)
	}
}

func TestConcurrentPublishSubscribe(t *testing.T) {
	b := NewDataBus()
	const publishers = 10
	const deltasPerPublisher = 100

	var wg sync.WaitGroup

	ch := b.Subscribe(64)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for range ch {
			// We don't assert exact count because lag is expected.
		}
	}()

	var pubWg sync.WaitGroup
	for i := range publishers {
		pubWg.Add(1)
		go func(id int) {
			defer pubWg.Done()
			for j := range deltasPerPublisher {
				b.Publish(MessageAppended{ThreadID: "t"})
				_ = j
			}
			_ = id
		}(i)
	}

	pubWg.Wait()
	b.Unsubscribe(ch)
	wg.Wait()
}

func TestPublishNoSubscribers(t *testing.T) {
	b := NewDataBus()
	// Must not panic when publishing with no subscribers.
	b.Publish(InboxChanged{})
}

func TestPublishAfterUnsubscribe(t *testing.T) {
	b := NewDataBus()
	ch := b.Subscribe(8)
	b.Unsubscribe(ch)

	// Publishing after the only subscriber is gone must not panic.
	b.Publish(ProjectAdded{ATag: "x"})
}
