package bus

import (
	"context"
	"testing"
	"time"
)

func TestCommandHandle_SendAndReceive(t *testing.T) {
	handle, rx := NewCommandChannel(4)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := handle.Send(ctx, Sync{}); err != nil {
		t.Fatalf("Send error: %v", err)
	}

	select {
	case cmd := <-rx:
		if _, ok := cmd.(Sync); !ok {
			t.Errorf("received %T, want Sync", cmd)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for command")
	}
}

func TestCommandHandle_ClonedHandlesShareChannel(t *testing.T) {
	handle, rx := NewCommandChannel(4)
	clone := handle

	ctx := context.Background()
	if err := clone.Send(ctx, GetRelayStatus{}); err != nil {
		t.Fatalf("Send error: %v", err)
	}

	select {
	case cmd := <-rx:
		if _, ok := cmd.(GetRelayStatus); !ok {
			t.Errorf("received %T, want GetRelayStatus", cmd)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for command")
	}
}

func TestCommandHandle_SendAfterWorkerStopped(t *testing.T) {
	ch := make(chan Command, 1)
	handle := CommandHandle{ch: ch}

	ctx := context.Background()
	if err := handle.Send(ctx, Shutdown{}); err != nil {
		t.Fatalf("first Send error: %v", err)
	}

	// Simulate the worker's run loop exiting: drain the Shutdown and then
	// close the underlying channel.
	<-ch
	close(ch)

	if err := handle.Send(ctx, Sync{}); err != ErrWorkerStopped {
		t.Errorf("Send after worker stopped = %v, want ErrWorkerStopped", err)
	}
}

func TestCommandHandle_SendContextCanceled(t *testing.T) {
	handle, _ := NewCommandChannel(0) // unbuffered, no reader

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := handle.Send(ctx, Sync{})
	if err != context.Canceled {
		t.Errorf("Send with canceled context = %v, want context.Canceled", err)
	}
}
