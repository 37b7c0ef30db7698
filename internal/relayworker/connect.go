package relayworker

import (
	"context"

	"github.com/nbd-wtf/go-nostr"

	"github.com/tenex-chat/tenexd/internal/bus"
	"github.com/tenex-chat/tenexd/internal/publish"
)

func (w *Worker) handleConnect(ctx context.Context, c bus.Connect) {
	pubkey, err := nostr.GetPublicKey(c.PrivateKeyHex)
	if err != nil {
		reply(c.Reply, bus.ConnectResult{Err: err})
		return
	}

	connectCtx, cancel := context.WithTimeout(ctx, w.cfg.ConnectTimeout)
	defer cancel()

	w.pool = nostr.NewSimplePool(ctx)
	w.privateKey = c.PrivateKeyHex
	w.pubkey = pubkey
	w.publisher = publish.New(w.privateKey, w.pubkey, "tenexd", w.store, &poolTransmitter{relayURLs: w.relayURLs()}, w.cfg.SendTimeout)

	connected := 0
	for _, url := range w.relayURLs() {
		if relay, err := nostr.RelayConnect(connectCtx, url); err == nil {
			w.mu.Lock()
			w.connectedRelays[url] = struct{}{}
			w.mu.Unlock()
			connected++
			_ = relay
		} else {
			w.logger.Warn("relay connect failed", "relay", url, "error", err)
		}
	}

	subCtx, cancelSubs := context.WithCancel(context.Background())
	w.mu.Lock()
	w.connCtx = subCtx
	w.cancelSubs = cancelSubs
	w.mu.Unlock()
	w.installStandingSubscriptions(subCtx, c.UserPubkey)

	var connErr error
	if connected == 0 {
		connErr = errNoRelaysReachable
	}
	reply(c.Reply, bus.ConnectResult{Err: connErr})
}

func (w *Worker) handleDisconnect(c bus.Disconnect) {
	w.teardown()
	if w.pool != nil {
		w.pool.Close("worker disconnected")
	}
	w.mu.Lock()
	w.connectedRelays = make(map[string]struct{})
	w.subscribedProjects = make(map[string]struct{})
	w.connCtx = nil
	w.mu.Unlock()
	reply(c.Reply, struct{}{})
}

func (w *Worker) handleGetRelayStatus(c bus.GetRelayStatus) {
	w.mu.Lock()
	connected := len(w.connectedRelays)
	w.mu.Unlock()
	reply(c.Reply, bus.RelayStatusResult{Connected: connected, Total: len(w.relayURLs())})
}

// reply sends val to an optional reply channel; a nil channel means the
// caller isn't waiting for an acknowledgement. GetRelayStatus is the one
// command whose callers are required to supply Reply (§4.4); every other
// command treats it as optional.
func reply[T any](ch chan<- T, val T) {
	if ch != nil {
		ch <- val
	}
}
