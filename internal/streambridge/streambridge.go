// Package streambridge ingests token-level LLM streaming chunks from a
// local Unix socket and republishes them on the data bus. Agent runners
// speak generation inline with the model, outside the Nostr relay
// connection entirely; this socket is the side channel they use to
// forward deltas into the daemon so the HTTP chat-completions route
// (internal/httpapi) can relay them onward as SSE frames (§3.3, §6.3).
//
// Wire format mirrors rpcserver's: one JSON object per line, no framing
// beyond the newline. Unlike rpcserver there is no request/response
// correlation — a chunk is fire-and-forget from the runner's point of
// view, so a malformed line is logged and skipped rather than answered
// with an error.
package streambridge

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"os"

	"github.com/tenex-chat/tenexd/internal/bus"
)

// chunkMessage is the wire shape a local agent runner sends, one per
// line, for each token-level delta it produces.
type chunkMessage struct {
	ThreadID       string `json:"thread_id"`
	AgentPubkey    string `json:"agent_pubkey"`
	TextDelta      string `json:"text_delta,omitempty"`
	ReasoningDelta string `json:"reasoning_delta,omitempty"`
	IsFinish       bool   `json:"is_finish,omitempty"`
}

// Bridge listens on a Unix socket for chunkMessage lines and forwards
// each as a bus.StreamChunk delta.
type Bridge struct {
	socketPath string
	publish    func(bus.StreamChunk)
	logger     *slog.Logger

	listener *net.UnixListener
}

// New creates a stream bridge that calls publish for every well-formed
// chunk it reads.
func New(socketPath string, publish func(bus.StreamChunk), logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{socketPath: socketPath, publish: publish, logger: logger}
}

// Serve listens until ctx is canceled. It removes any stale socket file
// left by a previous unclean shutdown before binding.
func (b *Bridge) Serve(ctx context.Context) error {
	_ = os.Remove(b.socketPath)

	addr, err := net.ResolveUnixAddr("unix", b.socketPath)
	if err != nil {
		return err
	}
	listener, err := net.ListenUnix("unix", addr)
	if err != nil {
		return err
	}
	b.listener = listener

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	b.logger.Info("stream bridge listening", "socket", b.socketPath)
	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			var netErr *net.OpError
			if errors.As(err, &netErr) {
				return nil
			}
			return err
		}
		go b.handleConn(conn)
	}
}

func (b *Bridge) handleConn(conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var msg chunkMessage
		if err := json.Unmarshal(line, &msg); err != nil {
			b.logger.Warn("stream bridge: malformed chunk line", "error", err)
			continue
		}
		if msg.ThreadID == "" || msg.AgentPubkey == "" {
			b.logger.Warn("stream bridge: chunk missing thread_id or agent_pubkey")
			continue
		}
		b.publish(bus.StreamChunk{
			ThreadID:       msg.ThreadID,
			AgentPubkey:    msg.AgentPubkey,
			TextDelta:      msg.TextDelta,
			ReasoningDelta: msg.ReasoningDelta,
			IsFinish:       msg.IsFinish,
		})
	}
}
