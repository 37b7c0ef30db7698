package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/tenex-chat/tenexd/internal/bus"
)

// streamChunk mirrors the OpenAI chat-completion-chunk shape.
type streamChunk struct {
	ID      string         `json:"id"`
	Object  string         `json:"object"`
	Created int64          `json:"created"`
	Model   string         `json:"model"`
	Choices []streamChoice `json:"choices"`
}

type streamChoice struct {
	Index        int         `json:"index"`
	Delta        streamDelta `json:"delta"`
	FinishReason *string     `json:"finish_reason"`
}

type streamDelta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

const keepaliveInterval = 15 * time.Second

// handleStreamingCompletion drives the SSE response for one
// chat-completions request, translating bus.StreamChunk deltas tagged
// with threadID/agentPubkey into OpenAI-shaped frames until a finish
// chunk arrives or the client disconnects.
func (s *Server) handleStreamingCompletion(w http.ResponseWriter, r *http.Request, threadID, agentPubkey string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.errorResponse(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	resetDeadline := func() {
		_ = rc.SetWriteDeadline(time.Now().Add(120 * time.Second))
	}
	resetDeadline()

	completionID := fmt.Sprintf("chatcmpl-%s", threadID)

	writeChunk := func(delta streamDelta, finish *string) bool {
		chunk := streamChunk{
			ID:      completionID,
			Object:  "chat.completion.chunk",
			Created: time.Now().Unix(),
			Model:   "tenex",
			Choices: []streamChoice{{Index: 0, Delta: delta, FinishReason: finish}},
		}
		if !s.writeSSE(w, chunk) {
			return false
		}
		flusher.Flush()
		resetDeadline()
		return true
	}

	if !writeChunk(streamDelta{Role: "assistant"}, nil) {
		return
	}

	ctx := r.Context()
	var sub <-chan bus.Delta
	if s.dataBus != nil {
		sub = s.dataBus.Subscribe(64)
		defer s.dataBus.Unsubscribe(sub)
	}

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-keepalive.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
			resetDeadline()
		case d, ok := <-sub:
			if !ok {
				return
			}
			chunk, isChunk := d.(bus.StreamChunk)
			if !isChunk || chunk.ThreadID != threadID || chunk.AgentPubkey != agentPubkey {
				continue
			}
			if chunk.TextDelta != "" {
				if !writeChunk(streamDelta{Content: chunk.TextDelta}, nil) {
					return
				}
			}
			if chunk.IsFinish {
				stop := "stop"
				writeChunk(streamDelta{}, &stop)
				fmt.Fprint(w, "data: [DONE]\n\n")
				flusher.Flush()
				return
			}
		}
	}
}

func (s *Server) writeSSE(w http.ResponseWriter, chunk streamChunk) bool {
	data, err := json.Marshal(chunk)
	if err != nil {
		s.logger.Error("httpapi: failed to marshal SSE chunk", "error", err)
		return false
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return false
	}
	return true
}
