// Package httpapi implements the OpenAI-compatible chat-completions
// route (§6.3): a single endpoint that publishes an incoming message and
// streams back server-sent events translated from the data bus.
//
// Route registration, the streaming SSE handler (header set,
// http.Flusher, http.NewResponseController write-deadline reset), and
// writeSSE/errorResponse are adapted from the teacher's
// internal/api/server.go handleStreamingCompletion; the chunk source
// differs from the teacher's in-process agent-loop callback: here frames
// are translated from DataBus deltas carrying streaming chunks tagged
// with the thread id and PM agent pubkey, since generation itself
// happens out-of-process on the Nostr network rather than inside this
// server.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tenex-chat/tenexd/internal/bus"
	"github.com/tenex-chat/tenexd/internal/datastore"
)

// Server is the OpenAI-compatible HTTP+SSE control surface.
type Server struct {
	address string
	port    int
	data    *datastore.Store
	worker  bus.CommandHandle
	dataBus *bus.DataBus
	logger  *slog.Logger

	server *http.Server
}

// New creates an httpapi.Server bound to the given address/port.
func New(address string, port int, data *datastore.Store, worker bus.CommandHandle, dataBus *bus.DataBus, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{address: address, port: port, data: data, worker: worker, dataBus: dataBus, logger: logger}
}

// Start begins serving HTTP requests. It blocks until the server stops
// (ListenAndServe's own contract); callers run it in its own goroutine
// and join with Shutdown.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /{project_dtag}/chat/completions", s.withCORS(s.handleChatCompletions))

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.address, s.port),
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second, // long for streaming responses
	}

	addr := s.address
	if addr == "" {
		addr = "0.0.0.0"
	}
	s.logger.Info("starting http api", "address", addr, "port", s.port)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// withCORS applies the permissive CORS policy required by §6.3.
func (s *Server) withCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next(w, r)
	}
}

func (s *Server) errorResponse(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	fmt.Fprintln(w, message)
}

// chatCompletionRequest is the subset of the OpenAI chat-completions
// body this endpoint reads.
type chatCompletionRequest struct {
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func lastUserMessage(req chatCompletionRequest) (string, bool) {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" && strings.TrimSpace(req.Messages[i].Content) != "" {
			return req.Messages[i].Content, true
		}
	}
	return "", false
}

func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	projectDTag := r.PathValue("project_dtag")

	var body chatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "malformed request body")
		return
	}
	content, ok := lastUserMessage(body)
	if !ok {
		s.errorResponse(w, http.StatusBadRequest, "no user message in request")
		return
	}

	project, ok := s.data.FindProjectBySlug(projectDTag)
	if !ok {
		s.errorResponse(w, http.StatusNotFound, fmt.Sprintf("unknown project %q", projectDTag))
		return
	}

	pm, ok := s.data.PMAgent(project.Coordinate)
	if !ok {
		s.errorResponse(w, http.StatusNotFound, fmt.Sprintf("project %q has no PM agent online", projectDTag))
		return
	}

	statusCh := make(chan bus.RelayStatusResult, 1)
	if err := s.worker.Send(r.Context(), bus.GetRelayStatus{Reply: statusCh}); err != nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "relay worker unavailable")
		return
	}
	if status := <-statusCh; status.Connected == 0 {
		s.errorResponse(w, http.StatusServiceUnavailable, "no relays currently connected")
		return
	}

	threadID := uuid.NewString()
	replyCh := make(chan bus.PublishResult, 1)
	if err := s.worker.Send(r.Context(), bus.PublishThread{
		ProjectATag:     project.Coordinate,
		Title:           firstLine(content),
		Content:         content,
		RecipientPubkey: pm.Pubkey,
		Reply:           replyCh,
	}); err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "failed to publish message")
		return
	}
	result := <-replyCh
	if result.Err != nil {
		s.errorResponse(w, http.StatusInternalServerError, fmt.Sprintf("publish failed: %v", result.Err))
		return
	}
	threadID = result.EventID

	s.handleStreamingCompletion(w, r, threadID, pm.Pubkey)
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
