// Package rpcserver implements the JSON-RPC-over-Unix-socket control
// surface (§6.2): newline-delimited JSON request/response pairs, one
// goroutine per connection, every method the core exposes to CLI and
// shell front ends.
//
// The newline-delimited-JSON-over-a-long-lived-connection shape and the
// one-goroutine-per-connection accept loop are grounded on the teacher's
// internal/api/server.go HTTP server lifecycle (Start/Shutdown,
// context-scoped listener), generalized from HTTP to a raw Unix socket
// since the control protocol here is not HTTP.
package rpcserver

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/tenex-chat/tenexd/internal/bus"
	"github.com/tenex-chat/tenexd/internal/datastore"
)

// Request is one line of the control protocol.
type Request struct {
	ID     uint64          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// RPCError is the typed error shape carried in a failed Response.
type RPCError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }

func newErr(code, format string, args ...any) *RPCError {
	return &RPCError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Response is one line of the control protocol's reply.
type Response struct {
	ID     uint64    `json:"id"`
	OK     bool      `json:"ok"`
	Result any       `json:"result,omitempty"`
	Error  *RPCError `json:"error,omitempty"`
}

// waitForProjectTimeout bounds how long list_threads/list_agents/
// show_project/set_agent_settings block for a project status to appear
// when wait_for_project (or set_agent_settings' wait) is set (§6.2).
const waitForProjectTimeout = 30 * time.Second

// Server is the JSON-RPC control surface. It reads exclusively from the
// Application Data Store and the relay worker's command handle; it never
// touches the event store directly.
type Server struct {
	socketPath string
	data       *datastore.Store
	worker     bus.CommandHandle
	dataBus    *bus.DataBus
	logger     *slog.Logger
	loggedIn   func() bool

	mu       sync.Mutex
	listener *net.UnixListener
}

// New creates a control-surface server bound to socketPath. loggedIn
// reports whether a relay session is currently active, for the `status`
// method.
func New(socketPath string, data *datastore.Store, worker bus.CommandHandle, dataBus *bus.DataBus, loggedIn func() bool, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{socketPath: socketPath, data: data, worker: worker, dataBus: dataBus, loggedIn: loggedIn, logger: logger}
}

// Serve listens on the configured Unix socket and accepts connections
// until ctx is cancelled. It removes a stale socket file left behind by
// an unclean prior shutdown before binding.
func (s *Server) Serve(ctx context.Context) error {
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("rpcserver: remove stale socket: %w", err)
	}

	addr, err := net.ResolveUnixAddr("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("rpcserver: resolve socket address: %w", err)
	}
	listener, err := net.ListenUnix("unix", addr)
	if err != nil {
		return fmt.Errorf("rpcserver: listen on %s: %w", s.socketPath, err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return fmt.Errorf("rpcserver: accept: %w", err)
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	enc := json.NewEncoder(conn)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			_ = enc.Encode(Response{OK: false, Error: newErr("PARSE_ERROR", "malformed request: %v", err)})
			continue
		}

		resp := s.dispatch(ctx, req)
		if err := enc.Encode(resp); err != nil {
			s.logger.Warn("rpcserver: write response failed", "error", err)
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context, req Request) Response {
	result, rpcErr := s.call(ctx, req.Method, req.Params)
	if rpcErr != nil {
		return Response{ID: req.ID, OK: false, Error: rpcErr}
	}
	return Response{ID: req.ID, OK: true, Result: result}
}

func (s *Server) call(ctx context.Context, method string, params json.RawMessage) (any, *RPCError) {
	switch method {
	case "list_projects":
		return s.listProjects()
	case "list_threads":
		return s.listThreads(ctx, params)
	case "list_agents":
		return s.listAgents(ctx, params)
	case "list_messages":
		return s.listMessages(params)
	case "get_state":
		return s.getState()
	case "send_message":
		return s.sendMessage(ctx, params)
	case "create_thread":
		return s.createThread(ctx, params)
	case "boot_project":
		return s.bootProject(ctx, params)
	case "show_project":
		return s.showProject(ctx, params)
	case "list_agent_definitions":
		return s.listAgentDefinitions()
	case "list_mcp_tools":
		return s.listMCPTools()
	case "list_skills":
		return s.listSkills()
	case "list_nudges":
		return s.listNudges()
	case "save_project":
		return s.saveProject(ctx, params)
	case "set_agent_settings":
		return s.setAgentSettings(ctx, params)
	case "status":
		return s.status()
	case "shutdown":
		return s.shutdown(ctx)
	default:
		return nil, newErr("UNKNOWN_METHOD", "unknown method %q", method)
	}
}

func parseParams(raw json.RawMessage, v any) *RPCError {
	if len(raw) == 0 {
		return newErr("INVALID_PARAMS", "missing params")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return newErr("INVALID_PARAMS", "malformed params: %v", err)
	}
	return nil
}
