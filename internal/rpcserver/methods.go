package rpcserver

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/tenex-chat/tenexd/internal/bus"
	"github.com/tenex-chat/tenexd/internal/projections"
)

// hexID64 matches the 64-char lowercase-hex shape required of skill and
// nudge ids (§6.2, §8 Testable Properties).
var hexID64 = regexp.MustCompile(`^[0-9a-f]{64}$`)

// validateIDs trims, de-duplicates (preserving first occurrence), and
// validates a list of raw JSON values as 64-char lowercase-hex ids,
// rejecting any non-string element or wrong-length id with a typed
// error (§8: duplicates succeed, short/non-hex ids fail).
func validateIDs(field string, raw []json.RawMessage) ([]string, *RPCError) {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		var s string
		if err := json.Unmarshal(r, &s); err != nil {
			return nil, newErr("INVALID_PARAMS", "%s: element is not a string", field)
		}
		s = strings.TrimSpace(s)
		if !hexID64.MatchString(s) {
			return nil, newErr("INVALID_PARAMS", "%s: %q is not a 64-char lowercase-hex id", field, s)
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out, nil
}

type projectSummary struct {
	Slug         string   `json:"slug"`
	Name         string   `json:"name"`
	Booted       bool     `json:"booted"`
	Participants []string `json:"participants,omitempty"`
}

func (s *Server) listProjects() (any, *RPCError) {
	projects := s.data.GetProjects()
	out := make([]projectSummary, 0, len(projects))
	for _, p := range projects {
		_, booted := s.data.GetProjectStatus(p.Coordinate)
		out = append(out, projectSummary{Slug: p.Slug, Name: p.Name, Booted: booted, Participants: p.Participants})
	}
	return out, nil
}

func (s *Server) listThreads(ctx context.Context, params json.RawMessage) (any, *RPCError) {
	var req struct {
		ProjectSlug     string `json:"project_slug"`
		WaitForProject  bool   `json:"wait_for_project"`
	}
	if err := parseParams(params, &req); err != nil {
		return nil, err
	}

	project, err := s.resolveProject(ctx, req.ProjectSlug, req.WaitForProject)
	if err != nil {
		return nil, err
	}
	return s.data.GetThreadsByProject(project.Coordinate), nil
}

func (s *Server) listAgents(ctx context.Context, params json.RawMessage) (any, *RPCError) {
	var req struct {
		ProjectSlug    string `json:"project_slug"`
		WaitForProject bool   `json:"wait_for_project"`
	}
	if err := parseParams(params, &req); err != nil {
		return nil, err
	}

	project, err := s.resolveProject(ctx, req.ProjectSlug, req.WaitForProject)
	if err != nil {
		return nil, err
	}
	status, ok := s.data.GetProjectStatus(project.Coordinate)
	if !ok {
		return []projections.OnlineAgent{}, nil
	}
	return status.Agents, nil
}

func (s *Server) listMessages(params json.RawMessage) (any, *RPCError) {
	var req struct {
		ThreadID string `json:"thread_id"`
	}
	if err := parseParams(params, &req); err != nil {
		return nil, err
	}
	return s.data.GetMessages(req.ThreadID), nil
}

func (s *Server) getState() (any, *RPCError) {
	return s.data.Counts(), nil
}

func (s *Server) sendMessage(ctx context.Context, params json.RawMessage) (any, *RPCError) {
	var req struct {
		ProjectSlug    string            `json:"project_slug"`
		ThreadID       string            `json:"thread_id"`
		RecipientSlug  string            `json:"recipient_slug"`
		Content        string            `json:"content"`
		SkillIDs       []json.RawMessage `json:"skill_ids"`
		NudgeIDs       []json.RawMessage `json:"nudge_ids"`
		WaitForProject bool              `json:"wait_for_project"`
	}
	if err := parseParams(params, &req); err != nil {
		return nil, err
	}

	skillIDs, verr := validateIDs("skill_ids", req.SkillIDs)
	if verr != nil {
		return nil, verr
	}
	nudgeIDs, verr := validateIDs("nudge_ids", req.NudgeIDs)
	if verr != nil {
		return nil, verr
	}

	project, perr := s.resolveProject(ctx, req.ProjectSlug, req.WaitForProject)
	if perr != nil {
		return nil, perr
	}

	recipient, agentErr := s.resolveRecipient(project, req.RecipientSlug)
	if agentErr != nil {
		return nil, agentErr
	}

	replyCh := make(chan bus.PublishResult, 1)
	if err := s.worker.Send(ctx, bus.PublishMessage{
		ThreadID:        req.ThreadID,
		Content:         req.Content,
		RecipientPubkey: recipient,
		SkillIDs:        skillIDs,
		NudgeIDs:        nudgeIDs,
		Reply:           replyCh,
	}); err != nil {
		return nil, newErr("SEND_FAILED", "%v", err)
	}

	result := <-replyCh
	if result.Err != nil {
		return nil, newErr("SEND_FAILED", "%v", result.Err)
	}
	return map[string]string{"event_id": result.EventID}, nil
}

func (s *Server) createThread(ctx context.Context, params json.RawMessage) (any, *RPCError) {
	var req struct {
		ProjectSlug    string            `json:"project_slug"`
		RecipientSlug  string            `json:"recipient_slug"`
		Content        string            `json:"content"`
		SkillIDs       []json.RawMessage `json:"skill_ids"`
		NudgeIDs       []json.RawMessage `json:"nudge_ids"`
		WaitForProject bool              `json:"wait_for_project"`
	}
	if err := parseParams(params, &req); err != nil {
		return nil, err
	}

	skillIDs, verr := validateIDs("skill_ids", req.SkillIDs)
	if verr != nil {
		return nil, verr
	}
	nudgeIDs, verr := validateIDs("nudge_ids", req.NudgeIDs)
	if verr != nil {
		return nil, verr
	}

	project, perr := s.resolveProject(ctx, req.ProjectSlug, req.WaitForProject)
	if perr != nil {
		return nil, perr
	}

	recipient, agentErr := s.resolveRecipient(project, req.RecipientSlug)
	if agentErr != nil {
		return nil, agentErr
	}

	replyCh := make(chan bus.PublishResult, 1)
	if err := s.worker.Send(ctx, bus.PublishThread{
		ProjectATag:     project.Coordinate,
		Title:           firstNRunes(req.Content, 50),
		Content:         req.Content,
		RecipientPubkey: recipient,
		SkillIDs:        skillIDs,
		NudgeIDs:        nudgeIDs,
		Reply:           replyCh,
	}); err != nil {
		return nil, newErr("CREATE_FAILED", "%v", err)
	}

	result := <-replyCh
	if result.Err != nil {
		return nil, newErr("CREATE_FAILED", "%v", result.Err)
	}
	return map[string]string{"thread_id": result.EventID}, nil
}

// firstNRunes returns the first n runes of s, safe for multi-byte
// content (§6.2 create_thread: "Title = first 50 chars of content,
// multi-byte safe").
func firstNRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

func (s *Server) resolveRecipient(project projections.Project, recipientSlug string) (string, *RPCError) {
	if recipientSlug == "" {
		return "", nil
	}
	for _, agentCoord := range project.AgentIDs {
		def, ok := s.data.GetAgentDefinition(agentCoord)
		if ok && def.Slug == recipientSlug {
			return def.Pubkey, nil
		}
	}
	return "", newErr("AGENT_NOT_FOUND", "no agent with slug %q in project %q", recipientSlug, project.Slug)
}

func (s *Server) bootProject(ctx context.Context, params json.RawMessage) (any, *RPCError) {
	var req struct {
		ProjectSlug string `json:"project_slug"`
	}
	if err := parseParams(params, &req); err != nil {
		return nil, err
	}

	project, ok := s.data.FindProjectBySlug(req.ProjectSlug)
	if !ok {
		return nil, newErr("PROJECT_NOT_FOUND", "no project with slug %q", req.ProjectSlug)
	}

	if err := s.worker.Send(ctx, bus.BootProject{ATag: project.Coordinate, OwnerPubkey: project.Owner}); err != nil {
		return nil, newErr("BOOT_FAILED", "%v", err)
	}
	return map[string]bool{"booted": true}, nil
}

func (s *Server) showProject(ctx context.Context, params json.RawMessage) (any, *RPCError) {
	var req struct {
		ProjectSlug    string `json:"project_slug"`
		WaitForProject bool   `json:"wait_for_project"`
	}
	if err := parseParams(params, &req); err != nil {
		return nil, err
	}

	project, perr := s.resolveProject(ctx, req.ProjectSlug, req.WaitForProject)
	if perr != nil {
		return nil, perr
	}
	status, _ := s.data.GetProjectStatus(project.Coordinate)
	return map[string]any{"project": project, "status": status}, nil
}

func (s *Server) listAgentDefinitions() (any, *RPCError) {
	return s.data.GetAgentDefinitions(), nil
}

func (s *Server) listMCPTools() (any, *RPCError) {
	return s.data.GetMCPTools(), nil
}

func (s *Server) listSkills() (any, *RPCError) {
	return s.data.GetSkills(), nil
}

func (s *Server) listNudges() (any, *RPCError) {
	return s.data.GetNudges(), nil
}

func (s *Server) saveProject(ctx context.Context, params json.RawMessage) (any, *RPCError) {
	var req struct {
		Slug        string   `json:"slug"`
		Name        string   `json:"name"`
		Description string   `json:"description"`
		AgentIDs    []string `json:"agent_ids"`
		MCPToolIDs  []string `json:"mcp_tool_ids"`
		Client      string   `json:"client"`
	}
	if err := parseParams(params, &req); err != nil {
		return nil, err
	}
	if req.Name == "" {
		return nil, newErr("INVALID_NAME", "name must not be empty")
	}

	if err := s.worker.Send(ctx, bus.SaveProject{
		Slug:    req.Slug,
		Name:    req.Name,
		Content: req.Description,
		Client:  req.Client,
	}); err != nil {
		return nil, newErr("SAVE_FAILED", "%v", err)
	}
	if len(req.AgentIDs) > 0 && req.Slug != "" {
		if project, ok := s.data.FindProjectBySlug(req.Slug); ok {
			if err := s.worker.Send(ctx, bus.UpdateProjectAgents{Project: project.Coordinate, AgentIDs: req.AgentIDs}); err != nil {
				return nil, newErr("SAVE_FAILED", "%v", err)
			}
		}
	}
	return map[string]bool{"saved": true}, nil
}

func (s *Server) setAgentSettings(ctx context.Context, params json.RawMessage) (any, *RPCError) {
	var req struct {
		ProjectSlug    string   `json:"project_slug"`
		AgentSlug      string   `json:"agent_slug"`
		Model          string   `json:"model"`
		Tools          []string `json:"tools"`
		WaitForProject bool     `json:"wait_for_project"`
		Wait           bool     `json:"wait"`
	}
	if err := parseParams(params, &req); err != nil {
		return nil, err
	}

	project, perr := s.resolveProject(ctx, req.ProjectSlug, req.WaitForProject)
	if perr != nil {
		return nil, perr
	}

	recipient, agentErr := s.resolveRecipient(project, req.AgentSlug)
	if agentErr != nil {
		return nil, agentErr
	}

	requestedAt := nowUnix()
	if err := s.worker.Send(ctx, bus.UpdateAgentConfig{
		Project:     project.Coordinate,
		AgentPubkey: recipient,
		Model:       req.Model,
		Tools:       req.Tools,
	}); err != nil {
		return nil, newErr("SAVE_FAILED", "%v", err)
	}

	if req.Wait {
		if err := s.waitForFreshStatus(ctx, project.Coordinate, requestedAt); err != nil {
			return nil, err
		}
	}
	return map[string]bool{"updated": true}, nil
}

func (s *Server) status() (any, *RPCError) {
	loggedIn := false
	if s.loggedIn != nil {
		loggedIn = s.loggedIn()
	}
	return map[string]any{"status": "running", "logged_in": loggedIn}, nil
}

func (s *Server) shutdown(ctx context.Context) (any, *RPCError) {
	if err := s.worker.Send(ctx, bus.Shutdown{}); err != nil {
		return nil, newErr("SEND_FAILED", "%v", err)
	}

	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()
	if listener != nil {
		_ = listener.Close()
	}
	return map[string]bool{"shutdown": true}, nil
}
