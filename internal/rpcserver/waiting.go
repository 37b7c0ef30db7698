package rpcserver

import (
	"context"
	"time"

	"github.com/tenex-chat/tenexd/internal/bus"
	"github.com/tenex-chat/tenexd/internal/projections"
)

// resolveProject looks up a project by slug, optionally blocking up to
// waitForProjectTimeout for its status snapshot to appear on the
// DataBus when wait is true (§6.2's wait_for_project flag, used by
// list_threads, list_agents, show_project, and set_agent_settings).
func (s *Server) resolveProject(ctx context.Context, slug string, wait bool) (projections.Project, *RPCError) {
	project, ok := s.data.FindProjectBySlug(slug)
	if !ok {
		return projections.Project{}, newErr("PROJECT_NOT_FOUND", "no project with slug %q", slug)
	}

	if !wait {
		return project, nil
	}

	if _, ok := s.data.GetProjectStatus(project.Coordinate); ok {
		return project, nil
	}

	if err := s.waitForProjectStatus(ctx, project.Coordinate); err != nil {
		return project, err
	}
	return project, nil
}

// waitForProjectStatus blocks until a ProjectStatusUpdated delta for
// coord is observed, or waitForProjectTimeout elapses.
func (s *Server) waitForProjectStatus(ctx context.Context, coord string) *RPCError {
	if s.dataBus == nil {
		return newErr("TIMEOUT", "no project status available for %q", coord)
	}

	ch := s.dataBus.Subscribe(32)
	defer s.dataBus.Unsubscribe(ch)

	waitCtx, cancel := context.WithTimeout(ctx, waitForProjectTimeout)
	defer cancel()

	// A status may have landed between the first check and the
	// subscribe call; re-check once more before blocking.
	if _, ok := s.data.GetProjectStatus(coord); ok {
		return nil
	}

	for {
		select {
		case d, ok := <-ch:
			if !ok {
				return newErr("TIMEOUT", "no project status available for %q", coord)
			}
			if upd, isStatus := d.(bus.ProjectStatusUpdated); isStatus && upd.ATag == coord {
				return nil
			}
		case <-waitCtx.Done():
			return newErr("TIMEOUT", "timed out waiting for project status for %q", coord)
		}
	}
}

// waitForFreshStatus blocks until a ProjectStatusUpdated newer than
// afterUnix is observed for coord, used by set_agent_settings' `wait`
// flag to confirm the backend picked up a config change.
func (s *Server) waitForFreshStatus(ctx context.Context, coord string, afterUnix int64) *RPCError {
	if s.dataBus == nil {
		return newErr("TIMEOUT", "no project status available for %q", coord)
	}

	ch := s.dataBus.Subscribe(32)
	defer s.dataBus.Unsubscribe(ch)

	waitCtx, cancel := context.WithTimeout(ctx, waitForProjectTimeout)
	defer cancel()

	for {
		select {
		case d, ok := <-ch:
			if !ok {
				return newErr("TIMEOUT", "no fresh project status for %q", coord)
			}
			upd, isStatus := d.(bus.ProjectStatusUpdated)
			if !isStatus || upd.ATag != coord {
				continue
			}
			status, found := s.data.GetProjectStatus(coord)
			if found && status.CreatedAt >= afterUnix {
				return nil
			}
		case <-waitCtx.Done():
			return newErr("TIMEOUT", "timed out waiting for fresh project status for %q", coord)
		}
	}
}

// nowUnix exists so tests can stub the clock; production code always
// uses the wall clock.
var nowUnix = func() int64 { return time.Now().Unix() }
