package datastore

import (
	"github.com/nbd-wtf/go-nostr"

	"github.com/tenex-chat/tenexd/internal/bus"
	"github.com/tenex-chat/tenexd/internal/nostrtypes"
	"github.com/tenex-chat/tenexd/internal/projections"
)

// replaceableCreatedAt and replaceableID track, per a-coordinate, the
// created_at/id of the version currently stored, so a late-arriving older
// event (relays deliver no ordering guarantee) never overwrites a newer
// one. Latest-wins, tie-broken by lexicographic event id (§3 invariant:
// Replaceable latest-wins).
type replaceableVersion struct {
	createdAt int64
	id        string
}

func wins(candidate replaceableVersion, current replaceableVersion, haveCurrent bool) bool {
	if !haveCurrent {
		return true
	}
	if candidate.createdAt != current.createdAt {
		return candidate.createdAt > current.createdAt
	}
	return candidate.id > current.id
}

// HandleEvent dispatches a persisted (non-ephemeral) note to the correct
// projection and updates the relevant maps/indexes atomically, then
// publishes the deltas produced on the data bus and returns them.
// Idempotent for replaceable kinds (latest-wins), append-only for
// non-replaceable kinds (§4.3).
func (s *Store) HandleEvent(kind int, ev nostr.Event) []bus.Delta {
	s.mu.Lock()
	deltas := s.handleEventLocked(kind, ev)
	s.mu.Unlock()
	for _, d := range deltas {
		s.publish(d)
	}
	return deltas
}

func (s *Store) handleEventLocked(kind int, ev nostr.Event) []bus.Delta {
	switch kind {
	case nostrtypes.KindProject:
		return s.applyProject(ev)
	case 1:
		return s.applyKind1(ev)
	case nostrtypes.KindAgentDefinition:
		return s.applyAgentDefinition(ev)
	case nostrtypes.KindSkill:
		return s.applySkill(ev)
	case nostrtypes.KindNudge:
		return s.applyNudge(ev)
	case nostrtypes.KindTeamPack:
		return s.applyTeamPack(ev)
	case nostrtypes.KindReport:
		return s.applyReport(ev)
	case nostrtypes.KindProfile:
		return s.applyProfile(ev)
	default:
		return nil
	}
}

func (s *Store) applyProject(ev nostr.Event) []bus.Delta {
	proj, ok := projections.ProjectFromEvent(&ev)
	if !ok {
		return nil
	}
	if existing, had := s.projects[proj.Coordinate]; had {
		cur := replaceableVersion{createdAt: existing.CreatedAt, id: existing.EventID}
		cand := replaceableVersion{createdAt: proj.CreatedAt, id: proj.EventID}
		if !wins(cand, cur, true) {
			return nil
		}
	}
	s.projects[proj.Coordinate] = proj
	if _, ok := s.threadsByProject[proj.Coordinate]; !ok {
		s.threadsByProject[proj.Coordinate] = nil
	}
	return []bus.Delta{bus.ProjectAdded{ATag: proj.Coordinate}}
}

func (s *Store) applyKind1(ev nostr.Event) []bus.Delta {
	class, ok := projections.ClassifyKind1(&ev)
	if !ok {
		return nil
	}
	switch class {
	case projections.Kind1Thread:
		return s.applyThread(ev)
	case projections.Kind1Message:
		return s.applyMessage(ev)
	default:
		return nil
	}
}

func (s *Store) applyThread(ev nostr.Event) []bus.Delta {
	thread, ok := projections.ThreadFromEvent(&ev)
	if !ok {
		return nil
	}
	// Thread roots are append-only (keyed by event id, not an
	// a-coordinate); re-ingesting the same id is a no-op.
	if _, exists := s.threads[thread.ID]; exists {
		return nil
	}

	s.threads[thread.ID] = thread
	s.threadsByProject[thread.ProjectCoordinate] = append(s.threadsByProject[thread.ProjectCoordinate], thread.ID)
	s.resortThreadsByProject(thread.ProjectCoordinate)

	var deltas []bus.Delta
	if thread.ParentConversationID != "" {
		deltas = append(deltas, s.setParent(thread.ID, thread.ParentConversationID)...)
	}
	deltas = append(deltas, bus.ThreadActivityUpdated{ATag: thread.ProjectCoordinate, ThreadID: thread.ID})
	return deltas
}

// setParent records a delegation edge, refusing to form a cycle (§9
// Design Note: "a defensive implementation should detect and refuse to
// form a cycle"). It also seeds the new child's effective activity into
// its ancestors.
func (s *Store) setParent(childID, parentID string) []bus.Delta {
	if childID == parentID {
		return nil
	}
	// Walk the proposed ancestor chain; if childID appears in it, this
	// edge would create a cycle.
	for cursor := parentID; cursor != ""; cursor = s.parentOf[cursor] {
		if cursor == childID {
			return nil
		}
	}

	s.parentOf[childID] = parentID
	s.childrenOf[parentID] = append(s.childrenOf[parentID], childID)

	return s.propagateEffectiveActivity(childID)
}

// propagateEffectiveActivity walks from threadID up through the
// hierarchy, raising each ancestor's effective_last_activity to the
// maximum of its current value and the source thread's, halting as soon
// as an ancestor's value does not change (§4.3, §3 invariant: Effective
// activity monotonicity).
func (s *Store) propagateEffectiveActivity(threadID string) []bus.Delta {
	var deltas []bus.Delta

	source, ok := s.threads[threadID]
	if !ok {
		return nil
	}
	value := source.EffectiveLastActivity

	cursor := s.parentOf[threadID]
	for cursor != "" {
		parent, ok := s.threads[cursor]
		if !ok {
			break
		}
		if parent.EffectiveLastActivity >= value {
			break
		}
		parent.EffectiveLastActivity = value
		s.threads[cursor] = parent
		s.resortThreadsByProject(parent.ProjectCoordinate)
		deltas = append(deltas, bus.ThreadActivityUpdated{ATag: parent.ProjectCoordinate, ThreadID: cursor})
		cursor = s.parentOf[cursor]
	}

	return deltas
}

func (s *Store) applyMessage(ev nostr.Event) []bus.Delta {
	msg, ok := projections.MessageFromEvent(&ev)
	if !ok {
		return nil
	}

	for _, existing := range s.messagesByThread[msg.ThreadID] {
		if existing.ID == msg.ID {
			return nil // append-only: already recorded
		}
	}

	s.messagesByThread[msg.ThreadID] = append(s.messagesByThread[msg.ThreadID], msg)
	if msg.ReplyTo != "" {
		s.repliesByParent[msg.ReplyTo] = append(s.repliesByParent[msg.ReplyTo], msg.ID)
	}

	var deltas []bus.Delta
	deltas = append(deltas, bus.MessageAppended{ThreadID: msg.ThreadID})

	if thread, ok := s.threads[msg.ThreadID]; ok {
		if msg.CreatedAt > thread.LastActivity {
			thread.LastActivity = msg.CreatedAt
		}
		if msg.CreatedAt > thread.EffectiveLastActivity {
			thread.EffectiveLastActivity = msg.CreatedAt
			s.threads[msg.ThreadID] = thread
			s.resortThreadsByProject(thread.ProjectCoordinate)
			deltas = append(deltas, bus.ThreadActivityUpdated{ATag: thread.ProjectCoordinate, ThreadID: msg.ThreadID})
			deltas = append(deltas, s.propagateEffectiveActivity(msg.ThreadID)...)
		} else {
			s.threads[msg.ThreadID] = thread
		}
	}

	deltas = append(deltas, bus.InboxChanged{})
	return deltas
}

func (s *Store) applyAgentDefinition(ev nostr.Event) []bus.Delta {
	agent, ok := projections.AgentDefinitionFromEvent(&ev)
	if !ok {
		return nil
	}
	if existing, had := s.agentDefinitions[agent.Coordinate]; had {
		cur := replaceableVersion{createdAt: existing.CreatedAt, id: existing.EventID}
		cand := replaceableVersion{createdAt: agent.CreatedAt, id: agent.EventID}
		if !wins(cand, cur, true) {
			return nil
		}
	}
	s.agentDefinitions[agent.Coordinate] = agent
	return nil
}

func (s *Store) applySkill(ev nostr.Event) []bus.Delta {
	skill, ok := projections.SkillFromEvent(&ev)
	if !ok {
		return nil
	}
	if _, exists := s.skills[skill.EventID]; exists {
		return nil
	}
	s.skills[skill.EventID] = skill
	return nil
}

func (s *Store) applyNudge(ev nostr.Event) []bus.Delta {
	nudge, ok := projections.NudgeFromEvent(&ev)
	if !ok {
		return nil
	}
	if _, exists := s.nudges[nudge.EventID]; exists {
		return nil
	}
	s.nudges[nudge.EventID] = nudge
	return nil
}

func (s *Store) applyTeamPack(ev nostr.Event) []bus.Delta {
	pack, ok := projections.TeamPackFromEvent(&ev)
	if !ok {
		return nil
	}
	if existing, had := s.teamPacks[pack.Coordinate]; had {
		cur := replaceableVersion{createdAt: existing.CreatedAt, id: existing.EventID}
		cand := replaceableVersion{createdAt: pack.CreatedAt, id: pack.EventID}
		if !wins(cand, cur, true) {
			return nil
		}
	}
	s.teamPacks[pack.Coordinate] = pack
	return nil
}

func (s *Store) applyReport(ev nostr.Event) []bus.Delta {
	report, ok := projections.ReportFromEvent(&ev)
	if !ok {
		return nil
	}
	if existing, had := s.reports[report.Coordinate]; had {
		cur := replaceableVersion{createdAt: existing.CreatedAt, id: existing.EventID}
		cand := replaceableVersion{createdAt: report.CreatedAt, id: report.EventID}
		if !wins(cand, cur, true) {
			return nil
		}
	}
	s.reports[report.Coordinate] = report
	return nil
}

func (s *Store) applyProfile(ev nostr.Event) []bus.Delta {
	profile, ok := projections.ProfileFromEvent(&ev)
	if !ok {
		return nil
	}
	// Profiles are keyed by pubkey directly: one cached display name per
	// author. The profile applied last replaces the cached name; created_at
	// is not compared, so an older kind-0 event applied after a newer one
	// overwrites it.
	s.profiles[profile.Pubkey] = profile.DisplayName
	return nil
}

// HandleStatusEventJSON parses an ephemeral status document and replaces
// the project_status entry for aTag (§4.3), publishing ProjectStatusUpdated
// on the data bus when the entry changes. Status events never enter the
// durable store; callers must apply the ephemeral filter before this.
func (s *Store) HandleStatusEventJSON(aTag string, createdAt int64, raw []byte) ([]bus.Delta, error) {
	status, err := projections.ProjectStatusFromJSON(aTag, createdAt, raw)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, had := s.projectStatus[aTag]; had && existing.CreatedAt > status.CreatedAt {
		return nil, nil
	}
	s.projectStatus[aTag] = status
	delta := bus.ProjectStatusUpdated{ATag: aTag}
	s.publish(delta)
	return []bus.Delta{delta}, nil
}
