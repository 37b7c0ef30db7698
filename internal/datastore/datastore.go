// Package datastore is the in-memory, indexed Application Data Store
// (§4.3): the set of maps and reverse indexes that turn a flat event log
// into the queryable projections every front end reads, plus the delta
// emission that tells subscribers what just changed.
package datastore

import (
	"sort"
	"sync"

	"github.com/nbd-wtf/go-nostr"

	"github.com/tenex-chat/tenexd/internal/bus"
	"github.com/tenex-chat/tenexd/internal/nostrtypes"
	"github.com/tenex-chat/tenexd/internal/preferences"
	"github.com/tenex-chat/tenexd/internal/projections"
)

// Store is the exclusive-writer / shared-reader in-memory projection
// store described in §4.3 and §5. Projections hold values, not
// references, so the event store backing this view can be compacted
// independently (§3 Ownership).
type Store struct {
	mu sync.RWMutex

	projects map[string]projections.Project // keyed by a-coordinate

	threads          map[string]projections.Thread // keyed by thread id
	threadsByProject map[string][]string           // project coord -> thread ids, ordered by effective_last_activity desc

	messagesByThread map[string][]projections.Message // thread id -> chronological messages
	repliesByParent  map[string][]string               // message id -> child message ids

	// hierarchy tracks delegation parent/child edges between threads.
	childrenOf map[string][]string // parent thread id -> child thread ids
	parentOf   map[string]string   // child thread id -> parent thread id

	agentDefinitions map[string]projections.AgentDefinition // a-coordinate
	skills           map[string]projections.Skill           // event id
	nudges           map[string]projections.Nudge           // event id
	reports          map[string]projections.Report          // a-coordinate
	teamPacks        map[string]projections.TeamPack        // a-coordinate
	mcpTools         map[string]MCPTool                     // a-coordinate (no dedicated kind; see MCPTool doc)

	profiles map[string]string // pubkey -> display name

	projectStatus map[string]projections.ProjectStatus // project a-coordinate -> snapshot

	busyEvents         map[string]struct{}
	workingAgentsByEvt map[string]map[string]struct{}

	bus   *bus.DataBus
	prefs *preferences.Store // may be nil: read/archive/collapse/trust state then lives in memory only
}

// MCPTool is the materialized view of an MCP tool reference. The corpus
// retrieved for this spec names the entity (§3 data model table: command,
// parameters, capabilities, server url) but carries no dedicated kind
// number or original_source parser for it — projects reference tool ids
// via their "mcp" tag, but nothing in the retrieved sources defines the
// event that materializes one. MCPTool therefore stays an id-only
// reference container, populated by RegisterMCPTool for front ends that
// obtain the metadata out of band, rather than via HandleEvent.
type MCPTool struct {
	Coordinate   string
	Command      string
	Parameters   string
	Capabilities []string
	ServerURL    string
}

// New creates an empty Application Data Store. b and prefs may both be
// nil (tests, tools that don't need delta fan-out or persisted
// preferences); DataBus.Publish is nil-safe and a nil prefs simply keeps
// read/archive/collapse/trust state in memory only for the process
// lifetime.
func New(b *bus.DataBus, prefs *preferences.Store) *Store {
	return &Store{
		projects:           make(map[string]projections.Project),
		threads:            make(map[string]projections.Thread),
		threadsByProject:   make(map[string][]string),
		messagesByThread:   make(map[string][]projections.Message),
		repliesByParent:    make(map[string][]string),
		childrenOf:         make(map[string][]string),
		parentOf:           make(map[string]string),
		agentDefinitions:   make(map[string]projections.AgentDefinition),
		skills:             make(map[string]projections.Skill),
		nudges:             make(map[string]projections.Nudge),
		reports:            make(map[string]projections.Report),
		teamPacks:          make(map[string]projections.TeamPack),
		mcpTools:           make(map[string]MCPTool),
		profiles:           make(map[string]string),
		projectStatus:      make(map[string]projections.ProjectStatus),
		busyEvents:         make(map[string]struct{}),
		workingAgentsByEvt: make(map[string]map[string]struct{}),
		bus:                b,
		prefs:              prefs,
	}
}

// RegisterMCPTool installs or replaces an MCP tool's out-of-band metadata.
func (s *Store) RegisterMCPTool(t MCPTool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mcpTools[t.Coordinate] = t
}

func (s *Store) resortThreadsByProject(projectCoord string) {
	ids := s.threadsByProject[projectCoord]
	sort.SliceStable(ids, func(i, j int) bool {
		return s.threads[ids[i]].EffectiveLastActivity > s.threads[ids[j]].EffectiveLastActivity
	})
}

func (s *Store) publish(d bus.Delta) {
	if s.bus != nil {
		s.bus.Publish(d)
	}
}

// coordinateOf is a convenience for building the "kind:pubkey:d" form
// used by every a-coordinate keyed map.
func coordinateOf(kind int, pubkey, dTag string) string {
	return nostrtypes.Coordinate{Kind: kind, Pubkey: pubkey, DTag: dTag}.String()
}
