package projections

import (
	"github.com/nbd-wtf/go-nostr"

	"github.com/tenex-chat/tenexd/internal/nostrtypes"
)

// ProjectFromEvent parses a kind-31933 event into a Project. The d-tag is
// required (it is the slug half of the project's a-coordinate); everything
// else defaults.
func ProjectFromEvent(ev *nostr.Event) (Project, bool) {
	if ev.Kind != nostrtypes.KindProject {
		return Project{}, false
	}

	slug, ok := nostrtypes.FirstTagValue(ev.Tags, "d")
	if !ok || slug == "" {
		return Project{}, false
	}

	coord := nostrtypes.Coordinate{Kind: nostrtypes.KindProject, Pubkey: ev.PubKey, DTag: slug}

	return Project{
		Coordinate:   coord.String(),
		Slug:         slug,
		Name:         nostrtypes.TagValueOrDefault(ev.Tags, "name", slug),
		Owner:        ev.PubKey,
		AgentIDs:     nostrtypes.AllTagValues(ev.Tags, "agent"),
		MCPToolIDs:   nostrtypes.AllTagValues(ev.Tags, "mcp"),
		Participants: nostrtypes.AllTagValues(ev.Tags, "p"),
		Description:  ev.Content,
		CreatedAt:    int64(ev.CreatedAt),
		EventID:      ev.ID,
	}, true
}
