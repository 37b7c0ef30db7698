package projections

import (
	"github.com/nbd-wtf/go-nostr"

	"github.com/tenex-chat/tenexd/internal/nostrtypes"
)

const (
	DefaultAgentName = "Agent"
	DefaultAgentRole = "Assistant"
)

// AgentDefinitionFromEvent parses a kind-4199 event. "ver" and "version"
// both carry a version string for backward compatibility; "ver" wins
// whichever order the tags appear in (Open Question in spec §9, resolved:
// ver always takes priority, no rewrite-on-resave).
func AgentDefinitionFromEvent(ev *nostr.Event) (AgentDefinition, bool) {
	if ev.Kind != nostrtypes.KindAgentDefinition {
		return AgentDefinition{}, false
	}

	var (
		slug, name, description, role, instructions string
		picture, ver, legacyVersion, model          string
		tools, mcpServers, useCriteria, fileIDs     []string
	)

	for _, tag := range ev.Tags {
		if len(tag) < 1 {
			continue
		}
		name0 := tag[0]

		if name0 == "e" {
			if len(tag) >= 2 {
				fileIDs = append(fileIDs, tag[1])
			}
			continue
		}
		if len(tag) < 2 {
			continue
		}
		val := tag[1]

		switch name0 {
		case "d":
			slug = val
		case "title":
			name = val
		case "description":
			description = val
		case "role":
			role = val
		case "instructions":
			instructions = val
		case "picture", "image":
			picture = val
		case "ver":
			ver = val
		case "version":
			legacyVersion = val
		case "model":
			model = val
		case "tool":
			tools = append(tools, val)
		case "mcp":
			mcpServers = append(mcpServers, val)
		case "use-criteria":
			useCriteria = append(useCriteria, val)
		}
	}

	if slug == "" {
		return AgentDefinition{}, false
	}

	version := ver
	if version == "" {
		version = legacyVersion
	}
	if name == "" {
		name = DefaultAgentName
	}
	if role == "" {
		role = DefaultAgentRole
	}
	if instructions == "" {
		instructions = ev.Content
	}

	coord := nostrtypes.Coordinate{Kind: nostrtypes.KindAgentDefinition, Pubkey: ev.PubKey, DTag: slug}

	return AgentDefinition{
		Coordinate:   coord.String(),
		Slug:         slug,
		Pubkey:       ev.PubKey,
		Name:         name,
		Description:  description,
		Role:         role,
		Instructions: instructions,
		Picture:      picture,
		Version:      version,
		Model:        model,
		Tools:        tools,
		MCPServers:   mcpServers,
		UseCriteria:  useCriteria,
		FileIDs:      fileIDs,
		CreatedAt:    int64(ev.CreatedAt),
		EventID:      ev.ID,
	}, true
}
