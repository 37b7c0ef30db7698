package projections

import (
	"github.com/nbd-wtf/go-nostr"

	"github.com/tenex-chat/tenexd/internal/nostrtypes"
)

const DefaultTeamPackTitle = "Untitled Team"

// TeamPackFromEvent parses a kind-34199 event: a curated bundle of agent
// definitions.
func TeamPackFromEvent(ev *nostr.Event) (TeamPack, bool) {
	if ev.Kind != nostrtypes.KindTeamPack {
		return TeamPack{}, false
	}

	slug, ok := nostrtypes.FirstTagValue(ev.Tags, "d")
	if !ok || slug == "" {
		return TeamPack{}, false
	}

	var agentIDs, categories, hashtags []string
	for _, tag := range ev.Tags {
		if len(tag) < 2 {
			continue
		}
		switch tag[0] {
		case "e":
			agentIDs = append(agentIDs, tag[1])
		case "c":
			categories = append(categories, tag[1])
		case "t":
			hashtags = append(hashtags, tag[1])
		}
	}

	image := nostrtypes.TagValueOrDefault(ev.Tags, "image", "")
	if image == "" {
		image = nostrtypes.TagValueOrDefault(ev.Tags, "picture", "")
	}

	coord := nostrtypes.Coordinate{Kind: nostrtypes.KindTeamPack, Pubkey: ev.PubKey, DTag: slug}

	return TeamPack{
		Coordinate:  coord.String(),
		Slug:        slug,
		Pubkey:      ev.PubKey,
		Title:       nostrtypes.TagValueOrDefault(ev.Tags, "title", DefaultTeamPackTitle),
		Description: ev.Content,
		Image:       image,
		AgentDefIDs: agentIDs,
		Categories:  categories,
		Hashtags:    hashtags,
		CreatedAt:   int64(ev.CreatedAt),
		EventID:     ev.ID,
	}, true
}
