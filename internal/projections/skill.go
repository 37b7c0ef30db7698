package projections

import (
	"github.com/nbd-wtf/go-nostr"

	"github.com/tenex-chat/tenexd/internal/nostrtypes"
)

const DefaultSkillTitle = "Skill"

// SkillFromEvent parses a kind-4202 event.
func SkillFromEvent(ev *nostr.Event) (Skill, bool) {
	if ev.Kind != nostrtypes.KindSkill {
		return Skill{}, false
	}

	var fileIDs, hashtags []string
	for _, tag := range ev.Tags {
		if len(tag) >= 2 && tag[0] == "e" {
			fileIDs = append(fileIDs, tag[1])
		}
		if len(tag) >= 2 && tag[0] == "t" {
			hashtags = append(hashtags, tag[1])
		}
	}

	return Skill{
		EventID:     ev.ID,
		Pubkey:      ev.PubKey,
		Title:       nostrtypes.TagValueOrDefault(ev.Tags, "title", DefaultSkillTitle),
		Description: nostrtypes.TagValueOrDefault(ev.Tags, "description", ""),
		Content:     ev.Content,
		Hashtags:    hashtags,
		FileIDs:     fileIDs,
		CreatedAt:   int64(ev.CreatedAt),
	}, true
}

// ContentPreview returns the first n characters (not bytes) of the
// skill's content, for list views that must not split a multi-byte rune.
func (s Skill) ContentPreview(n int) string {
	runes := []rune(s.Content)
	if len(runes) <= n {
		return s.Content
	}
	return string(runes[:n])
}
