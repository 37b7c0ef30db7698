package projections

import (
	"github.com/nbd-wtf/go-nostr"

	"github.com/tenex-chat/tenexd/internal/nostrtypes"
)

const DefaultNudgeTitle = "Nudge"

// NudgeFromEvent parses a kind-4201 event: a Skill-shaped snippet (title,
// description, content, hashtags) plus tool-permission modifiers and a
// supersedes chain for replacing an older nudge. No dedicated
// original_source file exists for this kind; its tag set is grounded on
// Skill's (title/description/t/e) plus spec §4.2's description of the
// additional allow/deny/only/supersedes tags.
func NudgeFromEvent(ev *nostr.Event) (Nudge, bool) {
	if ev.Kind != nostrtypes.KindNudge {
		return Nudge{}, false
	}

	var hashtags, allow, deny, only []string
	for _, tag := range ev.Tags {
		if len(tag) < 2 {
			continue
		}
		switch tag[0] {
		case "t":
			hashtags = append(hashtags, tag[1])
		case "allow-tool":
			allow = append(allow, tag[1])
		case "deny-tool":
			deny = append(deny, tag[1])
		case "only-tool":
			only = append(only, tag[1])
		}
	}

	return Nudge{
		EventID:     ev.ID,
		Pubkey:      ev.PubKey,
		Title:       nostrtypes.TagValueOrDefault(ev.Tags, "title", DefaultNudgeTitle),
		Description: nostrtypes.TagValueOrDefault(ev.Tags, "description", ""),
		Content:     ev.Content,
		Hashtags:    hashtags,
		AllowTools:  allow,
		DenyTools:   deny,
		OnlyTools:   only,
		Supersedes:  nostrtypes.TagValueOrDefault(ev.Tags, "supersedes", ""),
		CreatedAt:   int64(ev.CreatedAt),
	}, true
}
