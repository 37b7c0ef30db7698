package projections

import (
	"encoding/json"

	"github.com/nbd-wtf/go-nostr"

	"github.com/tenex-chat/tenexd/internal/nostrtypes"
)

type profileDoc struct {
	DisplayName string `json:"display_name"`
	Name        string `json:"name"`
}

// ProfileFromEvent parses a kind-0 event. display_name is preferred over
// name; malformed JSON yields a profile with an empty display name rather
// than a rejection, since the pubkey alone is still usable (grounded on
// original_source's get_profile_name fallback-to-truncated-pubkey
// convention; nothing in this module applies that fallback, and
// datastore.GetProfile returns the stored name, empty or not).
func ProfileFromEvent(ev *nostr.Event) (Profile, bool) {
	if ev.Kind != nostrtypes.KindProfile {
		return Profile{}, false
	}

	var doc profileDoc
	_ = json.Unmarshal([]byte(ev.Content), &doc)

	name := doc.DisplayName
	if name == "" {
		name = doc.Name
	}

	return Profile{
		Pubkey:      ev.PubKey,
		DisplayName: name,
		CreatedAt:   int64(ev.CreatedAt),
	}, true
}
