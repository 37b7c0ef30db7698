package projections

import (
	"github.com/nbd-wtf/go-nostr"

	"github.com/tenex-chat/tenexd/internal/nostrtypes"
)

// ReportFromEvent parses a kind-30023 event (NIP-23 long-form content) into
// a Report. A report belongs to a project via its "a" tag pointing at the
// project's coordinate; grounded on ffi.rs's ReportInfo/get_reports, which
// confirms slug/title/summary/content/author/hashtags as the essential
// fields.
func ReportFromEvent(ev *nostr.Event) (Report, bool) {
	if ev.Kind != nostrtypes.KindReport {
		return Report{}, false
	}

	slug, ok := nostrtypes.FirstTagValue(ev.Tags, "d")
	if !ok || slug == "" {
		return Report{}, false
	}

	projectCoord, _ := nostrtypes.FirstTagValue(ev.Tags, "a")

	var hashtags []string
	for _, tag := range ev.Tags {
		if len(tag) >= 2 && tag[0] == "t" {
			hashtags = append(hashtags, tag[1])
		}
	}

	coord := nostrtypes.Coordinate{Kind: nostrtypes.KindReport, Pubkey: ev.PubKey, DTag: slug}

	return Report{
		Coordinate:        coord.String(),
		Slug:              slug,
		Title:             nostrtypes.TagValueOrDefault(ev.Tags, "title", slug),
		Summary:           nostrtypes.TagValueOrDefault(ev.Tags, "summary", ""),
		Content:           ev.Content,
		Hashtags:          hashtags,
		Author:            ev.PubKey,
		ProjectCoordinate: projectCoord,
		CreatedAt:         int64(ev.CreatedAt),
		EventID:           ev.ID,
	}, true
}
