package projections

import (
	"encoding/json"
	"fmt"

	"github.com/nbd-wtf/go-nostr"

	"github.com/tenex-chat/tenexd/internal/nostrtypes"
)

type projectStatusDoc struct {
	Agents   []OnlineAgent `json:"agents"`
	Models   []string      `json:"models"`
	Tools    []string      `json:"tools"`
	Branches []string      `json:"branches"`
	Backend  string        `json:"backend_pubkey"`
}

// ProjectStatusFromEvent parses a kind-24010 ephemeral event. Unlike the
// other projections, malformed JSON in a right-kind event is a genuine
// error (not a silent reject) per §7: the caller already committed to
// treating this note as a status update and needs to know parsing failed.
// Status events never enter the durable store — callers must apply the
// ephemeral filter before this function ever sees the event's bytes.
func ProjectStatusFromEvent(ev *nostr.Event) (ProjectStatus, error) {
	if ev.Kind != nostrtypes.KindProjectStatus {
		return ProjectStatus{}, fmt.Errorf("projections: event %s has kind %d, want %d", ev.ID, ev.Kind, nostrtypes.KindProjectStatus)
	}

	aTag, ok := nostrtypes.FirstTagValue(ev.Tags, "a")
	if !ok || aTag == "" {
		return ProjectStatus{}, fmt.Errorf("projections: status event %s missing project a-tag", ev.ID)
	}

	return ProjectStatusFromJSON(aTag, int64(ev.CreatedAt), []byte(ev.Content))
}

// ProjectStatusFromJSON parses the content body of a status event
// directly, for callers (e.g. the relay worker's ephemeral fast path) that
// already know the project coordinate and timestamp.
func ProjectStatusFromJSON(projectCoordinate string, createdAt int64, raw []byte) (ProjectStatus, error) {
	var doc projectStatusDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return ProjectStatus{}, fmt.Errorf("projections: malformed status JSON for %s: %w", projectCoordinate, err)
	}

	return ProjectStatus{
		ProjectCoordinate: projectCoordinate,
		Agents:            doc.Agents,
		Models:            doc.Models,
		Tools:             doc.Tools,
		Branches:          doc.Branches,
		BackendPubkey:     doc.Backend,
		CreatedAt:         createdAt,
	}, nil
}
