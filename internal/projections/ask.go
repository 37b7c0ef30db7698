package projections

import (
	"github.com/nbd-wtf/go-nostr"

	"github.com/tenex-chat/tenexd/internal/nostrtypes"
)

// AskFromMessageTags parses the embedded ask payload (if any) from a
// message's tags. An ask is present iff at least one "question" or
// "multiselect" tag exists; absence is not an error, just "no ask".
func AskFromMessageTags(ev *nostr.Event) *Ask {
	title, _ := nostrtypes.FirstTagValue(ev.Tags, "title")
	context := ev.Content

	var questions []AskQuestion
	for _, tag := range ev.Tags {
		if len(tag) < 3 {
			continue
		}
		switch tag[0] {
		case "question":
			q := AskQuestion{
				Title:    tag[1],
				Question: tag[2],
			}
			if len(tag) > 3 {
				q.Suggestions = append([]string(nil), tag[3:]...)
			}
			questions = append(questions, q)
		case "multiselect":
			q := AskQuestion{
				Title:       tag[1],
				Question:    tag[2],
				MultiSelect: true,
			}
			if len(tag) > 3 {
				q.Options = append([]string(nil), tag[3:]...)
			}
			questions = append(questions, q)
		}
	}

	if len(questions) == 0 {
		return nil
	}

	return &Ask{Title: title, Context: context, Questions: questions}
}
