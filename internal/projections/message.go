package projections

import (
	"strings"

	"github.com/nbd-wtf/go-nostr"

	"github.com/tenex-chat/tenexd/internal/nostrtypes"
)

// MessageFromEvent parses a kind-1 event carrying an e-tag into a Message.
// The thread id comes from the first e-tag marked "root", or (for legacy
// unmarked events) the first e-tag with no marker at all; an e-tag marked
// "reply", or a second unmarked e-tag, supplies the immediate parent. A
// note with no qualifying e-tag is not a message (it rejects rather than
// guessing a thread id), matching the original's `thread_id?` early return.
func MessageFromEvent(ev *nostr.Event) (Message, bool) {
	if ev.Kind != 1 {
		return Message{}, false
	}

	msg := Message{
		ID:        ev.ID,
		Content:   ev.Content,
		Author:    ev.PubKey,
		CreatedAt: int64(ev.CreatedAt),
	}

	var threadID, replyTo string
	llm := map[string]string{}

	for _, tag := range ev.Tags {
		if len(tag) < 1 {
			continue
		}
		name := tag[0]

		// llm-* tags are stripped into metadata before any other
		// handling; they never fall through to the generic switch.
		if strings.HasPrefix(name, "llm-") && len(tag) >= 2 {
			llm[strings.TrimPrefix(name, "llm-")] = tag[1]
			continue
		}

		switch name {
		case "p":
			if len(tag) >= 2 {
				msg.PTags = append(msg.PTags, tag[1])
			}
		case "tool":
			if len(tag) >= 2 {
				msg.ToolName = tag[1]
			}
		case "tool-args":
			if len(tag) >= 2 {
				msg.ToolArgs = tag[1]
			}
		case "q":
			if len(tag) >= 2 {
				msg.QTags = append(msg.QTags, tag[1])
			}
		case "e":
			if len(tag) < 2 {
				continue
			}
			id := tag[1]
			marker := ""
			if len(tag) >= 4 {
				marker = tag[3]
			}
			switch marker {
			case "root":
				threadID = id
			case "reply":
				replyTo = id
			case "":
				// Legacy unmarked reference: the first one seen
				// becomes the thread id, the second becomes the
				// immediate parent.
				if threadID == "" {
					threadID = id
				} else {
					replyTo = id
				}
			}
		case "reasoning":
			msg.IsReasoning = true
		case "delegation":
			if len(tag) >= 2 {
				msg.DelegationTag = tag[1]
			}
		case "branch":
			if len(tag) >= 2 {
				msg.Branch = tag[1]
			}
		}
	}

	if threadID == "" {
		return Message{}, false
	}

	msg.ThreadID = threadID
	msg.ReplyTo = replyTo
	if len(llm) > 0 {
		msg.LLMMetadata = llm
	}
	msg.Ask = AskFromMessageTags(ev)

	return msg, true
}

// MessageFromThreadEvent builds the synthetic "first message" view of a
// thread-root event itself, for front-ends that display the root as the
// opening message of its own conversation. It requires a project a-tag
// and no e-tag of any kind, which is stricter than ThreadFromEvent: a root
// carrying a skill-marker e-tag is a thread but yields no message here. The
// thread's own
// id is both its identity and its thread id, it has no parent, and it
// never carries a delegation tag (delegation on a root flows through
// ParentConversationID instead).
func MessageFromThreadEvent(ev *nostr.Event) (Message, bool) {
	if ev.Kind != 1 {
		return Message{}, false
	}
	if !nostrtypes.HasTag(ev.Tags, "a") {
		return Message{}, false
	}
	if nostrtypes.HasTag(ev.Tags, "e") {
		return Message{}, false
	}

	return Message{
		ID:        ev.ID,
		Content:   ev.Content,
		Author:    ev.PubKey,
		ThreadID:  ev.ID,
		CreatedAt: int64(ev.CreatedAt),
		Ask:       AskFromMessageTags(ev),
	}, true
}
