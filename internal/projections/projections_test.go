package projections

import (
	"testing"

	"github.com/nbd-wtf/go-nostr"
)

func TestThreadFromEvent_RequiresProjectTag(t *testing.T) {
	ev := &nostr.Event{Kind: 1, Content: "hi"}
	if _, ok := ThreadFromEvent(ev); ok {
		t.Fatal("expected reject without an a-tag")
	}
}

func TestThreadFromEvent_DefaultsTitle(t *testing.T) {
	ev := &nostr.Event{
		Kind: 1,
		Tags: nostr.Tags{{"a", "31933:pk:proj1"}},
	}
	thread, ok := ThreadFromEvent(ev)
	if !ok {
		t.Fatal("expected thread to parse")
	}
	if thread.Title != DefaultThreadTitle {
		t.Errorf("Title = %q, want %q", thread.Title, DefaultThreadTitle)
	}
}

func TestThreadFromEvent_SkillMarkerIgnoredAtIndex2And3(t *testing.T) {
	cases := []nostr.Tags{
		{{"a", "31933:pk:proj1"}, {"e", "skillid", "skill"}},
		{{"a", "31933:pk:proj1"}, {"e", "skillid", "", "skill"}},
	}
	for i, tags := range cases {
		ev := &nostr.Event{Kind: 1, Tags: tags}
		if _, ok := ThreadFromEvent(ev); !ok {
			t.Errorf("case %d: expected thread despite skill-marker e-tag", i)
		}
	}
}

func TestThreadVsMessage_Disjoint(t *testing.T) {
	threadEv := &nostr.Event{
		Kind: 1,
		Tags: nostr.Tags{{"a", "31933:pk:proj1"}},
	}
	class, ok := ClassifyKind1(threadEv)
	if !ok || class != Kind1Thread {
		t.Fatalf("expected Kind1Thread, got %v ok=%v", class, ok)
	}
	if _, ok := MessageFromEvent(threadEv); ok {
		t.Error("a thread root must not also parse as a message")
	}

	msgEv := &nostr.Event{
		Kind: 1,
		Tags: nostr.Tags{{"e", "rootid", "", "root"}},
	}
	class, ok = ClassifyKind1(msgEv)
	if !ok || class != Kind1Message {
		t.Fatalf("expected Kind1Message, got %v ok=%v", class, ok)
	}
	if _, ok := ThreadFromEvent(msgEv); ok {
		t.Error("a message must not also parse as a thread root")
	}
}

func TestMessageFromEvent_LegacyUnmarkedETags(t *testing.T) {
	ev := &nostr.Event{
		Kind: 1,
		Tags: nostr.Tags{{"e", "rootid"}, {"e", "parentid"}},
	}
	msg, ok := MessageFromEvent(ev)
	if !ok {
		t.Fatal("expected message to parse")
	}
	if msg.ThreadID != "rootid" {
		t.Errorf("ThreadID = %q, want rootid", msg.ThreadID)
	}
	if msg.ReplyTo != "parentid" {
		t.Errorf("ReplyTo = %q, want parentid", msg.ReplyTo)
	}
}

func TestMessageFromEvent_RequiresAnETag(t *testing.T) {
	ev := &nostr.Event{Kind: 1, Content: "no e-tag"}
	if _, ok := MessageFromEvent(ev); ok {
		t.Fatal("expected reject without a qualifying e-tag")
	}
}

func TestMessageFromEvent_StripsLLMMetadata(t *testing.T) {
	ev := &nostr.Event{
		Kind: 1,
		Tags: nostr.Tags{
			{"e", "rootid", "", "root"},
			{"llm-model", "gpt-x"},
			{"llm-tokens", "42"},
		},
	}
	msg, ok := MessageFromEvent(ev)
	if !ok {
		t.Fatal("expected message to parse")
	}
	if msg.LLMMetadata["model"] != "gpt-x" || msg.LLMMetadata["tokens"] != "42" {
		t.Errorf("LLMMetadata = %v, want model/tokens stripped of llm- prefix", msg.LLMMetadata)
	}
}

func TestMessageFromEvent_AskEmbedded(t *testing.T) {
	ev := &nostr.Event{
		Kind:    1,
		Content: "please choose",
		Tags: nostr.Tags{
			{"e", "rootid", "", "root"},
			{"title", "Pick one"},
			{"question", "Pick one", "Which color?", "red", "blue"},
		},
	}
	msg, ok := MessageFromEvent(ev)
	if !ok {
		t.Fatal("expected message to parse")
	}
	if msg.Ask == nil {
		t.Fatal("expected an embedded ask")
	}
	if len(msg.Ask.Questions) != 1 || msg.Ask.Questions[0].MultiSelect {
		t.Fatalf("expected one single-select question, got %+v", msg.Ask.Questions)
	}
	if len(msg.Ask.Questions[0].Suggestions) != 2 {
		t.Errorf("expected 2 suggestions, got %v", msg.Ask.Questions[0].Suggestions)
	}
}

func TestAgentDefinitionFromEvent_VerWinsOverLegacyVersion(t *testing.T) {
	ev := &nostr.Event{
		Kind: 4199,
		Tags: nostr.Tags{
			{"d", "myagent"},
			{"version", "1"},
			{"ver", "2"},
		},
	}
	agent, ok := AgentDefinitionFromEvent(ev)
	if !ok {
		t.Fatal("expected agent definition to parse")
	}
	if agent.Version != "2" {
		t.Errorf("Version = %q, want 2 (ver must win over legacy version regardless of tag order)", agent.Version)
	}
}

func TestAgentDefinitionFromEvent_Defaults(t *testing.T) {
	ev := &nostr.Event{Kind: 4199, Content: "fallback instructions", Tags: nostr.Tags{{"d", "a1"}}}
	agent, ok := AgentDefinitionFromEvent(ev)
	if !ok {
		t.Fatal("expected agent definition to parse")
	}
	if agent.Name != DefaultAgentName || agent.Role != DefaultAgentRole {
		t.Errorf("defaults not applied: %+v", agent)
	}
	if agent.Instructions != "fallback instructions" {
		t.Errorf("Instructions = %q, want content fallback", agent.Instructions)
	}
}

func TestProjectStatusFromJSON(t *testing.T) {
	raw := []byte(`{"agents":[{"name":"pm","pubkey":"abc","is_pm":true,"model":"gpt-x","tools":["t1"]}],"models":["gpt-x"],"tools":["t1"],"branches":["main"],"backend_pubkey":"beef"}`)
	status, err := ProjectStatusFromJSON("31933:pk:proj1", 100, raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(status.Agents) != 1 || !status.Agents[0].IsPM {
		t.Errorf("Agents = %+v", status.Agents)
	}
}

func TestProjectStatusFromJSON_MalformedIsError(t *testing.T) {
	if _, err := ProjectStatusFromJSON("31933:pk:proj1", 100, []byte("not json")); err == nil {
		t.Fatal("expected malformed status JSON to error, not silently reject")
	}
}

func TestProfileFromEvent_PrefersDisplayName(t *testing.T) {
	ev := &nostr.Event{Kind: 0, Content: `{"name":"short","display_name":"Full Name"}`}
	profile, ok := ProfileFromEvent(ev)
	if !ok {
		t.Fatal("expected profile to parse")
	}
	if profile.DisplayName != "Full Name" {
		t.Errorf("DisplayName = %q, want Full Name", profile.DisplayName)
	}
}
