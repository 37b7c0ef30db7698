package projections

// Project is the materialized view of a kind-31933 event (§3, §4.2).
type Project struct {
	Coordinate   string // a-coordinate: "31933:<pubkey>:<slug>"
	Slug         string
	Name         string
	Owner        string
	AgentIDs     []string
	MCPToolIDs   []string
	Participants []string
	Description  string
	CreatedAt    int64
	EventID      string
}

// Thread is the materialized view of a kind-1 thread-root event: one that
// carries a project a-tag and no non-skill-marker e-tag.
type Thread struct {
	ID                      string // event id, also the thread's identity
	ProjectCoordinate       string
	Title                   string
	Content                 string
	Author                  string
	CreatedAt               int64
	LastActivity            int64
	EffectiveLastActivity   int64
	ParentConversationID    string // empty if not a delegation child
	PTags                   []string
	Hashtags                []string
	IsScheduled             bool
	StatusLabel             string
	StatusCurrentActivity   string
	Summary                 string
}

// AskQuestion is one question within an embedded ask payload: either a
// single-select (with suggestions) or a multi-select (with options).
type AskQuestion struct {
	Title       string
	Question    string
	Suggestions []string // non-nil only for single-select
	Options     []string // non-nil only for multi-select
	MultiSelect bool
}

// Ask is the payload embedded in a message that asks the user a question.
type Ask struct {
	Title     string
	Context   string
	Questions []AskQuestion
}

// Message is the materialized view of a kind-1 event carrying an e-tag to a
// thread.
type Message struct {
	ID              string
	Content         string
	Author          string
	ThreadID        string
	ReplyTo         string // empty if this message is the thread's first reply
	IsReasoning     bool
	Ask             *Ask
	QTags           []string
	PTags           []string
	ToolName        string
	ToolArgs        string
	LLMMetadata     map[string]string
	DelegationTag   string
	Branch          string
	CreatedAt       int64
}

// AgentDefinition is the materialized view of a kind-4199 event.
type AgentDefinition struct {
	Coordinate   string
	Slug         string
	Pubkey       string
	Name         string
	Description  string
	Role         string
	Instructions string
	Picture      string
	Version      string
	Model        string
	Tools        []string
	MCPServers   []string
	UseCriteria  []string
	FileIDs      []string
	CreatedAt    int64
	EventID      string
}

// Skill is the materialized view of a kind-4202 event.
type Skill struct {
	EventID     string
	Pubkey      string
	Title       string
	Description string
	Content     string
	Hashtags    []string
	FileIDs     []string
	CreatedAt   int64
}

// Nudge is the materialized view of a kind-4201 event: a Skill-shaped
// snippet plus tool-permission modifiers and a supersedes chain.
type Nudge struct {
	EventID     string
	Pubkey      string
	Title       string
	Description string
	Content     string
	Hashtags    []string
	AllowTools  []string
	DenyTools   []string
	OnlyTools   []string
	Supersedes  string
	CreatedAt   int64
}

// TeamPack is the materialized view of a kind-34199 event.
type TeamPack struct {
	Coordinate      string
	Slug            string
	Pubkey          string
	Title           string
	Description     string
	Image           string
	AgentDefIDs     []string
	Categories      []string
	Hashtags        []string
	CreatedAt       int64
	EventID         string
}

// Report is the materialized view of a kind-30023 event (NIP-23 long-form
// content), versioned by created_at inside a project.
type Report struct {
	Coordinate        string
	Slug              string
	Title             string
	Summary           string
	Content           string
	Hashtags          []string
	Author            string
	ProjectCoordinate string
	CreatedAt         int64
	EventID           string
}

// OnlineAgent describes one agent entry within a ProjectStatus snapshot.
type OnlineAgent struct {
	Name   string `json:"name"`
	Pubkey string `json:"pubkey"`
	IsPM   bool   `json:"is_pm"`
	Model  string `json:"model"`
	Tools  []string `json:"tools"`
}

// ProjectStatus is the ephemeral, in-memory-only view of a kind-24010
// event: the set of currently-online agents for a project, plus the
// backend's advertised capabilities.
type ProjectStatus struct {
	ProjectCoordinate string
	Agents            []OnlineAgent
	Models            []string
	Tools             []string
	Branches          []string
	BackendPubkey     string
	CreatedAt         int64
}

// Profile is the materialized view of a kind-0 event.
type Profile struct {
	Pubkey      string
	DisplayName string
	CreatedAt   int64
}
