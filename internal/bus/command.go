package bus

import (
	"context"
	"fmt"
)

// Command is a closed tagged union of every operation a producer can
// ask the relay worker to perform. The worker's run loop consumes these
// from a single channel; any number of producers (the runtime
// coordinator, the JSON-RPC server, the HTTP API) may enqueue through
// their own CommandHandle.
type Command interface {
	commandMarker()
}

// ConnectResult is delivered on Connect's optional reply channel after
// every configured relay has been dialled in turn within the connect
// timeout; Err is set when none of them connected. The reply is not sent
// early when the first relay accepts.
type ConnectResult struct {
	Err error
}

// Connect opens relay connections, authenticates as the given identity,
// and installs the standing subscriptions listed in §4.4: projects
// authored by the user, mentions, agent definitions, project status,
// thread/conversation metadata, and agent lessons.
type Connect struct {
	PrivateKeyHex string
	UserPubkey    string
	Reply         chan<- ConnectResult
}

// Sync installs the per-project status subscription for every project
// already in the application data store (once per project) and fetches
// the profiles queued since the last Sync. It does not re-run the
// user-scoped queries covered by Connect's standing subscriptions.
type Sync struct{}

// PublishResult carries the assigned event id. Err is set when signing or
// local ingestion failed, in which case nothing was stored, or when relay
// transmission failed for a reason other than the send timeout, in which
// case the event is already stored locally. A transmission that runs out
// of time is logged and reported as success.
type PublishResult struct {
	EventID string
	Err     error
}

// PublishThread builds a kind-1 event carrying the project a-tag and
// title tag, signs it, local-ingests it, and sends it with a 5s cap.
// RecipientPubkey, SkillIDs, and NudgeIDs are optional addressing and
// lesson-attachment metadata shared with PublishMessage (§6.2
// send_message/create_thread).
type PublishThread struct {
	ProjectATag     string
	Title           string
	Content         string
	RecipientPubkey string
	SkillIDs        []string
	NudgeIDs        []string
	Reply           chan<- PublishResult
}

// PublishMessage builds a kind-1 event with a root-marked e-tag pointing
// at ThreadID, signs it, local-ingests it, and sends it with a 5s cap. No
// reply marker is added: the event does not name a parent message.
type PublishMessage struct {
	ThreadID        string
	Content         string
	RecipientPubkey string
	SkillIDs        []string
	NudgeIDs        []string
	Reply           chan<- PublishResult
}

// BootProject sends a boot-request event pointing at the project and
// its owner.
type BootProject struct {
	ATag         string
	OwnerPubkey  string
}

// StopOperations emits a stop signal addressed to the given agents and
// events within a project.
type StopOperations struct {
	ProjectATag  string
	EventIDs     []string
	AgentPubkeys []string
}

// UpdateAgentConfig publishes a config-update event for one agent
// within a project.
type UpdateAgentConfig struct {
	Project     string
	AgentPubkey string
	Model       string
	Tools       []string
	Tags        [][]string
}

// UpdateProjectAgents publishes an updated project event carrying a new
// agent list.
type UpdateProjectAgents struct {
	Project  string
	AgentIDs []string
}

// SaveProject publishes or updates a project event. Slug is empty when
// creating a new project (a fresh d-tag is minted by the worker).
type SaveProject struct {
	Slug    string
	Name    string
	Content string
	Client  string
}

// CreateAgentDefinition publishes a kind-4199 event. IsFork marks the
// definition as derived from an existing one.
type CreateAgentDefinition struct {
	Name    string
	Role    string
	Content string
	IsFork  bool
}

// RelayStatusResult reports how many configured relays are currently
// connected.
type RelayStatusResult struct {
	Connected int
	Total     int
}

// GetRelayStatus replies with the count of connected relays. Unlike
// most commands this acknowledgement is required, not optional: callers
// that construct GetRelayStatus must provide Reply.
type GetRelayStatus struct {
	Reply chan<- RelayStatusResult
}

// Disconnect closes relay connections and cancels subscriptions.
type Disconnect struct {
	Reply chan<- struct{}
}

// Shutdown terminates the worker: the run loop returns once it has
// handled Shutdown, so commands queued before it are processed and
// commands queued after it are not. No acknowledgement is delivered; the
// caller observes termination by the worker goroutine exiting. The
// command channel is not closed, so later sends are still accepted into
// its buffer and are never processed.
type Shutdown struct{}

func (Connect) commandMarker()                {}
func (Sync) commandMarker()                   {}
func (PublishThread) commandMarker()          {}
func (PublishMessage) commandMarker()         {}
func (BootProject) commandMarker()            {}
func (StopOperations) commandMarker()         {}
func (UpdateAgentConfig) commandMarker()      {}
func (UpdateProjectAgents) commandMarker()    {}
func (SaveProject) commandMarker()            {}
func (CreateAgentDefinition) commandMarker()  {}
func (GetRelayStatus) commandMarker()         {}
func (Disconnect) commandMarker()             {}
func (Shutdown) commandMarker()               {}

// ErrWorkerStopped is returned by CommandHandle.Send when the worker's
// command channel has been closed. Nothing in this module closes it;
// sends made after Shutdown are accepted and never processed.
var ErrWorkerStopped = fmt.Errorf("relay worker has stopped accepting commands")

// CommandHandle is a cloneable handle producers use to enqueue commands
// onto the relay worker's single consumer. Copying a CommandHandle by
// value is safe and intended: every producer (runtime coordinator,
// JSON-RPC server, HTTP API) holds its own copy pointing at the same
// underlying channel.
type CommandHandle struct {
	ch chan<- Command
}

// NewCommandChannel creates the command channel pair: a CommandHandle
// for producers and the receive-only channel the worker's run loop
// ranges over.
func NewCommandChannel(bufSize int) (CommandHandle, <-chan Command) {
	ch := make(chan Command, bufSize)
	return CommandHandle{ch: ch}, ch
}

// Send enqueues a command, or returns ctx.Err() if ctx ends while the
// channel's buffer is full. It recovers from a send-on-closed-channel
// panic and reports ErrWorkerStopped instead.
func (h CommandHandle) Send(ctx context.Context, cmd Command) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = ErrWorkerStopped
		}
	}()
	select {
	case h.ch <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
