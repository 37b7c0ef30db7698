package relayworker

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/nbd-wtf/go-nostr"

	"github.com/tenex-chat/tenexd/internal/bus"
	"github.com/tenex-chat/tenexd/internal/nostrtypes"
	"github.com/tenex-chat/tenexd/internal/publish"
)

func (w *Worker) publishResult(ctx context.Context, draft publish.Draft) bus.PublishResult {
	result, err := w.publisher.Publish(ctx, draft)
	if err != nil {
		return bus.PublishResult{Err: err}
	}
	if result.TransmitErr != nil && (ctx.Err() != nil || errors.Is(result.TransmitErr, context.DeadlineExceeded)) {
		w.logger.Warn("relay transmit timed out; event is stored locally", "event_id", result.EventID, "error", result.TransmitErr)
		return bus.PublishResult{EventID: result.EventID}
	}
	return bus.PublishResult{EventID: result.EventID, Err: result.TransmitErr}
}

// lessonTags builds the shared recipient/skill/nudge tag set attached to
// outgoing PublishThread and PublishMessage events (§6.2 send_message /
// create_thread params).
func lessonTags(recipient string, skillIDs, nudgeIDs []string) nostr.Tags {
	var tags nostr.Tags
	if recipient != "" {
		tags = append(tags, nostrtypes.PTag(recipient))
	}
	for _, id := range skillIDs {
		tags = append(tags, nostrtypes.ETag(id, "", "skill"))
	}
	for _, id := range nudgeIDs {
		tags = append(tags, nostr.Tag{"nudge", id})
	}
	return tags
}

func (w *Worker) handlePublishThread(ctx context.Context, c bus.PublishThread) {
	sendCtx, cancel := w.sendTimeoutCtx(ctx)
	defer cancel()

	tags := nostr.Tags{
		{"a", c.ProjectATag},
		{"title", c.Title},
	}
	tags = append(tags, lessonTags(c.RecipientPubkey, c.SkillIDs, c.NudgeIDs)...)

	result := w.publishResult(sendCtx, publish.Draft{
		Kind:      nostrtypes.KindNote,
		Content:   c.Content,
		Tags:      tags,
		CreatedAt: time.Now(),
	})
	reply(c.Reply, result)
}

func (w *Worker) handlePublishMessage(ctx context.Context, c bus.PublishMessage) {
	sendCtx, cancel := w.sendTimeoutCtx(ctx)
	defer cancel()

	tags := nostr.Tags{
		nostrtypes.ETag(c.ThreadID, "", "root"),
	}
	tags = append(tags, lessonTags(c.RecipientPubkey, c.SkillIDs, c.NudgeIDs)...)

	result := w.publishResult(sendCtx, publish.Draft{
		Kind:      nostrtypes.KindNote,
		Content:   c.Content,
		Tags:      tags,
		CreatedAt: time.Now(),
	})
	reply(c.Reply, result)
}

func (w *Worker) handleBootProject(ctx context.Context, c bus.BootProject) {
	sendCtx, cancel := w.sendTimeoutCtx(ctx)
	defer cancel()

	tags := nostr.Tags{
		{"a", c.ATag},
		nostrtypes.PTag(c.OwnerPubkey),
		{"boot-request", "true"},
	}
	_, _ = w.publisher.Publish(sendCtx, publish.Draft{
		Kind:      nostrtypes.KindNote,
		Content:   "",
		Tags:      tags,
		CreatedAt: time.Now(),
	})

	if w.connCtx != nil {
		w.subscribeProjectStatus(w.connCtx, c.ATag)
	}
}

func (w *Worker) handleStopOperations(ctx context.Context, c bus.StopOperations) {
	sendCtx, cancel := w.sendTimeoutCtx(ctx)
	defer cancel()

	tags := nostr.Tags{
		{"a", c.ProjectATag},
		{"stop", "true"},
	}
	for _, id := range c.EventIDs {
		tags = append(tags, nostrtypes.ETag(id, "", ""))
	}
	for _, pk := range c.AgentPubkeys {
		tags = append(tags, nostrtypes.PTag(pk))
	}
	_, _ = w.publisher.Publish(sendCtx, publish.Draft{
		Kind:      nostrtypes.KindNote,
		Content:   "",
		Tags:      tags,
		CreatedAt: time.Now(),
	})
}

func (w *Worker) handleUpdateAgentConfig(ctx context.Context, c bus.UpdateAgentConfig) {
	sendCtx, cancel := w.sendTimeoutCtx(ctx)
	defer cancel()

	tags := nostr.Tags{
		{"a", c.Project},
		nostrtypes.PTag(c.AgentPubkey),
	}
	if c.Model != "" {
		tags = append(tags, nostr.Tag{"model", c.Model})
	}
	for _, tool := range c.Tools {
		tags = append(tags, nostr.Tag{"tool", tool})
	}
	for _, extra := range c.Tags {
		tags = append(tags, nostr.Tag(extra))
	}
	_, _ = w.publisher.Publish(sendCtx, publish.Draft{
		Kind:      nostrtypes.KindNote,
		Content:   "",
		Tags:      tags,
		CreatedAt: time.Now(),
	})
}

func (w *Worker) handleUpdateProjectAgents(ctx context.Context, c bus.UpdateProjectAgents) {
	project, ok := w.data.GetProject(c.Project)
	if !ok {
		w.logger.Warn("UpdateProjectAgents: unknown project", "project", c.Project)
		return
	}

	sendCtx, cancel := w.sendTimeoutCtx(ctx)
	defer cancel()

	tags := nostr.Tags{
		nostrtypes.DTag(project.Slug),
		{"name", project.Name},
	}
	for _, agentID := range c.AgentIDs {
		tags = append(tags, nostr.Tag{"agent", agentID})
	}
	for _, toolID := range project.MCPToolIDs {
		tags = append(tags, nostr.Tag{"mcp", toolID})
	}
	_, _ = w.publisher.Publish(sendCtx, publish.Draft{
		Kind:      nostrtypes.KindProject,
		Content:   project.Description,
		Tags:      tags,
		CreatedAt: time.Now(),
	})
}

func (w *Worker) handleSaveProject(ctx context.Context, c bus.SaveProject) {
	sendCtx, cancel := w.sendTimeoutCtx(ctx)
	defer cancel()

	slug := c.Slug
	if slug == "" {
		slug = uuid.NewString()
	}

	tags := nostr.Tags{
		nostrtypes.DTag(slug),
		{"name", c.Name},
	}
	if c.Client != "" {
		tags = append(tags, nostr.Tag{"client", c.Client})
	}

	_, _ = w.publisher.Publish(sendCtx, publish.Draft{
		Kind:      nostrtypes.KindProject,
		Content:   c.Content,
		Tags:      tags,
		CreatedAt: time.Now(),
	})
}

func (w *Worker) handleCreateAgentDefinition(ctx context.Context, c bus.CreateAgentDefinition) {
	sendCtx, cancel := w.sendTimeoutCtx(ctx)
	defer cancel()

	slug := uuid.NewString()
	tags := nostr.Tags{
		nostrtypes.DTag(slug),
		{"name", c.Name},
		{"role", c.Role},
	}
	if c.IsFork {
		tags = append(tags, nostr.Tag{"fork", "true"})
	}

	_, _ = w.publisher.Publish(sendCtx, publish.Draft{
		Kind:      nostrtypes.KindAgentDefinition,
		Content:   c.Content,
		Tags:      tags,
		CreatedAt: time.Now(),
	})
}
