package portrait

import (
	"context"

	"github.com/npcforge/npcforge/internal/logger"
)

// Enqueuer schedules a durable portrait retry job carrying only the NPC id.
type Enqueuer interface {
	EnqueuePortraitJob(ctx context.Context, npcID string) error
}

// InlineOnly runs the inline attempt and treats its failure as terminal.
// Deployments without a queue use this; regeneration then requires the
// manual trigger.
type InlineOnly struct {
	pipeline *Service
	log      *logger.Logger
}

func NewInlineOnly(pipeline *Service, log *logger.Logger) *InlineOnly {
	return &InlineOnly{pipeline: pipeline, log: log}
}

func (d *InlineOnly) Dispatch(ctx context.Context, npcID string) {
	if ok := d.pipeline.Generate(ctx, npcID); ok {
		return
	}
	d.log.Warn("inline portrait attempt failed, no queue configured", "npc_id", npcID)
	d.pipeline.MarkFailed(ctx, npcID, "inline portrait generation failed")
}

// InlineThenEnqueue runs the inline attempt and hands a failure to the
// durable queue for retries.
type InlineThenEnqueue struct {
	pipeline *Service
	queue    Enqueuer
	log      *logger.Logger
}

func NewInlineThenEnqueue(pipeline *Service, queue Enqueuer, log *logger.Logger) *InlineThenEnqueue {
	return &InlineThenEnqueue{pipeline: pipeline, queue: queue, log: log}
}

func (d *InlineThenEnqueue) Dispatch(ctx context.Context, npcID string) {
	if ok := d.pipeline.Generate(ctx, npcID); ok {
		return
	}
	if err := d.queue.EnqueuePortraitJob(ctx, npcID); err != nil {
		d.log.Error("portrait job enqueue failed", "npc_id", npcID, "error", err)
		d.pipeline.MarkFailed(ctx, npcID, "portrait enqueue failed: "+err.Error())
		return
	}
	d.log.Info("portrait job enqueued", "npc_id", npcID)
}
