// Package tasks defines the background jobs exchanged between the API and the
// worker over asynq.
package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/backend-dapur/internal/analysis"
)

const (
	TypeAnalysisCompleted = "analysis:completed"
	TypeTagsWarm          = "tags:warm"

	QueueDefault = "default"
	QueueLow     = "low"
)

// TagsWarmPayload lists tag queries whose lookups should be primed.
type TagsWarmPayload struct {
	Queries []string `json:"queries"`
}

// NewAnalysisCompletedTask builds the task published after an analysis is stored.
func NewAnalysisCompletedTask(evt analysis.CompletedEvent) (*asynq.Task, error) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("marshal analysis event: %w", err)
	}
	return asynq.NewTask(TypeAnalysisCompleted, payload,
		asynq.TaskID(fmt.Sprintf("analysis-completed-%d", evt.AnalysisID)),
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(5),
		asynq.Timeout(time.Minute),
	), nil
}

// NewTagsWarmTask builds a cache warm-up task.
func NewTagsWarmTask(queries []string) (*asynq.Task, error) {
	payload, err := json.Marshal(TagsWarmPayload{Queries: queries})
	if err != nil {
		return nil, fmt.Errorf("marshal warm payload: %w", err)
	}
	return asynq.NewTask(TypeTagsWarm, payload,
		asynq.Queue(QueueLow),
		asynq.MaxRetry(2),
		asynq.Timeout(2*time.Minute),
	), nil
}

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Client publishes tasks. It implements analysis.Notifier.
type Client struct {
	enqueuer Enqueuer
}

// NewClient constructs a Client.
func NewClient(enqueuer Enqueuer) *Client {
	return &Client{enqueuer: enqueuer}
}

// AnalysisCompleted enqueues the post-analysis follow-up job.
func (c *Client) AnalysisCompleted(ctx context.Context, evt analysis.CompletedEvent) error {
	task, err := NewAnalysisCompletedTask(evt)
	if err != nil {
		return err
	}
	if _, err := c.enqueuer.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("enqueue %s: %w", TypeAnalysisCompleted, err)
	}
	return nil
}

// WarmTags enqueues a tag cache warm-up.
func (c *Client) WarmTags(ctx context.Context, queries []string) error {
	task, err := NewTagsWarmTask(queries)
	if err != nil {
		return err
	}
	if _, err := c.enqueuer.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("enqueue %s: %w", TypeTagsWarm, err)
	}
	return nil
}
