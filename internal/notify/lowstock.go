// Package notify bridges domain events to asynchronous task processing.
// Low-stock crossings are enqueued as asynq tasks and handled by the worker
// process; delivery is best-effort and never blocks settlement.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-kasir/internal/events"
)

// TaskLowStock is the asynq task type consumed by cmd/worker.
const TaskLowStock = "stock:low"

// LowStockPayload is the task body for a threshold crossing.
type LowStockPayload struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Remaining int64  `json:"remaining"`
	Threshold int64  `json:"threshold"`
}

// LowStockDispatcher enqueues low-stock tasks for events on TopicStockLow
// and ignores every other topic. It implements events.Notifier.
type LowStockDispatcher struct {
	Client *asynq.Client
}

// Notify enqueues a low-stock task when the event topic matches.
func (d LowStockDispatcher) Notify(ctx context.Context, event events.DomainEvent) error {
	if event.Topic != events.TopicStockLow {
		return nil
	}
	if d.Client == nil {
		return fmt.Errorf("notify: asynq client not configured")
	}
	task := asynq.NewTask(TaskLowStock, event.Payload, asynq.MaxRetry(5))
	if _, err := d.Client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("notify: enqueue low-stock task: %w", err)
	}
	return nil
}

// LowStockHandler processes low-stock tasks on the worker side.
type LowStockHandler struct {
	Logger zerolog.Logger
}

// ProcessTask logs the crossing. Returning an error makes asynq retry up
// to the task's MaxRetry.
func (h LowStockHandler) ProcessTask(_ context.Context, task *asynq.Task) error {
	var payload LowStockPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("notify: decode low-stock payload: %w", err)
	}
	h.Logger.Warn().
		Str("product_id", payload.ProductID).
		Str("name", payload.Name).
		Int64("remaining", payload.Remaining).
		Int64("threshold", payload.Threshold).
		Msg("product stock below threshold")
	return nil
}
