package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/botops-api/internal/model"
	"github.com/jwalitptl/botops-api/internal/provider"
	"github.com/jwalitptl/botops-api/pkg/logger"
	"github.com/jwalitptl/botops-api/pkg/metrics"
)

// MessageStore is the slice of the persistent store the message dispatcher
// consumes. The postgres repository satisfies it.
type MessageStore interface {
	FindDue(ctx context.Context, now time.Time, limit int) ([]*model.ScheduledMessage, error)
	Claim(ctx context.Context, id uuid.UUID) (bool, error)
	Update(ctx context.Context, id uuid.UUID, update model.ScheduledMessageUpdate) error
}

// MessageResult summarizes one message-dispatch pass.
type MessageResult struct {
	Processed int      `json:"processed"`
	Sent      int      `json:"sent"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

type MessageDispatcherConfig struct {
	BatchSize   int
	SendTimeout time.Duration
}

// MessageDispatcher advances due one-time, recurring and trigger-based
// messages through their state machine, one message at a time.
type MessageDispatcher struct {
	store   MessageStore
	sender  provider.Sender
	events  EventPublisher
	config  MessageDispatcherConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewMessageDispatcher(
	store MessageStore,
	sender provider.Sender,
	events EventPublisher,
	config MessageDispatcherConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *MessageDispatcher {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchSize
	}
	if config.SendTimeout <= 0 {
		config.SendTimeout = DefaultSendTimeout
	}

	return &MessageDispatcher{
		store:   store,
		sender:  sender,
		events:  events,
		config:  config,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// Run processes one bounded batch of due messages. A single message's failure
// never aborts the batch; only store unavailability surfaces as an error.
func (d *MessageDispatcher) Run(ctx context.Context) (*MessageResult, error) {
	timer := prometheus.NewTimer(d.metrics.MessageBatchLatency)
	defer timer.ObserveDuration()

	now := d.now()
	result := &MessageResult{}

	messages, err := d.store.FindDue(ctx, now, d.config.BatchSize)
	if err != nil {
		d.metrics.DatabaseOperations.WithLabelValues("find_due_messages", "error").Inc()
		return nil, fmt.Errorf("failed to find due messages: %w", err)
	}
	d.metrics.DatabaseOperations.WithLabelValues("find_due_messages", "success").Inc()

	for _, msg := range messages {
		claimed, err := d.store.Claim(ctx, msg.ID)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", msg.ID, err))
			continue
		}
		if !claimed {
			// Another worker got there first.
			continue
		}

		result.Processed++
		if err := d.processMessage(ctx, msg, now); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", msg.ID, err))
		} else {
			result.Sent++
		}
	}

	return result, nil
}

func (d *MessageDispatcher) processMessage(ctx context.Context, msg *model.ScheduledMessage, now time.Time) error {
	sendCtx, cancel := context.WithTimeout(ctx, d.config.SendTimeout)
	defer cancel()

	res, err := d.sender.Send(sendCtx, provider.SendRequest{
		ChannelID:   msg.ChannelID,
		ContactID:   msg.ContactID,
		Content:     msg.Content,
		ContentType: msg.ContentType,
		Attachments: msg.Attachments,
	})
	if err != nil {
		return d.handleFailure(ctx, msg, now, err)
	}

	d.metrics.MessagesSent.Inc()
	d.logger.Info("scheduled message sent",
		"message_id", msg.ID.String(),
		"schedule_type", string(msg.ScheduleType),
		"external_id", res.ExternalID)

	if msg.ScheduleType == model.ScheduleTypeRecurring {
		return d.advanceRecurrence(ctx, msg, now)
	}

	sent := model.MessageStatusSent
	if err := d.store.Update(ctx, msg.ID, model.ScheduledMessageUpdate{
		Status: &sent,
		SentAt: &now,
	}); err != nil {
		return fmt.Errorf("failed to mark message sent: %w", err)
	}

	d.publish(ctx, EventMessageSent, msg.ID)
	return nil
}

// advanceRecurrence re-arms a recurring series or completes it. The next
// occurrence is computed from the current scheduled_for, never from wall
// clock, so the cadence survives late worker runs.
func (d *MessageDispatcher) advanceRecurrence(ctx context.Context, msg *model.ScheduledMessage, now time.Time) error {
	if msg.Recurrence == nil {
		cause := fmt.Errorf("recurring message has no recurrence spec")
		if err := d.markFailed(ctx, msg, now, cause); err != nil {
			return err
		}
		return cause
	}

	spec := *msg.Recurrence
	spec.Occurrences++

	next, cont, err := NextOccurrence(spec, msg.ScheduledFor, spec.Occurrences)
	if err != nil {
		if updateErr := d.markFailed(ctx, msg, now, err); updateErr != nil {
			return updateErr
		}
		return err
	}

	if !cont {
		completed := model.MessageStatusCompleted
		if err := d.store.Update(ctx, msg.ID, model.ScheduledMessageUpdate{
			Status:     &completed,
			SentAt:     &now,
			Recurrence: &spec,
		}); err != nil {
			return fmt.Errorf("failed to complete recurring message: %w", err)
		}
		d.publish(ctx, EventMessageCompleted, msg.ID)
		return nil
	}

	pending := model.MessageStatusPending
	if err := d.store.Update(ctx, msg.ID, model.ScheduledMessageUpdate{
		Status:       &pending,
		ScheduledFor: &next,
		SentAt:       &now,
		Recurrence:   &spec,
	}); err != nil {
		return fmt.Errorf("failed to re-arm recurring message: %w", err)
	}

	d.publish(ctx, EventMessageSent, msg.ID)
	return nil
}

func (d *MessageDispatcher) handleFailure(ctx context.Context, msg *model.ScheduledMessage, now time.Time, sendErr error) error {
	nextRetryAt, retry := NextRetry(now, msg.RetryCount, msg.MaxRetries)
	if !retry {
		if err := d.markFailed(ctx, msg, now, sendErr); err != nil {
			return err
		}
		return fmt.Errorf("retries exhausted: %w", sendErr)
	}

	pending := model.MessageStatusPending
	retryCount := msg.RetryCount + 1
	errStr := sendErr.Error()
	if err := d.store.Update(ctx, msg.ID, model.ScheduledMessageUpdate{
		Status:      &pending,
		RetryCount:  &retryCount,
		LastRetryAt: &now,
		NextRetryAt: &nextRetryAt,
		Error:       &errStr,
	}); err != nil {
		return fmt.Errorf("failed to schedule retry: %w", err)
	}

	d.metrics.MessageRetries.Inc()
	d.logger.Info("scheduled message retry",
		"message_id", msg.ID.String(),
		"retry_count", retryCount,
		"next_retry_at", nextRetryAt.Format(time.RFC3339))

	return fmt.Errorf("send failed, retry %d scheduled: %w", retryCount, sendErr)
}

func (d *MessageDispatcher) markFailed(ctx context.Context, msg *model.ScheduledMessage, now time.Time, cause error) error {
	failed := model.MessageStatusFailed
	errStr := cause.Error()
	if err := d.store.Update(ctx, msg.ID, model.ScheduledMessageUpdate{
		Status: &failed,
		Error:  &errStr,
	}); err != nil {
		return fmt.Errorf("failed to mark message failed: %w", err)
	}

	d.metrics.MessagesFailed.Inc()
	d.logger.Error(cause, "scheduled message failed", "message_id", msg.ID.String())
	d.publish(ctx, EventMessageFailed, msg.ID)
	return nil
}

func (d *MessageDispatcher) publish(ctx context.Context, eventType string, id uuid.UUID) {
	if d.events == nil {
		return
	}
	if err := d.events.Publish(ctx, eventType, map[string]interface{}{"id": id.String()}); err != nil {
		d.logger.Error(err, "failed to publish dispatch event", "event_type", eventType)
	}
}
