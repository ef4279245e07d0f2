package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/jwalitptl/botops-api/pkg/logger"
)

// Defaults applied when config leaves a knob unset.
const (
	DefaultBatchSize   = 100
	DefaultSendTimeout = 30 * time.Second
)

// Dispatch event types published to the broker for the notification pipeline.
const (
	EventMessageSent       = "dispatch.message.sent"
	EventMessageCompleted  = "dispatch.message.completed"
	EventMessageFailed     = "dispatch.message.failed"
	EventCampaignCompleted = "dispatch.campaign.completed"
)

// EventPublisher fans dispatch outcomes out to the rest of the platform.
// Publishing is best effort and never affects dispatch state.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) error
}

// RunSummary is the combined result of one dispatch cycle, returned to the
// trigger for logging.
type RunSummary struct {
	ScheduledMessages MessageResult  `json:"scheduled_messages"`
	Campaigns         CampaignResult `json:"campaigns"`
	DurationMs        int64          `json:"duration_ms"`
}

// Worker is the dispatch engine's entry point. Each RunDispatchCycle call is
// one bounded pass over due scheduled messages and active campaigns; the two
// dispatchers run concurrently and fail independently.
type Worker struct {
	messages  *MessageDispatcher
	campaigns *CampaignDispatcher
	logger    *logger.Logger
}

func NewWorker(messages *MessageDispatcher, campaigns *CampaignDispatcher, logger *logger.Logger) *Worker {
	return &Worker{
		messages:  messages,
		campaigns: campaigns,
		logger:    logger,
	}
}

// RunDispatchCycle is idempotent to invoke repeatedly: each run only touches
// currently-due records, and claimed records are invisible to concurrent runs.
func (w *Worker) RunDispatchCycle(ctx context.Context) *RunSummary {
	start := time.Now()
	summary := &RunSummary{}

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		res, err := w.messages.Run(ctx)
		if err != nil {
			w.logger.Error(err, "scheduled message dispatch aborted")
			summary.ScheduledMessages.Errors = append(summary.ScheduledMessages.Errors, err.Error())
			return
		}
		summary.ScheduledMessages = *res
	}()

	go func() {
		defer wg.Done()
		res, err := w.campaigns.Run(ctx)
		if err != nil {
			w.logger.Error(err, "campaign dispatch aborted")
			summary.Campaigns.Errors = append(summary.Campaigns.Errors, err.Error())
			return
		}
		summary.Campaigns = *res
	}()

	wg.Wait()
	summary.DurationMs = time.Since(start).Milliseconds()

	w.logger.Info("dispatch cycle finished",
		"messages_processed", summary.ScheduledMessages.Processed,
		"messages_sent", summary.ScheduledMessages.Sent,
		"messages_failed", summary.ScheduledMessages.Failed,
		"campaigns_processed", summary.Campaigns.CampaignsProcessed,
		"campaign_sent", summary.Campaigns.MessagesSent,
		"campaign_failed", summary.Campaigns.MessagesFailed,
		"duration_ms", summary.DurationMs)

	return summary
}
