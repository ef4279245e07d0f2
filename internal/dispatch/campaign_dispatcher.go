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

// CampaignStore is the slice of the persistent store the campaign dispatcher
// consumes. The postgres repository satisfies it.
type CampaignStore interface {
	FindActive(ctx context.Context, now time.Time) ([]*model.Campaign, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.CampaignStatus) (bool, error)
	Update(ctx context.Context, id uuid.UUID, update model.CampaignUpdate) error
	IncrementCounters(ctx context.Context, id uuid.UUID, sentDelta, failedDelta int) error
	FindQueuedRecipients(ctx context.Context, campaignID uuid.UUID, limit int) ([]*model.CampaignRecipient, error)
	ClaimRecipient(ctx context.Context, id uuid.UUID) (bool, error)
	UpdateRecipient(ctx context.Context, id uuid.UUID, update model.RecipientUpdate) error
	CountRecipientsInStates(ctx context.Context, campaignID uuid.UUID, states []model.RecipientStatus) (int, error)
}

// CampaignResult summarizes one campaign-dispatch pass.
type CampaignResult struct {
	CampaignsProcessed int      `json:"campaigns_processed"`
	MessagesSent       int      `json:"messages_sent"`
	MessagesFailed     int      `json:"messages_failed"`
	Errors             []string `json:"errors,omitempty"`
}

type CampaignDispatcherConfig struct {
	BatchSize   int
	SendTimeout time.Duration
}

// CampaignDispatcher walks active campaigns and their queued recipients,
// sequentially and paced, so the delivery rate stays deterministic.
type CampaignDispatcher struct {
	store   CampaignStore
	sender  provider.Sender
	events  EventPublisher
	config  CampaignDispatcherConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewCampaignDispatcher(
	store CampaignStore,
	sender provider.Sender,
	events EventPublisher,
	config CampaignDispatcherConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *CampaignDispatcher {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchSize
	}
	if config.SendTimeout <= 0 {
		config.SendTimeout = DefaultSendTimeout
	}

	return &CampaignDispatcher{
		store:   store,
		sender:  sender,
		events:  events,
		config:  config,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// Run processes one bounded batch per active campaign. A recipient's failure
// never aborts its campaign's batch, and one campaign's failure never aborts
// the others; only store unavailability surfaces as an error.
func (d *CampaignDispatcher) Run(ctx context.Context) (*CampaignResult, error) {
	timer := prometheus.NewTimer(d.metrics.CampaignBatchLatency)
	defer timer.ObserveDuration()

	now := d.now()
	result := &CampaignResult{}

	campaigns, err := d.store.FindActive(ctx, now)
	if err != nil {
		d.metrics.DatabaseOperations.WithLabelValues("find_active_campaigns", "error").Inc()
		return nil, fmt.Errorf("failed to find active campaigns: %w", err)
	}
	d.metrics.DatabaseOperations.WithLabelValues("find_active_campaigns", "success").Inc()

	for _, campaign := range campaigns {
		result.CampaignsProcessed++
		sent, failed, err := d.processCampaign(ctx, campaign)
		result.MessagesSent += sent
		result.MessagesFailed += failed
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", campaign.ID, err))
		}
	}

	return result, nil
}

func (d *CampaignDispatcher) processCampaign(ctx context.Context, campaign *model.Campaign) (sent, failed int, err error) {
	now := d.now()

	if campaign.Status == model.CampaignStatusQueued {
		started, err := d.store.UpdateStatus(ctx, campaign.ID, model.CampaignStatusQueued, model.CampaignStatusRunning)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to start campaign: %w", err)
		}
		if !started {
			// Paused, cancelled or taken over between query and claim.
			return 0, 0, nil
		}
		if err := d.store.Update(ctx, campaign.ID, model.CampaignUpdate{StartedAt: &now}); err != nil {
			return 0, 0, fmt.Errorf("failed to record campaign start: %w", err)
		}
		d.logger.Info("campaign started", "campaign_id", campaign.ID.String())
	}

	recipients, err := d.store.FindQueuedRecipients(ctx, campaign.ID, d.config.BatchSize)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to load queued recipients: %w", err)
	}

	pacer := NewPacer(campaign.DelayBetweenMs, campaign.MessagesPerMinute)

	for i, recipient := range recipients {
		if i > 0 {
			if err := pacer.Wait(ctx); err != nil {
				return sent, failed, err
			}
		}

		claimed, err := d.store.ClaimRecipient(ctx, recipient.ID)
		if err != nil {
			failed++
			d.logger.Error(err, "failed to claim recipient", "recipient_id", recipient.ID.String())
			continue
		}
		if !claimed {
			continue
		}

		if d.sendToRecipient(ctx, campaign, recipient) {
			sent++
		} else {
			failed++
		}
	}

	if err := d.maybeComplete(ctx, campaign); err != nil {
		return sent, failed, err
	}
	return sent, failed, nil
}

func (d *CampaignDispatcher) sendToRecipient(ctx context.Context, campaign *model.Campaign, recipient *model.CampaignRecipient) bool {
	now := d.now()

	sendCtx, cancel := context.WithTimeout(ctx, d.config.SendTimeout)
	defer cancel()

	res, sendErr := d.sender.Send(sendCtx, provider.SendRequest{
		ChannelID:   recipient.ChannelID,
		ContactID:   &recipient.ContactID,
		Content:     campaign.Content,
		ContentType: campaign.ContentType,
		Attachments: campaign.Attachments,
	})

	if sendErr != nil {
		failedStatus := model.RecipientStatusFailed
		reason := sendErr.Error()
		if err := d.store.UpdateRecipient(ctx, recipient.ID, model.RecipientUpdate{
			Status:        &failedStatus,
			FailedAt:      &now,
			FailureReason: &reason,
		}); err != nil {
			d.logger.Error(err, "failed to mark recipient failed", "recipient_id", recipient.ID.String())
		}
		if err := d.store.IncrementCounters(ctx, campaign.ID, 0, 1); err != nil {
			d.logger.Error(err, "failed to bump failed count", "campaign_id", campaign.ID.String())
		}
		d.metrics.RecipientsFailed.Inc()
		d.logger.Error(sendErr, "campaign send failed",
			"campaign_id", campaign.ID.String(),
			"recipient_id", recipient.ID.String())
		return false
	}

	sentStatus := model.RecipientStatusSent
	if err := d.store.UpdateRecipient(ctx, recipient.ID, model.RecipientUpdate{
		Status:            &sentStatus,
		SentAt:            &now,
		ExternalMessageID: &res.ExternalID,
	}); err != nil {
		d.logger.Error(err, "failed to mark recipient sent", "recipient_id", recipient.ID.String())
	}
	if err := d.store.IncrementCounters(ctx, campaign.ID, 1, 0); err != nil {
		d.logger.Error(err, "failed to bump sent count", "campaign_id", campaign.ID.String())
	}
	d.metrics.RecipientsSent.Inc()
	return true
}

// maybeComplete derives campaign completion from recipient state: the
// campaign is done exactly when no recipient is PENDING, QUEUED or SENDING.
func (d *CampaignDispatcher) maybeComplete(ctx context.Context, campaign *model.Campaign) error {
	remaining, err := d.store.CountRecipientsInStates(ctx, campaign.ID, model.ActiveRecipientStates)
	if err != nil {
		return fmt.Errorf("failed to count remaining recipients: %w", err)
	}
	if remaining > 0 {
		return nil
	}

	completed, err := d.store.UpdateStatus(ctx, campaign.ID, model.CampaignStatusRunning, model.CampaignStatusCompleted)
	if err != nil {
		return fmt.Errorf("failed to complete campaign: %w", err)
	}
	if !completed {
		return nil
	}

	now := d.now()
	if err := d.store.Update(ctx, campaign.ID, model.CampaignUpdate{CompletedAt: &now}); err != nil {
		return fmt.Errorf("failed to record campaign completion: %w", err)
	}

	d.logger.Info("campaign completed", "campaign_id", campaign.ID.String())
	if d.events != nil {
		if err := d.events.Publish(ctx, EventCampaignCompleted, map[string]interface{}{
			"id": campaign.ID.String(),
		}); err != nil {
			d.logger.Error(err, "failed to publish dispatch event", "event_type", EventCampaignCompleted)
		}
	}
	return nil
}
