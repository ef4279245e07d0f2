package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/botops-api/internal/model"
)

// ScheduledMessageRepository persists outbound message intents. FindDue and
// Claim implement the dispatcher's soft-lock protocol: FindDue only returns
// PENDING rows, Claim flips PENDING to PROCESSING conditionally so two
// overlapping worker runs cannot both take the same row.
type ScheduledMessageRepository interface {
	Create(ctx context.Context, msg *model.ScheduledMessage) error
	Get(ctx context.Context, id uuid.UUID) (*model.ScheduledMessage, error)
	List(ctx context.Context, filter model.ScheduledMessageFilter) ([]*model.ScheduledMessage, error)
	FindDue(ctx context.Context, now time.Time, limit int) ([]*model.ScheduledMessage, error)
	Claim(ctx context.Context, id uuid.UUID) (bool, error)
	Update(ctx context.Context, id uuid.UUID, update model.ScheduledMessageUpdate) error
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.MessageStatus) (bool, error)
}

// CampaignRepository persists campaigns and their recipients.
type CampaignRepository interface {
	Create(ctx context.Context, campaign *model.Campaign) error
	Get(ctx context.Context, id uuid.UUID) (*model.Campaign, error)
	List(ctx context.Context, filter model.CampaignFilter) ([]*model.Campaign, error)
	FindActive(ctx context.Context, now time.Time) ([]*model.Campaign, error)
	Update(ctx context.Context, id uuid.UUID, update model.CampaignUpdate) error
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.CampaignStatus) (bool, error)
	IncrementCounters(ctx context.Context, id uuid.UUID, sentDelta, failedDelta int) error

	CreateRecipients(ctx context.Context, recipients []*model.CampaignRecipient) error
	FindQueuedRecipients(ctx context.Context, campaignID uuid.UUID, limit int) ([]*model.CampaignRecipient, error)
	ClaimRecipient(ctx context.Context, id uuid.UUID) (bool, error)
	UpdateRecipient(ctx context.Context, id uuid.UUID, update model.RecipientUpdate) error
	QueueRecipients(ctx context.Context, campaignID uuid.UUID) (int64, error)
	CountRecipientsInStates(ctx context.Context, campaignID uuid.UUID, states []model.RecipientStatus) (int, error)
	CountRecipientsByStatus(ctx context.Context, campaignID uuid.UUID) (map[model.RecipientStatus]int, error)
}
