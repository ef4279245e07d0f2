package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "DRAFT"
	CampaignStatusScheduled CampaignStatus = "SCHEDULED"
	CampaignStatusQueued    CampaignStatus = "QUEUED"
	CampaignStatusRunning   CampaignStatus = "RUNNING"
	CampaignStatusPaused    CampaignStatus = "PAUSED"
	CampaignStatusCompleted CampaignStatus = "COMPLETED"
	CampaignStatusCancelled CampaignStatus = "CANCELLED"
	CampaignStatusFailed    CampaignStatus = "FAILED"
)

type RecipientStatus string

const (
	RecipientStatusPending   RecipientStatus = "PENDING"
	RecipientStatusQueued    RecipientStatus = "QUEUED"
	RecipientStatusSending   RecipientStatus = "SENDING"
	RecipientStatusSent      RecipientStatus = "SENT"
	RecipientStatusDelivered RecipientStatus = "DELIVERED"
	RecipientStatusRead      RecipientStatus = "READ"
	RecipientStatusResponded RecipientStatus = "RESPONDED"
	RecipientStatusFailed    RecipientStatus = "FAILED"
	RecipientStatusSkipped   RecipientStatus = "SKIPPED"
	RecipientStatusOptOut    RecipientStatus = "OPT_OUT"
)

// ActiveRecipientStates are the states that keep a campaign from completing.
var ActiveRecipientStates = []RecipientStatus{
	RecipientStatusPending,
	RecipientStatusQueued,
	RecipientStatusSending,
}

// Campaign is a bulk-send job targeting many recipients. sent_count and
// failed_count only ever grow during a run; completion is derived from
// recipient state, never asserted independently.
type Campaign struct {
	Base
	OrganizationID    uuid.UUID      `json:"organization_id" db:"organization_id"`
	Name              string         `json:"name" db:"name"`
	Content           string         `json:"content" db:"content"`
	ContentType       string         `json:"content_type" db:"content_type"`
	Attachments       pq.StringArray `json:"attachments,omitempty" db:"attachments"`
	ScheduledFor      *time.Time     `json:"scheduled_for,omitempty" db:"scheduled_for"`
	Status            CampaignStatus `json:"status" db:"status"`
	MessagesPerMinute int            `json:"messages_per_minute" db:"messages_per_minute"`
	DelayBetweenMs    int            `json:"delay_between_ms" db:"delay_between_ms"`
	SentCount         int            `json:"sent_count" db:"sent_count"`
	FailedCount       int            `json:"failed_count" db:"failed_count"`
	StartedAt         *time.Time     `json:"started_at,omitempty" db:"started_at"`
	CompletedAt       *time.Time     `json:"completed_at,omitempty" db:"completed_at"`
}

// CampaignRecipient is one addressee within a campaign, mutated only by the
// campaign dispatcher once the campaign is queued.
type CampaignRecipient struct {
	Base
	CampaignID        uuid.UUID       `json:"campaign_id" db:"campaign_id"`
	ChannelID         uuid.UUID       `json:"channel_id" db:"channel_id"`
	ContactID         uuid.UUID       `json:"contact_id" db:"contact_id"`
	Status            RecipientStatus `json:"status" db:"status"`
	SentAt            *time.Time      `json:"sent_at,omitempty" db:"sent_at"`
	FailedAt          *time.Time      `json:"failed_at,omitempty" db:"failed_at"`
	ExternalMessageID *string         `json:"external_message_id,omitempty" db:"external_message_id"`
	FailureReason     *string         `json:"failure_reason,omitempty" db:"failure_reason"`
}

// CampaignUpdate is a partial update applied atomically by the store.
type CampaignUpdate struct {
	Status      *CampaignStatus
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// RecipientUpdate is a partial update applied atomically by the store.
type RecipientUpdate struct {
	Status            *RecipientStatus
	SentAt            *time.Time
	FailedAt          *time.Time
	ExternalMessageID *string
	FailureReason     *string
}

// CampaignStats is the derived per-campaign progress view served by the API.
type CampaignStats struct {
	CampaignID  uuid.UUID               `json:"campaign_id"`
	Status      CampaignStatus          `json:"status"`
	SentCount   int                     `json:"sent_count"`
	FailedCount int                     `json:"failed_count"`
	Recipients  map[RecipientStatus]int `json:"recipients"`
	StartedAt   *time.Time              `json:"started_at,omitempty"`
	CompletedAt *time.Time              `json:"completed_at,omitempty"`
}

type CampaignFilter struct {
	OrganizationID uuid.UUID
	Status         CampaignStatus
	Pagination
}
