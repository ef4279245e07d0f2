package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jwalitptl/botops-api/internal/model"
	"github.com/jwalitptl/botops-api/internal/repository"
)

type campaignRepository struct {
	BaseRepository
}

func NewCampaignRepository(base BaseRepository) repository.CampaignRepository {
	return &campaignRepository{base}
}

func (r *campaignRepository) Create(ctx context.Context, campaign *model.Campaign) error {
	if campaign == nil {
		return fmt.Errorf("campaign cannot be nil")
	}

	query := `
		INSERT INTO campaigns (
			id, organization_id, name, content, content_type, attachments,
			scheduled_for, status, messages_per_minute, delay_between_ms,
			sent_count, failed_count, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	campaign.ID = uuid.New()
	campaign.CreatedAt = time.Now()
	campaign.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		campaign.ID,
		campaign.OrganizationID,
		campaign.Name,
		campaign.Content,
		campaign.ContentType,
		campaign.Attachments,
		campaign.ScheduledFor,
		campaign.Status,
		campaign.MessagesPerMinute,
		campaign.DelayBetweenMs,
		campaign.SentCount,
		campaign.FailedCount,
		campaign.CreatedAt,
		campaign.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create campaign: %w", err)
	}
	return nil
}

func (r *campaignRepository) Get(ctx context.Context, id uuid.UUID) (*model.Campaign, error) {
	query := `
		SELECT *
		FROM campaigns
		WHERE id = $1 AND deleted_at IS NULL
	`
	var campaign model.Campaign
	if err := r.db.GetContext(ctx, &campaign, query, id); err != nil {
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}
	return &campaign, nil
}

func (r *campaignRepository) List(ctx context.Context, filter model.CampaignFilter) ([]*model.Campaign, error) {
	query := `
		SELECT *
		FROM campaigns
		WHERE organization_id = $1 AND deleted_at IS NULL
	`
	args := []interface{}{filter.OrganizationID}

	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}

	query += " ORDER BY created_at DESC"

	if filter.PageSize > 0 {
		args = append(args, filter.PageSize)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
		if filter.Page > 1 {
			args = append(args, (filter.Page-1)*filter.PageSize)
			query += fmt.Sprintf(" OFFSET $%d", len(args))
		}
	}

	var campaigns []*model.Campaign
	if err := r.db.SelectContext(ctx, &campaigns, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	return campaigns, nil
}

// FindActive returns campaigns the dispatcher should advance: QUEUED or
// RUNNING, with no schedule or a schedule that has arrived.
func (r *campaignRepository) FindActive(ctx context.Context, now time.Time) ([]*model.Campaign, error) {
	query := `
		SELECT *
		FROM campaigns
		WHERE status IN ($1, $2)
		AND (scheduled_for IS NULL OR scheduled_for <= $3)
		AND deleted_at IS NULL
		ORDER BY created_at ASC
	`
	var campaigns []*model.Campaign
	err := r.db.SelectContext(ctx, &campaigns, query,
		model.CampaignStatusQueued, model.CampaignStatusRunning, now)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find active campaigns: %w", err)
	}
	return campaigns, nil
}

func (r *campaignRepository) Update(ctx context.Context, id uuid.UUID, update model.CampaignUpdate) error {
	sets := []string{"updated_at = NOW()"}
	args := []interface{}{}

	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if update.Status != nil {
		add("status", *update.Status)
	}
	if update.StartedAt != nil {
		add("started_at", *update.StartedAt)
	}
	if update.CompletedAt != nil {
		add("completed_at", *update.CompletedAt)
	}

	args = append(args, id)
	query := fmt.Sprintf(
		"UPDATE campaigns SET %s WHERE id = $%d",
		strings.Join(sets, ", "), len(args),
	)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update campaign: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("campaign not found")
	}
	return nil
}

func (r *campaignRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.CampaignStatus) (bool, error) {
	query := `
		UPDATE campaigns
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`
	result, err := r.db.ExecContext(ctx, query, to, id, from)
	if err != nil {
		return false, fmt.Errorf("failed to update campaign status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

// IncrementCounters bumps the running counters atomically so two overlapping
// worker runs never lose an increment.
func (r *campaignRepository) IncrementCounters(ctx context.Context, id uuid.UUID, sentDelta, failedDelta int) error {
	query := `
		UPDATE campaigns
		SET sent_count = sent_count + $1,
			failed_count = failed_count + $2,
			updated_at = NOW()
		WHERE id = $3
	`
	_, err := r.db.ExecContext(ctx, query, sentDelta, failedDelta, id)
	if err != nil {
		return fmt.Errorf("failed to increment campaign counters: %w", err)
	}
	return nil
}

func (r *campaignRepository) CreateRecipients(ctx context.Context, recipients []*model.CampaignRecipient) error {
	if len(recipients) == 0 {
		return nil
	}

	query := `
		INSERT INTO campaign_recipients (
			id, campaign_id, channel_id, contact_id, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		for _, rec := range recipients {
			rec.ID = uuid.New()
			rec.CreatedAt = time.Now()
			rec.UpdatedAt = time.Now()
			if rec.Status == "" {
				rec.Status = model.RecipientStatusPending
			}
			if _, err := tx.ExecContext(ctx, query,
				rec.ID,
				rec.CampaignID,
				rec.ChannelID,
				rec.ContactID,
				rec.Status,
				rec.CreatedAt,
				rec.UpdatedAt,
			); err != nil {
				return fmt.Errorf("failed to create recipient: %w", err)
			}
		}
		return nil
	})
}

func (r *campaignRepository) FindQueuedRecipients(ctx context.Context, campaignID uuid.UUID, limit int) ([]*model.CampaignRecipient, error) {
	query := `
		SELECT *
		FROM campaign_recipients
		WHERE campaign_id = $1 AND status = $2
		ORDER BY created_at ASC
		LIMIT $3
	`
	var recipients []*model.CampaignRecipient
	err := r.db.SelectContext(ctx, &recipients, query, campaignID, model.RecipientStatusQueued, limit)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find queued recipients: %w", err)
	}
	return recipients, nil
}

// ClaimRecipient conditionally moves a recipient from QUEUED to SENDING.
func (r *campaignRepository) ClaimRecipient(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE campaign_recipients
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`
	result, err := r.db.ExecContext(ctx, query,
		model.RecipientStatusSending, id, model.RecipientStatusQueued)
	if err != nil {
		return false, fmt.Errorf("failed to claim recipient: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

func (r *campaignRepository) UpdateRecipient(ctx context.Context, id uuid.UUID, update model.RecipientUpdate) error {
	sets := []string{"updated_at = NOW()"}
	args := []interface{}{}

	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if update.Status != nil {
		add("status", *update.Status)
	}
	if update.SentAt != nil {
		add("sent_at", *update.SentAt)
	}
	if update.FailedAt != nil {
		add("failed_at", *update.FailedAt)
	}
	if update.ExternalMessageID != nil {
		add("external_message_id", *update.ExternalMessageID)
	}
	if update.FailureReason != nil {
		add("failure_reason", *update.FailureReason)
	}

	args = append(args, id)
	query := fmt.Sprintf(
		"UPDATE campaign_recipients SET %s WHERE id = $%d",
		strings.Join(sets, ", "), len(args),
	)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update recipient: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("recipient not found")
	}
	return nil
}

// QueueRecipients moves a campaign's PENDING recipients to QUEUED when the
// campaign itself is queued.
func (r *campaignRepository) QueueRecipients(ctx context.Context, campaignID uuid.UUID) (int64, error) {
	query := `
		UPDATE campaign_recipients
		SET status = $1, updated_at = NOW()
		WHERE campaign_id = $2 AND status = $3
	`
	result, err := r.db.ExecContext(ctx, query,
		model.RecipientStatusQueued, campaignID, model.RecipientStatusPending)
	if err != nil {
		return 0, fmt.Errorf("failed to queue recipients: %w", err)
	}
	return result.RowsAffected()
}

func (r *campaignRepository) CountRecipientsInStates(ctx context.Context, campaignID uuid.UUID, states []model.RecipientStatus) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM campaign_recipients
		WHERE campaign_id = $1 AND status = ANY($2)
	`
	strStates := make([]string, len(states))
	for i, s := range states {
		strStates[i] = string(s)
	}

	var count int
	err := r.db.GetContext(ctx, &count, query, campaignID, pq.Array(strStates))
	if err != nil {
		return 0, fmt.Errorf("failed to count recipients: %w", err)
	}
	return count, nil
}

func (r *campaignRepository) CountRecipientsByStatus(ctx context.Context, campaignID uuid.UUID) (map[model.RecipientStatus]int, error) {
	query := `
		SELECT status, COUNT(*) AS count
		FROM campaign_recipients
		WHERE campaign_id = $1
		GROUP BY status
	`
	rows := []struct {
		Status model.RecipientStatus `db:"status"`
		Count  int                   `db:"count"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query, campaignID); err != nil {
		return nil, fmt.Errorf("failed to count recipients by status: %w", err)
	}

	counts := make(map[model.RecipientStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
