package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/botops-api/internal/model"
	"github.com/jwalitptl/botops-api/internal/repository"
)

type scheduledMessageRepository struct {
	BaseRepository
}

func NewScheduledMessageRepository(base BaseRepository) repository.ScheduledMessageRepository {
	return &scheduledMessageRepository{base}
}

func (r *scheduledMessageRepository) Create(ctx context.Context, msg *model.ScheduledMessage) error {
	if msg == nil {
		return fmt.Errorf("message cannot be nil")
	}

	query := `
		INSERT INTO scheduled_messages (
			id, organization_id, channel_id, contact_id, conversation_id,
			content, content_type, attachments, scheduled_for, schedule_type,
			recurrence, trigger_spec, status, retry_count, max_retries,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17
		)
	`
	msg.ID = uuid.New()
	msg.CreatedAt = time.Now()
	msg.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		msg.ID,
		msg.OrganizationID,
		msg.ChannelID,
		msg.ContactID,
		msg.ConversationID,
		msg.Content,
		msg.ContentType,
		msg.Attachments,
		msg.ScheduledFor,
		msg.ScheduleType,
		msg.Recurrence,
		msg.Trigger,
		msg.Status,
		msg.RetryCount,
		msg.MaxRetries,
		msg.CreatedAt,
		msg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create scheduled message: %w", err)
	}
	return nil
}

func (r *scheduledMessageRepository) Get(ctx context.Context, id uuid.UUID) (*model.ScheduledMessage, error) {
	query := `
		SELECT *
		FROM scheduled_messages
		WHERE id = $1 AND deleted_at IS NULL
	`
	var msg model.ScheduledMessage
	err := r.db.GetContext(ctx, &msg, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get scheduled message: %w", err)
	}
	return &msg, nil
}

func (r *scheduledMessageRepository) List(ctx context.Context, filter model.ScheduledMessageFilter) ([]*model.ScheduledMessage, error) {
	query := `
		SELECT *
		FROM scheduled_messages
		WHERE organization_id = $1 AND deleted_at IS NULL
	`
	args := []interface{}{filter.OrganizationID}

	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.ScheduleType != "" {
		args = append(args, filter.ScheduleType)
		query += fmt.Sprintf(" AND schedule_type = $%d", len(args))
	}

	query += " ORDER BY scheduled_for ASC"

	if filter.PageSize > 0 {
		args = append(args, filter.PageSize)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
		if filter.Page > 1 {
			args = append(args, (filter.Page-1)*filter.PageSize)
			query += fmt.Sprintf(" OFFSET $%d", len(args))
		}
	}

	var msgs []*model.ScheduledMessage
	if err := r.db.SelectContext(ctx, &msgs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list scheduled messages: %w", err)
	}
	return msgs, nil
}

// FindDue returns PENDING messages whose scheduled time has arrived and whose
// retry hold-off (if any) has elapsed, oldest first.
func (r *scheduledMessageRepository) FindDue(ctx context.Context, now time.Time, limit int) ([]*model.ScheduledMessage, error) {
	query := `
		SELECT *
		FROM scheduled_messages
		WHERE status = $1
		AND scheduled_for <= $2
		AND (next_retry_at IS NULL OR next_retry_at <= $2)
		AND deleted_at IS NULL
		ORDER BY scheduled_for ASC
		LIMIT $3
	`
	var msgs []*model.ScheduledMessage
	err := r.db.SelectContext(ctx, &msgs, query, model.MessageStatusPending, now, limit)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find due messages: %w", err)
	}
	return msgs, nil
}

// Claim conditionally moves a message from PENDING to PROCESSING. A zero-row
// update means another worker already claimed it.
func (r *scheduledMessageRepository) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.UpdateStatus(ctx, id, model.MessageStatusPending, model.MessageStatusProcessing)
}

func (r *scheduledMessageRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.MessageStatus) (bool, error) {
	query := `
		UPDATE scheduled_messages
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`
	result, err := r.db.ExecContext(ctx, query, to, id, from)
	if err != nil {
		return false, fmt.Errorf("failed to update message status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

func (r *scheduledMessageRepository) Update(ctx context.Context, id uuid.UUID, update model.ScheduledMessageUpdate) error {
	sets := []string{"updated_at = NOW()"}
	args := []interface{}{}

	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if update.Status != nil {
		add("status", *update.Status)
	}
	if update.ScheduledFor != nil {
		add("scheduled_for", *update.ScheduledFor)
	}
	if update.Recurrence != nil {
		add("recurrence", *update.Recurrence)
	}
	if update.RetryCount != nil {
		add("retry_count", *update.RetryCount)
	}
	if update.LastRetryAt != nil {
		add("last_retry_at", *update.LastRetryAt)
	}
	if update.NextRetryAt != nil {
		add("next_retry_at", *update.NextRetryAt)
	}
	if update.SentAt != nil {
		add("sent_at", *update.SentAt)
	}
	if update.Error != nil {
		add("error", *update.Error)
	}

	args = append(args, id)
	query := fmt.Sprintf(
		"UPDATE scheduled_messages SET %s WHERE id = $%d",
		strings.Join(sets, ", "), len(args),
	)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update scheduled message: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("scheduled message not found")
	}
	return nil
}
