package scheduledmessage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/botops-api/internal/dispatch"
	"github.com/jwalitptl/botops-api/internal/model"
	"github.com/jwalitptl/botops-api/internal/repository"
	apperrors "github.com/jwalitptl/botops-api/pkg/errors"
)

const defaultContentType = "text"

// Service owns the operator-facing lifecycle of scheduled messages: creation
// and the administrative transitions. The dispatch worker owns everything
// else.
type Service struct {
	repo              repository.ScheduledMessageRepository
	defaultMaxRetries int
}

func NewService(repo repository.ScheduledMessageRepository, defaultMaxRetries int) *Service {
	if defaultMaxRetries <= 0 {
		defaultMaxRetries = 3
	}
	return &Service{
		repo:              repo,
		defaultMaxRetries: defaultMaxRetries,
	}
}

func (s *Service) Create(ctx context.Context, msg *model.ScheduledMessage) error {
	if err := s.validate(msg); err != nil {
		return apperrors.BadRequest("invalid scheduled message", err)
	}

	msg.Status = model.MessageStatusPending
	msg.RetryCount = 0
	if msg.MaxRetries <= 0 {
		msg.MaxRetries = s.defaultMaxRetries
	}
	if msg.ContentType == "" {
		msg.ContentType = defaultContentType
	}

	if err := s.repo.Create(ctx, msg); err != nil {
		return fmt.Errorf("failed to create scheduled message: %w", err)
	}
	return nil
}

func (s *Service) validate(msg *model.ScheduledMessage) error {
	if msg.Content == "" {
		return fmt.Errorf("content is required")
	}
	if msg.ScheduledFor.IsZero() {
		return fmt.Errorf("scheduled_for is required")
	}

	switch msg.ScheduleType {
	case model.ScheduleTypeOneTime:
	case model.ScheduleTypeRecurring:
		if err := dispatch.ValidateRecurrence(msg.Recurrence); err != nil {
			return err
		}
	case model.ScheduleTypeTriggerBased:
		if msg.Trigger == nil || msg.Trigger.Event == "" {
			return fmt.Errorf("trigger spec is required for trigger-based messages")
		}
	default:
		return fmt.Errorf("unknown schedule type %q", msg.ScheduleType)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.ScheduledMessage, error) {
	msg, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, apperrors.NotFound("scheduled message", err)
	}
	return msg, nil
}

func (s *Service) List(ctx context.Context, filter model.ScheduledMessageFilter) ([]*model.ScheduledMessage, error) {
	return s.repo.List(ctx, filter)
}

// Cancel takes a message out of rotation. Only PENDING messages can be
// cancelled; a message mid-send finishes its current attempt first.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) error {
	return s.transition(ctx, id, model.MessageStatusPending, model.MessageStatusCancelled)
}

func (s *Service) Pause(ctx context.Context, id uuid.UUID) error {
	return s.transition(ctx, id, model.MessageStatusPending, model.MessageStatusPaused)
}

func (s *Service) Resume(ctx context.Context, id uuid.UUID) error {
	return s.transition(ctx, id, model.MessageStatusPaused, model.MessageStatusPending)
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, from, to model.MessageStatus) error {
	ok, err := s.repo.UpdateStatus(ctx, id, from, to)
	if err != nil {
		return fmt.Errorf("failed to update message status: %w", err)
	}
	if !ok {
		return apperrors.Conflict(
			fmt.Sprintf("message is not %s", from),
			fmt.Errorf("transition %s -> %s rejected", from, to),
		)
	}
	return nil
}

// Reschedule moves a PENDING message to a new time.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, at time.Time) error {
	msg, err := s.repo.Get(ctx, id)
	if err != nil {
		return apperrors.NotFound("scheduled message", err)
	}
	if msg.Status != model.MessageStatusPending {
		return apperrors.Conflict("only pending messages can be rescheduled", nil)
	}
	return s.repo.Update(ctx, id, model.ScheduledMessageUpdate{ScheduledFor: &at})
}
