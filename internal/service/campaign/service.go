package campaign

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/jwalitptl/botops-api/internal/model"
	"github.com/jwalitptl/botops-api/internal/repository"
	apperrors "github.com/jwalitptl/botops-api/pkg/errors"
)

const (
	statsCacheTTL     = 30 * time.Second
	statsCacheCleanup = 5 * time.Minute
)

// Service owns campaign setup and administrative transitions; once a campaign
// is QUEUED the dispatch worker takes over.
type Service struct {
	repo       repository.CampaignRepository
	statsCache *gocache.Cache
}

func NewService(repo repository.CampaignRepository) *Service {
	return &Service{
		repo:       repo,
		statsCache: gocache.New(statsCacheTTL, statsCacheCleanup),
	}
}

func (s *Service) Create(ctx context.Context, campaign *model.Campaign) error {
	if campaign.Name == "" {
		return apperrors.BadRequest("campaign name is required", nil)
	}
	if campaign.Content == "" {
		return apperrors.BadRequest("campaign content is required", nil)
	}
	if campaign.DelayBetweenMs < 0 || campaign.MessagesPerMinute < 0 {
		return apperrors.BadRequest("pacing config cannot be negative", nil)
	}

	campaign.Status = model.CampaignStatusDraft
	campaign.SentCount = 0
	campaign.FailedCount = 0
	if campaign.ContentType == "" {
		campaign.ContentType = "text"
	}

	if err := s.repo.Create(ctx, campaign); err != nil {
		return fmt.Errorf("failed to create campaign: %w", err)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Campaign, error) {
	campaign, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, apperrors.NotFound("campaign", err)
	}
	return campaign, nil
}

func (s *Service) List(ctx context.Context, filter model.CampaignFilter) ([]*model.Campaign, error) {
	return s.repo.List(ctx, filter)
}

// AddRecipients materializes part of a campaign's audience. Only DRAFT
// campaigns accept new recipients.
func (s *Service) AddRecipients(ctx context.Context, campaignID uuid.UUID, recipients []*model.CampaignRecipient) error {
	campaign, err := s.repo.Get(ctx, campaignID)
	if err != nil {
		return apperrors.NotFound("campaign", err)
	}
	if campaign.Status != model.CampaignStatusDraft {
		return apperrors.Conflict("recipients can only be added to draft campaigns", nil)
	}

	for _, r := range recipients {
		r.CampaignID = campaignID
		r.Status = model.RecipientStatusPending
	}
	if err := s.repo.CreateRecipients(ctx, recipients); err != nil {
		return fmt.Errorf("failed to add recipients: %w", err)
	}
	return nil
}

// Queue hands a campaign to the dispatch worker: the campaign goes QUEUED and
// its pending recipients become eligible for the next run.
func (s *Service) Queue(ctx context.Context, id uuid.UUID) error {
	ok, err := s.repo.UpdateStatus(ctx, id, model.CampaignStatusDraft, model.CampaignStatusQueued)
	if err != nil {
		return fmt.Errorf("failed to queue campaign: %w", err)
	}
	if !ok {
		return apperrors.Conflict("campaign is not a draft", nil)
	}

	if _, err := s.repo.QueueRecipients(ctx, id); err != nil {
		return fmt.Errorf("failed to queue recipients: %w", err)
	}
	return nil
}

// Pause stops the dispatcher from picking the campaign up on its next run;
// a batch already in flight is not interrupted.
func (s *Service) Pause(ctx context.Context, id uuid.UUID) error {
	for _, from := range []model.CampaignStatus{model.CampaignStatusRunning, model.CampaignStatusQueued} {
		ok, err := s.repo.UpdateStatus(ctx, id, from, model.CampaignStatusPaused)
		if err != nil {
			return fmt.Errorf("failed to pause campaign: %w", err)
		}
		if ok {
			return nil
		}
	}
	return apperrors.Conflict("campaign is not queued or running", nil)
}

func (s *Service) Resume(ctx context.Context, id uuid.UUID) error {
	ok, err := s.repo.UpdateStatus(ctx, id, model.CampaignStatusPaused, model.CampaignStatusQueued)
	if err != nil {
		return fmt.Errorf("failed to resume campaign: %w", err)
	}
	if !ok {
		return apperrors.Conflict("campaign is not paused", nil)
	}
	return nil
}

func (s *Service) Cancel(ctx context.Context, id uuid.UUID) error {
	for _, from := range []model.CampaignStatus{
		model.CampaignStatusDraft,
		model.CampaignStatusQueued,
		model.CampaignStatusRunning,
		model.CampaignStatusPaused,
	} {
		ok, err := s.repo.UpdateStatus(ctx, id, from, model.CampaignStatusCancelled)
		if err != nil {
			return fmt.Errorf("failed to cancel campaign: %w", err)
		}
		if ok {
			return nil
		}
	}
	return apperrors.Conflict("campaign is already finished", nil)
}

// Stats derives campaign progress from recipient state. Results are cached
// briefly because the dashboard polls this endpoint aggressively.
func (s *Service) Stats(ctx context.Context, id uuid.UUID) (*model.CampaignStats, error) {
	if cached, ok := s.statsCache.Get(id.String()); ok {
		return cached.(*model.CampaignStats), nil
	}

	campaign, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, apperrors.NotFound("campaign", err)
	}

	counts, err := s.repo.CountRecipientsByStatus(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to derive campaign stats: %w", err)
	}

	stats := &model.CampaignStats{
		CampaignID:  campaign.ID,
		Status:      campaign.Status,
		SentCount:   campaign.SentCount,
		FailedCount: campaign.FailedCount,
		Recipients:  counts,
		StartedAt:   campaign.StartedAt,
		CompletedAt: campaign.CompletedAt,
	}
	s.statsCache.Set(id.String(), stats, gocache.DefaultExpiration)
	return stats, nil
}
