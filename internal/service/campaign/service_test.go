package campaign

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/botops-api/internal/model"
	apperrors "github.com/jwalitptl/botops-api/pkg/errors"
)

type fakeRepo struct {
	campaigns  map[uuid.UUID]*model.Campaign
	recipients []*model.CampaignRecipient
}

func newFakeRepo(campaigns ...*model.Campaign) *fakeRepo {
	r := &fakeRepo{campaigns: make(map[uuid.UUID]*model.Campaign)}
	for _, c := range campaigns {
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
		r.campaigns[c.ID] = c
	}
	return r
}

func (r *fakeRepo) Create(ctx context.Context, campaign *model.Campaign) error {
	campaign.ID = uuid.New()
	r.campaigns[campaign.ID] = campaign
	return nil
}

func (r *fakeRepo) Get(ctx context.Context, id uuid.UUID) (*model.Campaign, error) {
	if c, ok := r.campaigns[id]; ok {
		return c, nil
	}
	return nil, assert.AnError
}

func (r *fakeRepo) List(ctx context.Context, filter model.CampaignFilter) ([]*model.Campaign, error) {
	return nil, nil
}

func (r *fakeRepo) FindActive(ctx context.Context, now time.Time) ([]*model.Campaign, error) {
	return nil, nil
}

func (r *fakeRepo) Update(ctx context.Context, id uuid.UUID, update model.CampaignUpdate) error {
	return nil
}

func (r *fakeRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.CampaignStatus) (bool, error) {
	c, ok := r.campaigns[id]
	if !ok || c.Status != from {
		return false, nil
	}
	c.Status = to
	return true, nil
}

func (r *fakeRepo) IncrementCounters(ctx context.Context, id uuid.UUID, sentDelta, failedDelta int) error {
	return nil
}

func (r *fakeRepo) CreateRecipients(ctx context.Context, recipients []*model.CampaignRecipient) error {
	r.recipients = append(r.recipients, recipients...)
	return nil
}

func (r *fakeRepo) FindQueuedRecipients(ctx context.Context, campaignID uuid.UUID, limit int) ([]*model.CampaignRecipient, error) {
	return nil, nil
}

func (r *fakeRepo) ClaimRecipient(ctx context.Context, id uuid.UUID) (bool, error) {
	return false, nil
}

func (r *fakeRepo) UpdateRecipient(ctx context.Context, id uuid.UUID, update model.RecipientUpdate) error {
	return nil
}

func (r *fakeRepo) QueueRecipients(ctx context.Context, campaignID uuid.UUID) (int64, error) {
	var n int64
	for _, rec := range r.recipients {
		if rec.CampaignID == campaignID && rec.Status == model.RecipientStatusPending {
			rec.Status = model.RecipientStatusQueued
			n++
		}
	}
	return n, nil
}

func (r *fakeRepo) CountRecipientsInStates(ctx context.Context, campaignID uuid.UUID, states []model.RecipientStatus) (int, error) {
	return 0, nil
}

func (r *fakeRepo) CountRecipientsByStatus(ctx context.Context, campaignID uuid.UUID) (map[model.RecipientStatus]int, error) {
	counts := make(map[model.RecipientStatus]int)
	for _, rec := range r.recipients {
		if rec.CampaignID == campaignID {
			counts[rec.Status]++
		}
	}
	return counts, nil
}

func draftCampaign() *model.Campaign {
	return &model.Campaign{
		Name:    "launch",
		Content: "hi",
		Status:  model.CampaignStatusDraft,
	}
}

func TestCreateStartsAsDraft(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)

	cmp := &model.Campaign{Name: "launch", Content: "hi"}
	require.NoError(t, svc.Create(context.Background(), cmp))
	assert.Equal(t, model.CampaignStatusDraft, cmp.Status)
	assert.Equal(t, "text", cmp.ContentType)
}

func TestCreateRejectsNegativePacing(t *testing.T) {
	svc := NewService(newFakeRepo())
	cmp := &model.Campaign{Name: "launch", Content: "hi", DelayBetweenMs: -1}
	assert.Error(t, svc.Create(context.Background(), cmp))
}

func TestAddRecipientsOnlyOnDraft(t *testing.T) {
	ctx := context.Background()
	recipients := []*model.CampaignRecipient{
		{ChannelID: uuid.New(), ContactID: uuid.New()},
	}

	t.Run("draft accepts", func(t *testing.T) {
		cmp := draftCampaign()
		repo := newFakeRepo(cmp)
		svc := NewService(repo)

		require.NoError(t, svc.AddRecipients(ctx, cmp.ID, recipients))
		require.Len(t, repo.recipients, 1)
		assert.Equal(t, cmp.ID, repo.recipients[0].CampaignID)
		assert.Equal(t, model.RecipientStatusPending, repo.recipients[0].Status)
	})

	t.Run("queued rejects", func(t *testing.T) {
		cmp := draftCampaign()
		cmp.Status = model.CampaignStatusQueued
		svc := NewService(newFakeRepo(cmp))

		err := svc.AddRecipients(ctx, cmp.ID, recipients)
		var appErr *apperrors.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, apperrors.ErrConflict, appErr.Code)
	})
}

func TestQueuePromotesCampaignAndRecipients(t *testing.T) {
	ctx := context.Background()
	cmp := draftCampaign()
	repo := newFakeRepo(cmp)
	svc := NewService(repo)

	require.NoError(t, svc.AddRecipients(ctx, cmp.ID, []*model.CampaignRecipient{
		{ChannelID: uuid.New(), ContactID: uuid.New()},
		{ChannelID: uuid.New(), ContactID: uuid.New()},
	}))

	require.NoError(t, svc.Queue(ctx, cmp.ID))
	assert.Equal(t, model.CampaignStatusQueued, cmp.Status)
	for _, r := range repo.recipients {
		assert.Equal(t, model.RecipientStatusQueued, r.Status)
	}

	// A second queue attempt is a conflict, not a double enqueue.
	assert.Error(t, svc.Queue(ctx, cmp.ID))
}

func TestPauseResumeCancel(t *testing.T) {
	ctx := context.Background()

	t.Run("pause running", func(t *testing.T) {
		cmp := draftCampaign()
		cmp.Status = model.CampaignStatusRunning
		svc := NewService(newFakeRepo(cmp))

		require.NoError(t, svc.Pause(ctx, cmp.ID))
		assert.Equal(t, model.CampaignStatusPaused, cmp.Status)
	})

	t.Run("resume goes back to queued", func(t *testing.T) {
		cmp := draftCampaign()
		cmp.Status = model.CampaignStatusPaused
		svc := NewService(newFakeRepo(cmp))

		require.NoError(t, svc.Resume(ctx, cmp.ID))
		assert.Equal(t, model.CampaignStatusQueued, cmp.Status)
	})

	t.Run("cancel completed conflicts", func(t *testing.T) {
		cmp := draftCampaign()
		cmp.Status = model.CampaignStatusCompleted
		svc := NewService(newFakeRepo(cmp))

		assert.Error(t, svc.Cancel(ctx, cmp.ID))
		assert.Equal(t, model.CampaignStatusCompleted, cmp.Status)
	})
}
