package dispatch

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/botops-api/internal/model"
	"github.com/jwalitptl/botops-api/internal/provider"
)

// In-memory store fakes so dispatcher behavior is testable without a
// database.

type fakeMessageStore struct {
	mu       sync.Mutex
	messages map[uuid.UUID]*model.ScheduledMessage
	findErr  error
	denied   map[uuid.UUID]bool
}

func newFakeMessageStore(msgs ...*model.ScheduledMessage) *fakeMessageStore {
	s := &fakeMessageStore{
		messages: make(map[uuid.UUID]*model.ScheduledMessage),
		denied:   make(map[uuid.UUID]bool),
	}
	for _, m := range msgs {
		if m.ID == uuid.Nil {
			m.ID = uuid.New()
		}
		copied := *m
		s.messages[m.ID] = &copied
	}
	return s
}

func (s *fakeMessageStore) FindDue(ctx context.Context, now time.Time, limit int) ([]*model.ScheduledMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}

	var due []*model.ScheduledMessage
	for _, m := range s.messages {
		if m.Status != model.MessageStatusPending {
			continue
		}
		if m.ScheduledFor.After(now) {
			continue
		}
		if m.NextRetryAt != nil && m.NextRetryAt.After(now) {
			continue
		}
		copied := *m
		due = append(due, &copied)
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ScheduledFor.Before(due[j].ScheduledFor) })
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *fakeMessageStore) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.denied[id] {
		return false, nil
	}
	m, ok := s.messages[id]
	if !ok || m.Status != model.MessageStatusPending {
		return false, nil
	}
	m.Status = model.MessageStatusProcessing
	return true, nil
}

func (s *fakeMessageStore) Update(ctx context.Context, id uuid.UUID, update model.ScheduledMessageUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return fmt.Errorf("scheduled message not found")
	}
	if update.Status != nil {
		m.Status = *update.Status
	}
	if update.ScheduledFor != nil {
		m.ScheduledFor = *update.ScheduledFor
	}
	if update.Recurrence != nil {
		m.Recurrence = update.Recurrence
	}
	if update.RetryCount != nil {
		m.RetryCount = *update.RetryCount
	}
	if update.LastRetryAt != nil {
		m.LastRetryAt = update.LastRetryAt
	}
	if update.NextRetryAt != nil {
		m.NextRetryAt = update.NextRetryAt
	}
	if update.SentAt != nil {
		m.SentAt = update.SentAt
	}
	if update.Error != nil {
		m.Error = update.Error
	}
	return nil
}

func (s *fakeMessageStore) get(id uuid.UUID) *model.ScheduledMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messages[id]
}

type fakeCampaignStore struct {
	mu         sync.Mutex
	campaigns  map[uuid.UUID]*model.Campaign
	recipients []*model.CampaignRecipient
	findErr    error
}

func newFakeCampaignStore(campaigns ...*model.Campaign) *fakeCampaignStore {
	s := &fakeCampaignStore{campaigns: make(map[uuid.UUID]*model.Campaign)}
	for _, c := range campaigns {
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
		s.campaigns[c.ID] = c
	}
	return s
}

func (s *fakeCampaignStore) addRecipients(campaignID uuid.UUID, n int) []*model.CampaignRecipient {
	s.mu.Lock()
	defer s.mu.Unlock()
	var added []*model.CampaignRecipient
	for i := 0; i < n; i++ {
		r := &model.CampaignRecipient{
			Base:       model.Base{ID: uuid.New()},
			CampaignID: campaignID,
			ChannelID:  uuid.New(),
			ContactID:  uuid.New(),
			Status:     model.RecipientStatusQueued,
		}
		s.recipients = append(s.recipients, r)
		added = append(added, r)
	}
	return added
}

func (s *fakeCampaignStore) FindActive(ctx context.Context, now time.Time) ([]*model.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}

	var active []*model.Campaign
	for _, c := range s.campaigns {
		if c.Status != model.CampaignStatusQueued && c.Status != model.CampaignStatusRunning {
			continue
		}
		if c.ScheduledFor != nil && c.ScheduledFor.After(now) {
			continue
		}
		copied := *c
		active = append(active, &copied)
	}
	return active, nil
}

func (s *fakeCampaignStore) UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.CampaignStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok || c.Status != from {
		return false, nil
	}
	c.Status = to
	return true, nil
}

func (s *fakeCampaignStore) Update(ctx context.Context, id uuid.UUID, update model.CampaignUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok {
		return fmt.Errorf("campaign not found")
	}
	if update.Status != nil {
		c.Status = *update.Status
	}
	if update.StartedAt != nil {
		c.StartedAt = update.StartedAt
	}
	if update.CompletedAt != nil {
		c.CompletedAt = update.CompletedAt
	}
	return nil
}

func (s *fakeCampaignStore) IncrementCounters(ctx context.Context, id uuid.UUID, sentDelta, failedDelta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok {
		return fmt.Errorf("campaign not found")
	}
	c.SentCount += sentDelta
	c.FailedCount += failedDelta
	return nil
}

func (s *fakeCampaignStore) FindQueuedRecipients(ctx context.Context, campaignID uuid.UUID, limit int) ([]*model.CampaignRecipient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var queued []*model.CampaignRecipient
	for _, r := range s.recipients {
		if r.CampaignID != campaignID || r.Status != model.RecipientStatusQueued {
			continue
		}
		copied := *r
		queued = append(queued, &copied)
		if len(queued) == limit {
			break
		}
	}
	return queued, nil
}

func (s *fakeCampaignStore) ClaimRecipient(ctx context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.recipients {
		if r.ID == id {
			if r.Status != model.RecipientStatusQueued {
				return false, nil
			}
			r.Status = model.RecipientStatusSending
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeCampaignStore) UpdateRecipient(ctx context.Context, id uuid.UUID, update model.RecipientUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.recipients {
		if r.ID != id {
			continue
		}
		if update.Status != nil {
			r.Status = *update.Status
		}
		if update.SentAt != nil {
			r.SentAt = update.SentAt
		}
		if update.FailedAt != nil {
			r.FailedAt = update.FailedAt
		}
		if update.ExternalMessageID != nil {
			r.ExternalMessageID = update.ExternalMessageID
		}
		if update.FailureReason != nil {
			r.FailureReason = update.FailureReason
		}
		return nil
	}
	return fmt.Errorf("recipient not found")
}

func (s *fakeCampaignStore) CountRecipientsInStates(ctx context.Context, campaignID uuid.UUID, states []model.RecipientStatus) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, r := range s.recipients {
		if r.CampaignID != campaignID {
			continue
		}
		for _, state := range states {
			if r.Status == state {
				count++
				break
			}
		}
	}
	return count, nil
}

func (s *fakeCampaignStore) getCampaign(id uuid.UUID) *model.Campaign {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.campaigns[id]
}

func (s *fakeCampaignStore) getRecipient(id uuid.UUID) *model.CampaignRecipient {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.recipients {
		if r.ID == id {
			return r
		}
	}
	return nil
}

type fakeSender struct {
	mu     sync.Mutex
	calls  []provider.SendRequest
	times  []time.Time
	errFor func(req provider.SendRequest) error
}

func (s *fakeSender) Send(ctx context.Context, req provider.SendRequest) (*provider.SendResult, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	s.times = append(s.times, time.Now())
	n := len(s.calls)
	s.mu.Unlock()

	if s.errFor != nil {
		if err := s.errFor(req); err != nil {
			return nil, err
		}
	}
	return &provider.SendResult{ExternalID: fmt.Sprintf("ext-%d", n)}, nil
}

func (s *fakeSender) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}
