package dispatch

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/botops-api/internal/model"
	"github.com/jwalitptl/botops-api/pkg/logger"
)

func newTestWorker(msgStore *fakeMessageStore, cmpStore *fakeCampaignStore, sender *fakeSender) *Worker {
	return NewWorker(
		newTestMessageDispatcher(msgStore, sender),
		newTestCampaignDispatcher(cmpStore, sender),
		logger.Nop(),
	)
}

func TestWorkerRunsBothDispatchers(t *testing.T) {
	msg := pendingMessage(model.ScheduleTypeOneTime)
	msgStore := newFakeMessageStore(msg)

	cmp := queuedCampaign()
	cmpStore := newFakeCampaignStore(cmp)
	cmpStore.addRecipients(cmp.ID, 2)

	sender := &fakeSender{}
	summary := newTestWorker(msgStore, cmpStore, sender).RunDispatchCycle(context.Background())

	assert.Equal(t, 1, summary.ScheduledMessages.Sent)
	assert.Equal(t, 2, summary.Campaigns.MessagesSent)
	assert.Equal(t, 3, sender.callCount())
	assert.GreaterOrEqual(t, summary.DurationMs, int64(0))

	assert.Equal(t, model.MessageStatusSent, msgStore.get(msg.ID).Status)
	assert.Equal(t, model.CampaignStatusCompleted, cmpStore.getCampaign(cmp.ID).Status)
}

func TestWorkerDispatchersFailIndependently(t *testing.T) {
	msgStore := newFakeMessageStore()
	msgStore.findErr = fmt.Errorf("messages table unavailable")

	cmp := queuedCampaign()
	cmpStore := newFakeCampaignStore(cmp)
	cmpStore.addRecipients(cmp.ID, 1)

	sender := &fakeSender{}
	summary := newTestWorker(msgStore, cmpStore, sender).RunDispatchCycle(context.Background())

	require.Len(t, summary.ScheduledMessages.Errors, 1)
	assert.Equal(t, 0, summary.ScheduledMessages.Processed)
	assert.Equal(t, 1, summary.Campaigns.MessagesSent)
	assert.Equal(t, model.CampaignStatusCompleted, cmpStore.getCampaign(cmp.ID).Status)
}

func TestWorkerCycleIsIdempotent(t *testing.T) {
	msg := pendingMessage(model.ScheduleTypeOneTime)
	msgStore := newFakeMessageStore(msg)

	cmp := queuedCampaign()
	cmpStore := newFakeCampaignStore(cmp)
	cmpStore.addRecipients(cmp.ID, 1)

	sender := &fakeSender{}
	w := newTestWorker(msgStore, cmpStore, sender)

	first := w.RunDispatchCycle(context.Background())
	assert.Equal(t, 1, first.ScheduledMessages.Processed)
	assert.Equal(t, 1, first.Campaigns.MessagesSent)

	// Nothing is due anymore; a second cycle is a no-op.
	second := w.RunDispatchCycle(context.Background())
	assert.Equal(t, 0, second.ScheduledMessages.Processed)
	assert.Equal(t, 0, second.Campaigns.MessagesSent)
	assert.Equal(t, 2, sender.callCount())
}
