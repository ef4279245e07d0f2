package dispatch

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/botops-api/internal/model"
	"github.com/jwalitptl/botops-api/internal/provider"
	"github.com/jwalitptl/botops-api/pkg/logger"
	"github.com/jwalitptl/botops-api/pkg/metrics"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestMessageDispatcher(store MessageStore, sender provider.Sender) *MessageDispatcher {
	d := NewMessageDispatcher(store, sender, nil, MessageDispatcherConfig{}, logger.Nop(), metrics.New("test"))
	d.now = func() time.Time { return testNow }
	return d
}

func pendingMessage(scheduleType model.ScheduleType) *model.ScheduledMessage {
	return &model.ScheduledMessage{
		ChannelID:    uuid.New(),
		Content:      "hello",
		ScheduledFor: testNow.Add(-time.Minute),
		ScheduleType: scheduleType,
		Status:       model.MessageStatusPending,
		MaxRetries:   3,
	}
}

func TestMessageDispatcherSendsDueOneTime(t *testing.T) {
	msg := pendingMessage(model.ScheduleTypeOneTime)
	store := newFakeMessageStore(msg)
	sender := &fakeSender{}

	res, err := newTestMessageDispatcher(store, sender).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Processed)
	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, 0, res.Failed)
	assert.Equal(t, 1, sender.callCount())

	stored := store.get(msg.ID)
	assert.Equal(t, model.MessageStatusSent, stored.Status)
	require.NotNil(t, stored.SentAt)
	assert.Equal(t, testNow, *stored.SentAt)
}

func TestMessageDispatcherIgnoresFutureMessages(t *testing.T) {
	msg := pendingMessage(model.ScheduleTypeOneTime)
	msg.ScheduledFor = testNow.Add(time.Hour)
	store := newFakeMessageStore(msg)
	sender := &fakeSender{}

	res, err := newTestMessageDispatcher(store, sender).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, res.Processed)
	assert.Equal(t, 0, sender.callCount())
	assert.Equal(t, model.MessageStatusPending, store.get(msg.ID).Status)
}

func TestMessageDispatcherSchedulesRetryOnFailure(t *testing.T) {
	msg := pendingMessage(model.ScheduleTypeOneTime)
	store := newFakeMessageStore(msg)
	sender := &fakeSender{errFor: func(provider.SendRequest) error {
		return fmt.Errorf("gateway unavailable")
	}}

	res, err := newTestMessageDispatcher(store, sender).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Processed)
	assert.Equal(t, 1, res.Failed)
	assert.Len(t, res.Errors, 1)

	stored := store.get(msg.ID)
	assert.Equal(t, model.MessageStatusPending, stored.Status)
	assert.Equal(t, 1, stored.RetryCount)
	require.NotNil(t, stored.NextRetryAt)
	assert.Equal(t, testNow.Add(5*time.Minute), *stored.NextRetryAt)
	require.NotNil(t, stored.Error)
	assert.Contains(t, *stored.Error, "gateway unavailable")
	// ScheduledFor stays put; the due query honors next_retry_at instead.
	assert.Equal(t, msg.ScheduledFor, stored.ScheduledFor)
}

func TestMessageDispatcherBacksOffBetweenRetries(t *testing.T) {
	msg := pendingMessage(model.ScheduleTypeOneTime)
	store := newFakeMessageStore(msg)
	sender := &fakeSender{errFor: func(provider.SendRequest) error {
		return fmt.Errorf("still down")
	}}
	d := newTestMessageDispatcher(store, sender)

	res, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)

	// Same instant again: the retry is not yet due, so nothing is picked up.
	res, err = d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Processed)
	assert.Equal(t, 1, sender.callCount())
}

func TestMessageDispatcherFailsAfterMaxRetries(t *testing.T) {
	msg := pendingMessage(model.ScheduleTypeOneTime)
	msg.RetryCount = 3
	store := newFakeMessageStore(msg)
	sender := &fakeSender{errFor: func(provider.SendRequest) error {
		return fmt.Errorf("permanent failure")
	}}

	res, err := newTestMessageDispatcher(store, sender).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Failed)
	stored := store.get(msg.ID)
	assert.Equal(t, model.MessageStatusFailed, stored.Status)
	assert.Equal(t, 3, stored.RetryCount)
	require.NotNil(t, stored.Error)
	assert.Contains(t, *stored.Error, "permanent failure")
}

func TestMessageDispatcherAdvancesRecurring(t *testing.T) {
	msg := pendingMessage(model.ScheduleTypeRecurring)
	msg.Recurrence = &model.RecurrenceSpec{Pattern: model.RecurrenceDaily, Interval: 1}
	store := newFakeMessageStore(msg)
	sender := &fakeSender{}

	res, err := newTestMessageDispatcher(store, sender).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)

	stored := store.get(msg.ID)
	assert.Equal(t, model.MessageStatusPending, stored.Status)
	assert.Equal(t, msg.ScheduledFor.AddDate(0, 0, 1), stored.ScheduledFor)
	assert.Equal(t, 1, stored.Recurrence.Occurrences)
	require.NotNil(t, stored.SentAt)
}

func TestMessageDispatcherCompletesRecurringAtEndDate(t *testing.T) {
	msg := pendingMessage(model.ScheduleTypeRecurring)
	end := msg.ScheduledFor.Add(time.Hour)
	msg.Recurrence = &model.RecurrenceSpec{Pattern: model.RecurrenceDaily, Interval: 1, EndDate: &end}
	store := newFakeMessageStore(msg)
	sender := &fakeSender{}

	res, err := newTestMessageDispatcher(store, sender).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)

	stored := store.get(msg.ID)
	assert.Equal(t, model.MessageStatusCompleted, stored.Status)
	assert.Equal(t, 1, stored.Recurrence.Occurrences)
}

func TestMessageDispatcherCompletesRecurringAtMaxOccurrences(t *testing.T) {
	msg := pendingMessage(model.ScheduleTypeRecurring)
	max := 2
	msg.Recurrence = &model.RecurrenceSpec{
		Pattern:        model.RecurrenceDaily,
		Interval:       1,
		MaxOccurrences: &max,
		Occurrences:    1,
	}
	store := newFakeMessageStore(msg)
	sender := &fakeSender{}

	_, err := newTestMessageDispatcher(store, sender).Run(context.Background())
	require.NoError(t, err)

	stored := store.get(msg.ID)
	assert.Equal(t, model.MessageStatusCompleted, stored.Status)
	assert.Equal(t, 2, stored.Recurrence.Occurrences)
}

func TestMessageDispatcherSkipsUnclaimedMessages(t *testing.T) {
	msg := pendingMessage(model.ScheduleTypeOneTime)
	store := newFakeMessageStore(msg)
	store.denied[msg.ID] = true
	sender := &fakeSender{}

	res, err := newTestMessageDispatcher(store, sender).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, res.Processed)
	assert.Equal(t, 0, sender.callCount())
	assert.Empty(t, res.Errors)
}

func TestMessageDispatcherSurfacesStoreFailure(t *testing.T) {
	store := newFakeMessageStore()
	store.findErr = fmt.Errorf("connection refused")

	_, err := newTestMessageDispatcher(store, &fakeSender{}).Run(context.Background())
	assert.Error(t, err)
}

func TestMessageDispatcherRespectsBatchSize(t *testing.T) {
	store := newFakeMessageStore(
		pendingMessage(model.ScheduleTypeOneTime),
		pendingMessage(model.ScheduleTypeOneTime),
		pendingMessage(model.ScheduleTypeOneTime),
	)
	sender := &fakeSender{}

	d := NewMessageDispatcher(store, sender, nil, MessageDispatcherConfig{BatchSize: 2}, logger.Nop(), metrics.New("test"))
	d.now = func() time.Time { return testNow }

	res, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Processed)
	assert.Equal(t, 2, sender.callCount())
}
