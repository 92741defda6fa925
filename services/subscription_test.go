package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/citada/supplier-portal/models"
	"github.com/citada/supplier-portal/realtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() SubscriptionConfig {
	return SubscriptionConfig{
		DebounceDelay:   30 * time.Millisecond,
		PollInterval:    time.Hour,
		PollRetryBase:   5 * time.Millisecond,
		PollMaxAttempts: 3,
		FetchTimeout:    time.Second,
		Reconnect: BackoffConfig{
			InitialDelay: 10 * time.Millisecond,
			Multiplier:   2,
			MaxDelay:     40 * time.Millisecond,
			MaxAttempt:   5,
		},
	}
}

var messageTopic = Topic{
	Channel:        "messages:E1:A1:s@x.com",
	Filter:         realtime.ChangeFilter{Table: "messages", EventID: "E1"},
	BroadcastEvent: realtime.EventNewMessage,
}

func countingFetch(calls *atomic.Int32, rows []models.Message) FetchFunc[models.Message] {
	return func(context.Context) ([]models.Message, error) {
		calls.Add(1)
		return rows, nil
	}
}

func messageChange(id string) realtime.ChangeEvent {
	return realtime.ChangeEvent{
		Table:    "messages",
		Action:   models.ActionInsert,
		RecordID: id,
		Message:  &models.Message{ID: id, EventID: "E1"},
	}
}

func TestSubscriptionManagerInitialSnapshot(t *testing.T) {
	hub := realtime.NewHub()
	var calls atomic.Int32
	seen := &snapshots[models.Message]{}
	rows := []models.Message{{ID: "m1"}, {ID: "m2"}, {ID: "m1"}}

	m := NewSubscriptionManager(hub, messageTopic, countingFetch(&calls, rows), fastConfig(), seen.record)
	require.NoError(t, m.Start(context.Background()))
	defer m.Close()

	assert.Eventually(t, func() bool { return seen.count() >= 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"m1", "m2"}, msgIDs(m.Snapshot()))
	assert.Equal(t, StateSubscribed, m.State())
	assert.ErrorIs(t, m.Start(context.Background()), ErrManagerAlreadyOpen)
}

func TestSubscriptionManagerDebouncesChanges(t *testing.T) {
	hub := realtime.NewHub()
	var calls atomic.Int32

	m := NewSubscriptionManager(hub, messageTopic, countingFetch(&calls, nil), fastConfig(), nil)
	require.NoError(t, m.Start(context.Background()))
	defer m.Close()

	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	for i := 0; i < 5; i++ {
		hub.Publish(messageChange("m1"))
	}
	// other events are filtered out
	hub.Publish(realtime.ChangeEvent{Table: "messages", Message: &models.Message{ID: "x", EventID: "E2"}})

	assert.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(2), calls.Load())
}

func TestSubscriptionManagerRefreshesOnBroadcast(t *testing.T) {
	hub := realtime.NewHub()
	var calls atomic.Int32

	m := NewSubscriptionManager(hub, messageTopic, countingFetch(&calls, nil), fastConfig(), nil)
	require.NoError(t, m.Start(context.Background()))
	defer m.Close()
	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	sender := hub.Channel(messageTopic.Channel)
	require.NoError(t, sender.Subscribe(nil))
	defer hub.RemoveChannel(sender)
	require.NoError(t, sender.Send(context.Background(), realtime.EventNewMessage, map[string]string{"id": "m9"}))

	assert.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, 5*time.Millisecond)
}

func TestSubscriptionManagerReconnects(t *testing.T) {
	hub := realtime.NewHub()
	var calls atomic.Int32

	m := NewSubscriptionManager(hub, messageTopic, countingFetch(&calls, nil), fastConfig(), nil)
	require.NoError(t, m.Start(context.Background()))
	defer m.Close()
	require.Equal(t, StateSubscribed, m.State())

	hub.MarkDisconnected(errors.New("feed down"))
	assert.Eventually(t, func() bool { return m.State() == StateDisconnected }, time.Second, 2*time.Millisecond)

	// retries keep failing while the hub is down
	time.Sleep(60 * time.Millisecond)
	assert.NotEqual(t, StateSubscribed, m.State())
	assert.Equal(t, 0, hub.Stats().Channels)

	hub.MarkConnected()
	assert.Eventually(t, func() bool { return m.State() == StateSubscribed }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, hub.Stats().Channels)

	// the rejoined channel still delivers changes
	before := calls.Load()
	hub.Publish(messageChange("m2"))
	assert.Eventually(t, func() bool { return calls.Load() > before }, time.Second, 5*time.Millisecond)
}

func TestSubscriptionManagerPollsWithoutEvents(t *testing.T) {
	hub := realtime.NewHub()
	var calls atomic.Int32
	cfg := fastConfig()
	cfg.PollInterval = 20 * time.Millisecond

	m := NewSubscriptionManager(hub, messageTopic, countingFetch(&calls, nil), cfg, nil)
	require.NoError(t, m.Start(context.Background()))
	defer m.Close()

	assert.Eventually(t, func() bool { return calls.Load() >= 4 }, time.Second, 5*time.Millisecond)
}

func TestPollRetriesThenGivesUp(t *testing.T) {
	var calls atomic.Int32
	fail := func(context.Context) ([]models.Message, error) {
		calls.Add(1)
		return nil, errors.New("backend unavailable")
	}
	m := NewSubscriptionManager(realtime.NewHub(), messageTopic, fail, fastConfig(), nil)

	m.pollOnce(context.Background())
	assert.Equal(t, int32(3), calls.Load())
}

func TestPollRetryRecovers(t *testing.T) {
	var calls atomic.Int32
	flaky := func(context.Context) ([]models.Message, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("timeout")
		}
		return []models.Message{{ID: "m1"}}, nil
	}
	m := NewSubscriptionManager(realtime.NewHub(), messageTopic, flaky, fastConfig(), nil)

	m.pollOnce(context.Background())
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, []string{"m1"}, msgIDs(m.Snapshot()))
}

func TestSubscriptionManagerAppendMergesOptimisticRows(t *testing.T) {
	seen := &snapshots[models.Message]{}
	m := NewSubscriptionManager(realtime.NewHub(), messageTopic, countingFetch(new(atomic.Int32), nil), fastConfig(), seen.record)

	m.Replace([]models.Message{{ID: "m1"}})
	m.Append(models.Message{ID: "m2"})
	m.Append(models.Message{ID: "m1", Content: "dup"})

	assert.Equal(t, []string{"m1", "m2"}, msgIDs(m.Snapshot()))
	assert.Equal(t, 3, seen.count())
}

func TestSubscriptionManagerCloseStopsCallbacks(t *testing.T) {
	hub := realtime.NewHub()
	var calls atomic.Int32
	seen := &snapshots[models.Message]{}
	cfg := fastConfig()
	cfg.PollInterval = 10 * time.Millisecond

	m := NewSubscriptionManager(hub, messageTopic, countingFetch(&calls, []models.Message{{ID: "m1"}}), cfg, seen.record)
	require.NoError(t, m.Start(context.Background()))
	assert.Eventually(t, func() bool { return seen.count() >= 2 }, time.Second, 5*time.Millisecond)

	// a debounced refresh is pending when Close runs
	hub.Publish(messageChange("m1"))
	m.Close()
	after := seen.count()

	hub.Publish(messageChange("m1"))
	m.Append(models.Message{ID: "m2"})
	time.Sleep(80 * time.Millisecond)

	assert.Equal(t, after, seen.count())
	assert.Equal(t, StateClosed, m.State())
	assert.Equal(t, 0, hub.Stats().Channels)
	assert.ErrorIs(t, m.Start(context.Background()), ErrManagerClosed)
	assert.ErrorIs(t, m.Refresh(), ErrManagerClosed)

	m.Close()
}

func TestSubscriptionStateString(t *testing.T) {
	assert.Equal(t, "subscribed", StateSubscribed.String())
	assert.Equal(t, "state(42)", SubscriptionState(42).String())
}
