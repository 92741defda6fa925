package services

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/citada/supplier-portal/realtime"
	"github.com/citada/supplier-portal/utils"
	"github.com/sirupsen/logrus"
)

type SubscriptionState int

const (
	StateIdle SubscriptionState = iota
	StateConnecting
	StateSubscribed
	StateDisconnected
	StateClosed
)

func (s SubscriptionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	case StateDisconnected:
		return "disconnected"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type SubscriptionConfig struct {
	DebounceDelay   time.Duration
	PollInterval    time.Duration
	PollRetryBase   time.Duration
	PollMaxAttempts int
	FetchTimeout    time.Duration
	Reconnect       BackoffConfig
}

func DefaultSubscriptionConfig() SubscriptionConfig {
	return SubscriptionConfig{
		DebounceDelay:   300 * time.Millisecond,
		PollInterval:    3 * time.Second,
		PollRetryBase:   3 * time.Second,
		PollMaxAttempts: 3,
		FetchTimeout:    10 * time.Second,
		Reconnect:       ReconnectBackoff,
	}
}

// Topic names the channel a manager joins and the changes it reacts to.
// BroadcastEvent, when set, also triggers a refresh.
type Topic struct {
	Channel        string
	Filter         realtime.ChangeFilter
	BroadcastEvent string
}

// FetchFunc loads the full current set of records for a view.
type FetchFunc[T Record] func(ctx context.Context) ([]T, error)

// SubscriptionManager keeps one view's snapshot in sync. It holds a single
// realtime channel, refreshes (debounced) on every matching change, reconnects
// with backoff when the channel drops, and polls independently as a fallback.
// Every refresh replaces the snapshot with a full, de-duplicated re-fetch.
//
// The snapshot callback must not call Close.
type SubscriptionManager[T Record] struct {
	client     realtime.Client
	topic      Topic
	fetch      FetchFunc[T]
	cfg        SubscriptionConfig
	onSnapshot func([]T)
	log        *logrus.Entry

	mu        sync.Mutex
	state     SubscriptionState
	snapshot  []T
	channel   realtime.Channel
	gen       int
	attempt   int
	debounce  *time.Timer
	reconnect *time.Timer
	ctx       context.Context
	cancel    context.CancelFunc
	started   bool
	closed    bool

	// wg tracks the poll loop, pending timers and in-flight refreshes.
	wg     sync.WaitGroup
	emitMu sync.Mutex
}

func NewSubscriptionManager[T Record](client realtime.Client, topic Topic, fetch FetchFunc[T], cfg SubscriptionConfig, onSnapshot func([]T)) *SubscriptionManager[T] {
	return &SubscriptionManager[T]{
		client:     client,
		topic:      topic,
		fetch:      fetch,
		cfg:        cfg,
		onSnapshot: onSnapshot,
		log:        utils.InfoLogger.WithField("channel", topic.Channel),
		ctx:        context.Background(),
	}
}

// Start loads the initial snapshot, joins the channel and begins polling.
func (m *SubscriptionManager[T]) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrManagerClosed
	}
	if m.started {
		m.mu.Unlock()
		return ErrManagerAlreadyOpen
	}
	m.started = true
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.state = StateConnecting
	m.wg.Add(2)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		m.refresh()
	}()
	go m.pollLoop()

	m.connect()
	return nil
}

func (m *SubscriptionManager[T]) State() SubscriptionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *SubscriptionManager[T]) Snapshot() []T {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.snapshot)
}

// Append merges one record into the snapshot without a round trip.
func (m *SubscriptionManager[T]) Append(item T) {
	m.emit(func(current []T) []T {
		return Normalize(current, []T{item})
	})
}

// Replace installs a freshly fetched full set.
func (m *SubscriptionManager[T]) Replace(items []T) {
	m.emit(func([]T) []T {
		return Dedupe(items)
	})
}

// Refresh re-fetches immediately, bypassing the debounce.
func (m *SubscriptionManager[T]) Refresh() error {
	return m.refresh()
}

// Close cancels every timer, stops polling and releases the channel. When it
// returns no callback is running and none will run again.
func (m *SubscriptionManager[T]) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.state = StateClosed
	m.stopTimerLocked(m.debounce)
	m.stopTimerLocked(m.reconnect)
	m.debounce, m.reconnect = nil, nil
	if m.cancel != nil {
		m.cancel()
	}
	ch := m.channel
	m.channel = nil
	m.gen++
	m.mu.Unlock()

	if ch != nil {
		m.release(ch)
	}

	// wait out an emission that passed its closed check
	m.emitMu.Lock()
	m.emitMu.Unlock()

	m.wg.Wait()
	m.log.Debug("subscription closed")
}

func (m *SubscriptionManager[T]) connect() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.gen++
	gen := m.gen
	old := m.channel
	m.channel = nil
	m.state = StateConnecting
	m.mu.Unlock()

	if old != nil {
		m.release(old)
	}

	ch := m.client.Channel(m.topic.Channel).
		OnChange(m.topic.Filter, func(realtime.ChangeEvent) { m.scheduleRefresh() })
	if m.topic.BroadcastEvent != "" {
		ch.OnBroadcast(m.topic.BroadcastEvent, func(realtime.BroadcastEvent) { m.scheduleRefresh() })
	}

	m.mu.Lock()
	if m.closed || gen != m.gen {
		m.mu.Unlock()
		m.release(ch)
		return
	}
	m.channel = ch
	m.mu.Unlock()

	err := ch.Subscribe(func(st realtime.Status, err error) {
		m.handleStatus(gen, ch, st, err)
	})
	if err != nil {
		m.handleStatus(gen, ch, realtime.StatusChannelError, err)
	}
}

func (m *SubscriptionManager[T]) handleStatus(gen int, ch realtime.Channel, st realtime.Status, cause error) {
	m.mu.Lock()
	if m.closed || gen != m.gen {
		m.mu.Unlock()
		if st == realtime.StatusSubscribed {
			m.release(ch)
		}
		return
	}
	defer m.mu.Unlock()

	switch st {
	case realtime.StatusSubscribed:
		m.state = StateSubscribed
		m.attempt = 0
		m.log.Info("channel subscribed")
	case realtime.StatusChannelError, realtime.StatusTimedOut, realtime.StatusClosed:
		m.state = StateDisconnected
		utils.ErrorLogger.WithFields(logrus.Fields{
			"channel": m.topic.Channel,
			"status":  st,
			"attempt": m.attempt,
		}).Error(fmt.Errorf("%w: %v", ErrSubscription, cause))
		m.scheduleReconnectLocked()
	}
}

func (m *SubscriptionManager[T]) scheduleReconnectLocked() {
	m.stopTimerLocked(m.reconnect)
	delay := NextBackoffDelay(m.cfg.Reconnect, m.attempt)
	m.attempt = NextAttempt(m.cfg.Reconnect, m.attempt)
	m.log.WithField("delay", delay).Info("reconnect scheduled")

	m.wg.Add(1)
	m.reconnect = time.AfterFunc(delay, func() {
		defer m.wg.Done()
		m.connect()
	})
}

func (m *SubscriptionManager[T]) scheduleRefresh() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.stopTimerLocked(m.debounce)
	m.wg.Add(1)
	m.debounce = time.AfterFunc(m.cfg.DebounceDelay, func() {
		defer m.wg.Done()
		m.refresh()
	})
}

// stopTimerLocked cancels a pending timer and settles its wait group slot.
// A timer that already fired settles the slot itself.
func (m *SubscriptionManager[T]) stopTimerLocked(t *time.Timer) {
	if t != nil && t.Stop() {
		m.wg.Done()
	}
}

func (m *SubscriptionManager[T]) pollLoop() {
	defer m.wg.Done()

	m.mu.Lock()
	ctx := m.ctx
	m.mu.Unlock()

	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.pollOnce(ctx)
		}
	}
}

func (m *SubscriptionManager[T]) pollOnce(ctx context.Context) {
	retry := BackoffConfig{InitialDelay: m.cfg.PollRetryBase, Multiplier: 2}
	for attempt := 1; ; attempt++ {
		err := m.refresh()
		if err == nil {
			return
		}
		if attempt >= m.cfg.PollMaxAttempts {
			m.log.WithField("attempts", attempt).Warn("poll giving up until next tick")
			return
		}
		timer := time.NewTimer(NextBackoffDelay(retry, attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (m *SubscriptionManager[T]) refresh() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrManagerClosed
	}
	ctx := m.ctx
	m.mu.Unlock()

	if m.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.FetchTimeout)
		defer cancel()
	}

	items, err := m.fetch(ctx)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrFetchFailed, err)
		utils.ErrorLogger.WithField("channel", m.topic.Channel).Error(err)
		return err
	}
	m.Replace(items)
	return nil
}

func (m *SubscriptionManager[T]) emit(next func([]T) []T) {
	m.emitMu.Lock()
	defer m.emitMu.Unlock()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.snapshot = next(m.snapshot)
	out := slices.Clone(m.snapshot)
	cb := m.onSnapshot
	m.mu.Unlock()

	if cb != nil {
		cb(out)
	}
}

func (m *SubscriptionManager[T]) release(ch realtime.Channel) {
	if err := m.client.RemoveChannel(ch); err != nil {
		utils.ErrorLogger.WithField("channel", ch.Name()).Errorf("Error removing channel: %v", err)
	}
}
