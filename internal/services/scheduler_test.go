package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"price-alert-engine/internal/config"
	"price-alert-engine/internal/models"
	"price-alert-engine/pkg/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRepo is an in-memory Repository that records the order of
// persistence events.
type fakeRepo struct {
	mu         sync.Mutex
	conditions []models.Condition
	listErr    error
	markErrs   []error // consumed one per MarkTriggered call
	events     *eventLog

	marked map[string]time.Time
}

func newFakeRepo(events *eventLog, conditions ...models.Condition) *fakeRepo {
	return &fakeRepo{
		conditions: conditions,
		events:     events,
		marked:     make(map[string]time.Time),
	}
}

func (r *fakeRepo) ListActive(ctx context.Context) ([]models.Condition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.listErr != nil {
		return nil, r.listErr
	}

	var active []models.Condition
	for _, cond := range r.conditions {
		if cond.Status == models.AlertStatusActive {
			active = append(active, cond)
		}
	}
	return active, nil
}

func (r *fakeRepo) MarkTriggered(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.markErrs) > 0 {
		err := r.markErrs[0]
		r.markErrs = r.markErrs[1:]
		if err != nil {
			return err
		}
	}

	for i := range r.conditions {
		if r.conditions[i].ID == id {
			r.conditions[i].Status = models.AlertStatusTriggered
			r.marked[id] = at
			r.events.add("persist:" + id)
			return nil
		}
	}
	return errors.New("not found")
}

func (r *fakeRepo) Disable(ctx context.Context, id string) error { return nil }

func (r *fakeRepo) Create(ctx context.Context, cond *models.Condition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conditions = append(r.conditions, *cond)
	return nil
}

func (r *fakeRepo) ListByOwner(ctx context.Context, ownerID string) ([]models.Condition, error) {
	return nil, nil
}

func (r *fakeRepo) Delete(ctx context.Context, id, ownerID string) (bool, error) {
	return false, nil
}

func (r *fakeRepo) Ping(ctx context.Context) error { return nil }

// fakeNotifier records deliveries and can be scripted to fail.
type fakeNotifier struct {
	mu     sync.Mutex
	fail   bool
	events *eventLog

	delivered []string
}

func (n *fakeNotifier) Notify(ctx context.Context, ownerID string, result models.EvaluationResult) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.fail {
		return errors.New("webhook unreachable")
	}
	n.delivered = append(n.delivered, result.Condition.ID)
	n.events.add("notify:" + result.Condition.ID)
	return nil
}

func (n *fakeNotifier) setFail(fail bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.fail = fail
}

// fakeFetcher serves scripted prices without cache or rate limiting.
type fakeFetcher struct {
	mu     sync.Mutex
	prices map[string]float64
	errs   map[string]error
	block  bool // block until ctx is done
}

func (f *fakeFetcher) GetQuote(ctx context.Context, symbol string) (models.Quote, error) {
	f.mu.Lock()
	block := f.block
	err := f.errs[symbol]
	price, ok := f.prices[symbol]
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return models.Quote{}, ctx.Err()
	}
	if err != nil {
		return models.Quote{}, err
	}
	if !ok {
		return models.Quote{}, fmt.Errorf("%w: unknown symbol", ErrTransportFailure)
	}
	return models.Quote{Symbol: symbol, Price: price, At: time.Now().UTC()}, nil
}

func (f *fakeFetcher) setPrice(symbol string, price float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices[symbol] = price
}

// eventLog records notify/persist ordering across goroutines.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(event string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *eventLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

func schedulerConfig() config.SchedulerConfig {
	return config.SchedulerConfig{
		Interval:       time.Minute,
		Deadline:       500 * time.Millisecond,
		MaxConcurrency: 4,
	}
}

func activeCondition(id, symbol string, direction models.Direction, threshold float64) models.Condition {
	return models.Condition{
		ID:        id,
		OwnerID:   "user-1",
		Symbol:    symbol,
		Predicate: models.Predicate{Direction: direction, Threshold: threshold},
		Status:    models.AlertStatusActive,
		CreatedAt: time.Now().UTC(),
	}
}

func TestRunCycleEvaluatesAndTriggers(t *testing.T) {
	events := &eventLog{}
	repo := newFakeRepo(events,
		activeCondition("a1", "BTC/USDT", models.DirectionAbove, 100000),
		activeCondition("a2", "ETH/USDT", models.DirectionBelow, 2500),
	)
	notifier := &fakeNotifier{events: events}
	fetcher := &fakeFetcher{prices: map[string]float64{
		"BTC/USDT": 100500, // above 100000: triggers
		"ETH/USDT": 2600,   // not below 2500: no trigger
	}}

	s := NewScheduler(repo, notifier, fetcher, metrics.NewCollector(), schedulerConfig())
	report := s.RunCycle(context.Background())

	assert.Equal(t, 2, report.Loaded)
	assert.Equal(t, 2, report.Evaluated)
	assert.Equal(t, 1, report.Triggered)
	assert.Equal(t, 1, report.Notified)
	assert.Zero(t, report.NotifyFailures)
	assert.False(t, report.Aborted)

	assert.Equal(t, []string{"a1"}, notifier.delivered)
	assert.Contains(t, repo.marked, "a1")
	assert.NotContains(t, repo.marked, "a2")
	assert.Equal(t, StateIdle, s.State())
	assert.Equal(t, report, s.LastReport())
}

func TestNotifyHappensBeforePersist(t *testing.T) {
	events := &eventLog{}
	repo := newFakeRepo(events, activeCondition("a1", "BTC/USDT", models.DirectionAbove, 100000))
	notifier := &fakeNotifier{events: events}
	fetcher := &fakeFetcher{prices: map[string]float64{"BTC/USDT": 100500}}

	s := NewScheduler(repo, notifier, fetcher, metrics.NewCollector(), schedulerConfig())
	s.RunCycle(context.Background())

	assert.Equal(t, []string{"notify:a1", "persist:a1"}, events.all())
}

func TestFailedNotifySkipsPersistAndRetriesNextCycle(t *testing.T) {
	events := &eventLog{}
	repo := newFakeRepo(events, activeCondition("a1", "BTC/USDT", models.DirectionAbove, 100000))
	notifier := &fakeNotifier{events: events, fail: true}
	fetcher := &fakeFetcher{prices: map[string]float64{"BTC/USDT": 100500}}

	s := NewScheduler(repo, notifier, fetcher, metrics.NewCollector(), schedulerConfig())

	report := s.RunCycle(context.Background())
	assert.Equal(t, 1, report.Triggered)
	assert.Equal(t, 1, report.NotifyFailures)
	assert.Zero(t, report.Notified)

	// The condition stays active: no persist happened
	assert.Empty(t, repo.marked)

	// Delivery recovers; the next cycle picks the condition up again
	notifier.setFail(false)
	report = s.RunCycle(context.Background())
	assert.Equal(t, 1, report.Notified)
	assert.Contains(t, repo.marked, "a1")
}

func TestPersistRetriesOnceOnFailure(t *testing.T) {
	events := &eventLog{}
	repo := newFakeRepo(events, activeCondition("a1", "BTC/USDT", models.DirectionAbove, 100000))
	repo.markErrs = []error{errors.New("write conflict")} // first attempt fails
	notifier := &fakeNotifier{events: events}
	fetcher := &fakeFetcher{prices: map[string]float64{"BTC/USDT": 100500}}

	s := NewScheduler(repo, notifier, fetcher, metrics.NewCollector(), schedulerConfig())
	report := s.RunCycle(context.Background())

	assert.Equal(t, 1, report.Notified)
	assert.Zero(t, report.PersistFailures)
	assert.Contains(t, repo.marked, "a1")
}

func TestPersistFailureAfterRetryIsReported(t *testing.T) {
	events := &eventLog{}
	repo := newFakeRepo(events, activeCondition("a1", "BTC/USDT", models.DirectionAbove, 100000))
	repo.markErrs = []error{errors.New("down"), errors.New("down")}
	notifier := &fakeNotifier{events: events}
	fetcher := &fakeFetcher{prices: map[string]float64{"BTC/USDT": 100500}}

	s := NewScheduler(repo, notifier, fetcher, metrics.NewCollector(), schedulerConfig())
	report := s.RunCycle(context.Background())

	assert.Equal(t, 1, report.Notified)
	assert.Equal(t, 1, report.PersistFailures)
	assert.Empty(t, repo.marked)
}

func TestLoadFailureAbortsCycle(t *testing.T) {
	events := &eventLog{}
	repo := newFakeRepo(events)
	repo.listErr = errors.New("connection reset")
	notifier := &fakeNotifier{events: events}
	fetcher := &fakeFetcher{prices: map[string]float64{}}

	s := NewScheduler(repo, notifier, fetcher, metrics.NewCollector(), schedulerConfig())
	report := s.RunCycle(context.Background())

	assert.True(t, report.Aborted)
	assert.NotEmpty(t, report.Error)
	assert.Zero(t, report.Evaluated)
	assert.Equal(t, StateIdle, s.State())
}

func TestItemFailureDoesNotAbortCycle(t *testing.T) {
	events := &eventLog{}
	repo := newFakeRepo(events,
		activeCondition("a1", "BTC/USDT", models.DirectionAbove, 100000),
		activeCondition("a2", "DOGE/USDT", models.DirectionAbove, 1),
	)
	notifier := &fakeNotifier{events: events}
	fetcher := &fakeFetcher{
		prices: map[string]float64{"BTC/USDT": 100500},
		errs:   map[string]error{"DOGE/USDT": fmt.Errorf("%w: 502", ErrTransportFailure)},
	}

	s := NewScheduler(repo, notifier, fetcher, metrics.NewCollector(), schedulerConfig())
	report := s.RunCycle(context.Background())

	assert.False(t, report.Aborted)
	assert.Equal(t, 1, report.Evaluated)
	assert.Equal(t, 1, report.TransportFailures)
	assert.Equal(t, 1, report.Notified)
}

func TestCycleDeadlineCancelsSlowItems(t *testing.T) {
	events := &eventLog{}
	repo := newFakeRepo(events,
		activeCondition("a1", "BTC/USDT", models.DirectionAbove, 100000),
		activeCondition("a2", "ETH/USDT", models.DirectionBelow, 2500),
	)
	notifier := &fakeNotifier{events: events}
	fetcher := &fakeFetcher{block: true}

	cfg := schedulerConfig()
	cfg.Deadline = 50 * time.Millisecond

	s := NewScheduler(repo, notifier, fetcher, metrics.NewCollector(), cfg)

	start := time.Now()
	report := s.RunCycle(context.Background())

	assert.False(t, report.Aborted)
	assert.Equal(t, 2, report.DeadlineExceeded)
	assert.Zero(t, report.Evaluated)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestTriggeredConditionIsNotReloaded(t *testing.T) {
	// End to end over two cycles: the first observation is below the
	// threshold, the second crosses it; a third cycle must not fire the
	// already-triggered condition again.
	events := &eventLog{}
	repo := newFakeRepo(events, activeCondition("a1", "BTC/USDT", models.DirectionAbove, 100000))
	notifier := &fakeNotifier{events: events}
	fetcher := &fakeFetcher{prices: map[string]float64{"BTC/USDT": 99000}}

	s := NewScheduler(repo, notifier, fetcher, metrics.NewCollector(), schedulerConfig())

	report := s.RunCycle(context.Background())
	assert.Equal(t, 1, report.Evaluated)
	assert.Zero(t, report.Triggered)

	fetcher.setPrice("BTC/USDT", 100500)
	report = s.RunCycle(context.Background())
	assert.Equal(t, 1, report.Triggered)
	assert.Equal(t, 1, report.Notified)

	report = s.RunCycle(context.Background())
	assert.Zero(t, report.Loaded)
	assert.Zero(t, report.Triggered)
	assert.Equal(t, []string{"a1"}, notifier.delivered)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	events := &eventLog{}
	repo := newFakeRepo(events)
	notifier := &fakeNotifier{events: events}
	fetcher := &fakeFetcher{prices: map[string]float64{}}

	cfg := schedulerConfig()
	cfg.Interval = 10 * time.Millisecond

	s := NewScheduler(repo, notifier, fetcher, metrics.NewCollector(), cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
	require.NotNil(t, s.LastReport())
}
