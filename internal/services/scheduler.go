package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"price-alert-engine/internal/config"
	"price-alert-engine/internal/models"
	"price-alert-engine/pkg/logger"
	"price-alert-engine/pkg/metrics"
	"price-alert-engine/pkg/ratelimiter"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// State is the scheduler's phase within a cycle, exposed for the admin
// status endpoint.
type State string

const (
	StateIdle        State = "idle"
	StateLoading     State = "loading"
	StateDispatching State = "dispatching"
	StateCollecting  State = "collecting"
	StateNotifying   State = "notifying"
)

// Scheduler drives the recurring evaluation cycle: load active
// conditions, fan them out with bounded concurrency through the fetch
// client and evaluator, then notify and persist triggered ones. A
// single item's failure never aborts the cycle; only a loading failure
// does, and that aborts one cycle only.
type Scheduler struct {
	repo     Repository
	notifier Notifier
	fetcher  QuoteFetcher
	metrics  *metrics.Collector
	cfg      config.SchedulerConfig

	state      atomic.Value // State
	lastReport atomic.Value // *models.CycleReport
}

// NewScheduler creates a Scheduler. It does not start it; call Run.
func NewScheduler(repo Repository, notifier Notifier, fetcher QuoteFetcher, collector *metrics.Collector, cfg config.SchedulerConfig) *Scheduler {
	s := &Scheduler{
		repo:     repo,
		notifier: notifier,
		fetcher:  fetcher,
		metrics:  collector,
		cfg:      cfg,
	}
	s.state.Store(StateIdle)
	return s
}

// Run executes cycles on the configured interval until ctx is done.
// The first cycle starts immediately.
func (s *Scheduler) Run(ctx context.Context) {
	log := logger.GetLogger()
	log.Info("Starting evaluation scheduler",
		zap.Duration("interval", s.cfg.Interval),
		zap.Duration("deadline", s.cfg.Deadline),
		zap.Int("max_concurrency", s.cfg.MaxConcurrency),
	)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.RunCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Info("Evaluation scheduler stopped")
			return
		case <-ticker.C:
			s.RunCycle(ctx)
		}
	}
}

// State returns the scheduler's current phase.
func (s *Scheduler) State() State {
	return s.state.Load().(State)
}

// LastReport returns the report of the most recent cycle, or nil before
// the first one completes.
func (s *Scheduler) LastReport() *models.CycleReport {
	report, _ := s.lastReport.Load().(*models.CycleReport)
	return report
}

// RunCycle executes one full evaluation cycle and returns its report.
func (s *Scheduler) RunCycle(ctx context.Context) *models.CycleReport {
	start := time.Now()
	ctx = logger.ContextWithCycleID(ctx, logger.GenerateCycleID())
	log := logger.GetLogger().WithContext(ctx)

	report := &models.CycleReport{StartedAt: start}
	defer func() {
		report.Elapsed = time.Since(start)
		s.lastReport.Store(report)
		s.state.Store(StateIdle)
		s.metrics.RecordCycle(report.Elapsed, report.Aborted)
		s.logReport(log, report)
	}()

	s.state.Store(StateLoading)
	conditions, err := s.repo.ListActive(ctx)
	if err != nil {
		// Loading failure aborts this cycle only; the next tick retries.
		report.Aborted = true
		report.Error = err.Error()
		log.Error("Failed to load active conditions, aborting cycle", zap.Error(err))
		return report
	}
	report.Loaded = len(conditions)
	if len(conditions) == 0 {
		return report
	}

	triggered := s.dispatch(ctx, conditions, report)

	s.state.Store(StateNotifying)
	s.notifyAndPersist(ctx, triggered, report, log)

	return report
}

// dispatch fans out one evaluation task per condition under the cycle
// deadline and collects the triggered results.
func (s *Scheduler) dispatch(ctx context.Context, conditions []models.Condition, report *models.CycleReport) []models.EvaluationResult {
	s.state.Store(StateDispatching)

	cycleCtx, cancel := context.WithTimeout(ctx, s.cfg.Deadline)
	defer cancel()

	var (
		mu        sync.Mutex
		triggered []models.EvaluationResult
	)

	g := new(errgroup.Group)
	g.SetLimit(s.cfg.MaxConcurrency)
	for _, cond := range conditions {
		cond := cond
		g.Go(func() error {
			s.metrics.TaskStarted()
			defer s.metrics.TaskDone()

			result, err := s.evaluateOne(cycleCtx, cond)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				report.Evaluated++
				if result.Triggered {
					triggered = append(triggered, result)
				}
			case errors.Is(err, ratelimiter.ErrAcquireTimeout):
				report.RateLimitTimeouts++
			case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
				report.DeadlineExceeded++
				s.metrics.RecordDeadlineExceeded()
			default:
				report.TransportFailures++
			}
			return nil
		})
	}

	s.state.Store(StateCollecting)
	g.Wait()

	return triggered
}

// evaluateOne runs the fetch and evaluation for a single condition.
// The deadline is checked at the boundary so a cancelled task never
// consumes a token or writes partial state.
func (s *Scheduler) evaluateOne(ctx context.Context, cond models.Condition) (models.EvaluationResult, error) {
	if err := ctx.Err(); err != nil {
		return models.EvaluationResult{}, err
	}

	quote, err := s.fetcher.GetQuote(ctx, cond.Symbol)
	if err != nil {
		return models.EvaluationResult{}, err
	}

	result := Evaluate(cond, quote.Price, time.Now().UTC())
	s.metrics.RecordEvaluation(result.Triggered)
	return result, nil
}

// notifyAndPersist delivers each triggered result and then marks the
// condition triggered. Notify happens-before persist for each item, so
// a crash in between can at worst duplicate one notification, never
// silently drop one. A failed delivery skips the persist step entirely:
// the condition stays active and is retried on the next cycle.
func (s *Scheduler) notifyAndPersist(ctx context.Context, triggered []models.EvaluationResult, report *models.CycleReport, log *logger.Logger) {
	report.Triggered = len(triggered)

	for _, result := range triggered {
		cond := result.Condition

		if err := s.notifier.Notify(ctx, cond.OwnerID, result); err != nil {
			report.NotifyFailures++
			s.metrics.RecordNotification(false)
			log.Warn("Notification delivery failed, will retry next cycle",
				zap.String("alert_id", cond.ID),
				zap.String("symbol", cond.Symbol),
				zap.Error(err),
			)
			continue
		}
		report.Notified++
		s.metrics.RecordNotification(true)

		if err := s.persistTriggered(ctx, cond.ID, result.EvaluatedAt); err != nil {
			report.PersistFailures++
			log.Error("Failed to persist trigger state",
				zap.String("alert_id", cond.ID),
				zap.Error(err),
			)
		}
	}
}

// persistTriggered marks a condition triggered, retrying once on a
// repository failure before surfacing it.
func (s *Scheduler) persistTriggered(ctx context.Context, id string, at time.Time) error {
	err := s.repo.MarkTriggered(ctx, id, at)
	if err == nil {
		return nil
	}

	logger.GetLogger().Warn("Persist failed, retrying once",
		zap.String("alert_id", id),
		zap.Error(err),
	)
	return s.repo.MarkTriggered(ctx, id, at)
}

func (s *Scheduler) logReport(log *logger.Logger, report *models.CycleReport) {
	fields := []zap.Field{
		zap.Int("loaded", report.Loaded),
		zap.Int("evaluated", report.Evaluated),
		zap.Int("triggered", report.Triggered),
		zap.Int("rate_limit_timeouts", report.RateLimitTimeouts),
		zap.Int("transport_failures", report.TransportFailures),
		zap.Int("deadline_exceeded", report.DeadlineExceeded),
		zap.Int("notified", report.Notified),
		zap.Int("notify_failures", report.NotifyFailures),
		zap.Int("persist_failures", report.PersistFailures),
		zap.Duration("elapsed", report.Elapsed),
	}

	if report.Aborted {
		log.Warn("Evaluation cycle aborted", fields...)
		return
	}
	log.Info("Evaluation cycle completed", fields...)
}
