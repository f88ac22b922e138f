package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kursadbilgin/ride-reminders/internal/domain"
	"github.com/kursadbilgin/ride-reminders/internal/observability"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultDueInterval   = 5 * time.Minute
	defaultRetryInterval = 30 * time.Minute
	defaultStatsSpec     = "0 * * * *"
	defaultCleanupSpec   = "0 2 * * *"
	defaultRetention     = 30 * 24 * time.Hour
	cleanupLeaseTTL      = 10 * time.Minute

	cycleDue     = "due"
	cycleRetry   = "retry"
	cycleCleanup = "cleanup"
)

var (
	errCycleRunning = fmt.Errorf("%w: cycle already running", domain.ErrConflict)
	errLeaseHeld    = fmt.Errorf("%w: cycle running on another instance", domain.ErrConflict)
)

type Dispatcher interface {
	ProcessDue(ctx context.Context, now time.Time) (DispatchReport, error)
	RetryFailed(ctx context.Context) (DispatchReport, error)
}

// Lease makes a named cycle single-flight across instances.
type Lease interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (release func(), ok bool, err error)
}

type StatisticsSource interface {
	Statistics(ctx context.Context) (Statistics, error)
}

type RetentionCleaner interface {
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type TriggerOptions struct {
	Enabled       bool
	DueInterval   time.Duration
	RetryInterval time.Duration
	StatsSpec     string
	CleanupSpec   string
	Retention     time.Duration
}

type cycle struct {
	name     string
	interval time.Duration
	mu       sync.Mutex
	run      func(ctx context.Context) (DispatchReport, error)
}

// ReminderTrigger drives the dispatcher on fixed intervals and runs the
// housekeeping cron jobs.
type ReminderTrigger struct {
	dispatcher Dispatcher
	lease      Lease
	stats      StatisticsSource
	cleaner    RetentionCleaner
	opts       TriggerOptions
	logger     *zap.Logger
	metrics    *observability.Metrics
	now        func() time.Time

	due   *cycle
	retry *cycle

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewReminderTrigger(dispatcher Dispatcher, opts TriggerOptions, logger *zap.Logger) (*ReminderTrigger, error) {
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if opts.DueInterval <= 0 {
		opts.DueInterval = defaultDueInterval
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = defaultRetryInterval
	}
	if opts.StatsSpec == "" {
		opts.StatsSpec = defaultStatsSpec
	}
	if opts.CleanupSpec == "" {
		opts.CleanupSpec = defaultCleanupSpec
	}
	if opts.Retention <= 0 {
		opts.Retention = defaultRetention
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	t := &ReminderTrigger{
		dispatcher: dispatcher,
		opts:       opts,
		logger:     logger,
		now:        time.Now,
	}
	t.due = &cycle{
		name:     cycleDue,
		interval: opts.DueInterval,
		run: func(ctx context.Context) (DispatchReport, error) {
			return t.dispatcher.ProcessDue(ctx, t.now().UTC())
		},
	}
	t.retry = &cycle{
		name:     cycleRetry,
		interval: opts.RetryInterval,
		run:      t.dispatcher.RetryFailed,
	}
	return t, nil
}

func (t *ReminderTrigger) SetLease(lease Lease) {
	t.lease = lease
}

func (t *ReminderTrigger) SetMetrics(metrics *observability.Metrics) {
	t.metrics = metrics
}

// SetHousekeeping enables the statistics and retention cron jobs.
func (t *ReminderTrigger) SetHousekeeping(stats StatisticsSource, cleaner RetentionCleaner) {
	t.stats = stats
	t.cleaner = cleaner
}

// Start runs the due and retry loops until ctx is cancelled or Stop is
// called. Each loop fires once immediately, then on its interval.
func (t *ReminderTrigger) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	defer close(done)
	defer cancel()

	t.mu.Lock()
	t.cancel = cancel
	t.done = done
	t.mu.Unlock()

	if !t.opts.Enabled {
		t.logger.Info("reminder scheduling disabled, periodic cycles not started")
		<-ctx.Done()
		return nil
	}

	scheduler, err := t.startCron(ctx)
	if err != nil {
		return err
	}
	defer func() {
		<-scheduler.Stop().Done()
	}()

	t.logger.Info("reminder trigger started",
		zap.Duration("dueInterval", t.opts.DueInterval),
		zap.Duration("retryInterval", t.opts.RetryInterval),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return t.loop(gctx, t.due) })
	g.Go(func() error { return t.loop(gctx, t.retry) })
	return g.Wait()
}

// Stop cancels a running Start and waits for in-flight cycles to finish.
func (t *ReminderTrigger) Stop() {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// TriggerDue runs a due cycle now. It returns domain.ErrConflict when a due
// cycle is already running here or on another instance.
func (t *ReminderTrigger) TriggerDue(ctx context.Context) (DispatchReport, error) {
	return t.runCycle(ctx, t.due)
}

func (t *ReminderTrigger) TriggerRetry(ctx context.Context) (DispatchReport, error) {
	return t.runCycle(ctx, t.retry)
}

func (t *ReminderTrigger) loop(ctx context.Context, c *cycle) error {
	t.tick(ctx, c)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			t.tick(ctx, c)
		}
	}
}

func (t *ReminderTrigger) tick(ctx context.Context, c *cycle) {
	if _, err := t.runCycle(ctx, c); err != nil && ctx.Err() == nil {
		if errors.Is(err, errCycleRunning) || errors.Is(err, errLeaseHeld) {
			return
		}
		t.logger.Error("reminder cycle failed", zap.String("cycle", c.name), zap.Error(err))
	}
}

func (t *ReminderTrigger) runCycle(ctx context.Context, c *cycle) (report DispatchReport, err error) {
	if !c.mu.TryLock() {
		t.logger.Info("reminder cycle still running, skipping", zap.String("cycle", c.name))
		t.metrics.IncCycleSkipped(c.name, "in_progress")
		return DispatchReport{}, errCycleRunning
	}
	defer c.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("reminder cycle %s panicked: %v", c.name, r)
		}
	}()

	if t.lease != nil {
		release, ok, leaseErr := t.lease.Acquire(ctx, "cycle:"+c.name, c.interval)
		switch {
		case leaseErr != nil:
			t.logger.Warn("cycle lease unavailable, running without it",
				zap.String("cycle", c.name),
				zap.Error(leaseErr),
			)
		case !ok:
			t.logger.Debug("reminder cycle held by another instance", zap.String("cycle", c.name))
			t.metrics.IncCycleSkipped(c.name, "lease_held")
			return DispatchReport{}, errLeaseHeld
		default:
			defer release()
		}
	}

	ctx = observability.WithCorrelationID(ctx, observability.NewCorrelationID(c.name))
	logger := observability.WithContextLogger(t.logger, ctx).With(zap.String("cycle", c.name))

	start := t.now()
	report, err = c.run(ctx)
	t.metrics.ObserveCycle(c.name, t.now().Sub(start))
	if err != nil {
		return report, err
	}

	if report.Selected > 0 {
		logger.Info("reminder cycle finished",
			zap.Int("selected", report.Selected),
			zap.Int("sent", report.Sent),
			zap.Int("failed", report.Failed),
			zap.Int("exhausted", report.Exhausted),
			zap.Int("skipped", report.Skipped),
		)
	}
	return report, nil
}

func (t *ReminderTrigger) startCron(ctx context.Context) (*cron.Cron, error) {
	cl := cronLogger{logger: t.logger.Sugar()}
	scheduler := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	if t.stats != nil {
		if _, err := scheduler.AddFunc(t.opts.StatsSpec, func() { t.logStatistics(ctx) }); err != nil {
			return nil, fmt.Errorf("invalid statistics schedule %q: %w", t.opts.StatsSpec, err)
		}
	}
	if t.cleaner != nil {
		if _, err := scheduler.AddFunc(t.opts.CleanupSpec, func() { t.cleanup(ctx) }); err != nil {
			return nil, fmt.Errorf("invalid cleanup schedule %q: %w", t.opts.CleanupSpec, err)
		}
	}

	scheduler.Start()
	return scheduler, nil
}

func (t *ReminderTrigger) logStatistics(ctx context.Context) {
	stats, err := t.stats.Statistics(ctx)
	if err != nil {
		if ctx.Err() == nil {
			t.logger.Error("failed to collect reminder statistics", zap.Error(err))
		}
		return
	}

	t.logger.Info("reminder statistics",
		zap.Int64("scheduled", stats.Scheduled),
		zap.Int64("sent", stats.Sent),
		zap.Int64("failed", stats.Failed),
		zap.Int64("cancelled", stats.Cancelled),
		zap.Int64("exhausted", stats.Exhausted),
		zap.Int64("total", stats.Total),
	)
}

func (t *ReminderTrigger) cleanup(ctx context.Context) {
	if t.lease != nil {
		release, ok, err := t.lease.Acquire(ctx, "cycle:"+cycleCleanup, cleanupLeaseTTL)
		switch {
		case err != nil:
			t.logger.Warn("cleanup lease unavailable, running without it", zap.Error(err))
		case !ok:
			t.metrics.IncCycleSkipped(cycleCleanup, "lease_held")
			return
		default:
			defer release()
		}
	}

	start := t.now()
	cutoff := start.UTC().Add(-t.opts.Retention)
	deleted, err := t.cleaner.DeleteTerminalBefore(ctx, cutoff)
	t.metrics.ObserveCycle(cycleCleanup, t.now().Sub(start))
	if err != nil {
		if ctx.Err() == nil {
			t.logger.Error("reminder retention cleanup failed", zap.Error(err))
		}
		return
	}

	t.logger.Info("reminder retention cleanup finished",
		zap.Time("cutoff", cutoff),
		zap.Int64("deleted", deleted),
	)
}

// cronLogger routes cron's internal logging through zap.
type cronLogger struct {
	logger *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}
