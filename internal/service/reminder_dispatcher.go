package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/ride-reminders/internal/domain"
	"github.com/kursadbilgin/ride-reminders/internal/gateway"
	"github.com/kursadbilgin/ride-reminders/internal/observability"
	"github.com/kursadbilgin/ride-reminders/internal/queue"
	"github.com/kursadbilgin/ride-reminders/internal/ratelimit"
	"github.com/kursadbilgin/ride-reminders/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultSendTimeout = 5 * time.Second
	defaultBatchLimit  = 500
	defaultConcurrency = 8
	bookkeepingTimeout = 5 * time.Second
	minimumConcurrency = 1
)

type DispatcherOptions struct {
	SendTimeout time.Duration
	BatchLimit  int
	Concurrency int
}

// DispatchReport summarises one ProcessDue or RetryFailed pass.
type DispatchReport struct {
	Selected  int `json:"selected"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
	Exhausted int `json:"exhausted"`
	Skipped   int `json:"skipped"`
}

type deliveryOutcome int

const (
	outcomeSent deliveryOutcome = iota
	outcomeFailed
	outcomeExhausted
	outcomeSkipped
)

func (r *DispatchReport) add(o deliveryOutcome) {
	switch o {
	case outcomeSent:
		r.Sent++
	case outcomeFailed:
		r.Failed++
	case outcomeExhausted:
		r.Failed++
		r.Exhausted++
	case outcomeSkipped:
		r.Skipped++
	}
}

// ReminderDispatcher delivers due and retryable reminders through the
// gateway and records the outcome on each record.
type ReminderDispatcher struct {
	reminders repository.ReminderRepository
	bookings  repository.BookingReader
	attempts  repository.AttemptRepository
	gateway   gateway.Gateway
	limiter   ratelimit.Limiter
	publisher queue.Publisher
	logger    *zap.Logger
	metrics   *observability.Metrics
	opts      DispatcherOptions
	now       func() time.Time
}

func NewReminderDispatcher(
	reminders repository.ReminderRepository,
	bookings repository.BookingReader,
	gw gateway.Gateway,
	opts DispatcherOptions,
	logger *zap.Logger,
) (*ReminderDispatcher, error) {
	if reminders == nil {
		return nil, fmt.Errorf("reminder repository is required")
	}
	if gw == nil {
		return nil, fmt.Errorf("gateway is required")
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = defaultSendTimeout
	}
	if opts.BatchLimit <= 0 {
		opts.BatchLimit = defaultBatchLimit
	}
	if opts.Concurrency < minimumConcurrency {
		opts.Concurrency = defaultConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ReminderDispatcher{
		reminders: reminders,
		bookings:  bookings,
		gateway:   gw,
		limiter:   ratelimit.Noop{},
		logger:    logger,
		opts:      opts,
		now:       time.Now,
	}, nil
}

func (d *ReminderDispatcher) SetMetrics(metrics *observability.Metrics) {
	d.metrics = metrics
}

func (d *ReminderDispatcher) SetAttemptLog(attempts repository.AttemptRepository) {
	d.attempts = attempts
}

func (d *ReminderDispatcher) SetLimiter(limiter ratelimit.Limiter) {
	if limiter != nil {
		d.limiter = limiter
	}
}

func (d *ReminderDispatcher) SetPublisher(publisher queue.Publisher) {
	d.publisher = publisher
}

// ProcessDue delivers every SCHEDULED reminder whose fire time is at or
// before now, oldest first, up to the batch limit.
func (d *ReminderDispatcher) ProcessDue(ctx context.Context, now time.Time) (DispatchReport, error) {
	due, err := d.reminders.GetDue(ctx, now, d.opts.BatchLimit)
	if err != nil {
		return DispatchReport{}, fmt.Errorf("failed to fetch due reminders: %w", err)
	}
	return d.deliverAll(ctx, due, now), nil
}

// RetryFailed makes one more attempt for every FAILED reminder that still
// has attempts left. Exhausted reminders are never selected.
func (d *ReminderDispatcher) RetryFailed(ctx context.Context) (DispatchReport, error) {
	failed, err := d.reminders.GetRetryable(ctx, d.opts.BatchLimit)
	if err != nil {
		return DispatchReport{}, fmt.Errorf("failed to fetch retryable reminders: %w", err)
	}

	retryable := failed[:0]
	for _, r := range failed {
		if r.CanRetry() {
			retryable = append(retryable, r)
		}
	}
	return d.deliverAll(ctx, retryable, d.now()), nil
}

// deliverAll processes records independently. No record's failure stops
// the others, so the workers never return an error.
func (d *ReminderDispatcher) deliverAll(ctx context.Context, reminders []domain.Reminder, now time.Time) DispatchReport {
	report := DispatchReport{Selected: len(reminders)}
	if len(reminders) == 0 {
		return report
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(d.opts.Concurrency)

	for i := range reminders {
		reminder := reminders[i]
		g.Go(func() error {
			outcome := d.deliverSafely(ctx, &reminder, now)
			mu.Lock()
			report.add(outcome)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return report
}

// deliverSafely contains a panic raised while delivering one reminder and
// records it as a failed attempt.
func (d *ReminderDispatcher) deliverSafely(ctx context.Context, r *domain.Reminder, now time.Time) (outcome deliveryOutcome) {
	defer func() {
		rec := recover()
		if rec == nil {
			return
		}

		logger := observability.WithContextLogger(d.logger, ctx).With(
			zap.String("reminderId", r.ID),
			zap.String("bookingId", r.BookingID),
			zap.String("kind", r.Kind.String()),
		)
		logger.Error("reminder delivery panicked", zap.Any("panic", rec), zap.Stack("stack"))

		writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), bookkeepingTimeout)
		defer cancel()
		outcome = d.markFailed(writeCtx, logger, r, fmt.Errorf("panic during delivery: %v", rec))
	}()

	return d.deliver(ctx, r, now)
}

func (d *ReminderDispatcher) deliver(ctx context.Context, r *domain.Reminder, now time.Time) deliveryOutcome {
	if ctx.Err() != nil {
		return outcomeSkipped
	}

	logger := observability.WithContextLogger(d.logger, ctx).With(
		zap.String("reminderId", r.ID),
		zap.String("bookingId", r.BookingID),
		zap.String("kind", r.Kind.String()),
	)
	channel := r.Channel.String()

	var resp *gateway.Response
	var elapsed time.Duration

	msg, sendErr := d.compose(ctx, r)
	if sendErr == nil {
		if err := d.limiter.Wait(ctx, r.Channel); err != nil {
			if ctx.Err() != nil {
				return outcomeSkipped
			}
			sendErr = fmt.Errorf("rate limiter: %w", err)
		}
	}
	if sendErr == nil {
		resp, elapsed, sendErr = d.send(ctx, msg)
		d.metrics.ObserveDeliveryDuration(channel, elapsed)
	}

	// Bookkeeping must land even when the cycle is being shut down.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), bookkeepingTimeout)
	defer cancel()

	d.recordAttempt(writeCtx, logger, r, resp, elapsed, sendErr)

	if sendErr == nil {
		return d.markSent(writeCtx, logger, r, now)
	}
	return d.markFailed(writeCtx, logger, r, sendErr)
}

func (d *ReminderDispatcher) compose(ctx context.Context, r *domain.Reminder) (gateway.Message, error) {
	msg := gateway.Message{
		Channel:    r.Channel,
		To:         r.Recipient,
		Subject:    r.Kind.Subject(),
		Body:       r.Message,
		ReminderID: r.ID,
		BookingID:  r.BookingID,
		Kind:       r.Kind,
	}
	if d.bookings == nil {
		return msg, nil
	}

	booking, err := d.bookings.GetBookingDetails(ctx, r.BookingID)
	if errors.Is(err, domain.ErrNotFound) {
		return msg, nil
	}
	if err != nil {
		return msg, fmt.Errorf("failed to load booking details: %w", err)
	}

	body, err := renderReminderBody(r, booking)
	if err != nil {
		return msg, err
	}
	msg.Body = body
	return msg, nil
}

func (d *ReminderDispatcher) send(ctx context.Context, msg gateway.Message) (*gateway.Response, time.Duration, error) {
	sendCtx, cancel := context.WithTimeout(ctx, d.opts.SendTimeout)
	defer cancel()

	start := d.now()
	resp, err := d.gateway.Send(sendCtx, msg)
	elapsed := d.now().Sub(start)

	if err == nil && sendCtx.Err() != nil {
		err = sendCtx.Err()
	}
	return resp, elapsed, err
}

// markSent stamps the cycle time so every reminder sent in one pass shares
// the same sent_at.
func (d *ReminderDispatcher) markSent(ctx context.Context, logger *zap.Logger, r *domain.Reminder, now time.Time) deliveryOutcome {
	sentAt := now.UTC()
	if err := d.reminders.MarkSent(ctx, repository.GuardOf(r), sentAt); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			logger.Info("reminder changed during delivery, sent status not recorded", zap.Error(err))
			d.metrics.IncDelivery(r.Channel.String(), observability.OutcomeSkipped)
			return outcomeSkipped
		}
		// Delivered but not recorded: the next cycle will deliver it again.
		logger.Error("failed to mark reminder as sent", zap.Error(err))
	}

	d.metrics.IncDelivery(r.Channel.String(), observability.OutcomeSent)
	logger.Info("reminder sent", zap.String("channel", r.Channel.String()))

	r.Status = domain.StatusSent
	r.SentAt = &sentAt
	r.ErrorDetail = nil
	d.publishOutcome(ctx, logger, r)

	return outcomeSent
}

func (d *ReminderDispatcher) markFailed(ctx context.Context, logger *zap.Logger, r *domain.Reminder, sendErr error) deliveryOutcome {
	detail := domain.TruncateErrorDetail(sendErr.Error())
	if err := d.reminders.MarkFailed(ctx, repository.GuardOf(r), detail); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			logger.Info("reminder changed during delivery, failure not recorded", zap.Error(err))
			d.metrics.IncDelivery(r.Channel.String(), observability.OutcomeSkipped)
			return outcomeSkipped
		}
		logger.Error("failed to mark reminder as failed", zap.Error(err), zap.String("sendError", detail))
		return outcomeFailed
	}

	r.Status = domain.StatusFailed
	r.ErrorDetail = &detail
	r.AttemptCount++

	if r.IsExhausted() {
		logger.Warn("reminder delivery failed, no attempts left",
			zap.Int("attemptCount", r.AttemptCount),
			zap.String("error", detail),
		)
		d.metrics.IncDelivery(r.Channel.String(), observability.OutcomeExhausted)
		d.publishOutcome(ctx, logger, r)
		return outcomeExhausted
	}

	logger.Warn("reminder delivery failed",
		zap.Int("attemptCount", r.AttemptCount),
		zap.Int("attemptLimit", r.AttemptLimit),
		zap.Bool("transient", gateway.IsTransient(sendErr)),
		zap.String("error", detail),
	)
	d.metrics.IncDelivery(r.Channel.String(), observability.OutcomeFailed)
	return outcomeFailed
}

func (d *ReminderDispatcher) recordAttempt(
	ctx context.Context,
	logger *zap.Logger,
	r *domain.Reminder,
	resp *gateway.Response,
	elapsed time.Duration,
	sendErr error,
) {
	if d.attempts == nil {
		return
	}

	var statusCode *int
	if resp != nil && resp.StatusCode > 0 {
		value := resp.StatusCode
		statusCode = &value
	}
	var attemptErr *string
	if sendErr != nil {
		value := domain.TruncateErrorDetail(sendErr.Error())
		attemptErr = &value
		if code, ok := gateway.StatusCodeOf(sendErr); ok && statusCode == nil {
			statusCode = &code
		}
	}

	attempt := &domain.ReminderAttempt{
		ID:            uuid.NewString(),
		ReminderID:    r.ID,
		AttemptNumber: r.AttemptCount + 1,
		StatusCode:    statusCode,
		Error:         attemptErr,
		DurationMs:    elapsed.Milliseconds(),
		CreatedAt:     d.now().UTC(),
	}
	if err := d.attempts.Create(ctx, attempt); err != nil {
		logger.Warn("failed to record delivery attempt", zap.Error(err))
	}
}

func (d *ReminderDispatcher) publishOutcome(ctx context.Context, logger *zap.Logger, r *domain.Reminder) {
	if d.publisher == nil {
		return
	}

	event := queue.ReminderEventMessage{
		EventID:      uuid.NewString(),
		ReminderID:   r.ID,
		BookingID:    r.BookingID,
		Kind:         r.Kind,
		Channel:      r.Channel,
		Status:       r.Status,
		AttemptCount: r.AttemptCount,
		OccurredAt:   d.now().UTC(),
	}
	if r.ErrorDetail != nil {
		event.Error = *r.ErrorDetail
	}

	if err := d.publisher.PublishReminderEvent(ctx, event); err != nil {
		logger.Warn("failed to publish reminder outcome", zap.Error(err))
	}
}
