package handler

import (
	"bytes"
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/ride-reminders/internal/domain"
	"github.com/kursadbilgin/ride-reminders/internal/gateway"
	"github.com/kursadbilgin/ride-reminders/internal/observability"
	"github.com/kursadbilgin/ride-reminders/internal/service"
	"github.com/kursadbilgin/ride-reminders/internal/transport"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	testBookingID   = "5b0f6d3e-8c1a-4f7e-9d2b-3a6c1e0f4b11"
	otherBookingID  = "5b0f6d3e-8c1a-4f7e-9d2b-3a6c1e0f4b22"
	missingID       = "5b0f6d3e-8c1a-4f7e-9d2b-3a6c1e0f4b99"
	testPassengerID = "0c7a9e21-4b3d-4e8f-a1c2-7d6e5f4a3b11"
	testReminderID  = "e3d2c1b0-9a8f-4e7d-b6c5-a4f3e2d1c011"
)

func TestReminderIntegration_ScheduleReminders(t *testing.T) {
	t.Parallel()

	scheduledAt := time.Date(2026, 3, 10, 17, 0, 0, 0, time.UTC)
	var correlationID string
	scheduler := &stubScheduler{
		scheduleFn: func(ctx context.Context, bookingID string) ([]domain.Reminder, error) {
			correlationID, _ = observability.CorrelationIDFromContext(ctx)
			switch bookingID {
			case testBookingID:
				return []domain.Reminder{testReminder(testReminderID, bookingID, scheduledAt)}, nil
			case missingID:
				return nil, fmt.Errorf("failed to load booking %s: %w", bookingID, domain.ErrNotFound)
			default:
				return nil, fmt.Errorf("%w: passenger has no email", domain.ErrValidation)
			}
		},
	}

	app := newReminderTestApp(t, ReminderDependencies{Scheduler: scheduler})

	resp, body := performRequest(t, app, http.MethodPost, "/v1/bookings/"+testBookingID+"/reminders", "")
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("status = %d, want 201, body=%s", resp.StatusCode, string(body))
	}

	var parsed bookingRemindersResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if parsed.BookingID != testBookingID || len(parsed.Reminders) != 1 {
		t.Fatalf("response = %+v, want one reminder for b1", parsed)
	}
	if parsed.Reminders[0].Kind != domain.KindOneHourBefore.String() || !parsed.Reminders[0].ScheduledAt.Equal(scheduledAt) {
		t.Fatalf("reminder = %+v", parsed.Reminders[0])
	}
	if correlationID != "req-123" {
		t.Fatalf("correlation id = %q, want req-123", correlationID)
	}

	resp, _ = performRequest(t, app, http.MethodPost, "/v1/bookings/"+missingID+"/reminders", "")
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("status = %d, want 404 for unknown booking", resp.StatusCode)
	}

	resp, _ = performRequest(t, app, http.MethodPost, "/v1/bookings/"+otherBookingID+"/reminders", "")
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for validation error", resp.StatusCode)
	}
}

func TestReminderIntegration_ListAndCancel(t *testing.T) {
	t.Parallel()

	scheduledAt := time.Date(2026, 3, 10, 17, 0, 0, 0, time.UTC)
	exhausted := testReminder("r2", testBookingID, scheduledAt)
	exhausted.Status = domain.StatusFailed
	exhausted.AttemptCount = 3

	queries := &stubQueries{
		listByBookingFn: func(ctx context.Context, bookingID string) ([]domain.Reminder, error) {
			return []domain.Reminder{testReminder(testReminderID, bookingID, scheduledAt), exhausted}, nil
		},
		listByPassengerFn: func(ctx context.Context, passengerID string) ([]domain.Reminder, error) {
			if passengerID != testPassengerID {
				t.Fatalf("passengerID = %q, want p1", passengerID)
			}
			return []domain.Reminder{testReminder(testReminderID, testBookingID, scheduledAt)}, nil
		},
		listByRecipientFn: func(ctx context.Context, recipient string) ([]domain.Reminder, error) {
			if strings.TrimSpace(recipient) == "" {
				return nil, fmt.Errorf("%w: recipient is required", domain.ErrValidation)
			}
			if recipient != "ada@example.com" {
				t.Fatalf("recipient = %q, want ada@example.com", recipient)
			}
			return nil, nil
		},
	}
	scheduler := &stubScheduler{
		cancelFn: func(ctx context.Context, bookingID string) (int64, error) {
			return 2, nil
		},
	}

	app := newReminderTestApp(t, ReminderDependencies{Scheduler: scheduler, Queries: queries})

	resp, body := performRequest(t, app, http.MethodGet, "/v1/bookings/"+testBookingID+"/reminders", "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
	}
	var byBooking bookingRemindersResponse
	if err := json.Unmarshal(body, &byBooking); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if len(byBooking.Reminders) != 2 || byBooking.Reminders[0].Exhausted || !byBooking.Reminders[1].Exhausted {
		t.Fatalf("reminders = %+v, want second one exhausted", byBooking.Reminders)
	}

	resp, body = performRequest(t, app, http.MethodGet, "/v1/passengers/"+testPassengerID+"/reminders", "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
	}
	var byPassenger listRemindersResponse
	if err := json.Unmarshal(body, &byPassenger); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if byPassenger.Total != 1 {
		t.Fatalf("total = %d, want 1", byPassenger.Total)
	}

	resp, body = performRequest(t, app, http.MethodGet, "/v1/reminders?recipient=ada@example.com", "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
	}
	if !strings.Contains(string(body), `"data":[]`) {
		t.Fatalf("body = %s, want empty data array", string(body))
	}

	resp, _ = performRequest(t, app, http.MethodGet, "/v1/reminders", "")
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400 without recipient", resp.StatusCode)
	}

	resp, body = performRequest(t, app, http.MethodDelete, "/v1/bookings/"+testBookingID+"/reminders", "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
	}
	var cancelled map[string]any
	if err := json.Unmarshal(body, &cancelled); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if cancelled["cancelled"] != float64(2) {
		t.Fatalf("cancelled = %v, want 2", cancelled["cancelled"])
	}
}

func TestReminderIntegration_GetReminderAndAttempts(t *testing.T) {
	t.Parallel()

	scheduledAt := time.Date(2026, 3, 10, 17, 0, 0, 0, time.UTC)
	code := 503
	detail := "webhook returned status 503"
	queries := &stubQueries{
		getByIDFn: func(ctx context.Context, id string) (*domain.Reminder, error) {
			if id != testReminderID {
				return nil, fmt.Errorf("%w: reminder %s", domain.ErrNotFound, id)
			}
			r := testReminder(testReminderID, testBookingID, scheduledAt)
			return &r, nil
		},
		attemptsFn: func(ctx context.Context, reminderID string) ([]domain.ReminderAttempt, error) {
			if reminderID != testReminderID {
				return nil, fmt.Errorf("%w: reminder %s", domain.ErrNotFound, reminderID)
			}
			return []domain.ReminderAttempt{
				{ID: "a1", ReminderID: testReminderID, AttemptNumber: 1, StatusCode: &code, Error: &detail, DurationMs: 40},
				{ID: "a2", ReminderID: testReminderID, AttemptNumber: 2, DurationMs: 25},
			}, nil
		},
	}

	app := newReminderTestApp(t, ReminderDependencies{Queries: queries})

	resp, body := performRequest(t, app, http.MethodGet, "/v1/reminders/"+testReminderID, "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
	}
	var reminder reminderResponse
	if err := json.Unmarshal(body, &reminder); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if reminder.ID != testReminderID || reminder.BookingID != testBookingID {
		t.Fatalf("reminder = %+v, want r1/b1", reminder)
	}

	resp, _ = performRequest(t, app, http.MethodGet, "/v1/reminders/"+missingID, "")
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}

	resp, body = performRequest(t, app, http.MethodGet, "/v1/reminders/"+testReminderID+"/attempts", "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
	}
	var history struct {
		ReminderID string            `json:"reminderId"`
		Attempts   []attemptResponse `json:"attempts"`
	}
	if err := json.Unmarshal(body, &history); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if history.ReminderID != testReminderID || len(history.Attempts) != 2 {
		t.Fatalf("history = %+v, want two attempts for r1", history)
	}
	if history.Attempts[0].StatusCode == nil || *history.Attempts[0].StatusCode != 503 {
		t.Fatalf("first attempt status = %v, want 503", history.Attempts[0].StatusCode)
	}

	resp, _ = performRequest(t, app, http.MethodGet, "/v1/reminders/"+missingID+"/attempts", "")
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestReminderIntegration_RejectsMalformedIDs(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	calls := 0
	called := func() {
		mu.Lock()
		calls++
		mu.Unlock()
	}
	scheduler := &stubScheduler{
		scheduleFn: func(ctx context.Context, bookingID string) ([]domain.Reminder, error) {
			called()
			return nil, nil
		},
		cancelFn: func(ctx context.Context, bookingID string) (int64, error) {
			called()
			return 0, nil
		},
	}
	queries := &stubQueries{
		getByIDFn: func(ctx context.Context, id string) (*domain.Reminder, error) {
			called()
			return nil, domain.ErrNotFound
		},
		attemptsFn: func(ctx context.Context, reminderID string) ([]domain.ReminderAttempt, error) {
			called()
			return nil, nil
		},
		listByBookingFn: func(ctx context.Context, bookingID string) ([]domain.Reminder, error) {
			called()
			return nil, nil
		},
		listByPassengerFn: func(ctx context.Context, passengerID string) ([]domain.Reminder, error) {
			called()
			return nil, nil
		},
	}

	app := newReminderTestApp(t, ReminderDependencies{Scheduler: scheduler, Queries: queries})

	tests := []struct {
		name   string
		method string
		path   string
	}{
		{name: "schedule", method: http.MethodPost, path: "/v1/bookings/not-a-uuid/reminders"},
		{name: "list by booking", method: http.MethodGet, path: "/v1/bookings/b1/reminders"},
		{name: "cancel", method: http.MethodDelete, path: "/v1/bookings/42/reminders"},
		{name: "list by passenger", method: http.MethodGet, path: "/v1/passengers/p1/reminders"},
		{name: "get reminder", method: http.MethodGet, path: "/v1/reminders/r1"},
		{name: "attempts", method: http.MethodGet, path: "/v1/reminders/r1/attempts"},
	}

	for _, tt := range tests {
		resp, body := performRequest(t, app, tt.method, tt.path, "")
		if resp.StatusCode != fiber.StatusBadRequest {
			t.Fatalf("%s: status = %d, want 400, body=%s", tt.name, resp.StatusCode, string(body))
		}
		if !strings.Contains(string(body), "must be a UUID") {
			t.Fatalf("%s: body = %s, want UUID error", tt.name, string(body))
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if calls != 0 {
		t.Fatalf("service called %d times for malformed ids, want 0", calls)
	}
}

func TestReminderIntegration_StatisticsAndHealth(t *testing.T) {
	t.Parallel()

	healthy := true
	queries := &stubQueries{
		statisticsFn: func(ctx context.Context) (service.Statistics, error) {
			if !healthy {
				return service.Statistics{}, errors.New("db down")
			}
			return service.Statistics{Scheduled: 3, Sent: 5, Failed: 1, Exhausted: 1, Total: 9}, nil
		},
	}

	app := newReminderTestApp(t, ReminderDependencies{Queries: queries})

	resp, body := performRequest(t, app, http.MethodGet, "/v1/reminders/statistics", "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
	}
	var stats service.Statistics
	if err := json.Unmarshal(body, &stats); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if stats.Total != 9 || stats.Exhausted != 1 {
		t.Fatalf("stats = %+v", stats)
	}

	resp, body = performRequest(t, app, http.MethodGet, "/v1/reminders/health", "")
	if resp.StatusCode != fiber.StatusOK || !strings.Contains(string(body), `"status":"UP"`) {
		t.Fatalf("health = %d %s, want 200 UP", resp.StatusCode, string(body))
	}

	healthy = false
	resp, body = performRequest(t, app, http.MethodGet, "/v1/reminders/health", "")
	if resp.StatusCode != fiber.StatusServiceUnavailable || !strings.Contains(string(body), `"status":"DOWN"`) {
		t.Fatalf("health = %d %s, want 503 DOWN", resp.StatusCode, string(body))
	}
}

func TestReminderIntegration_ManualCycles(t *testing.T) {
	t.Parallel()

	trigger := &stubTrigger{
		triggerDueFn: func(ctx context.Context) (service.DispatchReport, error) {
			return service.DispatchReport{Selected: 3, Sent: 2, Failed: 1}, nil
		},
		triggerRetryFn: func(ctx context.Context) (service.DispatchReport, error) {
			return service.DispatchReport{}, fmt.Errorf("%w: cycle already running", domain.ErrConflict)
		},
	}

	app := newReminderTestApp(t, ReminderDependencies{Trigger: trigger})

	resp, body := performRequest(t, app, http.MethodPost, "/v1/reminders/process-due", "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
	}
	var report service.DispatchReport
	if err := json.Unmarshal(body, &report); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if report.Selected != 3 || report.Sent != 2 || report.Failed != 1 {
		t.Fatalf("report = %+v", report)
	}

	resp, _ = performRequest(t, app, http.MethodPost, "/v1/reminders/retry-failed", "")
	if resp.StatusCode != fiber.StatusConflict {
		t.Fatalf("status = %d, want 409 while a retry cycle runs", resp.StatusCode)
	}
}

func TestReminderIntegration_SendTestReminder(t *testing.T) {
	t.Parallel()

	var sent gateway.Message
	gw := &stubGateway{
		sendFn: func(ctx context.Context, msg gateway.Message) (*gateway.Response, error) {
			if msg.To == "down@example.com" {
				return nil, &gateway.GatewayError{StatusCode: 503, Transient: true}
			}
			sent = msg
			return &gateway.Response{MessageID: "msg-1"}, nil
		},
	}

	app := newReminderTestApp(t, ReminderDependencies{Gateway: gw, DefaultChannel: domain.ChannelEmail})

	resp, body := performRequest(t, app, http.MethodPost, "/v1/reminders/test", `{"recipient":"ada@example.com","message":"hello"}`)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
	}
	if sent.Channel != domain.ChannelEmail || sent.To != "ada@example.com" || sent.Subject != "Ride Reminder: Test" {
		t.Fatalf("sent = %+v", sent)
	}
	if !strings.Contains(string(body), `"messageId":"msg-1"`) {
		t.Fatalf("body = %s, want messageId", string(body))
	}

	resp, _ = performRequest(t, app, http.MethodPost, "/v1/reminders/test", `{"recipient":"+905551112233","channel":"sms","message":"hello"}`)
	if resp.StatusCode != fiber.StatusOK || sent.Channel != domain.ChannelSMS {
		t.Fatalf("status = %d channel = %s, want 200 via SMS", resp.StatusCode, sent.Channel)
	}

	badRequests := []string{
		`{"recipient":"","message":"hello"}`,
		`{"recipient":"ada@example.com","message":""}`,
		`{"recipient":"not-an-email","message":"hello"}`,
		`{"recipient":"ada@example.com","channel":"pigeon","message":"hello"}`,
		fmt.Sprintf(`{"recipient":"ada@example.com","message":"%s"}`, strings.Repeat("a", domain.MaxReminderMessage+1)),
		`{not json`,
	}
	for _, body := range badRequests {
		resp, _ = performRequest(t, app, http.MethodPost, "/v1/reminders/test", body)
		if resp.StatusCode != fiber.StatusBadRequest {
			t.Fatalf("status = %d, want 400 for body %s", resp.StatusCode, body)
		}
	}

	resp, _ = performRequest(t, app, http.MethodPost, "/v1/reminders/test", `{"recipient":"down@example.com","message":"hello"}`)
	if resp.StatusCode != fiber.StatusBadGateway {
		t.Fatalf("status = %d, want 502 when the gateway fails", resp.StatusCode)
	}
}

func TestHealthIntegration_LivezAndReadyz(t *testing.T) {
	t.Parallel()

	t.Run("livez returns 200", func(t *testing.T) {
		t.Parallel()

		app := fiber.New(fiber.Config{ErrorHandler: transport.ErrorHandler(zap.NewNop())})
		RegisterHealthRoutes(app, sql.OpenDB(stubConnector{}), newStubRedisClient(nil), nil)

		resp, body := performRequest(t, app, http.MethodGet, "/livez", "")
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
		}
	})

	tests := []struct {
		name       string
		pgErr      error
		redisErr   error
		broker     BrokerHealth
		wantStatus int
		wantBroker string
	}{
		{name: "ready without broker", wantStatus: fiber.StatusOK, wantBroker: "disabled"},
		{name: "ready with broker", broker: stubBroker(true), wantStatus: fiber.StatusOK, wantBroker: "ok"},
		{name: "broker down", broker: stubBroker(false), wantStatus: fiber.StatusServiceUnavailable, wantBroker: "down"},
		{name: "postgres down", pgErr: errors.New("postgres down"), wantStatus: fiber.StatusServiceUnavailable, wantBroker: "disabled"},
		{name: "redis down", redisErr: errors.New("redis down"), wantStatus: fiber.StatusServiceUnavailable, wantBroker: "disabled"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sqlDB := sql.OpenDB(stubConnector{pingErr: tt.pgErr})
			t.Cleanup(func() { _ = sqlDB.Close() })

			rdb := newStubRedisClient(tt.redisErr)
			t.Cleanup(func() { _ = rdb.Close() })

			app := fiber.New(fiber.Config{ErrorHandler: transport.ErrorHandler(zap.NewNop())})
			RegisterHealthRoutes(app, sqlDB, rdb, tt.broker)

			resp, body := performRequest(t, app, http.MethodGet, "/readyz", "")
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body=%s", resp.StatusCode, tt.wantStatus, string(body))
			}

			var parsed struct {
				Checks map[string]string `json:"checks"`
			}
			if err := json.Unmarshal(body, &parsed); err != nil {
				t.Fatalf("json unmarshal error = %v", err)
			}
			if parsed.Checks["rabbitmq"] != tt.wantBroker {
				t.Fatalf("rabbitmq check = %q, want %q", parsed.Checks["rabbitmq"], tt.wantBroker)
			}
		})
	}
}

func TestNewReminderHandlerRequiresDependencies(t *testing.T) {
	t.Parallel()

	complete := ReminderDependencies{
		Scheduler: &stubScheduler{},
		Queries:   &stubQueries{},
		Trigger:   &stubTrigger{},
		Gateway:   &stubGateway{},
	}

	tests := []struct {
		name   string
		mutate func(d *ReminderDependencies)
	}{
		{name: "scheduler", mutate: func(d *ReminderDependencies) { d.Scheduler = nil }},
		{name: "queries", mutate: func(d *ReminderDependencies) { d.Queries = nil }},
		{name: "trigger", mutate: func(d *ReminderDependencies) { d.Trigger = nil }},
		{name: "gateway", mutate: func(d *ReminderDependencies) { d.Gateway = nil }},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			deps := complete
			tt.mutate(&deps)
			if _, err := NewReminderHandler(deps); err == nil {
				t.Fatalf("NewReminderHandler() without %s should fail", tt.name)
			}
		})
	}

	h, err := NewReminderHandler(complete)
	if err != nil {
		t.Fatalf("NewReminderHandler() error = %v", err)
	}
	if h.deps.DefaultChannel != domain.ChannelEmail {
		t.Fatalf("default channel = %s, want EMAIL", h.deps.DefaultChannel)
	}
}

func testReminder(id, bookingID string, scheduledAt time.Time) domain.Reminder {
	return domain.Reminder{
		ID:           id,
		BookingID:    bookingID,
		Kind:         domain.KindOneHourBefore,
		ScheduledAt:  scheduledAt,
		Status:       domain.StatusScheduled,
		Channel:      domain.ChannelEmail,
		Recipient:    "ada@example.com",
		Message:      "Your ride from Istanbul to Ankara is scheduled in 1 hour. Please be ready!",
		AttemptLimit: 3,
	}
}

// newReminderTestApp fills missing dependencies with empty stubs.
func newReminderTestApp(t *testing.T, deps ReminderDependencies) *fiber.App {
	t.Helper()

	if deps.Scheduler == nil {
		deps.Scheduler = &stubScheduler{}
	}
	if deps.Queries == nil {
		deps.Queries = &stubQueries{}
	}
	if deps.Trigger == nil {
		deps.Trigger = &stubTrigger{}
	}
	if deps.Gateway == nil {
		deps.Gateway = &stubGateway{}
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(zap.NewNop()),
	})

	if err := RegisterReminderRoutes(app, deps); err != nil {
		t.Fatalf("RegisterReminderRoutes() error = %v", err)
	}

	return app
}

func performRequest(t *testing.T, app *fiber.App, method string, path string, body string) (*http.Response, []byte) {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set(fiber.HeaderXRequestID, "req-123")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	_ = resp.Body.Close()

	return resp, respBody
}

type stubScheduler struct {
	scheduleFn func(ctx context.Context, bookingID string) ([]domain.Reminder, error)
	cancelFn   func(ctx context.Context, bookingID string) (int64, error)
}

func (s *stubScheduler) ScheduleForBookingID(ctx context.Context, bookingID string) ([]domain.Reminder, error) {
	if s.scheduleFn != nil {
		return s.scheduleFn(ctx, bookingID)
	}
	return nil, nil
}

func (s *stubScheduler) CancelForBooking(ctx context.Context, bookingID string) (int64, error) {
	if s.cancelFn != nil {
		return s.cancelFn(ctx, bookingID)
	}
	return 0, nil
}

type stubQueries struct {
	getByIDFn         func(ctx context.Context, id string) (*domain.Reminder, error)
	attemptsFn        func(ctx context.Context, reminderID string) ([]domain.ReminderAttempt, error)
	listByBookingFn   func(ctx context.Context, bookingID string) ([]domain.Reminder, error)
	listByRecipientFn func(ctx context.Context, recipient string) ([]domain.Reminder, error)
	listByPassengerFn func(ctx context.Context, passengerID string) ([]domain.Reminder, error)
	statisticsFn      func(ctx context.Context) (service.Statistics, error)
}

func (s *stubQueries) GetByID(ctx context.Context, id string) (*domain.Reminder, error) {
	if s.getByIDFn != nil {
		return s.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (s *stubQueries) Attempts(ctx context.Context, reminderID string) ([]domain.ReminderAttempt, error) {
	if s.attemptsFn != nil {
		return s.attemptsFn(ctx, reminderID)
	}
	return nil, nil
}

func (s *stubQueries) ListByBooking(ctx context.Context, bookingID string) ([]domain.Reminder, error) {
	if s.listByBookingFn != nil {
		return s.listByBookingFn(ctx, bookingID)
	}
	return nil, nil
}

func (s *stubQueries) ListByRecipient(ctx context.Context, recipient string) ([]domain.Reminder, error) {
	if s.listByRecipientFn != nil {
		return s.listByRecipientFn(ctx, recipient)
	}
	return nil, nil
}

func (s *stubQueries) ListByPassenger(ctx context.Context, passengerID string) ([]domain.Reminder, error) {
	if s.listByPassengerFn != nil {
		return s.listByPassengerFn(ctx, passengerID)
	}
	return nil, nil
}

func (s *stubQueries) Statistics(ctx context.Context) (service.Statistics, error) {
	if s.statisticsFn != nil {
		return s.statisticsFn(ctx)
	}
	return service.Statistics{}, nil
}

type stubTrigger struct {
	triggerDueFn   func(ctx context.Context) (service.DispatchReport, error)
	triggerRetryFn func(ctx context.Context) (service.DispatchReport, error)
}

func (s *stubTrigger) TriggerDue(ctx context.Context) (service.DispatchReport, error) {
	if s.triggerDueFn != nil {
		return s.triggerDueFn(ctx)
	}
	return service.DispatchReport{}, nil
}

func (s *stubTrigger) TriggerRetry(ctx context.Context) (service.DispatchReport, error) {
	if s.triggerRetryFn != nil {
		return s.triggerRetryFn(ctx)
	}
	return service.DispatchReport{}, nil
}

type stubGateway struct {
	sendFn func(ctx context.Context, msg gateway.Message) (*gateway.Response, error)
}

func (s *stubGateway) Send(ctx context.Context, msg gateway.Message) (*gateway.Response, error) {
	if s.sendFn != nil {
		return s.sendFn(ctx, msg)
	}
	return &gateway.Response{}, nil
}

type stubBroker bool

func (b stubBroker) Healthy() bool { return bool(b) }

type stubConnector struct {
	pingErr error
}

func (c stubConnector) Connect(context.Context) (driver.Conn, error) {
	return stubConn(c), nil
}

func (c stubConnector) Driver() driver.Driver {
	return stubDriver(c)
}

type stubDriver struct {
	pingErr error
}

func (d stubDriver) Open(string) (driver.Conn, error) {
	return stubConn(d), nil
}

type stubConn struct {
	pingErr error
}

func (c stubConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("not implemented") }
func (c stubConn) Close() error                        { return nil }
func (c stubConn) Begin() (driver.Tx, error)           { return nil, errors.New("not implemented") }
func (c stubConn) Ping(context.Context) error          { return c.pingErr }

type stubRedisHook struct {
	pingErr error
}

func (h stubRedisHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (h stubRedisHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if strings.EqualFold(cmd.Name(), "ping") && h.pingErr != nil {
			cmd.SetErr(h.pingErr)
			return h.pingErr
		}
		cmd.SetErr(nil)
		return nil
	}
}

func (h stubRedisHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		for _, cmd := range cmds {
			cmd.SetErr(nil)
		}
		return nil
	}
}

func newStubRedisClient(pingErr error) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:         "127.0.0.1:6379",
		DialTimeout:  time.Millisecond,
		ReadTimeout:  time.Millisecond,
		WriteTimeout: time.Millisecond,
	})
	rdb.AddHook(stubRedisHook{pingErr: pingErr})
	return rdb
}
