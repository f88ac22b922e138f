package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/ride-reminders/internal/domain"
	"github.com/kursadbilgin/ride-reminders/internal/gateway"
	"github.com/kursadbilgin/ride-reminders/internal/observability"
	"github.com/kursadbilgin/ride-reminders/internal/service"
)

const testSendTimeout = 10 * time.Second

type ReminderScheduler interface {
	ScheduleForBookingID(ctx context.Context, bookingID string) ([]domain.Reminder, error)
	CancelForBooking(ctx context.Context, bookingID string) (int64, error)
}

type ReminderQueries interface {
	GetByID(ctx context.Context, id string) (*domain.Reminder, error)
	Attempts(ctx context.Context, reminderID string) ([]domain.ReminderAttempt, error)
	ListByBooking(ctx context.Context, bookingID string) ([]domain.Reminder, error)
	ListByRecipient(ctx context.Context, recipient string) ([]domain.Reminder, error)
	ListByPassenger(ctx context.Context, passengerID string) ([]domain.Reminder, error)
	Statistics(ctx context.Context) (service.Statistics, error)
}

// CycleTrigger runs dispatch cycles on demand.
type CycleTrigger interface {
	TriggerDue(ctx context.Context) (service.DispatchReport, error)
	TriggerRetry(ctx context.Context) (service.DispatchReport, error)
}

type ReminderDependencies struct {
	Scheduler      ReminderScheduler
	Queries        ReminderQueries
	Trigger        CycleTrigger
	Gateway        gateway.Gateway
	DefaultChannel domain.Channel
}

type ReminderHandler struct {
	deps     ReminderDependencies
	validate *validator.Validate
}

func NewReminderHandler(deps ReminderDependencies) (*ReminderHandler, error) {
	if deps.Scheduler == nil {
		return nil, fmt.Errorf("reminder scheduler is required")
	}
	if deps.Queries == nil {
		return nil, fmt.Errorf("reminder queries are required")
	}
	if deps.Trigger == nil {
		return nil, fmt.Errorf("cycle trigger is required")
	}
	if deps.Gateway == nil {
		return nil, fmt.Errorf("gateway is required")
	}
	if !deps.DefaultChannel.IsValid() {
		deps.DefaultChannel = domain.ChannelEmail
	}

	return &ReminderHandler{deps: deps, validate: validator.New()}, nil
}

func RegisterReminderRoutes(router fiber.Router, deps ReminderDependencies) error {
	h, err := NewReminderHandler(deps)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/bookings/:bookingId/reminders", h.ScheduleReminders)
	v1.Get("/bookings/:bookingId/reminders", h.ListBookingReminders)
	v1.Delete("/bookings/:bookingId/reminders", h.CancelReminders)
	v1.Get("/passengers/:passengerId/reminders", h.ListPassengerReminders)
	v1.Get("/reminders", h.ListRecipientReminders)
	v1.Get("/reminders/health", h.Health)
	v1.Get("/reminders/statistics", h.GetStatistics)
	v1.Post("/reminders/process-due", h.ProcessDue)
	v1.Post("/reminders/retry-failed", h.RetryFailed)
	v1.Post("/reminders/test", h.SendTestReminder)
	v1.Get("/reminders/:id", h.GetReminder)
	v1.Get("/reminders/:id/attempts", h.ListAttempts)

	return nil
}

type reminderResponse struct {
	ID           string     `json:"id"`
	BookingID    string     `json:"bookingId"`
	Kind         string     `json:"kind"`
	ScheduledAt  time.Time  `json:"scheduledAt"`
	Status       string     `json:"status"`
	Channel      string     `json:"channel"`
	Recipient    string     `json:"recipient"`
	Message      string     `json:"message"`
	SentAt       *time.Time `json:"sentAt,omitempty"`
	ErrorDetail  *string    `json:"errorDetail,omitempty"`
	AttemptCount int        `json:"attemptCount"`
	AttemptLimit int        `json:"attemptLimit"`
	Exhausted    bool       `json:"exhausted"`
	CreatedAt    time.Time  `json:"createdAt,omitempty"`
	UpdatedAt    time.Time  `json:"updatedAt,omitempty"`
}

type attemptResponse struct {
	AttemptNumber int       `json:"attemptNumber"`
	StatusCode    *int      `json:"statusCode,omitempty"`
	Error         *string   `json:"error,omitempty"`
	DurationMs    int64     `json:"durationMs"`
	CreatedAt     time.Time `json:"createdAt"`
}

type bookingRemindersResponse struct {
	BookingID string             `json:"bookingId"`
	Reminders []reminderResponse `json:"reminders"`
}

type listRemindersResponse struct {
	Data  []reminderResponse `json:"data"`
	Total int                `json:"total"`
}

type testReminderRequest struct {
	Recipient string `json:"recipient" validate:"required,max=255"`
	Channel   string `json:"channel" validate:"omitempty,oneof=EMAIL SMS WEBHOOK email sms webhook"`
	Subject   string `json:"subject" validate:"max=200"`
	Message   string `json:"message" validate:"required,max=500"`
}

func (h *ReminderHandler) ScheduleReminders(c *fiber.Ctx) error {
	bookingID, err := h.uuidParam(c, "bookingId")
	if err != nil {
		return err
	}
	reminders, err := h.deps.Scheduler.ScheduleForBookingID(requestContext(c), bookingID)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(bookingRemindersResponse{
		BookingID: bookingID,
		Reminders: toReminderResponses(reminders),
	})
}

func (h *ReminderHandler) ListBookingReminders(c *fiber.Ctx) error {
	bookingID, err := h.uuidParam(c, "bookingId")
	if err != nil {
		return err
	}
	reminders, err := h.deps.Queries.ListByBooking(requestContext(c), bookingID)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(bookingRemindersResponse{
		BookingID: bookingID,
		Reminders: toReminderResponses(reminders),
	})
}

func (h *ReminderHandler) CancelReminders(c *fiber.Ctx) error {
	bookingID, err := h.uuidParam(c, "bookingId")
	if err != nil {
		return err
	}
	cancelled, err := h.deps.Scheduler.CancelForBooking(requestContext(c), bookingID)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"bookingId": bookingID,
		"cancelled": cancelled,
	})
}

func (h *ReminderHandler) ListPassengerReminders(c *fiber.Ctx) error {
	passengerID, err := h.uuidParam(c, "passengerId")
	if err != nil {
		return err
	}
	reminders, err := h.deps.Queries.ListByPassenger(requestContext(c), passengerID)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toListResponse(reminders))
}

func (h *ReminderHandler) ListRecipientReminders(c *fiber.Ctx) error {
	reminders, err := h.deps.Queries.ListByRecipient(requestContext(c), c.Query("recipient"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toListResponse(reminders))
}

func (h *ReminderHandler) GetReminder(c *fiber.Ctx) error {
	reminderID, err := h.uuidParam(c, "id")
	if err != nil {
		return err
	}
	reminder, err := h.deps.Queries.GetByID(requestContext(c), reminderID)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toReminderResponse(reminder))
}

// ListAttempts returns the delivery history of one reminder.
func (h *ReminderHandler) ListAttempts(c *fiber.Ctx) error {
	reminderID, err := h.uuidParam(c, "id")
	if err != nil {
		return err
	}
	attempts, err := h.deps.Queries.Attempts(requestContext(c), reminderID)
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]attemptResponse, 0, len(attempts))
	for _, a := range attempts {
		data = append(data, attemptResponse{
			AttemptNumber: a.AttemptNumber,
			StatusCode:    a.StatusCode,
			Error:         a.Error,
			DurationMs:    a.DurationMs,
			CreatedAt:     a.CreatedAt,
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"reminderId": reminderID,
		"attempts":   data,
	})
}

func (h *ReminderHandler) GetStatistics(c *fiber.Ctx) error {
	stats, err := h.deps.Queries.Statistics(requestContext(c))
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(stats)
}

// Health reports the reminder subsystem as UP when its store answers.
func (h *ReminderHandler) Health(c *fiber.Ctx) error {
	stats, err := h.deps.Queries.Statistics(requestContext(c))
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "DOWN",
			"error":  err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":     "UP",
		"statistics": stats,
		"timestamp":  time.Now().UTC(),
	})
}

func (h *ReminderHandler) ProcessDue(c *fiber.Ctx) error {
	report, err := h.deps.Trigger.TriggerDue(requestContext(c))
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(report)
}

func (h *ReminderHandler) RetryFailed(c *fiber.Ctx) error {
	report, err := h.deps.Trigger.TriggerRetry(requestContext(c))
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(report)
}

// SendTestReminder pushes a one-off message through the configured gateway
// without creating a reminder record.
func (h *ReminderHandler) SendTestReminder(c *fiber.Ctx) error {
	var req testReminderRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return toHTTPError(fmt.Errorf("%w: %s", domain.ErrValidation, err.Error()))
	}

	channel := h.deps.DefaultChannel
	if strings.TrimSpace(req.Channel) != "" {
		parsed, err := domain.ParseChannelFromString(req.Channel)
		if err != nil {
			return toHTTPError(err)
		}
		channel = parsed
	}
	if channel == domain.ChannelEmail {
		if err := h.validate.Var(req.Recipient, "email"); err != nil {
			return toHTTPError(fmt.Errorf("%w: recipient must be an email address", domain.ErrValidation))
		}
	}

	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		subject = "Ride Reminder: Test"
	}

	ctx, cancel := context.WithTimeout(requestContext(c), testSendTimeout)
	defer cancel()

	resp, err := h.deps.Gateway.Send(ctx, gateway.Message{
		Channel: channel,
		To:      strings.TrimSpace(req.Recipient),
		Subject: subject,
		Body:    req.Message,
	})
	if err != nil {
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	}

	body := fiber.Map{
		"status":  "sent",
		"channel": channel.String(),
	}
	if resp != nil && resp.MessageID != "" {
		body["messageId"] = resp.MessageID
	}
	return c.Status(fiber.StatusOK).JSON(body)
}

// uuidParam reads a path identifier. Stored ids are UUID columns, so anything
// else is rejected before it reaches the store.
func (h *ReminderHandler) uuidParam(c *fiber.Ctx, name string) (string, error) {
	value := strings.TrimSpace(c.Params(name))
	if err := h.validate.Var(value, "required,uuid"); err != nil {
		return "", fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("%s must be a UUID", name))
	}
	return value, nil
}

func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if id := requestCorrelationID(c); id != "" {
		ctx = observability.WithCorrelationID(ctx, id)
	}
	return ctx
}

func requestCorrelationID(c *fiber.Ctx) string {
	if value := strings.TrimSpace(c.Get(fiber.HeaderXRequestID)); value != "" {
		return value
	}
	if value, ok := c.Locals("requestid").(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

func toListResponse(reminders []domain.Reminder) listRemindersResponse {
	return listRemindersResponse{
		Data:  toReminderResponses(reminders),
		Total: len(reminders),
	}
}

func toReminderResponses(reminders []domain.Reminder) []reminderResponse {
	responses := make([]reminderResponse, 0, len(reminders))
	for i := range reminders {
		responses = append(responses, toReminderResponse(&reminders[i]))
	}
	return responses
}

func toReminderResponse(r *domain.Reminder) reminderResponse {
	if r == nil {
		return reminderResponse{}
	}

	return reminderResponse{
		ID:           r.ID,
		BookingID:    r.BookingID,
		Kind:         r.Kind.String(),
		ScheduledAt:  r.ScheduledAt,
		Status:       r.Status.String(),
		Channel:      r.Channel.String(),
		Recipient:    r.Recipient,
		Message:      r.Message,
		SentAt:       r.SentAt,
		ErrorDetail:  r.ErrorDetail,
		AttemptCount: r.AttemptCount,
		AttemptLimit: r.AttemptLimit,
		Exhausted:    r.IsExhausted(),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return err
	}
}
