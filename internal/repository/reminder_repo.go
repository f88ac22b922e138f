package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/kursadbilgin/ride-reminders/internal/domain"
	"gorm.io/gorm"
)

const pgUniqueViolation = "23505"

// Guard identifies the state a reminder must still be in for an update to
// apply. A mismatch means another writer got there first.
type Guard struct {
	ID           string
	Status       domain.Status
	AttemptCount int
}

func GuardOf(r *domain.Reminder) Guard {
	return Guard{ID: r.ID, Status: r.Status, AttemptCount: r.AttemptCount}
}

type StatusCount struct {
	Status domain.Status `gorm:"column:status"`
	Count  int64         `gorm:"column:count"`
}

type ReminderRepository interface {
	ReplaceForBooking(ctx context.Context, bookingID string, reminders []*domain.Reminder) error
	CancelScheduledForBooking(ctx context.Context, bookingID string) (int64, error)
	GetByID(ctx context.Context, id string) (*domain.Reminder, error)
	GetDue(ctx context.Context, now time.Time, limit int) ([]domain.Reminder, error)
	GetRetryable(ctx context.Context, limit int) ([]domain.Reminder, error)
	MarkSent(ctx context.Context, guard Guard, sentAt time.Time) error
	MarkFailed(ctx context.Context, guard Guard, detail string) error
	ListByBooking(ctx context.Context, bookingID string) ([]domain.Reminder, error)
	ListByRecipient(ctx context.Context, recipient string) ([]domain.Reminder, error)
	ListByPassenger(ctx context.Context, passengerID string) ([]domain.Reminder, error)
	CountByStatus(ctx context.Context) ([]StatusCount, error)
	CountExhausted(ctx context.Context) (int64, error)
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type GormReminderRepo struct {
	db *gorm.DB
}

func NewGormReminderRepo(db *gorm.DB) *GormReminderRepo {
	return &GormReminderRepo{db: db}
}

// ReplaceForBooking deletes every reminder of the booking and inserts the
// given set in one transaction. Readers never observe a mix of old and new.
func (r *GormReminderRepo) ReplaceForBooking(ctx context.Context, bookingID string, reminders []*domain.Reminder) error {
	models := make([]ReminderModel, 0, len(reminders))
	for _, rem := range reminders {
		if model := reminderModelFromDomain(rem); model != nil {
			models = append(models, *model)
		}
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("booking_id = ?", bookingID).Delete(&ReminderModel{}).Error; err != nil {
			return fmt.Errorf("delete reminders: %w", err)
		}
		if len(models) == 0 {
			return nil
		}
		if err := tx.Create(&models).Error; err != nil {
			return fmt.Errorf("insert reminders: %w", err)
		}
		return nil
	})
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: reminders for booking %s changed concurrently", domain.ErrConflict, bookingID)
	}
	if err != nil {
		return err
	}

	for i := range models {
		if i < len(reminders) && reminders[i] != nil {
			*reminders[i] = *reminderModelToDomain(&models[i])
		}
	}
	return nil
}

func (r *GormReminderRepo) CancelScheduledForBooking(ctx context.Context, bookingID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&ReminderModel{}).
		Where("booking_id = ? AND status = ?", bookingID, domain.StatusScheduled).
		Update("status", domain.StatusCancelled)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *GormReminderRepo) GetByID(ctx context.Context, id string) (*domain.Reminder, error) {
	var model ReminderModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return reminderModelToDomain(&model), nil
}

func (r *GormReminderRepo) GetDue(ctx context.Context, now time.Time, limit int) ([]domain.Reminder, error) {
	var models []ReminderModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND scheduled_at <= ?", domain.StatusScheduled, now).
		Order("scheduled_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return remindersToDomain(models), nil
}

func (r *GormReminderRepo) GetRetryable(ctx context.Context, limit int) ([]domain.Reminder, error) {
	var models []ReminderModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND attempt_count < attempt_limit", domain.StatusFailed).
		Order("updated_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return remindersToDomain(models), nil
}

func (r *GormReminderRepo) MarkSent(ctx context.Context, guard Guard, sentAt time.Time) error {
	return r.guardedUpdate(ctx, guard, map[string]any{
		"status":       domain.StatusSent,
		"sent_at":      sentAt,
		"error_detail": nil,
	})
}

func (r *GormReminderRepo) MarkFailed(ctx context.Context, guard Guard, detail string) error {
	return r.guardedUpdate(ctx, guard, map[string]any{
		"status":        domain.StatusFailed,
		"error_detail":  domain.TruncateErrorDetail(detail),
		"attempt_count": gorm.Expr("attempt_count + 1"),
	})
}

func (r *GormReminderRepo) guardedUpdate(ctx context.Context, guard Guard, values map[string]any) error {
	result := r.db.WithContext(ctx).
		Model(&ReminderModel{}).
		Where("id = ? AND status = ? AND attempt_count = ?", guard.ID, guard.Status, guard.AttemptCount).
		Updates(values)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: reminder %s is no longer %s", domain.ErrConflict, guard.ID, guard.Status)
	}
	return nil
}

func (r *GormReminderRepo) ListByBooking(ctx context.Context, bookingID string) ([]domain.Reminder, error) {
	var models []ReminderModel
	err := r.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Order("scheduled_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return remindersToDomain(models), nil
}

func (r *GormReminderRepo) ListByRecipient(ctx context.Context, recipient string) ([]domain.Reminder, error) {
	var models []ReminderModel
	err := r.db.WithContext(ctx).
		Where("recipient = ?", recipient).
		Order("scheduled_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return remindersToDomain(models), nil
}

func (r *GormReminderRepo) ListByPassenger(ctx context.Context, passengerID string) ([]domain.Reminder, error) {
	var models []ReminderModel
	err := r.db.WithContext(ctx).
		Joins("JOIN bookings ON bookings.id = ride_reminders.booking_id").
		Where("bookings.passenger_id = ?", passengerID).
		Order("ride_reminders.scheduled_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return remindersToDomain(models), nil
}

func (r *GormReminderRepo) CountByStatus(ctx context.Context) ([]StatusCount, error) {
	var counts []StatusCount
	err := r.db.WithContext(ctx).
		Model(&ReminderModel{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	return counts, nil
}

func (r *GormReminderRepo) CountExhausted(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&ReminderModel{}).
		Where("status = ? AND attempt_count >= attempt_limit", domain.StatusFailed).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// DeleteTerminalBefore removes reminders that can never change again (sent,
// cancelled, or failed with no attempts left) last touched before cutoff.
func (r *GormReminderRepo) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("updated_at < ?", cutoff).
		Where(r.db.
			Where("status IN ?", []domain.Status{domain.StatusSent, domain.StatusCancelled}).
			Or("status = ? AND attempt_count >= attempt_limit", domain.StatusFailed)).
		Delete(&ReminderModel{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
