package services

import (
	"context"
	"sync"
	"time"

	"customsdesk-backend/config"
	"customsdesk-backend/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Dispatcher forwards a persisted notification somewhere outside the
// database. Failures are logged and never undo the notification.
type Dispatcher interface {
	Name() string
	Dispatch(ctx context.Context, n models.Notification) error
}

type NotificationFilter struct {
	UnreadOnly bool
	Module     string
	Kind       models.NotificationKind
	Limit      int
}

type NotificationService struct {
	db          *gorm.DB
	dispatchers []Dispatcher
	logger      *logrus.Logger
	wg          sync.WaitGroup
}

func NewNotificationService(db *gorm.DB, dispatchers ...Dispatcher) *NotificationService {
	return &NotificationService{db: db, dispatchers: dispatchers, logger: config.GetLogger()}
}

// Record persists n inside tx. Call Dispatch once tx has committed.
func (s *NotificationService) Record(tx *gorm.DB, n *models.Notification) error {
	if n.Priority == "" {
		n.Priority = models.NotificationMedium
	}
	return dbErr("create notification", tx.Create(n).Error)
}

// Notify persists n and fans it out to the dispatchers.
func (s *NotificationService) Notify(ctx context.Context, n models.Notification) (models.Notification, error) {
	if err := s.Record(s.db.WithContext(ctx), &n); err != nil {
		return n, err
	}
	s.Dispatch(n)
	return n, nil
}

func (s *NotificationService) Dispatch(ns ...models.Notification) {
	for _, n := range ns {
		for _, d := range s.dispatchers {
			s.wg.Add(1)
			go func(d Dispatcher, n models.Notification) {
				defer s.wg.Done()
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				if err := d.Dispatch(ctx, n); err != nil {
					config.LogError(s.logger, "notifications", "Dispatch", d.Name(), n.ID, err)
				}
			}(d, n)
		}
	}
}

// Wait blocks until in-flight dispatches finish.
func (s *NotificationService) Wait() {
	s.wg.Wait()
}

func (s *NotificationService) List(ctx context.Context, f NotificationFilter) ([]models.Notification, error) {
	q := s.db.WithContext(ctx).Model(&models.Notification{})
	if f.UnreadOnly {
		q = q.Where("read = ?", false)
	}
	if f.Module != "" {
		q = q.Where("module = ?", f.Module)
	}
	if f.Kind != "" {
		q = q.Where("kind = ?", f.Kind)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var out []models.Notification
	if err := q.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, dbErr("list notifications", err)
	}
	return out, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Notification{}).Where("read = ?", false).Count(&n).Error
	return n, dbErr("count notifications", err)
}

func (s *NotificationService) MarkRead(ctx context.Context, id uuid.UUID) error {
	res := s.db.WithContext(ctx).Model(&models.Notification{}).Where("id = ?", id).Update("read", true)
	if res.Error != nil {
		return dbErr("mark notification read", res.Error)
	}
	if res.RowsAffected == 0 {
		return &NotFoundError{Resource: "notification", ID: id.String()}
	}
	return nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.Notification{}).Where("read = ?", false).Update("read", true)
	return res.RowsAffected, dbErr("mark notifications read", res.Error)
}

func (s *NotificationService) Delete(ctx context.Context, id uuid.UUID) error {
	res := s.db.WithContext(ctx).Delete(&models.Notification{}, "id = ?", id)
	if res.Error != nil {
		return dbErr("delete notification", res.Error)
	}
	if res.RowsAffected == 0 {
		return &NotFoundError{Resource: "notification", ID: id.String()}
	}
	return nil
}
