package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func getByID[T any](ctx context.Context, db *gorm.DB, resource string, id uuid.UUID, preload ...string) (T, error) {
	var out T
	q := db.WithContext(ctx)
	for _, p := range preload {
		q = q.Preload(p)
	}
	if err := q.First(&out, "id = ?", id).Error; err != nil {
		return out, lookupErr(resource, id, err)
	}
	return out, nil
}

func exists[T any](tx *gorm.DB, resource string, id uuid.UUID) error {
	var n int64
	if err := tx.Model(new(T)).Where("id = ?", id).Count(&n).Error; err != nil {
		return dbErr("check "+resource, err)
	}
	if n == 0 {
		return &NotFoundError{Resource: resource, ID: id.String()}
	}
	return nil
}

func softDelete[T any](tx *gorm.DB, resource string, id uuid.UUID) error {
	res := tx.Delete(new(T), "id = ?", id)
	if res.Error != nil {
		return dbErr("delete "+resource, res.Error)
	}
	if res.RowsAffected == 0 {
		return &NotFoundError{Resource: resource, ID: id.String()}
	}
	return nil
}

// restoreWithin undoes a soft delete made less than window ago.
func restoreWithin[T any](tx *gorm.DB, resource string, id uuid.UUID, window time.Duration) error {
	var n int64
	if err := tx.Unscoped().Model(new(T)).Where("id = ?", id).Count(&n).Error; err != nil {
		return dbErr("check "+resource, err)
	}
	if n == 0 {
		return &NotFoundError{Resource: resource, ID: id.String()}
	}

	res := tx.Unscoped().Model(new(T)).
		Where("id = ? AND deleted_at IS NOT NULL AND deleted_at >= ?", id, timeNow().Add(-window)).
		Update("deleted_at", nil)
	if res.Error != nil {
		return dbErr("restore "+resource, res.Error)
	}
	if res.RowsAffected == 0 {
		return conflict("%s %s is not deleted or the undo window has passed", resource, id)
	}
	return nil
}

func likePattern(s string) string {
	return "%" + s + "%"
}
