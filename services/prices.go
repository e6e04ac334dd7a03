package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"customsdesk-backend/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PriceInput struct {
	Name        string          `json:"name" validate:"required,max=200"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category" validate:"max=64"`
}

type UpdatePriceInput struct {
	Name        *string          `json:"name" validate:"omitempty,min=1,max=200"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Category    *string          `json:"category" validate:"omitempty,max=64"`
	IsActive    *bool            `json:"isActive"`
	Reason      string           `json:"reason" validate:"max=200"`
}

type BulkIncreaseInput struct {
	Percent  decimal.Decimal `json:"percent"`
	Category string          `json:"category"`
	Reason   string          `json:"reason" validate:"max=200"`
}

type BulkIncreaseResult struct {
	Affected int                   `json:"affected"`
	Prices   []models.ServicePrice `json:"prices"`
}

type PriceFilter struct {
	Category string
	Active   *bool
	Search   string
}

type PriceService struct {
	db         *gorm.DB
	undoWindow time.Duration
}

func NewPriceService(db *gorm.DB, undoWindow time.Duration) *PriceService {
	return &PriceService{db: db, undoWindow: undoWindow}
}

func recordPrice(tx *gorm.DB, id uuid.UUID, price decimal.Decimal, at time.Time, reason string) error {
	h := models.PriceHistory{ServicePriceID: id, Date: at, Price: price, Reason: reason}
	return dbErr("append price history", tx.Create(&h).Error)
}

func (s *PriceService) Create(ctx context.Context, in PriceInput) (models.ServicePrice, error) {
	if err := validateInput(in); err != nil {
		return models.ServicePrice{}, err
	}
	if in.Price.IsNegative() {
		return models.ServicePrice{}, invalid("price cannot be negative")
	}
	now := timeNow()
	sp := models.ServicePrice{
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Price:       in.Price.Round(2),
		Category:    strings.TrimSpace(in.Category),
		IsActive:    true,
		LastUpdated: now,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("History").Create(&sp).Error; err != nil {
			return dbErr("create price", err)
		}
		return recordPrice(tx, sp.ID, sp.Price, now, "Precio inicial")
	})
	return sp, err
}

func (s *PriceService) List(ctx context.Context, f PriceFilter) ([]models.ServicePrice, error) {
	q := s.db.WithContext(ctx).Model(&models.ServicePrice{})
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.Active != nil {
		q = q.Where("is_active = ?", *f.Active)
	}
	if f.Search != "" {
		q = q.Where("LOWER(name) LIKE ?", likePattern(strings.ToLower(f.Search)))
	}
	var out []models.ServicePrice
	if err := q.Order("category, name").Find(&out).Error; err != nil {
		return nil, dbErr("list prices", err)
	}
	return out, nil
}

func (s *PriceService) Get(ctx context.Context, id uuid.UUID) (models.ServicePrice, error) {
	var sp models.ServicePrice
	err := s.db.WithContext(ctx).
		Preload("History", func(db *gorm.DB) *gorm.DB { return db.Order("date") }).
		First(&sp, "id = ?", id).Error
	if err != nil {
		return sp, lookupErr("price", id, err)
	}
	return sp, nil
}

// Update edits a price entry. A changed price is appended to its history.
func (s *PriceService) Update(ctx context.Context, id uuid.UUID, in UpdatePriceInput) (models.ServicePrice, error) {
	if err := validateInput(in); err != nil {
		return models.ServicePrice{}, err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sp models.ServicePrice
		if err := tx.First(&sp, "id = ?", id).Error; err != nil {
			return lookupErr("price", id, err)
		}
		if in.Name != nil {
			sp.Name = strings.TrimSpace(*in.Name)
		}
		if in.Description != nil {
			sp.Description = *in.Description
		}
		if in.Category != nil {
			sp.Category = strings.TrimSpace(*in.Category)
		}
		if in.IsActive != nil {
			sp.IsActive = *in.IsActive
		}
		now := timeNow()
		if in.Price != nil {
			if in.Price.IsNegative() {
				return invalid("price cannot be negative")
			}
			if newPrice := in.Price.Round(2); !newPrice.Equal(sp.Price) {
				sp.Price = newPrice
				reason := in.Reason
				if reason == "" {
					reason = "Edición manual"
				}
				if err := recordPrice(tx, sp.ID, newPrice, now, reason); err != nil {
					return err
				}
			}
		}
		sp.LastUpdated = now
		return dbErr("update price", tx.Omit("History").Save(&sp).Error)
	})
	if err != nil {
		return models.ServicePrice{}, err
	}
	return s.Get(ctx, id)
}

// BulkIncrease raises every active price, or those of one category, by
// Percent. Negative percentages lower prices.
func (s *PriceService) BulkIncrease(ctx context.Context, in BulkIncreaseInput) (BulkIncreaseResult, error) {
	if err := validateInput(in); err != nil {
		return BulkIncreaseResult{}, err
	}
	if in.Percent.IsZero() || in.Percent.LessThanOrEqual(decimal.NewFromInt(-100)) {
		return BulkIncreaseResult{}, invalid("percent must be non-zero and greater than -100")
	}
	reason := in.Reason
	if reason == "" {
		reason = fmt.Sprintf("Aumento masivo %s%%", in.Percent.String())
	}
	factor := decimal.NewFromInt(1).Add(in.Percent.Div(decimal.NewFromInt(100)))

	var updated []models.ServicePrice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Where("is_active = ?", true)
		if in.Category != "" {
			q = q.Where("category = ?", in.Category)
		}
		if err := q.Find(&updated).Error; err != nil {
			return dbErr("load prices", err)
		}
		now := timeNow()
		for i := range updated {
			sp := &updated[i]
			sp.Price = sp.Price.Mul(factor).Round(2)
			sp.LastUpdated = now
			err := tx.Model(&models.ServicePrice{}).Where("id = ?", sp.ID).
				Updates(map[string]any{"price": sp.Price, "last_updated": now}).Error
			if err != nil {
				return dbErr("update price", err)
			}
			if err := recordPrice(tx, sp.ID, sp.Price, now, reason); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return BulkIncreaseResult{}, err
	}
	return BulkIncreaseResult{Affected: len(updated), Prices: updated}, nil
}

func (s *PriceService) History(ctx context.Context, id uuid.UUID) ([]models.PriceHistory, error) {
	db := s.db.WithContext(ctx)
	if err := exists[models.ServicePrice](db.Unscoped(), "price", id); err != nil {
		return nil, err
	}
	var out []models.PriceHistory
	err := db.Where("service_price_id = ?", id).Order("date").Find(&out).Error
	return out, dbErr("list price history", err)
}

func (s *PriceService) Delete(ctx context.Context, id uuid.UUID) error {
	return softDelete[models.ServicePrice](s.db.WithContext(ctx), "price", id)
}

func (s *PriceService) Restore(ctx context.Context, id uuid.UUID) (models.ServicePrice, error) {
	if err := restoreWithin[models.ServicePrice](s.db.WithContext(ctx), "price", id, s.undoWindow); err != nil {
		return models.ServicePrice{}, err
	}
	return s.Get(ctx, id)
}
