package services

import (
	"context"
	"strings"
	"time"

	"customsdesk-backend/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SupplierInput struct {
	Name        string                  `json:"name" validate:"required,max=200"`
	Category    models.SupplierCategory `json:"category" validate:"required,oneof=logistics legal government other"`
	TaxID       string                  `json:"taxId" validate:"omitempty,max=32"`
	ContactName string                  `json:"contactName"`
	Email       string                  `json:"email" validate:"omitempty,email"`
	Phone       string                  `json:"phone" validate:"omitempty,phone"`
	Address     string                  `json:"address"`
}

type UpdateSupplierInput struct {
	Name        *string                  `json:"name" validate:"omitempty,min=1,max=200"`
	Category    *models.SupplierCategory `json:"category" validate:"omitempty,oneof=logistics legal government other"`
	TaxID       *string                  `json:"taxId" validate:"omitempty,max=32"`
	ContactName *string                  `json:"contactName"`
	Email       *string                  `json:"email" validate:"omitempty,email"`
	Phone       *string                  `json:"phone" validate:"omitempty,phone"`
	Address     *string                  `json:"address"`
	IsActive    *bool                    `json:"isActive"`
}

type SupplierFilter struct {
	Search   string
	Category models.SupplierCategory
	Active   *bool
}

type SupplierService struct {
	db         *gorm.DB
	undoWindow time.Duration
}

func NewSupplierService(db *gorm.DB, undoWindow time.Duration) *SupplierService {
	return &SupplierService{db: db, undoWindow: undoWindow}
}

func (s *SupplierService) Create(ctx context.Context, in SupplierInput) (models.Supplier, error) {
	if err := validateInput(in); err != nil {
		return models.Supplier{}, err
	}
	supplier := models.Supplier{
		Name:        strings.TrimSpace(in.Name),
		Category:    in.Category,
		TaxID:       in.TaxID,
		ContactName: in.ContactName,
		Email:       in.Email,
		Phone:       in.Phone,
		Address:     in.Address,
		IsActive:    true,
	}
	if err := s.db.WithContext(ctx).Create(&supplier).Error; err != nil {
		return supplier, dbErr("create supplier", err)
	}
	return supplier, nil
}

func (s *SupplierService) List(ctx context.Context, f SupplierFilter) ([]models.Supplier, error) {
	q := s.db.WithContext(ctx).Model(&models.Supplier{})
	if f.Search != "" {
		p := likePattern(strings.ToLower(f.Search))
		q = q.Where("LOWER(name) LIKE ? OR tax_id LIKE ?", p, p)
	}
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.Active != nil {
		q = q.Where("is_active = ?", *f.Active)
	}
	var out []models.Supplier
	if err := q.Order("name").Find(&out).Error; err != nil {
		return nil, dbErr("list suppliers", err)
	}
	return out, nil
}

func (s *SupplierService) Get(ctx context.Context, id uuid.UUID) (models.Supplier, error) {
	return getByID[models.Supplier](ctx, s.db, "supplier", id)
}

func (s *SupplierService) Update(ctx context.Context, id uuid.UUID, in UpdateSupplierInput) (models.Supplier, error) {
	if err := validateInput(in); err != nil {
		return models.Supplier{}, err
	}
	supplier, err := s.Get(ctx, id)
	if err != nil {
		return supplier, err
	}
	if in.Name != nil {
		supplier.Name = strings.TrimSpace(*in.Name)
	}
	if in.Category != nil {
		supplier.Category = *in.Category
	}
	if in.TaxID != nil {
		supplier.TaxID = *in.TaxID
	}
	if in.ContactName != nil {
		supplier.ContactName = *in.ContactName
	}
	if in.Email != nil {
		supplier.Email = *in.Email
	}
	if in.Phone != nil {
		supplier.Phone = *in.Phone
	}
	if in.Address != nil {
		supplier.Address = *in.Address
	}
	if in.IsActive != nil {
		supplier.IsActive = *in.IsActive
	}
	if err := s.db.WithContext(ctx).Save(&supplier).Error; err != nil {
		return supplier, dbErr("update supplier", err)
	}
	return supplier, nil
}

func (s *SupplierService) Delete(ctx context.Context, id uuid.UUID) error {
	return softDelete[models.Supplier](s.db.WithContext(ctx), "supplier", id)
}

func (s *SupplierService) Restore(ctx context.Context, id uuid.UUID) (models.Supplier, error) {
	if err := restoreWithin[models.Supplier](s.db.WithContext(ctx), "supplier", id, s.undoWindow); err != nil {
		return models.Supplier{}, err
	}
	return s.Get(ctx, id)
}
