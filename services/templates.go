package services

import (
	"context"
	"strings"
	"time"

	"customsdesk-backend/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type TemplateInput struct {
	Name              string          `json:"name" validate:"required,max=200"`
	Description       string          `json:"description"`
	AgencyID          uuid.UUID       `json:"agencyId" validate:"required"`
	RequiredDocuments []string        `json:"requiredDocuments" validate:"dive,required"`
	EstimatedDays     int             `json:"estimatedDays" validate:"min=0,max=3650"`
	EstimatedCost     decimal.Decimal `json:"estimatedCost"`
}

type UpdateTemplateInput struct {
	Name              *string          `json:"name" validate:"omitempty,min=1,max=200"`
	Description       *string          `json:"description"`
	AgencyID          *uuid.UUID       `json:"agencyId"`
	RequiredDocuments []string         `json:"requiredDocuments" validate:"omitempty,dive,required"`
	EstimatedDays     *int             `json:"estimatedDays" validate:"omitempty,min=0,max=3650"`
	EstimatedCost     *decimal.Decimal `json:"estimatedCost"`
}

type TemplateService struct {
	db         *gorm.DB
	undoWindow time.Duration
}

func NewTemplateService(db *gorm.DB, undoWindow time.Duration) *TemplateService {
	return &TemplateService{db: db, undoWindow: undoWindow}
}

func cleanNames(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func (s *TemplateService) Create(ctx context.Context, in TemplateInput) (models.Template, error) {
	if err := validateInput(in); err != nil {
		return models.Template{}, err
	}
	if in.EstimatedCost.IsNegative() {
		return models.Template{}, invalid("estimatedCost cannot be negative")
	}
	db := s.db.WithContext(ctx)
	if err := exists[models.Agency](db, "agency", in.AgencyID); err != nil {
		return models.Template{}, err
	}

	tpl := models.Template{
		Name:              strings.TrimSpace(in.Name),
		Description:       in.Description,
		AgencyID:          in.AgencyID,
		RequiredDocuments: cleanNames(in.RequiredDocuments),
		EstimatedDays:     in.EstimatedDays,
		EstimatedCost:     in.EstimatedCost,
	}
	if err := db.Create(&tpl).Error; err != nil {
		return tpl, dbErr("create template", err)
	}
	return tpl, nil
}

func (s *TemplateService) List(ctx context.Context, agencyID *uuid.UUID) ([]models.Template, error) {
	q := s.db.WithContext(ctx).Preload("Agency")
	if agencyID != nil {
		q = q.Where("agency_id = ?", *agencyID)
	}
	var out []models.Template
	if err := q.Order("name").Find(&out).Error; err != nil {
		return nil, dbErr("list templates", err)
	}
	return out, nil
}

func (s *TemplateService) Get(ctx context.Context, id uuid.UUID) (models.Template, error) {
	return getByID[models.Template](ctx, s.db, "template", id, "Agency")
}

func (s *TemplateService) Update(ctx context.Context, id uuid.UUID, in UpdateTemplateInput) (models.Template, error) {
	if err := validateInput(in); err != nil {
		return models.Template{}, err
	}
	tpl, err := getByID[models.Template](ctx, s.db, "template", id)
	if err != nil {
		return tpl, err
	}
	db := s.db.WithContext(ctx)

	if in.Name != nil {
		tpl.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		tpl.Description = *in.Description
	}
	if in.AgencyID != nil {
		if err := exists[models.Agency](db, "agency", *in.AgencyID); err != nil {
			return tpl, err
		}
		tpl.AgencyID = *in.AgencyID
	}
	if in.RequiredDocuments != nil {
		tpl.RequiredDocuments = cleanNames(in.RequiredDocuments)
	}
	if in.EstimatedDays != nil {
		tpl.EstimatedDays = *in.EstimatedDays
	}
	if in.EstimatedCost != nil {
		if in.EstimatedCost.IsNegative() {
			return tpl, invalid("estimatedCost cannot be negative")
		}
		tpl.EstimatedCost = *in.EstimatedCost
	}
	if err := db.Save(&tpl).Error; err != nil {
		return tpl, dbErr("update template", err)
	}
	return tpl, nil
}

func (s *TemplateService) Delete(ctx context.Context, id uuid.UUID) error {
	return softDelete[models.Template](s.db.WithContext(ctx), "template", id)
}

func (s *TemplateService) Restore(ctx context.Context, id uuid.UUID) (models.Template, error) {
	if err := restoreWithin[models.Template](s.db.WithContext(ctx), "template", id, s.undoWindow); err != nil {
		return models.Template{}, err
	}
	return s.Get(ctx, id)
}
