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

type AgencyInput struct {
	Name            string            `json:"name" validate:"required,max=200"`
	Type            models.AgencyType `json:"type" validate:"required,oneof=public private"`
	ContactName     string            `json:"contactName"`
	Email           string            `json:"email" validate:"omitempty,email"`
	Phone           string            `json:"phone" validate:"omitempty,phone"`
	Website         string            `json:"website" validate:"omitempty,url"`
	AvgResponseDays int               `json:"avgResponseDays" validate:"min=0"`
	AvgCost         decimal.Decimal   `json:"avgCost"`
}

type UpdateAgencyInput struct {
	Name            *string            `json:"name" validate:"omitempty,min=1,max=200"`
	Type            *models.AgencyType `json:"type" validate:"omitempty,oneof=public private"`
	ContactName     *string            `json:"contactName"`
	Email           *string            `json:"email" validate:"omitempty,email"`
	Phone           *string            `json:"phone" validate:"omitempty,phone"`
	Website         *string            `json:"website" validate:"omitempty,url"`
	AvgResponseDays *int               `json:"avgResponseDays" validate:"omitempty,min=0"`
	AvgCost         *decimal.Decimal   `json:"avgCost"`
}

// AgencySummary is an agency with the number of live processes filed with it.
type AgencySummary struct {
	models.Agency
	ProcessCount int64 `json:"processCount"`
}

type AgencyService struct {
	db         *gorm.DB
	undoWindow time.Duration
}

func NewAgencyService(db *gorm.DB, undoWindow time.Duration) *AgencyService {
	return &AgencyService{db: db, undoWindow: undoWindow}
}

func (s *AgencyService) Create(ctx context.Context, in AgencyInput) (models.Agency, error) {
	if err := validateInput(in); err != nil {
		return models.Agency{}, err
	}
	if in.AvgCost.IsNegative() {
		return models.Agency{}, invalid("avgCost cannot be negative")
	}
	agency := models.Agency{
		Name:            strings.TrimSpace(in.Name),
		Type:            in.Type,
		ContactName:     in.ContactName,
		Email:           in.Email,
		Phone:           in.Phone,
		Website:         in.Website,
		AvgResponseDays: in.AvgResponseDays,
		AvgCost:         in.AvgCost,
	}
	if err := s.db.WithContext(ctx).Create(&agency).Error; err != nil {
		return agency, dbErr("create agency", err)
	}
	return agency, nil
}

func (s *AgencyService) List(ctx context.Context, search string) ([]AgencySummary, error) {
	db := s.db.WithContext(ctx)

	q := db.Model(&models.Agency{})
	if search != "" {
		q = q.Where("LOWER(name) LIKE ?", likePattern(strings.ToLower(search)))
	}
	var agencies []models.Agency
	if err := q.Order("name").Find(&agencies).Error; err != nil {
		return nil, dbErr("list agencies", err)
	}

	var counts []struct {
		AgencyID uuid.UUID
		Total    int64
	}
	err := db.Model(&models.Process{}).
		Select("agency_id, COUNT(*) AS total").
		Group("agency_id").
		Scan(&counts).Error
	if err != nil {
		return nil, dbErr("count agency processes", err)
	}
	byAgency := make(map[uuid.UUID]int64, len(counts))
	for _, c := range counts {
		byAgency[c.AgencyID] = c.Total
	}

	out := make([]AgencySummary, len(agencies))
	for i, a := range agencies {
		out[i] = AgencySummary{Agency: a, ProcessCount: byAgency[a.ID]}
	}
	return out, nil
}

func (s *AgencyService) Get(ctx context.Context, id uuid.UUID) (models.Agency, error) {
	return getByID[models.Agency](ctx, s.db, "agency", id)
}

func (s *AgencyService) Update(ctx context.Context, id uuid.UUID, in UpdateAgencyInput) (models.Agency, error) {
	if err := validateInput(in); err != nil {
		return models.Agency{}, err
	}
	agency, err := s.Get(ctx, id)
	if err != nil {
		return agency, err
	}
	if in.Name != nil {
		agency.Name = strings.TrimSpace(*in.Name)
	}
	if in.Type != nil {
		agency.Type = *in.Type
	}
	if in.ContactName != nil {
		agency.ContactName = *in.ContactName
	}
	if in.Email != nil {
		agency.Email = *in.Email
	}
	if in.Phone != nil {
		agency.Phone = *in.Phone
	}
	if in.Website != nil {
		agency.Website = *in.Website
	}
	if in.AvgResponseDays != nil {
		agency.AvgResponseDays = *in.AvgResponseDays
	}
	if in.AvgCost != nil {
		if in.AvgCost.IsNegative() {
			return agency, invalid("avgCost cannot be negative")
		}
		agency.AvgCost = *in.AvgCost
	}
	if err := s.db.WithContext(ctx).Save(&agency).Error; err != nil {
		return agency, dbErr("update agency", err)
	}
	return agency, nil
}

// Delete soft deletes the agency. Processes keep their reference.
func (s *AgencyService) Delete(ctx context.Context, id uuid.UUID) error {
	return softDelete[models.Agency](s.db.WithContext(ctx), "agency", id)
}

func (s *AgencyService) Restore(ctx context.Context, id uuid.UUID) (models.Agency, error) {
	if err := restoreWithin[models.Agency](s.db.WithContext(ctx), "agency", id, s.undoWindow); err != nil {
		return models.Agency{}, err
	}
	return s.Get(ctx, id)
}
