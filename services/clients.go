package services

import (
	"context"
	"strings"
	"time"

	"customsdesk-backend/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CreateClientInput struct {
	Name        string             `json:"name" validate:"required,max=200"`
	Email       string             `json:"email" validate:"omitempty,email"`
	Phone       string             `json:"phone" validate:"omitempty,phone"`
	Address     string             `json:"address"`
	TaxID       string             `json:"taxId" validate:"omitempty,max=32"`
	TaxCategory models.TaxCategory `json:"taxCategory" validate:"required,oneof=registered simplified exempt final-consumer"`
}

type UpdateClientInput struct {
	Name        *string             `json:"name" validate:"omitempty,min=1,max=200"`
	Email       *string             `json:"email" validate:"omitempty,email"`
	Phone       *string             `json:"phone" validate:"omitempty,phone"`
	Address     *string             `json:"address"`
	TaxID       *string             `json:"taxId" validate:"omitempty,max=32"`
	TaxCategory *models.TaxCategory `json:"taxCategory" validate:"omitempty,oneof=registered simplified exempt final-consumer"`
	IsActive    *bool               `json:"isActive"`
}

type ClientFilter struct {
	Search string
	Active *bool
}

type ClientService struct {
	db         *gorm.DB
	notes      *NotificationService
	undoWindow time.Duration
}

func NewClientService(db *gorm.DB, notes *NotificationService, undoWindow time.Duration) *ClientService {
	return &ClientService{db: db, notes: notes, undoWindow: undoWindow}
}

func (s *ClientService) Create(ctx context.Context, in CreateClientInput) (models.Client, error) {
	if err := validateInput(in); err != nil {
		return models.Client{}, err
	}

	client := models.Client{
		Name:        strings.TrimSpace(in.Name),
		Email:       in.Email,
		Phone:       in.Phone,
		Address:     in.Address,
		TaxID:       in.TaxID,
		TaxCategory: in.TaxCategory,
		IsActive:    true,
	}
	var note models.Notification
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&client).Error; err != nil {
			return dbErr("create client", err)
		}
		note = models.Notification{
			Kind:     models.NotifyNewClient,
			Module:   "clientes",
			Title:    "Nuevo cliente",
			Message:  "Se registró el cliente " + client.Name,
			Priority: models.NotificationLow,
			ClientID: &client.ID,
		}
		return s.notes.Record(tx, &note)
	})
	if err != nil {
		return models.Client{}, err
	}
	s.notes.Dispatch(note)
	return client, nil
}

func (s *ClientService) List(ctx context.Context, f ClientFilter) ([]models.Client, error) {
	q := s.db.WithContext(ctx).Model(&models.Client{})
	if f.Search != "" {
		p := likePattern(strings.ToLower(f.Search))
		q = q.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR tax_id LIKE ?", p, p, p)
	}
	if f.Active != nil {
		q = q.Where("is_active = ?", *f.Active)
	}

	var clients []models.Client
	if err := q.Order("name").Find(&clients).Error; err != nil {
		return nil, dbErr("list clients", err)
	}
	return clients, nil
}

func (s *ClientService) Get(ctx context.Context, id uuid.UUID) (models.Client, error) {
	return getByID[models.Client](ctx, s.db, "client", id)
}

func (s *ClientService) Update(ctx context.Context, id uuid.UUID, in UpdateClientInput) (models.Client, error) {
	if err := validateInput(in); err != nil {
		return models.Client{}, err
	}
	client, err := s.Get(ctx, id)
	if err != nil {
		return client, err
	}

	if in.Name != nil {
		client.Name = strings.TrimSpace(*in.Name)
	}
	if in.Email != nil {
		client.Email = *in.Email
	}
	if in.Phone != nil {
		client.Phone = *in.Phone
	}
	if in.Address != nil {
		client.Address = *in.Address
	}
	if in.TaxID != nil {
		client.TaxID = *in.TaxID
	}
	if in.TaxCategory != nil {
		client.TaxCategory = *in.TaxCategory
	}
	if in.IsActive != nil {
		client.IsActive = *in.IsActive
	}

	if err := s.db.WithContext(ctx).Save(&client).Error; err != nil {
		return client, dbErr("update client", err)
	}
	return client, nil
}

func (s *ClientService) Delete(ctx context.Context, id uuid.UUID) error {
	return softDelete[models.Client](s.db.WithContext(ctx), "client", id)
}

func (s *ClientService) Restore(ctx context.Context, id uuid.UUID) (models.Client, error) {
	if err := restoreWithin[models.Client](s.db.WithContext(ctx), "client", id, s.undoWindow); err != nil {
		return models.Client{}, err
	}
	return s.Get(ctx, id)
}

// resolveClientRef turns a client id or free-text name into a ClientRef.
// A known id wins over the name.
func resolveClientRef(tx *gorm.DB, id *uuid.UUID, name string) (models.ClientRef, error) {
	if id != nil && *id != uuid.Nil {
		var c models.Client
		if err := tx.First(&c, "id = ?", *id).Error; err != nil {
			return models.ClientRef{}, lookupErr("client", *id, err)
		}
		return models.KnownClient(c), nil
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return models.ClientRef{}, invalid("either clientId or clientName is required")
	}
	return models.DenormalizedClient(name), nil
}
