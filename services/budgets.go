package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"customsdesk-backend/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CreateBudgetInput struct {
	ClientID      *uuid.UUID          `json:"clientId"`
	ClientName    string              `json:"clientName" validate:"max=200"`
	OperationType string              `json:"operationType" validate:"max=100"`
	Description   string              `json:"description"`
	Status        models.BudgetStatus `json:"status" validate:"omitempty,oneof=draft sent"`
	ExpiresAt     *time.Time          `json:"expiresAt"`
	Items         []LineItemInput     `json:"items" validate:"required,min=1,dive"`
}

type UpdateBudgetInput struct {
	Version       int             `json:"version" validate:"min=0"`
	ClientID      *uuid.UUID      `json:"clientId"`
	ClientName    *string         `json:"clientName" validate:"omitempty,max=200"`
	OperationType *string         `json:"operationType" validate:"omitempty,max=100"`
	Description   *string         `json:"description"`
	ExpiresAt     *time.Time      `json:"expiresAt"`
	Items         []LineItemInput `json:"items" validate:"omitempty,min=1,dive"`
}

type BudgetStatusInput struct {
	Status  models.BudgetStatus `json:"status" validate:"required,oneof=draft sent approved rejected expired"`
	Version *int                `json:"version"`
}

type BudgetFilter struct {
	Status   models.BudgetStatus
	ClientID *uuid.UUID
	Search   string
}

type BudgetService struct {
	db         *gorm.DB
	seq        Sequencer
	settings   *SettingsService
	notes      *NotificationService
	invoices   *InvoiceService
	processes  *ProcessService
	undoWindow time.Duration
}

func NewBudgetService(db *gorm.DB, seq Sequencer, settings *SettingsService, notes *NotificationService, invoices *InvoiceService, processes *ProcessService, undoWindow time.Duration) *BudgetService {
	return &BudgetService{
		db:         db,
		seq:        seq,
		settings:   settings,
		notes:      notes,
		invoices:   invoices,
		processes:  processes,
		undoWindow: undoWindow,
	}
}

// priceItems fills unit prices from the price list for items that point at
// a service but came without a price. It returns the descriptions that are
// still unpriced.
func priceItems(tx *gorm.DB, items []LineItemInput) ([]string, error) {
	var missing []string
	for i := range items {
		it := &items[i]
		if it.UnitPrice.IsZero() && it.ServicePriceID != nil {
			var sp models.ServicePrice
			if err := tx.First(&sp, "id = ?", *it.ServicePriceID).Error; err != nil {
				return nil, lookupErr("price", *it.ServicePriceID, err)
			}
			it.UnitPrice = sp.Price
			if it.Description == "" {
				it.Description = sp.Name
			}
		}
		if it.UnitPrice.IsZero() {
			missing = append(missing, it.Description)
		}
	}
	return missing, nil
}

func budgetItems(budgetID uuid.UUID, in []LineItemInput, lines []models.LineItem) []models.BudgetItem {
	out := make([]models.BudgetItem, len(lines))
	for i, li := range lines {
		out[i] = models.BudgetItem{BudgetID: budgetID, ServicePriceID: in[i].ServicePriceID, LineItem: li}
	}
	return out
}

func missingPriceNote(b models.Budget, missing []string) models.Notification {
	return models.Notification{
		Kind:     models.NotifyMissingPrice,
		Module:   "presupuestos",
		Title:    "Precio faltante",
		Message:  fmt.Sprintf("%s tiene ítems sin precio: %s", b.Number, strings.Join(missing, ", ")),
		Priority: models.NotificationHigh,
		ClientID: b.ClientID,
		BudgetID: &b.ID,
	}
}

func (s *BudgetService) Create(ctx context.Context, in CreateBudgetInput) (models.Budget, error) {
	if err := validateInput(in); err != nil {
		return models.Budget{}, err
	}
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return models.Budget{}, err
	}

	var (
		budget models.Budget
		notes  []models.Notification
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		missing, err := priceItems(tx, in.Items)
		if err != nil {
			return err
		}
		lines, err := lineItems(in.Items)
		if err != nil {
			return err
		}
		ref, err := resolveClientRef(tx, in.ClientID, in.ClientName)
		if err != nil {
			return err
		}

		now := timeNow()
		expires := now.AddDate(0, 0, settings.BudgetValidDays)
		if in.ExpiresAt != nil {
			expires = *in.ExpiresAt
		}
		if expires.Before(now) {
			return invalid("expiresAt must be in the future")
		}

		rate := settings.EffectiveVAT()
		totals := models.ComputeTotals(lines, rate)
		year := now.Year()
		seq, err := s.seq.Next(ctx, tx, models.BudgetPrefix, year, func() (int64, error) {
			var n int64
			err := tx.Unscoped().Model(&models.Budget{}).
				Where("number LIKE ?", fmt.Sprintf("%s-%d-%%", models.BudgetPrefix, year)).
				Count(&n).Error
			return n, err
		})
		if err != nil {
			return err
		}

		budget = models.Budget{
			Number:        models.FormatDocumentNumber(models.BudgetPrefix, year, seq),
			OperationType: in.OperationType,
			Description:   in.Description,
			Subtotal:      totals.Subtotal,
			TaxRate:       rate,
			Tax:           totals.Tax,
			Total:         totals.Total,
			Status:        in.Status,
			ExpiresAt:     expires,
		}
		budget.SetClientRef(ref)
		if budget.Status == "" {
			budget.Status = models.BudgetDraft
		}
		if err := tx.Omit("Items", "Processes").Create(&budget).Error; err != nil {
			return dbErr("create budget", err)
		}
		budget.Items = budgetItems(budget.ID, in.Items, lines)
		if err := tx.Create(&budget.Items).Error; err != nil {
			return dbErr("create budget items", err)
		}

		notes = append(notes, models.Notification{
			Kind:     models.NotifyNewBudget,
			Module:   "presupuestos",
			Title:    "Nuevo presupuesto",
			Message:  fmt.Sprintf("%s para %s por %s", budget.Number, budget.ClientName, budget.Total.StringFixed(2)),
			Priority: models.NotificationMedium,
			ClientID: budget.ClientID,
			BudgetID: &budget.ID,
		})
		if len(missing) > 0 {
			notes = append(notes, missingPriceNote(budget, missing))
		}
		for i := range notes {
			if err := s.notes.Record(tx, &notes[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return models.Budget{}, err
	}
	s.notes.Dispatch(notes...)
	return s.Get(ctx, budget.ID)
}

func (s *BudgetService) List(ctx context.Context, f BudgetFilter) ([]models.Budget, error) {
	q := s.db.WithContext(ctx).Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position") })
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.ClientID != nil {
		q = q.Where("client_id = ?", *f.ClientID)
	}
	if f.Search != "" {
		p := likePattern(strings.ToLower(f.Search))
		q = q.Where("LOWER(number) LIKE ? OR LOWER(client_name) LIKE ? OR LOWER(operation_type) LIKE ?", p, p, p)
	}
	var out []models.Budget
	if err := q.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, dbErr("list budgets", err)
	}
	return out, nil
}

func (s *BudgetService) Get(ctx context.Context, id uuid.UUID) (models.Budget, error) {
	var b models.Budget
	err := s.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Preload("Processes").
		First(&b, "id = ?", id).Error
	if err != nil {
		return b, lookupErr("budget", id, err)
	}
	return b, nil
}

func (s *BudgetService) Update(ctx context.Context, id uuid.UUID, in UpdateBudgetInput) (models.Budget, error) {
	if err := validateInput(in); err != nil {
		return models.Budget{}, err
	}
	var note *models.Notification
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var b models.Budget
		if err := tx.First(&b, "id = ?", id).Error; err != nil {
			return lookupErr("budget", id, err)
		}
		if b.InvoiceID != nil {
			return invalid("budget %s was already invoiced and cannot be edited", b.Number)
		}

		values := map[string]any{}
		if in.ClientID != nil || in.ClientName != nil {
			name := b.ClientName
			if in.ClientName != nil {
				name = *in.ClientName
			}
			ref, err := resolveClientRef(tx, in.ClientID, name)
			if err != nil {
				return err
			}
			b.SetClientRef(ref)
			values["client_id"] = b.ClientID
			values["client_name"] = b.ClientName
		}
		if in.OperationType != nil {
			values["operation_type"] = *in.OperationType
		}
		if in.Description != nil {
			values["description"] = *in.Description
		}
		if in.ExpiresAt != nil {
			values["expires_at"] = *in.ExpiresAt
		}
		if in.Items != nil {
			missing, err := priceItems(tx, in.Items)
			if err != nil {
				return err
			}
			lines, err := lineItems(in.Items)
			if err != nil {
				return err
			}
			if err := tx.Where("budget_id = ?", id).Delete(&models.BudgetItem{}).Error; err != nil {
				return dbErr("clear budget items", err)
			}
			items := budgetItems(id, in.Items, lines)
			if err := tx.Create(&items).Error; err != nil {
				return dbErr("create budget items", err)
			}
			totals := models.ComputeTotals(lines, b.TaxRate)
			values["subtotal"] = totals.Subtotal
			values["tax"] = totals.Tax
			values["total"] = totals.Total
			if len(missing) > 0 {
				n := missingPriceNote(b, missing)
				if err := s.notes.Record(tx, &n); err != nil {
					return err
				}
				note = &n
			}
		}
		if len(values) == 0 {
			return invalid("no fields to update")
		}
		return saveVersioned(tx, &models.Budget{}, id, in.Version, values)
	})
	if err != nil {
		return models.Budget{}, err
	}
	if note != nil {
		s.notes.Dispatch(*note)
	}
	return s.Get(ctx, id)
}

func (s *BudgetService) ChangeStatus(ctx context.Context, id uuid.UUID, in BudgetStatusInput) (models.Budget, error) {
	if err := validateInput(in); err != nil {
		return models.Budget{}, err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var b models.Budget
		if err := tx.First(&b, "id = ?", id).Error; err != nil {
			return lookupErr("budget", id, err)
		}
		if b.Status == in.Status {
			return invalid("budget %s is already %s", b.Number, in.Status)
		}
		v := b.Version
		if in.Version != nil {
			v = *in.Version
		}
		return saveVersioned(tx, &models.Budget{}, id, v, map[string]any{"status": in.Status})
	})
	if err != nil {
		return models.Budget{}, err
	}
	return s.Get(ctx, id)
}

// ConvertToInvoice bills the budget once. The invoice keeps the budget's
// items and tax rate, and the budget is marked approved.
func (s *BudgetService) ConvertToInvoice(ctx context.Context, id uuid.UUID) (models.Invoice, error) {
	var inv models.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var b models.Budget
		err := tx.Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
			First(&b, "id = ?", id).Error
		if err != nil {
			return lookupErr("budget", id, err)
		}
		if b.InvoiceID != nil {
			return conflict("budget %s was already converted to an invoice", b.Number)
		}
		if b.Status == models.BudgetRejected || b.Status == models.BudgetExpired {
			return invalid("budget %s is %s and cannot be invoiced", b.Number, b.Status)
		}

		items := make([]LineItemInput, len(b.Items))
		for i, it := range b.Items {
			items[i] = LineItemInput{Description: it.Description, Quantity: it.Quantity, UnitPrice: it.UnitPrice}
		}
		rate := b.TaxRate
		in := CreateInvoiceInput{
			Type:       models.InvoiceToClient,
			ClientID:   b.ClientID,
			ClientName: b.ClientName,
			Status:     models.InvoiceDraft,
			Notes:      "Generada desde el presupuesto " + b.Number,
			Items:      items,
			budgetID:   &b.ID,
			taxRate:    &rate,
		}
		if inv, err = s.invoices.create(ctx, tx, in); err != nil {
			return err
		}
		return saveVersioned(tx, &models.Budget{}, b.ID, b.Version, map[string]any{
			"invoice_id": inv.ID,
			"status":     models.BudgetApproved,
		})
	})
	if err != nil {
		return models.Invoice{}, err
	}
	return s.invoices.Get(ctx, inv.ID)
}

// CreateProcesses opens processes linked to the budget. The budget's
// client is used unless a process names its own.
func (s *BudgetService) CreateProcesses(ctx context.Context, id uuid.UUID, inputs []CreateProcessInput) ([]ProcessDetail, error) {
	if len(inputs) == 0 {
		return nil, invalid("at least one process is required")
	}
	var (
		created []models.Process
		notes   []models.Notification
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var b models.Budget
		if err := tx.First(&b, "id = ?", id).Error; err != nil {
			return lookupErr("budget", id, err)
		}
		for i, in := range inputs {
			in.BudgetID = &b.ID
			if in.ClientID == uuid.Nil && b.ClientID != nil {
				in.ClientID = *b.ClientID
			}
			if err := validateInput(in); err != nil {
				return invalid("processes[%d]: %v", i, err)
			}
			p, note, err := s.processes.create(ctx, tx, in)
			if err != nil {
				return err
			}
			created = append(created, p)
			notes = append(notes, note)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notes.Dispatch(notes...)

	out := make([]ProcessDetail, 0, len(created))
	for _, p := range created {
		d, err := s.processes.Get(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// ExpireOverdue marks sent budgets past their expiry date as expired.
func (s *BudgetService) ExpireOverdue(ctx context.Context) (int, error) {
	var due []models.Budget
	err := s.db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", models.BudgetSent, timeNow()).
		Find(&due).Error
	if err != nil {
		return 0, dbErr("find expired budgets", err)
	}

	var notes []models.Notification
	for _, b := range due {
		note := models.Notification{
			Kind:     models.NotifyBudgetExpired,
			Module:   "presupuestos",
			Title:    "Presupuesto vencido",
			Message:  fmt.Sprintf("%s de %s venció sin respuesta", b.Number, b.ClientName),
			Priority: models.NotificationMedium,
			ClientID: b.ClientID,
			BudgetID: &b.ID,
		}
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := saveVersioned(tx, &models.Budget{}, b.ID, b.Version, map[string]any{"status": models.BudgetExpired}); err != nil {
				return err
			}
			return s.notes.Record(tx, &note)
		})
		if err != nil {
			return len(notes), err
		}
		notes = append(notes, note)
	}
	s.notes.Dispatch(notes...)
	return len(notes), nil
}

func (s *BudgetService) Delete(ctx context.Context, id uuid.UUID) error {
	return softDelete[models.Budget](s.db.WithContext(ctx), "budget", id)
}

func (s *BudgetService) Restore(ctx context.Context, id uuid.UUID) (models.Budget, error) {
	if err := restoreWithin[models.Budget](s.db.WithContext(ctx), "budget", id, s.undoWindow); err != nil {
		return models.Budget{}, err
	}
	return s.Get(ctx, id)
}
