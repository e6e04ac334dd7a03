package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"customsdesk-backend/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type LineItemInput struct {
	Description    string          `json:"description" validate:"required_without=ServicePriceID,max=300"`
	Quantity       decimal.Decimal `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unitPrice"`
	ServicePriceID *uuid.UUID      `json:"servicePriceId"`
}

func (in LineItemInput) check(i int) error {
	if strings.TrimSpace(in.Description) == "" {
		return invalid("items[%d]: description is required", i)
	}
	if !in.Quantity.IsPositive() {
		return invalid("items[%d]: quantity must be greater than zero", i)
	}
	if in.UnitPrice.IsNegative() {
		return invalid("items[%d]: unitPrice cannot be negative", i)
	}
	return nil
}

func lineItems(in []LineItemInput) ([]models.LineItem, error) {
	out := make([]models.LineItem, len(in))
	for i, it := range in {
		if err := it.check(i); err != nil {
			return nil, err
		}
		li := models.LineItem{
			Description: strings.TrimSpace(it.Description),
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice.Round(2),
			Position:    i,
		}
		li.Total = li.LineTotal()
		out[i] = li
	}
	return out, nil
}

type CreateInvoiceInput struct {
	Type       models.InvoiceType   `json:"type" validate:"omitempty,oneof=client supplier agency"`
	ClientID   *uuid.UUID           `json:"clientId"`
	ClientName string               `json:"clientName" validate:"max=200"`
	IssueDate  *time.Time           `json:"issueDate"`
	DueDate    *time.Time           `json:"dueDate"`
	Status     models.InvoiceStatus `json:"status" validate:"omitempty,oneof=draft sent paid overdue cancelled"`
	Notes      string               `json:"notes"`
	Items      []LineItemInput      `json:"items" validate:"required,min=1,dive"`

	budgetID *uuid.UUID
	taxRate  *decimal.Decimal
}

type UpdateInvoiceInput struct {
	Version    int                 `json:"version" validate:"min=0"`
	Type       *models.InvoiceType `json:"type" validate:"omitempty,oneof=client supplier agency"`
	ClientID   *uuid.UUID          `json:"clientId"`
	ClientName *string             `json:"clientName" validate:"omitempty,max=200"`
	IssueDate  *time.Time          `json:"issueDate"`
	DueDate    *time.Time          `json:"dueDate"`
	Notes      *string             `json:"notes"`
	Items      []LineItemInput     `json:"items" validate:"omitempty,min=1,dive"`
}

type InvoiceStatusInput struct {
	Status  models.InvoiceStatus `json:"status" validate:"required,oneof=draft sent paid overdue cancelled"`
	Version *int                 `json:"version"`
}

type InvoiceFilter struct {
	Status   models.InvoiceStatus
	Type     models.InvoiceType
	ClientID *uuid.UUID
	From, To *time.Time
	Search   string
}

type InvoiceService struct {
	db         *gorm.DB
	seq        Sequencer
	settings   *SettingsService
	notes      *NotificationService
	undoWindow time.Duration
}

func NewInvoiceService(db *gorm.DB, seq Sequencer, settings *SettingsService, notes *NotificationService, undoWindow time.Duration) *InvoiceService {
	return &InvoiceService{db: db, seq: seq, settings: settings, notes: notes, undoWindow: undoWindow}
}

type invoiceSnapshot struct {
	Number     string               `json:"number"`
	Type       models.InvoiceType   `json:"type"`
	ClientID   *uuid.UUID           `json:"clientId,omitempty"`
	ClientName string               `json:"clientName"`
	IssueDate  time.Time            `json:"issueDate"`
	DueDate    time.Time            `json:"dueDate"`
	Status     models.InvoiceStatus `json:"status"`
	Subtotal   decimal.Decimal      `json:"subtotal"`
	TaxRate    decimal.Decimal      `json:"taxRate"`
	Tax        decimal.Decimal      `json:"tax"`
	Total      decimal.Decimal      `json:"total"`
	Notes      string               `json:"notes"`
	Items      []models.LineItem    `json:"items"`
}

func snapshot(v any) datatypes.JSON {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}

func invoiceState(inv models.Invoice) datatypes.JSON {
	items := make([]models.LineItem, len(inv.Items))
	for i, it := range inv.Items {
		items[i] = it.LineItem
	}
	return snapshot(invoiceSnapshot{
		Number:     inv.Number,
		Type:       inv.Type,
		ClientID:   inv.ClientID,
		ClientName: inv.ClientName,
		IssueDate:  inv.IssueDate,
		DueDate:    inv.DueDate,
		Status:     inv.Status,
		Subtotal:   inv.Subtotal,
		TaxRate:    inv.TaxRate,
		Tax:        inv.Tax,
		Total:      inv.Total,
		Notes:      inv.Notes,
		Items:      items,
	})
}

func statusState(s models.InvoiceStatus) datatypes.JSON {
	return snapshot(map[string]string{"status": string(s)})
}

func appendHistory(tx *gorm.DB, h *models.InvoiceHistory) error {
	return dbErr("append invoice history", tx.Create(h).Error)
}

func (s *InvoiceService) seedFor(tx *gorm.DB, prefix string, year int) SeedFunc {
	return func() (int64, error) {
		var n int64
		err := tx.Unscoped().Model(&models.Invoice{}).
			Where("number LIKE ?", fmt.Sprintf("%s-%d-%%", prefix, year)).
			Count(&n).Error
		return n, err
	}
}

func (s *InvoiceService) Create(ctx context.Context, in CreateInvoiceInput) (models.Invoice, error) {
	var inv models.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		inv, err = s.create(ctx, tx, in)
		return err
	})
	if err != nil {
		return models.Invoice{}, err
	}
	return s.Get(ctx, inv.ID)
}

// create numbers and stores an invoice with its items and the create
// history entry inside tx.
func (s *InvoiceService) create(ctx context.Context, tx *gorm.DB, in CreateInvoiceInput) (models.Invoice, error) {
	if err := validateInput(in); err != nil {
		return models.Invoice{}, err
	}
	settings, err := s.settings.read(tx)
	if err != nil {
		return models.Invoice{}, err
	}
	lines, err := lineItems(in.Items)
	if err != nil {
		return models.Invoice{}, err
	}
	ref, err := resolveClientRef(tx, in.ClientID, in.ClientName)
	if err != nil {
		return models.Invoice{}, err
	}

	issue := timeNow()
	if in.IssueDate != nil {
		issue = *in.IssueDate
	}
	due := issue.AddDate(0, 0, settings.InvoiceDueDays)
	if in.DueDate != nil {
		due = *in.DueDate
	}
	if due.Before(issue) {
		return models.Invoice{}, invalid("dueDate cannot be before issueDate")
	}

	rate := settings.EffectiveVAT()
	if in.taxRate != nil {
		rate = *in.taxRate
	}
	totals := models.ComputeTotals(lines, rate)

	year := issue.Year()
	seq, err := s.seq.Next(ctx, tx, models.InvoicePrefix, year, s.seedFor(tx, models.InvoicePrefix, year))
	if err != nil {
		return models.Invoice{}, err
	}

	inv := models.Invoice{
		Number:    models.FormatDocumentNumber(models.InvoicePrefix, year, seq),
		Type:      in.Type,
		IssueDate: issue,
		DueDate:   due,
		Subtotal:  totals.Subtotal,
		TaxRate:   rate,
		Tax:       totals.Tax,
		Total:     totals.Total,
		Status:    in.Status,
		Notes:     in.Notes,
		BudgetID:  in.budgetID,
	}
	inv.SetClientRef(ref)
	if inv.Type == "" {
		inv.Type = models.InvoiceToClient
	}
	if inv.Status == "" {
		inv.Status = models.InvoiceDraft
	}

	if err := tx.Omit("Items", "History").Create(&inv).Error; err != nil {
		return models.Invoice{}, dbErr("create invoice", err)
	}
	inv.Items = make([]models.InvoiceItem, len(lines))
	for i, li := range lines {
		inv.Items[i] = models.InvoiceItem{InvoiceID: inv.ID, LineItem: li}
	}
	if err := tx.Create(&inv.Items).Error; err != nil {
		return models.Invoice{}, dbErr("create invoice items", err)
	}

	err = appendHistory(tx, &models.InvoiceHistory{
		InvoiceID:   inv.ID,
		Action:      models.HistoryCreate,
		Actor:       ActorFrom(ctx),
		Description: fmt.Sprintf("Factura %s creada", inv.Number),
		After:       invoiceState(inv),
	})
	return inv, err
}

func (s *InvoiceService) List(ctx context.Context, f InvoiceFilter) ([]models.Invoice, error) {
	q := s.db.WithContext(ctx).Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position") })
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.ClientID != nil {
		q = q.Where("client_id = ?", *f.ClientID)
	}
	if f.From != nil {
		q = q.Where("issue_date >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("issue_date <= ?", *f.To)
	}
	if f.Search != "" {
		p := likePattern(strings.ToLower(f.Search))
		q = q.Where("LOWER(number) LIKE ? OR LOWER(client_name) LIKE ?", p, p)
	}
	var out []models.Invoice
	if err := q.Order("issue_date DESC, number DESC").Find(&out).Error; err != nil {
		return nil, dbErr("list invoices", err)
	}
	return out, nil
}

func (s *InvoiceService) Get(ctx context.Context, id uuid.UUID) (models.Invoice, error) {
	var inv models.Invoice
	err := s.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Preload("History", func(db *gorm.DB) *gorm.DB { return db.Order("created_at") }).
		First(&inv, "id = ?", id).Error
	if err != nil {
		return inv, lookupErr("invoice", id, err)
	}
	return inv, nil
}

func (s *InvoiceService) loadForUpdate(tx *gorm.DB, id uuid.UUID) (models.Invoice, error) {
	var inv models.Invoice
	err := tx.Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).First(&inv, "id = ?", id).Error
	if err != nil {
		return inv, lookupErr("invoice", id, err)
	}
	return inv, nil
}

func (s *InvoiceService) Update(ctx context.Context, id uuid.UUID, in UpdateInvoiceInput) (models.Invoice, error) {
	if err := validateInput(in); err != nil {
		return models.Invoice{}, err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inv, err := s.loadForUpdate(tx, id)
		if err != nil {
			return err
		}
		if inv.Status == models.InvoicePaid || inv.Status == models.InvoiceCancelled {
			return invalid("invoice %s is %s and cannot be edited", inv.Number, inv.Status)
		}
		before := invoiceState(inv)

		if in.Type != nil {
			inv.Type = *in.Type
		}
		if in.ClientID != nil || in.ClientName != nil {
			name := inv.ClientName
			if in.ClientName != nil {
				name = *in.ClientName
			}
			ref, err := resolveClientRef(tx, in.ClientID, name)
			if err != nil {
				return err
			}
			inv.SetClientRef(ref)
		}
		if in.IssueDate != nil {
			inv.IssueDate = *in.IssueDate
		}
		if in.DueDate != nil {
			inv.DueDate = *in.DueDate
		}
		if inv.DueDate.Before(inv.IssueDate) {
			return invalid("dueDate cannot be before issueDate")
		}
		if in.Notes != nil {
			inv.Notes = *in.Notes
		}
		if in.Items != nil {
			lines, err := lineItems(in.Items)
			if err != nil {
				return err
			}
			if err := tx.Where("invoice_id = ?", inv.ID).Delete(&models.InvoiceItem{}).Error; err != nil {
				return dbErr("clear invoice items", err)
			}
			inv.Items = make([]models.InvoiceItem, len(lines))
			for i, li := range lines {
				inv.Items[i] = models.InvoiceItem{InvoiceID: inv.ID, LineItem: li}
			}
			if err := tx.Create(&inv.Items).Error; err != nil {
				return dbErr("create invoice items", err)
			}
			totals := models.ComputeTotals(inv.Items, inv.TaxRate)
			inv.Subtotal, inv.Tax, inv.Total = totals.Subtotal, totals.Tax, totals.Total
		}

		err = saveVersioned(tx, &models.Invoice{}, id, in.Version, map[string]any{
			"type":        inv.Type,
			"client_id":   inv.ClientID,
			"client_name": inv.ClientName,
			"issue_date":  inv.IssueDate,
			"due_date":    inv.DueDate,
			"notes":       inv.Notes,
			"subtotal":    inv.Subtotal,
			"tax":         inv.Tax,
			"total":       inv.Total,
		})
		if err != nil {
			return err
		}
		return appendHistory(tx, &models.InvoiceHistory{
			InvoiceID:   inv.ID,
			Action:      models.HistoryEdit,
			Actor:       ActorFrom(ctx),
			Description: fmt.Sprintf("Factura %s editada", inv.Number),
			Before:      before,
			After:       invoiceState(inv),
		})
	})
	if err != nil {
		return models.Invoice{}, err
	}
	return s.Get(ctx, id)
}

func (s *InvoiceService) ChangeStatus(ctx context.Context, id uuid.UUID, in InvoiceStatusInput) (models.Invoice, error) {
	if err := validateInput(in); err != nil {
		return models.Invoice{}, err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.changeStatus(ctx, tx, id, in.Status, in.Version)
	})
	if err != nil {
		return models.Invoice{}, err
	}
	return s.Get(ctx, id)
}

func (s *InvoiceService) changeStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status models.InvoiceStatus, version *int) error {
	var inv models.Invoice
	if err := tx.First(&inv, "id = ?", id).Error; err != nil {
		return lookupErr("invoice", id, err)
	}
	if inv.Status == status {
		return invalid("invoice %s is already %s", inv.Number, status)
	}
	v := inv.Version
	if version != nil {
		v = *version
	}
	if err := saveVersioned(tx, &models.Invoice{}, id, v, map[string]any{"status": status}); err != nil {
		return err
	}
	return appendHistory(tx, &models.InvoiceHistory{
		InvoiceID:   id,
		Action:      models.HistoryStatusChange,
		Actor:       ActorFrom(ctx),
		Description: fmt.Sprintf("Estado cambiado de %s a %s", inv.Status, status),
		Before:      statusState(inv.Status),
		After:       statusState(status),
	})
}

// Delete writes the delete history entry and then soft deletes the invoice.
func (s *InvoiceService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inv, err := s.loadForUpdate(tx, id)
		if err != nil {
			return err
		}
		err = appendHistory(tx, &models.InvoiceHistory{
			InvoiceID:   id,
			Action:      models.HistoryDelete,
			Actor:       ActorFrom(ctx),
			Description: fmt.Sprintf("Factura %s eliminada", inv.Number),
			Before:      invoiceState(inv),
		})
		if err != nil {
			return err
		}
		return softDelete[models.Invoice](tx, "invoice", id)
	})
}

func (s *InvoiceService) Restore(ctx context.Context, id uuid.UUID) (models.Invoice, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := restoreWithin[models.Invoice](tx, "invoice", id, s.undoWindow); err != nil {
			return err
		}
		return appendHistory(tx, &models.InvoiceHistory{
			InvoiceID:   id,
			Action:      models.HistoryEdit,
			Actor:       ActorFrom(ctx),
			Description: "Factura restaurada",
		})
	})
	if err != nil {
		return models.Invoice{}, err
	}
	return s.Get(ctx, id)
}

// History lists the audit trail, including for deleted invoices.
func (s *InvoiceService) History(ctx context.Context, id uuid.UUID) ([]models.InvoiceHistory, error) {
	db := s.db.WithContext(ctx)
	if err := exists[models.Invoice](db.Unscoped(), "invoice", id); err != nil {
		return nil, err
	}
	var out []models.InvoiceHistory
	if err := db.Where("invoice_id = ?", id).Order("created_at").Find(&out).Error; err != nil {
		return nil, dbErr("list invoice history", err)
	}
	return out, nil
}

// MarkOverdue flips sent invoices past their due date to overdue.
func (s *InvoiceService) MarkOverdue(ctx context.Context) (int, error) {
	var due []models.Invoice
	err := s.db.WithContext(ctx).
		Where("status = ? AND due_date < ?", models.InvoiceSent, timeNow()).
		Find(&due).Error
	if err != nil {
		return 0, dbErr("find overdue invoices", err)
	}

	sysCtx := WithActor(ctx, SystemActor)
	var (
		notes []models.Notification
		count int
	)
	for _, inv := range due {
		var note models.Notification
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := s.changeStatus(sysCtx, tx, inv.ID, models.InvoiceOverdue, &inv.Version); err != nil {
				return err
			}
			note = models.Notification{
				Kind:      models.NotifyInvoiceOverdue,
				Module:    "facturacion",
				Title:     "Factura vencida",
				Message:   fmt.Sprintf("%s de %s por %s", inv.Number, inv.ClientName, inv.Total.StringFixed(2)),
				Priority:  models.NotificationHigh,
				ClientID:  inv.ClientID,
				InvoiceID: &inv.ID,
			}
			return s.notes.Record(tx, &note)
		})
		if err != nil {
			return count, err
		}
		notes = append(notes, note)
		count++
	}
	s.notes.Dispatch(notes...)
	return count, nil
}
