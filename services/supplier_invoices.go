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

type SupplierInvoiceInput struct {
	Number    string          `json:"number" validate:"max=64"`
	Concept   string          `json:"concept" validate:"required,max=300"`
	Category  string          `json:"category" validate:"max=64"`
	Amount    decimal.Decimal `json:"amount"`
	IssueDate time.Time       `json:"issueDate" validate:"required"`
	DueDate   time.Time       `json:"dueDate" validate:"required,gtefield=IssueDate"`
	ProcessID *uuid.UUID      `json:"processId"`
	Notes     string          `json:"notes"`
}

type UpdateSupplierInvoiceInput struct {
	Number    *string          `json:"number" validate:"omitempty,max=64"`
	Concept   *string          `json:"concept" validate:"omitempty,min=1,max=300"`
	Category  *string          `json:"category" validate:"omitempty,max=64"`
	Amount    *decimal.Decimal `json:"amount"`
	IssueDate *time.Time       `json:"issueDate"`
	DueDate   *time.Time       `json:"dueDate"`
	ProcessID *uuid.UUID       `json:"processId"`
	Notes     *string          `json:"notes"`
}

type SupplierInvoiceFilter struct {
	SupplierID *uuid.UUID
	Status     models.SupplierInvoiceStatus
	From, To   *time.Time
}

// SupplierTotals rolls up what is owed to one supplier.
type SupplierTotals struct {
	SupplierID uuid.UUID       `json:"supplierId"`
	Count      int             `json:"count"`
	Total      decimal.Decimal `json:"total"`
	Paid       decimal.Decimal `json:"paid"`
	Pending    decimal.Decimal `json:"pending"`
	Overdue    decimal.Decimal `json:"overdue"`
}

type SupplierInvoiceService struct {
	db         *gorm.DB
	undoWindow time.Duration
}

func NewSupplierInvoiceService(db *gorm.DB, undoWindow time.Duration) *SupplierInvoiceService {
	return &SupplierInvoiceService{db: db, undoWindow: undoWindow}
}

func (s *SupplierInvoiceService) Create(ctx context.Context, supplierID uuid.UUID, in SupplierInvoiceInput) (models.SupplierInvoice, error) {
	if err := validateInput(in); err != nil {
		return models.SupplierInvoice{}, err
	}
	if !in.Amount.IsPositive() {
		return models.SupplierInvoice{}, invalid("amount must be greater than zero")
	}
	db := s.db.WithContext(ctx)
	if err := exists[models.Supplier](db, "supplier", supplierID); err != nil {
		return models.SupplierInvoice{}, err
	}
	if in.ProcessID != nil {
		if err := exists[models.Process](db, "process", *in.ProcessID); err != nil {
			return models.SupplierInvoice{}, err
		}
	}

	inv := models.SupplierInvoice{
		SupplierID: supplierID,
		Number:     strings.TrimSpace(in.Number),
		Concept:    strings.TrimSpace(in.Concept),
		Category:   in.Category,
		Amount:     in.Amount.Round(2),
		IssueDate:  in.IssueDate,
		DueDate:    in.DueDate,
		Status:     models.SupplierInvoicePending,
		ProcessID:  in.ProcessID,
		Notes:      in.Notes,
	}
	if err := db.Create(&inv).Error; err != nil {
		return inv, dbErr("create supplier invoice", err)
	}
	return inv, nil
}

func (s *SupplierInvoiceService) List(ctx context.Context, f SupplierInvoiceFilter) ([]models.SupplierInvoice, error) {
	q := s.db.WithContext(ctx).Preload("Supplier")
	if f.SupplierID != nil {
		q = q.Where("supplier_id = ?", *f.SupplierID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.From != nil {
		q = q.Where("issue_date >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("issue_date <= ?", *f.To)
	}
	var out []models.SupplierInvoice
	if err := q.Order("due_date").Find(&out).Error; err != nil {
		return nil, dbErr("list supplier invoices", err)
	}
	return out, nil
}

func (s *SupplierInvoiceService) Get(ctx context.Context, id uuid.UUID) (models.SupplierInvoice, error) {
	return getByID[models.SupplierInvoice](ctx, s.db, "supplier invoice", id, "Supplier")
}

func (s *SupplierInvoiceService) Update(ctx context.Context, id uuid.UUID, in UpdateSupplierInvoiceInput) (models.SupplierInvoice, error) {
	if err := validateInput(in); err != nil {
		return models.SupplierInvoice{}, err
	}
	inv, err := getByID[models.SupplierInvoice](ctx, s.db, "supplier invoice", id)
	if err != nil {
		return inv, err
	}
	if in.Number != nil {
		inv.Number = strings.TrimSpace(*in.Number)
	}
	if in.Concept != nil {
		inv.Concept = strings.TrimSpace(*in.Concept)
	}
	if in.Category != nil {
		inv.Category = *in.Category
	}
	if in.Amount != nil {
		if !in.Amount.IsPositive() {
			return inv, invalid("amount must be greater than zero")
		}
		inv.Amount = in.Amount.Round(2)
	}
	if in.IssueDate != nil {
		inv.IssueDate = *in.IssueDate
	}
	if in.DueDate != nil {
		inv.DueDate = *in.DueDate
	}
	if inv.DueDate.Before(inv.IssueDate) {
		return inv, invalid("dueDate cannot be before issueDate")
	}
	if in.ProcessID != nil {
		inv.ProcessID = in.ProcessID
	}
	if in.Notes != nil {
		inv.Notes = *in.Notes
	}
	if err := s.db.WithContext(ctx).Save(&inv).Error; err != nil {
		return inv, dbErr("update supplier invoice", err)
	}
	return inv, nil
}

func (s *SupplierInvoiceService) ChangeStatus(ctx context.Context, id uuid.UUID, status models.SupplierInvoiceStatus) (models.SupplierInvoice, error) {
	if !status.Valid() {
		return models.SupplierInvoice{}, invalid("unknown supplier invoice status %q", status)
	}
	inv, err := getByID[models.SupplierInvoice](ctx, s.db, "supplier invoice", id)
	if err != nil {
		return inv, err
	}
	inv.Status = status
	if status == models.SupplierInvoicePaid {
		now := timeNow()
		inv.PaidAt = &now
	} else {
		inv.PaidAt = nil
	}
	if err := s.db.WithContext(ctx).Save(&inv).Error; err != nil {
		return inv, dbErr("update supplier invoice status", err)
	}
	return inv, nil
}

func (s *SupplierInvoiceService) Delete(ctx context.Context, id uuid.UUID) error {
	return softDelete[models.SupplierInvoice](s.db.WithContext(ctx), "supplier invoice", id)
}

func (s *SupplierInvoiceService) Restore(ctx context.Context, id uuid.UUID) (models.SupplierInvoice, error) {
	if err := restoreWithin[models.SupplierInvoice](s.db.WithContext(ctx), "supplier invoice", id, s.undoWindow); err != nil {
		return models.SupplierInvoice{}, err
	}
	return s.Get(ctx, id)
}

func (s *SupplierInvoiceService) Totals(ctx context.Context, supplierID uuid.UUID) (SupplierTotals, error) {
	invoices, err := s.List(ctx, SupplierInvoiceFilter{SupplierID: &supplierID})
	if err != nil {
		return SupplierTotals{}, err
	}
	return SummarizeSupplierInvoices(supplierID, invoices), nil
}

func SummarizeSupplierInvoices(supplierID uuid.UUID, invoices []models.SupplierInvoice) SupplierTotals {
	t := SupplierTotals{SupplierID: supplierID, Total: decimal.Zero, Paid: decimal.Zero, Pending: decimal.Zero, Overdue: decimal.Zero}
	for _, inv := range invoices {
		t.Count++
		t.Total = t.Total.Add(inv.Amount)
		switch inv.Status {
		case models.SupplierInvoicePaid:
			t.Paid = t.Paid.Add(inv.Amount)
		case models.SupplierInvoiceOverdue:
			t.Overdue = t.Overdue.Add(inv.Amount)
		default:
			t.Pending = t.Pending.Add(inv.Amount)
		}
	}
	return t
}

// MarkOverdue flips pending supplier invoices past their due date.
func (s *SupplierInvoiceService) MarkOverdue(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.SupplierInvoice{}).
		Where("status = ? AND due_date < ?", models.SupplierInvoicePending, timeNow()).
		Update("status", models.SupplierInvoiceOverdue)
	return res.RowsAffected, dbErr("mark supplier invoices overdue", res.Error)
}
