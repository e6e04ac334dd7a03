package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type InvoiceType string

const (
	InvoiceToClient   InvoiceType = "client"
	InvoiceToSupplier InvoiceType = "supplier"
	InvoiceToAgency   InvoiceType = "agency"
)

func (t InvoiceType) Valid() bool {
	return t == InvoiceToClient || t == InvoiceToSupplier || t == InvoiceToAgency
}

type InvoiceStatus string

const (
	InvoiceDraft     InvoiceStatus = "draft"
	InvoiceSent      InvoiceStatus = "sent"
	InvoicePaid      InvoiceStatus = "paid"
	InvoiceOverdue   InvoiceStatus = "overdue"
	InvoiceCancelled InvoiceStatus = "cancelled"
)

func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceDraft, InvoiceSent, InvoicePaid, InvoiceOverdue, InvoiceCancelled:
		return true
	}
	return false
}

// InvoicePrefix is the numbering series used for invoices.
const InvoicePrefix = "FAC"

// FormatDocumentNumber renders PREFIX-YEAR-SEQ with a zero padded sequence.
func FormatDocumentNumber(prefix string, year int, seq int64) string {
	return fmt.Sprintf("%s-%d-%04d", prefix, year, seq)
}

type Invoice struct {
	Base
	Number     string          `gorm:"uniqueIndex;not null" json:"number"`
	Type       InvoiceType     `gorm:"type:varchar(20);not null" json:"type"`
	ClientID   *uuid.UUID      `gorm:"type:uuid;index" json:"clientId,omitempty"`
	ClientName string          `gorm:"not null" json:"clientName"`
	IssueDate  time.Time       `gorm:"index" json:"issueDate"`
	DueDate    time.Time       `gorm:"index" json:"dueDate"`
	Subtotal   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"subtotal"`
	TaxRate    decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"taxRate"`
	Tax        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"tax"`
	Total      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total"`
	Status     InvoiceStatus   `gorm:"type:varchar(20);index;not null" json:"status"`
	Notes      string          `gorm:"type:text" json:"notes"`
	BudgetID   *uuid.UUID      `gorm:"type:uuid;index" json:"budgetId,omitempty"`
	Version    int             `gorm:"not null" json:"version"`

	Items   []InvoiceItem    `gorm:"foreignKey:InvoiceID" json:"items"`
	History []InvoiceHistory `gorm:"foreignKey:InvoiceID" json:"history,omitempty"`

	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (inv Invoice) ClientRef() ClientRef {
	return ClientRef{ID: inv.ClientID, Name: inv.ClientName}
}

func (inv *Invoice) SetClientRef(r ClientRef) {
	inv.ClientID = r.ID
	inv.ClientName = r.Name
}

// LineItem is the priced line shared by invoices and budgets.
type LineItem struct {
	Description string          `gorm:"not null" json:"description"`
	Quantity    decimal.Decimal `gorm:"type:decimal(12,3);not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unitPrice"`
	Total       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total"`
	Position    int             `gorm:"not null" json:"position"`
}

func (l LineItem) LineTotal() decimal.Decimal {
	return l.Quantity.Mul(l.UnitPrice).Round(2)
}

type InvoiceItem struct {
	Base
	InvoiceID uuid.UUID `gorm:"type:uuid;index;not null" json:"invoiceId"`
	LineItem
}

type HistoryAction string

const (
	HistoryCreate       HistoryAction = "create"
	HistoryEdit         HistoryAction = "edit"
	HistoryDelete       HistoryAction = "delete"
	HistoryStatusChange HistoryAction = "status-change"
)

// InvoiceHistory is an append-only audit entry with before/after snapshots.
type InvoiceHistory struct {
	Base
	InvoiceID   uuid.UUID      `gorm:"type:uuid;index;not null" json:"invoiceId"`
	Action      HistoryAction  `gorm:"type:varchar(20);not null" json:"action"`
	Actor       string         `gorm:"not null" json:"actor"`
	Description string         `gorm:"type:text" json:"description"`
	Before      datatypes.JSON `json:"before,omitempty"`
	After       datatypes.JSON `json:"after,omitempty"`
}

type Pricer interface {
	LineTotal() decimal.Decimal
}

type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

var hundred = decimal.NewFromInt(100)

// ComputeTotals sums the lines and applies ratePercent (21 means 21%).
func ComputeTotals[T Pricer](items []T, ratePercent decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.LineTotal())
	}
	tax := subtotal.Mul(ratePercent).Div(hundred).Round(2)
	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Total:    subtotal.Add(tax),
	}
}
