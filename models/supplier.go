package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type SupplierCategory string

const (
	SupplierLogistics  SupplierCategory = "logistics"
	SupplierLegal      SupplierCategory = "legal"
	SupplierGovernment SupplierCategory = "government"
	SupplierOther      SupplierCategory = "other"
)

func (c SupplierCategory) Valid() bool {
	switch c {
	case SupplierLogistics, SupplierLegal, SupplierGovernment, SupplierOther:
		return true
	}
	return false
}

type Supplier struct {
	Base
	Name        string           `gorm:"not null;index" json:"name"`
	Category    SupplierCategory `gorm:"type:varchar(20);not null" json:"category"`
	TaxID       string           `gorm:"index" json:"taxId"`
	ContactName string           `json:"contactName"`
	Email       string           `json:"email"`
	Phone       string           `json:"phone"`
	Address     string           `json:"address"`
	IsActive    bool             `gorm:"not null" json:"isActive"`

	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

type SupplierInvoiceStatus string

const (
	SupplierInvoicePending SupplierInvoiceStatus = "pending"
	SupplierInvoicePaid    SupplierInvoiceStatus = "paid"
	SupplierInvoiceOverdue SupplierInvoiceStatus = "overdue"
)

func (s SupplierInvoiceStatus) Valid() bool {
	switch s {
	case SupplierInvoicePending, SupplierInvoicePaid, SupplierInvoiceOverdue:
		return true
	}
	return false
}

// SupplierInvoice is a bill received from a supplier. It has a single
// concept and amount instead of line items.
type SupplierInvoice struct {
	Base
	SupplierID uuid.UUID             `gorm:"type:uuid;index;not null" json:"supplierId"`
	Supplier   *Supplier             `gorm:"foreignKey:SupplierID" json:"supplier,omitempty"`
	Number     string                `gorm:"index" json:"number"`
	Concept    string                `gorm:"not null" json:"concept"`
	Category   string                `json:"category"`
	Amount     decimal.Decimal       `gorm:"type:decimal(12,2);not null" json:"amount"`
	IssueDate  time.Time             `json:"issueDate"`
	DueDate    time.Time             `gorm:"index" json:"dueDate"`
	Status     SupplierInvoiceStatus `gorm:"type:varchar(20);index;not null" json:"status"`
	PaidAt     *time.Time            `json:"paidAt,omitempty"`
	ProcessID  *uuid.UUID            `gorm:"type:uuid;index" json:"processId,omitempty"`
	Notes      string                `gorm:"type:text" json:"notes"`

	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
