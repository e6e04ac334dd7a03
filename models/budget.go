package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type BudgetStatus string

const (
	BudgetDraft    BudgetStatus = "draft"
	BudgetSent     BudgetStatus = "sent"
	BudgetApproved BudgetStatus = "approved"
	BudgetRejected BudgetStatus = "rejected"
	BudgetExpired  BudgetStatus = "expired"
)

func (s BudgetStatus) Valid() bool {
	switch s {
	case BudgetDraft, BudgetSent, BudgetApproved, BudgetRejected, BudgetExpired:
		return true
	}
	return false
}

const BudgetPrefix = "PRE"

// Budget (presupuesto) is a priced proposal that can turn into processes
// and an invoice.
type Budget struct {
	Base
	Number        string          `gorm:"uniqueIndex;not null" json:"number"`
	ClientID      *uuid.UUID      `gorm:"type:uuid;index" json:"clientId,omitempty"`
	ClientName    string          `gorm:"not null" json:"clientName"`
	OperationType string          `json:"operationType"`
	Description   string          `gorm:"type:text" json:"description"`
	Subtotal      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"subtotal"`
	TaxRate       decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"taxRate"`
	Tax           decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"tax"`
	Total         decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total"`
	Status        BudgetStatus    `gorm:"type:varchar(20);index;not null" json:"status"`
	ExpiresAt     time.Time       `gorm:"index" json:"expiresAt"`
	InvoiceID     *uuid.UUID      `gorm:"type:uuid;index" json:"invoiceId,omitempty"`
	Version       int             `gorm:"not null" json:"version"`

	Items     []BudgetItem `gorm:"foreignKey:BudgetID" json:"items"`
	Processes []Process    `gorm:"foreignKey:BudgetID" json:"processes,omitempty"`

	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (b Budget) ClientRef() ClientRef {
	return ClientRef{ID: b.ClientID, Name: b.ClientName}
}

func (b *Budget) SetClientRef(r ClientRef) {
	b.ClientID = r.ID
	b.ClientName = r.Name
}

type BudgetItem struct {
	Base
	BudgetID       uuid.UUID  `gorm:"type:uuid;index;not null" json:"budgetId"`
	ServicePriceID *uuid.UUID `gorm:"type:uuid;index" json:"servicePriceId,omitempty"`
	LineItem
}
