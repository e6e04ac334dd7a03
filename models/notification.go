package models

import "github.com/google/uuid"

type NotificationKind string

const (
	NotifyNewProcess       NotificationKind = "new-process"
	NotifyNewClient        NotificationKind = "new-client"
	NotifyNewBudget        NotificationKind = "new-budget"
	NotifyMissingPrice     NotificationKind = "missing-price"
	NotifyProcessModified  NotificationKind = "process-modified"
	NotifyDocumentUploaded NotificationKind = "document-uploaded"
	NotifyProcessDueSoon   NotificationKind = "process-due-soon"
	NotifyInvoiceOverdue   NotificationKind = "invoice-overdue"
	NotifyBudgetExpired    NotificationKind = "budget-expired"
	NotifyAIValidation     NotificationKind = "ai-validation"
)

type NotificationPriority string

const (
	NotificationLow    NotificationPriority = "low"
	NotificationMedium NotificationPriority = "medium"
	NotificationHigh   NotificationPriority = "high"
)

type Notification struct {
	Base
	Kind      NotificationKind     `gorm:"type:varchar(30);index;not null" json:"kind"`
	Module    string               `gorm:"type:varchar(30);index" json:"module"`
	Title     string               `gorm:"not null" json:"title"`
	Message   string               `gorm:"type:text" json:"message"`
	Read      bool                 `gorm:"index;not null" json:"read"`
	Priority  NotificationPriority `gorm:"type:varchar(10);not null" json:"priority"`
	ProcessID *uuid.UUID           `gorm:"type:uuid;index" json:"processId,omitempty"`
	ClientID  *uuid.UUID           `gorm:"type:uuid;index" json:"clientId,omitempty"`
	BudgetID  *uuid.UUID           `gorm:"type:uuid;index" json:"budgetId,omitempty"`
	InvoiceID *uuid.UUID           `gorm:"type:uuid;index" json:"invoiceId,omitempty"`
}
