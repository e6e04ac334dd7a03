package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ProcessState string

const (
	StatePending            ProcessState = "pending"
	StateDocumentCollection ProcessState = "document-collection"
	StateSubmitted          ProcessState = "submitted"
	StateUnderReview        ProcessState = "under-review"
	StateApproved           ProcessState = "approved"
	StateRejected           ProcessState = "rejected"
	StateArchived           ProcessState = "archived"
)

// ProcessStates lists the workflow columns in board order.
var ProcessStates = []ProcessState{
	StatePending,
	StateDocumentCollection,
	StateSubmitted,
	StateUnderReview,
	StateApproved,
	StateRejected,
	StateArchived,
}

var stateLabels = map[ProcessState]string{
	StatePending:            "Pendiente",
	StateDocumentCollection: "Recolección de documentos",
	StateSubmitted:          "Presentado",
	StateUnderReview:        "En revisión",
	StateApproved:           "Aprobado",
	StateRejected:           "Rechazado",
	StateArchived:           "Archivado",
}

// legacy three-state values still sent by older views
var legacyStates = map[string]ProcessState{
	"in-progress": StateDocumentCollection,
	"completed":   StateApproved,
}

func (s ProcessState) Valid() bool {
	_, ok := stateLabels[s]
	return ok
}

func (s ProcessState) Terminal() bool {
	return s == StateApproved || s == StateRejected || s == StateArchived
}

func (s ProcessState) Label() string {
	if l, ok := stateLabels[s]; ok {
		return l
	}
	return string(s)
}

// ParseProcessState accepts the canonical values and the legacy
// pending/in-progress/completed variant.
func ParseProcessState(v string) (ProcessState, error) {
	s := ProcessState(v)
	if s.Valid() {
		return s, nil
	}
	if mapped, ok := legacyStates[v]; ok {
		return mapped, nil
	}
	return "", fmt.Errorf("unknown process state %q", v)
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Process is a regulatory procedure tracked for a client with an agency.
// It owns its documents and comments.
type Process struct {
	Base
	Title        string                      `gorm:"not null" json:"title"`
	Description  string                      `gorm:"type:text" json:"description"`
	ClientID     uuid.UUID                   `gorm:"type:uuid;index;not null" json:"clientId"`
	Client       *Client                     `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	AgencyID     uuid.UUID                   `gorm:"type:uuid;index;not null" json:"agencyId"`
	Agency       *Agency                     `gorm:"foreignKey:AgencyID" json:"agency,omitempty"`
	TemplateID   *uuid.UUID                  `gorm:"type:uuid;index" json:"templateId,omitempty"`
	BudgetID     *uuid.UUID                  `gorm:"type:uuid;index" json:"budgetId,omitempty"`
	State        ProcessState                `gorm:"type:varchar(30);index;not null" json:"state"`
	Priority     Priority                    `gorm:"type:varchar(10);not null" json:"priority"`
	Progress     int                         `gorm:"not null" json:"progress"`
	AutoProgress bool                        `gorm:"not null" json:"autoProgress"`
	Cost         decimal.Decimal             `gorm:"type:decimal(12,2)" json:"cost"`
	Tags         datatypes.JSONSlice[string] `json:"tags"`
	Notes        string                      `gorm:"type:text" json:"notes"`
	StartDate    time.Time                   `gorm:"index" json:"startDate"`
	DueDate      *time.Time                  `gorm:"index" json:"dueDate,omitempty"`
	Invoiced     bool                        `gorm:"not null" json:"invoiced"`
	Version      int                         `gorm:"not null" json:"version"`

	Documents []Document `gorm:"foreignKey:ProcessID" json:"documents,omitempty"`
	Comments  []Comment  `gorm:"foreignKey:ProcessID" json:"comments,omitempty"`

	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// ClampProgress keeps a progress value inside 0..100.
func ClampProgress(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// IsOverdue reports whether the process is past its due date and still open.
func (p Process) IsOverdue(at time.Time) bool {
	return p.DueDate != nil && p.DueDate.Before(at) && !p.State.Terminal()
}

type CommentKind string

const (
	CommentFree          CommentKind = "comment"
	CommentStateChange   CommentKind = "state-change"
	CommentDocumentAdded CommentKind = "document-added"
)

// Comment is an append-only audit entry on a process.
type Comment struct {
	Base
	ProcessID uuid.UUID    `gorm:"type:uuid;index;not null" json:"processId"`
	Author    string       `gorm:"not null" json:"author"`
	Content   string       `gorm:"type:text;not null" json:"content"`
	Kind      CommentKind  `gorm:"type:varchar(20);not null" json:"kind"`
	Before    ProcessState `gorm:"type:varchar(30)" json:"before,omitempty"`
	After     ProcessState `gorm:"type:varchar(30)" json:"after,omitempty"`
}

// Template (plantilla) seeds new processes for an agency.
type Template struct {
	Base
	Name              string                      `gorm:"not null" json:"name"`
	Description       string                      `gorm:"type:text" json:"description"`
	AgencyID          uuid.UUID                   `gorm:"type:uuid;index;not null" json:"agencyId"`
	Agency            *Agency                     `gorm:"foreignKey:AgencyID" json:"agency,omitempty"`
	RequiredDocuments datatypes.JSONSlice[string] `json:"requiredDocuments"`
	EstimatedDays     int                         `json:"estimatedDays"`
	EstimatedCost     decimal.Decimal             `gorm:"type:decimal(12,2)" json:"estimatedCost"`

	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
