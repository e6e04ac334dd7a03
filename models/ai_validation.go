package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type ValidationStatus string

const (
	ValidationPending    ValidationStatus = "pending"
	ValidationProcessing ValidationStatus = "processing"
	ValidationCompleted  ValidationStatus = "completed"
	ValidationError      ValidationStatus = "error"
)

func (s ValidationStatus) Done() bool {
	return s == ValidationCompleted || s == ValidationError
}

// AIValidationResult holds what the external document checker returned.
// It is informational only and never flips Document.Validated.
type AIValidationResult struct {
	Base
	DocumentID      uuid.UUID                   `gorm:"type:uuid;index;not null" json:"documentId"`
	Status          ValidationStatus            `gorm:"type:varchar(20);not null" json:"status"`
	Confidence      int                         `json:"confidence"`
	ExtractedText   string                      `gorm:"type:text" json:"extractedText"`
	ExtractedFields datatypes.JSONMap           `json:"extractedFields"`
	Errors          datatypes.JSONSlice[string] `json:"errors"`
	Suggestions     datatypes.JSONSlice[string] `json:"suggestions"`
	ErrorMessage    string                      `json:"errorMessage,omitempty"`
	ProcessedAt     *time.Time                  `json:"processedAt,omitempty"`
}
