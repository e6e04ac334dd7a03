package models

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DocumentStatus string

const (
	DocumentPending  DocumentStatus = "pending"
	DocumentUploaded DocumentStatus = "uploaded"
	DocumentApproved DocumentStatus = "approved"
	DocumentRejected DocumentStatus = "rejected"
)

func (s DocumentStatus) Valid() bool {
	switch s {
	case DocumentPending, DocumentUploaded, DocumentApproved, DocumentRejected:
		return true
	}
	return false
}

// Document is one entry of a process checklist.
type Document struct {
	Base
	ProcessID   uuid.UUID      `gorm:"type:uuid;index;not null" json:"processId"`
	Name        string         `gorm:"not null" json:"name"`
	Required    bool           `gorm:"not null" json:"required"`
	Validated   bool           `gorm:"not null" json:"validated"`
	Status      DocumentStatus `gorm:"type:varchar(20);not null" json:"status"`
	FileKey     string         `json:"-"`
	FileURL     string         `gorm:"-" json:"fileUrl,omitempty"`
	FileName    string         `json:"fileName,omitempty"`
	FileSize    int64          `json:"fileSize,omitempty"`
	ContentType string         `json:"contentType,omitempty"`
	Checksum    string         `json:"checksum,omitempty"`
	UploadedAt  *time.Time     `json:"uploadedAt,omitempty"`
	Note        string         `gorm:"type:text" json:"note"`
	Position    int            `gorm:"not null" json:"position"`
}

func (d Document) HasFile() bool {
	return d.FileKey != ""
}

// DownloadPath is the API path that redirects to a freshly signed link for
// the stored file. Signed links expire, so only this path is handed out.
func (d Document) DownloadPath() string {
	if !d.HasFile() {
		return ""
	}
	return fmt.Sprintf("/api/processes/%s/documents/%s/file", d.ProcessID, d.ID)
}

func (d *Document) AfterFind(*gorm.DB) error {
	d.FileURL = d.DownloadPath()
	return nil
}

func (d *Document) AfterSave(*gorm.DB) error {
	d.FileURL = d.DownloadPath()
	return nil
}

// SyncStatus derives the status from the validated flag and file presence.
// A rejected document stays rejected until it is validated or re-uploaded.
func (d *Document) SyncStatus() {
	switch {
	case d.Validated:
		d.Status = DocumentApproved
	case d.Status == DocumentRejected:
	case d.HasFile():
		d.Status = DocumentUploaded
	default:
		d.Status = DocumentPending
	}
}

type ChecklistStats struct {
	Total      int `json:"total"`
	Required   int `json:"required"`
	Validated  int `json:"validated"`
	Pending    int `json:"pending"`
	Uploaded   int `json:"uploaded"`
	Completion int `json:"completion"`
}

func NewChecklistStats(docs []Document) ChecklistStats {
	var st ChecklistStats
	st.Total = len(docs)
	for _, d := range docs {
		if d.Required {
			st.Required++
		}
		if d.Validated {
			st.Validated++
		}
		if d.HasFile() {
			st.Uploaded++
		}
	}
	st.Pending = st.Total - st.Validated
	if st.Total > 0 {
		st.Completion = int(math.Round(float64(st.Validated) / float64(st.Total) * 100))
		// only a fully validated checklist reads 100
		if st.Completion == 100 && st.Validated < st.Total {
			st.Completion = 99
		}
	}
	return st
}
