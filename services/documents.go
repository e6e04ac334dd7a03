package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"customsdesk-backend/config"
	"customsdesk-backend/models"
	"customsdesk-backend/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const uploadLockTTL = 2 * time.Minute

type UploadInput struct {
	FileName string
	Size     int64
	Body     io.Reader
}

type SetDocumentStatusInput struct {
	Status models.DocumentStatus `json:"status" validate:"required,oneof=pending uploaded approved rejected"`
	Reason string                `json:"reason" validate:"max=500"`
}

type DocumentService struct {
	db       *gorm.DB
	settings *SettingsService
	notes    *NotificationService
	store    utils.FileStore
	locker   utils.Locker
}

func NewDocumentService(db *gorm.DB, settings *SettingsService, notes *NotificationService, store utils.FileStore, locker utils.Locker) *DocumentService {
	return &DocumentService{db: db, settings: settings, notes: notes, store: store, locker: locker}
}

func (s *DocumentService) load(tx *gorm.DB, processID, docID uuid.UUID) (models.Document, error) {
	if err := exists[models.Process](tx, "process", processID); err != nil {
		return models.Document{}, err
	}
	var d models.Document
	if err := tx.First(&d, "id = ? AND process_id = ?", docID, processID).Error; err != nil {
		return d, lookupErr("document", docID, err)
	}
	return d, nil
}

func (s *DocumentService) List(ctx context.Context, processID uuid.UUID) ([]models.Document, error) {
	db := s.db.WithContext(ctx)
	if err := exists[models.Process](db, "process", processID); err != nil {
		return nil, err
	}
	var docs []models.Document
	if err := db.Where("process_id = ?", processID).Order("position").Find(&docs).Error; err != nil {
		return nil, dbErr("list documents", err)
	}
	return docs, nil
}

func (s *DocumentService) Stats(ctx context.Context, processID uuid.UUID) (models.ChecklistStats, error) {
	docs, err := s.List(ctx, processID)
	if err != nil {
		return models.ChecklistStats{}, err
	}
	return models.NewChecklistStats(docs), nil
}

// Add appends a pending document to the checklist. Names need not be unique.
func (s *DocumentService) Add(ctx context.Context, processID uuid.UUID, in DocumentInput) (models.Document, error) {
	if err := validateInput(in); err != nil {
		return models.Document{}, err
	}
	doc := models.Document{
		ProcessID: processID,
		Name:      strings.TrimSpace(in.Name),
		Required:  in.Required,
		Status:    models.DocumentPending,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := exists[models.Process](tx, "process", processID); err != nil {
			return err
		}
		var last struct{ Max *int }
		if err := tx.Model(&models.Document{}).Select("MAX(position) AS max").Where("process_id = ?", processID).Scan(&last).Error; err != nil {
			return dbErr("load checklist", err)
		}
		if last.Max != nil {
			doc.Position = *last.Max + 1
		}
		if err := tx.Create(&doc).Error; err != nil {
			return dbErr("create document", err)
		}
		if err := appendComment(tx, processID, ActorFrom(ctx), models.CommentDocumentAdded, "Documento agregado: "+doc.Name); err != nil {
			return err
		}
		return syncAutoProgress(tx, processID)
	})
	return doc, err
}

// Upload stores the file and attaches it to the document. It never touches
// the validated flag. A second upload of the same document while one is
// running fails with ConflictError.
func (s *DocumentService) Upload(ctx context.Context, processID, docID uuid.UUID, in UploadInput) (models.Document, error) {
	if in.Size > utils.MaxUploadSize {
		return models.Document{}, invalid("file exceeds the %d MB limit", utils.MaxUploadSize>>20)
	}
	if in.Size == 0 || in.Body == nil {
		return models.Document{}, invalid("file is empty")
	}

	head := make([]byte, utils.SniffLength)
	n, err := io.ReadFull(in.Body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return models.Document{}, invalid("read file: %v", err)
	}
	head = head[:n]
	contentType, ok := utils.DetectFileType(in.FileName, head)
	if !ok {
		return models.Document{}, invalid("unsupported file type; accepted: PDF, JPG, PNG, DOC, DOCX, XLS, XLSX")
	}

	doc, err := s.load(s.db.WithContext(ctx), processID, docID)
	if err != nil {
		return doc, err
	}

	release, err := s.locker.Acquire(ctx, "document-upload:"+docID.String(), uploadLockTTL)
	if errors.Is(err, utils.ErrLocked) {
		return doc, conflict("an upload for document %s is already in progress", docID)
	}
	if err != nil {
		return doc, &PersistenceError{Op: "acquire upload lock", Err: err}
	}
	defer release()

	body := io.LimitReader(io.MultiReader(bytes.NewReader(head), in.Body), utils.MaxUploadSize+1)
	key := utils.ObjectKey("processes/"+processID.String(), docID.String(), in.FileName)
	stored, err := s.store.Put(ctx, key, contentType, body)
	if err != nil {
		return doc, &PersistenceError{Op: "store file", Err: err}
	}
	if stored.Size > utils.MaxUploadSize {
		s.discard(ctx, stored.Key)
		return doc, invalid("file exceeds the %d MB limit", utils.MaxUploadSize>>20)
	}

	now := timeNow()
	summary := fmt.Sprintf("Archivo %s (%s) subido el %s", in.FileName, humanSize(stored.Size), now.Format("02/01/2006 15:04"))

	// the row is read again here: reviews made while the file was being
	// stored must survive the upload
	var (
		note        models.Notification
		previousKey string
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if doc, err = s.load(tx, processID, docID); err != nil {
			return err
		}
		previousKey = doc.FileKey

		doc.FileKey = stored.Key
		doc.FileName = in.FileName
		doc.FileSize = stored.Size
		doc.ContentType = contentType
		doc.Checksum = stored.Checksum
		doc.UploadedAt = &now
		if doc.Note == "" {
			doc.Note = summary
		} else {
			doc.Note = doc.Note + "\n" + summary
		}
		if doc.Status == models.DocumentRejected {
			doc.Status = models.DocumentUploaded
		}
		doc.SyncStatus()
		doc.FileURL = doc.DownloadPath()

		if err := tx.Model(&models.Document{}).Where("id = ?", doc.ID).Updates(map[string]any{
			"file_key":     doc.FileKey,
			"file_name":    doc.FileName,
			"file_size":    doc.FileSize,
			"content_type": doc.ContentType,
			"checksum":     doc.Checksum,
			"uploaded_at":  doc.UploadedAt,
			"note":         doc.Note,
			"status":       doc.Status,
		}).Error; err != nil {
			return dbErr("save document", err)
		}
		if err := appendComment(tx, processID, ActorFrom(ctx), models.CommentDocumentAdded, fmt.Sprintf("%s: %s", doc.Name, summary)); err != nil {
			return err
		}
		note = models.Notification{
			Kind:      models.NotifyDocumentUploaded,
			Module:    "documentos",
			Title:     "Documento subido",
			Message:   fmt.Sprintf("%s (%s)", doc.Name, in.FileName),
			Priority:  models.NotificationLow,
			ProcessID: &processID,
		}
		return s.notes.Record(tx, &note)
	})
	if err != nil {
		s.discard(ctx, stored.Key)
		return doc, err
	}
	if previousKey != "" && previousKey != stored.Key {
		s.discard(ctx, previousKey)
	}
	s.notes.Dispatch(note)
	return doc, nil
}

func (s *DocumentService) discard(ctx context.Context, key string) {
	if err := s.store.Delete(ctx, key); err != nil {
		config.LogError(config.GetLogger(), "documents", "discard", "delete stored file", key, err)
	}
}

// DownloadURL signs a fresh link to the stored file.
func (s *DocumentService) DownloadURL(ctx context.Context, processID, docID uuid.UUID) (string, error) {
	doc, err := s.load(s.db.WithContext(ctx), processID, docID)
	if err != nil {
		return "", err
	}
	if doc.FileKey == "" {
		return "", &NotFoundError{Resource: "file for document", ID: docID.String()}
	}
	u, err := s.store.URL(ctx, doc.FileKey)
	if err != nil {
		return "", &PersistenceError{Op: "sign file url", Err: err}
	}
	return u, nil
}

// ToggleValidated flips the validated flag. Whether a file must be present
// first is a runtime setting.
func (s *DocumentService) ToggleValidated(ctx context.Context, processID, docID uuid.UUID) (models.Document, error) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return models.Document{}, err
	}
	var doc models.Document
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if doc, err = s.load(tx, processID, docID); err != nil {
			return err
		}
		if !doc.Validated && settings.RequireFileForValidation && !doc.HasFile() {
			return invalid("document %q has no file and cannot be validated", doc.Name)
		}
		doc.Validated = !doc.Validated
		if !doc.Validated && doc.Status == models.DocumentApproved {
			doc.Status = models.DocumentPending
		}
		doc.SyncStatus()
		if err := tx.Save(&doc).Error; err != nil {
			return dbErr("save document", err)
		}
		msg := "Documento validado: " + doc.Name
		if !doc.Validated {
			msg = "Validación retirada: " + doc.Name
		}
		if err := appendComment(tx, processID, ActorFrom(ctx), models.CommentFree, msg); err != nil {
			return err
		}
		return syncAutoProgress(tx, processID)
	})
	return doc, err
}

// SetStatus records a review outcome. Approving validates the document,
// any other status clears the flag.
func (s *DocumentService) SetStatus(ctx context.Context, processID, docID uuid.UUID, in SetDocumentStatusInput) (models.Document, error) {
	if err := validateInput(in); err != nil {
		return models.Document{}, err
	}
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return models.Document{}, err
	}
	var doc models.Document
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if doc, err = s.load(tx, processID, docID); err != nil {
			return err
		}
		switch in.Status {
		case models.DocumentApproved:
			if settings.RequireFileForValidation && !doc.HasFile() {
				return invalid("document %q has no file and cannot be approved", doc.Name)
			}
			doc.Validated = true
		case models.DocumentRejected:
			doc.Validated = false
			doc.Status = models.DocumentRejected
		case models.DocumentUploaded:
			if !doc.HasFile() {
				return invalid("document %q has no file", doc.Name)
			}
			doc.Validated = false
			doc.Status = models.DocumentUploaded
		default:
			doc.Validated = false
			doc.Status = models.DocumentPending
		}
		doc.SyncStatus()
		if reason := strings.TrimSpace(in.Reason); reason != "" {
			doc.Note = strings.TrimSpace(doc.Note + "\n" + reason)
		}
		if err := tx.Save(&doc).Error; err != nil {
			return dbErr("save document", err)
		}
		msg := fmt.Sprintf("Documento %s marcado como %s", doc.Name, doc.Status)
		if in.Reason != "" {
			msg += ": " + in.Reason
		}
		if err := appendComment(tx, processID, ActorFrom(ctx), models.CommentFree, msg); err != nil {
			return err
		}
		return syncAutoProgress(tx, processID)
	})
	return doc, err
}

// Remove deletes an optional document. Required documents and unconfirmed
// requests are rejected without touching the checklist.
func (s *DocumentService) Remove(ctx context.Context, processID, docID uuid.UUID, confirmed bool) error {
	var fileKey string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		doc, err := s.load(tx, processID, docID)
		if err != nil {
			return err
		}
		if doc.Required {
			return invalid("document %q is required and cannot be removed", doc.Name)
		}
		if !confirmed {
			return invalid("removing document %q needs confirmation", doc.Name)
		}
		if err := tx.Where("document_id = ?", doc.ID).Delete(&models.AIValidationResult{}).Error; err != nil {
			return dbErr("delete validations", err)
		}
		if err := tx.Delete(&doc).Error; err != nil {
			return dbErr("delete document", err)
		}
		fileKey = doc.FileKey
		if err := appendComment(tx, processID, ActorFrom(ctx), models.CommentFree, "Documento eliminado: "+doc.Name); err != nil {
			return err
		}
		return syncAutoProgress(tx, processID)
	})
	if err == nil && fileKey != "" {
		s.discard(ctx, fileKey)
	}
	return err
}

func humanSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	}
	return fmt.Sprintf("%d B", n)
}
