package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"customsdesk-backend/config"
	"customsdesk-backend/models"
	"customsdesk-backend/utils"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ValidationRequest struct {
	DocumentID  uuid.UUID `json:"documentId"`
	ProcessID   uuid.UUID `json:"processId"`
	Name        string    `json:"name"`
	FileURL     string    `json:"fileUrl,omitempty"`
	FileName    string    `json:"fileName,omitempty"`
	ContentType string    `json:"contentType,omitempty"`
}

type ValidationOutcome struct {
	Confidence    int            `json:"confidence"`
	ExtractedText string         `json:"extractedText"`
	Fields        map[string]any `json:"extractedFields"`
	Errors        []string       `json:"errors"`
	Suggestions   []string       `json:"suggestions"`
}

// DocumentValidator is the external document checker. Its output is shown
// to the operator as is.
type DocumentValidator interface {
	Validate(ctx context.Context, req ValidationRequest) (ValidationOutcome, error)
}

type HTTPValidator struct {
	url    string
	client *http.Client
}

func NewHTTPValidator(url string) *HTTPValidator {
	return &HTTPValidator{url: url, client: &http.Client{}}
}

func (v *HTTPValidator) Validate(ctx context.Context, req ValidationRequest) (ValidationOutcome, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return ValidationOutcome{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, v.url, bytes.NewReader(body))
	if err != nil {
		return ValidationOutcome{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(httpReq)
	if err != nil {
		return ValidationOutcome{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return ValidationOutcome{}, fmt.Errorf("validation service returned %s", resp.Status)
	}

	var out ValidationOutcome
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return ValidationOutcome{}, fmt.Errorf("decode validation response: %w", err)
	}
	if out.Confidence < 0 || out.Confidence > 100 {
		return ValidationOutcome{}, fmt.Errorf("confidence %d out of range", out.Confidence)
	}
	return out, nil
}

// SimulatedValidator answers after Delay with a canned result derived from
// the document metadata. Used when no validation endpoint is configured.
type SimulatedValidator struct {
	Delay time.Duration
}

func (v SimulatedValidator) Validate(ctx context.Context, req ValidationRequest) (ValidationOutcome, error) {
	select {
	case <-ctx.Done():
		return ValidationOutcome{}, ctx.Err()
	case <-time.After(v.Delay):
	}

	if req.FileURL == "" {
		return ValidationOutcome{
			Confidence:  0,
			Fields:      map[string]any{"documento": req.Name},
			Errors:      []string{"El documento no tiene un archivo adjunto"},
			Suggestions: []string{"Suba el archivo antes de solicitar la validación"},
		}, nil
	}
	return ValidationOutcome{
		Confidence:    87,
		ExtractedText: fmt.Sprintf("Documento %s (%s)", req.Name, req.FileName),
		Fields: map[string]any{
			"documento":   req.Name,
			"archivo":     req.FileName,
			"contentType": req.ContentType,
		},
		Errors:      []string{},
		Suggestions: []string{"Verifique que la firma y el sello sean legibles"},
	}, nil
}

type validationJob struct {
	cancel    context.CancelFunc
	cancelled bool
	done      chan struct{}
}

// AIValidationService runs validations in the background. Each job gets
// its own timeout and can be cancelled; Shutdown cancels the rest.
type AIValidationService struct {
	db        *gorm.DB
	validator DocumentValidator
	notes     *NotificationService
	store     utils.FileStore
	timeout   time.Duration
	logger    *logrus.Logger

	root context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup

	// mu guards jobs and closed; wg.Add only happens under mu while open
	mu     sync.Mutex
	jobs   map[uuid.UUID]*validationJob
	closed bool
}

func NewAIValidationService(db *gorm.DB, validator DocumentValidator, notes *NotificationService, store utils.FileStore, timeout time.Duration) *AIValidationService {
	root, stop := context.WithCancel(context.Background())
	return &AIValidationService{
		db:        db,
		validator: validator,
		notes:     notes,
		store:     store,
		timeout:   timeout,
		logger:    config.GetLogger(),
		root:      root,
		stop:      stop,
		jobs:      make(map[uuid.UUID]*validationJob),
	}
}

// Submit records a pending result for the document and starts validating
// it. It returns as soon as the result row exists.
func (s *AIValidationService) Submit(ctx context.Context, documentID uuid.UUID) (models.AIValidationResult, error) {
	if s.isClosed() {
		return models.AIValidationResult{}, conflict("validation service is shutting down")
	}
	var doc models.Document
	if err := s.db.WithContext(ctx).First(&doc, "id = ?", documentID).Error; err != nil {
		return models.AIValidationResult{}, lookupErr("document", documentID, err)
	}
	if err := exists[models.Process](s.db.WithContext(ctx), "process", doc.ProcessID); err != nil {
		return models.AIValidationResult{}, err
	}

	req := ValidationRequest{
		DocumentID:  doc.ID,
		ProcessID:   doc.ProcessID,
		Name:        doc.Name,
		FileName:    doc.FileName,
		ContentType: doc.ContentType,
	}
	if doc.HasFile() && s.store != nil {
		u, err := s.store.URL(ctx, doc.FileKey)
		if err != nil {
			return models.AIValidationResult{}, &PersistenceError{Op: "sign file url", Err: err}
		}
		req.FileURL = u
	}

	result := models.AIValidationResult{DocumentID: doc.ID, Status: models.ValidationPending}
	if err := s.db.WithContext(ctx).Create(&result).Error; err != nil {
		return result, dbErr("create validation", err)
	}

	jobCtx, cancel := context.WithTimeout(s.root, s.timeout)
	job := &validationJob{cancel: cancel, done: make(chan struct{})}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		cancel()
		return s.abandon(ctx, result)
	}
	s.jobs[result.ID] = job
	s.wg.Add(1)
	s.mu.Unlock()

	go s.run(jobCtx, result.ID, job, req)
	return result, nil
}

// abandon fails a result whose job was never started.
func (s *AIValidationService) abandon(ctx context.Context, result models.AIValidationResult) (models.AIValidationResult, error) {
	now := timeNow()
	result.Status = models.ValidationError
	result.ErrorMessage = "cancelled"
	result.ProcessedAt = &now
	if err := s.db.WithContext(ctx).Save(&result).Error; err != nil {
		return result, dbErr("cancel validation", err)
	}
	return result, conflict("validation service is shutting down")
}

func (s *AIValidationService) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *AIValidationService) run(ctx context.Context, resultID uuid.UUID, job *validationJob, req ValidationRequest) {
	defer s.wg.Done()
	defer close(job.done)
	defer job.cancel()
	defer func() {
		s.mu.Lock()
		delete(s.jobs, resultID)
		s.mu.Unlock()
	}()

	// writes use a detached context so a cancelled job still records why
	db := s.db.WithContext(context.Background())
	if err := db.Model(&models.AIValidationResult{}).Where("id = ?", resultID).
		Update("status", models.ValidationProcessing).Error; err != nil {
		config.LogError(s.logger, "ai_validation", "run", "mark processing", resultID, err)
	}

	outcome, err := s.validator.Validate(ctx, req)
	s.mu.Lock()
	cancelled := job.cancelled
	s.mu.Unlock()

	now := timeNow()
	values := map[string]any{"processed_at": now}
	switch {
	case cancelled || errors.Is(err, context.Canceled):
		// cancelled stays cancelled even when the validator returned a result
		values["status"] = models.ValidationError
		values["error_message"] = "cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		values["status"] = models.ValidationError
		values["error_message"] = "timed out"
	case err != nil:
		values["status"] = models.ValidationError
		values["error_message"] = err.Error()
	default:
		values["status"] = models.ValidationCompleted
		values["confidence"] = outcome.Confidence
		values["extracted_text"] = outcome.ExtractedText
		values["extracted_fields"] = jsonMap(outcome.Fields)
		values["errors"] = jsonStrings(outcome.Errors)
		values["suggestions"] = jsonStrings(outcome.Suggestions)
		values["error_message"] = ""
	}
	if err := db.Model(&models.AIValidationResult{}).Where("id = ?", resultID).Updates(values).Error; err != nil {
		config.LogError(s.logger, "ai_validation", "run", "save result", resultID, err)
		return
	}

	if values["status"] == models.ValidationCompleted {
		s.logger.WithFields(logrus.Fields{"result": resultID, "confidence": outcome.Confidence}).Info("document validation completed")
	}
	note := models.Notification{
		Kind:      models.NotifyAIValidation,
		Module:    "validacion",
		Title:     "Validación de documento",
		Priority:  models.NotificationLow,
		ProcessID: &req.ProcessID,
	}
	if values["status"] == models.ValidationCompleted {
		note.Message = fmt.Sprintf("%s: confianza %d%%", req.Name, outcome.Confidence)
	} else {
		note.Message = fmt.Sprintf("%s: %v", req.Name, values["error_message"])
		note.Priority = models.NotificationMedium
	}
	if _, err := s.notes.Notify(context.Background(), note); err != nil {
		config.LogError(s.logger, "ai_validation", "run", "notify", resultID, err)
	}
}

func (s *AIValidationService) Get(ctx context.Context, id uuid.UUID) (models.AIValidationResult, error) {
	return getByID[models.AIValidationResult](ctx, s.db, "validation", id)
}

func (s *AIValidationService) ListForDocument(ctx context.Context, documentID uuid.UUID) ([]models.AIValidationResult, error) {
	var out []models.AIValidationResult
	err := s.db.WithContext(ctx).Where("document_id = ?", documentID).Order("created_at DESC").Find(&out).Error
	return out, dbErr("list validations", err)
}

// Cancel stops an outstanding validation and marks it as errored.
func (s *AIValidationService) Cancel(ctx context.Context, id uuid.UUID) (models.AIValidationResult, error) {
	s.mu.Lock()
	job, running := s.jobs[id]
	if running {
		job.cancelled = true
		job.cancel()
	}
	s.mu.Unlock()

	if running {
		select {
		case <-job.done:
		case <-ctx.Done():
			return models.AIValidationResult{}, ctx.Err()
		}
		return s.Get(ctx, id)
	}

	result, err := s.Get(ctx, id)
	if err != nil {
		return result, err
	}
	if result.Status.Done() {
		return result, conflict("validation %s already finished with status %s", id, result.Status)
	}
	// no job behind it, e.g. after a restart
	now := timeNow()
	result.Status = models.ValidationError
	result.ErrorMessage = "cancelled"
	result.ProcessedAt = &now
	if err := s.db.WithContext(ctx).Save(&result).Error; err != nil {
		return result, dbErr("cancel validation", err)
	}
	return result, nil
}

// Retry submits the document of a finished validation again.
func (s *AIValidationService) Retry(ctx context.Context, id uuid.UUID) (models.AIValidationResult, error) {
	prev, err := s.Get(ctx, id)
	if err != nil {
		return prev, err
	}
	if !prev.Status.Done() {
		return prev, conflict("validation %s is still %s", id, prev.Status)
	}
	return s.Submit(ctx, prev.DocumentID)
}

// Wait blocks until the validation id is no longer running.
func (s *AIValidationService) Wait(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	job, ok := s.jobs[id]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	select {
	case <-job.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// FailStale marks results left pending or processing by a previous run.
func (s *AIValidationService) FailStale(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.AIValidationResult{}).
		Where("status IN ?", []models.ValidationStatus{models.ValidationPending, models.ValidationProcessing}).
		Updates(map[string]any{"status": models.ValidationError, "error_message": "interrupted", "processed_at": timeNow()})
	return res.RowsAffected, dbErr("fail stale validations", res.Error)
}

func (s *AIValidationService) Shutdown() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.stop()
	s.wg.Wait()
}

func jsonMap(m map[string]any) datatypes.JSONMap {
	if m == nil {
		return datatypes.JSONMap{}
	}
	return datatypes.JSONMap(m)
}

func jsonStrings(v []string) datatypes.JSONSlice[string] {
	if v == nil {
		v = []string{}
	}
	return datatypes.JSONSlice[string](v)
}
