package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"customsdesk-backend/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type DocumentInput struct {
	Name     string `json:"name" validate:"required,max=200"`
	Required bool   `json:"required"`
}

type CreateProcessInput struct {
	Title       string           `json:"title" validate:"required,max=300"`
	Description string           `json:"description"`
	ClientID    uuid.UUID        `json:"clientId" validate:"required"`
	AgencyID    *uuid.UUID       `json:"agencyId" validate:"required_without=TemplateID"`
	TemplateID  *uuid.UUID       `json:"templateId"`
	BudgetID    *uuid.UUID       `json:"budgetId"`
	State       string           `json:"state"`
	Priority    models.Priority  `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	Cost        *decimal.Decimal `json:"cost"`
	Tags        []string         `json:"tags" validate:"dive,required,max=50"`
	Notes       string           `json:"notes"`
	StartDate   *time.Time       `json:"startDate"`
	DueDate     *time.Time       `json:"dueDate"`
	Documents   []DocumentInput  `json:"documents" validate:"dive"`
}

type UpdateProcessInput struct {
	Version     int              `json:"version" validate:"min=0"`
	Title       *string          `json:"title" validate:"omitempty,min=1,max=300"`
	Description *string          `json:"description"`
	ClientID    *uuid.UUID       `json:"clientId"`
	AgencyID    *uuid.UUID       `json:"agencyId"`
	Priority    *models.Priority `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	Cost        *decimal.Decimal `json:"cost"`
	Tags        []string         `json:"tags" validate:"omitempty,dive,required,max=50"`
	Notes       *string          `json:"notes"`
	StartDate   *time.Time       `json:"startDate"`
	DueDate     *time.Time       `json:"dueDate"`
	ClearDue    bool             `json:"clearDueDate"`
}

type ChangeStateInput struct {
	State   string `json:"state" validate:"required"`
	Version *int   `json:"version"`
	Note    string `json:"note" validate:"max=500"`
}

type ProcessFilter struct {
	State    models.ProcessState
	ClientID *uuid.UUID
	AgencyID *uuid.UUID
	BudgetID *uuid.UUID
	Priority models.Priority
	Tag      string
	DueFrom  *time.Time
	DueTo    *time.Time
	Search   string
	Invoiced *bool
}

// ProcessDetail is a process with its derived checklist figures.
type ProcessDetail struct {
	models.Process
	Checklist models.ChecklistStats `json:"checklist"`
	Overdue   bool                  `json:"overdue"`
}

func NewProcessDetail(p models.Process, at time.Time) ProcessDetail {
	return ProcessDetail{Process: p, Checklist: models.NewChecklistStats(p.Documents), Overdue: p.IsOverdue(at)}
}

type ProcessService struct {
	db         *gorm.DB
	notes      *NotificationService
	undoWindow time.Duration
}

func NewProcessService(db *gorm.DB, notes *NotificationService, undoWindow time.Duration) *ProcessService {
	return &ProcessService{db: db, notes: notes, undoWindow: undoWindow}
}

func (s *ProcessService) Create(ctx context.Context, in CreateProcessInput) (ProcessDetail, error) {
	if err := validateInput(in); err != nil {
		return ProcessDetail{}, err
	}
	var (
		proc models.Process
		note models.Notification
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		proc, note, err = s.create(ctx, tx, in)
		return err
	})
	if err != nil {
		return ProcessDetail{}, err
	}
	s.notes.Dispatch(note)
	return s.Get(ctx, proc.ID)
}

// create inserts the process, its seeded checklist and the opening comment
// inside tx. The returned notification is recorded but not dispatched.
func (s *ProcessService) create(ctx context.Context, tx *gorm.DB, in CreateProcessInput) (models.Process, models.Notification, error) {
	state := models.StatePending
	if in.State != "" {
		st, err := models.ParseProcessState(in.State)
		if err != nil {
			return models.Process{}, models.Notification{}, invalid("%v", err)
		}
		state = st
	}
	if in.Cost != nil && in.Cost.IsNegative() {
		return models.Process{}, models.Notification{}, invalid("cost cannot be negative")
	}

	var client models.Client
	if err := tx.First(&client, "id = ?", in.ClientID).Error; err != nil {
		return models.Process{}, models.Notification{}, lookupErr("client", in.ClientID, err)
	}

	start := timeNow()
	if in.StartDate != nil {
		start = *in.StartDate
	}

	proc := models.Process{
		Title:        strings.TrimSpace(in.Title),
		Description:  in.Description,
		ClientID:     in.ClientID,
		TemplateID:   in.TemplateID,
		BudgetID:     in.BudgetID,
		State:        state,
		Priority:     in.Priority,
		AutoProgress: true,
		Cost:         decimal.Zero,
		Tags:         cleanNames(in.Tags),
		Notes:        in.Notes,
		StartDate:    start,
		DueDate:      in.DueDate,
	}
	if proc.Priority == "" {
		proc.Priority = models.PriorityMedium
	}

	var docs []models.Document
	if in.TemplateID != nil {
		var tpl models.Template
		if err := tx.First(&tpl, "id = ?", *in.TemplateID).Error; err != nil {
			return models.Process{}, models.Notification{}, lookupErr("template", *in.TemplateID, err)
		}
		proc.AgencyID = tpl.AgencyID
		proc.Cost = tpl.EstimatedCost
		if proc.DueDate == nil && tpl.EstimatedDays > 0 {
			due := start.AddDate(0, 0, tpl.EstimatedDays)
			proc.DueDate = &due
		}
		for _, name := range tpl.RequiredDocuments {
			docs = append(docs, models.Document{Name: name, Required: true})
		}
	}
	if in.AgencyID != nil {
		proc.AgencyID = *in.AgencyID
	}
	if err := exists[models.Agency](tx, "agency", proc.AgencyID); err != nil {
		return models.Process{}, models.Notification{}, err
	}
	if in.Cost != nil {
		proc.Cost = *in.Cost
	}
	if proc.DueDate != nil && proc.DueDate.Before(proc.StartDate) {
		return models.Process{}, models.Notification{}, invalid("dueDate cannot be before startDate")
	}
	for _, d := range in.Documents {
		docs = append(docs, models.Document{Name: strings.TrimSpace(d.Name), Required: d.Required})
	}

	if err := tx.Omit("Documents", "Comments", "Client", "Agency").Create(&proc).Error; err != nil {
		return models.Process{}, models.Notification{}, dbErr("create process", err)
	}
	for i := range docs {
		docs[i].ProcessID = proc.ID
		docs[i].Position = i
		docs[i].SyncStatus()
	}
	if len(docs) > 0 {
		if err := tx.Create(&docs).Error; err != nil {
			return models.Process{}, models.Notification{}, dbErr("create documents", err)
		}
	}
	proc.Documents = docs

	if err := appendComment(tx, proc.ID, ActorFrom(ctx), models.CommentFree, "Proceso creado"); err != nil {
		return models.Process{}, models.Notification{}, err
	}

	note := models.Notification{
		Kind:      models.NotifyNewProcess,
		Module:    "procesos",
		Title:     "Nuevo proceso",
		Message:   fmt.Sprintf("%s para %s", proc.Title, client.Name),
		Priority:  models.NotificationMedium,
		ProcessID: &proc.ID,
		ClientID:  &proc.ClientID,
		BudgetID:  proc.BudgetID,
	}
	if proc.Priority == models.PriorityUrgent {
		note.Priority = models.NotificationHigh
	}
	if err := s.notes.Record(tx, &note); err != nil {
		return models.Process{}, models.Notification{}, err
	}
	return proc, note, nil
}

func appendComment(tx *gorm.DB, processID uuid.UUID, author string, kind models.CommentKind, content string) error {
	c := models.Comment{ProcessID: processID, Author: author, Kind: kind, Content: content}
	return dbErr("append comment", tx.Create(&c).Error)
}

func (s *ProcessService) List(ctx context.Context, f ProcessFilter) ([]models.Process, error) {
	q := s.db.WithContext(ctx).Model(&models.Process{}).
		Preload("Client").
		Preload("Agency").
		Preload("Documents", func(db *gorm.DB) *gorm.DB { return db.Order("position") })

	if f.State != "" {
		q = q.Where("state = ?", f.State)
	}
	if f.ClientID != nil {
		q = q.Where("client_id = ?", *f.ClientID)
	}
	if f.AgencyID != nil {
		q = q.Where("agency_id = ?", *f.AgencyID)
	}
	if f.BudgetID != nil {
		q = q.Where("budget_id = ?", *f.BudgetID)
	}
	if f.Priority != "" {
		q = q.Where("priority = ?", f.Priority)
	}
	if f.DueFrom != nil {
		q = q.Where("due_date >= ?", *f.DueFrom)
	}
	if f.DueTo != nil {
		q = q.Where("due_date <= ?", *f.DueTo)
	}
	if f.Invoiced != nil {
		q = q.Where("invoiced = ?", *f.Invoiced)
	}
	if f.Search != "" {
		p := likePattern(strings.ToLower(f.Search))
		q = q.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", p, p)
	}

	var out []models.Process
	if err := q.Order("start_date DESC").Find(&out).Error; err != nil {
		return nil, dbErr("list processes", err)
	}
	if f.Tag != "" {
		out = filterByTag(out, f.Tag)
	}
	return out, nil
}

func filterByTag(ps []models.Process, tag string) []models.Process {
	out := ps[:0]
	for _, p := range ps {
		for _, t := range p.Tags {
			if strings.EqualFold(t, tag) {
				out = append(out, p)
				break
			}
		}
	}
	return out
}

func (s *ProcessService) Get(ctx context.Context, id uuid.UUID) (ProcessDetail, error) {
	var p models.Process
	err := s.db.WithContext(ctx).
		Preload("Client").
		Preload("Agency").
		Preload("Documents", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Preload("Comments", func(db *gorm.DB) *gorm.DB { return db.Order("created_at") }).
		First(&p, "id = ?", id).Error
	if err != nil {
		return ProcessDetail{}, lookupErr("process", id, err)
	}
	return NewProcessDetail(p, timeNow()), nil
}

func (s *ProcessService) Update(ctx context.Context, id uuid.UUID, in UpdateProcessInput) (ProcessDetail, error) {
	if err := validateInput(in); err != nil {
		return ProcessDetail{}, err
	}
	var note models.Notification
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.Process
		if err := tx.First(&p, "id = ?", id).Error; err != nil {
			return lookupErr("process", id, err)
		}

		values := map[string]any{}
		var changed []string
		set := func(col, label string, v any) {
			values[col] = v
			changed = append(changed, label)
		}
		if in.Title != nil {
			set("title", "título", strings.TrimSpace(*in.Title))
		}
		if in.Description != nil {
			set("description", "descripción", *in.Description)
		}
		if in.ClientID != nil {
			if err := exists[models.Client](tx, "client", *in.ClientID); err != nil {
				return err
			}
			set("client_id", "cliente", *in.ClientID)
		}
		if in.AgencyID != nil {
			if err := exists[models.Agency](tx, "agency", *in.AgencyID); err != nil {
				return err
			}
			set("agency_id", "organismo", *in.AgencyID)
		}
		if in.Priority != nil {
			set("priority", "prioridad", *in.Priority)
		}
		if in.Cost != nil {
			if in.Cost.IsNegative() {
				return invalid("cost cannot be negative")
			}
			set("cost", "costo", *in.Cost)
		}
		if in.Tags != nil {
			set("tags", "etiquetas", datatypes.JSONSlice[string](cleanNames(in.Tags)))
		}
		if in.Notes != nil {
			set("notes", "notas", *in.Notes)
		}
		start := p.StartDate
		if in.StartDate != nil {
			start = *in.StartDate
			set("start_date", "fecha de inicio", start)
		}
		due := p.DueDate
		switch {
		case in.ClearDue:
			due = nil
			set("due_date", "vencimiento", nil)
		case in.DueDate != nil:
			due = in.DueDate
			set("due_date", "vencimiento", *in.DueDate)
		}
		if due != nil && due.Before(start) {
			return invalid("dueDate cannot be before startDate")
		}
		if len(changed) == 0 {
			return invalid("no fields to update")
		}

		if err := saveVersioned(tx, &models.Process{}, id, in.Version, values); err != nil {
			return err
		}
		content := "Proceso modificado: " + strings.Join(changed, ", ")
		if err := appendComment(tx, id, ActorFrom(ctx), models.CommentFree, content); err != nil {
			return err
		}
		note = models.Notification{
			Kind:      models.NotifyProcessModified,
			Module:    "procesos",
			Title:     "Proceso modificado",
			Message:   fmt.Sprintf("%s: %s", p.Title, strings.Join(changed, ", ")),
			Priority:  models.NotificationLow,
			ProcessID: &p.ID,
			ClientID:  &p.ClientID,
		}
		return s.notes.Record(tx, &note)
	})
	if err != nil {
		return ProcessDetail{}, err
	}
	s.notes.Dispatch(note)
	return s.Get(ctx, id)
}

// ChangeState moves a process to any other state and appends exactly one
// state-change comment recording the previous state.
func (s *ProcessService) ChangeState(ctx context.Context, id uuid.UUID, in ChangeStateInput) (ProcessDetail, error) {
	if err := validateInput(in); err != nil {
		return ProcessDetail{}, err
	}
	target, err := models.ParseProcessState(in.State)
	if err != nil {
		return ProcessDetail{}, invalid("%v", err)
	}

	var note models.Notification
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.Process
		if err := tx.First(&p, "id = ?", id).Error; err != nil {
			return lookupErr("process", id, err)
		}
		if p.State == target {
			return invalid("process is already in state %s", target)
		}
		version := p.Version
		if in.Version != nil {
			version = *in.Version
		}
		if err := saveVersioned(tx, &models.Process{}, id, version, map[string]any{"state": target}); err != nil {
			return err
		}

		content := fmt.Sprintf("Estado cambiado de %s a %s", p.State.Label(), target.Label())
		if extra := strings.TrimSpace(in.Note); extra != "" {
			content += ". " + extra
		}
		c := models.Comment{
			ProcessID: id,
			Author:    ActorFrom(ctx),
			Kind:      models.CommentStateChange,
			Content:   content,
			Before:    p.State,
			After:     target,
		}
		if err := tx.Create(&c).Error; err != nil {
			return dbErr("append comment", err)
		}

		note = models.Notification{
			Kind:      models.NotifyProcessModified,
			Module:    "procesos",
			Title:     "Cambio de estado",
			Message:   fmt.Sprintf("%s: %s", p.Title, content),
			Priority:  models.NotificationMedium,
			ProcessID: &p.ID,
			ClientID:  &p.ClientID,
		}
		if target == models.StateRejected {
			note.Priority = models.NotificationHigh
		}
		return s.notes.Record(tx, &note)
	})
	if err != nil {
		return ProcessDetail{}, err
	}
	s.notes.Dispatch(note)
	return s.Get(ctx, id)
}

// SetProgress overrides the derived progress and turns auto progress off.
func (s *ProcessService) SetProgress(ctx context.Context, id uuid.UUID, progress int) (ProcessDetail, error) {
	if progress < 0 || progress > 100 {
		return ProcessDetail{}, invalid("progress must be between 0 and 100")
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Process{}).Where("id = ?", id).
			Updates(map[string]any{"progress": progress, "auto_progress": false})
		if res.Error != nil {
			return dbErr("set progress", res.Error)
		}
		if res.RowsAffected == 0 {
			return &NotFoundError{Resource: "process", ID: id.String()}
		}
		return appendComment(tx, id, ActorFrom(ctx), models.CommentFree, fmt.Sprintf("Progreso ajustado manualmente a %d%%", progress))
	})
	if err != nil {
		return ProcessDetail{}, err
	}
	return s.Get(ctx, id)
}

// SetAutoProgress toggles whether progress follows the checklist
// completion. Turning it on recomputes progress immediately.
func (s *ProcessService) SetAutoProgress(ctx context.Context, id uuid.UUID, enabled bool) (ProcessDetail, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Process{}).Where("id = ?", id).Update("auto_progress", enabled)
		if res.Error != nil {
			return dbErr("set auto progress", res.Error)
		}
		if res.RowsAffected == 0 {
			return &NotFoundError{Resource: "process", ID: id.String()}
		}
		return syncAutoProgress(tx, id)
	})
	if err != nil {
		return ProcessDetail{}, err
	}
	return s.Get(ctx, id)
}

// syncAutoProgress copies the checklist completion into progress when the
// process follows its documents.
func syncAutoProgress(tx *gorm.DB, processID uuid.UUID) error {
	var p models.Process
	if err := tx.Select("id", "auto_progress").First(&p, "id = ?", processID).Error; err != nil {
		return lookupErr("process", processID, err)
	}
	if !p.AutoProgress {
		return nil
	}
	var docs []models.Document
	if err := tx.Where("process_id = ?", processID).Find(&docs).Error; err != nil {
		return dbErr("load documents", err)
	}
	progress := models.ClampProgress(models.NewChecklistStats(docs).Completion)
	return dbErr("update progress", tx.Model(&models.Process{}).Where("id = ?", processID).Update("progress", progress).Error)
}

func (s *ProcessService) AddComment(ctx context.Context, id uuid.UUID, author, content string) (models.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return models.Comment{}, invalid("content is required")
	}
	if author = strings.TrimSpace(author); author == "" {
		author = ActorFrom(ctx)
	}
	db := s.db.WithContext(ctx)
	if err := exists[models.Process](db, "process", id); err != nil {
		return models.Comment{}, err
	}
	c := models.Comment{ProcessID: id, Author: author, Kind: models.CommentFree, Content: content}
	if err := db.Create(&c).Error; err != nil {
		return c, dbErr("append comment", err)
	}
	return c, nil
}

func (s *ProcessService) MarkInvoiced(ctx context.Context, id uuid.UUID, invoiced bool) (ProcessDetail, error) {
	res := s.db.WithContext(ctx).Model(&models.Process{}).Where("id = ?", id).Update("invoiced", invoiced)
	if res.Error != nil {
		return ProcessDetail{}, dbErr("mark invoiced", res.Error)
	}
	if res.RowsAffected == 0 {
		return ProcessDetail{}, &NotFoundError{Resource: "process", ID: id.String()}
	}
	return s.Get(ctx, id)
}

// Delete hides the process. Documents and comments stay until the purge
// so a restore inside the undo window brings everything back.
func (s *ProcessService) Delete(ctx context.Context, id uuid.UUID) error {
	return softDelete[models.Process](s.db.WithContext(ctx), "process", id)
}

func (s *ProcessService) Restore(ctx context.Context, id uuid.UUID) (ProcessDetail, error) {
	if err := restoreWithin[models.Process](s.db.WithContext(ctx), "process", id, s.undoWindow); err != nil {
		return ProcessDetail{}, err
	}
	return s.Get(ctx, id)
}

// Purge hard deletes processes whose undo window has passed, together with
// everything they own.
func (s *ProcessService) Purge(ctx context.Context) (int, error) {
	cutoff := timeNow().Add(-s.undoWindow)
	var ids []uuid.UUID
	err := s.db.WithContext(ctx).Unscoped().Model(&models.Process{}).
		Where("deleted_at IS NOT NULL AND deleted_at < ?", cutoff).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, dbErr("find expired processes", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		docIDs := tx.Model(&models.Document{}).Select("id").Where("process_id IN ?", ids)
		if err := tx.Where("document_id IN (?)", docIDs).Delete(&models.AIValidationResult{}).Error; err != nil {
			return dbErr("purge validations", err)
		}
		if err := tx.Where("process_id IN ?", ids).Delete(&models.Document{}).Error; err != nil {
			return dbErr("purge documents", err)
		}
		if err := tx.Where("process_id IN ?", ids).Delete(&models.Comment{}).Error; err != nil {
			return dbErr("purge comments", err)
		}
		return dbErr("purge processes", tx.Unscoped().Where("id IN ?", ids).Delete(&models.Process{}).Error)
	})
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// DueSoon lists open processes due between now and now+within.
func (s *ProcessService) DueSoon(ctx context.Context, within time.Duration) ([]models.Process, error) {
	now := timeNow()
	until := now.Add(within)
	ps, err := s.List(ctx, ProcessFilter{DueFrom: &now, DueTo: &until})
	if err != nil {
		return nil, err
	}
	out := ps[:0]
	for _, p := range ps {
		if !p.State.Terminal() {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate.Before(*out[j].DueDate) })
	return out, nil
}
