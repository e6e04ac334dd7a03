package services

import (
	"errors"
	"testing"
	"time"

	"customsdesk-backend/models"
	"customsdesk-backend/utils"
)

func TestChecklistDrivesProgress(t *testing.T) {
	app := newTestApp(t)
	ctx := testCtx()

	client := mustClient(t, app, "Alimentos SA")
	agency := mustAgency(t, app, "ANMAT")
	p := mustProcess(t, app, client.ID, agency.ID, "Registro de producto",
		DocumentInput{Name: "Formulario", Required: true},
		DocumentInput{Name: "Certificado", Required: true},
	)

	if p.State != models.StatePending {
		t.Fatalf("initial state = %s, want pending", p.State)
	}
	if p.Checklist.Total != 2 || p.Checklist.Completion != 0 {
		t.Fatalf("initial checklist = %+v", p.Checklist)
	}

	for _, d := range p.Documents {
		if _, err := app.Documents.ToggleValidated(ctx, p.ID, d.ID); err != nil {
			t.Fatalf("toggle %s: %v", d.Name, err)
		}
	}

	got, err := app.Processes.Get(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Checklist.Completion != 100 {
		t.Errorf("completion = %d, want 100", got.Checklist.Completion)
	}
	if got.Progress != 100 {
		t.Errorf("progress = %d, want 100", got.Progress)
	}
}

func TestRemoveRequiredDocumentRejected(t *testing.T) {
	app := newTestApp(t)
	ctx := testCtx()

	client := mustClient(t, app, "Alimentos SA")
	agency := mustAgency(t, app, "ANMAT")
	p := mustProcess(t, app, client.ID, agency.ID, "Importación",
		DocumentInput{Name: "Factura comercial", Required: true},
		DocumentInput{Name: "Foto del producto"},
	)
	required, optional := p.Documents[0], p.Documents[1]

	err := app.Documents.Remove(ctx, p.ID, required.ID, true)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("remove required: err = %v, want ValidationError", err)
	}
	docs, _ := app.Documents.List(ctx, p.ID)
	if len(docs) != 2 {
		t.Fatalf("checklist changed after rejected removal: %d documents", len(docs))
	}

	if err := app.Documents.Remove(ctx, p.ID, optional.ID, false); !errors.As(err, &verr) {
		t.Fatalf("unconfirmed remove: err = %v, want ValidationError", err)
	}

	if err := app.Documents.Remove(ctx, p.ID, optional.ID, true); err != nil {
		t.Fatalf("remove optional: %v", err)
	}
	docs, _ = app.Documents.List(ctx, p.ID)
	if len(docs) != 1 || docs[0].ID != required.ID {
		t.Fatalf("checklist after removal = %+v", docs)
	}
}

func TestChangeStateAppendsOneComment(t *testing.T) {
	app := newTestApp(t)
	ctx := testCtx()

	client := mustClient(t, app, "Alimentos SA")
	agency := mustAgency(t, app, "SENASA")
	p := mustProcess(t, app, client.ID, agency.ID, "Certificado sanitario")
	before := len(p.Comments)

	got, err := app.Processes.ChangeState(ctx, p.ID, ChangeStateInput{State: string(models.StateSubmitted)})
	if err != nil {
		t.Fatalf("change state: %v", err)
	}
	if got.State != models.StateSubmitted {
		t.Fatalf("state = %s, want submitted", got.State)
	}
	if len(got.Comments) != before+1 {
		t.Fatalf("comments = %d, want %d", len(got.Comments), before+1)
	}
	c := got.Comments[len(got.Comments)-1]
	if c.Kind != models.CommentStateChange || c.Before != models.StatePending || c.After != models.StateSubmitted {
		t.Errorf("state comment = %+v", c)
	}
	if c.Author != "tester" {
		t.Errorf("author = %q, want tester", c.Author)
	}

	if _, err := app.Processes.ChangeState(ctx, p.ID, ChangeStateInput{State: string(models.StateSubmitted)}); err == nil {
		t.Fatal("expected same-state transition to fail")
	}
	if _, err := app.Processes.ChangeState(ctx, p.ID, ChangeStateInput{State: "finished"}); err == nil {
		t.Fatal("expected unknown state to fail")
	}
}

func TestChangeStateStaleVersion(t *testing.T) {
	app := newTestApp(t)
	ctx := testCtx()

	client := mustClient(t, app, "Alimentos SA")
	agency := mustAgency(t, app, "ANMAT")
	p := mustProcess(t, app, client.ID, agency.ID, "Habilitación")

	stale := p.Version
	if _, err := app.Processes.ChangeState(ctx, p.ID, ChangeStateInput{State: "submitted", Version: &stale}); err != nil {
		t.Fatalf("first change: %v", err)
	}
	_, err := app.Processes.ChangeState(ctx, p.ID, ChangeStateInput{State: "under-review", Version: &stale})
	var cerr *ConflictError
	if !errors.As(err, &cerr) {
		t.Fatalf("err = %v, want ConflictError", err)
	}
}

func TestProcessDeleteAndRestore(t *testing.T) {
	app := newTestApp(t)
	ctx := testCtx()

	client := mustClient(t, app, "Alimentos SA")
	agency := mustAgency(t, app, "ANMAT")
	p := mustProcess(t, app, client.ID, agency.ID, "Registro")

	if err := app.Processes.Delete(ctx, p.ID); err != nil {
		t.Fatal(err)
	}
	var nf *NotFoundError
	if _, err := app.Processes.Get(ctx, p.ID); !errors.As(err, &nf) {
		t.Fatalf("get deleted: err = %v, want NotFoundError", err)
	}
	if _, err := app.Processes.Restore(ctx, p.ID); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if _, err := app.Processes.Get(ctx, p.ID); err != nil {
		t.Fatalf("get restored: %v", err)
	}
}

func TestPurgeAfterUndoWindow(t *testing.T) {
	app := newTestApp(t)
	ctx := testCtx()

	client := mustClient(t, app, "Alimentos SA")
	agency := mustAgency(t, app, "ANMAT")
	p := mustProcess(t, app, client.ID, agency.ID, "Registro", DocumentInput{Name: "Formulario", Required: true})
	if err := app.Processes.Delete(ctx, p.ID); err != nil {
		t.Fatal(err)
	}

	n, err := app.Processes.Purge(ctx)
	if err != nil || n != 0 {
		t.Fatalf("purge inside window = %d, %v", n, err)
	}

	timeNow = func() time.Time { return time.Now().Add(2 * time.Minute) }
	t.Cleanup(func() { timeNow = time.Now })

	n, err = app.Processes.Purge(ctx)
	if err != nil || n != 1 {
		t.Fatalf("purge after window = %d, %v", n, err)
	}
	var cerr *ConflictError
	var nf *NotFoundError
	if _, err := app.Processes.Restore(ctx, p.ID); !errors.As(err, &nf) && !errors.As(err, &cerr) {
		t.Fatalf("restore purged: err = %v", err)
	}
	var docs int64
	app.DB.Model(&models.Document{}).Where("process_id = ?", p.ID).Count(&docs)
	if docs != 0 {
		t.Errorf("documents left after purge: %d", docs)
	}
}

func TestTemplateSeedsProcess(t *testing.T) {
	app := newTestApp(t)
	ctx := testCtx()

	client := mustClient(t, app, "Alimentos SA")
	agency := mustAgency(t, app, "INAL")
	tpl, err := app.Templates.Create(ctx, TemplateInput{
		Name:              "Registro RNPA",
		AgencyID:          agency.ID,
		RequiredDocuments: []string{"Rótulo", "Análisis"},
		EstimatedDays:     30,
		EstimatedCost:     dec("1500"),
	})
	if err != nil {
		t.Fatalf("create template: %v", err)
	}

	p, err := app.Processes.Create(ctx, CreateProcessInput{
		Title:      "RNPA galletitas",
		ClientID:   client.ID,
		TemplateID: &tpl.ID,
		Documents:  []DocumentInput{{Name: "Nota de pedido"}},
	})
	if err != nil {
		t.Fatalf("create process: %v", err)
	}
	if p.AgencyID != agency.ID {
		t.Errorf("agency = %s, want %s", p.AgencyID, agency.ID)
	}
	if !p.Cost.Equal(dec("1500")) {
		t.Errorf("cost = %s, want 1500", p.Cost)
	}
	if p.DueDate == nil || utils.DaysBetween(p.StartDate, *p.DueDate) != 30 {
		t.Errorf("due date = %v, start = %v", p.DueDate, p.StartDate)
	}
	if p.Checklist.Total != 3 || p.Checklist.Required != 2 {
		t.Errorf("checklist = %+v", p.Checklist)
	}
}

func TestBoardHasSevenColumns(t *testing.T) {
	app := newTestApp(t)
	ctx := testCtx()

	client := mustClient(t, app, "Alimentos SA")
	agency := mustAgency(t, app, "ANMAT")
	a := mustProcess(t, app, client.ID, agency.ID, "Uno")
	mustProcess(t, app, client.ID, agency.ID, "Dos")
	if _, err := app.Processes.ChangeState(ctx, a.ID, ChangeStateInput{State: "approved"}); err != nil {
		t.Fatal(err)
	}

	cols, err := app.Processes.Board(ctx, ProcessFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(cols) != len(models.ProcessStates) {
		t.Fatalf("columns = %d, want %d", len(cols), len(models.ProcessStates))
	}
	counts := map[models.ProcessState]int{}
	for _, c := range cols {
		counts[c.State] = c.Count
	}
	if counts[models.StatePending] != 1 || counts[models.StateApproved] != 1 {
		t.Errorf("counts = %v", counts)
	}
}

func TestOverdueProjection(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	yesterday := now.AddDate(0, 0, -1)
	tomorrow := now.AddDate(0, 0, 1)

	ps := []models.Process{
		{Title: "vencido", State: models.StateSubmitted, DueDate: &yesterday},
		{Title: "aprobado", State: models.StateApproved, DueDate: &yesterday},
		{Title: "a tiempo", State: models.StatePending, DueDate: &tomorrow},
		{Title: "sin fecha", State: models.StatePending},
	}
	got := Overdue(ps, now)
	if len(got) != 1 || got[0].Title != "vencido" {
		t.Fatalf("overdue = %+v", got)
	}
}
