package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"customsdesk-backend/models"
	"customsdesk-backend/utils"
)

var pdfBody = []byte("%PDF-1.4\n1 0 obj << /Type /Catalog >> endobj\ntrailer << >>\n%%EOF\n")

func upload(name string, body []byte) UploadInput {
	return UploadInput{FileName: name, Size: int64(len(body)), Body: bytes.NewReader(body)}
}

func TestUploadKeepsValidatedFlag(t *testing.T) {
	app := newTestApp(t)
	ctx := testCtx()
	client := mustClient(t, app, "Alimentos SA")
	agency := mustAgency(t, app, "ANMAT")
	p := mustProcess(t, app, client.ID, agency.ID, "Registro", DocumentInput{Name: "Formulario", Required: true})
	doc := p.Documents[0]

	got, err := app.Documents.Upload(ctx, p.ID, doc.ID, upload("formulario.pdf", pdfBody))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if got.Validated {
		t.Error("upload must not validate the document")
	}
	if got.Status != models.DocumentUploaded || got.ContentType != "application/pdf" {
		t.Errorf("status = %s content type = %s", got.Status, got.ContentType)
	}
	if got.FileSize != int64(len(pdfBody)) || got.Checksum == "" {
		t.Errorf("size = %d checksum = %q", got.FileSize, got.Checksum)
	}
	if !strings.Contains(got.Note, "formulario.pdf") {
		t.Errorf("note = %q", got.Note)
	}

	link, err := app.Documents.DownloadURL(ctx, p.ID, doc.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(link, "/files/") || !strings.Contains(link, "token=") {
		t.Errorf("download url = %s", link)
	}

	stats, _ := app.Documents.Stats(ctx, p.ID)
	if stats.Uploaded != 1 || stats.Validated != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestUploadRejectsUnsupportedFiles(t *testing.T) {
	app := newTestApp(t)
	ctx := testCtx()
	client := mustClient(t, app, "Alimentos SA")
	agency := mustAgency(t, app, "ANMAT")
	p := mustProcess(t, app, client.ID, agency.ID, "Registro", DocumentInput{Name: "Formulario", Required: true})
	doc := p.Documents[0]

	tests := []struct {
		name string
		in   UploadInput
	}{
		{"executable", upload("setup.exe", []byte("MZ\x90\x00"))},
		{"pdf extension with text body", upload("fake.pdf", []byte("just some text"))},
		{"empty", UploadInput{FileName: "vacio.pdf"}},
		{"too large", UploadInput{FileName: "grande.pdf", Size: utils.MaxUploadSize + 1, Body: bytes.NewReader(pdfBody)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := app.Documents.Upload(ctx, p.ID, doc.ID, tt.in)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("err = %v, want ValidationError", err)
			}
		})
	}
}

func TestUploadHeldLockConflicts(t *testing.T) {
	app := newTestApp(t)
	ctx := testCtx()
	client := mustClient(t, app, "Alimentos SA")
	agency := mustAgency(t, app, "ANMAT")
	p := mustProcess(t, app, client.ID, agency.ID, "Registro", DocumentInput{Name: "Formulario", Required: true})
	doc := p.Documents[0]

	release, err := app.Documents.locker.Acquire(ctx, "document-upload:"+doc.ID.String(), time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	defer release()

	_, err = app.Documents.Upload(ctx, p.ID, doc.ID, upload("formulario.pdf", pdfBody))
	var cerr *ConflictError
	if !errors.As(err, &cerr) {
		t.Fatalf("err = %v, want ConflictError", err)
	}
}

func TestRequireFileForValidation(t *testing.T) {
	app := newTestApp(t)
	ctx := testCtx()
	client := mustClient(t, app, "Alimentos SA")
	agency := mustAgency(t, app, "ANMAT")
	p := mustProcess(t, app, client.ID, agency.ID, "Registro", DocumentInput{Name: "Formulario", Required: true})
	doc := p.Documents[0]

	on := true
	if _, err := app.Settings.Update(ctx, SettingsInput{RequireFileForValidation: &on}); err != nil {
		t.Fatal(err)
	}
	var verr *ValidationError
	if _, err := app.Documents.ToggleValidated(ctx, p.ID, doc.ID); !errors.As(err, &verr) {
		t.Fatalf("toggle without file: err = %v, want ValidationError", err)
	}

	if _, err := app.Documents.Upload(ctx, p.ID, doc.ID, upload("formulario.pdf", pdfBody)); err != nil {
		t.Fatal(err)
	}
	got, err := app.Documents.ToggleValidated(ctx, p.ID, doc.ID)
	if err != nil {
		t.Fatalf("toggle with file: %v", err)
	}
	if !got.Validated || got.Status != models.DocumentApproved {
		t.Errorf("validated = %v status = %s", got.Validated, got.Status)
	}
}

func TestAIValidationCompletes(t *testing.T) {
	app := newTestApp(t)
	ctx := testCtx()
	client := mustClient(t, app, "Alimentos SA")
	agency := mustAgency(t, app, "ANMAT")
	p := mustProcess(t, app, client.ID, agency.ID, "Registro", DocumentInput{Name: "Formulario", Required: true})
	doc := p.Documents[0]
	if _, err := app.Documents.Upload(ctx, p.ID, doc.ID, upload("formulario.pdf", pdfBody)); err != nil {
		t.Fatal(err)
	}

	res, err := app.Validations.Submit(ctx, doc.ID)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Status != models.ValidationPending {
		t.Errorf("submitted status = %s", res.Status)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := app.Validations.Wait(waitCtx, res.ID); err != nil {
		t.Fatal(err)
	}
	got, err := app.Validations.Get(ctx, res.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.ValidationCompleted || got.Confidence <= 0 || got.ProcessedAt == nil {
		t.Errorf("result = %s confidence %d processed %v", got.Status, got.Confidence, got.ProcessedAt)
	}

	// validation never flips the checklist flag on its own
	d, _ := app.Documents.List(ctx, p.ID)
	if d[0].Validated {
		t.Error("AI validation must not validate the document")
	}

	if _, err := app.Validations.Cancel(ctx, res.ID); err == nil {
		t.Error("expected cancel of a finished validation to fail")
	}
	again, err := app.Validations.Retry(ctx, res.ID)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if again.ID == res.ID || again.DocumentID != doc.ID {
		t.Errorf("retry result = %+v", again)
	}
	_ = app.Validations.Wait(waitCtx, again.ID)
}

func TestAIValidationCancel(t *testing.T) {
	db := newTestDB(t)
	notes := NewNotificationService(db)
	svc := NewAIValidationService(db, SimulatedValidator{Delay: time.Hour}, notes, nil, time.Hour)
	t.Cleanup(svc.Shutdown)

	processes := NewProcessService(db, notes, time.Minute)
	clients := NewClientService(db, notes, time.Minute)
	agencies := NewAgencyService(db, time.Minute)
	ctx := testCtx()

	c, err := clients.Create(ctx, CreateClientInput{Name: "Alimentos SA", TaxCategory: models.TaxRegistered})
	if err != nil {
		t.Fatal(err)
	}
	a, err := agencies.Create(ctx, AgencyInput{Name: "ANMAT", Type: models.AgencyPublic})
	if err != nil {
		t.Fatal(err)
	}
	p, err := processes.Create(ctx, CreateProcessInput{Title: "Registro", ClientID: c.ID, AgencyID: &a.ID, Documents: []DocumentInput{{Name: "Formulario"}}})
	if err != nil {
		t.Fatal(err)
	}

	res, err := svc.Submit(ctx, p.Documents[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	got, err := svc.Cancel(ctx, res.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got.Status != models.ValidationError || got.ErrorMessage != "cancelled" {
		t.Errorf("cancelled result = %s %q", got.Status, got.ErrorMessage)
	}
}

// slowStore runs beforePut ahead of the real write, like a transfer that
// takes long enough for someone else to edit the checklist.
type slowStore struct {
	utils.FileStore
	beforePut func()
}

func (s slowStore) Put(ctx context.Context, key, contentType string, r io.Reader) (utils.StoredFile, error) {
	s.beforePut()
	return s.FileStore.Put(ctx, key, contentType, r)
}

func TestUploadKeepsReviewMadeDuringTransfer(t *testing.T) {
	app := newTestApp(t)
	ctx := testCtx()
	client := mustClient(t, app, "Alimentos SA")
	agency := mustAgency(t, app, "ANMAT")
	p := mustProcess(t, app, client.ID, agency.ID, "Registro", DocumentInput{Name: "Formulario", Required: true})
	doc := p.Documents[0]

	app.Documents.store = slowStore{FileStore: app.Documents.store, beforePut: func() {
		if _, err := app.Documents.ToggleValidated(ctx, p.ID, doc.ID); err != nil {
			t.Errorf("toggle while uploading: %v", err)
		}
	}}

	got, err := app.Documents.Upload(ctx, p.ID, doc.ID, upload("formulario.pdf", pdfBody))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !got.Validated || got.Status != models.DocumentApproved {
		t.Errorf("returned document validated=%v status=%s", got.Validated, got.Status)
	}
	if got.FileURL == "" || got.FileURL != got.DownloadPath() {
		t.Errorf("file url = %q", got.FileURL)
	}

	docs, err := app.Documents.List(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	stored := docs[0]
	if !stored.Validated || stored.Status != models.DocumentApproved {
		t.Errorf("stored document validated=%v status=%s", stored.Validated, stored.Status)
	}
	if stored.FileName != "formulario.pdf" || !strings.Contains(stored.Note, "formulario.pdf") {
		t.Errorf("file fields = %q note %q", stored.FileName, stored.Note)
	}
	if strings.Contains(stored.FileURL, "token=") {
		t.Errorf("listed file url carries an expiring token: %s", stored.FileURL)
	}
}

// lateValidator ignores cancellation and reports success once its context ends.
type lateValidator struct{}

func (lateValidator) Validate(ctx context.Context, _ ValidationRequest) (ValidationOutcome, error) {
	<-ctx.Done()
	return ValidationOutcome{Confidence: 90}, nil
}

func TestCancelWinsOverLateSuccess(t *testing.T) {
	app := newTestApp(t)
	ctx := testCtx()
	client := mustClient(t, app, "Alimentos SA")
	agency := mustAgency(t, app, "ANMAT")
	p := mustProcess(t, app, client.ID, agency.ID, "Registro", DocumentInput{Name: "Formulario"})

	svc := NewAIValidationService(app.DB, lateValidator{}, app.Notifications, app.Store, time.Hour)
	t.Cleanup(svc.Shutdown)

	res, err := svc.Submit(ctx, p.Documents[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	got, err := svc.Cancel(ctx, res.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got.Status != models.ValidationError || got.ErrorMessage != "cancelled" || got.Confidence != 0 {
		t.Errorf("result = %s %q confidence %d", got.Status, got.ErrorMessage, got.Confidence)
	}
}

func TestSubmitDuringShutdown(t *testing.T) {
	app := newTestApp(t)
	ctx := testCtx()
	client := mustClient(t, app, "Alimentos SA")
	agency := mustAgency(t, app, "ANMAT")
	p := mustProcess(t, app, client.ID, agency.ID, "Registro", DocumentInput{Name: "Formulario"})
	docID := p.Documents[0].ID

	svc := NewAIValidationService(app.DB, SimulatedValidator{Delay: time.Hour}, app.Notifications, app.Store, time.Hour)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < cap(errs); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Submit(ctx, docID)
			errs <- err
		}()
	}
	svc.Shutdown()
	wg.Wait()
	close(errs)

	var cerr *ConflictError
	for err := range errs {
		if err != nil && !errors.As(err, &cerr) {
			t.Errorf("submit racing shutdown: %v", err)
		}
	}
	if _, err := svc.Submit(ctx, docID); !errors.As(err, &cerr) {
		t.Errorf("submit after shutdown: err = %v, want ConflictError", err)
	}

	results, err := svc.ListForDocument(ctx, docID)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range results {
		if !r.Status.Done() {
			t.Errorf("validation %s left %s", r.ID, r.Status)
		}
	}
}
