package services

import (
	"testing"
	"time"

	"customsdesk-backend/models"
)

func TestNotifyDueSoonOncePerDay(t *testing.T) {
	app := newTestApp(t)
	ctx := testCtx()
	client := mustClient(t, app, "Alimentos SA")
	agency := mustAgency(t, app, "ANMAT")

	due := time.Now().Add(48 * time.Hour)
	far := time.Now().AddDate(0, 1, 0)
	for _, d := range []*time.Time{&due, &far} {
		_, err := app.Processes.Create(ctx, CreateProcessInput{
			Title: "Registro", ClientID: client.ID, AgencyID: &agency.ID,
			Priority: models.PriorityUrgent, DueDate: d,
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	s := app.Scheduler()
	n, err := s.NotifyDueSoon(ctx)
	if err != nil || n != 1 {
		t.Fatalf("first run = %d, %v", n, err)
	}
	n, err = s.NotifyDueSoon(ctx)
	if err != nil || n != 0 {
		t.Fatalf("second run = %d, %v", n, err)
	}

	notes, _ := app.Notifications.List(ctx, NotificationFilter{Kind: models.NotifyProcessDueSoon})
	if len(notes) != 1 || notes[0].Priority != models.NotificationHigh {
		t.Fatalf("reminders = %+v", notes)
	}
}

func TestMarkOverdueInvoices(t *testing.T) {
	app := newTestApp(t)
	ctx := testCtx()

	issued := time.Now().AddDate(0, -2, 0)
	due := time.Now().AddDate(0, -1, 0)
	sent, err := app.Invoices.Create(ctx, CreateInvoiceInput{
		ClientName: "Alimentos SA", Status: models.InvoiceSent,
		IssueDate: &issued, DueDate: &due,
		Items: []LineItemInput{item("Despacho", 1, 1000)},
	})
	if err != nil {
		t.Fatal(err)
	}
	draft, err := app.Invoices.Create(ctx, CreateInvoiceInput{
		ClientName: "Alimentos SA",
		IssueDate:  &issued, DueDate: &due,
		Items: []LineItemInput{item("Despacho", 1, 1000)},
	})
	if err != nil {
		t.Fatal(err)
	}

	n, err := app.Invoices.MarkOverdue(ctx)
	if err != nil || n != 1 {
		t.Fatalf("mark overdue = %d, %v", n, err)
	}
	got, _ := app.Invoices.Get(ctx, sent.ID)
	if got.Status != models.InvoiceOverdue {
		t.Errorf("sent invoice status = %s", got.Status)
	}
	last := got.History[len(got.History)-1]
	if last.Action != models.HistoryStatusChange || last.Actor != SystemActor {
		t.Errorf("last history = %s by %s", last.Action, last.Actor)
	}
	if got, _ := app.Invoices.Get(ctx, draft.ID); got.Status != models.InvoiceDraft {
		t.Errorf("draft invoice status = %s", got.Status)
	}
}

func TestSchedulerStartStop(t *testing.T) {
	app := newTestApp(t)
	s := app.Scheduler()
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	if got := len(s.cron.Entries()); got != 5 {
		t.Errorf("entries = %d, want 5", got)
	}
	s.Stop()
}
