package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"customsdesk-backend/models"
)

func TestCreateInvoiceTotals(t *testing.T) {
	app := newTestApp(t)
	ctx := testCtx()
	client := mustClient(t, app, "Alimentos SA")

	inv, err := app.Invoices.Create(ctx, CreateInvoiceInput{
		ClientID: &client.ID,
		Items: []LineItemInput{
			item("Despacho de importación", 2, 1000),
			item("Gestión ante organismo", 1, 500),
		},
	})
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	if !inv.Subtotal.Equal(dec("2500")) || !inv.Tax.Equal(dec("525")) || !inv.Total.Equal(dec("3025")) {
		t.Errorf("totals = %s / %s / %s, want 2500 / 525 / 3025", inv.Subtotal, inv.Tax, inv.Total)
	}
	if inv.ClientName != "Alimentos SA" {
		t.Errorf("client name = %q", inv.ClientName)
	}
	if inv.Status != models.InvoiceDraft || inv.Type != models.InvoiceToClient {
		t.Errorf("defaults = %s / %s", inv.Status, inv.Type)
	}
	if len(inv.History) != 1 || inv.History[0].Action != models.HistoryCreate {
		t.Errorf("history = %+v", inv.History)
	}
}

func TestCreateInvoiceRejectsBadItems(t *testing.T) {
	app := newTestApp(t)
	ctx := testCtx()

	tests := []struct {
		name string
		in   CreateInvoiceInput
	}{
		{"no items", CreateInvoiceInput{ClientName: "Otro"}},
		{"no client", CreateInvoiceInput{Items: []LineItemInput{item("x", 1, 10)}}},
		{"zero quantity", CreateInvoiceInput{ClientName: "Otro", Items: []LineItemInput{item("x", 0, 10)}}},
		{"negative price", CreateInvoiceInput{ClientName: "Otro", Items: []LineItemInput{item("x", 1, -10)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := app.Invoices.Create(ctx, tt.in)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("err = %v, want ValidationError", err)
			}
		})
	}
}

func TestInvoiceNumbersIncrease(t *testing.T) {
	app := newTestApp(t)
	ctx := testCtx()

	var prev string
	for i := 1; i <= 3; i++ {
		inv, err := app.Invoices.Create(ctx, CreateInvoiceInput{ClientName: "Mostrador", Items: []LineItemInput{item("Servicio", 1, 100)}})
		if err != nil {
			t.Fatal(err)
		}
		want := models.FormatDocumentNumber(models.InvoicePrefix, inv.IssueDate.Year(), int64(i))
		if inv.Number != want {
			t.Errorf("invoice %d number = %s, want %s", i, inv.Number, want)
		}
		if prev != "" && inv.Number <= prev {
			t.Errorf("number %s not after %s", inv.Number, prev)
		}
		prev = inv.Number
	}
}

func TestInvoiceStatusChangeHistory(t *testing.T) {
	app := newTestApp(t)
	ctx := testCtx()

	inv, err := app.Invoices.Create(ctx, CreateInvoiceInput{
		ClientName: "Alimentos SA",
		Status:     models.InvoiceSent,
		Items:      []LineItemInput{item("Despacho", 1, 1000)},
	})
	if err != nil {
		t.Fatal(err)
	}

	paid, err := app.Invoices.ChangeStatus(ctx, inv.ID, InvoiceStatusInput{Status: models.InvoicePaid})
	if err != nil {
		t.Fatalf("change status: %v", err)
	}
	if paid.Status != models.InvoicePaid {
		t.Fatalf("status = %s", paid.Status)
	}

	history, err := app.Invoices.History(ctx, inv.ID)
	if err != nil {
		t.Fatal(err)
	}
	var changes []models.InvoiceHistory
	for _, h := range history {
		if h.Action == models.HistoryStatusChange {
			changes = append(changes, h)
		}
	}
	if len(changes) != 1 {
		t.Fatalf("status-change entries = %d, want 1", len(changes))
	}
	var before, after map[string]string
	if err := json.Unmarshal(changes[0].Before, &before); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(changes[0].After, &after); err != nil {
		t.Fatal(err)
	}
	if before["status"] != "sent" || after["status"] != "paid" {
		t.Errorf("before = %v, after = %v", before, after)
	}
	if changes[0].Actor != "tester" {
		t.Errorf("actor = %q", changes[0].Actor)
	}

	name := "Otro"
	_, err = app.Invoices.Update(ctx, inv.ID, UpdateInvoiceInput{Version: paid.Version, ClientName: &name})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("editing a paid invoice: err = %v, want ValidationError", err)
	}
}

func TestInvoiceUpdateStaleVersion(t *testing.T) {
	app := newTestApp(t)
	ctx := testCtx()

	inv, err := app.Invoices.Create(ctx, CreateInvoiceInput{ClientName: "Alimentos SA", Items: []LineItemInput{item("Despacho", 1, 1000)}})
	if err != nil {
		t.Fatal(err)
	}
	notes := "primera"
	updated, err := app.Invoices.Update(ctx, inv.ID, UpdateInvoiceInput{Version: inv.Version, Notes: &notes})
	if err != nil {
		t.Fatalf("first update: %v", err)
	}
	if updated.Version != inv.Version+1 {
		t.Errorf("version = %d, want %d", updated.Version, inv.Version+1)
	}

	notes = "segunda"
	_, err = app.Invoices.Update(ctx, inv.ID, UpdateInvoiceInput{Version: inv.Version, Notes: &notes})
	var cerr *ConflictError
	if !errors.As(err, &cerr) {
		t.Fatalf("stale update: err = %v, want ConflictError", err)
	}
}

func TestInvoiceDeleteRestore(t *testing.T) {
	app := newTestApp(t)
	ctx := testCtx()

	inv, err := app.Invoices.Create(ctx, CreateInvoiceInput{ClientName: "Alimentos SA", Items: []LineItemInput{item("Despacho", 1, 1000)}})
	if err != nil {
		t.Fatal(err)
	}
	if err := app.Invoices.Delete(ctx, inv.ID); err != nil {
		t.Fatal(err)
	}
	list, _ := app.Invoices.List(ctx, InvoiceFilter{})
	if len(list) != 0 {
		t.Fatalf("deleted invoice still listed")
	}
	restored, err := app.Invoices.Restore(ctx, inv.ID)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored.Number != inv.Number {
		t.Errorf("number changed on restore: %s", restored.Number)
	}
	var actions []models.HistoryAction
	for _, h := range restored.History {
		actions = append(actions, h.Action)
	}
	if fmt.Sprint(actions) != "[create delete edit]" {
		t.Errorf("history actions = %v", actions)
	}
}

func TestConfiguredVATPolicy(t *testing.T) {
	app := newTestApp(t)
	ctx := testCtx()

	rate := dec("10.5")
	apply := true
	if _, err := app.Settings.Update(ctx, SettingsInput{VATPercent: &rate}); err != nil {
		t.Fatal(err)
	}
	inv, err := app.Invoices.Create(ctx, CreateInvoiceInput{ClientName: "A", Items: []LineItemInput{item("x", 1, 1000)}})
	if err != nil {
		t.Fatal(err)
	}
	if !inv.TaxRate.Equal(DefaultVATPercent) {
		t.Errorf("rate without opt-in = %s, want %s", inv.TaxRate, DefaultVATPercent)
	}

	if _, err := app.Settings.Update(ctx, SettingsInput{ApplyConfiguredVAT: &apply}); err != nil {
		t.Fatal(err)
	}
	inv, err = app.Invoices.Create(ctx, CreateInvoiceInput{ClientName: "A", Items: []LineItemInput{item("x", 1, 1000)}})
	if err != nil {
		t.Fatal(err)
	}
	if !inv.TaxRate.Equal(rate) || !inv.Tax.Equal(dec("105")) {
		t.Errorf("configured rate = %s tax = %s", inv.TaxRate, inv.Tax)
	}
}
