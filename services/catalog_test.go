package services

import (
	"errors"
	"testing"
	"time"

	"customsdesk-backend/models"
)

func TestBulkIncreaseRecordsHistory(t *testing.T) {
	app := newTestApp(t)
	ctx := testCtx()

	despacho, err := app.Prices.Create(ctx, PriceInput{Name: "Despacho", Price: dec("1000"), Category: "aduana"})
	if err != nil {
		t.Fatal(err)
	}
	flete, err := app.Prices.Create(ctx, PriceInput{Name: "Flete", Price: dec("300"), Category: "logistica"})
	if err != nil {
		t.Fatal(err)
	}

	res, err := app.Prices.BulkIncrease(ctx, BulkIncreaseInput{Percent: dec("10"), Category: "aduana"})
	if err != nil {
		t.Fatalf("bulk increase: %v", err)
	}
	if res.Affected != 1 || !res.Prices[0].Price.Equal(dec("1100")) {
		t.Fatalf("result = %+v", res)
	}

	history, err := app.Prices.History(ctx, despacho.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 {
		t.Fatalf("history entries = %d, want 2", len(history))
	}
	untouched, _ := app.Prices.Get(ctx, flete.ID)
	if !untouched.Price.Equal(dec("300")) {
		t.Errorf("other category changed to %s", untouched.Price)
	}

	for _, p := range []string{"0", "-100"} {
		if _, err := app.Prices.BulkIncrease(ctx, BulkIncreaseInput{Percent: dec(p)}); err == nil {
			t.Errorf("percent %s accepted", p)
		}
	}
}

func TestClientRestoreWindow(t *testing.T) {
	app := newTestApp(t)
	ctx := testCtx()
	c := mustClient(t, app, "Alimentos SA")

	if err := app.Clients.Delete(ctx, c.ID); err != nil {
		t.Fatal(err)
	}
	var cerr *ConflictError
	if _, err := app.Clients.Restore(ctx, c.ID); err != nil {
		t.Fatalf("restore inside window: %v", err)
	}
	if _, err := app.Clients.Restore(ctx, c.ID); !errors.As(err, &cerr) {
		t.Fatalf("restore of live client: err = %v, want ConflictError", err)
	}

	if err := app.Clients.Delete(ctx, c.ID); err != nil {
		t.Fatal(err)
	}
	timeNow = func() time.Time { return time.Now().Add(time.Hour) }
	t.Cleanup(func() { timeNow = time.Now })
	if _, err := app.Clients.Restore(ctx, c.ID); !errors.As(err, &cerr) {
		t.Fatalf("restore after window: err = %v, want ConflictError", err)
	}
}

func TestCreateClientValidation(t *testing.T) {
	app := newTestApp(t)
	ctx := testCtx()

	tests := []struct {
		name string
		in   CreateClientInput
	}{
		{"missing name", CreateClientInput{TaxCategory: models.TaxExempt}},
		{"bad category", CreateClientInput{Name: "X", TaxCategory: "monotax"}},
		{"bad email", CreateClientInput{Name: "X", TaxCategory: models.TaxExempt, Email: "nope"}},
		{"bad phone", CreateClientInput{Name: "X", TaxCategory: models.TaxExempt, Phone: "12"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var verr *ValidationError
			if _, err := app.Clients.Create(ctx, tt.in); !errors.As(err, &verr) {
				t.Fatalf("err = %v, want ValidationError", err)
			}
		})
	}
}

func TestNotificationsReadState(t *testing.T) {
	app := newTestApp(t)
	ctx := testCtx()
	mustClient(t, app, "Alimentos SA")
	mustClient(t, app, "Bebidas SRL")

	n, err := app.Notifications.UnreadCount(ctx)
	if err != nil || n != 2 {
		t.Fatalf("unread = %d, %v", n, err)
	}
	list, _ := app.Notifications.List(ctx, NotificationFilter{UnreadOnly: true})
	if err := app.Notifications.MarkRead(ctx, list[0].ID); err != nil {
		t.Fatal(err)
	}
	if n, _ := app.Notifications.UnreadCount(ctx); n != 1 {
		t.Errorf("unread after mark = %d", n)
	}
	updated, err := app.Notifications.MarkAllRead(ctx)
	if err != nil || updated != 1 {
		t.Errorf("mark all = %d, %v", updated, err)
	}
	var nf *NotFoundError
	if err := app.Notifications.Delete(ctx, models.Notification{}.ID); !errors.As(err, &nf) {
		t.Errorf("delete unknown: err = %v", err)
	}
}
