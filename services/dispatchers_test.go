package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"customsdesk-backend/models"

	"github.com/google/uuid"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []*twilioApi.CreateMessageParams
	sid  *string
	err  error
}

func (f *fakeSender) CreateMessage(p *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, p)
	if f.err != nil {
		return nil, f.err
	}
	return &twilioApi.ApiV2010Message{Sid: f.sid}, nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func TestSMSNotifierDispatch(t *testing.T) {
	sid := "SM123"
	tests := []struct {
		name     string
		priority models.NotificationPriority
		sender   *fakeSender
		wantSent int
		wantErr  bool
	}{
		{"high priority is sent", models.NotificationHigh, &fakeSender{sid: &sid}, 1, false},
		{"medium priority is skipped", models.NotificationMedium, &fakeSender{sid: &sid}, 0, false},
		{"low priority is skipped", models.NotificationLow, &fakeSender{sid: &sid}, 0, false},
		{"provider error", models.NotificationHigh, &fakeSender{err: errors.New("unreachable")}, 1, true},
		{"missing sid", models.NotificationHigh, &fakeSender{}, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sms := &SMSNotifier{api: tt.sender, from: "+15550001111", to: "+5491155554444"}
			n := models.Notification{Title: "Trámite por vencer", Message: "Registro RNPA", Priority: tt.priority}
			err := sms.Dispatch(context.Background(), n)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got := tt.sender.count(); got != tt.wantSent {
				t.Fatalf("sent = %d, want %d", got, tt.wantSent)
			}
			if tt.wantSent == 0 {
				return
			}
			p := tt.sender.sent[0]
			if *p.To != sms.to || *p.From != sms.from || *p.Body != "Trámite por vencer: Registro RNPA" {
				t.Errorf("params to=%s from=%s body=%q", *p.To, *p.From, *p.Body)
			}
		})
	}
}

func TestSMSBody(t *testing.T) {
	if got := smsBody(models.Notification{Title: "Nuevo cliente"}); got != "Nuevo cliente" {
		t.Errorf("title only = %q", got)
	}

	long := smsBody(models.Notification{Title: "Aviso", Message: strings.Repeat("ñ", 400)})
	r := []rune(long)
	if len(r) != 320 || !strings.HasSuffix(long, "...") {
		t.Errorf("truncated body has %d runes, suffix %q", len(r), string(r[len(r)-3:]))
	}

	exact := smsBody(models.Notification{Title: strings.Repeat("a", 320)})
	if exact != strings.Repeat("a", 320) {
		t.Errorf("a 320 rune body must not be cut")
	}
}

type recordingDispatcher struct {
	name string
	err  error
	mu   sync.Mutex
	got  []models.Notification
}

func (d *recordingDispatcher) Name() string { return d.name }

func (d *recordingDispatcher) Dispatch(_ context.Context, n models.Notification) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.got = append(d.got, n)
	return d.err
}

func TestNotifyFansOutToDispatchers(t *testing.T) {
	ok := &recordingDispatcher{name: "ok"}
	broken := &recordingDispatcher{name: "broken", err: errors.New("topic unavailable")}
	sid := "SM1"
	sender := &fakeSender{sid: &sid}
	sms := &SMSNotifier{api: sender, from: "+15550001111", to: "+5491155554444"}

	app := NewApp(newTestDB(t), Deps{Dispatchers: []Dispatcher{ok, broken, sms}, UndoWindow: time.Minute})
	t.Cleanup(app.Close)
	ctx := testCtx()

	mustClient(t, app, "Alimentos SA")
	if _, err := app.Notifications.Notify(ctx, models.Notification{
		Kind: models.NotifyProcessDueSoon, Module: "procesos", Title: "Vence mañana", Priority: models.NotificationHigh,
	}); err != nil {
		t.Fatal(err)
	}
	app.Notifications.Wait()

	for _, d := range []*recordingDispatcher{ok, broken} {
		kinds := map[models.NotificationKind]bool{}
		for _, n := range d.got {
			if n.ID == uuid.Nil {
				t.Errorf("%s received an unsaved notification", d.name)
			}
			kinds[n.Kind] = true
		}
		if len(d.got) != 2 || !kinds[models.NotifyNewClient] || !kinds[models.NotifyProcessDueSoon] {
			t.Errorf("%s received %+v", d.name, d.got)
		}
	}
	if sender.count() != 1 {
		t.Errorf("sms sent = %d, want only the high priority notice", sender.count())
	}
	// a failing dispatcher never undoes the stored notification
	if n, err := app.Notifications.UnreadCount(ctx); err != nil || n != 2 {
		t.Errorf("unread = %d, %v", n, err)
	}
}
