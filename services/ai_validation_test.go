package services

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestHTTPValidator(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    int
		wantErr string
	}{
		{"completed", http.StatusOK, `{"confidence":92,"extractedText":"RNPA 123","extractedFields":{"numero":"123"},"errors":[],"suggestions":["Revisar sello"]}`, 92, ""},
		{"server error", http.StatusBadGateway, `{"confidence":90}`, 0, "502"},
		{"malformed body", http.StatusOK, `{"confidence":`, 0, "decode"},
		{"confidence above range", http.StatusOK, `{"confidence":150}`, 0, "out of range"},
		{"negative confidence", http.StatusOK, `{"confidence":-1}`, 0, "out of range"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docID := uuid.New()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				var req ValidationRequest
				if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
					t.Errorf("request %s %s", r.Method, r.Header.Get("Content-Type"))
				}
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DocumentID != docID || req.Name != "Formulario" {
					t.Errorf("payload = %+v, %v", req, err)
				}
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			t.Cleanup(srv.Close)

			out, err := NewHTTPValidator(srv.URL).Validate(context.Background(), ValidationRequest{DocumentID: docID, Name: "Formulario"})
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err = %v, want it to mention %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if out.Confidence != tt.want || out.ExtractedText != "RNPA 123" || out.Fields["numero"] != "123" || len(out.Suggestions) != 1 {
				t.Errorf("outcome = %+v", out)
			}
		})
	}
}

func TestHTTPValidatorHonoursContext(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewHTTPValidator(srv.URL).Validate(ctx, ValidationRequest{Name: "Formulario"}); err == nil {
		t.Fatal("expected a cancelled request to fail")
	}
}
