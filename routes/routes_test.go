package routes

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"customsdesk-backend/config"
	"customsdesk-backend/services"
	"customsdesk-backend/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := config.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	store, err := utils.NewLocalStore(t.TempDir(), "http://example.test", utils.NewFileTokens("secret", time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	app := services.NewApp(db, services.Deps{
		Store:      store,
		Validator:  services.SimulatedValidator{},
		UndoWindow: time.Minute,
	})
	t.Cleanup(app.Close)

	return SetupRouter(&config.Config{CORSOrigins: []string{"http://localhost:3000"}}, app)
}

func do(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Actor", "maria")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return out
}

type idOnly struct {
	ID string `json:"id"`
}

// seedProcess creates a client, an agency and a process with one required
// and one optional document through the API.
func seedProcess(t *testing.T, r *gin.Engine) (processID string, docs []idOnly) {
	t.Helper()
	w := do(t, r, http.MethodPost, "/api/clients", map[string]any{"name": "Alimentos SA", "taxCategory": "registered"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create client = %d %s", w.Code, w.Body)
	}
	client := decode[idOnly](t, w)

	w = do(t, r, http.MethodPost, "/api/agencies", map[string]any{"name": "ANMAT", "type": "public"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create agency = %d %s", w.Code, w.Body)
	}
	agency := decode[idOnly](t, w)

	w = do(t, r, http.MethodPost, "/api/processes", map[string]any{
		"title":    "Registro de producto",
		"clientId": client.ID,
		"agencyId": agency.ID,
		"documents": []map[string]any{
			{"name": "Formulario", "required": true},
			{"name": "Foto"},
		},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create process = %d %s", w.Code, w.Body)
	}
	p := decode[struct {
		ID        string   `json:"id"`
		Documents []idOnly `json:"documents"`
	}](t, w)
	return p.ID, p.Documents
}

func TestHealth(t *testing.T) {
	r := setupRouter(t)
	w := do(t, r, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("health = %d", w.Code)
	}
}

func TestErrorMapping(t *testing.T) {
	r := setupRouter(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"malformed json", http.MethodPost, "/api/clients", "{", http.StatusBadRequest},
		{"failed validation", http.MethodPost, "/api/clients", map[string]any{"name": "X", "taxCategory": "otro"}, http.StatusBadRequest},
		{"bad uuid", http.MethodGet, "/api/clients/not-a-uuid", nil, http.StatusBadRequest},
		{"unknown client", http.MethodGet, "/api/clients/7f1c2a9e-8d43-4c56-9b1e-2f0a6d3c4b5e", nil, http.StatusNotFound},
		{"unknown process state filter", http.MethodGet, "/api/processes?state=finished", nil, http.StatusBadRequest},
		{"bad date", http.MethodGet, "/api/processes?dueFrom=ayer", nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, r, tt.method, tt.path, tt.body)
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.want, w.Body)
			}
			if body := decode[map[string]string](t, w); body["error"] == "" {
				t.Errorf("missing error message: %s", w.Body)
			}
		})
	}
}

func TestProcessStateFlow(t *testing.T) {
	r := setupRouter(t)
	id, _ := seedProcess(t, r)

	w := do(t, r, http.MethodPut, "/api/processes/"+id+"/state", map[string]any{"state": "submitted"})
	if w.Code != http.StatusOK {
		t.Fatalf("change state = %d %s", w.Code, w.Body)
	}
	p := decode[struct {
		State    string `json:"state"`
		Comments []struct {
			Author string `json:"author"`
			Kind   string `json:"kind"`
		} `json:"comments"`
	}](t, w)
	if p.State != "submitted" {
		t.Errorf("state = %s", p.State)
	}
	last := p.Comments[len(p.Comments)-1]
	if last.Kind != "state-change" || last.Author != "maria" {
		t.Errorf("last comment = %+v", last)
	}

	w = do(t, r, http.MethodPut, "/api/processes/"+id+"/state", map[string]any{"state": "submitted"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("same state = %d", w.Code)
	}

	w = do(t, r, http.MethodGet, "/api/processes/board", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("board = %d", w.Code)
	}
	if cols := decode[[]map[string]any](t, w); len(cols) != 7 {
		t.Errorf("board columns = %d", len(cols))
	}
}

func TestRemoveRequiredDocument(t *testing.T) {
	r := setupRouter(t)
	id, docs := seedProcess(t, r)

	w := do(t, r, http.MethodDelete, "/api/processes/"+id+"/documents/"+docs[0].ID+"?confirm=true", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("remove required = %d", w.Code)
	}
	w = do(t, r, http.MethodDelete, "/api/processes/"+id+"/documents/"+docs[1].ID+"?confirm=true", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("remove optional = %d %s", w.Code, w.Body)
	}
	w = do(t, r, http.MethodGet, "/api/processes/"+id+"/documents/stats", nil)
	stats := decode[map[string]int](t, w)
	if stats["total"] != 1 {
		t.Errorf("stats = %v", stats)
	}
}

func TestUploadAndDownload(t *testing.T) {
	r := setupRouter(t)
	id, docs := seedProcess(t, r)
	content := []byte("%PDF-1.4\nfake but sniffable\n%%EOF\n")

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, _ := mw.CreateFormFile("file", "formulario.pdf")
	part.Write(content)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/processes/"+id+"/documents/"+docs[0].ID+"/file", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("upload = %d %s", w.Code, w.Body)
	}
	doc := decode[struct {
		Status    string `json:"status"`
		Validated bool   `json:"validated"`
		FileURL   string `json:"fileUrl"`
	}](t, w)
	if doc.Status != "uploaded" || doc.Validated {
		t.Errorf("document = %+v", doc)
	}
	downloadPath := "/api/processes/" + id + "/documents/" + docs[0].ID + "/file"
	if doc.FileURL != downloadPath {
		t.Errorf("fileUrl = %q, want %q", doc.FileURL, downloadPath)
	}

	w = do(t, r, http.MethodGet, "/api/processes/"+id, nil)
	listed := decode[struct {
		Documents []struct {
			ID      string `json:"id"`
			FileURL string `json:"fileUrl"`
		} `json:"documents"`
	}](t, w)
	for _, d := range listed.Documents {
		if d.ID == docs[0].ID && d.FileURL != downloadPath {
			t.Errorf("listed fileUrl = %q", d.FileURL)
		}
	}

	w = do(t, r, http.MethodGet, downloadPath, nil)
	if w.Code != http.StatusFound {
		t.Fatalf("download = %d", w.Code)
	}
	loc, err := url.Parse(w.Header().Get("Location"))
	if err != nil {
		t.Fatal(err)
	}

	w = do(t, r, http.MethodGet, loc.RequestURI(), nil)
	if w.Code != http.StatusOK || !bytes.Equal(w.Body.Bytes(), content) {
		t.Fatalf("signed file = %d %q", w.Code, w.Body)
	}
	disposition, params, err := mime.ParseMediaType(w.Header().Get("Content-Disposition"))
	if err != nil || disposition != "inline" || !strings.HasSuffix(params["filename"], ".pdf") {
		t.Errorf("content disposition = %q (%v)", w.Header().Get("Content-Disposition"), err)
	}

	w = do(t, r, http.MethodGet, loc.Path+"?token=forged", nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("forged token = %d", w.Code)
	}
}

func TestProcessesCSVExport(t *testing.T) {
	r := setupRouter(t)
	seedProcess(t, r)

	w := do(t, r, http.MethodGet, "/api/reports/processes.csv", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("csv = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("content type = %s", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "procesos-") {
		t.Errorf("content disposition = %s", cd)
	}
	rows, err := csv.NewReader(w.Body).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[1][0] != "Alimentos SA" {
		t.Errorf("rows = %v", rows)
	}
}

func TestBudgetConvertTwiceConflicts(t *testing.T) {
	r := setupRouter(t)

	w := do(t, r, http.MethodPost, "/api/budgets", map[string]any{
		"clientName": "Cliente eventual",
		"items":      []map[string]any{{"description": "Despacho", "quantity": 1, "unitPrice": 1000}},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create budget = %d %s", w.Code, w.Body)
	}
	b := decode[struct {
		ID     string `json:"id"`
		Number string `json:"number"`
	}](t, w)

	w = do(t, r, http.MethodPost, "/api/budgets/"+b.ID+"/convert", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("convert = %d %s", w.Code, w.Body)
	}
	inv := decode[struct {
		Number string `json:"number"`
	}](t, w)
	if !strings.HasPrefix(inv.Number, "FAC-") {
		t.Errorf("invoice number = %s", inv.Number)
	}

	w = do(t, r, http.MethodPost, "/api/budgets/"+b.ID+"/convert", nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("second convert = %d", w.Code)
	}
}

func TestNotificationsUnreadCount(t *testing.T) {
	r := setupRouter(t)
	seedProcess(t, r)

	w := do(t, r, http.MethodGet, "/api/notifications/unread-count", nil)
	if got := decode[map[string]int](t, w)["count"]; got != 2 {
		t.Fatalf("unread = %d, want client and process notices", got)
	}
	w = do(t, r, http.MethodPut, "/api/notifications/read-all", nil)
	if got := decode[map[string]int](t, w)["updated"]; got != 2 {
		t.Errorf("updated = %d", got)
	}
}
