package services

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"customsdesk-backend/config"
	"customsdesk-backend/models"
	"customsdesk-backend/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := config.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	db := newTestDB(t)
	store, err := utils.NewLocalStore(t.TempDir(), "http://localhost:8080", utils.NewFileTokens("test-secret", time.Hour))
	if err != nil {
		t.Fatalf("local store: %v", err)
	}
	app := NewApp(db, Deps{
		Store:             store,
		Validator:         SimulatedValidator{},
		UndoWindow:        time.Minute,
		ValidationTimeout: 5 * time.Second,
	})
	t.Cleanup(app.Close)
	return app
}

func testCtx() context.Context {
	return WithActor(context.Background(), "tester")
}

func mustClient(t *testing.T, app *App, name string) models.Client {
	t.Helper()
	c, err := app.Clients.Create(testCtx(), CreateClientInput{Name: name, TaxCategory: models.TaxRegistered})
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	return c
}

func mustAgency(t *testing.T, app *App, name string) models.Agency {
	t.Helper()
	a, err := app.Agencies.Create(testCtx(), AgencyInput{Name: name, Type: models.AgencyPublic})
	if err != nil {
		t.Fatalf("create agency: %v", err)
	}
	return a
}

func mustProcess(t *testing.T, app *App, clientID, agencyID uuid.UUID, title string, docs ...DocumentInput) ProcessDetail {
	t.Helper()
	p, err := app.Processes.Create(testCtx(), CreateProcessInput{
		Title:     title,
		ClientID:  clientID,
		AgencyID:  &agencyID,
		Documents: docs,
	})
	if err != nil {
		t.Fatalf("create process: %v", err)
	}
	return p
}

func item(desc string, qty, price int64) LineItemInput {
	return LineItemInput{Description: desc, Quantity: decimal.NewFromInt(qty), UnitPrice: decimal.NewFromInt(price)}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
