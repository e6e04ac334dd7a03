package services

import (
	"time"

	"customsdesk-backend/utils"

	"gorm.io/gorm"
)

// Deps are the pluggable collaborators chosen at startup.
type Deps struct {
	Store       utils.FileStore
	Locker      utils.Locker
	Sequencer   Sequencer
	Validator   DocumentValidator
	Dispatchers []Dispatcher

	UndoWindow        time.Duration
	ValidationTimeout time.Duration
}

// App bundles every service the HTTP layer and the scheduler use.
type App struct {
	DB               *gorm.DB
	Settings         *SettingsService
	Notifications    *NotificationService
	Clients          *ClientService
	Agencies         *AgencyService
	Suppliers        *SupplierService
	SupplierInvoices *SupplierInvoiceService
	Templates        *TemplateService
	Processes        *ProcessService
	Documents        *DocumentService
	Validations      *AIValidationService
	Invoices         *InvoiceService
	Prices           *PriceService
	Budgets          *BudgetService
	Reports          *ReportService
	Store            utils.FileStore
}

func NewApp(db *gorm.DB, deps Deps) *App {
	if deps.Locker == nil {
		deps.Locker = utils.NewLocalLocker()
	}
	if deps.Sequencer == nil {
		deps.Sequencer = NewDBSequencer()
	}
	if deps.Validator == nil {
		deps.Validator = SimulatedValidator{Delay: 2 * time.Second}
	}
	if deps.ValidationTimeout <= 0 {
		deps.ValidationTimeout = time.Minute
	}

	a := &App{DB: db, Store: deps.Store}
	a.Settings = NewSettingsService(db)
	a.Notifications = NewNotificationService(db, deps.Dispatchers...)
	a.Clients = NewClientService(db, a.Notifications, deps.UndoWindow)
	a.Agencies = NewAgencyService(db, deps.UndoWindow)
	a.Suppliers = NewSupplierService(db, deps.UndoWindow)
	a.SupplierInvoices = NewSupplierInvoiceService(db, deps.UndoWindow)
	a.Templates = NewTemplateService(db, deps.UndoWindow)
	a.Processes = NewProcessService(db, a.Notifications, deps.UndoWindow)
	a.Documents = NewDocumentService(db, a.Settings, a.Notifications, deps.Store, deps.Locker)
	a.Validations = NewAIValidationService(db, deps.Validator, a.Notifications, deps.Store, deps.ValidationTimeout)
	a.Invoices = NewInvoiceService(db, deps.Sequencer, a.Settings, a.Notifications, deps.UndoWindow)
	a.Prices = NewPriceService(db, deps.UndoWindow)
	a.Budgets = NewBudgetService(db, deps.Sequencer, a.Settings, a.Notifications, a.Invoices, a.Processes, deps.UndoWindow)
	a.Reports = NewReportService(db, a.Processes, a.Invoices, a.Templates, a.Notifications)
	return a
}

func (a *App) Scheduler() *Scheduler {
	return NewScheduler(a.Invoices, a.SupplierInvoices, a.Budgets, a.Processes, a.Notifications)
}

// Close stops background validation jobs and drains notification dispatch.
func (a *App) Close() {
	a.Validations.Shutdown()
	a.Notifications.Wait()
}
