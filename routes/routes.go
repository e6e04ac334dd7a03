package routes

import (
	"net/http"

	"customsdesk-backend/config"
	"customsdesk-backend/controllers"
	"customsdesk-backend/services"
	"customsdesk-backend/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func SetupRouter(cfg *config.Config, app *services.App) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", controllers.ActorHeader},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
	}))

	r.Use(config.PerformanceLogger())
	r.MaxMultipartMemory = utils.MaxUploadSize

	r.GET("/health", func(c *gin.Context) {
		sqlDB, err := app.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			utils.RespondWithError(c, http.StatusServiceUnavailable, "Database unavailable")
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if local, ok := app.Store.(*utils.LocalStore); ok {
		files := controllers.FileController{Store: local}
		r.GET("/files/*path", files.Serve)
	}

	api := r.Group("/api")
	api.Use(controllers.ActorMiddleware())
	{
		clientController := controllers.ClientController{Clients: app.Clients}
		clients := api.Group("/clients")
		{
			clients.POST("", clientController.Create)
			clients.GET("", clientController.List)
			clients.GET("/:id", clientController.Get)
			clients.PUT("/:id", clientController.Update)
			clients.DELETE("/:id", clientController.Delete)
			clients.POST("/:id/restore", clientController.Restore)
		}

		agencyController := controllers.AgencyController{Agencies: app.Agencies}
		agencies := api.Group("/agencies")
		{
			agencies.POST("", agencyController.Create)
			agencies.GET("", agencyController.List)
			agencies.GET("/:id", agencyController.Get)
			agencies.PUT("/:id", agencyController.Update)
			agencies.DELETE("/:id", agencyController.Delete)
			agencies.POST("/:id/restore", agencyController.Restore)
		}

		supplierController := controllers.SupplierController{Suppliers: app.Suppliers, Invoices: app.SupplierInvoices}
		suppliers := api.Group("/suppliers")
		{
			suppliers.POST("", supplierController.Create)
			suppliers.GET("", supplierController.List)
			suppliers.GET("/:id", supplierController.Get)
			suppliers.PUT("/:id", supplierController.Update)
			suppliers.DELETE("/:id", supplierController.Delete)
			suppliers.POST("/:id/restore", supplierController.Restore)
			suppliers.POST("/:id/invoices", supplierController.CreateInvoice)
			suppliers.GET("/:id/invoices", supplierController.ListForSupplier)
		}
		supplierInvoices := api.Group("/supplier-invoices")
		{
			supplierInvoices.GET("", supplierController.ListInvoices)
			supplierInvoices.GET("/:id", supplierController.GetInvoice)
			supplierInvoices.PUT("/:id", supplierController.UpdateInvoice)
			supplierInvoices.PUT("/:id/status", supplierController.ChangeInvoiceStatus)
			supplierInvoices.DELETE("/:id", supplierController.DeleteInvoice)
			supplierInvoices.POST("/:id/restore", supplierController.RestoreInvoice)
		}

		templateController := controllers.TemplateController{Templates: app.Templates}
		templates := api.Group("/templates")
		{
			templates.POST("", templateController.Create)
			templates.GET("", templateController.List)
			templates.GET("/:id", templateController.Get)
			templates.PUT("/:id", templateController.Update)
			templates.DELETE("/:id", templateController.Delete)
			templates.POST("/:id/restore", templateController.Restore)
		}

		processController := controllers.ProcessController{Processes: app.Processes}
		documentController := controllers.DocumentController{Documents: app.Documents, Validations: app.Validations}
		processes := api.Group("/processes")
		{
			processes.POST("", processController.Create)
			processes.GET("", processController.List)
			processes.GET("/board", processController.Board)
			processes.GET("/by-client", processController.ByClient)
			processes.GET("/calendar", processController.Calendar)
			processes.GET("/overdue", processController.Overdue)
			processes.GET("/:id", processController.Get)
			processes.PUT("/:id", processController.Update)
			processes.DELETE("/:id", processController.Delete)
			processes.POST("/:id/restore", processController.Restore)
			processes.PUT("/:id/state", processController.ChangeState)
			processes.PUT("/:id/progress", processController.SetProgress)
			processes.PUT("/:id/invoiced", processController.MarkInvoiced)
			processes.POST("/:id/comments", processController.AddComment)

			processes.GET("/:id/documents", documentController.List)
			processes.GET("/:id/documents/stats", documentController.Stats)
			processes.POST("/:id/documents", documentController.Add)
			processes.POST("/:id/documents/:docId/file", documentController.Upload)
			processes.GET("/:id/documents/:docId/file", documentController.Download)
			processes.PUT("/:id/documents/:docId/validated", documentController.ToggleValidated)
			processes.PUT("/:id/documents/:docId/status", documentController.SetStatus)
			processes.DELETE("/:id/documents/:docId", documentController.Remove)
		}

		api.POST("/documents/:id/validations", documentController.SubmitValidation)
		api.GET("/documents/:id/validations", documentController.ListValidations)
		validations := api.Group("/validations")
		{
			validations.GET("/:id", documentController.GetValidation)
			validations.POST("/:id/cancel", documentController.CancelValidation)
			validations.POST("/:id/retry", documentController.RetryValidation)
		}

		invoiceController := controllers.InvoiceController{Invoices: app.Invoices}
		invoices := api.Group("/invoices")
		{
			invoices.POST("", invoiceController.Create)
			invoices.GET("", invoiceController.List)
			invoices.GET("/:id", invoiceController.Get)
			invoices.PUT("/:id", invoiceController.Update)
			invoices.PUT("/:id/status", invoiceController.ChangeStatus)
			invoices.GET("/:id/history", invoiceController.History)
			invoices.DELETE("/:id", invoiceController.Delete)
			invoices.POST("/:id/restore", invoiceController.Restore)
		}

		priceController := controllers.PriceController{Prices: app.Prices}
		prices := api.Group("/prices")
		{
			prices.POST("", priceController.Create)
			prices.GET("", priceController.List)
			prices.POST("/bulk-increase", priceController.BulkIncrease)
			prices.GET("/:id", priceController.Get)
			prices.PUT("/:id", priceController.Update)
			prices.GET("/:id/history", priceController.History)
			prices.DELETE("/:id", priceController.Delete)
			prices.POST("/:id/restore", priceController.Restore)
		}

		budgetController := controllers.BudgetController{Budgets: app.Budgets}
		budgets := api.Group("/budgets")
		{
			budgets.POST("", budgetController.Create)
			budgets.GET("", budgetController.List)
			budgets.GET("/:id", budgetController.Get)
			budgets.PUT("/:id", budgetController.Update)
			budgets.PUT("/:id/status", budgetController.ChangeStatus)
			budgets.POST("/:id/convert", budgetController.Convert)
			budgets.POST("/:id/processes", budgetController.CreateProcesses)
			budgets.DELETE("/:id", budgetController.Delete)
			budgets.POST("/:id/restore", budgetController.Restore)
		}

		notificationController := controllers.NotificationController{Notifications: app.Notifications}
		notifications := api.Group("/notifications")
		{
			notifications.GET("", notificationController.List)
			notifications.GET("/unread-count", notificationController.UnreadCount)
			notifications.PUT("/read-all", notificationController.MarkAllRead)
			notifications.PUT("/:id/read", notificationController.MarkRead)
			notifications.DELETE("/:id", notificationController.Delete)
		}

		// Reports routes
		reportController := controllers.ReportController{Reports: app.Reports}
		reports := api.Group("/reports")
		{
			reports.GET("/processes", reportController.Processes)
			reports.GET("/processes.csv", reportController.ProcessesCSV)
			reports.GET("/processes.xlsx", reportController.ProcessesXLSX)
			reports.GET("/invoices", reportController.Invoices)
			reports.GET("/templates.csv", reportController.TemplatesCSV)
		}
		api.GET("/dashboard", reportController.Dashboard)

		settingsController := controllers.SettingsController{Settings: app.Settings}
		api.GET("/settings", settingsController.Get)
		api.PUT("/settings", settingsController.Update)
	}

	return r
}
