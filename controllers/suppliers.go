package controllers

import (
	"net/http"

	"customsdesk-backend/models"
	"customsdesk-backend/services"

	"github.com/gin-gonic/gin"
)

type SupplierController struct {
	Suppliers *services.SupplierService
	Invoices  *services.SupplierInvoiceService
}

type supplierInvoiceStatusInput struct {
	Status models.SupplierInvoiceStatus `json:"status" binding:"required"`
}

// Create creates a new supplier
func (sc *SupplierController) Create(c *gin.Context) {
	var input services.SupplierInput
	if !bindJSON(c, &input) {
		return
	}
	supplier, err := sc.Suppliers.Create(c.Request.Context(), input)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, supplier)
}

// List retrieves suppliers matching the query filters
func (sc *SupplierController) List(c *gin.Context) {
	active, ok := queryBool(c, "active")
	if !ok {
		return
	}
	suppliers, err := sc.Suppliers.List(c.Request.Context(), services.SupplierFilter{
		Search:   c.Query("search"),
		Category: models.SupplierCategory(c.Query("category")),
		Active:   active,
	})
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, suppliers)
}

// Get retrieves a specific supplier by ID
func (sc *SupplierController) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	supplier, err := sc.Suppliers.Get(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, supplier)
}

// Update updates an existing supplier
func (sc *SupplierController) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var input services.UpdateSupplierInput
	if !bindJSON(c, &input) {
		return
	}
	supplier, err := sc.Suppliers.Update(c.Request.Context(), id, input)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, supplier)
}

// Delete soft deletes a supplier
func (sc *SupplierController) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := sc.Suppliers.Delete(c.Request.Context(), id); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Supplier deleted successfully"})
}

// Restore brings back a supplier deleted within the undo window
func (sc *SupplierController) Restore(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	supplier, err := sc.Suppliers.Restore(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, supplier)
}

// Supplier invoices

// CreateInvoice records an invoice received from a supplier
func (sc *SupplierController) CreateInvoice(c *gin.Context) {
	supplierID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var input services.SupplierInvoiceInput
	if !bindJSON(c, &input) {
		return
	}
	inv, err := sc.Invoices.Create(c.Request.Context(), supplierID, input)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, inv)
}

// ListForSupplier returns the supplier's invoices together with their totals.
func (sc *SupplierController) ListForSupplier(c *gin.Context) {
	supplierID, ok := parseID(c, "id")
	if !ok {
		return
	}
	invs, err := sc.Invoices.List(c.Request.Context(), services.SupplierInvoiceFilter{
		SupplierID: &supplierID,
		Status:     models.SupplierInvoiceStatus(c.Query("status")),
	})
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"invoices": invs,
		"totals":   services.SummarizeSupplierInvoices(supplierID, invs),
	})
}

// ListInvoices retrieves supplier invoices matching the query filters
func (sc *SupplierController) ListInvoices(c *gin.Context) {
	supplierID, ok := queryUUID(c, "supplierId")
	if !ok {
		return
	}
	from, ok := queryDate(c, "from")
	if !ok {
		return
	}
	to, ok := queryDate(c, "to")
	if !ok {
		return
	}
	invs, err := sc.Invoices.List(c.Request.Context(), services.SupplierInvoiceFilter{
		SupplierID: supplierID,
		Status:     models.SupplierInvoiceStatus(c.Query("status")),
		From:       from,
		To:         to,
	})
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, invs)
}

// GetInvoice retrieves a specific supplier invoice by ID
func (sc *SupplierController) GetInvoice(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	inv, err := sc.Invoices.Get(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

// UpdateInvoice updates an existing supplier invoice
func (sc *SupplierController) UpdateInvoice(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var input services.UpdateSupplierInvoiceInput
	if !bindJSON(c, &input) {
		return
	}
	inv, err := sc.Invoices.Update(c.Request.Context(), id, input)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

// ChangeInvoiceStatus moves a supplier invoice to another status
func (sc *SupplierController) ChangeInvoiceStatus(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var input supplierInvoiceStatusInput
	if !bindJSON(c, &input) {
		return
	}
	inv, err := sc.Invoices.ChangeStatus(c.Request.Context(), id, input.Status)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

// DeleteInvoice soft deletes a supplier invoice
func (sc *SupplierController) DeleteInvoice(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := sc.Invoices.Delete(c.Request.Context(), id); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Supplier invoice deleted successfully"})
}

// RestoreInvoice brings back a supplier invoice deleted within the undo window
func (sc *SupplierController) RestoreInvoice(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	inv, err := sc.Invoices.Restore(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}
