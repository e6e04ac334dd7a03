package controllers

import (
	"net/http"

	"customsdesk-backend/models"
	"customsdesk-backend/services"

	"github.com/gin-gonic/gin"
)

type InvoiceController struct {
	Invoices *services.InvoiceService
}

// Create creates an invoice with its items
func (ic *InvoiceController) Create(c *gin.Context) {
	var input services.CreateInvoiceInput
	if !bindJSON(c, &input) {
		return
	}
	inv, err := ic.Invoices.Create(c.Request.Context(), input)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, inv)
}

// List retrieves invoices matching the query filters
func (ic *InvoiceController) List(c *gin.Context) {
	clientID, ok := queryUUID(c, "clientId")
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
	invs, err := ic.Invoices.List(c.Request.Context(), services.InvoiceFilter{
		Status:   models.InvoiceStatus(c.Query("status")),
		Type:     models.InvoiceType(c.Query("type")),
		ClientID: clientID,
		From:     from,
		To:       to,
		Search:   c.Query("search"),
	})
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, invs)
}

// Get retrieves a specific invoice by ID
func (ic *InvoiceController) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	inv, err := ic.Invoices.Get(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

// Update updates an existing invoice
func (ic *InvoiceController) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var input services.UpdateInvoiceInput
	if !bindJSON(c, &input) {
		return
	}
	inv, err := ic.Invoices.Update(c.Request.Context(), id, input)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

// ChangeStatus moves an invoice to another status
func (ic *InvoiceController) ChangeStatus(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var input services.InvoiceStatusInput
	if !bindJSON(c, &input) {
		return
	}
	inv, err := ic.Invoices.ChangeStatus(c.Request.Context(), id, input)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

// History retrieves the change history of an invoice
func (ic *InvoiceController) History(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	history, err := ic.Invoices.History(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

// Delete soft deletes an invoice
func (ic *InvoiceController) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := ic.Invoices.Delete(c.Request.Context(), id); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Invoice deleted successfully"})
}

// Restore brings back an invoice deleted within the undo window
func (ic *InvoiceController) Restore(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	inv, err := ic.Invoices.Restore(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}
