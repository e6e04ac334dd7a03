package controllers

import (
	"net/http"

	"customsdesk-backend/models"
	"customsdesk-backend/services"

	"github.com/gin-gonic/gin"
)

type BudgetController struct {
	Budgets *services.BudgetService
}

type budgetProcessesInput struct {
	Processes []services.CreateProcessInput `json:"processes" binding:"required,min=1"`
}

// Create creates a budget with its items
func (bc *BudgetController) Create(c *gin.Context) {
	var input services.CreateBudgetInput
	if !bindJSON(c, &input) {
		return
	}
	budget, err := bc.Budgets.Create(c.Request.Context(), input)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, budget)
}

// List retrieves budgets matching the query filters
func (bc *BudgetController) List(c *gin.Context) {
	clientID, ok := queryUUID(c, "clientId")
	if !ok {
		return
	}
	budgets, err := bc.Budgets.List(c.Request.Context(), services.BudgetFilter{
		Status:   models.BudgetStatus(c.Query("status")),
		ClientID: clientID,
		Search:   c.Query("search"),
	})
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, budgets)
}

// Get retrieves a specific budget by ID
func (bc *BudgetController) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	budget, err := bc.Budgets.Get(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, budget)
}

// Update updates an existing budget
func (bc *BudgetController) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var input services.UpdateBudgetInput
	if !bindJSON(c, &input) {
		return
	}
	budget, err := bc.Budgets.Update(c.Request.Context(), id, input)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, budget)
}

// ChangeStatus moves a budget to another status
func (bc *BudgetController) ChangeStatus(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var input services.BudgetStatusInput
	if !bindJSON(c, &input) {
		return
	}
	budget, err := bc.Budgets.ChangeStatus(c.Request.Context(), id, input)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, budget)
}

// Convert turns an approved budget into an invoice
func (bc *BudgetController) Convert(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	inv, err := bc.Budgets.ConvertToInvoice(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, inv)
}

// CreateProcesses opens processes linked to the budget
func (bc *BudgetController) CreateProcesses(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var input budgetProcessesInput
	if !bindJSON(c, &input) {
		return
	}
	procs, err := bc.Budgets.CreateProcesses(c.Request.Context(), id, input.Processes)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, procs)
}

// Delete soft deletes a budget
func (bc *BudgetController) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := bc.Budgets.Delete(c.Request.Context(), id); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Budget deleted successfully"})
}

// Restore brings back a budget deleted within the undo window
func (bc *BudgetController) Restore(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	budget, err := bc.Budgets.Restore(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, budget)
}
