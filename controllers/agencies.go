package controllers

import (
	"net/http"

	"customsdesk-backend/services"

	"github.com/gin-gonic/gin"
)

type AgencyController struct {
	Agencies *services.AgencyService
}

// Create creates a new agency
func (ac *AgencyController) Create(c *gin.Context) {
	var input services.AgencyInput
	if !bindJSON(c, &input) {
		return
	}
	agency, err := ac.Agencies.Create(c.Request.Context(), input)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, agency)
}

// List retrieves all agencies with their process counts
func (ac *AgencyController) List(c *gin.Context) {
	agencies, err := ac.Agencies.List(c.Request.Context(), c.Query("search"))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, agencies)
}

// Get retrieves a specific agency by ID
func (ac *AgencyController) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	agency, err := ac.Agencies.Get(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, agency)
}

// Update updates an existing agency
func (ac *AgencyController) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var input services.UpdateAgencyInput
	if !bindJSON(c, &input) {
		return
	}
	agency, err := ac.Agencies.Update(c.Request.Context(), id, input)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, agency)
}

// Delete soft deletes an agency
func (ac *AgencyController) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := ac.Agencies.Delete(c.Request.Context(), id); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Agency deleted successfully"})
}

// Restore brings back an agency deleted within the undo window
func (ac *AgencyController) Restore(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	agency, err := ac.Agencies.Restore(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, agency)
}
