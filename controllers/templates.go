package controllers

import (
	"net/http"

	"customsdesk-backend/services"

	"github.com/gin-gonic/gin"
)

type TemplateController struct {
	Templates *services.TemplateService
}

// Create creates a new process template
func (tc *TemplateController) Create(c *gin.Context) {
	var input services.TemplateInput
	if !bindJSON(c, &input) {
		return
	}
	tpl, err := tc.Templates.Create(c.Request.Context(), input)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, tpl)
}

// List retrieves all templates
func (tc *TemplateController) List(c *gin.Context) {
	agencyID, ok := queryUUID(c, "agencyId")
	if !ok {
		return
	}
	tpls, err := tc.Templates.List(c.Request.Context(), agencyID)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, tpls)
}

// Get retrieves a specific template by ID
func (tc *TemplateController) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	tpl, err := tc.Templates.Get(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, tpl)
}

// Update updates an existing template
func (tc *TemplateController) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var input services.UpdateTemplateInput
	if !bindJSON(c, &input) {
		return
	}
	tpl, err := tc.Templates.Update(c.Request.Context(), id, input)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, tpl)
}

// Delete soft deletes a template
func (tc *TemplateController) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := tc.Templates.Delete(c.Request.Context(), id); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Template deleted successfully"})
}

// Restore brings back a template deleted within the undo window
func (tc *TemplateController) Restore(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	tpl, err := tc.Templates.Restore(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, tpl)
}
