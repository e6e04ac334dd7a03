package controllers

import (
	"net/http"

	"customsdesk-backend/services"

	"github.com/gin-gonic/gin"
)

type SettingsController struct {
	Settings *services.SettingsService
}

// Get retrieves the business settings
func (sc *SettingsController) Get(c *gin.Context) {
	st, err := sc.Settings.Get(c.Request.Context())
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// Update updates the business settings
func (sc *SettingsController) Update(c *gin.Context) {
	var input services.SettingsInput
	if !bindJSON(c, &input) {
		return
	}
	st, err := sc.Settings.Update(c.Request.Context(), input)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}
