package controllers

import (
	"net/http"

	"customsdesk-backend/services"

	"github.com/gin-gonic/gin"
)

type PriceController struct {
	Prices *services.PriceService
}

// Create adds a service to the price list
func (pc *PriceController) Create(c *gin.Context) {
	var input services.PriceInput
	if !bindJSON(c, &input) {
		return
	}
	price, err := pc.Prices.Create(c.Request.Context(), input)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, price)
}

// List retrieves the price list
func (pc *PriceController) List(c *gin.Context) {
	active, ok := queryBool(c, "active")
	if !ok {
		return
	}
	prices, err := pc.Prices.List(c.Request.Context(), services.PriceFilter{
		Category: c.Query("category"),
		Active:   active,
		Search:   c.Query("search"),
	})
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, prices)
}

// Get retrieves a specific price by ID
func (pc *PriceController) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	price, err := pc.Prices.Get(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, price)
}

// Update updates a price and records the change
func (pc *PriceController) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var input services.UpdatePriceInput
	if !bindJSON(c, &input) {
		return
	}
	price, err := pc.Prices.Update(c.Request.Context(), id, input)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, price)
}

// BulkIncrease raises prices by a percentage
func (pc *PriceController) BulkIncrease(c *gin.Context) {
	var input services.BulkIncreaseInput
	if !bindJSON(c, &input) {
		return
	}
	result, err := pc.Prices.BulkIncrease(c.Request.Context(), input)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// History retrieves the price history of a service
func (pc *PriceController) History(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	history, err := pc.Prices.History(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

// Delete soft deletes a price
func (pc *PriceController) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := pc.Prices.Delete(c.Request.Context(), id); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Price deleted successfully"})
}

// Restore brings back a price deleted within the undo window
func (pc *PriceController) Restore(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	price, err := pc.Prices.Restore(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, price)
}
