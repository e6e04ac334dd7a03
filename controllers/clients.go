package controllers

import (
	"net/http"

	"customsdesk-backend/services"

	"github.com/gin-gonic/gin"
)

type ClientController struct {
	Clients *services.ClientService
}

// Create creates a new client
func (cc *ClientController) Create(c *gin.Context) {
	var input services.CreateClientInput
	if !bindJSON(c, &input) {
		return
	}
	client, err := cc.Clients.Create(c.Request.Context(), input)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, client)
}

// List supports ?search= and ?active=true|false.
func (cc *ClientController) List(c *gin.Context) {
	active, ok := queryBool(c, "active")
	if !ok {
		return
	}
	clients, err := cc.Clients.List(c.Request.Context(), services.ClientFilter{Search: c.Query("search"), Active: active})
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, clients)
}

// Get retrieves a specific client by ID
func (cc *ClientController) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	client, err := cc.Clients.Get(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, client)
}

// Update updates an existing client
func (cc *ClientController) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var input services.UpdateClientInput
	if !bindJSON(c, &input) {
		return
	}
	client, err := cc.Clients.Update(c.Request.Context(), id, input)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, client)
}

// Delete soft deletes a client
func (cc *ClientController) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := cc.Clients.Delete(c.Request.Context(), id); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Client deleted successfully"})
}

// Restore brings back a client deleted within the undo window
func (cc *ClientController) Restore(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	client, err := cc.Clients.Restore(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, client)
}
