package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/imyashkale/mcpgateway/internal/models"
	"github.com/imyashkale/mcpgateway/internal/services"
)

// ClientHandler handles client application management
type ClientHandler struct {
	clients *services.ClientService
}

// NewClientHandler creates a new client handler
func NewClientHandler(clients *services.ClientService) *ClientHandler {
	return &ClientHandler{clients: clients}
}

// Create registers a client. The API key appears in this response only.
func (h *ClientHandler) Create(c *gin.Context) {
	var req models.CreateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	creds, err := h.clients.Create(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, creds.ToResponse())
}

// List returns clients with skip/limit paging
func (h *ClientHandler) List(c *gin.Context) {
	skip, limit, err := pageParams(c)
	if err != nil {
		respondError(c, err)
		return
	}
	includeInactive, err := boolQuery(c, "include_inactive")
	if err != nil {
		respondError(c, err)
		return
	}

	apps, err := h.clients.List(c.Request.Context(), skip, limit, includeInactive)
	if err != nil {
		respondError(c, err)
		return
	}

	responses := make([]models.ClientResponse, 0, len(apps))
	for _, app := range apps {
		responses = append(responses, app.ToResponse())
	}

	c.JSON(http.StatusOK, models.ClientListResponse{
		Clients: responses,
		Total:   len(responses),
	})
}

// Get returns one client
func (h *ClientHandler) Get(c *gin.Context) {
	app, err := h.clients.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.ToResponse())
}

// Update applies a partial update
func (h *ClientHandler) Update(c *gin.Context) {
	var req models.UpdateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	app, err := h.clients.Update(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.ToResponse())
}

// Delete soft-deletes a client
func (h *ClientHandler) Delete(c *gin.Context) {
	if err := h.clients.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Client deleted successfully",
	})
}

// RotateKey issues a new API key; the old one stops working immediately
func (h *ClientHandler) RotateKey(c *gin.Context) {
	creds, err := h.clients.RotateKey(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, creds.ToResponse())
}
