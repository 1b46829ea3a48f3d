package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/imyashkale/mcpgateway/internal/models"
	"github.com/imyashkale/mcpgateway/internal/services"
)

// ToolServerHandler handles tool server registry requests
type ToolServerHandler struct {
	servers *services.ToolServerService
	health  *services.HealthService
}

// NewToolServerHandler creates a new tool server handler
func NewToolServerHandler(servers *services.ToolServerService, health *services.HealthService) *ToolServerHandler {
	return &ToolServerHandler{
		servers: servers,
		health:  health,
	}
}

// Create handles registering a new tool server
func (h *ToolServerHandler) Create(c *gin.Context) {
	var req models.CreateToolServerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	server, err := h.servers.Create(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, server.ToResponse())
}

// List handles listing tool servers
func (h *ToolServerHandler) List(c *gin.Context) {
	skip, limit, err := pageParams(c)
	if err != nil {
		respondError(c, err)
		return
	}

	servers, err := h.servers.List(c.Request.Context(), skip, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	responses := make([]models.ToolServerResponse, 0, len(servers))
	for _, server := range servers {
		responses = append(responses, server.ToResponse())
	}

	c.JSON(http.StatusOK, models.ToolServerListResponse{
		Servers: responses,
		Total:   len(responses),
	})
}

// Get handles retrieving a single tool server by ID
func (h *ToolServerHandler) Get(c *gin.Context) {
	server, err := h.servers.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, server.ToResponse())
}

// Update handles a partial update of a tool server
func (h *ToolServerHandler) Update(c *gin.Context) {
	var req models.UpdateToolServerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	server, err := h.servers.Update(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, server.ToResponse())
}

// Delete handles soft-deleting a tool server
func (h *ToolServerHandler) Delete(c *gin.Context) {
	if err := h.servers.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "MCP server deleted successfully",
	})
}

// HealthCheck probes the server now and records the result
func (h *ToolServerHandler) HealthCheck(c *gin.Context) {
	resp, err := h.health.CheckNow(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
