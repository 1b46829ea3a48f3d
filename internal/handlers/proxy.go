package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/imyashkale/mcpgateway/internal/logger"
	"github.com/imyashkale/mcpgateway/internal/middleware"
	"github.com/imyashkale/mcpgateway/internal/models"
	"github.com/imyashkale/mcpgateway/internal/services"
)

// ProxyHandler exposes tool operations of registered servers to clients
type ProxyHandler struct {
	proxy *services.ProxyService
}

// NewProxyHandler creates a new proxy handler
func NewProxyHandler(proxy *services.ProxyService) *ProxyHandler {
	return &ProxyHandler{proxy: proxy}
}

// ListTools returns the tools of a server
func (h *ProxyHandler) ListTools(c *gin.Context) {
	resp, err := h.proxy.ListTools(c.Request.Context(), c.Param("serverId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// DescribeTool returns one tool of a server
func (h *ProxyHandler) DescribeTool(c *gin.Context) {
	tool, err := h.proxy.DescribeTool(c.Request.Context(), c.Param("serverId"), c.Param("tool"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tool)
}

// ExecuteTool invokes a tool. The body is the argument map; an empty body
// means no arguments.
func (h *ProxyHandler) ExecuteTool(c *gin.Context) {
	args := models.ToolArguments{}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&args); err != nil {
			respondBindError(c, err)
			return
		}
	}

	serverId := c.Param("serverId")
	toolName := c.Param("tool")

	fields := map[string]interface{}{
		"server_id": serverId,
		"tool":      toolName,
	}
	if client, ok := middleware.CurrentClient(c); ok {
		fields["client_id"] = client.ClientId
	}
	logger.WithFields(fields).Info("Executing tool")

	resp, err := h.proxy.ExecuteTool(c.Request.Context(), serverId, toolName, args)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Reload asks the server to reload itself
func (h *ProxyHandler) Reload(c *gin.Context) {
	resp, err := h.proxy.ReloadServer(c.Request.Context(), c.Param("serverId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
