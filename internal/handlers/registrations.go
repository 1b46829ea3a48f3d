package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/imyashkale/mcpgateway/internal/models"
	"github.com/imyashkale/mcpgateway/internal/services"
)

// RegistrationHandler handles build registrations against tool servers
type RegistrationHandler struct {
	registrations *services.RegistrationService
}

// NewRegistrationHandler creates a new registration handler
func NewRegistrationHandler(registrations *services.RegistrationService) *RegistrationHandler {
	return &RegistrationHandler{registrations: registrations}
}

// Register records a build against a server
func (h *RegistrationHandler) Register(c *gin.Context) {
	var req models.RegisterBuildRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	reg, err := h.registrations.Register(c.Request.Context(), c.Param("id"), req.BuildId)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, reg.ToResponse())
}

// Unregister removes one registration of a build
func (h *RegistrationHandler) Unregister(c *gin.Context) {
	if err := h.registrations.Unregister(c.Request.Context(), c.Param("id"), c.Param("buildId")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Build unregistered successfully",
	})
}

// List returns every registration of a server
func (h *RegistrationHandler) List(c *gin.Context) {
	regs, err := h.registrations.ListForServer(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	responses := make([]models.BuildRegistrationResponse, 0, len(regs))
	for _, reg := range regs {
		responses = append(responses, reg.ToResponse())
	}

	c.JSON(http.StatusOK, gin.H{
		"server_id": c.Param("id"),
		"builds":    responses,
		"total":     len(responses),
	})
}
