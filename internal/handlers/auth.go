package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/imyashkale/mcpgateway/internal/apperror"
	"github.com/imyashkale/mcpgateway/internal/middleware"
	"github.com/imyashkale/mcpgateway/internal/models"
	"github.com/imyashkale/mcpgateway/internal/services"
)

// AuthHandler handles administrative users and token issuance
type AuthHandler struct {
	users *services.UserService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(users *services.UserService) *AuthHandler {
	return &AuthHandler{users: users}
}

// Token exchanges username and password for a bearer token. The body may be
// JSON or form encoded.
func (h *AuthHandler) Token(c *gin.Context) {
	var req models.TokenRequest
	if err := c.ShouldBind(&req); err != nil {
		respondBindError(c, err)
		return
	}

	token, err := h.users.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if apperror.KindOf(err) == apperror.KindUnauthorized {
			c.Header("WWW-Authenticate", "Bearer")
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, token)
}

// CreateUser registers an administrative user
func (h *AuthHandler) CreateUser(c *gin.Context) {
	var req models.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	user, err := h.users.CreateUser(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, user.ToResponse())
}

// Me returns the user behind the bearer token
func (h *AuthHandler) Me(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		respondError(c, apperror.New(apperror.KindUnauthorized, "not authenticated"))
		return
	}
	c.JSON(http.StatusOK, user.ToResponse())
}
