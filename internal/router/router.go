package router

import (
	"github.com/gin-gonic/gin"
	"github.com/imyashkale/mcpgateway/internal/handlers"
	"github.com/imyashkale/mcpgateway/internal/middleware"
)

// Handlers groups every HTTP handler the router mounts
type Handlers struct {
	Health        *handlers.HealthHandler
	Auth          *handlers.AuthHandler
	Clients       *handlers.ClientHandler
	ToolServers   *handlers.ToolServerHandler
	Proxy         *handlers.ProxyHandler
	Registrations *handlers.RegistrationHandler
}

// Guards carries the authentication checks applied to route groups and the
// cross-origin policy
type Guards struct {
	Tokens       middleware.TokenResolver
	Clients      middleware.ClientAuthenticator
	RequireAdmin bool
	CORSOrigins  []string
}

// Setup configures and returns the application router
func Setup(h *Handlers, guards Guards) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())

	router.Use(middleware.CORS(guards.CORSOrigins))

	// API v1 routes
	v1 := router.Group("/api/v1")

	// Liveness and token issuance are open
	v1.GET("/health", h.Health.Check)
	v1.POST("/auth/token", h.Auth.Token)

	// Administrative routes (Layer 0)
	admin := v1.Group("")
	admin.Use(middleware.AdminAuth(guards.Tokens, guards.RequireAdmin))
	{
		admin.POST("/users", h.Auth.CreateUser)
		admin.GET("/users/me", h.Auth.Me)

		clients := admin.Group("/clients")
		{
			clients.POST("", h.Clients.Create)
			clients.GET("", h.Clients.List)
			clients.GET("/:id", h.Clients.Get)
			clients.PUT("/:id", h.Clients.Update)
			clients.DELETE("/:id", h.Clients.Delete)
			clients.POST("/:id/rotate-key", h.Clients.RotateKey)
		}

		servers := admin.Group("/mcp-servers")
		{
			servers.POST("", h.ToolServers.Create)
			servers.GET("", h.ToolServers.List)
			servers.GET("/:id", h.ToolServers.Get)
			servers.PUT("/:id", h.ToolServers.Update)
			servers.DELETE("/:id", h.ToolServers.Delete)
			servers.POST("/:id/health-check", h.ToolServers.HealthCheck)

			servers.POST("/:id/register", h.Registrations.Register)
			servers.DELETE("/:id/register/:buildId", h.Registrations.Unregister)
			servers.GET("/:id/builds", h.Registrations.List)
		}
	}

	// Proxy routes (Layer 1)
	proxy := v1.Group("/mcp-clients")
	proxy.Use(middleware.ClientAuth(guards.Clients))
	{
		proxy.GET("/:serverId/tools", h.Proxy.ListTools)
		proxy.GET("/:serverId/tools/:tool", h.Proxy.DescribeTool)
		proxy.POST("/:serverId/tools/:tool/execute", h.Proxy.ExecuteTool)
		proxy.POST("/:serverId/reload", h.Proxy.Reload)
	}

	return router
}
