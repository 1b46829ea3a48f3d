package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/imyashkale/mcpgateway/internal/bootstrap"
	"github.com/imyashkale/mcpgateway/internal/config"
	"github.com/imyashkale/mcpgateway/internal/database"
	"github.com/imyashkale/mcpgateway/internal/handlers"
	"github.com/imyashkale/mcpgateway/internal/logger"
	"github.com/imyashkale/mcpgateway/internal/mcpclient"
	"github.com/imyashkale/mcpgateway/internal/repository"
	"github.com/imyashkale/mcpgateway/internal/router"
	"github.com/imyashkale/mcpgateway/internal/services"
)

const (
	serviceName    = "mcp-gateway"
	serviceVersion = "1.0.0"
)

func main() {

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load application configuration
	cfg := config.New()
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	logger.Info("Configuration loaded successfully")

	// Initialize repositories for the configured store
	repos := newRepositories(ctx, cfg)

	// Layer-0 tokens and Layer-2 key encryption
	tokens, err := services.NewTokenIssuer(cfg.JWTSecretKey, cfg.JWTAlgorithm, cfg.AccessTokenTTL())
	if err != nil {
		logger.Fatalf("Failed to initialize token issuer: %v", err)
	}
	box, err := services.NewSecretBox(cfg.ServerKeyEncryptionKey)
	if err != nil {
		logger.Fatalf("Failed to initialize key encryption: %v", err)
	}

	dialer := mcpclient.NewDialer(mcpclient.Options{
		HandshakeTimeout: cfg.HandshakeTimeout,
		InvokeTimeout:    cfg.InvokeTimeout,
		ClientName:       serviceName,
		ClientVersion:    serviceVersion,
		AllowStdio:       cfg.AllowStdio,
	})

	// Initialize services
	userService := services.NewUserService(repos.Users, tokens)
	clientService := services.NewClientService(repos.Clients)
	toolServerService := services.NewToolServerService(repos.ToolServers, box, cfg.AllowStdio)
	proxyService := services.NewProxyService(toolServerService, dialer)
	registrationService := services.NewRegistrationService(repos.Registrations, repos.ToolServers)
	healthService := services.NewHealthService(toolServerService, dialer, cfg.HealthCheckInterval, cfg.HealthCheckWorkers)
	logger.Info("Services initialized")

	seed(ctx, cfg, userService, toolServerService)

	// Start periodic health checks
	healthService.Start(ctx)

	// Setup router
	r := router.Setup(&router.Handlers{
		Health:        handlers.NewHealthHandler(serviceName, serviceVersion),
		Auth:          handlers.NewAuthHandler(userService),
		Clients:       handlers.NewClientHandler(clientService),
		ToolServers:   handlers.NewToolServerHandler(toolServerService, healthService),
		Proxy:         handlers.NewProxyHandler(proxyService),
		Registrations: handlers.NewRegistrationHandler(registrationService),
	}, router.Guards{
		Tokens:       userService,
		Clients:      clientService,
		RequireAdmin: cfg.RequireAdminAuth,
		CORSOrigins:  cfg.CORSAllowedOrigins,
	})

	if cfg.AllowStdio {
		logger.Warn("Stdio tool servers are enabled; registered commands run on this host (MCP_ALLOW_STDIO=true)")
	}
	if !cfg.RequireAdminAuth {
		logger.Warn("Administrative routes accept unauthenticated requests (REQUIRE_ADMIN_AUTH=false)")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("Starting server on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Setup graceful shutdown
	<-ctx.Done()
	logger.Info("Shutting down server gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.InvokeTimeout+5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server shutdown did not complete")
	}

	// Stop the prober after in-flight requests are drained
	healthService.Stop()
	logger.Info("Server stopped")
}

func newRepositories(ctx context.Context, cfg *config.Config) *repository.Repositories {
	if cfg.StoreDriver == config.StoreMemory {
		logger.Warn("Using in-memory store; data is lost on restart")
		return repository.NewMemoryRepositories(repository.NewMemoryStore())
	}

	dbConfig := database.NewConfig(cfg)
	logger.WithFields(map[string]interface{}{
		"region":   dbConfig.Region,
		"endpoint": dbConfig.Endpoint,
	}).Info("Initializing DynamoDB client")

	dbClient, err := database.NewClient(ctx, dbConfig)
	if err != nil {
		logger.Fatalf("Failed to initialize DynamoDB client: %v", err)
	}

	logger.Info("Repositories initialized with DynamoDB backend")
	return repository.NewDynamoRepositories(dbClient)
}

func seed(ctx context.Context, cfg *config.Config, users *services.UserService, servers *services.ToolServerService) {
	if cfg.AdminUsername != "" {
		if err := users.EnsureUser(ctx, cfg.AdminUsername, cfg.AdminPassword); err != nil {
			logger.Fatalf("Failed to create admin user: %v", err)
		}
		logger.WithField("username", cfg.AdminUsername).Info("Admin user ensured")
	}

	if cfg.BootstrapFile == "" {
		return
	}

	s, err := bootstrap.LoadFile(cfg.BootstrapFile)
	if err != nil {
		logger.Fatalf("Failed to load bootstrap file: %v", err)
	}
	if err := bootstrap.Apply(ctx, s, users, servers); err != nil {
		logger.Fatalf("Failed to apply bootstrap file: %v", err)
	}
	logger.WithField("file", cfg.BootstrapFile).Info("Bootstrap file applied")
}
