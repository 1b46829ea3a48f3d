package repository

import (
	"context"
	"time"

	"github.com/imyashkale/mcpgateway/internal/database"
	"github.com/imyashkale/mcpgateway/internal/models"
)

// Re-export errors from database package so services depend on one place
var (
	ErrNotFound        = database.ErrNotFound
	ErrAlreadyExists   = database.ErrAlreadyExists
	ErrConditionFailed = database.ErrConditionFailed
)

// ToolServerRepository defines the interface for tool server operations
type ToolServerRepository interface {
	Create(ctx context.Context, server *models.ToolServer) error
	Get(ctx context.Context, id string) (*models.ToolServer, error)
	GetByName(ctx context.Context, name string) (*models.ToolServer, error)
	GetAll(ctx context.Context) ([]*models.ToolServer, error)
	Update(ctx context.Context, server *models.ToolServer, previousName string) error
	SoftDelete(ctx context.Context, server *models.ToolServer, at time.Time) error
	UpdateHealth(ctx context.Context, id string, status models.HealthStatus, at time.Time) error
}

// ClientRepository defines the interface for client application operations
type ClientRepository interface {
	Create(ctx context.Context, app *models.ClientApp) error
	Get(ctx context.Context, id string) (*models.ClientApp, error)
	GetByClientId(ctx context.Context, clientId string) (*models.ClientApp, error)
	GetAll(ctx context.Context) ([]*models.ClientApp, error)
	Update(ctx context.Context, app *models.ClientApp, previousName string) error
	SoftDelete(ctx context.Context, app *models.ClientApp, at time.Time) error
	RotateKey(ctx context.Context, id, oldHash, newHash string, at time.Time) error
	TouchLastAccessed(ctx context.Context, id string, at time.Time) error
}

// UserRepository defines the interface for user operations
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	Get(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

// RegistrationRepository defines the interface for build registration operations
type RegistrationRepository interface {
	Create(ctx context.Context, reg *models.BuildRegistration) error
	ListByServer(ctx context.Context, serverId string) ([]*models.BuildRegistration, error)
	DeleteOne(ctx context.Context, serverId, buildId string) (*models.BuildRegistration, error)
}

// Repositories bundles every repository the services need
type Repositories struct {
	ToolServers   ToolServerRepository
	Clients       ClientRepository
	Users         UserRepository
	Registrations RegistrationRepository
}

// NewDynamoRepositories wires all repositories to DynamoDB
func NewDynamoRepositories(client *database.Client) *Repositories {
	return &Repositories{
		ToolServers:   NewToolServerRepository(database.NewToolServerOperations(client)),
		Clients:       NewClientRepository(database.NewClientOperations(client)),
		Users:         NewUserRepository(database.NewUserOperations(client)),
		Registrations: NewRegistrationRepository(database.NewRegistrationOperations(client)),
	}
}
