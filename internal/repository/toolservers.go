package repository

import (
	"context"
	"time"

	"github.com/imyashkale/mcpgateway/internal/database"
	"github.com/imyashkale/mcpgateway/internal/models"
)

// dynamoToolServerRepository implements ToolServerRepository using DynamoDB
type dynamoToolServerRepository struct {
	db *database.ToolServerOperations
}

// NewToolServerRepository creates a new DynamoDB-backed tool server repository
func NewToolServerRepository(db *database.ToolServerOperations) ToolServerRepository {
	return &dynamoToolServerRepository{
		db: db,
	}
}

// Create creates a new tool server
func (r *dynamoToolServerRepository) Create(ctx context.Context, server *models.ToolServer) error {
	return r.db.CreateToolServer(ctx, server)
}

// Get retrieves a tool server by ID
func (r *dynamoToolServerRepository) Get(ctx context.Context, id string) (*models.ToolServer, error) {
	return r.db.GetToolServer(ctx, id)
}

// GetByName retrieves the non-deleted tool server with the given name
func (r *dynamoToolServerRepository) GetByName(ctx context.Context, name string) (*models.ToolServer, error) {
	return r.db.GetToolServerByName(ctx, name)
}

// GetAll retrieves all tool servers
func (r *dynamoToolServerRepository) GetAll(ctx context.Context) ([]*models.ToolServer, error) {
	return r.db.GetAllToolServers(ctx)
}

// Update replaces a tool server
func (r *dynamoToolServerRepository) Update(ctx context.Context, server *models.ToolServer, previousName string) error {
	return r.db.UpdateToolServer(ctx, server, previousName)
}

// SoftDelete marks a tool server deleted
func (r *dynamoToolServerRepository) SoftDelete(ctx context.Context, server *models.ToolServer, at time.Time) error {
	return r.db.SoftDeleteToolServer(ctx, server, at)
}

// UpdateHealth records a health probe result
func (r *dynamoToolServerRepository) UpdateHealth(ctx context.Context, id string, status models.HealthStatus, at time.Time) error {
	return r.db.UpdateHealth(ctx, id, status, at)
}
