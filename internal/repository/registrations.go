package repository

import (
	"context"

	"github.com/imyashkale/mcpgateway/internal/database"
	"github.com/imyashkale/mcpgateway/internal/models"
)

// dynamoRegistrationRepository implements RegistrationRepository using DynamoDB
type dynamoRegistrationRepository struct {
	db *database.RegistrationOperations
}

// NewRegistrationRepository creates a new DynamoDB-backed registration repository
func NewRegistrationRepository(db *database.RegistrationOperations) RegistrationRepository {
	return &dynamoRegistrationRepository{
		db: db,
	}
}

// Create inserts a registration record
func (r *dynamoRegistrationRepository) Create(ctx context.Context, reg *models.BuildRegistration) error {
	return r.db.CreateRegistration(ctx, reg)
}

// ListByServer returns all registrations for a server
func (r *dynamoRegistrationRepository) ListByServer(ctx context.Context, serverId string) ([]*models.BuildRegistration, error) {
	return r.db.GetRegistrationsByServerId(ctx, serverId)
}

// DeleteOne removes exactly one matching registration
func (r *dynamoRegistrationRepository) DeleteOne(ctx context.Context, serverId, buildId string) (*models.BuildRegistration, error) {
	return r.db.DeleteRegistration(ctx, serverId, buildId)
}
