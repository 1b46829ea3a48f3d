package repository

import (
	"context"
	"time"

	"github.com/imyashkale/mcpgateway/internal/database"
	"github.com/imyashkale/mcpgateway/internal/models"
)

type dynamoClientRepository struct {
	db *database.ClientOperations
}

// NewClientRepository creates a new DynamoDB-backed client repository
func NewClientRepository(db *database.ClientOperations) ClientRepository {
	return &dynamoClientRepository{db: db}
}

func (r *dynamoClientRepository) Create(ctx context.Context, app *models.ClientApp) error {
	return r.db.CreateClient(ctx, app)
}

func (r *dynamoClientRepository) Get(ctx context.Context, id string) (*models.ClientApp, error) {
	return r.db.GetClient(ctx, id)
}

func (r *dynamoClientRepository) GetByClientId(ctx context.Context, clientId string) (*models.ClientApp, error) {
	return r.db.GetClientByClientId(ctx, clientId)
}

func (r *dynamoClientRepository) GetAll(ctx context.Context) ([]*models.ClientApp, error) {
	return r.db.GetAllClients(ctx)
}

func (r *dynamoClientRepository) Update(ctx context.Context, app *models.ClientApp, previousName string) error {
	return r.db.UpdateClient(ctx, app, previousName)
}

func (r *dynamoClientRepository) SoftDelete(ctx context.Context, app *models.ClientApp, at time.Time) error {
	return r.db.SoftDeleteClient(ctx, app, at)
}

func (r *dynamoClientRepository) RotateKey(ctx context.Context, id, oldHash, newHash string, at time.Time) error {
	return r.db.RotateAPIKey(ctx, id, oldHash, newHash, at)
}

func (r *dynamoClientRepository) TouchLastAccessed(ctx context.Context, id string, at time.Time) error {
	return r.db.TouchLastAccessed(ctx, id, at)
}

type dynamoUserRepository struct {
	db *database.UserOperations
}

// NewUserRepository creates a new DynamoDB-backed user repository
func NewUserRepository(db *database.UserOperations) UserRepository {
	return &dynamoUserRepository{db: db}
}

func (r *dynamoUserRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.CreateUser(ctx, user)
}

func (r *dynamoUserRepository) Get(ctx context.Context, id string) (*models.User, error) {
	return r.db.GetUser(ctx, id)
}

func (r *dynamoUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.db.GetUserByUsername(ctx, username)
}
