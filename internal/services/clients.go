package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/imyashkale/mcpgateway/internal/apperror"
	"github.com/imyashkale/mcpgateway/internal/logger"
	"github.com/imyashkale/mcpgateway/internal/models"
	"github.com/imyashkale/mcpgateway/internal/repository"
)

const apiKeyPrefix = "mcp_"

// ClientService manages client applications and performs the Layer-1 check
type ClientService struct {
	repo repository.ClientRepository
	now  func() time.Time
}

// NewClientService creates a new ClientService instance
func NewClientService(repo repository.ClientRepository) *ClientService {
	return &ClientService{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Create registers a client and returns its plaintext key, which is never retrievable again
func (s *ClientService) Create(ctx context.Context, req *models.CreateClientRequest) (*models.ClientCredentials, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperror.New(apperror.KindValidation, "client_name is required")
	}

	rateLimit := req.RateLimit
	if rateLimit == "" {
		rateLimit = models.DefaultRateLimit
	}
	limit, err := models.ParseRateLimit(rateLimit)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindValidation, err, err.Error())
	}

	clientId, err := generateClientId(name)
	if err != nil {
		return nil, err
	}
	apiKey, err := generateAPIKey()
	if err != nil {
		return nil, err
	}

	now := s.now()
	app := &models.ClientApp{
		Id:          uuid.New().String(),
		Name:        name,
		ClientId:    clientId,
		APIKeyHash:  hashAPIKey(apiKey),
		Description: req.Description,
		State:       models.StateActive,
		RateLimit:   limit,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, app); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil, apperror.Newf(apperror.KindConflict, "client with name %q already exists", name)
		}
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	logger.WithFields(map[string]interface{}{
		"id":        app.Id,
		"client_id": app.ClientId,
	}).Info("Client created")

	return &models.ClientCredentials{Client: app, APIKey: apiKey}, nil
}

// List returns non-deleted clients ordered by creation time. Inactive
// clients are included only when includeInactive is set.
func (s *ClientService) List(ctx context.Context, skip, limit int, includeInactive bool) ([]*models.ClientApp, error) {
	all, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}

	apps := make([]*models.ClientApp, 0, len(all))
	for _, app := range all {
		if app.State.IsDeleted() {
			continue
		}
		if !includeInactive && !app.State.IsActive() {
			continue
		}
		apps = append(apps, app)
	}

	sort.Slice(apps, func(i, j int) bool {
		if apps[i].CreatedAt.Equal(apps[j].CreatedAt) {
			return apps[i].Id < apps[j].Id
		}
		return apps[i].CreatedAt.Before(apps[j].CreatedAt)
	})

	return paginate(apps, skip, limit), nil
}

// Get returns a non-deleted client by its internal id
func (s *ClientService) Get(ctx context.Context, id string) (*models.ClientApp, error) {
	app, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.Newf(apperror.KindNotFound, "client %s not found", id)
		}
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	if app.State.IsDeleted() {
		return nil, apperror.Newf(apperror.KindNotFound, "client %s not found", id)
	}
	return app, nil
}

// Update applies a partial update to a client
func (s *ClientService) Update(ctx context.Context, id string, req *models.UpdateClientRequest) (*models.ClientApp, error) {
	app, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	previousName := app.Name

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, apperror.New(apperror.KindValidation, "client_name must not be empty")
		}
		app.Name = name
	}
	if req.Description != nil {
		app.Description = *req.Description
	}
	if req.RateLimit != nil {
		limit, err := models.ParseRateLimit(*req.RateLimit)
		if err != nil {
			return nil, apperror.Wrap(apperror.KindValidation, err, err.Error())
		}
		app.RateLimit = limit
	}
	if req.IsActive != nil {
		if *req.IsActive {
			app.State = models.StateActive
		} else {
			app.State = models.StateDisabled
		}
	}
	app.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, app, previousName); err != nil {
		switch {
		case errors.Is(err, repository.ErrAlreadyExists):
			return nil, apperror.Newf(apperror.KindConflict, "client with name %q already exists", app.Name)
		case errors.Is(err, repository.ErrNotFound):
			return nil, apperror.Newf(apperror.KindNotFound, "client %s not found", id)
		case errors.Is(err, repository.ErrConditionFailed):
			return nil, apperror.Wrap(apperror.KindConflict, err, "client was modified concurrently, retry the request")
		}
		return nil, fmt.Errorf("failed to update client: %w", err)
	}

	return app, nil
}

// Delete soft-deletes a client, which also deactivates it
func (s *ClientService) Delete(ctx context.Context, id string) error {
	app, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.SoftDelete(ctx, app, s.now()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.Newf(apperror.KindNotFound, "client %s not found", id)
		}
		return fmt.Errorf("failed to delete client: %w", err)
	}

	logger.WithField("id", id).Info("Client deleted")
	return nil
}

// RotateKey replaces the client's key in one conditional write. The old key
// stops working at the moment the write lands; there is no grace period.
func (s *ClientService) RotateKey(ctx context.Context, id string) (*models.ClientCredentials, error) {
	app, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	apiKey, err := generateAPIKey()
	if err != nil {
		return nil, err
	}
	newHash := hashAPIKey(apiKey)
	now := s.now()

	if err := s.repo.RotateKey(ctx, app.Id, app.APIKeyHash, newHash, now); err != nil {
		if errors.Is(err, repository.ErrConditionFailed) {
			return nil, apperror.Wrap(apperror.KindConflict, err, "client key was rotated concurrently, retry the request")
		}
		return nil, fmt.Errorf("failed to rotate client key: %w", err)
	}

	app.APIKeyHash = newHash
	app.UpdatedAt = now

	logger.WithField("id", id).Info("Client API key rotated")
	return &models.ClientCredentials{Client: app, APIKey: apiKey}, nil
}

// Authenticate performs the Layer-1 check for a client id and API key
func (s *ClientService) Authenticate(ctx context.Context, clientId, apiKey string) (*models.ClientApp, error) {
	invalid := apperror.New(apperror.KindUnauthorized, "invalid client credentials")

	app, err := s.repo.GetByClientId(ctx, clientId)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, invalid
		}
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	if app.State.IsDeleted() {
		return nil, invalid
	}

	presented := hashAPIKey(apiKey)
	if subtle.ConstantTimeCompare([]byte(presented), []byte(app.APIKeyHash)) != 1 {
		return nil, invalid
	}

	if !app.State.IsActive() {
		return nil, apperror.New(apperror.KindForbidden, "client is inactive")
	}

	now := s.now()
	if err := s.repo.TouchLastAccessed(ctx, app.Id, now); err != nil {
		logger.WithError(err).WithField("client_id", clientId).Warn("Failed to record client access time")
	} else {
		app.LastAccessedAt = &now
	}

	return app, nil
}

func hashAPIKey(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:])
}

func randomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// generateClientId builds "<slug>_<random>" from the client name
func generateClientId(name string) (string, error) {
	suffix, err := randomToken(8)
	if err != nil {
		return "", err
	}
	slug := strings.NewReplacer(" ", "_", "-", "_").Replace(strings.ToLower(name))
	return slug + "_" + suffix, nil
}

func generateAPIKey() (string, error) {
	token, err := randomToken(32)
	if err != nil {
		return "", err
	}
	return apiKeyPrefix + token, nil
}

// paginate applies skip/limit; limit <= 0 means no limit
func paginate[T any](items []T, skip, limit int) []T {
	if skip < 0 {
		skip = 0
	}
	if skip >= len(items) {
		return []T{}
	}
	items = items[skip:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
