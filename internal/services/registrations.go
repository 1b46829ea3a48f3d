package services

import (
	"context"
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

// RegistrationService is the ledger of builds registered against tool servers
type RegistrationService struct {
	repo    repository.RegistrationRepository
	servers repository.ToolServerRepository
	now     func() time.Time
}

// NewRegistrationService creates a new RegistrationService instance
func NewRegistrationService(repo repository.RegistrationRepository, servers repository.ToolServerRepository) *RegistrationService {
	return &RegistrationService{
		repo:    repo,
		servers: servers,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Register records a build against a server. The same build id may be
// registered more than once; each call adds a record.
func (s *RegistrationService) Register(ctx context.Context, serverId, buildId string) (*models.BuildRegistration, error) {
	buildId = strings.TrimSpace(buildId)
	if buildId == "" {
		return nil, apperror.New(apperror.KindValidation, "build_id is required")
	}

	if err := s.requireServer(ctx, serverId); err != nil {
		return nil, err
	}

	reg := &models.BuildRegistration{
		Id:           uuid.New().String(),
		ServerId:     serverId,
		BuildId:      buildId,
		RegisteredAt: s.now(),
	}

	if err := s.repo.Create(ctx, reg); err != nil {
		return nil, fmt.Errorf("failed to register build: %w", err)
	}

	logger.WithFields(map[string]interface{}{
		"server_id": serverId,
		"build_id":  buildId,
	}).Info("Build registered")

	return reg, nil
}

// Unregister removes exactly one registration of buildId for the server
func (s *RegistrationService) Unregister(ctx context.Context, serverId, buildId string) error {
	reg, err := s.repo.DeleteOne(ctx, serverId, buildId)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return apperror.Newf(apperror.KindNotFound, "build %s is not registered on MCP server %s", buildId, serverId)
		case errors.Is(err, repository.ErrConditionFailed):
			return apperror.Wrap(apperror.KindConflict, err, "registration was removed concurrently, retry the request")
		}
		return fmt.Errorf("failed to unregister build: %w", err)
	}

	logger.WithFields(map[string]interface{}{
		"server_id":       serverId,
		"build_id":        buildId,
		"registration_id": reg.Id,
	}).Info("Build unregistered")
	return nil
}

// ListForServer returns every registration of a server, oldest first
func (s *RegistrationService) ListForServer(ctx context.Context, serverId string) ([]*models.BuildRegistration, error) {
	if err := s.requireServer(ctx, serverId); err != nil {
		return nil, err
	}

	regs, err := s.repo.ListByServer(ctx, serverId)
	if err != nil {
		return nil, fmt.Errorf("failed to list registrations: %w", err)
	}

	sort.SliceStable(regs, func(i, j int) bool {
		return regs[i].RegisteredAt.Before(regs[j].RegisteredAt)
	})
	return regs, nil
}

func (s *RegistrationService) requireServer(ctx context.Context, serverId string) error {
	server, err := s.servers.Get(ctx, serverId)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.Newf(apperror.KindNotFound, "MCP server %s not found", serverId)
		}
		return fmt.Errorf("failed to get tool server: %w", err)
	}
	if server.State.IsDeleted() {
		return apperror.Newf(apperror.KindNotFound, "MCP server %s not found", serverId)
	}
	return nil
}
