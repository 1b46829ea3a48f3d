package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/imyashkale/mcpgateway/internal/apperror"
	"github.com/imyashkale/mcpgateway/internal/logger"
	"github.com/imyashkale/mcpgateway/internal/models"
	"github.com/imyashkale/mcpgateway/internal/repository"
)

// ToolServerService manages the tool server registry. Layer-2 keys are sealed
// before they reach the repository and opened on the way out.
type ToolServerService struct {
	repo       repository.ToolServerRepository
	box        *SecretBox
	allowStdio bool
	now        func() time.Time
}

// NewToolServerService creates a new ToolServerService instance. Stdio
// servers are launched on the gateway host, so they are rejected unless
// allowStdio is set.
func NewToolServerService(repo repository.ToolServerRepository, box *SecretBox, allowStdio bool) *ToolServerService {
	return &ToolServerService{
		repo:       repo,
		box:        box,
		allowStdio: allowStdio,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Create registers a new tool server
func (s *ToolServerService) Create(ctx context.Context, req *models.CreateToolServerRequest) (*models.ToolServer, error) {
	server := req.ToDomain()
	server.Id = uuid.New().String()
	server.Name = strings.TrimSpace(server.Name)

	if err := s.validate(server); err != nil {
		return nil, err
	}

	stored, err := s.seal(server)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, stored); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil, apperror.Newf(apperror.KindConflict, "MCP server with name %q already exists", server.Name)
		}
		return nil, fmt.Errorf("failed to create tool server: %w", err)
	}

	logger.WithFields(map[string]interface{}{
		"server_id": server.Id,
		"name":      server.Name,
		"transport": server.Transport,
	}).Info("Tool server registered")

	return server, nil
}

// List returns non-deleted servers ordered by creation time
func (s *ToolServerService) List(ctx context.Context, skip, limit int) ([]*models.ToolServer, error) {
	all, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tool servers: %w", err)
	}

	servers := make([]*models.ToolServer, 0, len(all))
	for _, server := range all {
		if server.State.IsDeleted() {
			continue
		}
		servers = append(servers, server)
	}

	sort.Slice(servers, func(i, j int) bool {
		if servers[i].CreatedAt.Equal(servers[j].CreatedAt) {
			return servers[i].Id < servers[j].Id
		}
		return servers[i].CreatedAt.Before(servers[j].CreatedAt)
	})

	page := paginate(servers, skip, limit)
	for _, server := range page {
		if err := s.open(server); err != nil {
			return nil, err
		}
	}
	return page, nil
}

// Get returns a non-deleted server with its Layer-2 key in plaintext
func (s *ToolServerService) Get(ctx context.Context, id string) (*models.ToolServer, error) {
	server, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.Newf(apperror.KindNotFound, "MCP server %s not found", id)
		}
		return nil, fmt.Errorf("failed to get tool server: %w", err)
	}
	if server.State.IsDeleted() {
		return nil, apperror.Newf(apperror.KindNotFound, "MCP server %s not found", id)
	}

	if err := s.open(server); err != nil {
		return nil, err
	}
	return server, nil
}

// GetByName returns the non-deleted server registered under name
func (s *ToolServerService) GetByName(ctx context.Context, name string) (*models.ToolServer, error) {
	server, err := s.repo.GetByName(ctx, strings.TrimSpace(name))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.Newf(apperror.KindNotFound, "MCP server %q not found", name)
		}
		return nil, fmt.Errorf("failed to get tool server by name: %w", err)
	}
	if server.State.IsDeleted() {
		return nil, apperror.Newf(apperror.KindNotFound, "MCP server %q not found", name)
	}

	if err := s.open(server); err != nil {
		return nil, err
	}
	return server, nil
}

// Resolve returns a server that proxy operations may target: NotFound when
// absent or deleted, Disabled when switched off
func (s *ToolServerService) Resolve(ctx context.Context, id string) (*models.ToolServer, error) {
	server, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !server.Enabled() {
		return nil, apperror.Newf(apperror.KindDisabled, "MCP server %s is disabled", id)
	}
	return server, nil
}

// Update applies a partial update to a server
func (s *ToolServerService) Update(ctx context.Context, id string, req *models.UpdateToolServerRequest) (*models.ToolServer, error) {
	server, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	previousName := server.Name

	req.Apply(server)
	server.Name = strings.TrimSpace(server.Name)
	server.UpdatedAt = s.now()

	if err := s.validate(server); err != nil {
		return nil, err
	}

	stored, err := s.seal(server)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, stored, previousName); err != nil {
		switch {
		case errors.Is(err, repository.ErrAlreadyExists):
			return nil, apperror.Newf(apperror.KindConflict, "MCP server with name %q already exists", server.Name)
		case errors.Is(err, repository.ErrNotFound):
			return nil, apperror.Newf(apperror.KindNotFound, "MCP server %s not found", id)
		case errors.Is(err, repository.ErrConditionFailed):
			return nil, apperror.Wrap(apperror.KindConflict, err, "MCP server was modified concurrently, retry the request")
		}
		return nil, fmt.Errorf("failed to update tool server: %w", err)
	}

	return server, nil
}

// Delete soft-deletes a server; its name becomes available again
func (s *ToolServerService) Delete(ctx context.Context, id string) error {
	server, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.SoftDelete(ctx, server, s.now()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.Newf(apperror.KindNotFound, "MCP server %s not found", id)
		}
		return fmt.Errorf("failed to delete tool server: %w", err)
	}

	logger.WithField("server_id", id).Info("Tool server deleted")
	return nil
}

// RecordHealth stores the outcome of a health probe
func (s *ToolServerService) RecordHealth(ctx context.Context, id string, status models.HealthStatus) (time.Time, error) {
	at := s.now()
	if err := s.repo.UpdateHealth(ctx, id, status, at); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return at, apperror.Newf(apperror.KindNotFound, "MCP server %s not found", id)
		}
		return at, fmt.Errorf("failed to record health: %w", err)
	}
	return at, nil
}

// ActiveServerIds returns the ids of every ACTIVE server
func (s *ToolServerService) ActiveServerIds(ctx context.Context) ([]string, error) {
	all, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tool servers: %w", err)
	}

	ids := make([]string, 0, len(all))
	for _, server := range all {
		if server.Enabled() {
			ids = append(ids, server.Id)
		}
	}
	return ids, nil
}

func (s *ToolServerService) seal(server *models.ToolServer) (*models.ToolServer, error) {
	sealed, err := s.box.Seal(server.APIKey)
	if err != nil {
		return nil, err
	}
	stored := *server
	stored.APIKey = sealed
	return &stored, nil
}

func (s *ToolServerService) open(server *models.ToolServer) error {
	key, err := s.box.Open(server.APIKey)
	if err != nil {
		return fmt.Errorf("failed to open key for server %s: %w", server.Id, err)
	}
	server.APIKey = key
	return nil
}

func (s *ToolServerService) validate(server *models.ToolServer) error {
	if server.Transport == models.TransportStdio && !s.allowStdio {
		return apperror.New(apperror.KindValidation, "stdio transport is disabled on this gateway (set MCP_ALLOW_STDIO=true to enable)")
	}
	return validateToolServer(server)
}

func validateToolServer(server *models.ToolServer) error {
	if server.Name == "" {
		return apperror.New(apperror.KindValidation, "name is required")
	}
	if !server.Transport.Valid() {
		return apperror.Newf(apperror.KindValidation, "transport_type must be one of sse, streamable-http, stdio (got %q)", server.Transport)
	}
	if strings.TrimSpace(server.URL) == "" {
		return apperror.New(apperror.KindValidation, "server_url is required")
	}
	if server.Transport == models.TransportStdio {
		return nil
	}

	u, err := url.Parse(server.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return apperror.Newf(apperror.KindValidation, "server_url %q must be an absolute http(s) URL", server.URL)
	}
	return nil
}
