package services

import (
	"context"
	"errors"

	"github.com/imyashkale/mcpgateway/internal/apperror"
	"github.com/imyashkale/mcpgateway/internal/logger"
	"github.com/imyashkale/mcpgateway/internal/mcpclient"
	"github.com/imyashkale/mcpgateway/internal/models"
)

const reloadToolName = "reload"

// ProxyService forwards tool operations to registered servers. Every
// operation opens its own session and closes it before returning.
type ProxyService struct {
	servers *ToolServerService
	dialer  mcpclient.Dialer
}

// NewProxyService creates a new ProxyService instance
func NewProxyService(servers *ToolServerService, dialer mcpclient.Dialer) *ProxyService {
	return &ProxyService{
		servers: servers,
		dialer:  dialer,
	}
}

// withSession resolves the server, opens and handshakes a session, runs fn
// and closes the session on every path. Nothing is dialed for a server
// that is missing, deleted or disabled.
func (p *ProxyService) withSession(ctx context.Context, serverId string, fn func(mcpclient.Session) error) error {
	server, err := p.servers.Resolve(ctx, serverId)
	if err != nil {
		return err
	}

	endpoint := mcpclient.Endpoint{URL: server.URL, Transport: server.Transport}
	session, err := p.dialer.Open(ctx, endpoint, server.APIKey)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			logger.WithField("server_id", serverId).Debugf("Session close returned: %v", cerr)
		}
	}()

	if err := session.Handshake(ctx); err != nil {
		logger.WithFields(map[string]interface{}{
			"server_id": serverId,
			"error":     err.Error(),
		}).Warn("MCP handshake failed")
		return err
	}

	return fn(session)
}

// ListTools returns the tools advertised by a server
func (p *ProxyService) ListTools(ctx context.Context, serverId string) (*models.ToolListResponse, error) {
	var tools []models.ToolDescriptor
	err := p.withSession(ctx, serverId, func(s mcpclient.Session) error {
		var err error
		tools, err = s.ListCapabilities(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &models.ToolListResponse{
		ServerId: serverId,
		Tools:    tools,
		Total:    len(tools),
	}, nil
}

// DescribeTool returns one tool by exact name
func (p *ProxyService) DescribeTool(ctx context.Context, serverId, toolName string) (*models.ToolDescriptor, error) {
	var tool *models.ToolDescriptor
	err := p.withSession(ctx, serverId, func(s mcpclient.Session) error {
		var err error
		tool, err = findTool(ctx, s, serverId, toolName)
		return err
	})
	if err != nil {
		return nil, err
	}
	return tool, nil
}

// ExecuteTool invokes a tool after checking that the server advertises it.
// Failures reported by the remote side are returned inside the envelope.
func (p *ProxyService) ExecuteTool(ctx context.Context, serverId, toolName string, args models.ToolArguments) (*models.ExecuteToolResponse, error) {
	var resp *models.ExecuteToolResponse
	err := p.withSession(ctx, serverId, func(s mcpclient.Session) error {
		if _, err := findTool(ctx, s, serverId, toolName); err != nil {
			return err
		}

		result, err := s.Invoke(ctx, toolName, args)
		if err != nil {
			if !errors.Is(err, apperror.ErrRemoteExecution) {
				return err
			}
			result = &models.ToolResult{
				Content: []byte("[]"),
				IsError: true,
				Error:   apperror.MessageOf(err),
			}
			if cause := errors.Unwrap(err); cause != nil {
				result.Error = cause.Error()
			}
		}

		if result.IsError {
			logger.WithFields(map[string]interface{}{
				"server_id": serverId,
				"tool":      toolName,
			}).Info("Tool reported an error")
		}

		resp = &models.ExecuteToolResponse{
			ServerId:   serverId,
			Tool:       toolName,
			ToolResult: *result,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// ReloadServer asks the server to reload by calling its reload tool. Any
// failure of that call means the server does not support reloading.
func (p *ProxyService) ReloadServer(ctx context.Context, serverId string) (map[string]string, error) {
	err := p.withSession(ctx, serverId, func(s mcpclient.Session) error {
		result, err := s.Invoke(ctx, reloadToolName, map[string]interface{}{})
		if err != nil {
			return apperror.Wrap(apperror.KindUnsupportedOperation, err, "reload is not supported by this MCP server")
		}
		if result.IsError {
			return apperror.Newf(apperror.KindUnsupportedOperation, "reload is not supported by this MCP server: %s", result.Error)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.WithField("server_id", serverId).Info("Reload command sent")
	return map[string]string{"status": "Reload command sent successfully."}, nil
}

func findTool(ctx context.Context, s mcpclient.Session, serverId, toolName string) (*models.ToolDescriptor, error) {
	tools, err := s.ListCapabilities(ctx)
	if err != nil {
		return nil, err
	}
	for i := range tools {
		if tools[i].Name == toolName {
			return &tools[i], nil
		}
	}
	return nil, apperror.Newf(apperror.KindToolNotFound, "tool %s not found on MCP server %s", toolName, serverId)
}
