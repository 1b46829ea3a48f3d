package mcpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/imyashkale/mcpgateway/internal/apperror"
	"github.com/imyashkale/mcpgateway/internal/logger"
	"github.com/imyashkale/mcpgateway/internal/models"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

type session struct {
	client   *client.Client
	endpoint Endpoint
	opts     Options
	release  context.CancelFunc

	closeOnce sync.Once
	closeErr  error
}

func newSession(c *client.Client, endpoint Endpoint, opts Options, release context.CancelFunc) *session {
	return &session{client: c, endpoint: endpoint, opts: opts, release: release}
}

func (s *session) Handshake(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.HandshakeTimeout)
	defer cancel()

	req := mcp.InitializeRequest{
		Params: struct {
			ProtocolVersion string                 `json:"protocolVersion"`
			Capabilities    mcp.ClientCapabilities `json:"capabilities"`
			ClientInfo      mcp.Implementation     `json:"clientInfo"`
		}{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			Capabilities:    mcp.ClientCapabilities{},
			ClientInfo: mcp.Implementation{
				Name:    s.opts.ClientName,
				Version: s.opts.ClientVersion,
			},
		},
	}

	if _, err := s.client.Initialize(ctx, req); err != nil {
		if isConnectFailure(err) {
			return apperror.Wrap(apperror.KindConnect, err, "error connecting to MCP server")
		}
		return apperror.Wrap(apperror.KindHandshake, err, "MCP handshake failed")
	}
	return nil
}

func (s *session) ListCapabilities(ctx context.Context) ([]models.ToolDescriptor, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.InvokeTimeout)
	defer cancel()

	// the client follows nextCursor itself and returns every page
	result, err := s.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, classify(ctx, err, apperror.KindUpstreamTimeout, apperror.KindRemoteExecution, "failed to list tools")
	}

	tools := make([]models.ToolDescriptor, 0, len(result.Tools))
	for _, tool := range result.Tools {
		descriptor, err := toDescriptor(tool)
		if err != nil {
			return nil, apperror.Wrap(apperror.KindRemoteExecution, err, "MCP server returned an invalid tool")
		}
		tools = append(tools, descriptor)
	}
	return tools, nil
}

func (s *session) Invoke(ctx context.Context, name string, args map[string]interface{}) (*models.ToolResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.InvokeTimeout)
	defer cancel()

	if args == nil {
		args = map[string]interface{}{}
	}

	result, err := s.client.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	})
	if err != nil {
		return nil, classify(ctx, err, apperror.KindUpstreamTimeout, apperror.KindRemoteExecution, fmt.Sprintf("tool %s failed", name))
	}

	return toResult(result)
}

func (s *session) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.HandshakeTimeout)
	defer cancel()

	if err := s.client.Ping(ctx); err != nil {
		return classify(ctx, err, apperror.KindUpstreamTimeout, apperror.KindRemoteExecution, "ping failed")
	}
	return nil
}

func (s *session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.client.Close()
		if s.release != nil {
			s.release()
		}
		if s.closeErr != nil {
			logger.WithFields(map[string]interface{}{
				"transport": s.endpoint.Transport,
				"error":     s.closeErr.Error(),
			}).Debug("Error closing MCP session")
		}
	})
	return s.closeErr
}

// toDescriptor keeps the remote input schema byte-for-byte
func toDescriptor(tool mcp.Tool) (models.ToolDescriptor, error) {
	raw, err := json.Marshal(tool)
	if err != nil {
		return models.ToolDescriptor{}, err
	}

	var wire struct {
		Name        string          `json:"name"`
		Description string          `json:"description"`
		InputSchema json.RawMessage `json:"inputSchema"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return models.ToolDescriptor{}, err
	}

	return models.ToolDescriptor{
		Name:        wire.Name,
		Description: wire.Description,
		InputSchema: wire.InputSchema,
	}, nil
}

func toResult(result *mcp.CallToolResult) (*models.ToolResult, error) {
	content := result.Content
	if content == nil {
		content = []mcp.Content{}
	}
	rawContent, err := json.Marshal(content)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindRemoteExecution, err, "MCP server returned invalid content")
	}

	out := &models.ToolResult{
		Content: rawContent,
		IsError: result.IsError,
	}

	if result.StructuredContent != nil {
		structured, err := json.Marshal(result.StructuredContent)
		if err != nil {
			return nil, apperror.Wrap(apperror.KindRemoteExecution, err, "MCP server returned invalid structured content")
		}
		out.StructuredContent = structured
	}

	if result.IsError {
		out.Error = textOf(result.Content)
		if out.Error == "" {
			out.Error = "tool reported an error"
		}
	}
	return out, nil
}

func textOf(content []mcp.Content) string {
	var parts []string
	for _, c := range content {
		if text, ok := mcp.AsTextContent(c); ok {
			parts = append(parts, text.Text)
		}
	}
	return strings.Join(parts, "\n")
}
