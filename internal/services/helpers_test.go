package services

import (
	"context"
	"sync"
	"testing"

	"github.com/imyashkale/mcpgateway/internal/apperror"
	"github.com/imyashkale/mcpgateway/internal/mcpclient"
	"github.com/imyashkale/mcpgateway/internal/models"
	"github.com/imyashkale/mcpgateway/internal/repository"
	"github.com/stretchr/testify/require"
)

const testEncryptionKey = "0123456789abcdef0123456789abcdef"

// fakeDialer counts dials and serves a fixed tool set
type fakeDialer struct {
	mu          sync.Mutex
	dials       int
	closes      int
	credentials []string
	endpoints   []mcpclient.Endpoint

	openErr      error
	handshakeErr error
	pingErr      error
	tools        []models.ToolDescriptor
	invoke       func(name string, args map[string]interface{}) (*models.ToolResult, error)
	invoked      []string
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{
		tools: []models.ToolDescriptor{
			{Name: "echo", Description: "Echo the message back", InputSchema: []byte(`{"type":"object"}`)},
		},
		invoke: func(name string, args map[string]interface{}) (*models.ToolResult, error) {
			msg, _ := args["msg"].(string)
			return &models.ToolResult{Content: []byte(`[{"type":"text","text":"` + msg + `"}]`)}, nil
		},
	}
}

func (d *fakeDialer) Open(_ context.Context, endpoint mcpclient.Endpoint, credential string) (mcpclient.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.dials++
	d.credentials = append(d.credentials, credential)
	d.endpoints = append(d.endpoints, endpoint)
	if d.openErr != nil {
		return nil, d.openErr
	}
	return &fakeSession{d: d}, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) closeCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closes
}

type fakeSession struct {
	d      *fakeDialer
	closed bool
}

func (s *fakeSession) Handshake(context.Context) error {
	return s.d.handshakeErr
}

func (s *fakeSession) ListCapabilities(context.Context) ([]models.ToolDescriptor, error) {
	return s.d.tools, nil
}

func (s *fakeSession) Invoke(_ context.Context, name string, args map[string]interface{}) (*models.ToolResult, error) {
	s.d.mu.Lock()
	s.d.invoked = append(s.d.invoked, name)
	s.d.mu.Unlock()
	return s.d.invoke(name, args)
}

func (s *fakeSession) Ping(context.Context) error {
	return s.d.pingErr
}

func (s *fakeSession) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.d.mu.Lock()
	s.d.closes++
	s.d.mu.Unlock()
	return nil
}

func newTestToolServerService(t *testing.T) (*ToolServerService, *repository.Repositories) {
	t.Helper()

	box, err := NewSecretBox(testEncryptionKey)
	require.NoError(t, err)

	repos := repository.NewMemoryRepositories(repository.NewMemoryStore())
	return NewToolServerService(repos.ToolServers, box, true), repos
}

func createTestServer(t *testing.T, svc *ToolServerService, name string, enabled bool) *models.ToolServer {
	t.Helper()

	server, err := svc.Create(context.Background(), &models.CreateToolServerRequest{
		Name:      name,
		URL:       "http://tools.internal:8080/mcp",
		APIKey:    "layer2-" + name,
		Transport: models.TransportStreamableHTTP,
		IsEnabled: &enabled,
	})
	require.NoError(t, err)
	return server
}

func requireKind(t *testing.T, err error, kind apperror.Kind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, apperror.KindOf(err), "error: %v", err)
}
