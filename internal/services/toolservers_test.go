package services

import (
	"context"
	"testing"

	"github.com/imyashkale/mcpgateway/internal/apperror"
	"github.com/imyashkale/mcpgateway/internal/models"
	"github.com/imyashkale/mcpgateway/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolServerService_Create(t *testing.T) {
	svc, repos := newTestToolServerService(t)
	ctx := context.Background()

	server := createTestServer(t, svc, "tools", true)
	assert.NotEmpty(t, server.Id)
	assert.Equal(t, "layer2-tools", server.APIKey)
	assert.Equal(t, models.HealthUnknown, server.Health)

	stored, err := repos.ToolServers.Get(ctx, server.Id)
	require.NoError(t, err)
	assert.NotEqual(t, "layer2-tools", stored.APIKey, "key must be sealed at rest")
	assert.NotEmpty(t, stored.APIKey)

	_, err = svc.Create(ctx, &models.CreateToolServerRequest{Name: "tools", URL: "http://other:9000"})
	requireKind(t, err, apperror.KindConflict)
	assert.Contains(t, apperror.MessageOf(err), `"tools" already exists`)
}

func TestToolServerService_CreateValidation(t *testing.T) {
	svc, _ := newTestToolServerService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  models.CreateToolServerRequest
		ok   bool
	}{
		{"defaults to sse", models.CreateToolServerRequest{Name: "a", URL: "https://tools.example.com/sse"}, true},
		{"stdio command", models.CreateToolServerRequest{Name: "b", URL: "/usr/local/bin/tools --stdio", Transport: models.TransportStdio}, true},
		{"blank name", models.CreateToolServerRequest{Name: "  ", URL: "http://x"}, false},
		{"relative url", models.CreateToolServerRequest{Name: "c", URL: "/mcp"}, false},
		{"ftp url", models.CreateToolServerRequest{Name: "d", URL: "ftp://tools"}, false},
		{"unknown transport", models.CreateToolServerRequest{Name: "e", URL: "http://x", Transport: "websocket"}, false},
		{"empty url", models.CreateToolServerRequest{Name: "f", URL: ""}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			_, err := svc.Create(ctx, &req)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			requireKind(t, err, apperror.KindValidation)
		})
	}
}

func TestToolServerService_ResolveAndDelete(t *testing.T) {
	svc, _ := newTestToolServerService(t)
	ctx := context.Background()

	enabled := createTestServer(t, svc, "on", true)
	disabled := createTestServer(t, svc, "off", false)

	resolved, err := svc.Resolve(ctx, enabled.Id)
	require.NoError(t, err)
	assert.Equal(t, "layer2-on", resolved.APIKey)

	_, err = svc.Resolve(ctx, disabled.Id)
	requireKind(t, err, apperror.KindDisabled)

	// disabled servers are still readable
	_, err = svc.Get(ctx, disabled.Id)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, enabled.Id))
	_, err = svc.Get(ctx, enabled.Id)
	requireKind(t, err, apperror.KindNotFound)
	_, err = svc.Resolve(ctx, enabled.Id)
	requireKind(t, err, apperror.KindNotFound)

	err = svc.Delete(ctx, enabled.Id)
	requireKind(t, err, apperror.KindNotFound)

	// deleted names can be reused
	createTestServer(t, svc, "on", true)

	ids, err := svc.ActiveServerIds(ctx)
	require.NoError(t, err)
	assert.Len(t, ids, 1)
	assert.NotContains(t, ids, disabled.Id)
}

func TestToolServerService_Update(t *testing.T) {
	svc, _ := newTestToolServerService(t)
	ctx := context.Background()

	first := createTestServer(t, svc, "first", true)
	createTestServer(t, svc, "second", true)

	taken := "second"
	_, err := svc.Update(ctx, first.Id, &models.UpdateToolServerRequest{Name: &taken})
	requireKind(t, err, apperror.KindConflict)

	badURL := "not a url"
	_, err = svc.Update(ctx, first.Id, &models.UpdateToolServerRequest{URL: &badURL})
	requireKind(t, err, apperror.KindValidation)

	name := "renamed"
	key := "rotated-layer2"
	off := false
	updated, err := svc.Update(ctx, first.Id, &models.UpdateToolServerRequest{Name: &name, APIKey: &key, IsEnabled: &off})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Name)
	assert.False(t, updated.Enabled())

	got, err := svc.Get(ctx, first.Id)
	require.NoError(t, err)
	assert.Equal(t, "rotated-layer2", got.APIKey)
	assert.Equal(t, models.StateDisabled, got.State)

	_, err = svc.Update(ctx, "missing", &models.UpdateToolServerRequest{Name: &name})
	requireKind(t, err, apperror.KindNotFound)
}

func TestToolServerService_ListAndHealth(t *testing.T) {
	svc, _ := newTestToolServerService(t)
	ctx := context.Background()

	a := createTestServer(t, svc, "a", true)
	b := createTestServer(t, svc, "b", true)
	require.NoError(t, svc.Delete(ctx, b.Id))

	list, err := svc.List(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, a.Id, list[0].Id)
	assert.Equal(t, "layer2-a", list[0].APIKey)

	at, err := svc.RecordHealth(ctx, a.Id, models.HealthUp)
	require.NoError(t, err)

	got, err := svc.Get(ctx, a.Id)
	require.NoError(t, err)
	assert.Equal(t, models.HealthUp, got.Health)
	require.NotNil(t, got.LastHealthCheck)
	assert.True(t, at.Equal(*got.LastHealthCheck))

	_, err = svc.RecordHealth(ctx, "missing", models.HealthDown)
	requireKind(t, err, apperror.KindNotFound)
}

func TestToolServerService_StdioRequiresOptIn(t *testing.T) {
	box, err := NewSecretBox(testEncryptionKey)
	require.NoError(t, err)
	repos := repository.NewMemoryRepositories(repository.NewMemoryStore())
	svc := NewToolServerService(repos.ToolServers, box, false)
	ctx := context.Background()

	_, err = svc.Create(ctx, &models.CreateToolServerRequest{
		Name:      "local",
		URL:       "/bin/sh -c id",
		Transport: models.TransportStdio,
	})
	requireKind(t, err, apperror.KindValidation)
	assert.Contains(t, apperror.MessageOf(err), "MCP_ALLOW_STDIO")

	server, err := svc.Create(ctx, &models.CreateToolServerRequest{Name: "remote", URL: "http://tools.internal:8080/sse"})
	require.NoError(t, err)

	stdio := models.TransportStdio
	command := "/bin/sh -c id"
	_, err = svc.Update(ctx, server.Id, &models.UpdateToolServerRequest{Transport: &stdio, URL: &command})
	requireKind(t, err, apperror.KindValidation)

	got, err := svc.Get(ctx, server.Id)
	require.NoError(t, err)
	assert.Equal(t, models.TransportSSE, got.Transport)
}

func TestToolServerService_GetByName(t *testing.T) {
	svc, _ := newTestToolServerService(t)
	ctx := context.Background()

	server := createTestServer(t, svc, "search", true)

	got, err := svc.GetByName(ctx, " search ")
	require.NoError(t, err)
	assert.Equal(t, server.Id, got.Id)
	assert.Equal(t, "layer2-search", got.APIKey)

	_, err = svc.GetByName(ctx, "absent")
	requireKind(t, err, apperror.KindNotFound)

	require.NoError(t, svc.Delete(ctx, server.Id))
	_, err = svc.GetByName(ctx, "search")
	requireKind(t, err, apperror.KindNotFound)
}
