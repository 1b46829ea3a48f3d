package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/imyashkale/mcpgateway/internal/handlers"
	"github.com/imyashkale/mcpgateway/internal/logger"
	"github.com/imyashkale/mcpgateway/internal/mcpclient"
	"github.com/imyashkale/mcpgateway/internal/repository"
	"github.com/imyashkale/mcpgateway/internal/services"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	logger.SetOutput(&bytes.Buffer{})
}

// countingDialer wraps the real dialer to count outbound sessions
type countingDialer struct {
	inner mcpclient.Dialer

	mu    sync.Mutex
	dials int
}

func (d *countingDialer) Open(ctx context.Context, endpoint mcpclient.Endpoint, credential string) (mcpclient.Session, error) {
	d.mu.Lock()
	d.dials++
	d.mu.Unlock()
	return d.inner.Open(ctx, endpoint, credential)
}

func (d *countingDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

type toolServer struct {
	*httptest.Server

	mu   sync.Mutex
	auth string
}

func (s *toolServer) lastAuthorization() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.auth
}

func newToolServer(t *testing.T) *toolServer {
	t.Helper()

	mcpSrv := server.NewMCPServer("echo-server", "1.0.0")
	mcpSrv.AddTool(
		mcp.NewTool("echo",
			mcp.WithDescription("Echo the message back"),
			mcp.WithString("msg", mcp.Required()),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args, _ := req.Params.Arguments.(map[string]any)
			msg, _ := args["msg"].(string)
			return mcp.NewToolResultText(msg), nil
		},
	)

	ts := &toolServer{}
	handler := server.NewStreamableHTTPServer(mcpSrv)
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.mu.Lock()
		ts.auth = r.Header.Get("Authorization")
		ts.mu.Unlock()
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(ts.Close)
	return ts
}

type testEnv struct {
	router     *gin.Engine
	dialer     *countingDialer
	adminToken string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	repos := repository.NewMemoryRepositories(repository.NewMemoryStore())

	box, err := services.NewSecretBox("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	tokens, err := services.NewTokenIssuer("router-test-secret", "HS256", 30*time.Minute)
	require.NoError(t, err)

	dialer := &countingDialer{inner: mcpclient.NewDialer(mcpclient.Options{
		HandshakeTimeout: 5 * time.Second,
		InvokeTimeout:    5 * time.Second,
	})}

	users := services.NewUserService(repos.Users, tokens)
	clients := services.NewClientService(repos.Clients)
	servers := services.NewToolServerService(repos.ToolServers, box, false)
	proxy := services.NewProxyService(servers, dialer)
	health := services.NewHealthService(servers, dialer, 0, 1)
	registrations := services.NewRegistrationService(repos.Registrations, repos.ToolServers)

	ctx := context.Background()
	require.NoError(t, users.EnsureUser(ctx, "admin", "admin-password"))
	token, err := users.Authenticate(ctx, "admin", "admin-password")
	require.NoError(t, err)

	r := Setup(&Handlers{
		Health:        handlers.NewHealthHandler("mcp-gateway", "test"),
		Auth:          handlers.NewAuthHandler(users),
		Clients:       handlers.NewClientHandler(clients),
		ToolServers:   handlers.NewToolServerHandler(servers, health),
		Proxy:         handlers.NewProxyHandler(proxy),
		Registrations: handlers.NewRegistrationHandler(registrations),
	}, Guards{
		Tokens:       users,
		Clients:      clients,
		RequireAdmin: true,
	})

	return &testEnv{router: r, dialer: dialer, adminToken: token.AccessToken}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) admin() map[string]string {
	return map[string]string{"Authorization": "Bearer " + e.adminToken}
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (e *testEnv) createClient(t *testing.T, name string) (clientId, apiKey, id string) {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/v1/clients", map[string]interface{}{"client_name": name}, e.admin())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := decode(t, w)
	return body["client_id"].(string), body["api_key"].(string), body["id"].(string)
}

func (e *testEnv) createServer(t *testing.T, name, serverURL string) string {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/v1/mcp-servers", map[string]interface{}{
		"name":           name,
		"server_url":     serverURL,
		"api_key":        "layer2-key",
		"transport_type": "streamable-http",
	}, e.admin())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, true, body["has_api_key"])
	assert.NotContains(t, w.Body.String(), "layer2-key")
	return body["id"].(string)
}

func TestHealthIsOpen(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "test", body["version"])
	assert.Contains(t, body, "uptime_seconds")
}

func TestAdminRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/clients", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "unauthorized", decode(t, w)["error"])

	w = env.do(t, http.MethodGet, "/api/v1/mcp-servers", nil, map[string]string{"Authorization": "Bearer forged"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/users/me", nil, env.admin())
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "admin", decode(t, w)["username"])
}

func TestTokenEndpoint(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/auth/token", map[string]string{"username": "admin", "password": "admin-password"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "bearer", body["token_type"])
	assert.NotEmpty(t, body["access_token"])

	form := url.Values{"username": {"admin"}, "password": {"admin-password"}}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	w = env.do(t, http.MethodPost, "/api/v1/auth/token", map[string]string{"username": "admin", "password": "wrong"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/auth/token", map[string]string{"username": "admin"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation", decode(t, w)["error"])
}

func TestProxyEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	ts := newToolServer(t)

	clientId, apiKey, _ := env.createClient(t, "ci-bot")
	serverId := env.createServer(t, "echo", ts.URL+"/mcp")
	creds := map[string]string{"X-Client-ID": clientId, "X-API-Key": apiKey}

	t.Run("missing credentials", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/v1/mcp-clients/"+serverId+"/tools", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "missing client credentials", decode(t, w)["message"])
	})

	t.Run("list tools", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/v1/mcp-clients/"+serverId+"/tools", nil, creds)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		body := decode(t, w)
		assert.Equal(t, float64(1), body["total"])
		assert.Equal(t, "Bearer layer2-key", ts.lastAuthorization())
	})

	t.Run("describe tool", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/v1/mcp-clients/"+serverId+"/tools/echo", nil, creds)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, "Echo the message back", decode(t, w)["description"])

		w = env.do(t, http.MethodGet, "/api/v1/mcp-clients/"+serverId+"/tools/nope", nil, creds)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "tool_not_found", decode(t, w)["error"])
	})

	t.Run("execute echo", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/v1/mcp-clients/"+serverId+"/tools/echo/execute", map[string]interface{}{"msg": "hello"}, creds)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		body := decode(t, w)
		assert.Equal(t, false, body["is_error"])
		assert.Contains(t, w.Body.String(), "hello")
	})

	t.Run("execute missing tool", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/v1/mcp-clients/"+serverId+"/tools/missing/execute", map[string]interface{}{}, creds)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "tool_not_found", decode(t, w)["error"])
	})

	t.Run("reload unsupported", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/v1/mcp-clients/"+serverId+"/reload", nil, creds)
		assert.Equal(t, http.StatusNotImplemented, w.Code)
		assert.Equal(t, "unsupported_operation", decode(t, w)["error"])
	})

	t.Run("health check", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/v1/mcp-servers/"+serverId+"/health-check", nil, env.admin())
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, "UP", decode(t, w)["status"])
	})

	t.Run("disabled server is never dialed", func(t *testing.T) {
		w := env.do(t, http.MethodPut, "/api/v1/mcp-servers/"+serverId, map[string]interface{}{"is_enabled": false}, env.admin())
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		before := env.dialer.count()
		w = env.do(t, http.MethodGet, "/api/v1/mcp-clients/"+serverId+"/tools", nil, creds)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "disabled", decode(t, w)["error"])
		w = env.do(t, http.MethodPost, "/api/v1/mcp-clients/"+serverId+"/tools/echo/execute", map[string]interface{}{"msg": "x"}, creds)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, before, env.dialer.count())
	})

	t.Run("deleted server is not found", func(t *testing.T) {
		w := env.do(t, http.MethodDelete, "/api/v1/mcp-servers/"+serverId, nil, env.admin())
		require.Equal(t, http.StatusOK, w.Code)

		before := env.dialer.count()
		w = env.do(t, http.MethodGet, "/api/v1/mcp-clients/"+serverId+"/tools", nil, creds)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, before, env.dialer.count())
	})
}

func TestUnreachableServer(t *testing.T) {
	env := newTestEnv(t)
	ts := newToolServer(t)
	target := ts.URL + "/mcp"
	ts.Close()

	clientId, apiKey, _ := env.createClient(t, "ci-bot")
	serverId := env.createServer(t, "gone", target)

	w := env.do(t, http.MethodGet, "/api/v1/mcp-clients/"+serverId+"/tools", nil, map[string]string{"X-Client-ID": clientId, "X-API-Key": apiKey})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/mcp-servers/"+serverId+"/health-check", nil, env.admin())
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "DOWN", decode(t, w)["status"])
}

func TestClientLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ts := newToolServer(t)
	serverId := env.createServer(t, "echo", ts.URL+"/mcp")

	clientId, apiKey, id := env.createClient(t, "ci-bot")
	tools := "/api/v1/mcp-clients/" + serverId + "/tools"

	w := env.do(t, http.MethodPost, "/api/v1/clients", map[string]interface{}{"client_name": "ci-bot"}, env.admin())
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/clients?limit=10", nil, env.admin())
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["total"])
	assert.NotContains(t, w.Body.String(), apiKey)

	w = env.do(t, http.MethodGet, "/api/v1/clients?limit=0", nil, env.admin())
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/clients/"+id+"/rotate-key", nil, env.admin())
	require.Equal(t, http.StatusOK, w.Code)
	newKey := decode(t, w)["api_key"].(string)
	assert.NotEqual(t, apiKey, newKey)

	w = env.do(t, http.MethodGet, tools, nil, map[string]string{"X-Client-ID": clientId, "X-API-Key": apiKey})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = env.do(t, http.MethodGet, tools, nil, map[string]string{"X-Client-ID": clientId, "X-API-Key": newKey})
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPut, "/api/v1/clients/"+id, map[string]interface{}{"is_active": false}, env.admin())
	require.Equal(t, http.StatusOK, w.Code)
	w = env.do(t, http.MethodGet, tools, nil, map[string]string{"X-Client-ID": clientId, "X-API-Key": newKey})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodDelete, "/api/v1/clients/"+id, nil, env.admin())
	require.Equal(t, http.StatusOK, w.Code)
	w = env.do(t, http.MethodGet, "/api/v1/clients/"+id, nil, env.admin())
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRegistrationRoutes(t *testing.T) {
	env := newTestEnv(t)
	serverId := env.createServer(t, "echo", "http://127.0.0.1:1/mcp")
	base := "/api/v1/mcp-servers/" + serverId

	w := env.do(t, http.MethodPost, base+"/register", map[string]string{"build_id": "build-42"}, env.admin())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "build-42", decode(t, w)["build_id"])

	w = env.do(t, http.MethodPost, base+"/register", map[string]string{}, env.admin())
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, base+"/builds", nil, env.admin())
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["total"])

	w = env.do(t, http.MethodDelete, base+"/register/build-42", nil, env.admin())
	assert.Equal(t, http.StatusOK, w.Code)
	w = env.do(t, http.MethodDelete, base+"/register/build-42", nil, env.admin())
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/mcp-servers/unknown/register", map[string]string{"build_id": "b"}, env.admin())
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Zero(t, env.dialer.count())
}

func TestToolServerRoutes(t *testing.T) {
	env := newTestEnv(t)
	id := env.createServer(t, "echo", "http://127.0.0.1:1/mcp")

	w := env.do(t, http.MethodPost, "/api/v1/mcp-servers", map[string]interface{}{
		"name":       "echo",
		"server_url": "http://127.0.0.1:2/mcp",
	}, env.admin())
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "conflict", decode(t, w)["error"])

	w = env.do(t, http.MethodPost, "/api/v1/mcp-servers", map[string]interface{}{"name": "no-url"}, env.admin())
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/mcp-servers/"+id, nil, env.admin())
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "UNKNOWN", decode(t, w)["status"])

	w = env.do(t, http.MethodGet, "/api/v1/mcp-servers?skip=0&limit=5", nil, env.admin())
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["total"])

	w = env.do(t, http.MethodGet, "/api/v1/mcp-servers/missing", nil, env.admin())
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStdioRegistrationIsRejectedByDefault(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/mcp-servers", map[string]interface{}{
		"name":           "shell",
		"server_url":     "/bin/sh -c id",
		"transport_type": "stdio",
	}, env.admin())
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation", decode(t, w)["error"])

	w = env.do(t, http.MethodGet, "/api/v1/mcp-servers", nil, env.admin())
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), decode(t, w)["total"])
	assert.Zero(t, env.dialer.count())
}
