package mcpclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/imyashkale/mcpgateway/internal/apperror"
	"github.com/imyashkale/mcpgateway/internal/logger"
	"github.com/imyashkale/mcpgateway/internal/models"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
)

type dialer struct {
	opts Options
}

// NewDialer returns a Dialer backed by mcp-go clients
func NewDialer(opts Options) Dialer {
	return &dialer{opts: opts.withDefaults()}
}

func (d *dialer) Open(ctx context.Context, endpoint Endpoint, credential string) (Session, error) {
	var (
		c       *client.Client
		release context.CancelFunc
		err     error
	)

	switch endpoint.Transport {
	case models.TransportSSE, "":
		c, release, err = d.openSSE(ctx, endpoint.URL, credential)
	case models.TransportStreamableHTTP:
		c, err = d.openStreamableHTTP(endpoint.URL, credential)
	case models.TransportStdio:
		if !d.opts.AllowStdio {
			return nil, apperror.New(apperror.KindValidation, "stdio transport is disabled on this gateway")
		}
		c, err = d.openStdio(endpoint.URL, credential)
	default:
		return nil, apperror.Newf(apperror.KindValidation, "unsupported transport %q", endpoint.Transport)
	}
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"transport": endpoint.Transport,
			"error":     err.Error(),
		}).Warn("Failed to open MCP session")

		var appErr *apperror.Error
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, apperror.Wrap(apperror.KindConnect, err, "error connecting to MCP server")
	}

	return newSession(c, endpoint, d.opts, release), nil
}

func bearerHeaders(credential string) map[string]string {
	headers := make(map[string]string)
	if credential != "" {
		headers["Authorization"] = "Bearer " + credential
	}
	return headers
}

// openSSE connects and waits for the endpoint event, at most HandshakeTimeout.
// The stream runs on a child of ctx; the returned release func ends it.
func (d *dialer) openSSE(ctx context.Context, url, credential string) (*client.Client, context.CancelFunc, error) {
	c, err := client.NewSSEMCPClient(url, transport.WithHeaders(bearerHeaders(credential)))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create SSE client: %w", err)
	}

	streamCtx, cancelStream := context.WithCancel(ctx)
	started := make(chan error, 1)
	go func() {
		started <- c.Start(streamCtx)
	}()

	timer := time.NewTimer(d.opts.HandshakeTimeout)
	defer timer.Stop()

	select {
	case err := <-started:
		if err != nil {
			cancelStream()
			_ = c.Close()
			return nil, nil, classify(ctx, err, apperror.KindHandshake, apperror.KindConnect, "failed to start SSE transport")
		}
		return c, cancelStream, nil
	case <-timer.C:
		cancelStream()
		go func() {
			<-started
			_ = c.Close()
		}()
		return nil, nil, apperror.Newf(apperror.KindHandshake, "MCP server did not open the SSE stream within %s", d.opts.HandshakeTimeout)
	}
}

// openStreamableHTTP creates the client; the first request is the handshake
func (d *dialer) openStreamableHTTP(url, credential string) (*client.Client, error) {
	c, err := client.NewStreamableHttpClient(url, transport.WithHTTPHeaders(bearerHeaders(credential)))
	if err != nil {
		return nil, fmt.Errorf("failed to create StreamableHTTP client: %w", err)
	}
	return c, nil
}

// openStdio launches the command line; the process is started by the client constructor
func (d *dialer) openStdio(commandLine, credential string) (*client.Client, error) {
	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty stdio command")
	}

	var env []string
	if credential != "" {
		env = append(env, CredentialEnvVar+"="+credential)
	}

	c, err := client.NewStdioMCPClient(fields[0], env, fields[1:]...)
	if err != nil {
		return nil, fmt.Errorf("failed to create stdio client: %w", err)
	}
	return c, nil
}
