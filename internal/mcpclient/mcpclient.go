// Package mcpclient opens short-lived MCP sessions to registered tool servers.
// A session is used for exactly one gateway operation and closed afterwards.
package mcpclient

import (
	"context"
	"errors"
	"net"
	"syscall"
	"time"

	"github.com/imyashkale/mcpgateway/internal/apperror"
	"github.com/imyashkale/mcpgateway/internal/models"
)

// Endpoint describes where and how to reach a tool server. For stdio
// servers URL holds the command line to launch.
type Endpoint struct {
	URL       string
	Transport models.TransportKind
}

// Dialer opens sessions
type Dialer interface {
	// Open connects to the endpoint, presenting credential (may be empty).
	// Failures carry apperror.KindConnect, or KindHandshake when an SSE
	// stream does not open within the handshake timeout.
	Open(ctx context.Context, endpoint Endpoint, credential string) (Session, error)
}

// Session is one live connection to a tool server
type Session interface {
	// Handshake performs capability negotiation under the handshake timeout
	Handshake(ctx context.Context) error
	ListCapabilities(ctx context.Context) ([]models.ToolDescriptor, error)
	// Invoke calls a remote tool under the invoke timeout. A tool that
	// reports failure returns a result with IsError set, not an error.
	Invoke(ctx context.Context, name string, args map[string]interface{}) (*models.ToolResult, error)
	Ping(ctx context.Context) error
	// Close is idempotent; the underlying connection is closed exactly once
	Close() error
}

// Options configures sessions opened by the default Dialer
type Options struct {
	HandshakeTimeout time.Duration
	InvokeTimeout    time.Duration
	ClientName       string
	ClientVersion    string
	// AllowStdio permits launching local commands for stdio servers
	AllowStdio bool
}

func (o Options) withDefaults() Options {
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = 10 * time.Second
	}
	if o.InvokeTimeout <= 0 {
		o.InvokeTimeout = 30 * time.Second
	}
	if o.ClientName == "" {
		o.ClientName = "mcp-gateway"
	}
	if o.ClientVersion == "" {
		o.ClientVersion = "1.0.0"
	}
	return o
}

// CredentialEnvVar carries the Layer-2 key to stdio servers
const CredentialEnvVar = "MCP_API_KEY"

// isConnectFailure reports whether err means the remote could not be reached at all
func isConnectFailure(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// classify maps a transport error to a caller-visible kind. Timeouts map to
// timeoutKind, unreachable remotes to KindConnect, everything else to fallback.
func classify(ctx context.Context, err error, timeoutKind, fallback apperror.Kind, message string) error {
	switch {
	case isTimeout(ctx, err):
		return apperror.Wrap(timeoutKind, err, message+": timed out")
	case isConnectFailure(err):
		return apperror.Wrap(apperror.KindConnect, err, "error connecting to MCP server")
	default:
		return apperror.Wrap(fallback, err, message)
	}
}
