//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"

	api "github.com/oshokin/desktop-updater/internal/api/grpc/control"
	"github.com/oshokin/desktop-updater/internal/config"
)

// Client wraps the UpdaterControl gRPC client with convenience helpers.
type Client struct {
	// conn is the underlying gRPC connection to the host's control server.
	conn *grpc.ClientConn
	// api is the UpdaterControl client interface.
	api api.UpdaterControlClient

	// callTimeout is the default timeout for individual RPC calls.
	callTimeout time.Duration
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for service calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// errAddressRequired is returned when a required address value is missing.
var errAddressRequired = errors.New("address must be provided")

// Dial establishes a gRPC connection to the host's control server.
// The server binds to loopback, so the transport is insecure.
func Dial(_ context.Context, address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	conn, err := grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial control server: %w", err)
	}

	client := &Client{
		conn:        conn,
		api:         api.NewUpdaterControlClient(conn),
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}

	return c.conn.Close()
}

// CurrentVersion returns the host's installed version.
func (c *Client) CurrentVersion(ctx context.Context) (string, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.api.GetCurrentVersion(callCtx, new(emptypb.Empty))
	if err != nil {
		return "", fmt.Errorf("get current version: %w", err)
	}

	return resp.GetValue(), nil
}

// ExecutablePath returns the host's resolved executable path.
func (c *Client) ExecutablePath(ctx context.Context) (string, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.api.GetExecutablePath(callCtx, new(emptypb.Empty))
	if err != nil {
		return "", fmt.Errorf("get executable path: %w", err)
	}

	return resp.GetValue(), nil
}

// PlatformVersion returns the host's platform description.
func (c *Client) PlatformVersion(ctx context.Context) (string, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.api.GetPlatformVersion(callCtx, new(emptypb.Empty))
	if err != nil {
		return "", fmt.Errorf("get platform version: %w", err)
	}

	return resp.GetValue(), nil
}

// TriggerUpdateAndRelaunch asks the host to update and relaunch itself.
// Returned errors match the domain kinds with errors.Is.
func (c *Client) TriggerUpdateAndRelaunch(ctx context.Context) error {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	if _, err := c.api.TriggerUpdateAndRelaunch(callCtx, new(emptypb.Empty)); err != nil {
		return fmt.Errorf("trigger update: %w", api.FromStatus(err))
	}

	return nil
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
