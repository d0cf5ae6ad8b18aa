package server

import (
	"context"
	"errors"
	"fmt"
	"net"

	"google.golang.org/grpc"

	api "github.com/oshokin/desktop-updater/internal/api/grpc/control"
	"github.com/oshokin/desktop-updater/internal/config"
	"github.com/oshokin/desktop-updater/internal/install"
	"github.com/oshokin/desktop-updater/internal/logger"
	"github.com/oshokin/desktop-updater/internal/service/relaunch"
)

// Options controls the control server process and configuration.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// ListenAddress overrides the control address from the configuration.
	ListenAddress string
	// Listener is an already bound listener; it takes precedence over any address.
	Listener net.Listener
	// LogLevel overrides the configured level handed to the helper.
	LogLevel string
}

// errExitCode is returned when the orchestrator requested a non-zero exit.
var errExitCode = errors.New("host exit requested with non-zero code")

// Run serves the UpdaterControl API for the running application until ctx is
// canceled or a successful TriggerUpdateAndRelaunch asks the host to exit.
// Extra orchestrator options are applied before the exit hook.
func Run(ctx context.Context, opts *Options, options ...relaunch.Option) error {
	ctx = logger.WithName(ctx, "control-server")

	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if opts.LogLevel != "" {
		settings.LogLevel = opts.LogLevel
	}

	layout, err := install.Current(settings)
	if err != nil {
		return fmt.Errorf("resolve layout: %w", err)
	}

	ctx, stop := context.WithCancel(ctx)
	defer stop()

	// Only the first exit request counts; the orchestrator refuses a second trigger anyway.
	exitCode := make(chan int, 1)
	requestExit := func(code int) {
		select {
		case exitCode <- code:
		default:
		}

		stop()
	}

	orchestrator, err := relaunch.New(settings, layout, append(options, relaunch.WithExit(requestExit))...)
	if err != nil {
		return fmt.Errorf("initialise orchestrator: %w", err)
	}

	lis, err := listen(ctx, opts, settings.ControlAddress)
	if err != nil {
		return err
	}

	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(logCalls(ctx)))
	api.RegisterUpdaterControlServer(grpcServer, api.NewServer(newService(orchestrator)))

	logger.InfoKV(ctx, "Control server listening",
		"listen_address", lis.Addr().String(),
		"executable", layout.ExecutablePath,
		"staging", layout.StagingPath,
		"install_root", layout.InstallRoot)

	// Done channel is closed after GracefulStop finishes, which also lets an
	// in-flight trigger reply before the listener goes away.
	done := make(chan struct{})

	go func() {
		<-ctx.Done()
		logger.Info(ctx, "Shutting down control server")
		grpcServer.GracefulStop()
		close(done)
	}()

	if err = grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC: %w", err)
	}

	<-done
	logger.Info(ctx, "Control server stopped")

	select {
	case code := <-exitCode:
		if code != 0 {
			return fmt.Errorf("%w: %d", errExitCode, code)
		}

		logger.Info(ctx, "Host exiting for relaunch")
	default:
	}

	return nil
}

// listen returns the pre-bound listener or binds the override or configured address.
func listen(ctx context.Context, opts *Options, configured string) (net.Listener, error) {
	if opts.Listener != nil {
		return opts.Listener, nil
	}

	address := configured
	if opts.ListenAddress != "" {
		address = opts.ListenAddress
	}

	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", address, err)
	}

	return lis, nil
}

// logCalls logs every RPC with its outcome using the server's named logger.
func logCalls(base context.Context) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		resp, err := handler(logger.ToContext(ctx, logger.FromContext(base)), req)
		if err != nil {
			logger.WarnKV(base, "Control call failed", "method", info.FullMethod, "error", err)
		} else {
			logger.DebugKV(base, "Control call served", "method", info.FullMethod)
		}

		return resp, err
	}
}
