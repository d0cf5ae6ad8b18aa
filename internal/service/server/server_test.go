package server

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/desktop-updater/internal/config"
	"github.com/oshokin/desktop-updater/internal/domain/update"
	"github.com/oshokin/desktop-updater/internal/install"
	"github.com/oshokin/desktop-updater/internal/process"
	"github.com/oshokin/desktop-updater/internal/service/common"
	"github.com/oshokin/desktop-updater/internal/service/relaunch"
	"github.com/oshokin/desktop-updater/internal/version"
)

var errSpawn = errors.New("spawn refused")

// recordingLauncher captures launches instead of spawning processes.
type recordingLauncher struct {
	mu   sync.Mutex
	argv [][]string
	err  error
}

func (l *recordingLauncher) Launch(_ context.Context, argv []string) (*process.Handle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.argv = append(l.argv, argv)
	if l.err != nil {
		return nil, l.err
	}

	return &process.Handle{PID: 4321, Detached: true}, nil
}

func (l *recordingLauncher) launches() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.argv)
}

// startServer writes a shell-mode configuration and runs the control server on a loopback port.
func startServer(t *testing.T, launcher process.Launcher) (*common.Client, *config.Config, <-chan error, context.CancelFunc) {
	t.Helper()

	cfg := config.Default()
	cfg.TempDir = t.TempDir()
	cfg.ScriptMode = config.ScriptShell

	configPath := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, config.Save(configPath, cfg))

	lc := net.ListenConfig{}

	lis, err := lc.Listen(context.Background(), "tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	errCh := make(chan error, 1)

	go func() {
		errCh <- Run(ctx, &Options{ConfigPath: configPath, Listener: lis}, relaunch.WithLauncher(launcher))
	}()

	client, err := common.Dial(ctx, lis.Addr().String(), common.WithCallTimeout(5*time.Second))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = client.Close()
	})

	return client, cfg, errCh, cancel
}

func waitStopped(t *testing.T, errCh <-chan error) error {
	t.Helper()

	select {
	case err := <-errCh:
		return err
	case <-time.After(10 * time.Second):
		t.Fatal("control server did not stop")
		return nil
	}
}

// TestRun_Queries answers the host boundary queries for the running binary.
func TestRun_Queries(t *testing.T) {
	t.Parallel()

	client, cfg, errCh, cancel := startServer(t, new(recordingLauncher))
	ctx := context.Background()

	layout, err := install.Current(cfg)
	require.NoError(t, err)

	path, err := client.ExecutablePath(ctx)
	require.NoError(t, err)
	require.Equal(t, layout.ExecutablePath, path)

	current, err := client.CurrentVersion(ctx)
	require.NoError(t, err)
	require.Equal(t, version.Short(), current)

	platform, err := client.PlatformVersion(ctx)
	require.NoError(t, err)
	require.Equal(t, install.PlatformVersion(), platform)

	cancel()
	require.NoError(t, waitStopped(t, errCh))
}

// TestRun_TriggerStopsServer replies to the trigger and then shuts down.
func TestRun_TriggerStopsServer(t *testing.T) {
	t.Parallel()

	launcher := new(recordingLauncher)
	client, cfg, errCh, _ := startServer(t, launcher)

	require.NoError(t, client.TriggerUpdateAndRelaunch(context.Background()))
	require.NoError(t, waitStopped(t, errCh))

	require.Equal(t, 1, launcher.launches())
	require.FileExists(t, cfg.ScriptPath())
}

// TestRun_TriggerFailureKeepsServing reports the kind and stays up.
func TestRun_TriggerFailureKeepsServing(t *testing.T) {
	t.Parallel()

	launcher := &recordingLauncher{err: errSpawn}
	client, cfg, errCh, cancel := startServer(t, launcher)
	ctx := context.Background()

	err := client.TriggerUpdateAndRelaunch(ctx)
	require.ErrorIs(t, err, update.ErrLaunchFailed)

	_, statErr := os.Stat(cfg.ScriptPath())
	require.ErrorIs(t, statErr, os.ErrNotExist)

	_, err = client.ExecutablePath(ctx)
	require.NoError(t, err)

	cancel()
	require.NoError(t, waitStopped(t, errCh))
}

// TestRun_InvalidConfig fails before binding anything.
func TestRun_InvalidConfig(t *testing.T) {
	t.Parallel()

	err := Run(context.Background(), &Options{ConfigPath: filepath.Join(t.TempDir(), "missing.yaml")})
	require.Error(t, err)
}

// TestListen_PrefersOverride binds the override address instead of the configured one.
func TestListen_PrefersOverride(t *testing.T) {
	t.Parallel()

	lis, err := listen(context.Background(), &Options{ListenAddress: "127.0.0.1:0"}, "256.0.0.1:1")
	require.NoError(t, err)
	require.NoError(t, lis.Close())

	_, err = listen(context.Background(), new(Options), "256.0.0.1:1")
	require.Error(t, err)
}
