package server

import (
	"context"

	"github.com/oshokin/desktop-updater/internal/install"
	"github.com/oshokin/desktop-updater/internal/logger"
	"github.com/oshokin/desktop-updater/internal/service/relaunch"
)

// service exposes the host boundary operations of the running application.
// It is unexported to keep the transport decoupled from the implementation.
type service struct {
	// orchestrator owns the resolved layout and the relaunch protocol.
	orchestrator *relaunch.Orchestrator
}

// newService creates a service backed by the provided orchestrator.
func newService(orchestrator *relaunch.Orchestrator) *service {
	return &service{
		orchestrator: orchestrator,
	}
}

// CurrentVersion returns the version of the installed application.
func (s *service) CurrentVersion(context.Context) string {
	return install.CurrentVersion(s.orchestrator.Layout())
}

// ExecutablePath returns the resolved path of the running executable.
func (s *service) ExecutablePath(context.Context) string {
	return s.orchestrator.Layout().ExecutablePath
}

// PlatformVersion returns "<OS name> <release>" of the host.
func (s *service) PlatformVersion(context.Context) string {
	return install.PlatformVersion()
}

// TriggerUpdateAndRelaunch hands the update to a detached helper. On success
// the serve loop is asked to stop.
func (s *service) TriggerUpdateAndRelaunch(ctx context.Context) error {
	logger.Info(ctx, "Update and relaunch requested")

	return s.orchestrator.Trigger(ctx)
}
