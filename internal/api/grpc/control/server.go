package control

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/oshokin/desktop-updater/internal/domain/update"
)

// Service abstracts the host boundary operations the transport layer depends on.
type Service interface {
	CurrentVersion(ctx context.Context) string
	ExecutablePath(ctx context.Context) string
	PlatformVersion(ctx context.Context) string
	TriggerUpdateAndRelaunch(ctx context.Context) error
}

// Server implements the UpdaterControl gRPC API.
type Server struct {
	// service provides the host boundary operations.
	service Service
}

// NewServer wires the provided service implementation into a gRPC handler.
func NewServer(service Service) *Server {
	return &Server{
		service: service,
	}
}

// GetCurrentVersion returns the installed application version.
func (s *Server) GetCurrentVersion(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.StringValue, error) {
	return wrapperspb.String(s.service.CurrentVersion(ctx)), nil
}

// GetExecutablePath returns the resolved executable path of the host.
func (s *Server) GetExecutablePath(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.StringValue, error) {
	return wrapperspb.String(s.service.ExecutablePath(ctx)), nil
}

// GetPlatformVersion returns "<OS name> <release>".
func (s *Server) GetPlatformVersion(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.StringValue, error) {
	return wrapperspb.String(s.service.PlatformVersion(ctx)), nil
}

// TriggerUpdateAndRelaunch starts the relaunch protocol. A successful reply
// means the helper is running and the host is about to exit.
func (s *Server) TriggerUpdateAndRelaunch(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	if err := s.service.TriggerUpdateAndRelaunch(ctx); err != nil {
		return nil, ToStatus(err)
	}

	return new(emptypb.Empty), nil
}

// kindSeparator splits the kind prefix from the message in status errors.
const kindSeparator = ": "

// ToStatus converts a domain error into a gRPC status whose message is
// prefixed with the error kind, so clients can recover the sentinel.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}

	var code codes.Code

	switch {
	case errors.Is(err, update.ErrPermissionDenied):
		code = codes.PermissionDenied
	case errors.Is(err, update.ErrScriptWriteFailed), errors.Is(err, update.ErrLaunchFailed):
		code = codes.FailedPrecondition
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	default:
		code = codes.Internal
	}

	return status.Error(code, update.KindOf(err)+kindSeparator+err.Error())
}

// FromStatus maps a status produced by ToStatus back to an error that
// matches the original kind with errors.Is.
func FromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok || st.Code() == codes.OK {
		return err
	}

	kind, _, found := strings.Cut(st.Message(), kindSeparator)
	if !found {
		return err
	}

	if sentinel := update.FromKind(kind); sentinel != nil {
		return &kindError{kind: sentinel, err: err}
	}

	return err
}

// kindError carries both the transport error and the recovered kind.
type kindError struct {
	kind error
	err  error
}

func (e *kindError) Error() string {
	return e.err.Error()
}

func (e *kindError) Unwrap() []error {
	return []error{e.kind, e.err}
}
