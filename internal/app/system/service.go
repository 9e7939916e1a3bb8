package system

import "context"

// Service represents a lifecycle-managed component. All application modules
// must implement this interface so the system manager can start and stop them
// deterministically.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// NoopService satisfies Service for modules with no background work.
type NoopService struct {
	ServiceName string
}

func (s NoopService) Name() string                   { return s.ServiceName }
func (s NoopService) Start(_ context.Context) error  { return nil }
func (s NoopService) Stop(_ context.Context) error   { return nil }
