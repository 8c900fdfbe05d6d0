// Package module wires the batch relay
package module

import (
	"warcdex/internal/modkit"
	phttp "warcdex/internal/platform/net/http"
	"warcdex/internal/services/relay/domain"
	"warcdex/internal/services/relay/service"
)

// Name is the registry key of the relay module
const Name = "relay"

// Ports defines the relay module ports
type Ports struct {
	Relay domain.RelayPort
}

// Module implements the relay module
type Module struct {
	deps  modkit.Deps
	opts  Options
	ports Ports
}

// New constructs the relay module from CORE_RELAY_* config
// Invalid options are a setup fault and returned as a validation error.
func New(deps modkit.Deps) (*Module, error) {
	opts := FromConfig(deps.Cfg)
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	svc := service.New(service.Config{
		Endpoint:       opts.Endpoint,
		BatchSize:      opts.BatchSize,
		RetryDelay:     opts.RetryDelay,
		FatalThreshold: opts.FatalThreshold,
		ContentType:    opts.ContentType,
		Timeout:        opts.Timeout,
	}, nil)
	return &Module{deps: deps, opts: opts, ports: Ports{Relay: svc}}, nil
}

var _ modkit.Module = (*Module)(nil)

// Name returns the module name
func (m *Module) Name() string { return Name }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// Relay returns the relay port
func (m *Module) Relay() domain.RelayPort { return m.ports.Relay }

// Options returns the options the module was built with
func (m *Module) Options() Options { return m.opts }

// MountRoutes is a no-op, the relay has no routes
func (m *Module) MountRoutes(_ phttp.Router) {}
