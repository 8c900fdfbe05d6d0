// Package modkit wires pipeline modules to their dependencies
package modkit

import (
	phttp "warcdex/internal/platform/net/http"
)

// Module is the surface every pipeline module exposes to a binary
type Module interface {
	// MountRoutes mounts the module's status routes
	MountRoutes(r phttp.Router)
	// Ports returns the module's port set for cross wiring
	Ports() any
	// Name is the registry key
	Name() string
}
