// Package module looks up module ports, directly or through a process wide registry
package module

import "warcdex/internal/modkit"

// Module is modkit.Module, aliased so callers need one import
type Module = modkit.Module
