// Package registry keeps track of the available decode backends. Backends
// register themselves from their init functions, so importing a backend
// package is what makes it available.
package registry

import (
	"github.com/xaionaro-go/avplayer/pkg/decoder/types"
	xregistry "github.com/xaionaro-go/avplayer/pkg/registry"
)

type BackendFactory interface {
	NewBackend() types.Backend
}

var backendFactories = xregistry.New[BackendFactory]()

func RegisterFactory(
	priority int,
	backendFactory BackendFactory,
) {
	backendFactories.RegisterFactory(priority, backendFactory)
}

// Factories returns the registered factories, the most preferred first.
func Factories() []BackendFactory {
	return backendFactories.Factories()
}
