// Package registry keeps track of the available audio output backends.
// Backends register themselves from their init functions, so importing a
// backend package is what makes it available.
package registry

import (
	"github.com/xaionaro-go/avplayer/pkg/audioout/types"
	xregistry "github.com/xaionaro-go/avplayer/pkg/registry"
)

type OutputFactory interface {
	NewOutput() types.Output
}

var outputFactories = xregistry.New[OutputFactory]()

func RegisterFactory(
	priority int,
	outputFactory OutputFactory,
) {
	outputFactories.RegisterFactory(priority, outputFactory)
}

// Factories returns the registered factories, the most preferred first.
func Factories() []OutputFactory {
	return outputFactories.Factories()
}
