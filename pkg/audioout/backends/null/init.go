package null

import (
	"github.com/xaionaro-go/avplayer/pkg/audioout/registry"
	"github.com/xaionaro-go/avplayer/pkg/audioout/types"
)

const (
	Priority = 10
)

func init() {
	registry.RegisterFactory(Priority, OutputFactory{})
}

type OutputFactory struct{}

func (OutputFactory) NewOutput() types.Output {
	return NewOutput()
}
