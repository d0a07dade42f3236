package libav

import (
	"github.com/xaionaro-go/avplayer/pkg/decoder/registry"
	"github.com/xaionaro-go/avplayer/pkg/decoder/types"
)

const (
	Priority = 100
)

func init() {
	registry.RegisterFactory(Priority, BackendFactory{})
}

type BackendFactory struct{}

func (BackendFactory) NewBackend() types.Backend {
	return NewBackend()
}
