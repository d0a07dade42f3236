package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type factoryA struct{ name string }
type factoryB struct{ name string }
type factoryC struct{ name string }

type namer interface{ Name() string }

func (f factoryA) Name() string { return f.name }
func (f factoryB) Name() string { return f.name }
func (f factoryC) Name() string { return f.name }

func TestRegistryOrdersByPriority(t *testing.T) {
	r := New[namer]()
	r.RegisterFactory(10, factoryA{name: "low"})
	r.RegisterFactory(200, factoryB{name: "high"})
	r.RegisterFactory(100, factoryC{name: "mid"})

	factories := r.Factories()
	require.Len(t, factories, 3)
	assert.Equal(t, "high", factories[0].Name())
	assert.Equal(t, "mid", factories[1].Name())
	assert.Equal(t, "low", factories[2].Name())
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := New[namer]()
	r.RegisterFactory(1, factoryA{})
	assert.Panics(t, func() {
		r.RegisterFactory(2, factoryA{})
	})
}

func TestRegistryEmpty(t *testing.T) {
	r := New[namer]()
	assert.Empty(t, r.Factories())
}
