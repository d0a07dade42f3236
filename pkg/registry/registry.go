// Package registry implements a small priority-ordered factory registry.
// Backends register themselves from init() and callers iterate the
// factories from the most to the least preferred one.
package registry

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
)

type factoryWithPriority[T any] struct {
	Priority int
	Factory  T
}

// Registry keeps factories of one kind, ordered by priority
// (higher priority first).
type Registry[T any] struct {
	locker    sync.Mutex
	factories map[reflect.Type]factoryWithPriority[T]
}

func New[T any]() *Registry[T] {
	return &Registry[T]{
		factories: map[reflect.Type]factoryWithPriority[T]{},
	}
}

// RegisterFactory adds a factory. Registering two factories of the same
// concrete type is a programming error and panics.
func (r *Registry[T]) RegisterFactory(
	priority int,
	factory T,
) {
	t := reflect.ValueOf(factory).Type()
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	r.locker.Lock()
	defer r.locker.Unlock()
	if _, ok := r.factories[t]; ok {
		panic(fmt.Errorf("there is already a registered factory of type %v", t))
	}
	r.factories[t] = factoryWithPriority[T]{
		Priority: priority,
		Factory:  factory,
	}
}

// Factories returns the registered factories, most preferred first.
func (r *Registry[T]) Factories() []T {
	r.locker.Lock()
	defer r.locker.Unlock()

	var factoriesWithPriorities []factoryWithPriority[T]
	for _, factory := range r.factories {
		factoriesWithPriorities = append(factoriesWithPriorities, factory)
	}
	sort.Slice(factoriesWithPriorities, func(i, j int) bool {
		return factoriesWithPriorities[i].Priority > factoriesWithPriorities[j].Priority
	})

	factories := make([]T, 0, len(factoriesWithPriorities))
	for _, factory := range factoriesWithPriorities {
		factories = append(factories, factory.Factory)
	}
	return factories
}
