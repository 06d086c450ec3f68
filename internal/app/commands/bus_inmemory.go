package commands

import (
	"context"
	"fmt"
	"maps"
	"slices"
)

type route func(ctx context.Context, cmd Command) (any, error)

// InMemoryBus routes commands by Key to handlers registered at startup.
// Registration is not safe for concurrent use; dispatch is.
type InMemoryBus struct {
	routes map[string]route
}

func NewInMemoryBus() *InMemoryBus {
	return &InMemoryBus{routes: map[string]route{}}
}

func (b *InMemoryBus) Dispatch(ctx context.Context, cmd Command) (any, error) {
	r, ok := b.routes[cmd.Key()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrHandlerNotFound, cmd.Key())
	}
	return r(ctx, cmd)
}

// Keys returns the registered command keys in sorted order.
func (b *InMemoryBus) Keys() []string {
	return slices.Sorted(maps.Keys(b.routes))
}

func (b *InMemoryBus) route(key string, r route) {
	switch {
	case key == "":
		panic("commands: empty key registration")
	case b.routes[key] != nil:
		panic("commands: duplicate registration for " + key)
	}
	b.routes[key] = r
}

// RegisterHandler binds a typed handler to key. It panics on an empty or
// duplicate key.
func RegisterHandler[C Command, R any](bus *InMemoryBus, key string, handler Handler[C, R]) {
	if bus == nil {
		panic(ErrNilBus)
	}
	bus.route(key, func(ctx context.Context, raw Command) (any, error) {
		cmd, ok := raw.(C)
		if !ok {
			return nil, fmt.Errorf("%w: %s got %T", ErrInvalidCommand, key, raw)
		}
		return handler.Handle(ctx, cmd)
	})
}
