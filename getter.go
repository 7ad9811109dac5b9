package weave

import (
	"context"
	"fmt"
)

// Getter resolves a key on demand from the context it was created for. Each
// call starts a fresh resolution session, so a getter injected into a class
// can point back at that class without forming a cycle.
type Getter struct {
	context  *Context
	key      string
	optional bool
}

func newGetter(c *Context, key string, optional bool) *Getter {
	return &Getter{context: c, key: key, optional: optional}
}

// NewGetter creates a getter for key on c.
func NewGetter(c *Context, key string) *Getter {
	return newGetter(c, key, false)
}

// Get resolves the key.
func (g *Getter) Get(ctx context.Context) (any, error) {
	var opts []ResolveOption
	if g.optional {
		opts = append(opts, WithOptional())
	}

	return g.context.Get(ctx, g.key, opts...)
}

// MustGet resolves the key, panicking on error.
func (g *Getter) MustGet(ctx context.Context) any {
	value, err := g.Get(ctx)
	if err != nil {
		panic(fmt.Sprintf("getter %s failed: %v", g.key, err))
	}

	return value
}

// Key returns the key the getter resolves.
func (g *Getter) Key() string {
	return g.key
}

// IsOptional reports whether a missing key resolves to nil.
func (g *Getter) IsOptional() bool {
	return g.optional
}

// GetterOf resolves g and asserts the result to T.
func GetterOf[T any](ctx context.Context, g *Getter) (T, error) {
	var zero T

	value, err := g.Get(ctx)
	if err != nil {
		return zero, err
	}

	if value == nil {
		return zero, nil
	}

	typed, ok := value.(T)
	if !ok {
		return zero, NewTypeMismatchError("getter "+g.key, fmt.Sprintf("%T", zero), value)
	}

	return typed, nil
}
