package weave

import (
	"context"
	"fmt"
)

// BindingKey provides type-safe binding identification.
// Use NewBindingKey to create typed keys for your bindings.
type BindingKey[T any] struct {
	name string
}

// NewBindingKey creates a new typed binding key.
//
// Example:
//
//	var DatabaseKey = NewBindingKey[*Database]("datasources.db")
func NewBindingKey[T any](name string) BindingKey[T] {
	return BindingKey[T]{name: name}
}

// Name returns the string key.
func (k BindingKey[T]) Name() string {
	return k.name
}

func (k BindingKey[T]) String() string {
	return k.name
}

// BindKey binds a typed value producer under key.
//
// Example:
//
//	BindKey(ctx, DatabaseKey, func(rc *ResolutionContext) (*Database, error) {
//	    return &Database{}, nil
//	}).InScope(Singleton)
func BindKey[T any](c *Context, key BindingKey[T], factory func(rc *ResolutionContext) (T, error)) *Binding {
	return c.Bind(key.name).ToDynamicValue(func(rc *ResolutionContext) (any, error) {
		return factory(rc)
	})
}

// GetKey resolves a binding using a typed key.
func GetKey[T any](ctx context.Context, c *Context, key BindingKey[T], opts ...ResolveOption) (T, error) {
	return Get[T](ctx, c, key.name, opts...)
}

// GetKeySync resolves a binding using a typed key without waiting.
func GetKeySync[T any](c *Context, key BindingKey[T], opts ...ResolveOption) (T, error) {
	return GetSync[T](c, key.name, opts...)
}

// MustGetKey resolves a binding using a typed key and panics on error.
func MustGetKey[T any](ctx context.Context, c *Context, key BindingKey[T]) T {
	value, err := GetKey(ctx, c, key)
	if err != nil {
		panic(fmt.Sprintf("failed to resolve %s: %v", key.name, err))
	}

	return value
}

// IsBoundKey reports whether c or an ancestor binds key.
func IsBoundKey[T any](c *Context, key BindingKey[T]) bool {
	return c.IsBound(key.name)
}
