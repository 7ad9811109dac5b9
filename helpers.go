package weave

import (
	"context"
	"fmt"
)

// Get resolves key with type safety. A nil value (optional miss) yields the zero T.
func Get[T any](ctx context.Context, c *Context, key string, opts ...ResolveOption) (T, error) {
	value, err := c.Get(ctx, key, opts...)
	if err != nil {
		var zero T

		return zero, err
	}

	return typed[T](key, value)
}

// GetSync resolves key with type safety without waiting.
func GetSync[T any](c *Context, key string, opts ...ResolveOption) (T, error) {
	value, err := c.GetSync(key, opts...)
	if err != nil {
		var zero T

		return zero, err
	}

	return typed[T](key, value)
}

// Must resolves or panics - use only during startup.
func Must[T any](ctx context.Context, c *Context, key string) T {
	value, err := Get[T](ctx, c, key)
	if err != nil {
		panic(fmt.Sprintf("failed to resolve %s: %v", key, err))
	}

	return value
}

// ResolveView resolves every value of view as T.
func ResolveView[T any](ctx context.Context, view *ContextView, opts ...ResolveOption) ([]T, error) {
	values, err := view.Resolve(ctx, opts...)
	if err != nil {
		return nil, err
	}

	result := make([]T, 0, len(values))
	for i, value := range values {
		item, err := typed[T](fmt.Sprintf("view[%d]", i), value)
		if err != nil {
			return nil, err
		}

		result = append(result, item)
	}

	return result, nil
}

// FindValues resolves every binding visible from c that matches filter.
func FindValues[T any](ctx context.Context, c *Context, filter BindingFilter) ([]T, error) {
	view := c.CreateView(filter)
	defer view.Close()

	return ResolveView[T](ctx, view)
}

// BindValue binds a fixed value under key.
func BindValue[T any](c *Context, key string, value T) *Binding {
	return c.Bind(key).To(value)
}

// BindFactory binds a typed synchronous factory under key.
func BindFactory[T any](c *Context, key string, factory func(rc *ResolutionContext) (T, error)) *Binding {
	return c.Bind(key).ToDynamicValue(func(rc *ResolutionContext) (any, error) {
		return factory(rc)
	})
}

// BindSingleton binds a typed factory whose value is computed once.
func BindSingleton[T any](c *Context, key string, factory func(rc *ResolutionContext) (T, error)) *Binding {
	return BindFactory(c, key, factory).InScope(Singleton)
}

// BindAsync binds a typed asynchronous factory under key.
func BindAsync[T any](c *Context, key string, factory func(ctx context.Context, rc *ResolutionContext) (T, error)) *Binding {
	return c.Bind(key).ToAsyncValue(func(ctx context.Context, rc *ResolutionContext) (any, error) {
		return factory(ctx, rc)
	})
}

func typed[T any](key string, value any) (T, error) {
	var zero T

	if value == nil {
		return zero, nil
	}

	result, ok := value.(T)
	if !ok {
		return zero, NewTypeMismatchError(key, fmt.Sprintf("%T", zero), value)
	}

	return result, nil
}
