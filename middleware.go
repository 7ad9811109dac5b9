package weave

import "context"

// Middleware provides hooks around every binding resolution.
// Middleware can be used for logging, metrics, tracing, security, testing, etc.
type Middleware interface {
	// BeforeResolve is called before resolving a binding.
	// The returned context is used for the resolution and passed to AfterResolve.
	// Return error to abort resolution.
	BeforeResolve(ctx context.Context, key string) (context.Context, error)

	// AfterResolve is called after resolving a binding.
	// Called even if resolution failed (value and err may both be set).
	AfterResolve(ctx context.Context, key string, value any, err error) error
}

// middlewareChain manages multiple middleware.
type middlewareChain struct {
	middleware []Middleware
}

// newMiddlewareChain creates a new middleware chain.
func newMiddlewareChain() *middlewareChain {
	return &middlewareChain{
		middleware: make([]Middleware, 0),
	}
}

// add appends middleware to the chain.
func (m *middlewareChain) add(middleware Middleware) {
	m.middleware = append(m.middleware, middleware)
}

func (m *middlewareChain) clone() *middlewareChain {
	mw := make([]Middleware, len(m.middleware))
	copy(mw, m.middleware)

	return &middlewareChain{middleware: mw}
}

// run nests the chain around resolve: the first middleware added is the
// outermost, and each AfterResolve sees the context its BeforeResolve returned.
func (m *middlewareChain) run(ctx context.Context, key string, resolve func(ctx context.Context) (any, error)) (any, error) {
	return m.runFrom(0, ctx, key, resolve)
}

func (m *middlewareChain) runFrom(i int, ctx context.Context, key string, resolve func(ctx context.Context) (any, error)) (any, error) {
	if i == len(m.middleware) {
		return resolve(ctx)
	}

	mw := m.middleware[i]

	next, err := mw.BeforeResolve(ctx, key)
	if err != nil {
		return nil, err
	}

	if next == nil {
		next = ctx
	}

	value, err := m.runFrom(i+1, next, key, resolve)

	if mwErr := mw.AfterResolve(next, key, value, err); mwErr != nil {
		return nil, mwErr
	}

	return value, err
}

// FuncMiddleware wraps functions as Middleware.
type FuncMiddleware struct {
	BeforeResolveFunc func(ctx context.Context, key string) (context.Context, error)
	AfterResolveFunc  func(ctx context.Context, key string, value any, err error) error
}

// BeforeResolve implements Middleware.
func (f *FuncMiddleware) BeforeResolve(ctx context.Context, key string) (context.Context, error) {
	if f.BeforeResolveFunc != nil {
		return f.BeforeResolveFunc(ctx, key)
	}
	return ctx, nil
}

// AfterResolve implements Middleware.
func (f *FuncMiddleware) AfterResolve(ctx context.Context, key string, value any, err error) error {
	if f.AfterResolveFunc != nil {
		return f.AfterResolveFunc(ctx, key, value, err)
	}
	return nil
}
