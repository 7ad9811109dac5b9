package weave

import "github.com/xraph/go-utils/log"

// ContextOption configures a context at creation.
type ContextOption func(*contextOptions)

type contextOptions struct {
	logger     log.Logger
	middleware []Middleware
}

// WithLogger sets the context logger. Children inherit it, named after themselves.
func WithLogger(logger log.Logger) ContextOption {
	return func(o *contextOptions) {
		o.logger = logger
	}
}

// WithMiddleware installs resolution middleware on the new context.
func WithMiddleware(mw ...Middleware) ContextOption {
	return func(o *contextOptions) {
		o.middleware = append(o.middleware, mw...)
	}
}

// ResolveOption configures a single resolution.
type ResolveOption func(*resolveOptions)

type resolveOptions struct {
	optional bool
	session  *ResolutionSession
}

// WithOptional makes a missing key resolve to nil instead of failing.
func WithOptional() ResolveOption {
	return func(o *resolveOptions) {
		o.optional = true
	}
}

// WithSession resolves within an existing session, sharing its cycle detection.
func WithSession(session *ResolutionSession) ResolveOption {
	return func(o *resolveOptions) {
		o.session = session
	}
}

func newResolveOptions(opts []ResolveOption) resolveOptions {
	var o resolveOptions
	for _, opt := range opts {
		opt(&o)
	}

	return o
}
