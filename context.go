package weave

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/xraph/go-utils/log"
)

// Context is a named registry of bindings. Keys it does not bind itself are
// delegated to its parent.
type Context struct {
	id     string
	name   string
	parent *Context
	logger log.Logger

	mu         sync.RWMutex
	bindings   map[string]*Binding
	order      []*Binding
	observers  []*Subscription
	nextSubID  uint64
	middleware *middlewareChain
	views      []*ContextView
	closed     bool

	lifecycle lifecycle
}

// NewContext creates a root context. An empty name defaults to the context id.
func NewContext(name string, opts ...ContextOption) *Context {
	return newContext(name, nil, opts)
}

func newContext(name string, parent *Context, opts []ContextOption) *Context {
	o := contextOptions{}
	if parent != nil {
		o.logger = parent.logger
	}

	for _, opt := range opts {
		opt(&o)
	}

	id := uuid.NewString()
	if name == "" {
		name = id
	}

	logger := o.logger
	if logger == nil {
		logger = log.NewNoopLogger()
	} else if parent != nil {
		logger = logger.Named(name)
	}

	c := &Context{
		id:         id,
		name:       name,
		parent:     parent,
		logger:     logger,
		bindings:   make(map[string]*Binding),
		middleware: newMiddlewareChain(),
	}

	for _, mw := range o.middleware {
		c.middleware.add(mw)
	}

	return c
}

// NewChild creates a context whose unresolved keys are delegated to c.
func (c *Context) NewChild(name string, opts ...ContextOption) *Context {
	return newContext(name, c, opts)
}

// ID returns the unique context id.
func (c *Context) ID() string {
	return c.id
}

// Name returns the context name used in error messages.
func (c *Context) Name() string {
	return c.name
}

// Parent returns the parent context, or nil for a root.
func (c *Context) Parent() *Context {
	return c.parent
}

// Logger returns the context logger.
func (c *Context) Logger() log.Logger {
	return c.logger
}

// =============================================================================
// REGISTRY
// =============================================================================

// Bind creates a binding for key in this context, replacing any binding this
// context already holds for key. It panics if the existing binding is locked or
// the context is closed; use Add to get an error instead.
func (c *Context) Bind(key string) *Binding {
	b := NewBinding(key)
	if err := c.Add(b); err != nil {
		panic(err)
	}

	return b
}

// Add registers b, replacing an unlocked binding with the same key. Observers
// receive an unbind event for the replaced binding and then a bind event.
func (c *Context) Add(b *Binding) error {
	c.mu.Lock()

	if c.closed {
		c.mu.Unlock()

		return NewContextClosedError(c.name)
	}

	existing, replaced := c.bindings[b.key]
	if replaced && existing.IsLocked() {
		c.mu.Unlock()

		return NewBindingLockedError(b.key, c.name)
	}

	if replaced {
		c.removeLocked(existing)
	}

	c.bindings[b.key] = b
	c.order = append(c.order, b)
	b.attach(c)
	c.mu.Unlock()

	if replaced {
		existing.detach(c)
		c.logger.Debug("binding replaced", log.String("context", c.name), log.String("key", b.key))
		c.notify(ContextEvent{Type: EventUnbind, Binding: existing, Context: c})
	} else {
		c.logger.Debug("binding added", log.String("context", c.name), log.String("key", b.key))
	}

	c.notify(ContextEvent{Type: EventBind, Binding: b, Context: c})

	return nil
}

// Unbind removes the binding for key from this context only. It returns false
// if this context does not bind key or the binding is locked.
func (c *Context) Unbind(key string) bool {
	c.mu.Lock()

	b, ok := c.bindings[key]
	if !ok || b.IsLocked() {
		c.mu.Unlock()

		return false
	}

	c.removeLocked(b)
	c.mu.Unlock()

	b.detach(c)
	c.logger.Debug("binding removed", log.String("context", c.name), log.String("key", key))
	c.notify(ContextEvent{Type: EventUnbind, Binding: b, Context: c})

	return true
}

// removeLocked must be called with c.mu held.
func (c *Context) removeLocked(b *Binding) {
	delete(c.bindings, b.key)

	for i, candidate := range c.order {
		if candidate == b {
			c.order = append(c.order[:i:i], c.order[i+1:]...)

			break
		}
	}
}

// Contains reports whether this context itself binds key.
func (c *Context) Contains(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.bindings[key]

	return ok
}

// IsBound reports whether this context or any ancestor binds key.
func (c *Context) IsBound(key string) bool {
	_, ok := c.lookup(key)

	return ok
}

// GetBinding returns the binding for key from this context or the nearest ancestor.
func (c *Context) GetBinding(key string) (*Binding, error) {
	b, ok := c.lookup(key)
	if !ok {
		return nil, NewBindingNotFoundError(key, c.name)
	}

	return b, nil
}

func (c *Context) lookup(key string) (*Binding, bool) {
	for ctx := c; ctx != nil; ctx = ctx.parent {
		ctx.mu.RLock()
		b, ok := ctx.bindings[key]
		ctx.mu.RUnlock()

		if ok {
			return b, true
		}
	}

	return nil, false
}

// Keys returns the keys bound in this context, in registration order.
func (c *Context) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, len(c.order))
	for i, b := range c.order {
		keys[i] = b.key
	}

	return keys
}

// Find returns the bindings matching filter. This context's bindings come
// first, then each ancestor's, each group in registration order. Ancestor
// bindings shadowed by a closer key are skipped.
func (c *Context) Find(filter BindingFilter) []*Binding {
	if filter == nil {
		filter = All()
	}

	var result []*Binding

	seen := make(map[string]struct{})

	for ctx := c; ctx != nil; ctx = ctx.parent {
		ctx.mu.RLock()
		own := make([]*Binding, len(ctx.order))
		copy(own, ctx.order)
		ctx.mu.RUnlock()

		for _, b := range own {
			if _, shadowed := seen[b.key]; shadowed {
				continue
			}

			seen[b.key] = struct{}{}

			if filter(b) {
				result = append(result, b)
			}
		}
	}

	return result
}

// FindByTag returns the bindings carrying tag.
func (c *Context) FindByTag(tag string) []*Binding {
	return c.Find(ByTag(tag))
}

// Use appends middleware invoked around every binding resolution requested
// from this context or its descendants.
func (c *Context) Use(mw ...Middleware) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, m := range mw {
		c.middleware.add(m)
	}
}

// =============================================================================
// RESOLUTION
// =============================================================================

// Get resolves key, waiting for asynchronous producers. ctx bounds the wait only.
func (c *Context) Get(ctx context.Context, key string, opts ...ResolveOption) (any, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	o := newResolveOptions(opts)

	session := o.session
	if session == nil {
		session = NewResolutionSession()
	}

	return c.resolveKey(&resolution{ctx: ctx, context: c, session: session}, key, o.optional)
}

// GetAsync starts resolving key and returns a future for the result.
func (c *Context) GetAsync(ctx context.Context, key string, opts ...ResolveOption) *Future {
	f := newFuture(true)

	go func() {
		f.settle(c.Get(ctx, key, opts...))
	}()

	return f
}

// GetSync resolves key without waiting. It fails with ErrAsyncResolution when
// any step of the resolution is asynchronous.
func (c *Context) GetSync(key string, opts ...ResolveOption) (any, error) {
	o := newResolveOptions(opts)

	session := newSyncSession()
	if o.session != nil {
		session = o.session

		previous := session.sync
		session.sync = true

		defer func() { session.sync = previous }()
	}

	return c.resolveKey(&resolution{ctx: context.Background(), context: c, session: session}, key, o.optional)
}

// resolveKey resolves key on behalf of r.context, the requesting context.
func (c *Context) resolveKey(r *resolution, key string, optional bool) (any, error) {
	if c.isClosed() {
		return nil, NewContextClosedError(c.name)
	}

	b, ok := c.lookup(key)
	if !ok {
		if optional {
			return nil, nil
		}

		return nil, NewBindingNotFoundError(key, c.name)
	}

	return c.resolveBinding(r, b)
}

// resolveBinding runs middleware from the root down to the requesting context
// around the binding's own resolution.
func (c *Context) resolveBinding(r *resolution, b *Binding) (any, error) {
	chain := r.context.middlewareChain()

	value, err := chain.run(r.ctx, b.key, func(ctx context.Context) (any, error) {
		nested := *r
		nested.ctx = ctx

		return b.resolve(&nested)
	})
	if err != nil {
		c.logger.Debug("binding resolution failed",
			log.String("context", c.name),
			log.String("key", b.key),
			log.String("error", err.Error()),
		)
	}

	return value, err
}

func (c *Context) middlewareChain() *middlewareChain {
	var chains []*middlewareChain
	for ctx := c; ctx != nil; ctx = ctx.parent {
		ctx.mu.RLock()
		chains = append(chains, ctx.middleware.clone())
		ctx.mu.RUnlock()
	}

	merged := newMiddlewareChain()
	for i := len(chains) - 1; i >= 0; i-- {
		for _, mw := range chains[i].middleware {
			merged.add(mw)
		}
	}

	return merged
}

func (c *Context) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.closed
}

// =============================================================================
// VIEWS & OBSERVERS
// =============================================================================

// CreateView returns a live view of the bindings matching filter.
func (c *Context) CreateView(filter BindingFilter) *ContextView {
	view := newContextView(c, filter)

	c.mu.Lock()
	c.views = append(c.views, view)
	c.mu.Unlock()

	view.open()

	return view
}

func (c *Context) forgetView(view *ContextView) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, v := range c.views {
		if v == view {
			c.views = append(c.views[:i:i], c.views[i+1:]...)

			return
		}
	}
}

// Subscribe registers an observer for bind, unbind and change events of this
// context. Observers run synchronously in subscription order.
func (c *Context) Subscribe(observer ContextObserver) *Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextSubID++
	sub := &Subscription{id: c.nextSubID, context: c, observer: observer}
	c.observers = append(c.observers, sub)

	return sub
}

// Unsubscribe removes a subscription. It returns false if it was not active.
func (c *Context) Unsubscribe(sub *Subscription) bool {
	if sub == nil {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i, s := range c.observers {
		if s == sub {
			c.observers = append(c.observers[:i:i], c.observers[i+1:]...)

			return true
		}
	}

	return false
}

// notify delivers ev to a snapshot of the current observers, outside the lock.
func (c *Context) notify(ev ContextEvent) {
	c.mu.RLock()
	observers := make([]*Subscription, len(c.observers))
	copy(observers, c.observers)
	c.mu.RUnlock()

	for _, sub := range observers {
		sub.observer.Observe(ev)
	}
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// Close stops started services owned by this context in reverse start order,
// disposes disposable values, closes views created from it and drops the
// context-scoped values it requested. Close is idempotent.
func (c *Context) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()

		return nil
	}

	c.closed = true
	views := make([]*ContextView, len(c.views))
	copy(views, c.views)
	c.mu.Unlock()

	for _, view := range views {
		view.Close()
	}

	err := c.lifecycle.shutdown(ctx, c.id)
	c.logger.Debug("context closed", log.String("context", c.name))

	return err
}

// Health checks every managed value implementing di.HealthChecker.
func (c *Context) Health(ctx context.Context) error {
	return c.lifecycle.health(ctx)
}

func (c *Context) manage(ctx context.Context, key string, value any) error {
	return c.lifecycle.manage(ctx, c.logger, key, value)
}

func (c *Context) trackScoped(b *Binding) {
	c.lifecycle.trackScoped(b)
}
