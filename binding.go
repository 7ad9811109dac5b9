package weave

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/xraph/go-utils/di"
	"github.com/xraph/go-utils/errs"
)

// ProducerKind identifies how a binding produces its value.
type ProducerKind int

const (
	// ProducerNone means the binding has not been given a value yet.
	ProducerNone ProducerKind = iota
	// ProducerValue returns a fixed value.
	ProducerValue
	// ProducerFactory calls a synchronous factory.
	ProducerFactory
	// ProducerAsyncFactory calls a factory on its own goroutine.
	ProducerAsyncFactory
	// ProducerClass instantiates a class with injection.
	ProducerClass
	// ProducerProvider instantiates a class and asks it for the value.
	ProducerProvider
	// ProducerAlias forwards to another key.
	ProducerAlias
)

func (k ProducerKind) String() string {
	switch k {
	case ProducerValue:
		return "value"
	case ProducerFactory:
		return "factory"
	case ProducerAsyncFactory:
		return "async-factory"
	case ProducerClass:
		return "class"
	case ProducerProvider:
		return "provider"
	case ProducerAlias:
		return "alias"
	default:
		return "none"
	}
}

// DynamicValueFunc produces a value synchronously.
type DynamicValueFunc func(rc *ResolutionContext) (any, error)

// AsyncValueFunc produces a value on its own goroutine. ctx is detached from the
// caller's cancellation.
type AsyncValueFunc func(ctx context.Context, rc *ResolutionContext) (any, error)

// Provider is implemented by classes bound with ToProvider.
type Provider interface {
	Value(rc *ResolutionContext) (any, error)
}

// Binding describes how to produce the value for a key.
type Binding struct {
	key string

	mu      sync.RWMutex
	scope   Scope
	kind    ProducerKind
	value   any
	factory DynamicValueFunc
	async   AsyncValueFunc
	class   *Class
	alias   string
	tags    map[string]struct{}
	locked  bool
	owner   *Context

	// cache holds the in-flight or settled singleton value.
	cache *Future
	// scoped holds context-scoped values keyed by requesting context id.
	scoped map[string]*Future
}

// NewBinding creates a detached transient binding. Use Context.Add to register it.
func NewBinding(key string) *Binding {
	return &Binding{
		key:    key,
		scope:  Transient,
		tags:   make(map[string]struct{}),
		scoped: make(map[string]*Future),
	}
}

// Key returns the binding key.
func (b *Binding) Key() string {
	return b.key
}

// Scope returns the configured scope.
func (b *Binding) Scope() Scope {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.scope
}

// Kind returns the kind of producer configured.
func (b *Binding) Kind() ProducerKind {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.kind
}

// ValueClass returns the class of a ToClass binding, or nil.
func (b *Binding) ValueClass() *Class {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.kind != ProducerClass {
		return nil
	}

	return b.class
}

// ProviderClass returns the class of a ToProvider binding, or nil.
func (b *Binding) ProviderClass() *Class {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.kind != ProducerProvider {
		return nil
	}

	return b.class
}

// AliasTarget returns the target key of a ToAlias binding, or "".
func (b *Binding) AliasTarget() string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.kind != ProducerAlias {
		return ""
	}

	return b.alias
}

// Tags returns the binding tags in sorted order.
func (b *Binding) Tags() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	tags := make([]string, 0, len(b.tags))
	for tag := range b.tags {
		tags = append(tags, tag)
	}

	sort.Strings(tags)

	return tags
}

// HasTag reports whether the binding carries tag.
func (b *Binding) HasTag(tag string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	_, ok := b.tags[tag]

	return ok
}

// IsLocked reports whether the binding refuses replacement and removal.
func (b *Binding) IsLocked() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.locked
}

// Owner returns the context the binding is registered in, or nil.
func (b *Binding) Owner() *Context {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.owner
}

// IsCached reports whether a singleton value has been computed successfully.
func (b *Binding) IsCached() bool {
	b.mu.RLock()
	f := b.cache
	b.mu.RUnlock()

	if f == nil {
		return false
	}

	_, err, ok := f.Result()

	return ok && err == nil
}

// Dependencies returns the keys the binding declares it needs: the alias
// target, or the key-based injections of its class.
func (b *Binding) Dependencies() []di.Dep {
	snap := b.snapshot()

	switch snap.kind {
	case ProducerAlias:
		return []di.Dep{di.Eager(snap.alias)}
	case ProducerClass, ProducerProvider:
		if snap.class == nil {
			return nil
		}

		var deps []di.Dep

		for _, inj := range snap.class.Injections() {
			if dep, ok := inj.Dependency(b.key); ok {
				deps = append(deps, dep)
			}
		}

		return deps
	}

	return nil
}

// =============================================================================
// BUILDER
// =============================================================================

// To binds a fixed value.
func (b *Binding) To(value any) *Binding {
	return b.configure(func() {
		b.resetProducer(ProducerValue)
		b.value = value
	})
}

// ToDynamicValue binds a synchronous factory.
func (b *Binding) ToDynamicValue(factory DynamicValueFunc) *Binding {
	return b.configure(func() {
		b.resetProducer(ProducerFactory)
		b.factory = factory
	})
}

// ToAsyncValue binds a factory that runs on its own goroutine. Bindings using it
// cannot be resolved with GetSync.
func (b *Binding) ToAsyncValue(factory AsyncValueFunc) *Binding {
	return b.configure(func() {
		b.resetProducer(ProducerAsyncFactory)
		b.async = factory
	})
}

// ToClass binds a class; constructor and property injection apply at resolution.
func (b *Binding) ToClass(cls *Class) *Binding {
	return b.configure(func() {
		b.resetProducer(ProducerClass)
		b.class = cls
	})
}

// ToProvider binds a class whose instances implement Provider.
func (b *Binding) ToProvider(cls *Class) *Binding {
	return b.configure(func() {
		b.resetProducer(ProducerProvider)
		b.class = cls
	})
}

// ToAlias forwards every resolution to key within the same session.
func (b *Binding) ToAlias(key string) *Binding {
	return b.configure(func() {
		b.resetProducer(ProducerAlias)
		b.alias = key
	})
}

// InScope sets the scope. An invalid scope is reported when the binding is resolved.
func (b *Binding) InScope(scope Scope) *Binding {
	return b.configure(func() {
		b.scope = scope
		b.clearCache()
	})
}

// Tag adds tags.
func (b *Binding) Tag(tags ...string) *Binding {
	return b.configure(func() {
		for _, tag := range tags {
			b.tags[tag] = struct{}{}
		}
	})
}

// Untag removes tags.
func (b *Binding) Untag(tags ...string) *Binding {
	return b.configure(func() {
		for _, tag := range tags {
			delete(b.tags, tag)
		}
	})
}

// Lock prevents the binding from being replaced or unbound.
func (b *Binding) Lock() *Binding {
	b.mu.Lock()
	b.locked = true
	b.mu.Unlock()

	return b
}

// Unlock allows the binding to be replaced or unbound again.
func (b *Binding) Unlock() *Binding {
	b.mu.Lock()
	b.locked = false
	b.mu.Unlock()

	return b
}

// Apply runs templates against the binding.
func (b *Binding) Apply(templates ...BindingTemplate) *Binding {
	for _, tmpl := range templates {
		tmpl(b)
	}

	return b
}

// configure mutates the binding under its lock, then tells the owning context.
func (b *Binding) configure(fn func()) *Binding {
	b.mu.Lock()
	fn()
	owner := b.owner
	b.mu.Unlock()

	if owner != nil {
		owner.notify(ContextEvent{Type: EventChange, Binding: b, Context: owner})
	}

	return b
}

// resetProducer must be called with b.mu held.
func (b *Binding) resetProducer(kind ProducerKind) {
	b.kind = kind
	b.value = nil
	b.factory = nil
	b.async = nil
	b.class = nil
	b.alias = ""
	b.clearCache()
}

// clearCache must be called with b.mu held.
func (b *Binding) clearCache() {
	b.cache = nil
	b.scoped = make(map[string]*Future)
}

func (b *Binding) attach(owner *Context) {
	b.mu.Lock()
	b.owner = owner
	b.mu.Unlock()
}

func (b *Binding) detach(owner *Context) {
	b.mu.Lock()
	if b.owner == owner {
		b.owner = nil
	}
	b.mu.Unlock()
}

// evictScoped drops the context-scoped value cached for a requesting context.
func (b *Binding) evictScoped(contextID string) {
	b.mu.Lock()
	delete(b.scoped, contextID)
	b.mu.Unlock()
}

// =============================================================================
// RESOLUTION
// =============================================================================

type producerSnapshot struct {
	scope   Scope
	kind    ProducerKind
	value   any
	factory DynamicValueFunc
	async   AsyncValueFunc
	class   *Class
	alias   string
	owner   *Context
}

func (b *Binding) snapshot() producerSnapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return producerSnapshot{
		scope:   b.scope,
		kind:    b.kind,
		value:   b.value,
		factory: b.factory,
		async:   b.async,
		class:   b.class,
		alias:   b.alias,
		owner:   b.owner,
	}
}

// resolve produces the binding value for r, honouring scope caching. The key is
// pushed onto the session for the whole computation.
func (b *Binding) resolve(r *resolution) (any, error) {
	if err := r.session.Enter(b.key); err != nil {
		return nil, err
	}
	defer r.session.Exit()

	snap := b.snapshot()

	if !snap.scope.IsValid() {
		return nil, NewUnsupportedScopeError(b.key, snap.scope)
	}

	switch snap.kind {
	case ProducerNone:
		return nil, NewBindingNotConfiguredError(b.key)
	case ProducerValue:
		return snap.value, nil
	case ProducerAlias:
		return r.context.resolveKey(r, snap.alias, false)
	}

	if !snap.scope.caches() {
		return b.produce(r, snap)
	}

	// Singletons are owned by the binding's context; context-scoped values by the requester.
	manager := snap.owner
	if snap.scope == ContextScoped || manager == nil {
		manager = r.context
	}

	future, created := b.acquire(r, snap.scope)
	if created && snap.scope == ContextScoped {
		r.context.trackScoped(b)
	}

	if !created {
		if r.session.sync && !future.IsSettled() {
			return nil, NewAsyncResolutionError(b.key)
		}

		return future.Await(r.ctx)
	}

	compute := func(r *resolution) (any, error) {
		// Dependencies are looked up from the context that owns the cached value.
		owned := *r
		owned.context = manager

		value, err := b.produce(&owned, snap)
		if err == nil {
			err = manager.manage(r.ctx, b.key, value)
		}

		if err != nil {
			b.evict(r, snap.scope, future)
		}

		future.settle(value, err)

		return value, err
	}

	// A cancelled caller must not abandon a shared async computation.
	if snap.kind == ProducerAsyncFactory && !r.session.sync {
		detached := &resolution{
			ctx:     context.WithoutCancel(r.ctx),
			context: r.context,
			session: r.session.fork(),
		}

		go compute(detached)

		return future.Await(r.ctx)
	}

	return compute(r)
}

// acquire returns the cached future for the scope, installing a new one when
// none exists. created is true when the caller must compute the value.
func (b *Binding) acquire(r *resolution, scope Scope) (*Future, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if scope == Singleton {
		if b.cache != nil {
			return b.cache, false
		}

		b.cache = newFuture(!r.session.sync)

		return b.cache, true
	}

	if f, ok := b.scoped[r.context.id]; ok {
		return f, false
	}

	f := newFuture(!r.session.sync)
	b.scoped[r.context.id] = f

	return f, true
}

// evict removes a failed computation so the next resolution retries.
func (b *Binding) evict(r *resolution, scope Scope, f *Future) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if scope == Singleton {
		if b.cache == f {
			b.cache = nil
		}

		return
	}

	if b.scoped[r.context.id] == f {
		delete(b.scoped, r.context.id)
	}
}

// produce invokes the configured producer without caching.
func (b *Binding) produce(r *resolution, snap producerSnapshot) (any, error) {
	rc := r.resolutionContext(b)

	if (snap.kind == ProducerClass || snap.kind == ProducerProvider) && snap.class == nil {
		return nil, NewBindingNotConfiguredError(b.key)
	}

	switch snap.kind {
	case ProducerFactory:
		value, err := snap.factory(rc)

		return value, wrapProducerError(b.key, err)

	case ProducerAsyncFactory:
		if r.session.sync {
			return nil, NewAsyncResolutionError(b.key)
		}

		return b.produceAsync(r, snap.async)

	case ProducerClass:
		value, err := snap.class.instantiate(r)

		return value, wrapProducerError(b.key, err)

	case ProducerProvider:
		instance, err := snap.class.instantiate(r)
		if err != nil {
			return nil, wrapProducerError(b.key, err)
		}

		provider, ok := instance.(Provider)
		if !ok {
			return nil, NewTypeMismatchError("provider "+snap.class.Name(), "weave.Provider", instance)
		}

		value, err := provider.Value(rc)

		return value, wrapProducerError(b.key, err)
	}

	return nil, NewBindingNotConfiguredError(b.key)
}

// produceAsync runs factory on its own goroutine with a forked session. The
// caller's ctx bounds only the wait, never the work.
func (b *Binding) produceAsync(r *resolution, factory AsyncValueFunc) (any, error) {
	work := context.WithoutCancel(r.ctx)
	forked := &resolution{ctx: work, context: r.context, session: r.session.fork()}
	rc := forked.resolutionContext(b)
	pending := newFuture(true)

	go func() {
		value, err := factory(work, rc)
		pending.settle(value, wrapProducerError(b.key, err))
	}()

	return pending.Await(r.ctx)
}

// wrapProducerError wraps errors raised by user producers; engine errors pass through.
func wrapProducerError(key string, err error) error {
	if err == nil {
		return nil
	}

	var coded *errs.Error
	if errors.As(err, &coded) {
		return err
	}

	return NewResolutionError(key, err)
}
