package weave

import (
	"context"
	"sync"
)

// ContextView is a live projection of the bindings of a context (and its
// ancestors) that match a filter. Bind, unbind and change events invalidate
// the cached bindings and values; nothing is recomputed until the next read.
type ContextView struct {
	context *Context
	filter  BindingFilter

	mu         sync.Mutex
	bindings   []*Binding
	values     []any
	resolved   bool
	generation uint64
	closed     bool
	subs       []*Subscription
}

func newContextView(c *Context, filter BindingFilter) *ContextView {
	if filter == nil {
		filter = All()
	}

	return &ContextView{
		context: c,
		filter:  filter,
	}
}

// open subscribes the view to its context and every ancestor, since Find
// reaches into all of them.
func (v *ContextView) open() {
	var subs []*Subscription
	for ctx := v.context; ctx != nil; ctx = ctx.parent {
		subs = append(subs, ctx.Subscribe(v))
	}

	v.mu.Lock()
	v.subs = subs
	v.mu.Unlock()
}

// Context returns the context the view was created from.
func (v *ContextView) Context() *Context {
	return v.context
}

// Filter returns the view's filter.
func (v *ContextView) Filter() BindingFilter {
	return v.filter
}

// Observe implements ContextObserver. It marks the view dirty when the changed
// binding matches the filter now, was part of the cached result, or hides or
// reveals a matching ancestor binding with the same key.
func (v *ContextView) Observe(ev ContextEvent) {
	matches := v.filter(ev.Binding) || v.shadowsMatch(ev)

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return
	}

	if !matches && !v.containsLocked(ev.Binding) {
		return
	}

	v.invalidateLocked()
}

func (v *ContextView) shadowsMatch(ev ContextEvent) bool {
	if ev.Context == nil || ev.Context.parent == nil {
		return false
	}

	inherited, ok := ev.Context.parent.lookup(ev.Binding.key)

	return ok && v.filter(inherited)
}

// Refresh discards cached bindings and values.
func (v *ContextView) Refresh() {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.invalidateLocked()
}

func (v *ContextView) invalidateLocked() {
	v.generation++
	v.bindings = nil
	v.values = nil
	v.resolved = false
}

func (v *ContextView) containsLocked(b *Binding) bool {
	for _, cached := range v.bindings {
		if cached == b {
			return true
		}
	}

	return false
}

// IsDirty reports whether the next read recomputes the result.
func (v *ContextView) IsDirty() bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	return !v.resolved
}

// IsClosed reports whether Close has been called.
func (v *ContextView) IsClosed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.closed
}

// Bindings returns the matching bindings, own context first.
func (v *ContextView) Bindings() []*Binding {
	bindings, _ := v.currentBindings()

	return bindings
}

func (v *ContextView) currentBindings() ([]*Binding, uint64) {
	v.mu.Lock()
	if v.bindings != nil {
		bindings := append([]*Binding(nil), v.bindings...)
		generation := v.generation
		v.mu.Unlock()

		return bindings, generation
	}

	generation := v.generation
	v.mu.Unlock()

	found := v.context.Find(v.filter)
	if found == nil {
		found = []*Binding{}
	}

	v.mu.Lock()
	if v.generation == generation {
		v.bindings = found
	}
	v.mu.Unlock()

	return append([]*Binding(nil), found...), generation
}

// Resolve returns the values of every matching binding, in Bindings order.
func (v *ContextView) Resolve(ctx context.Context, opts ...ResolveOption) ([]any, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	o := newResolveOptions(opts)

	session := o.session
	if session == nil {
		session = NewResolutionSession()
	}

	return v.resolve(&resolution{ctx: ctx, context: v.context, session: session})
}

// ResolveSync is Resolve for views whose bindings resolve without async steps.
func (v *ContextView) ResolveSync(opts ...ResolveOption) ([]any, error) {
	o := newResolveOptions(opts)

	session := o.session
	if session == nil {
		session = newSyncSession()
	}

	return v.resolve(&resolution{ctx: context.Background(), context: v.context, session: session})
}

// Single resolves the view expecting at most one match: zero matches yield nil.
func (v *ContextView) Single(ctx context.Context, opts ...ResolveOption) (any, error) {
	bindings := v.Bindings()
	if len(bindings) > 1 {
		return nil, NewAmbiguousBindingError("view", v.context.Name(), bindingKeys(bindings))
	}

	values, err := v.Resolve(ctx, opts...)
	if err != nil || len(values) == 0 {
		return nil, err
	}

	return values[0], nil
}

func (v *ContextView) resolve(r *resolution) ([]any, error) {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()

		return nil, ErrViewClosed
	}

	if v.resolved {
		values := append([]any(nil), v.values...)
		v.mu.Unlock()

		return values, nil
	}
	v.mu.Unlock()

	bindings, generation := v.currentBindings()

	values := make([]any, 0, len(bindings))
	for _, b := range bindings {
		value, err := v.context.resolveBinding(r, b)
		if err != nil {
			return nil, err
		}

		values = append(values, value)
	}

	v.mu.Lock()
	if v.generation == generation && !v.closed {
		v.values = values
		v.resolved = true
	}
	v.mu.Unlock()

	return append([]any(nil), values...), nil
}

// Close stops observing the context. A closed view cannot be resolved.
func (v *ContextView) Close() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()

		return
	}

	v.closed = true
	subs := v.subs
	v.subs = nil
	v.invalidateLocked()
	v.mu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}

	v.context.forgetView(v)
}

func bindingKeys(bindings []*Binding) []string {
	keys := make([]string, len(bindings))
	for i, b := range bindings {
		keys[i] = b.Key()
	}

	return keys
}
