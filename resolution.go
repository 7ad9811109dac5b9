package weave

import (
	"context"
)

// resolution carries the state of one resolution step: the caller's ctx, the
// requesting context and the session shared by every nested step.
type resolution struct {
	ctx     context.Context
	context *Context
	session *ResolutionSession
}

func (r *resolution) resolutionContext(b *Binding) *ResolutionContext {
	return &ResolutionContext{
		Context: r.context,
		Binding: b,
		Session: r.session,
		ctx:     r.ctx,
	}
}

// resolveInjection resolves inj with the injection pushed onto the session.
func (r *resolution) resolveInjection(inj *Injection) (any, error) {
	r.session.EnterInjection(inj)
	defer r.session.ExitInjection()

	rc := &ResolutionContext{
		Context: r.context,
		Session: r.session,
		ctx:     r.ctx,
	}

	if inj.resolver == nil {
		return nil, NewInvalidClassError(inj.target.Name(), inj.member.String()+" has no resolver")
	}

	return inj.resolver(rc, inj)
}

// ResolutionContext is handed to factories, providers and injection resolvers.
// Nested resolutions made through it share the caller's session.
type ResolutionContext struct {
	// Context is the context dependencies are resolved from: the owning
	// context for singletons, the requesting context otherwise.
	Context *Context
	// Binding is the binding being resolved, nil inside injection resolvers.
	Binding *Binding
	// Session tracks the keys being resolved.
	Session *ResolutionSession

	ctx context.Context
}

// Ctx returns the context.Context of the resolution.
func (rc *ResolutionContext) Ctx() context.Context {
	if rc.ctx == nil {
		return context.Background()
	}

	return rc.ctx
}

// IsSync reports whether the resolution was started with GetSync.
func (rc *ResolutionContext) IsSync() bool {
	return rc.Session.sync
}

// Get resolves key from the requesting context within the same session.
func (rc *ResolutionContext) Get(key string, opts ...ResolveOption) (any, error) {
	o := newResolveOptions(opts)

	return rc.Context.resolveKey(rc.resolution(), key, o.optional)
}

func (rc *ResolutionContext) resolution() *resolution {
	return &resolution{ctx: rc.Ctx(), context: rc.Context, session: rc.Session}
}
