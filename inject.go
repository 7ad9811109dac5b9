package weave

import (
	"fmt"
	"reflect"

	"github.com/xraph/go-utils/di"
)

// InjectionKind identifies the resolution strategy of an Injection.
type InjectionKind int

const (
	// InjectByKey resolves a single binding key.
	InjectByKey InjectionKind = iota
	// InjectByFilter resolves every binding matching a filter into a slice.
	InjectByFilter
	// InjectByInstance resolves the single binding of a service class.
	InjectByInstance
	// InjectByView injects a live ContextView.
	InjectByView
	// InjectByGetter injects a Getter that resolves a key on demand.
	InjectByGetter
	// InjectByConfig resolves the configuration bound for a key.
	InjectByConfig
	// InjectCustom runs a user-supplied resolver.
	InjectCustom
)

func (k InjectionKind) String() string {
	switch k {
	case InjectByKey:
		return "key"
	case InjectByFilter:
		return "filter"
	case InjectByInstance:
		return "instance"
	case InjectByView:
		return "view"
	case InjectByGetter:
		return "getter"
	case InjectByConfig:
		return "config"
	case InjectCustom:
		return "custom"
	default:
		return "unknown"
	}
}

// Member locates an injection point: a constructor parameter index, or a
// property name when Property is set.
type Member struct {
	Index    int
	Property string
}

// IsProperty reports whether the member is a struct field.
func (m Member) IsProperty() bool {
	return m.Property != ""
}

func (m Member) String() string {
	if m.IsProperty() {
		return m.Property
	}

	return fmt.Sprintf("param[%d]", m.Index)
}

// InjectionResolver produces the value for an injection point. rc shares the
// session of the binding being instantiated.
type InjectionResolver func(rc *ResolutionContext, inj *Injection) (any, error)

// InjectionOption tunes an Injection.
type InjectionOption func(*Injection)

// Optional resolves missing dependencies to the zero value instead of failing.
func Optional() InjectionOption {
	return func(inj *Injection) {
		inj.optional = true
	}
}

// SkipSubClasses restricts class matching to the exact class.
func SkipSubClasses() InjectionOption {
	return func(inj *Injection) {
		inj.skipSubClasses = true
	}
}

// Injection describes what to inject into one constructor parameter or
// property. Injections passed to Param or Property are copied when the class
// is defined; the copy is immutable afterwards.
type Injection struct {
	kind           InjectionKind
	key            string
	filter         BindingFilter
	class          *Class
	optional       bool
	skipSubClasses bool
	resolver       InjectionResolver

	target   *Class
	member   Member
	declared reflect.Type
}

func newInjection(kind InjectionKind, resolver InjectionResolver, opts []InjectionOption) *Injection {
	inj := &Injection{kind: kind, resolver: resolver}
	for _, opt := range opts {
		opt(inj)
	}

	return inj
}

// attach returns a copy of inj bound to its target member.
func (inj *Injection) attach(target *Class, member Member, declared reflect.Type) *Injection {
	cp := *inj
	cp.target = target
	cp.member = member
	cp.declared = declared

	return &cp
}

// Kind returns the resolution strategy.
func (inj *Injection) Kind() InjectionKind { return inj.kind }

// Key returns the binding key for key, getter and config injections.
func (inj *Injection) Key() string { return inj.key }

// Filter returns the binding filter for filter and view injections.
func (inj *Injection) Filter() BindingFilter { return inj.filter }

// Class returns the explicit service class of an instance injection, or nil.
func (inj *Injection) Class() *Class { return inj.class }

// IsOptional reports whether a missing dependency resolves to the zero value.
func (inj *Injection) IsOptional() bool { return inj.optional }

// SkipsSubClasses reports whether only the exact class matches.
func (inj *Injection) SkipsSubClasses() bool { return inj.skipSubClasses }

// Target returns the class the injection belongs to, nil before it is attached.
func (inj *Injection) Target() *Class { return inj.target }

// Member returns the injection point.
func (inj *Injection) Member() Member { return inj.member }

// DeclaredType returns the Go type of the parameter or field.
func (inj *Injection) DeclaredType() reflect.Type { return inj.declared }

// Describe names the injection point, e.g. "MyController.param[0]".
func (inj *Injection) Describe() string {
	if inj.target == nil {
		return fmt.Sprintf("<detached %s injection>", inj.kind)
	}

	return inj.target.name + "." + inj.member.String()
}

// Dependency returns the key dependency the injection declares for a binding
// named owner. Filter, instance and custom injections declare none.
func (inj *Injection) Dependency(owner string) (di.Dep, bool) {
	var dep di.Dep

	switch inj.kind {
	case InjectByKey:
		dep = di.Eager(inj.key)
		if inj.optional {
			dep = di.Optional(inj.key)
		}
	case InjectByGetter:
		dep = di.Lazy(inj.key)
		if inj.optional {
			dep = di.LazyOptional(inj.key)
		}
	case InjectByConfig:
		key := inj.key
		if key == "" {
			key = owner
		}

		dep = di.Optional(ConfigKey(key))
	default:
		return dep, false
	}

	if inj.declared != nil {
		dep.Type = inj.declared
	}

	return dep, true
}

// InjectKey injects the value bound to key.
func InjectKey(key string, opts ...InjectionOption) *Injection {
	inj := newInjection(InjectByKey, resolveByKey, opts)
	inj.key = key

	return inj
}

func resolveByKey(rc *ResolutionContext, inj *Injection) (any, error) {
	var opts []ResolveOption
	if inj.optional {
		opts = append(opts, WithOptional())
	}

	return rc.Get(inj.key, opts...)
}

// InjectFilter injects the values of every binding matching filter, in Find
// order. The declared type may be []any or a typed slice.
func InjectFilter(filter BindingFilter, opts ...InjectionOption) *Injection {
	inj := newInjection(InjectByFilter, resolveByFilter, opts)
	inj.filter = filter

	return inj
}

// InjectTag injects the values of every binding tagged with tag.
func InjectTag(tag string, opts ...InjectionOption) *Injection {
	inj := InjectFilter(ByTag(tag), opts...)
	inj.key = tag

	return inj
}

func resolveByFilter(rc *ResolutionContext, inj *Injection) (any, error) {
	r := rc.resolution()

	bindings := rc.Context.Find(inj.filter)
	values := make([]any, 0, len(bindings))

	for _, b := range bindings {
		value, err := rc.Context.resolveBinding(r, b)
		if err != nil {
			return nil, err
		}

		values = append(values, value)
	}

	return values, nil
}

// InjectView injects a live *ContextView over the requesting context. The
// view is closed with that context.
func InjectView(filter BindingFilter, opts ...InjectionOption) *Injection {
	inj := newInjection(InjectByView, resolveView, opts)
	inj.filter = filter

	return inj
}

func resolveView(rc *ResolutionContext, inj *Injection) (any, error) {
	return rc.Context.CreateView(inj.filter), nil
}

// InjectGetter injects a *Getter that resolves key each time it is called.
func InjectGetter(key string, opts ...InjectionOption) *Injection {
	inj := newInjection(InjectByGetter, resolveGetter, opts)
	inj.key = key

	return inj
}

func resolveGetter(rc *ResolutionContext, inj *Injection) (any, error) {
	return newGetter(rc.Context, inj.key, inj.optional), nil
}

// InjectWith injects whatever resolver returns.
func InjectWith(resolver InjectionResolver, opts ...InjectionOption) *Injection {
	return newInjection(InjectCustom, resolver, opts)
}
