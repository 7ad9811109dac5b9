package weave

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// Registry holds class definitions keyed by the type their constructor returns.
// It is the type-introspection facility used to infer what an injection wants
// when no class is given explicitly.
type Registry struct {
	mu      sync.RWMutex
	classes map[reflect.Type]*Class
	order   []*Class
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		classes: make(map[reflect.Type]*Class),
	}
}

// Class is a constructor plus the injections that feed its parameters and
// properties. A class optionally extends a parent class; bindings of a
// subclass satisfy injections asking for the parent unless SkipSubClasses is set.
type Class struct {
	name     string
	typ      reflect.Type
	ctor     reflect.Value
	ctorType reflect.Type
	hasError bool
	parent   *Class
	params   []*Injection
	props    []*Injection
	registry *Registry
}

// ClassOption configures a class while it is being defined.
type ClassOption func(*Class) error

// Extends declares parent as the superclass.
func Extends(parent *Class) ClassOption {
	return func(c *Class) error {
		if parent == nil {
			return fmt.Errorf("parent class is nil")
		}

		for p := parent; p != nil; p = p.parent {
			if p == c {
				return fmt.Errorf("class cannot extend itself")
			}
		}

		c.parent = parent

		return nil
	}
}

// Param sets the injection for the constructor parameter at index.
func Param(index int, inj *Injection) ClassOption {
	return func(c *Class) error {
		if inj == nil {
			return fmt.Errorf("param[%d]: injection is nil", index)
		}

		if index < 0 || index >= len(c.params) {
			return fmt.Errorf("param[%d]: constructor takes %d parameters", index, len(c.params))
		}

		if c.params[index] != nil {
			return fmt.Errorf("param[%d]: injection already declared", index)
		}

		c.params[index] = inj.attach(c, Member{Index: index}, c.ctorType.In(index))

		return nil
	}
}

// Property sets the injection for the exported struct field named field. The
// constructor must return a pointer to a struct.
func Property(field string, inj *Injection) ClassOption {
	return func(c *Class) error {
		if inj == nil {
			return fmt.Errorf("property %s: injection is nil", field)
		}

		sf, err := c.field(field)
		if err != nil {
			return err
		}

		for i, existing := range c.props {
			if existing.member.Property == field {
				c.props[i] = inj.attach(c, Member{Property: field}, sf.Type)

				return nil
			}
		}

		c.props = append(c.props, inj.attach(c, Member{Property: field}, sf.Type))

		return nil
	}
}

// Define registers a class named name built by ctor. ctor must be a
// non-variadic function returning T or (T, error), and every parameter needs a
// Param injection. Exported fields tagged `inject:"key"` get key injections
// unless a Property option overrides them; `optional:"true"` makes them optional.
func (r *Registry) Define(name string, ctor any, opts ...ClassOption) (*Class, error) {
	cls, err := newClass(r, name, ctor)
	if err != nil {
		return nil, err
	}

	if err := cls.tagProperties(); err != nil {
		return nil, NewInvalidClassError(name, err.Error())
	}

	for _, opt := range opts {
		if err := opt(cls); err != nil {
			return nil, NewInvalidClassError(name, err.Error())
		}
	}

	for i, inj := range cls.params {
		if inj == nil {
			return nil, NewInvalidClassError(name,
				fmt.Sprintf("param[%d] of type %s has no injection", i, cls.ctorType.In(i)))
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.classes[cls.typ]; ok {
		return nil, NewInvalidClassError(name,
			fmt.Sprintf("type %s is already defined by class %s", cls.typ, existing.name))
	}

	r.classes[cls.typ] = cls
	r.order = append(r.order, cls)

	return cls, nil
}

// MustDefine is like Define but panics on error.
func (r *Registry) MustDefine(name string, ctor any, opts ...ClassOption) *Class {
	cls, err := r.Define(name, ctor, opts...)
	if err != nil {
		panic(err)
	}

	return cls
}

// DefineStruct defines a class whose constructor returns a zero *T. Dependencies
// are supplied through Property options or `inject` tags.
func DefineStruct[T any](r *Registry, name string, opts ...ClassOption) (*Class, error) {
	return r.Define(name, func() *T { return new(T) }, opts...)
}

// ClassOf returns the class defined for t.
func (r *Registry) ClassOf(t reflect.Type) (*Class, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cls, ok := r.classes[t]

	return cls, ok
}

// Classes returns every defined class in definition order.
func (r *Registry) Classes() []*Class {
	r.mu.RLock()
	defer r.mu.RUnlock()

	classes := make([]*Class, len(r.order))
	copy(classes, r.order)

	return classes
}

func newClass(r *Registry, name string, ctor any) (*Class, error) {
	if name == "" {
		return nil, NewInvalidClassError("<unnamed>", "class name is empty")
	}

	if ctor == nil {
		return nil, NewInvalidClassError(name, "constructor is nil")
	}

	fn := reflect.ValueOf(ctor)
	fnType := fn.Type()

	if fnType.Kind() != reflect.Func {
		return nil, NewInvalidClassError(name, fmt.Sprintf("constructor must be a function, got %s", fnType))
	}

	if fnType.IsVariadic() {
		return nil, NewInvalidClassError(name, "constructor must not be variadic")
	}

	cls := &Class{
		name:     name,
		ctor:     fn,
		ctorType: fnType,
		params:   make([]*Injection, fnType.NumIn()),
		registry: r,
	}

	switch fnType.NumOut() {
	case 1:
	case 2:
		if fnType.Out(1) != errorType {
			return nil, NewInvalidClassError(name, "second return value must be error")
		}

		cls.hasError = true
	default:
		return nil, NewInvalidClassError(name, "constructor must return T or (T, error)")
	}

	cls.typ = fnType.Out(0)
	if cls.typ == errorType {
		return nil, NewInvalidClassError(name, "constructor must return a value before error")
	}

	return cls, nil
}

// tagProperties reads `inject` and `optional` struct tags.
func (c *Class) tagProperties() error {
	st, ok := structOf(c.typ)
	if !ok {
		return nil
	}

	for i := 0; i < st.NumField(); i++ {
		sf := st.Field(i)

		key, tagged := sf.Tag.Lookup("inject")
		if !tagged {
			continue
		}

		if !sf.IsExported() {
			return fmt.Errorf("field %s with inject tag must be exported", sf.Name)
		}

		if key == "" {
			return fmt.Errorf("field %s has an empty inject tag", sf.Name)
		}

		var opts []InjectionOption
		if strings.EqualFold(sf.Tag.Get("optional"), "true") {
			opts = append(opts, Optional())
		}

		c.props = append(c.props, InjectKey(key, opts...).attach(c, Member{Property: sf.Name}, sf.Type))
	}

	return nil
}

func (c *Class) field(name string) (reflect.StructField, error) {
	st, ok := structOf(c.typ)
	if !ok {
		return reflect.StructField{}, fmt.Errorf("property %s: %s is not a pointer to a struct", name, c.typ)
	}

	sf, ok := st.FieldByName(name)
	if !ok {
		return reflect.StructField{}, fmt.Errorf("property %s: no such field on %s", name, st)
	}

	if !sf.IsExported() || len(sf.Index) != 1 {
		return reflect.StructField{}, fmt.Errorf("property %s: field must be exported and declared on %s", name, st)
	}

	return sf, nil
}

func structOf(t reflect.Type) (reflect.Type, bool) {
	if t.Kind() != reflect.Ptr || t.Elem().Kind() != reflect.Struct {
		return nil, false
	}

	return t.Elem(), true
}

// Name returns the class name.
func (c *Class) Name() string {
	return c.name
}

// String implements fmt.Stringer.
func (c *Class) String() string {
	return c.name
}

// Type returns the type the constructor produces.
func (c *Class) Type() reflect.Type {
	return c.typ
}

// Parent returns the superclass, or nil.
func (c *Class) Parent() *Class {
	return c.parent
}

// Registry returns the registry the class was defined in.
func (c *Class) Registry() *Registry {
	return c.registry
}

// Ancestors returns the superclass chain, nearest first.
func (c *Class) Ancestors() []*Class {
	var chain []*Class
	for p := c.parent; p != nil; p = p.parent {
		chain = append(chain, p)
	}

	return chain
}

// IsSubclassOf reports whether c is other or descends from it.
func (c *Class) IsSubclassOf(other *Class) bool {
	if other == nil {
		return false
	}

	for cls := c; cls != nil; cls = cls.parent {
		if cls == other {
			return true
		}
	}

	return false
}

// Injections returns the parameter injections in order, then the properties.
func (c *Class) Injections() []*Injection {
	all := make([]*Injection, 0, len(c.params)+len(c.props))
	all = append(all, c.params...)
	all = append(all, c.props...)

	return all
}

// instantiate resolves every injection, calls the constructor and sets the
// properties. Nothing is constructed until all injections have resolved.
func (c *Class) instantiate(r *resolution) (any, error) {
	args := make([]reflect.Value, len(c.params))
	for i, inj := range c.params {
		value, err := r.resolveInjection(inj)
		if err != nil {
			return nil, err
		}

		if args[i], err = assign(inj, value); err != nil {
			return nil, err
		}
	}

	props := make([]reflect.Value, len(c.props))
	for i, inj := range c.props {
		value, err := r.resolveInjection(inj)
		if err != nil {
			return nil, err
		}

		if props[i], err = assign(inj, value); err != nil {
			return nil, err
		}
	}

	out := c.ctor.Call(args)
	if c.hasError && !out[1].IsNil() {
		return nil, out[1].Interface().(error)
	}

	instance := out[0]

	if len(c.props) > 0 {
		if instance.IsNil() {
			return nil, NewInvalidClassError(c.name, "constructor returned nil")
		}

		target := instance.Elem()
		for i, inj := range c.props {
			target.FieldByName(inj.member.Property).Set(props[i])
		}
	}

	return instance.Interface(), nil
}

// assign converts a resolved value to the declared type of inj's member.
func assign(inj *Injection, value any) (reflect.Value, error) {
	want := inj.declared

	if value == nil {
		return reflect.Zero(want), nil
	}

	rv := reflect.ValueOf(value)
	if rv.Type().AssignableTo(want) {
		return rv, nil
	}

	if items, ok := value.([]any); ok && want.Kind() == reflect.Slice {
		slice := reflect.MakeSlice(want, 0, len(items))
		for _, item := range items {
			if item == nil {
				slice = reflect.Append(slice, reflect.Zero(want.Elem()))

				continue
			}

			iv := reflect.ValueOf(item)
			if !iv.Type().AssignableTo(want.Elem()) {
				return reflect.Value{}, NewTypeMismatchError(inj.Describe(), want.String(), item)
			}

			slice = reflect.Append(slice, iv)
		}

		return slice, nil
	}

	return reflect.Value{}, NewTypeMismatchError(inj.Describe(), want.String(), value)
}
