package weave

// BindingTemplate configures a binding. Templates are applied in order.
type BindingTemplate func(b *Binding)

// AsSingleton sets the Singleton scope.
func AsSingleton() BindingTemplate {
	return func(b *Binding) { b.InScope(Singleton) }
}

// AsTransient sets the Transient scope.
func AsTransient() BindingTemplate {
	return func(b *Binding) { b.InScope(Transient) }
}

// AsContextScoped sets the ContextScoped scope.
func AsContextScoped() BindingTemplate {
	return func(b *Binding) { b.InScope(ContextScoped) }
}

// WithTags adds tags.
func WithTags(tags ...string) BindingTemplate {
	return func(b *Binding) { b.Tag(tags...) }
}

// AsValue binds a fixed value.
func AsValue(value any) BindingTemplate {
	return func(b *Binding) { b.To(value) }
}

// AsFactory binds a synchronous factory.
func AsFactory(factory DynamicValueFunc) BindingTemplate {
	return func(b *Binding) { b.ToDynamicValue(factory) }
}

// AsClass binds a class.
func AsClass(cls *Class) BindingTemplate {
	return func(b *Binding) { b.ToClass(cls) }
}

// Locked locks the binding.
func Locked() BindingTemplate {
	return func(b *Binding) { b.Lock() }
}

// BindingSpec holds configuration for a binding to be added.
type BindingSpec struct {
	Key       string
	Templates []BindingTemplate
}

// Spec creates a BindingSpec for batch registration.
//
// Example:
//
//	weave.BindAll(ctx,
//	    weave.Spec("datasources.db", weave.AsFactory(newDB), weave.AsSingleton()),
//	    weave.Spec("services.cache", weave.AsClass(cacheClass), weave.WithTags("cache")),
//	)
func Spec(key string, templates ...BindingTemplate) BindingSpec {
	return BindingSpec{
		Key:       key,
		Templates: templates,
	}
}

// BindAll adds one binding per spec. It stops at the first error; bindings
// added before it stay registered.
func BindAll(c *Context, specs ...BindingSpec) error {
	for _, spec := range specs {
		b := NewBinding(spec.Key).Apply(spec.Templates...)
		if err := c.Add(b); err != nil {
			return err
		}
	}

	return nil
}
