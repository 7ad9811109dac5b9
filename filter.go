package weave

import (
	"reflect"
)

// BindingFilter selects bindings.
type BindingFilter func(b *Binding) bool

// All matches every binding.
func All() BindingFilter {
	return func(*Binding) bool { return true }
}

// ByKey matches the binding with exactly key.
func ByKey(key string) BindingFilter {
	return func(b *Binding) bool {
		return b.Key() == key
	}
}

// ByTag matches bindings carrying every given tag.
func ByTag(tags ...string) BindingFilter {
	return func(b *Binding) bool {
		for _, tag := range tags {
			if !b.HasTag(tag) {
				return false
			}
		}

		return true
	}
}

// ByScope matches bindings in scope.
func ByScope(scope Scope) BindingFilter {
	return func(b *Binding) bool {
		return b.Scope() == scope
	}
}

// ByClass matches ToClass bindings whose class is cls or, unless
// skipSubClasses is set, descends from cls.
func ByClass(cls *Class, skipSubClasses bool) BindingFilter {
	return func(b *Binding) bool {
		valueClass := b.ValueClass()
		if valueClass == nil || cls == nil {
			return false
		}

		if skipSubClasses {
			return valueClass == cls
		}

		return valueClass.IsSubclassOf(cls)
	}
}

// ByInterface matches ToClass bindings whose instances implement iface.
func ByInterface(iface reflect.Type) BindingFilter {
	return func(b *Binding) bool {
		valueClass := b.ValueClass()
		if valueClass == nil || iface == nil || iface.Kind() != reflect.Interface {
			return false
		}

		return valueClass.Type().Implements(iface)
	}
}

// And matches bindings accepted by every filter.
func And(filters ...BindingFilter) BindingFilter {
	return func(b *Binding) bool {
		for _, f := range filters {
			if !f(b) {
				return false
			}
		}

		return true
	}
}

// Or matches bindings accepted by any filter.
func Or(filters ...BindingFilter) BindingFilter {
	return func(b *Binding) bool {
		for _, f := range filters {
			if f(b) {
				return true
			}
		}

		return false
	}
}

// Not inverts filter.
func Not(filter BindingFilter) BindingFilter {
	return func(b *Binding) bool {
		return !filter(b)
	}
}
