package weave

import (
	"reflect"
)

// InjectInstance injects the single binding whose class is cls. A nil cls is
// inferred from the declared type of the injection point: non-empty interfaces
// match classes implementing them, other types must be defined in the class
// registry. Slices, arrays, maps and the empty interface cannot be inferred.
//
// Subclasses of cls match unless SkipSubClasses is given. More than one match
// fails with an ambiguous-binding error; none fails with a binding-not-found
// error unless the injection is Optional.
func InjectInstance(cls *Class, opts ...InjectionOption) *Injection {
	inj := newInjection(InjectByInstance, resolveInstance, opts)
	inj.class = cls

	return inj
}

func resolveInstance(rc *ResolutionContext, inj *Injection) (any, error) {
	filter, name, err := instanceFilter(inj)
	if err != nil {
		return nil, err
	}

	view := rc.Context.CreateView(filter)
	defer view.Close()

	bindings := view.Bindings()

	switch len(bindings) {
	case 0:
		if inj.optional {
			return nil, nil
		}

		return nil, NewClassNotFoundError(name, rc.Context.Name())
	case 1:
		return rc.Context.resolveBinding(rc.resolution(), bindings[0])
	default:
		return nil, NewAmbiguousBindingError(name, rc.Context.Name(), bindingKeys(bindings))
	}
}

// instanceFilter builds the filter for an instance injection and the class
// name used in error messages.
func instanceFilter(inj *Injection) (BindingFilter, string, error) {
	if inj.class != nil {
		return ByClass(inj.class, inj.skipSubClasses), inj.class.Name(), nil
	}

	declared := inj.declared
	if declared == nil {
		return nil, "", NewTypeInferenceError(inj.Describe(), "injection is not attached to a class")
	}

	switch declared.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return nil, "", NewTypeInferenceError(inj.Describe(), "declared type "+declared.String()+" is a collection")
	case reflect.Interface:
		if declared.NumMethod() == 0 {
			return nil, "", NewTypeInferenceError(inj.Describe(), "declared type "+declared.String()+" is the empty interface")
		}

		return ByInterface(declared), declared.String(), nil
	}

	if inj.target != nil && inj.target.registry != nil {
		if cls, ok := inj.target.registry.ClassOf(declared); ok {
			return ByClass(cls, inj.skipSubClasses), cls.Name(), nil
		}
	}

	return nil, "", NewTypeInferenceError(inj.Describe(), "no class is defined for "+declared.String())
}
