package weave

import (
	"fmt"
	"strings"

	"github.com/xraph/go-utils/errs"
)

// =============================================================================
// ERROR CODES
// =============================================================================

const (
	// CodeBindingNotFound indicates no binding satisfies a required resolution
	CodeBindingNotFound = "BINDING_NOT_FOUND"

	// CodeAmbiguousBinding indicates a singular resolution matched more than one binding
	CodeAmbiguousBinding = "AMBIGUOUS_BINDING"

	// CodeCircularDependency indicates a key re-entered the active resolution stack
	CodeCircularDependency = "CIRCULAR_DEPENDENCY"

	// CodeTypeInference indicates a declared type carries no usable class information
	CodeTypeInference = "TYPE_INFERENCE"

	// CodeUnsupportedScope indicates a binding was configured with an invalid scope
	CodeUnsupportedScope = "UNSUPPORTED_SCOPE"

	// CodeAsyncResolution indicates a synchronous resolution hit a pending step
	CodeAsyncResolution = "ASYNC_RESOLUTION"

	// CodeViewClosed indicates a closed ContextView was resolved
	CodeViewClosed = "VIEW_CLOSED"

	// CodeBindingLocked indicates a locked binding was replaced or unbound
	CodeBindingLocked = "BINDING_LOCKED"

	// CodeBindingNotConfigured indicates a binding has no value producer
	CodeBindingNotConfigured = "BINDING_NOT_CONFIGURED"

	// CodeTypeMismatch indicates a resolved value cannot be assigned to its target
	CodeTypeMismatch = "TYPE_MISMATCH"

	// CodeInvalidClass indicates a class definition was rejected
	CodeInvalidClass = "INVALID_CLASS"

	// CodeResolutionError indicates a producer failed while resolving a binding
	CodeResolutionError = "RESOLUTION_ERROR"

	// CodeContextClosed indicates an operation on a closed context
	CodeContextClosed = "CONTEXT_CLOSED"

	// CodeLifecycleError indicates a managed value failed to start, stop, dispose or report health
	CodeLifecycleError = "LIFECYCLE_ERROR"
)

// =============================================================================
// SENTINEL ERRORS
// =============================================================================

// ErrBindingNotFound matches every binding-not-found error via errors.Is.
var ErrBindingNotFound = errs.NewError(CodeBindingNotFound, "binding not found", nil)

// ErrAmbiguousBinding matches every ambiguous-binding error via errors.Is.
var ErrAmbiguousBinding = errs.NewError(CodeAmbiguousBinding, "ambiguous binding", nil)

// ErrCircularDependency matches every circular-dependency error via errors.Is.
var ErrCircularDependency = errs.NewError(CodeCircularDependency, "circular dependency", nil)

// ErrTypeInference matches every type-inference error via errors.Is.
var ErrTypeInference = errs.NewError(CodeTypeInference, "type inference failed", nil)

// ErrUnsupportedScope matches every unsupported-scope error via errors.Is.
var ErrUnsupportedScope = errs.NewError(CodeUnsupportedScope, "unsupported scope", nil)

// ErrAsyncResolution is returned by synchronous resolution when a value is still pending.
var ErrAsyncResolution = errs.NewError(CodeAsyncResolution, "value is resolved asynchronously", nil)

// ErrViewClosed is returned when a closed ContextView is resolved.
var ErrViewClosed = errs.NewError(CodeViewClosed, "context view is closed", nil)

// ErrBindingLocked matches every locked-binding error via errors.Is.
var ErrBindingLocked = errs.NewError(CodeBindingLocked, "binding is locked", nil)

// ErrBindingNotConfigured matches bindings resolved before a producer was set.
var ErrBindingNotConfigured = errs.NewError(CodeBindingNotConfigured, "binding has no value producer", nil)

// ErrTypeMismatch matches every type-mismatch error via errors.Is.
var ErrTypeMismatch = errs.NewError(CodeTypeMismatch, "type mismatch", nil)

// ErrInvalidClass matches every rejected class definition via errors.Is.
var ErrInvalidClass = errs.NewError(CodeInvalidClass, "invalid class definition", nil)

// ErrResolution matches producer failures wrapped during resolution.
var ErrResolution = errs.NewError(CodeResolutionError, "resolution failed", nil)

// ErrContextClosed is returned when a closed context is mutated or resolved.
var ErrContextClosed = errs.NewError(CodeContextClosed, "context is closed", nil)

// ErrLifecycle matches every lifecycle failure via errors.Is.
var ErrLifecycle = errs.NewError(CodeLifecycleError, "lifecycle error", nil)

// =============================================================================
// ERROR CONSTRUCTORS
// =============================================================================

// NewBindingNotFoundError creates an error for a key no context in the chain binds.
func NewBindingNotFoundError(key, contextName string) *errs.Error {
	return errs.NewError(
		CodeBindingNotFound,
		fmt.Sprintf("the key '%s' is not bound to any value in context '%s'", key, contextName),
		nil,
	).WithContext("key", key).
		WithContext("context", contextName).(*errs.Error)
}

// NewClassNotFoundError creates an error for a class injection with zero matches.
func NewClassNotFoundError(className, contextName string) *errs.Error {
	return errs.NewError(
		CodeBindingNotFound,
		fmt.Sprintf(
			"no binding found for %s, make sure a binding is created in context '%s' with ToClass(%s)",
			className, contextName, className,
		),
		nil,
	).WithContext("class", className).
		WithContext("context", contextName).(*errs.Error)
}

// NewAmbiguousBindingError creates an error for a singular injection with several matches.
func NewAmbiguousBindingError(className, contextName string, keys []string) *errs.Error {
	return errs.NewError(
		CodeAmbiguousBinding,
		fmt.Sprintf("more than one binding found for %s in context '%s': %s",
			className, contextName, strings.Join(keys, ", ")),
		nil,
	).WithContext("class", className).
		WithContext("context", contextName).
		WithContext("keys", keys).(*errs.Error)
}

// NewCircularDependencyError creates an error carrying the full resolution path.
func NewCircularDependencyError(path []string) *errs.Error {
	return errs.NewError(
		CodeCircularDependency,
		fmt.Sprintf("circular dependency detected: %s", strings.Join(path, " --> ")),
		nil,
	).WithContext("path", path).(*errs.Error)
}

// NewTypeInferenceError creates an error for an injection whose target class cannot be inferred.
func NewTypeInferenceError(member, reason string) *errs.Error {
	return errs.NewError(
		CodeTypeInference,
		fmt.Sprintf("service class cannot be inferred for %s: %s, use InjectInstance(class)", member, reason),
		nil,
	).WithContext("member", member).(*errs.Error)
}

// NewUnsupportedScopeError creates an error for a binding configured with an unknown scope.
func NewUnsupportedScopeError(key string, scope Scope) *errs.Error {
	return errs.NewError(
		CodeUnsupportedScope,
		fmt.Sprintf("binding '%s' has unsupported scope %s", key, scope),
		nil,
	).WithContext("key", key).
		WithContext("scope", scope.String()).(*errs.Error)
}

// NewAsyncResolutionError creates an error for a pending step hit by GetSync.
func NewAsyncResolutionError(key string) *errs.Error {
	return errs.NewError(
		CodeAsyncResolution,
		fmt.Sprintf("binding '%s' cannot be resolved synchronously, use Get", key),
		nil,
	).WithContext("key", key).(*errs.Error)
}

// NewBindingLockedError creates an error for a locked binding that was replaced or unbound.
func NewBindingLockedError(key, contextName string) *errs.Error {
	return errs.NewError(
		CodeBindingLocked,
		fmt.Sprintf("binding '%s' in context '%s' is locked", key, contextName),
		nil,
	).WithContext("key", key).
		WithContext("context", contextName).(*errs.Error)
}

// NewBindingNotConfiguredError creates an error for a binding without a producer.
func NewBindingNotConfiguredError(key string) *errs.Error {
	return errs.NewError(
		CodeBindingNotConfigured,
		fmt.Sprintf("binding '%s' has no value producer", key),
		nil,
	).WithContext("key", key).(*errs.Error)
}

// NewTypeMismatchError creates an error for a value that cannot be assigned to a member.
func NewTypeMismatchError(member string, expected string, actual any) *errs.Error {
	return errs.NewError(
		CodeTypeMismatch,
		fmt.Sprintf("%s expects %s, got %T", member, expected, actual),
		nil,
	).WithContext("member", member).
		WithContext("actual_type", fmt.Sprintf("%T", actual)).(*errs.Error)
}

// NewInvalidClassError creates an error for a rejected class definition.
func NewInvalidClassError(className, reason string) *errs.Error {
	return errs.NewError(
		CodeInvalidClass,
		fmt.Sprintf("invalid class %s: %s", className, reason),
		nil,
	).WithContext("class", className).(*errs.Error)
}

// NewResolutionError wraps a producer failure for a binding key.
func NewResolutionError(key string, cause error) *errs.Error {
	return errs.NewError(
		CodeResolutionError,
		fmt.Sprintf("failed to resolve binding '%s'", key),
		cause,
	).WithContext("key", key).(*errs.Error)
}

// NewContextClosedError creates an error for operations on a closed context.
func NewContextClosedError(contextName string) *errs.Error {
	return errs.NewError(
		CodeContextClosed,
		fmt.Sprintf("context '%s' is closed", contextName),
		nil,
	).WithContext("context", contextName).(*errs.Error)
}

// NewLifecycleError creates an error for a managed value operation
func NewLifecycleError(key, operation string, cause error) *errs.Error {
	return errs.NewError(
		CodeLifecycleError,
		fmt.Sprintf("binding '%s' error during %s", key, operation),
		cause,
	).WithContext("key", key).
		WithContext("operation", operation).(*errs.Error)
}
