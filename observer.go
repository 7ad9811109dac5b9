package weave

// EventType identifies a change to a context's bindings.
type EventType int

const (
	// EventBind fires after a binding is added.
	EventBind EventType = iota
	// EventUnbind fires after a binding is removed or replaced.
	EventUnbind
	// EventChange fires after an attached binding is reconfigured.
	EventChange
)

func (t EventType) String() string {
	switch t {
	case EventBind:
		return "bind"
	case EventUnbind:
		return "unbind"
	case EventChange:
		return "change"
	default:
		return "unknown"
	}
}

// ContextEvent describes a committed change to a context's bindings.
type ContextEvent struct {
	Type    EventType
	Binding *Binding
	Context *Context
}

// ContextObserver receives context events synchronously.
type ContextObserver interface {
	Observe(ev ContextEvent)
}

// ObserverFunc adapts a function to ContextObserver.
type ObserverFunc func(ev ContextEvent)

// Observe implements ContextObserver.
func (f ObserverFunc) Observe(ev ContextEvent) {
	f(ev)
}

// Subscription is the handle returned by Context.Subscribe.
type Subscription struct {
	id       uint64
	context  *Context
	observer ContextObserver
}

// Unsubscribe removes the subscription from its context.
func (s *Subscription) Unsubscribe() bool {
	return s.context.Unsubscribe(s)
}

// Context returns the observed context.
func (s *Subscription) Context() *Context {
	return s.context
}
