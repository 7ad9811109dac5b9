package weave

import (
	"strings"
)

// frame is one element of the resolution stack: either a binding key or an
// injection being resolved on behalf of the binding below it.
type frame struct {
	key       string
	injection *Injection
}

// ResolutionSession tracks the bindings and injections currently being
// resolved for one top-level resolution. It is never shared between unrelated
// resolutions and must not be used from more than one goroutine at a time.
type ResolutionSession struct {
	frames []frame
	sync   bool
}

// NewResolutionSession creates an empty session.
func NewResolutionSession() *ResolutionSession {
	return &ResolutionSession{}
}

func newSyncSession() *ResolutionSession {
	return &ResolutionSession{sync: true}
}

// Enter pushes key onto the binding stack. It fails with a circular dependency
// error if key is already being resolved in this session.
func (s *ResolutionSession) Enter(key string) error {
	for _, f := range s.frames {
		if f.injection == nil && f.key == key {
			path := append(s.Keys(), key)

			return NewCircularDependencyError(path)
		}
	}

	s.frames = append(s.frames, frame{key: key})

	return nil
}

// Exit pops the top binding frame. Callers pair it with Enter via defer so the
// stack is released on every exit path.
func (s *ResolutionSession) Exit() {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if s.frames[i].injection == nil {
			s.frames = s.frames[:i]

			return
		}
	}
}

// EnterInjection records that inj is being resolved.
func (s *ResolutionSession) EnterInjection(inj *Injection) {
	s.frames = append(s.frames, frame{injection: inj})
}

// ExitInjection pops the top injection frame.
func (s *ResolutionSession) ExitInjection() {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if s.frames[i].injection != nil {
			s.frames = s.frames[:i]

			return
		}
	}
}

// Keys returns the binding keys on the stack, outermost first.
func (s *ResolutionSession) Keys() []string {
	keys := make([]string, 0, len(s.frames))
	for _, f := range s.frames {
		if f.injection == nil {
			keys = append(keys, f.key)
		}
	}

	return keys
}

// CurrentKey returns the innermost binding key, or "" for an empty stack.
func (s *ResolutionSession) CurrentKey() string {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if s.frames[i].injection == nil {
			return s.frames[i].key
		}
	}

	return ""
}

// CurrentInjection returns the innermost injection, or nil.
func (s *ResolutionSession) CurrentInjection() *Injection {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if s.frames[i].injection != nil {
			return s.frames[i].injection
		}
	}

	return nil
}

// Depth returns the number of frames on the stack.
func (s *ResolutionSession) Depth() int {
	return len(s.frames)
}

// Path renders the stack for diagnostics, e.g.
// "controllers.MyController --> @MyController.param[0] --> services.MyService".
func (s *ResolutionSession) Path() string {
	parts := make([]string, 0, len(s.frames))
	for _, f := range s.frames {
		if f.injection != nil {
			parts = append(parts, "@"+f.injection.Describe())
		} else {
			parts = append(parts, f.key)
		}
	}

	return strings.Join(parts, " --> ")
}

// fork copies the session so a producer running on another goroutine keeps
// cycle detection without sharing the caller's stack.
func (s *ResolutionSession) fork() *ResolutionSession {
	frames := make([]frame, len(s.frames))
	copy(frames, s.frames)

	return &ResolutionSession{frames: frames, sync: s.sync}
}
