package weave

import (
	"context"
	"errors"
	"sync"

	"github.com/xraph/go-utils/di"
	"github.com/xraph/go-utils/log"
)

// managedValue is a cached value owned by a context that takes part in its lifecycle.
type managedValue struct {
	key     string
	value   any
	started bool
}

// lifecycle tracks the cached values a context owns. Values implementing
// di.Service are started when first produced and stopped when the context closes.
type lifecycle struct {
	mu     sync.Mutex
	values []managedValue
	scoped []*Binding
}

// manage starts value if it is a di.Service and records it for Close and Health.
func (l *lifecycle) manage(ctx context.Context, logger log.Logger, key string, value any) error {
	_, isService := value.(di.Service)
	_, isDisposable := value.(di.Disposable)
	_, isChecker := value.(di.HealthChecker)

	if !isService && !isDisposable && !isChecker {
		return nil
	}

	started := false

	if svc, ok := value.(di.Service); ok {
		if err := svc.Start(ctx); err != nil {
			return NewLifecycleError(key, "start", err)
		}

		started = true
		logger.Debug("service started", log.String("key", key))
	}

	l.mu.Lock()
	l.values = append(l.values, managedValue{key: key, value: value, started: started})
	l.mu.Unlock()

	return nil
}

func (l *lifecycle) trackScoped(b *Binding) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, tracked := range l.scoped {
		if tracked == b {
			return
		}
	}

	l.scoped = append(l.scoped, b)
}

// shutdown stops services in reverse start order, disposes disposables and
// evicts the context-scoped values cached for contextID.
func (l *lifecycle) shutdown(ctx context.Context, contextID string) error {
	l.mu.Lock()
	values := l.values
	scoped := l.scoped
	l.values = nil
	l.scoped = nil
	l.mu.Unlock()

	for _, b := range scoped {
		b.evictScoped(contextID)
	}

	var errs []error

	for i := len(values) - 1; i >= 0; i-- {
		mv := values[i]

		if svc, ok := mv.value.(di.Service); ok && mv.started {
			if err := svc.Stop(ctx); err != nil {
				errs = append(errs, NewLifecycleError(mv.key, "stop", err))
			}
		}

		if disposable, ok := mv.value.(di.Disposable); ok {
			if err := disposable.Dispose(); err != nil {
				errs = append(errs, NewLifecycleError(mv.key, "dispose", err))
			}
		}
	}

	return errors.Join(errs...)
}

// health returns the first failing health check.
func (l *lifecycle) health(ctx context.Context) error {
	l.mu.Lock()
	values := make([]managedValue, len(l.values))
	copy(values, l.values)
	l.mu.Unlock()

	for _, mv := range values {
		if checker, ok := mv.value.(di.HealthChecker); ok {
			if err := checker.Health(ctx); err != nil {
				return NewLifecycleError(mv.key, "health", err)
			}
		}
	}

	return nil
}
