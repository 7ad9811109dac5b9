package weave

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xraph/go-utils/errs"
)

// Mock service for testing.
type mockService struct {
	name       string
	started    bool
	stopped    bool
	healthy    bool
	startErr   error
	stopErr    error
	healthErr  error
	configured bool
	disposed   bool
	onStop     func()
}

func (m *mockService) Name() string {
	return m.name
}

func (m *mockService) Start(ctx context.Context) error {
	if m.startErr != nil {
		return m.startErr
	}

	m.started = true

	return nil
}

func (m *mockService) Stop(ctx context.Context) error {
	if m.onStop != nil {
		m.onStop()
	}

	if m.stopErr != nil {
		return m.stopErr
	}

	m.stopped = true

	return nil
}

func (m *mockService) Health(ctx context.Context) error {
	if m.healthErr != nil {
		return m.healthErr
	}

	if !m.healthy {
		return errors.New("unhealthy")
	}

	return nil
}

func (m *mockService) Configure(config any) error {
	m.configured = true

	return nil
}

func (m *mockService) Dispose() error {
	m.disposed = true

	return nil
}

func recordEvents(c *Context) *[]string {
	var events []string

	c.Subscribe(ObserverFunc(func(ev ContextEvent) {
		events = append(events, ev.Type.String()+":"+ev.Binding.Key())
	}))

	return &events
}

func TestNewContext(t *testing.T) {
	c := NewContext("application")

	assert.Equal(t, "application", c.Name())
	assert.NotEmpty(t, c.ID())
	assert.Nil(t, c.Parent())
	assert.NotNil(t, c.Logger())
}

func TestNewContext_DefaultName(t *testing.T) {
	c := NewContext("")

	assert.Equal(t, c.ID(), c.Name())
}

func TestContext_NewChild(t *testing.T) {
	parent := NewContext("application")
	child := parent.NewChild("request")

	assert.Same(t, parent, child.Parent())
	assert.NotEqual(t, parent.ID(), child.ID())
}

func TestContext_BindAndGet(t *testing.T) {
	c := NewContext("application")
	c.Bind("greeting").To("hello")

	value, err := c.Get(context.Background(), "greeting")
	require.NoError(t, err)
	assert.Equal(t, "hello", value)

	assert.True(t, c.Contains("greeting"))
	assert.True(t, c.IsBound("greeting"))
}

func TestContext_Get_NotFound(t *testing.T) {
	parent := NewContext("application")
	child := parent.NewChild("request")

	_, err := child.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBindingNotFound)
	assert.Contains(t, err.Error(), "missing")
	assert.Contains(t, err.Error(), "request")

	var coded *errs.Error
	require.True(t, errors.As(err, &coded))
	assert.Equal(t, "missing", coded.GetContext()["key"])
}

func TestContext_Get_Optional(t *testing.T) {
	c := NewContext("application").NewChild("request")

	value, err := c.Get(context.Background(), "missing", WithOptional())
	require.NoError(t, err)
	assert.Nil(t, value)

	value, err = c.GetSync("missing", WithOptional())
	require.NoError(t, err)
	assert.Nil(t, value)
}

func TestContext_ChildShadowsParent(t *testing.T) {
	parent := NewContext("application")
	parent.Bind("name").To("parent")

	child := parent.NewChild("request")
	child.Bind("name").To("child")

	value, err := child.Get(context.Background(), "name")
	require.NoError(t, err)
	assert.Equal(t, "child", value)

	value, err = parent.Get(context.Background(), "name")
	require.NoError(t, err)
	assert.Equal(t, "parent", value)

	assert.True(t, child.IsBound("name"))
	assert.False(t, NewContext("other").IsBound("name"))
}

func TestContext_ParentDelegation(t *testing.T) {
	parent := NewContext("application")
	parent.Bind("name").To("parent")

	child := parent.NewChild("request")

	assert.False(t, child.Contains("name"))
	assert.True(t, child.IsBound("name"))

	b, err := child.GetBinding("name")
	require.NoError(t, err)
	assert.Same(t, parent, b.Owner())
}

func TestContext_Bind_ReplacesExisting(t *testing.T) {
	c := NewContext("application")
	first := c.Bind("key").To(1)

	events := recordEvents(c)

	second := c.Bind("key").To(2)

	assert.Equal(t, []string{"unbind:key", "bind:key", "change:key"}, *events)
	assert.Nil(t, first.Owner())
	assert.Same(t, c, second.Owner())
	assert.Equal(t, []string{"key"}, c.Keys())

	value, err := c.Get(context.Background(), "key")
	require.NoError(t, err)
	assert.Equal(t, 2, value)
}

func TestContext_Bind_LockedPanics(t *testing.T) {
	c := NewContext("application")
	c.Bind("key").To(1).Lock()

	assert.Panics(t, func() {
		c.Bind("key")
	})

	err := c.Add(NewBinding("key").To(2))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBindingLocked)
}

func TestContext_Unbind(t *testing.T) {
	parent := NewContext("application")
	parent.Bind("shared").To("parent")

	child := parent.NewChild("request")
	child.Bind("own").To("child")

	events := recordEvents(child)

	assert.False(t, child.Unbind("shared"))
	assert.True(t, child.Unbind("own"))
	assert.False(t, child.Unbind("own"))
	assert.Equal(t, []string{"unbind:own"}, *events)
	assert.True(t, parent.Contains("shared"))
}

func TestContext_Unbind_Locked(t *testing.T) {
	c := NewContext("application")
	b := c.Bind("key").To(1).Lock()

	assert.False(t, c.Unbind("key"))

	b.Unlock()
	assert.True(t, c.Unbind("key"))
}

func TestContext_Find_Order(t *testing.T) {
	parent := NewContext("application")
	parent.Bind("a").To("parent-a").Tag("x")
	parent.Bind("b").To("parent-b").Tag("x")

	child := parent.NewChild("request")
	child.Bind("c").To("child-c").Tag("x")
	child.Bind("a").To("child-a").Tag("x")

	keys := bindingKeys(child.Find(ByTag("x")))
	assert.Equal(t, []string{"c", "a", "b"}, keys)

	found := child.FindByTag("x")
	require.Len(t, found, 3)
	assert.Same(t, child, found[1].Owner())
}

func TestContext_Find_ChildShadowHidesInheritedMatch(t *testing.T) {
	parent := NewContext("application")
	parent.Bind("a").To("parent-a").Tag("x")

	child := parent.NewChild("request")
	child.Bind("a").To("child-a")

	assert.Empty(t, child.Find(ByTag("x")))
	assert.Len(t, parent.Find(ByTag("x")), 1)
}

func TestContext_SubscribeUnsubscribe(t *testing.T) {
	c := NewContext("application")

	var calls []string

	first := c.Subscribe(ObserverFunc(func(ev ContextEvent) {
		calls = append(calls, "first:"+ev.Type.String())
	}))
	c.Subscribe(ObserverFunc(func(ev ContextEvent) {
		calls = append(calls, "second:"+ev.Type.String())
		assert.Same(t, c, ev.Context)
	}))

	c.Bind("key")
	assert.Equal(t, []string{"first:bind", "second:bind"}, calls)

	assert.True(t, first.Unsubscribe())
	assert.False(t, c.Unsubscribe(first))
	assert.Same(t, c, first.Context())

	calls = nil
	c.Unbind("key")
	assert.Equal(t, []string{"second:unbind"}, calls)
}

func TestContext_ChangeEvents(t *testing.T) {
	c := NewContext("application")
	b := c.Bind("key")

	events := recordEvents(c)

	b.To(1).Tag("t").InScope(Singleton)
	assert.Equal(t, []string{"change:key", "change:key", "change:key"}, *events)

	detached := NewBinding("other")
	detached.To(1)
	assert.Len(t, *events, 3)
}

func TestContext_DynamicValue(t *testing.T) {
	c := NewContext("application")
	c.Bind("port").To(8080)
	c.Bind("url").ToDynamicValue(func(rc *ResolutionContext) (any, error) {
		port, err := rc.Get("port")
		if err != nil {
			return nil, err
		}

		assert.Equal(t, "url", rc.Binding.Key())

		return port.(int) + 1, nil
	})

	value, err := c.Get(context.Background(), "url")
	require.NoError(t, err)
	assert.Equal(t, 8081, value)
}

func TestContext_FactoryError(t *testing.T) {
	c := NewContext("application")

	expected := errors.New("boom")
	c.Bind("broken").ToDynamicValue(func(rc *ResolutionContext) (any, error) {
		return nil, expected
	})

	_, err := c.Get(context.Background(), "broken")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrResolution)

	var coded *errs.Error
	require.ErrorAs(t, err, &coded)
	assert.Equal(t, "broken", coded.GetContext()["key"])
	assert.ErrorIs(t, coded.Cause(), expected)
}

func TestContext_NotConfigured(t *testing.T) {
	c := NewContext("application")
	c.Bind("empty")

	_, err := c.Get(context.Background(), "empty")
	assert.ErrorIs(t, err, ErrBindingNotConfigured)
}

func TestContext_UnsupportedScope(t *testing.T) {
	c := NewContext("application")
	c.Bind("weird").To(1).InScope(Scope(42))

	_, err := c.Get(context.Background(), "weird")
	assert.ErrorIs(t, err, ErrUnsupportedScope)
}

func TestContext_Alias(t *testing.T) {
	c := NewContext("application")
	c.Bind("real").To("value")
	c.Bind("alias").ToAlias("real")

	value, err := c.Get(context.Background(), "alias")
	require.NoError(t, err)
	assert.Equal(t, "value", value)

	b, err := c.GetBinding("alias")
	require.NoError(t, err)
	assert.Equal(t, "real", b.AliasTarget())
}

func TestContext_Singleton(t *testing.T) {
	c := NewContext("application")

	var calls int32
	c.Bind("counter").ToDynamicValue(func(rc *ResolutionContext) (any, error) {
		atomic.AddInt32(&calls, 1)

		return &mockService{name: "counter", healthy: true}, nil
	}).InScope(Singleton)

	child := c.NewChild("request")

	first, err := c.Get(context.Background(), "counter")
	require.NoError(t, err)

	second, err := child.Get(context.Background(), "counter")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestContext_Singleton_Concurrent(t *testing.T) {
	c := NewContext("application")

	var calls int32
	c.Bind("slow").ToDynamicValue(func(rc *ResolutionContext) (any, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(20 * time.Millisecond)

		return &struct{ n int }{n: 1}, nil
	}).InScope(Singleton)

	const callers = 8

	var wg sync.WaitGroup

	results := make([]any, callers)
	failures := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			results[i], failures[i] = c.Get(context.Background(), "slow")
		}(i)
	}

	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	for i := 0; i < callers; i++ {
		require.NoError(t, failures[i])
		assert.Same(t, results[0], results[i])
	}
}

func TestContext_Singleton_FailureIsNotCached(t *testing.T) {
	c := NewContext("application")

	var calls int
	b := c.Bind("flaky").ToDynamicValue(func(rc *ResolutionContext) (any, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("first attempt fails")
		}

		return "ok", nil
	}).InScope(Singleton)

	_, err := c.Get(context.Background(), "flaky")
	require.Error(t, err)
	assert.False(t, b.IsCached())

	value, err := c.Get(context.Background(), "flaky")
	require.NoError(t, err)
	assert.Equal(t, "ok", value)
	assert.True(t, b.IsCached())
}

func TestContext_Rebind_ResetsSingleton(t *testing.T) {
	c := NewContext("application")
	c.Bind("value").ToDynamicValue(func(rc *ResolutionContext) (any, error) {
		return "old", nil
	}).InScope(Singleton)

	value, err := c.Get(context.Background(), "value")
	require.NoError(t, err)
	assert.Equal(t, "old", value)

	c.Bind("value").ToDynamicValue(func(rc *ResolutionContext) (any, error) {
		return "new", nil
	}).InScope(Singleton)

	value, err = c.Get(context.Background(), "value")
	require.NoError(t, err)
	assert.Equal(t, "new", value)
}

func TestContext_Reconfigure_ResetsSingleton(t *testing.T) {
	c := NewContext("application")
	b := c.Bind("value").To("old").InScope(Singleton)

	_, err := c.Get(context.Background(), "value")
	require.NoError(t, err)

	b.ToDynamicValue(func(rc *ResolutionContext) (any, error) {
		return "new", nil
	})

	value, err := c.Get(context.Background(), "value")
	require.NoError(t, err)
	assert.Equal(t, "new", value)
}

func TestContext_ContextScoped(t *testing.T) {
	app := NewContext("application")
	b := app.Bind("session").ToDynamicValue(func(rc *ResolutionContext) (any, error) {
		return &struct{ owner string }{owner: rc.Context.Name()}, nil
	}).InScope(ContextScoped)

	first := app.NewChild("first")
	second := app.NewChild("second")

	a1, err := first.Get(context.Background(), "session")
	require.NoError(t, err)

	a2, err := first.Get(context.Background(), "session")
	require.NoError(t, err)

	b1, err := second.Get(context.Background(), "session")
	require.NoError(t, err)

	assert.Same(t, a1, a2)
	assert.NotSame(t, a1, b1)

	require.NoError(t, first.Close(context.Background()))

	b.mu.RLock()
	_, cachedFirst := b.scoped[first.ID()]
	_, cachedSecond := b.scoped[second.ID()]
	b.mu.RUnlock()

	assert.False(t, cachedFirst)
	assert.True(t, cachedSecond)
}

func TestContext_Transient(t *testing.T) {
	c := NewContext("application")
	c.Bind("fresh").ToDynamicValue(func(rc *ResolutionContext) (any, error) {
		return &struct{}{}, nil
	})

	first, err := c.Get(context.Background(), "fresh")
	require.NoError(t, err)

	second, err := c.Get(context.Background(), "fresh")
	require.NoError(t, err)

	assert.NotSame(t, first, second)
}

func TestContext_CircularDependency(t *testing.T) {
	c := NewContext("application")
	c.Bind("A").ToDynamicValue(func(rc *ResolutionContext) (any, error) {
		return rc.Get("B")
	})
	c.Bind("B").ToDynamicValue(func(rc *ResolutionContext) (any, error) {
		return rc.Get("A")
	})

	_, err := c.Get(context.Background(), "A")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCircularDependency)
	assert.Contains(t, err.Error(), "A --> B --> A")

	var coded *errs.Error
	require.True(t, errors.As(err, &coded))
	assert.Equal(t, []string{"A", "B", "A"}, coded.GetContext()["path"])
}

func TestContext_CircularDependency_ThroughAlias(t *testing.T) {
	c := NewContext("application")
	c.Bind("a").ToAlias("b")
	c.Bind("b").ToAlias("a")

	_, err := c.GetSync("a")
	assert.ErrorIs(t, err, ErrCircularDependency)
}

func TestContext_AsyncValue(t *testing.T) {
	c := NewContext("application")
	c.Bind("remote").ToAsyncValue(func(ctx context.Context, rc *ResolutionContext) (any, error) {
		time.Sleep(5 * time.Millisecond)

		return "fetched", nil
	})

	value, err := c.Get(context.Background(), "remote")
	require.NoError(t, err)
	assert.Equal(t, "fetched", value)

	_, err = c.GetSync("remote")
	assert.ErrorIs(t, err, ErrAsyncResolution)
}

func TestContext_AsyncValue_NestedInSync(t *testing.T) {
	c := NewContext("application")
	c.Bind("remote").ToAsyncValue(func(ctx context.Context, rc *ResolutionContext) (any, error) {
		return "fetched", nil
	})
	c.Bind("local").ToDynamicValue(func(rc *ResolutionContext) (any, error) {
		return rc.Get("remote")
	})

	_, err := c.GetSync("local")
	assert.ErrorIs(t, err, ErrAsyncResolution)

	value, err := c.Get(context.Background(), "local")
	require.NoError(t, err)
	assert.Equal(t, "fetched", value)
}

func TestContext_AsyncSingleton_SurvivesCancelledCaller(t *testing.T) {
	c := NewContext("application")

	release := make(chan struct{})

	var calls int32
	c.Bind("slow").ToAsyncValue(func(ctx context.Context, rc *ResolutionContext) (any, error) {
		atomic.AddInt32(&calls, 1)
		<-release

		return "done", ctx.Err()
	}).InScope(Singleton)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Get(cancelled, "slow")
	assert.ErrorIs(t, err, context.Canceled)

	close(release)

	value, err := c.Get(context.Background(), "slow")
	require.NoError(t, err)
	assert.Equal(t, "done", value)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestContext_GetAsync(t *testing.T) {
	c := NewContext("application")
	c.Bind("value").To(42)

	f := c.GetAsync(context.Background(), "value")

	value, err := f.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, value)
	assert.True(t, f.IsSettled())
}

func TestContext_GetSync_RestoresSession(t *testing.T) {
	c := NewContext("application")
	c.Bind("value").To(1)

	session := NewResolutionSession()

	_, err := c.GetSync("value", WithSession(session))
	require.NoError(t, err)
	assert.False(t, session.sync)
	assert.Equal(t, 0, session.Depth())
}

func TestContext_Close(t *testing.T) {
	c := NewContext("application")
	svc := &mockService{name: "db", healthy: true}
	c.Bind("db").To(svc)

	view := c.CreateView(All())

	require.NoError(t, c.Close(context.Background()))
	require.NoError(t, c.Close(context.Background()))

	assert.True(t, view.IsClosed())

	_, err := c.Get(context.Background(), "db")
	assert.ErrorIs(t, err, ErrContextClosed)

	err = c.Add(NewBinding("late"))
	assert.ErrorIs(t, err, ErrContextClosed)
}

func TestContext_Use_MiddlewareReceivesKeys(t *testing.T) {
	c := NewContext("application")
	c.Bind("dep").To(1)
	c.Bind("top").ToDynamicValue(func(rc *ResolutionContext) (any, error) {
		return rc.Get("dep")
	})

	var keys []string

	c.Use(&FuncMiddleware{
		BeforeResolveFunc: func(ctx context.Context, key string) (context.Context, error) {
			keys = append(keys, key)

			return ctx, nil
		},
	})

	_, err := c.Get(context.Background(), "top")
	require.NoError(t, err)
	assert.Equal(t, []string{"top", "dep"}, keys)
}

func TestContext_Singleton_ResolvesFromOwner(t *testing.T) {
	reg := NewRegistry()
	holder := reg.MustDefine("Holder", func(id string) *struct{ ID string } {
		return &struct{ ID string }{ID: id}
	}, Param(0, InjectKey("request.id")))

	app := NewContext("application")
	app.Bind("request.id").To("root")
	app.Bind("holder").ToClass(holder).InScope(Singleton)

	request := app.NewChild("request")
	request.Bind("request.id").To("req-1")

	fromChild, err := Get[*struct{ ID string }](context.Background(), request, "holder")
	require.NoError(t, err)
	assert.Equal(t, "root", fromChild.ID)

	fromRoot, err := Get[*struct{ ID string }](context.Background(), app, "holder")
	require.NoError(t, err)
	assert.Same(t, fromChild, fromRoot)
}

func TestContext_Singleton_FactorySeesOwner(t *testing.T) {
	app := NewContext("application")
	app.Bind("owner").ToDynamicValue(func(rc *ResolutionContext) (any, error) {
		return rc.Context.Name(), nil
	}).InScope(Singleton)

	value, err := app.NewChild("request").Get(context.Background(), "owner")
	require.NoError(t, err)
	assert.Equal(t, "application", value)
}

func TestContext_GetSync_FailsOnInFlightSingleton(t *testing.T) {
	c := NewContext("application")

	entered := make(chan struct{})
	release := make(chan struct{})

	c.Bind("slow").ToDynamicValue(func(rc *ResolutionContext) (any, error) {
		close(entered)
		<-release

		return "done", nil
	}).InScope(Singleton)

	var wg sync.WaitGroup

	wg.Add(1)

	go func() {
		defer wg.Done()

		value, err := c.GetSync("slow")
		assert.NoError(t, err)
		assert.Equal(t, "done", value)
	}()

	<-entered

	_, err := c.GetSync("slow")
	assert.ErrorIs(t, err, ErrAsyncResolution)

	close(release)
	wg.Wait()

	value, err := c.GetSync("slow")
	require.NoError(t, err)
	assert.Equal(t, "done", value)
}
