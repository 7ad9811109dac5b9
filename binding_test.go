package weave

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xraph/go-utils/di"
)

func TestNewBinding_Defaults(t *testing.T) {
	b := NewBinding("key")

	assert.Equal(t, "key", b.Key())
	assert.Equal(t, Transient, b.Scope())
	assert.Equal(t, ProducerNone, b.Kind())
	assert.Empty(t, b.Tags())
	assert.False(t, b.IsLocked())
	assert.Nil(t, b.Owner())
	assert.False(t, b.IsCached())
}

func TestBinding_ProducerAccessors(t *testing.T) {
	reg := NewRegistry()
	cls := reg.MustDefine("MyService", NewMyService)

	b := NewBinding("key").ToClass(cls)
	assert.Equal(t, ProducerClass, b.Kind())
	assert.Same(t, cls, b.ValueClass())
	assert.Nil(t, b.ProviderClass())
	assert.Empty(t, b.AliasTarget())

	b.ToProvider(cls)
	assert.Equal(t, ProducerProvider, b.Kind())
	assert.Nil(t, b.ValueClass())
	assert.Same(t, cls, b.ProviderClass())

	b.ToAlias("other")
	assert.Equal(t, ProducerAlias, b.Kind())
	assert.Equal(t, "other", b.AliasTarget())
	assert.Nil(t, b.ProviderClass())
}

func TestBinding_Tags(t *testing.T) {
	b := NewBinding("key").Tag("zeta", "alpha", "mid").Tag("alpha")

	assert.Equal(t, []string{"alpha", "mid", "zeta"}, b.Tags())
	assert.True(t, b.HasTag("mid"))

	b.Untag("mid", "missing")
	assert.Equal(t, []string{"alpha", "zeta"}, b.Tags())
	assert.False(t, b.HasTag("mid"))
}

func TestBinding_Owner(t *testing.T) {
	c := NewContext("application")
	b := c.Bind("key").To(1)

	assert.Same(t, c, b.Owner())

	c.Unbind("key")
	assert.Nil(t, b.Owner())
}

func TestBinding_LockUnlock(t *testing.T) {
	c := NewContext("application")
	c.Bind("key").To(1).Lock()

	err := c.Add(NewBinding("key").To(2))
	assert.ErrorIs(t, err, ErrBindingLocked)

	b, err := c.GetBinding("key")
	require.NoError(t, err)
	b.Unlock()

	require.NoError(t, c.Add(NewBinding("key").To(2)))

	value, err := c.Get(context.Background(), "key")
	require.NoError(t, err)
	assert.Equal(t, 2, value)
}

func TestBinding_IsCached(t *testing.T) {
	c := NewContext("application")
	b := c.Bind("key").ToDynamicValue(func(rc *ResolutionContext) (any, error) {
		return "v", nil
	}).InScope(Singleton)

	assert.False(t, b.IsCached())

	_, err := c.Get(context.Background(), "key")
	require.NoError(t, err)
	assert.True(t, b.IsCached())

	b.InScope(Singleton)
	assert.False(t, b.IsCached())
}

func TestBinding_Dependencies(t *testing.T) {
	reg := NewRegistry()
	cls := reg.MustDefine("Holder", func(svc, cfg, lazy, opt any) *MyService { return NewMyService() },
		Param(0, InjectKey("services.a")),
		Param(1, InjectConfig("")),
		Param(2, InjectGetter("services.b")),
		Param(3, InjectKey("services.c", Optional())),
	)

	deps := NewBinding("holder").ToClass(cls).Dependencies()
	require.Len(t, deps, 4)

	assert.Equal(t, []string{"services.a", "holder:$config", "services.b", "services.c"}, di.DepNames(deps))
	assert.False(t, deps[0].Mode.IsLazy())
	assert.False(t, deps[0].Mode.IsOptional())
	assert.True(t, deps[1].Mode.IsOptional())
	assert.True(t, deps[2].Mode.IsLazy())
	assert.True(t, deps[3].Mode.IsOptional())

	assert.Equal(t, []string{"target"}, di.DepNames(NewBinding("alias").ToAlias("target").Dependencies()))
	assert.Empty(t, NewBinding("value").To(1).Dependencies())
	assert.Empty(t, NewBinding("class").ToClass(nil).Dependencies())
}

func TestBinding_FilterInjectionsHaveNoStaticDependencies(t *testing.T) {
	reg := NewRegistry()
	cls := reg.MustDefine("Collector", func(items []Greeter) *MyService { return NewMyService() },
		Param(0, InjectTag("greeter")),
	)

	assert.Empty(t, NewBinding("collector").ToClass(cls).Dependencies())
}

func TestScope_String(t *testing.T) {
	tests := []struct {
		scope Scope
		name  string
		valid bool
	}{
		{Transient, "transient", true},
		{Singleton, "singleton", true},
		{ContextScoped, "context", true},
		{Scope(42), "unknown", false},
		{Scope(-1), "unknown", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.scope.String())
			assert.Equal(t, tt.valid, tt.scope.IsValid())
		})
	}
}

func TestProducerKind_String(t *testing.T) {
	kinds := map[ProducerKind]string{
		ProducerNone:         "none",
		ProducerValue:        "value",
		ProducerFactory:      "factory",
		ProducerAsyncFactory: "async-factory",
		ProducerClass:        "class",
		ProducerProvider:     "provider",
		ProducerAlias:        "alias",
	}

	for kind, name := range kinds {
		assert.Equal(t, name, kind.String())
	}
}
