package weave

import (
	"context"
	"fmt"
	"reflect"
	"sort"

	"gopkg.in/yaml.v3"
)

// configSuffix marks the binding that holds configuration for another key.
const configSuffix = ":$config"

// ConfigKey returns the key under which configuration for key is bound.
func ConfigKey(key string) string {
	return key + configSuffix
}

// Configure binds the configuration for key in this context.
func (c *Context) Configure(key string) *Binding {
	return c.Bind(ConfigKey(key)).Tag("config")
}

// GetConfig resolves the configuration bound for key. Missing configuration
// resolves to nil.
func (c *Context) GetConfig(ctx context.Context, key string, opts ...ResolveOption) (any, error) {
	return c.Get(ctx, ConfigKey(key), append(opts, WithOptional())...)
}

// GetConfigSync is GetConfig without waiting.
func (c *Context) GetConfigSync(key string, opts ...ResolveOption) (any, error) {
	return c.GetSync(ConfigKey(key), append(opts, WithOptional())...)
}

// LoadConfigYAML binds every top-level entry of a YAML document as the
// configuration of the key it is named after, in key order.
//
//	db:
//	  dsn: postgres://localhost/app
//	cache:
//	  size: 128
func (c *Context) LoadConfigYAML(data []byte) error {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	keys := make([]string, 0, len(doc))
	for key := range doc {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	for _, key := range keys {
		b := NewBinding(ConfigKey(key)).To(doc[key]).Tag("config")
		if err := c.Add(b); err != nil {
			return err
		}
	}

	return nil
}

// LoadConfigAs resolves the configuration for key and decodes it into T. A
// missing configuration yields the zero T.
func LoadConfigAs[T any](ctx context.Context, c *Context, key string) (T, error) {
	var zero T

	value, err := c.GetConfig(ctx, key)
	if err != nil || value == nil {
		return zero, err
	}

	if typed, ok := value.(T); ok {
		return typed, nil
	}

	decoded, err := decodeConfig(value, reflect.TypeOf((*T)(nil)).Elem())
	if err != nil {
		return zero, err
	}

	return decoded.(T), nil
}

// InjectConfig injects the configuration bound for key, decoded into the
// declared type when it is not directly assignable. An empty key means the
// binding being instantiated. Missing configuration injects the zero value.
func InjectConfig(key string, opts ...InjectionOption) *Injection {
	inj := newInjection(InjectByConfig, resolveConfig, opts)
	inj.key = key
	inj.optional = true

	return inj
}

func resolveConfig(rc *ResolutionContext, inj *Injection) (any, error) {
	key := inj.key
	if key == "" {
		key = rc.Session.CurrentKey()
	}

	value, err := rc.Get(ConfigKey(key), WithOptional())
	if err != nil || value == nil {
		return nil, err
	}

	if inj.declared == nil || reflect.TypeOf(value).AssignableTo(inj.declared) {
		return value, nil
	}

	return decodeConfig(value, inj.declared)
}

// decodeConfig re-encodes value as YAML and decodes it into a new t.
func decodeConfig(value any, t reflect.Type) (any, error) {
	raw, err := yaml.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}

	target := reflect.New(t)
	if err := yaml.Unmarshal(raw, target.Interface()); err != nil {
		return nil, fmt.Errorf("decode config into %s: %w", t, err)
	}

	return target.Elem().Interface(), nil
}
