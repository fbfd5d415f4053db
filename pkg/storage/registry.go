package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Factory creates a Backend from a configuration map.
type Factory func(context.Context, map[string]interface{}) (Backend, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register makes a backend kind available to Create. Backend packages call
// it from init.
func Register(kind string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[kind] = f
}

// Create instantiates a backend of the registered kind.
func Create(ctx context.Context, kind string, conf map[string]interface{}) (Backend, error) {
	registryMu.RLock()
	f, ok := registry[kind]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("storage kind %q not registered", kind)
	}
	return f(ctx, conf)
}

// CreateNested instantiates the backend described by conf[key], a map whose
// "type" entry names the kind. Decorating backends use it for the store they
// wrap.
func CreateNested(ctx context.Context, conf map[string]interface{}, key string) (Backend, error) {
	nested, ok := conf[key].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("missing %q parameter", key)
	}
	kind, ok := nested["type"].(string)
	if !ok {
		return nil, fmt.Errorf("%q parameter missing \"type\"", key)
	}
	b, err := Create(ctx, kind, nested)
	if err != nil {
		return nil, fmt.Errorf("creating nested %s store: %w", kind, err)
	}
	return b, nil
}

// Kinds returns the registered backend kinds, sorted.
func Kinds() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
