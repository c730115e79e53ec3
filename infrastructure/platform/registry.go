package platform

import (
	"fmt"
	"sort"
	"strings"

	"event-sync/domain/repository"
)

// Registry maps platform keys to adapter implementations. Adapters are
// registered once at construction time; unknown keys are rejected at
// resolution, not deep inside the call chain.
type Registry struct {
	adapters map[string]repository.ISocialPlatform
}

func NewRegistry(adapters ...repository.ISocialPlatform) *Registry {
	m := make(map[string]repository.ISocialPlatform, len(adapters))
	for _, a := range adapters {
		m[strings.ToLower(a.Key())] = a
	}
	return &Registry{adapters: m}
}

// Resolve returns the adapter for key, or a descriptive error for an
// unsupported platform.
func (r *Registry) Resolve(key string) (repository.ISocialPlatform, error) {
	a, ok := r.adapters[strings.ToLower(key)]
	if !ok {
		return nil, fmt.Errorf("unsupported platform %q (registered: %s)", key, strings.Join(r.Keys(), ", "))
	}
	return a, nil
}

// Keys returns the registered platform keys, sorted.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.adapters))
	for k := range r.adapters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
