package build

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sofmeright/imagetree/src/runner"
)

// ImageBuilder turns a build context into a tagged image.
type ImageBuilder interface {
	Name() string
	Build(ctx context.Context, step Step) (*StepResult, error)
}

var (
	registryMu sync.RWMutex
	registry   = map[string]func(runner.Runner) ImageBuilder{}
)

// Register adds a builder constructor to the global registry.
// Called from init() in each engine package.
func Register(name string, constructor func(runner.Runner) ImageBuilder) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("build: duplicate engine registration: %s", name))
	}
	registry[name] = constructor
}

// Get returns a new instance of the named builder.
func Get(name string, r runner.Runner) (ImageBuilder, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	ctor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("build: unknown engine: %s", name)
	}
	return ctor(r), nil
}

// All returns sorted names of all registered builders.
func All() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
