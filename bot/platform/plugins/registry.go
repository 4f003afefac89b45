// Package plugins is the provider plugin registry. Provider packages
// register a factory from init(); the application builds the providers
// named in configuration, in configured priority order.
package plugins

import (
	"fmt"
	"sort"
	"sync"

	"github.com/muhammadzakizn/sonora/bot"
	"github.com/muhammadzakizn/sonora/bot/config"
	"github.com/muhammadzakizn/sonora/bot/platform"
)

// Contribution describes the components a plugin can provide.
type Contribution struct {
	Provider  platform.Provider
	Providers []platform.Provider
}

// All returns every provider in the contribution.
func (c *Contribution) All() []platform.Provider {
	var out []platform.Provider
	if c.Provider != nil {
		out = append(out, c.Provider)
	}
	out = append(out, c.Providers...)
	return out
}

// Factory creates a plugin contribution based on config and logger.
type Factory func(cfg *config.Config, logger bot.Logger) (*Contribution, error)

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// Register registers a plugin factory by name.
func Register(name string, factory Factory) error {
	if name == "" {
		return fmt.Errorf("plugin name required")
	}
	if factory == nil {
		return fmt.Errorf("plugin factory required")
	}
	mu.Lock()
	defer mu.Unlock()
	if _, exists := factories[name]; exists {
		return fmt.Errorf("plugin %s already registered", name)
	}
	factories[name] = factory
	return nil
}

// Get returns a registered factory by name.
func Get(name string) (Factory, bool) {
	mu.RLock()
	defer mu.RUnlock()
	factory, ok := factories[name]
	return factory, ok
}

// Names returns all registered plugin names.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	nameList := make([]string, 0, len(factories))
	for name := range factories {
		nameList = append(nameList, name)
	}
	sort.Strings(nameList)
	return nameList
}

// BuildManager constructs a provider manager from the configured provider
// order. Unregistered names are skipped with a warning; a plugin factory
// error is fatal since it means misconfiguration, not absence.
func BuildManager(cfg *config.Config, logger bot.Logger, order []string) (*platform.Manager, error) {
	manager := platform.NewManager()
	for _, name := range order {
		factory, ok := Get(name)
		if !ok {
			logger.Warn("unknown provider in provider_order", "name", name)
			continue
		}
		contrib, err := factory(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("build provider %s: %w", name, err)
		}
		for _, p := range contrib.All() {
			manager.Register(p)
		}
	}
	manager.SetPriority(order)
	return manager, nil
}
