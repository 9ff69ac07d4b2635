package transport

import "sync"

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Dialer)
)

// Register makes a dialer available under a name. Protocol implementations
// register themselves in an init function; the serve command selects one by
// configuration.
func Register(name string, dialer Dialer) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = dialer
}

// Lookup returns the dialer registered under a name.
func Lookup(name string) (Dialer, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	d, ok := registry[name]
	return d, ok
}

// Names returns the registered dialer names.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}
