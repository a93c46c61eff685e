package sink

import (
	"fmt"
	"sort"
	"sync"
)

// Factory builds a sink from its configuration options.
type Factory func(options map[string]any) (Sink, error)

var (
	factoryMu sync.RWMutex
	factories = make(map[string]Factory)
)

// RegisterFactory makes a sink kind available to New. Sink packages call
// it from init.
func RegisterFactory(kind string, f Factory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	factories[kind] = f
}

// LookupFactory returns the factory registered for kind.
func LookupFactory(kind string) (Factory, bool) {
	factoryMu.RLock()
	defer factoryMu.RUnlock()
	f, ok := factories[kind]
	return f, ok
}

// Kinds lists the registered sink kinds in sorted order.
func Kinds() []string {
	factoryMu.RLock()
	defer factoryMu.RUnlock()
	kinds := make([]string, 0, len(factories))
	for k := range factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// New builds a sink of the given kind.
func New(kind string, options map[string]any) (Sink, error) {
	f, ok := LookupFactory(kind)
	if !ok {
		return nil, fmt.Errorf("sink: unknown kind %q", kind)
	}
	return f(options)
}

// StringOption reads a string option, returning def when absent.
func StringOption(options map[string]any, key, def string) (string, error) {
	v, ok := options[key]
	if !ok || v == nil {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("sink: option %q must be a string, got %T", key, v)
	}
	return s, nil
}

// IntOption reads an integer option, returning def when absent. YAML and
// JSON decoders produce int and float64 respectively; both are accepted.
func IntOption(options map[string]any, key string, def int) (int, error) {
	v, ok := options[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("sink: option %q must be an integer, got %v", key, n)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("sink: option %q must be an integer, got %T", key, v)
	}
}
