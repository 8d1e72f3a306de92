package strategy

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownType is returned when building a strategy type nobody registered.
var ErrUnknownType = errors.New("strategy: unknown type")

// Factory builds a strategy instance bound to its engine-facing name and
// subscribed symbol.
type Factory func(name, symbol string, trader Trader, params map[string]float64) Strategy

var registry = make(map[string]Factory)

// Register makes a strategy type available to Build. It is called from
// package init functions and panics on duplicates.
func Register(typeName string, f Factory) {
	if _, ok := registry[typeName]; ok {
		panic(fmt.Sprintf("strategy type %q registered twice", typeName))
	}
	registry[typeName] = f
}

// Build constructs a strategy of the given registered type.
func Build(typeName, name, symbol string, trader Trader, params map[string]float64) (Strategy, error) {
	f, ok := registry[typeName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, typeName)
	}
	return f(name, symbol, trader, params), nil
}

// Types lists the registered strategy type names, sorted.
func Types() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
