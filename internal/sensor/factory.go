package sensor

import (
	"fmt"
	"sort"

	"github.com/perimeterwatch/sigcor/internal/signal"
)

// Factory builds a module from declarative config options.
type Factory func(options map[string]interface{}) (Module, error)

// factories is the compile-time registry of supported module types.
var factories = map[string]Factory{
	"waf": newWAFFromOptions,
	"ids": newIDSFromOptions,
}

// Build resolves a module type against the factory registry. Unsupported
// types are an error naming the available types.
func Build(moduleType string, options map[string]interface{}) (Module, error) {
	factory, ok := factories[moduleType]
	if !ok {
		return nil, fmt.Errorf("unsupported module type %q (available: %v)", moduleType, Available())
	}
	return factory(options)
}

// Available lists the supported module types, sorted.
func Available() []string {
	types := make([]string, 0, len(factories))
	for name := range factories {
		types = append(types, name)
	}
	sort.Strings(types)
	return types
}

func newWAFFromOptions(options map[string]interface{}) (Module, error) {
	return NewWAFModule(signal.PayloadStrings(options, "blocklist")), nil
}

func newIDSFromOptions(options map[string]interface{}) (Module, error) {
	return NewIDSModule(), nil
}
