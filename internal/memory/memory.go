// Package memory defines the memory-constraint capability applied to
// prompts before generation, and the built-in constraint methods.
package memory

// MethodInfo describes a memory method for result payloads and logs.
type MethodInfo struct {
	Method      string         `json:"method"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// Method is the opaque text-transform capability. Implementations must
// be deterministic and safe for concurrent use: the same input always
// yields the same output regardless of which job calls it.
type Method interface {
	// Process transforms text according to the method's strategy.
	Process(text string) string

	// Info describes the method and its effective parameters.
	Info() MethodInfo
}
