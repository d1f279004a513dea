package tree

import "fmt"

// ConfigurationError reports a missing or invalid configuration value.
// It is fatal: the build run stops and nothing is retried.
type ConfigurationError struct {
	Path string // dotted key path the error refers to, if any
	Msg  string
}

func (e *ConfigurationError) Error() string {
	if e.Path == "" {
		return "configuration: " + e.Msg
	}
	return fmt.Sprintf("configuration: %s: %s", e.Path, e.Msg)
}

// InputShapeError reports a package or command list that contains a value
// of the wrong shape, such as a mapping nested inside a list.
type InputShapeError struct {
	Line int
	Kind string
}

func (e *InputShapeError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: expected a string or a list of strings, got %s", e.Line, e.Kind)
	}
	return fmt.Sprintf("expected a string or a list of strings, got %s", e.Kind)
}
