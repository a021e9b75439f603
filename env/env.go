// Package env provides the environment variables reactview recognizes and
// a lookup indirection so that tests can inject their own environment.
package env

import "os"

// Environment variable names.
const (
	// LogLevel sets the log level: "debug", "info", "warn" or "error".
	LogLevel = "REACTVIEW_LOG_LEVEL"

	// LogCategoryFilter is a regular expression limiting log output to
	// matching categories.
	LogCategoryFilter = "REACTVIEW_LOG_CATEGORY_FILTER"

	// DebugMode enables debug mode: failed resource loads are rendered
	// inline and dumped to disk.
	DebugMode = "REACTVIEW_DEBUG"

	// DevServerURL points the control at a development server for
	// hot-reloading front-end bundles.
	DevServerURL = "REACTVIEW_DEV_SERVER_URL"

	// EnablePreload governs speculative view construction. On by default.
	EnablePreload = "REACTVIEW_ENABLE_PRELOAD"

	// TracesOutput configures the OTLP endpoint traces are pushed to.
	TracesOutput = "REACTVIEW_TRACES_OUTPUT"
)

// LookupFunc defines a function to look up a key from the environment.
type LookupFunc func(key string) (string, bool)

// Lookup is the default LookupFunc backed by the process environment.
func Lookup(key string) (string, bool) {
	return os.LookupEnv(key)
}

// IsSet reports whether the environment variable key is set to a truthy
// value ("", "0", "false" and "no" count as unset).
func IsSet(lookup LookupFunc, key string) bool {
	v, ok := lookup(key)
	if !ok {
		return false
	}
	switch v {
	case "", "0", "false", "no":
		return false
	}
	return true
}
