package common

import (
	"fmt"
	"net/url"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/guregu/null.v3"
)

// DefaultPreloadedCacheEntries is how many per-property cache entries the
// higher-level component cache retains.
const DefaultPreloadedCacheEntries = 6

// Options is the configuration surface a host application can set on a
// view, either in code or through the environment.
type Options struct {
	// EnableViewPreload turns on speculative construction of replacement
	// view instances.
	EnableViewPreload bool `envconfig:"REACTVIEW_ENABLE_PRELOAD" default:"true"`

	// DefaultStyleSheet is the style sheet loaded into every component.
	DefaultStyleSheet string `envconfig:"REACTVIEW_DEFAULT_STYLESHEET"`

	// EnableDebugMode renders resource-load failures inline and dumps them
	// to disk.
	EnableDebugMode bool `envconfig:"REACTVIEW_DEBUG"`

	// DevServerURI, when set, points the view at a development server for
	// hot reloading.
	DevServerURI null.String `envconfig:"REACTVIEW_DEV_SERVER_URL"`

	// PreloadedCacheEntries bounds the higher-level per-property component
	// cache.
	PreloadedCacheEntries int `envconfig:"REACTVIEW_PRELOADED_CACHE_ENTRIES" default:"6"`

	// DumpDir is where debug-mode failure dumps are written.
	DumpDir string `envconfig:"REACTVIEW_DUMP_DIR"`
}

// NewOptions creates a default set of options.
func NewOptions() *Options {
	return &Options{
		EnableViewPreload:     true,
		PreloadedCacheEntries: DefaultPreloadedCacheEntries,
	}
}

// FromEnv overlays the options with values from the environment.
func (o *Options) FromEnv() error {
	if err := envconfig.Process("", o); err != nil {
		return fmt.Errorf("reading options from environment: %w", err)
	}
	return nil
}

// Validate validates the options.
func (o *Options) Validate() error {
	if o.PreloadedCacheEntries < 1 {
		return fmt.Errorf("invalid preloaded cache entries %d: precondition 1 <= SIZE failed", o.PreloadedCacheEntries)
	}
	if o.DevServerURI.Valid && o.DevServerURI.String != "" {
		u, err := url.Parse(o.DevServerURI.String)
		if err != nil {
			return fmt.Errorf("parsing dev server URI: %w", err)
		}
		switch u.Scheme {
		case "ws", "wss":
		default:
			return fmt.Errorf("invalid dev server URI scheme %q: must be ws or wss", u.Scheme)
		}
	}
	return nil
}
