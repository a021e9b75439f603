// Package js embeds the scripts the control injects into pages.
package js

import (
	_ "embed"
)

// ErrorOverlayScript renders a resource-load failure as an in-page banner.
// The __MESSAGE__ token is replaced with the quoted failure text before
// injection.
//
//go:embed error_overlay.js
var ErrorOverlayScript string

// DefaultStyleScript installs a style sheet in every new document before
// any page style loads. The __CSS__ token is replaced with the quoted
// sheet.
//
//go:embed default_style.js
var DefaultStyleScript string

// BridgeBootstrapScript is the page-side half of the native-object bridge.
// The __BINDING__ token is replaced with the host binding name.
//
//go:embed bridge_bootstrap.js
var BridgeBootstrapScript string

// RefreshStylesheetsScript re-fetches every linked stylesheet in place by
// cache-busting its href.
//
//go:embed refresh_stylesheets.js
var RefreshStylesheetsScript string
