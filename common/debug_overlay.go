package common

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/viewfabric/reactview/common/js"
)

// errorOverlayScript builds the in-page banner shown in debug mode when a
// resource fails to load. The payload is quoted before injection so failure
// text can never become script.
func errorOverlayScript(failure *ResourceLoadFailure) string {
	msg := strconv.Quote(fmt.Sprintf("Failed to load %s: %s", failure.URL, failure.ErrorText))
	return strings.ReplaceAll(js.ErrorOverlayScript, "__MESSAGE__", msg)
}

func defaultStyleScript(css string) string {
	return strings.ReplaceAll(js.DefaultStyleScript, "__CSS__", strconv.Quote(css))
}
