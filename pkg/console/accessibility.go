//go:build !js && !wasm

package console

import "os"

// IsAccessibleMode reports whether interactive huh forms should render in
// their accessible (plain, screen-reader-friendly) mode rather than the
// full TUI, per huh's own ACCESSIBLE environment variable convention.
func IsAccessibleMode() bool {
	return os.Getenv("ACCESSIBLE") != ""
}
