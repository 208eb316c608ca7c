// Package buildinfo carries version metadata injected at release time.
package buildinfo

// Set via -ldflags; defaults describe a local dev build.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)
