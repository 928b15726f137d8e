// Package version contains the current ld-sync version string.
package version

// Version is the package version
const Version = "1.0.0"
