// Package version holds the build version string reported by --version.
package version

// Version is the current release version of the wsrpc runtime.
const Version = "1.0.0"
