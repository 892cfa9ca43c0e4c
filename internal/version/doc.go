// Package version exposes build metadata of the node binaries.
//
// Version, Commit and BuildTime are injected with -ldflags "-X"; the Go
// toolchain version is read from the embedded build info.
package version
