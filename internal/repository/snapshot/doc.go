// Package snapshot persists the node state between runs.
//
// A Snapshot holds the last sensor values and alarm statuses. The
// FileRepository writes it as protobuf JSON (a google.protobuf.Struct) so the
// file can be inspected and edited by hand.
package snapshot
