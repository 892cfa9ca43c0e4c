// Package resource implements the gRPC transport for the node resources.
//
// The node.v1.ResourceService is described by hand over protobuf well-known
// types (Empty, StringValue, Struct, ListValue), so no generated code is
// needed on either side. Server adapts the registry and the observe hub;
// Client is the typed stub used by the observer CLI.
package resource
