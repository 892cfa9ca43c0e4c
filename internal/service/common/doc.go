// Package common holds helpers shared by several services.
//
// It provides a lightweight gRPC client of the node resource service with
// call timeouts, and detection of the local actor (user@host) that identifies
// observers in node logs.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
