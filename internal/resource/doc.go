// Package resource is the read-side facade of the node.
//
// Every sensor and alarm is a Resource with a read handler that renders its
// current value as plain text into a bounded buffer. Sensor reads advance the
// simulation; alarm reads return the last computed status and advertise a
// max-age equal to the evaluation period. The Registry maps names and URI
// paths to resources and renders the CoRE link-format discovery document.
package resource
