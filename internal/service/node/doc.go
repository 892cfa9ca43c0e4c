// Package node assembles and runs a sensor node.
//
// It builds the simulated sensors, the alarm evaluators and their gates, the
// resource registry, the observe hub, metrics and the scheduler from
// configuration, then serves them over gRPC and HTTP until the context ends.
package node
