// Package sensor contains the simulated sensors of the node.
//
// A Simulator owns one bounded value and advances it by a random walk on every
// Sample: a draw in [0,100) below the decrease percentage moves the value
// down, a draw in the top increase percentage moves it up, anything else
// leaves it unchanged. Moves saturate at the bounds. A Fixed sensor is
// externally fed and never perturbed by sampling.
package sensor
