// Package config defines the node settings and helpers to load, validate and
// save them in YAML format.
//
// Defaults reproduce the stock simulation (bounds, probabilities, steps,
// thresholds and periods); a YAML file overrides any subset of them and
// NODE_* environment variables override the file.
package config
