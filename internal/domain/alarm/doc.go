// Package alarm contains the alarm evaluators of the node.
//
// An Evaluator owns a two-state status derived from one sensor reading and a
// threshold predicate. Each periodic tick is gated by a precondition; when the
// gate is open the sensor is sampled, the predicate applied, and the Notifier
// is called exactly once if the status flipped.
package alarm
