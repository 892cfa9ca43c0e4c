// Package forwarder relays alarm notifications to an AMQP queue.
//
// It subscribes to every observable resource through the observe hub and
// publishes one JSON event per status change, so remote consumers can react
// without holding an observe stream open.
package forwarder
