// Package observer implements the node-observer client commands.
//
// list, get and observe are thin wrappers over the resource service. watch is
// the adaptive monitor: it observes the acceleration and traffic alarms and
// polls every sensor, every second while motion is reported and every ten
// seconds otherwise.
package observer
