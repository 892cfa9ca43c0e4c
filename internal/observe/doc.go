// Package observe dispatches alarm notifications to subscribers.
//
// The Hub implements the alarm Notifier: each Notify renders one fresh
// representation of the resource and hands it to every current subscriber
// without blocking. A subscriber that falls behind keeps only the latest
// notification, so observers always converge on the current status.
package observe
