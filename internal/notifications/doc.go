// Package notifications pushes job outcomes to ntfy.
//
// A Notifier subscribes to the events hub as a sink and turns each finished
// event into a push message, filtered by the per-outcome toggles in the
// [notifications] config section. Delivery runs on background goroutines so
// publishing never waits on the network. When no topic is configured
// NewNotifier returns nil and nothing is sent.
package notifications
