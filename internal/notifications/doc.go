// Package notifications delivers user-visible error and status messages.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and degrades to structured log lines when no topic is set.
// Delivery is fire-and-forget: Dispatcher hands each message to a background
// goroutine so lookups never wait on a notification.
package notifications
