// Package store holds the in-memory projections built from session events.
//
// MessageStore is the bounded log of all inbound and outbound traffic
// together with the topic index derived from it, running counters and the
// operator's view state (selection, search text, topic filter). Its
// mutating operations are serialised by a single write lock; reads take the
// read lock and return copies, so a reader never observes a half-applied
// message.
//
// ConnectionStore keeps the current state and a bounded, leveled activity
// log per connection id. Throughput turns counter snapshots into a rolling
// per-second history.
//
// Nothing in this package is persisted; the whole model lives for the
// lifetime of the process.
package store
