// Package events defines the dispatch related events emitted on the event bus.
//
// Available event types:
//   - StatusEvent: ride lifecycle transition entering the dispatcher
//   - DeliveryEvent: per-recipient notification outcome
//   - BroadcastEvent: nearby-driver broadcast funnel summary
package events
