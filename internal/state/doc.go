// Package state provides thread-safe progress tracking for a running
// generation job.
//
// # Overview
//
// The poll loop publishes every check observation here and the optional
// progress view reads snapshots at its own tick rate. The two run on separate
// goroutines only when the terminal view is enabled; without it the store is
// written and never read, which costs a mutex per poll.
//
//	Producer (poll loop):          Consumer (ui):
//	┌────────────────┐            ┌─────────────────┐
//	│ client.Check() │            │                 │
//	│      ↓         │            │                 │
//	│ store.Update() │───────────→│ store.Snapshot()│
//	│      ↓         │  (mutex)   │      ↓          │
//	│  sleep, repeat │            │  render view    │
//	└────────────────┘            └─────────────────┘
//
// # Error Semantics
//
// A failed check keeps the last good observation and increments
// ConsecutiveFailures. IsOffline reports two or more failures in a row, which
// the view uses to show a "reconnecting" hint while the poll loop retries.
//
// # Nil Store
//
// All methods accept a nil receiver so callers that do not render progress can
// pass nil instead of allocating a store.
package state
