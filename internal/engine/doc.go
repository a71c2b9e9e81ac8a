// Package engine implements the simulation lifecycle: snapshot capture,
// run launch, event recording, reset, and completion.
//
// ARCHITECTURE:
//
// The engine is a thin coordination layer over the SQLite store. Every
// operation loads what it needs, validates, and writes in one store
// transaction. There is no in-memory state of record: restarting the
// process loses nothing but notification subscriptions.
//
// Reset Concurrency:
// Events are generation-tagged. Each run carries a generation counter
// (its reset epoch); event inserts read the run's generation and write
// the row inside one immediate SQLite transaction, and reset deletes all
// events and bumps the generation inside another. With the store's
// single-connection pool these transactions serialize, so a write racing
// a reset either commits before the sweep (and is deleted with everything
// else) or after it (and carries the new generation, surviving as a
// post-reset event). The alternative - taking an exclusive per-run lock
// on every write - was rejected for the throughput cost on multi-student
// sessions.
//
// Concurrent resets of the same run are excluded by an in-process per-run
// TryLock; the loser gets a CONCURRENCY_CONFLICT and retries. Two engine
// processes must therefore not share one database file.
//
// CRITICAL PATTERNS:
//
// Logical Clock:
// All events are stamped with a monotonic seq counter from Clock.Next().
// Wall-clock timestamps are attribution data, never ordering.
//
// Identifier Stability:
// Run patients and barcode entries are written exactly once, at launch,
// in the same transaction as the run row. No later operation updates or
// deletes them while the run exists. Reset touches only the four event
// stores.
package engine
