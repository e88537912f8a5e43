// Package store provides SQLite-backed durable storage for experiment logs.
//
// The store is append-only. Every experiment run becomes one row in sessions
// plus one row per event record and per response record, tagged with the
// context label, subject, session identifier and run phase (pre, main or
// post). A whole run is appended in a single transaction, so a crash never
// leaves a half-written session behind.
//
// NaN ("no value") is stored as SQL NULL and read back as NaN.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// Reads return rows in append order, which is session order and, within a
// session, phase and log order.
package store
