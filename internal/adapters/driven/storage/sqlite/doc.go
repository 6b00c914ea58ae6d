// Package sqlite implements driven.MessageStore on SQLite.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that
// requires no CGO. The schema holds two tables:
//
//   - messages: one row per ingested message, keyed by an autoincrement id
//   - summary_probs: one score per (message_id, lang)
//
// # Schema
//
// The schema is managed through versioned migrations embedded from the
// migrations/ directory. Applied versions are recorded in schema_migrations.
//
// # Transactions
//
// Every insert call runs in its own transaction with a prepared statement,
// so a batch is either fully committed or not at all. Nothing spans batches.
package sqlite
