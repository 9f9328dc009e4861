// Package store persists drained events to a SQLite run ledger so a
// finished simulation can be inspected after the process exits. The
// ledger is optional and write-only at runtime; nothing in the
// simulation reads it back.
package store
