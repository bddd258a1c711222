// Package store provides the SQLite-backed preset library.
//
// A preset is a named home parameter vector. Hosts save the vectors
// they want to recall across sessions; the CLI loads them back as
// engine seeds.
//
// # Storage Invariants
//
//   - Names are unique and NFC-normalized before every lookup, so a
//     name saved with stray whitespace or decomposed accents resolves
//     to the same row.
//   - Vectors are stored as canonical JSON text (RFC 8785 form, fixed
//     six-decimal floats). A loaded vector re-marshals to exactly the
//     stored bytes.
//   - Row IDs are UUIDv7, so id order is creation order.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
