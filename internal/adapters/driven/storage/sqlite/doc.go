// Package sqlite provides a unified SQLite-based implementation of the
// storage ports.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation
// that requires no CGO, enabling easy cross-compilation. It implements the
// account and mirror store interfaces through a single database
// connection:
//
//   - AccountStore: integration account persistence, tokens encrypted
//   - EventMirrorStore: mirrored calendar event persistence
//   - TaskMirrorStore: mirrored task persistence
//
// # Schema
//
// The database schema is managed through versioned migrations stored in
// the migrations/ directory. Token columns only ever hold the encrypted
// "iv_hex:ciphertext_hex" form.
//
// # Data Location
//
// By default, the database is stored at ~/.calsync/data/calsync.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking
// provided by SQLite in WAL mode.
package sqlite
