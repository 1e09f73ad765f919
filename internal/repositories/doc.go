// Package repositories implements SQLite persistence for the run history.
//
//   - [RunRepository] : pipeline runs with their final stage, location and error
//
// The default database path is ":memory:", so history lives only as long as the process.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
