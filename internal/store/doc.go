// Package store provides the persistence backends for device records:
// a JSON snapshot file for simple installs and a SQLite database for
// larger fleets. Both implement registry.Store and persist whole
// snapshots atomically, so a crashed save never leaves a torn state.
package store
