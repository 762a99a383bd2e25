// Package settings provides the key/value persistence consumed by the
// device subsystems: string and integer scalars, namespaced per subsystem,
// backed by SQLite on disk or by memory for tests and diskless operation.
package settings
