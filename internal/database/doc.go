// Package database provides PostgreSQL connection pool management for the
// message archive.
//
// The archive is append-only: rows are keyed by a client-generated UUID and
// never updated.
package database
