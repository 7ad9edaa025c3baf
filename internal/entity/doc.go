// Package entity maps raw JSON payloads to typed records.
//
// Deserialization is pure: no method of Factory has side effects.
package entity
