// Package archive persists gateway messages to PostgreSQL.
//
// A Writer is subscribed as a MessageCreateEvent listener. Listeners only
// enqueue rows into a growable ring buffer, so dispatch never waits on the
// database; a consumer goroutine drains the buffer and writes batches with
// pgx.Batch when BatchSize rows are pending or FlushInterval elapses.
package archive
