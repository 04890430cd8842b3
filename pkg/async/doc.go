// Package async holds goroutine helpers with panic recovery and logging.
//
// Detach is used for side effects that must never fail a request, such as sending
// mail or deleting a blob after its metadata is gone. Batch fans work out over a
// bounded number of goroutines.
package async
