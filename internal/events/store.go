package events

import "time"

// StoreStart is emitted before a document store operation.
// OpID pairs it with the matching StoreFinish; several operations of one
// request may be in flight at once.
type StoreStart struct {
	OpID       uint64
	Op         string
	Collection string
}

// StoreFinish is emitted after a document store operation completes.
type StoreFinish struct {
	OpID       uint64
	Op         string
	Collection string
	Err        error
	Duration   time.Duration
}
