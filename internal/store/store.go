// Package store persists transformed address records keyed by
// identifier.
package store

import "context"

// Record is the fixed schema the loader writes: an identifier and four
// address fields.
type Record struct {
	ID          string
	HouseNumber string
	Street      string
	Town        string
	Zip         string
}

// Store is the persistent key-value contract. Upsert overwrites any
// prior record with the same ID unconditionally, which is what makes
// redelivery of a transform event safe.
type Store interface {
	Upsert(ctx context.Context, rec Record) error
	Get(ctx context.Context, id string) (Record, bool, error)
	Close() error
}
