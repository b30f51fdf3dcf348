// internal/repository/store.go
package repository

import "context"

// Tx exposes the repositories bound to one unit of work.
type Tx interface {
	Users() UserRepository
	Cards() CardRepository
	Transfers() TransferRepository
	BlockRequests() BlockRequestRepository
}

// Store runs units of work against the persistent store.
//
// Write runs fn in a read-committed transaction and commits when fn returns nil;
// any error rolls everything back. Read runs fn in a read-only transaction.
type Store interface {
	Read(ctx context.Context, fn func(tx Tx) error) error
	Write(ctx context.Context, fn func(tx Tx) error) error
}
