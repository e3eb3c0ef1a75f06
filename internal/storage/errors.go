package storage

import "errors"

var (
	// ErrGenesisMismatch is returned by Open when the directory was created
	// for a different chain. The store can not be used with given genesis.
	ErrGenesisMismatch = errors.New("genesis record does not match the stored one")

	// ErrNonSequentialAppend means the block is not the successor of the last
	// stored block. Nothing was written.
	ErrNonSequentialAppend = errors.New("block is not the successor of the last stored block")

	// ErrDecode means persisted data could not be decoded, ie the database is corrupt.
	ErrDecode = errors.New("failed to decode stored data")

	// ErrStorage wraps failures of the underlying storage engine.
	ErrStorage = errors.New("storage engine error")

	// ErrLocked is returned by Open when the directory is in use by another store.
	ErrLocked = errors.New("data directory is locked by another process")
)

var (
	errGenesisMissing = errors.New("genesis record not found")
	errNoBlocksBucket = errors.New("blocks bucket not found")
	errStoreClosed    = errors.New("store is closed")
	errInvalidBlock   = errors.New("invalid block")
)
