package storage

import (
	"context"

	"github.com/alphabill-org/bftnode/internal/types"
)

/*
BlockStore is durable, append only storage of finalized blocks.

Blocks must be appended in order, starting from the first block of the genesis,
each block having number one greater than the previous one. Appends must be
issued sequentially by the caller, reads may be issued concurrently with
appends and each other.
*/
type BlockStore interface {
	// StoreNextBlock persists the block. It returns ErrNonSequentialAppend when
	// the block is not the successor of the last stored block. When the call
	// returns without error the block is durable.
	StoreNextBlock(ctx context.Context, b *types.Block) error
	// Block returns block with given number or nil when it is not stored.
	Block(ctx context.Context, number uint64) (*types.Block, error)
	// LastBlockNumber returns number of the last stored block, "ok" is false
	// when the store is empty.
	LastBlockNumber(ctx context.Context) (number uint64, ok bool, err error)
	Genesis() *types.GenesisRecord
	Close() error
}

/*
BlockIterator is implemented by stores which support ordered scan of the stored
blocks. All the blocks passed to the callback come from the same snapshot of the
store. Scan stops on the first error returned by the callback and that error is
returned by ForEachBlock.
*/
type BlockIterator interface {
	ForEachBlock(ctx context.Context, from uint64, fn func(b *types.Block) error) error
}
