package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/alphabill-org/bftnode/internal/types"
)

var errBlockSequence = errors.New("unexpected block in the sequence")

/*
Dump returns all the blocks in the store in ascending order.

When the store implements BlockIterator the blocks come from a single consistent
snapshot, otherwise blocks are read one by one up to the last block number seen
when the dump started. Missing blocks or blocks out of the genesis range are
reported as error.
*/
func Dump(ctx context.Context, s BlockStore) ([]*types.Block, error) {
	var blocks []*types.Block
	err := Walk(ctx, s, s.Genesis().FirstBlock, func(b *types.Block) error {
		blocks = append(blocks, b)
		return nil
	})
	return blocks, err
}

/*
Walk calls "fn" for every block in the store, starting from block "from", and
verifies that the blocks form a contiguous sequence. It stops on the first error.
*/
func Walk(ctx context.Context, s BlockStore, from uint64, fn func(b *types.Block) error) error {
	from = max(from, s.Genesis().FirstBlock)
	next := from
	verify := func(b *types.Block) error {
		if b.Number != next {
			return fmt.Errorf("%w: expected block %d, got %d", errBlockSequence, next, b.Number)
		}
		next++
		return fn(b)
	}

	if it, ok := s.(BlockIterator); ok {
		return it.ForEachBlock(ctx, from, verify)
	}

	last, ok, err := s.LastBlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("reading last block number: %w", err)
	}
	if !ok || last < from {
		return nil
	}
	for n := from; ; n++ {
		b, err := s.Block(ctx, n)
		if err != nil {
			return fmt.Errorf("reading block %d: %w", n, err)
		}
		if b == nil {
			return fmt.Errorf("%w: block %d is missing", errBlockSequence, n)
		}
		if err := verify(b); err != nil {
			return err
		}
		if n == last {
			return nil
		}
	}
}
