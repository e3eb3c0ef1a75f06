package storage

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/alphabill-org/bftnode/internal/types"
)

// MemoryStore is an in-memory implementation of the BlockStore interface.
type MemoryStore struct {
	mu      sync.RWMutex
	genesis *types.GenesisRecord
	blocks  map[uint64]*types.Block
	last    uint64
	closed  bool
}

func NewMemoryStore(genesis *types.GenesisRecord) (*MemoryStore, error) {
	if err := genesis.IsValid(); err != nil {
		return nil, fmt.Errorf("invalid genesis: %w", err)
	}
	return &MemoryStore{genesis: genesis, blocks: map[uint64]*types.Block{}}, nil
}

func (ms *MemoryStore) StoreNextBlock(ctx context.Context, b *types.Block) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.IsValid(); err != nil {
		return fmt.Errorf("%w: %w", errInvalidBlock, err)
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.closed {
		return fmt.Errorf("%w: %w", ErrStorage, errStoreClosed)
	}
	if len(ms.blocks) == 0 {
		if b.Number != ms.genesis.FirstBlock {
			return fmt.Errorf("%w: store is empty, expected block %d, got %d", ErrNonSequentialAppend, ms.genesis.FirstBlock, b.Number)
		}
	} else if ms.last == math.MaxUint64 || b.Number != ms.last+1 {
		return fmt.Errorf("%w: last stored block is %d, got %d", ErrNonSequentialAppend, ms.last, b.Number)
	}
	ms.blocks[b.Number] = copyBlock(b)
	ms.last = b.Number
	return nil
}

func (ms *MemoryStore) Block(ctx context.Context, number uint64) (*types.Block, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	if ms.closed {
		return nil, fmt.Errorf("%w: %w", ErrStorage, errStoreClosed)
	}
	if b, ok := ms.blocks[number]; ok {
		return copyBlock(b), nil
	}
	return nil, nil
}

func (ms *MemoryStore) LastBlockNumber(ctx context.Context) (uint64, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	if ms.closed {
		return 0, false, fmt.Errorf("%w: %w", ErrStorage, errStoreClosed)
	}
	return ms.last, len(ms.blocks) > 0, nil
}

// ForEachBlock holds read lock of the store for the duration of the scan.
func (ms *MemoryStore) ForEachBlock(ctx context.Context, from uint64, fn func(b *types.Block) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	if ms.closed {
		return fmt.Errorf("%w: %w", ErrStorage, errStoreClosed)
	}
	if len(ms.blocks) == 0 || from > ms.last {
		return nil
	}
	for n := max(from, ms.genesis.FirstBlock); ; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(copyBlock(ms.blocks[n])); err != nil {
			return err
		}
		if n == ms.last {
			return nil
		}
	}
}

func (ms *MemoryStore) Genesis() *types.GenesisRecord { return ms.genesis }

func (ms *MemoryStore) Close() error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.closed = true
	return nil
}

// copyBlock returns deep copy of "b" so that callers can't modify stored data.
func copyBlock(b *types.Block) *types.Block {
	return &types.Block{
		Number:        b.Number,
		Payload:       bytes.Clone(b.Payload),
		Justification: bytes.Clone(b.Justification),
	}
}
