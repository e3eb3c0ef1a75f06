package storage

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.etcd.io/bbolt"

	"github.com/alphabill-org/bftnode/internal/logger"
	"github.com/alphabill-org/bftnode/internal/types"
)

const (
	DBFileName = "blocks.db"

	// dbVersion is the version of the database layout created by this code.
	dbVersion uint64 = 1
	// bbolt gives up acquiring the file lock on the first attempt when the
	// timeout is shorter than its retry interval.
	lockTimeout = time.Millisecond
)

var (
	bucketMetadata = []byte("metadata")
	bucketBlocks   = []byte("blocks")

	keyDbVersion = []byte("version")
	keyGenesis   = []byte("genesis")
)

var log = logger.CreateForPackage()

/*
DiskStore is BlockStore implementation backed by bbolt database. The database
file is exclusively locked for as long as the store is open.
*/
type DiskStore struct {
	db      *bbolt.DB
	genesis *types.GenesisRecord
	metrics *storeMetrics
}

type (
	Option func(*options)

	options struct {
		registerer prometheus.Registerer
	}
)

// WithMetrics makes the store to export its metrics via "reg".
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

/*
Open opens (creating when it doesn't exist) block store in the directory "dir".

New store is bound to the "genesis", existing store must have been created with
equal genesis record, otherwise ErrGenesisMismatch is returned. When the directory
is in use by another store ErrLocked is returned.
*/
func Open(ctx context.Context, genesis *types.GenesisRecord, dir string, opts ...Option) (_ *DiskStore, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := genesis.IsValid(); err != nil {
		return nil, fmt.Errorf("invalid genesis: %w", err)
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("%w: creating data directory: %w", ErrStorage, err)
	}
	fileName := filepath.Join(dir, DBFileName)
	db, err := bbolt.Open(fileName, 0600, &bbolt.Options{Timeout: lockTimeout})
	if err != nil {
		if errors.Is(err, bbolt.ErrTimeout) {
			return nil, fmt.Errorf("%w: %s", ErrLocked, dir)
		}
		return nil, fmt.Errorf("%w: open database: %w", ErrStorage, err)
	}
	defer func() {
		if err != nil {
			if cerr := db.Close(); cerr != nil {
				log.Warning("closing database %s after failed open: %v", fileName, cerr)
			}
		}
	}()

	s := &DiskStore{db: db}
	if s.genesis, err = s.initOrVerify(genesis); err != nil {
		return nil, err
	}

	if o.registerer != nil {
		if s.metrics, err = newStoreMetrics(o.registerer); err != nil {
			return nil, fmt.Errorf("registering metrics: %w", err)
		}
	}
	last, ok, err := s.LastBlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading last block number: %w", err)
	}
	logger.SetContext(logger.KeyFork, s.genesis.ForkNumber)
	if ok {
		s.metrics.setLast(last)
		log.Info("opened block store %s (%s), last block %d", fileName, s.genesis, last)
	} else {
		log.Info("opened block store %s (%s), no blocks", fileName, s.genesis)
	}
	return s, nil
}

/*
initOrVerify creates buckets and stores "genesis" when the database is new,
otherwise checks that the stored genesis equals "genesis". Returns the genesis
the store is bound to.
*/
func (s *DiskStore) initOrVerify(genesis *types.GenesisRecord) (*types.GenesisRecord, error) {
	var initialized bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		initialized = tx.Bucket(bucketMetadata) != nil
		if !initialized && tx.Bucket(bucketBlocks) != nil {
			return fmt.Errorf("%w: database contains blocks but %w", ErrDecode, errGenesisMissing)
		}
		return nil
	})
	if err != nil {
		return nil, storageErr(err)
	}

	if !initialized {
		data, err := types.Cbor.Marshal(genesis)
		if err != nil {
			return nil, fmt.Errorf("encoding genesis: %w", err)
		}
		if err := s.db.Update(func(tx *bbolt.Tx) error { return initBuckets(tx, data) }); err != nil {
			return nil, fmt.Errorf("initializing new database: %w", storageErr(err))
		}
		log.Debug("initialized new database for %s", genesis)
		// the store keeps its own copy, caller may reuse the record
		stored := &types.GenesisRecord{}
		if err := types.Cbor.Unmarshal(data, stored); err != nil {
			return nil, fmt.Errorf("%w: genesis: %w", ErrDecode, err)
		}
		return stored, nil
	}

	stored, err := s.storedGenesis()
	if err != nil {
		return nil, err
	}
	if !stored.Equal(genesis) {
		return nil, fmt.Errorf("%w: stored %s, got %s", ErrGenesisMismatch, stored, genesis)
	}
	return stored, nil
}

func initBuckets(tx *bbolt.Tx, genesis []byte) error {
	b, err := tx.CreateBucket(bucketMetadata)
	if err != nil {
		return fmt.Errorf("creating metadata bucket: %w", err)
	}
	if err := writeUint64(b, keyDbVersion, dbVersion); err != nil {
		return fmt.Errorf("storing database version: %w", err)
	}
	if err := b.Put(keyGenesis, genesis); err != nil {
		return fmt.Errorf("storing genesis: %w", err)
	}
	if _, err := tx.CreateBucket(bucketBlocks); err != nil {
		return fmt.Errorf("creating blocks bucket: %w", err)
	}
	return nil
}

func (s *DiskStore) storedGenesis() (*types.GenesisRecord, error) {
	var genesis *types.GenesisRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMetadata)
		ver, err := readUint64(b, keyDbVersion)
		if err != nil {
			return fmt.Errorf("%w: reading database version: %w", ErrDecode, err)
		}
		if ver > dbVersion {
			return fmt.Errorf("%w: database version %d is newer than supported version %d", ErrDecode, ver, dbVersion)
		}

		data := b.Get(keyGenesis)
		if data == nil {
			return fmt.Errorf("%w: %w", ErrDecode, errGenesisMissing)
		}
		genesis = &types.GenesisRecord{}
		if err := types.Cbor.Unmarshal(data, genesis); err != nil {
			return fmt.Errorf("%w: genesis: %w", ErrDecode, err)
		}
		return nil
	})
	if err != nil {
		return nil, storageErr(err)
	}
	return genesis, nil
}

/*
StoreNextBlock persists "b" when it is the successor of the last stored block.
Successor check and write are done in the same write transaction so concurrent
calls can't both succeed for the same block number.
*/
func (s *DiskStore) StoreNextBlock(ctx context.Context, b *types.Block) (err error) {
	defer func() {
		if err != nil {
			s.metrics.failed(err)
		}
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.IsValid(); err != nil {
		return fmt.Errorf("%w: %w", errInvalidBlock, err)
	}
	data, err := types.Cbor.Marshal(b)
	if err != nil {
		return fmt.Errorf("encoding block %d: %w", b.Number, err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		bkt := tx.Bucket(bucketBlocks)
		if bkt == nil {
			return errNoBlocksBucket
		}
		if err := checkSuccessor(bkt, s.genesis.FirstBlock, b.Number); err != nil {
			return err
		}
		return bkt.Put(blockKey(b.Number), data)
	})
	if err != nil {
		return fmt.Errorf("storing block %d: %w", b.Number, storageErr(err))
	}

	s.metrics.appended(b.Number)
	log.Debug("stored block %d", b.Number)
	return nil
}

func checkSuccessor(bkt *bbolt.Bucket, first, number uint64) error {
	k, _ := bkt.Cursor().Last()
	if k == nil {
		if number != first {
			return fmt.Errorf("%w: store is empty, expected block %d, got %d", ErrNonSequentialAppend, first, number)
		}
		return nil
	}
	last, err := decodeBlockKey(k)
	if err != nil {
		return err
	}
	if last == math.MaxUint64 || number != last+1 {
		return fmt.Errorf("%w: last stored block is %d, got %d", ErrNonSequentialAppend, last, number)
	}
	return nil
}

// Block returns block "number" or nil when the store doesn't contain it.
func (s *DiskStore) Block(ctx context.Context, number uint64) (*types.Block, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var b *types.Block
	err := s.db.View(func(tx *bbolt.Tx) error {
		bkt := tx.Bucket(bucketBlocks)
		if bkt == nil {
			return errNoBlocksBucket
		}
		data := bkt.Get(blockKey(number))
		if data == nil {
			return nil
		}
		var err error
		b, err = decodeBlock(number, data)
		return err
	})
	if err != nil {
		return nil, storageErr(err)
	}
	return b, nil
}

func (s *DiskStore) LastBlockNumber(ctx context.Context) (number uint64, ok bool, _ error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	err := s.db.View(func(tx *bbolt.Tx) error {
		bkt := tx.Bucket(bucketBlocks)
		if bkt == nil {
			return errNoBlocksBucket
		}
		k, _ := bkt.Cursor().Last()
		if k == nil {
			return nil
		}
		var err error
		number, err = decodeBlockKey(k)
		ok = err == nil
		return err
	})
	if err != nil {
		return 0, false, storageErr(err)
	}
	return number, ok, nil
}

/*
ForEachBlock calls "fn" for every stored block with number equal to or greater
than "from", in ascending order. All the blocks are read in the same read
transaction.
*/
func (s *DiskStore) ForEachBlock(ctx context.Context, from uint64, fn func(b *types.Block) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var cbErr error
	err := s.db.View(func(tx *bbolt.Tx) error {
		bkt := tx.Bucket(bucketBlocks)
		if bkt == nil {
			return errNoBlocksBucket
		}
		c := bkt.Cursor()
		for k, v := c.Seek(blockKey(from)); k != nil; k, v = c.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			number, err := decodeBlockKey(k)
			if err != nil {
				return err
			}
			b, err := decodeBlock(number, v)
			if err != nil {
				return err
			}
			if cbErr = fn(b); cbErr != nil {
				return cbErr
			}
		}
		return nil
	})
	if cbErr != nil {
		return cbErr
	}
	return storageErr(err)
}

// Genesis returns the genesis record the store is bound to. It must not be modified.
func (s *DiskStore) Genesis() *types.GenesisRecord { return s.genesis }

// Path returns the name of the database file.
func (s *DiskStore) Path() string { return s.db.Path() }

// Close releases the database file, calling Close on closed store is no-op.
func (s *DiskStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("%w: closing database: %w", ErrStorage, err)
	}
	return nil
}

/*
storageErr wraps errors coming from the database engine into ErrStorage.
Errors which already have their own kind are returned as is.
*/
func storageErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNonSequentialAppend),
		errors.Is(err, ErrDecode),
		errors.Is(err, ErrStorage),
		errors.Is(err, ErrGenesisMismatch),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, bbolt.ErrDatabaseNotOpen):
		return fmt.Errorf("%w: %w", ErrStorage, errStoreClosed)
	default:
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
}

// decodeBlock must be called inside a transaction, "data" is not valid after
// the transaction ends. The decoder copies byte strings so the returned block
// does not reference "data".
func decodeBlock(number uint64, data []byte) (*types.Block, error) {
	b := &types.Block{}
	if err := types.Cbor.Unmarshal(data, b); err != nil {
		return nil, fmt.Errorf("%w: block %d: %w", ErrDecode, number, err)
	}
	if b.Number != number {
		return nil, fmt.Errorf("%w: block stored under key %d has number %d", ErrDecode, number, b.Number)
	}
	return b, nil
}

func blockKey(number uint64) []byte {
	return binary.BigEndian.AppendUint64(make([]byte, 0, 8), number)
}

func decodeBlockKey(k []byte) (uint64, error) {
	if len(k) != 8 {
		return 0, fmt.Errorf("%w: expected block key to be 8 bytes, got %d", ErrDecode, len(k))
	}
	return binary.BigEndian.Uint64(k), nil
}

func readUint64(b *bbolt.Bucket, key []byte) (uint64, error) {
	v := b.Get(key)
	if v == nil {
		return 0, fmt.Errorf("key %q not found", key)
	}
	if len(v) != 8 {
		return 0, fmt.Errorf("expected value of the %q to be 8 bytes, got %d", key, len(v))
	}
	return binary.BigEndian.Uint64(v), nil
}

func writeUint64(b *bbolt.Bucket, key []byte, value uint64) error {
	return b.Put(key, binary.BigEndian.AppendUint64(nil, value))
}
