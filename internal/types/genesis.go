package types

import (
	"bytes"
	"crypto"
	"errors"
	"fmt"
)

// RootHashLength is the size of the root commitment of the initial state.
const RootHashLength = 32

var (
	ErrGenesisIsNil       = errors.New("genesis record is nil")
	ErrInvalidRootHash    = errors.New("invalid root hash")
	ErrValidatorsMissing  = errors.New("validator committee is empty")
	errValidatorKeyEmpty  = errors.New("validator key is empty")
	errValidatorDuplicate = errors.New("duplicate validator key")
)

/*
GenesisRecord is the identity of a chain instance. Data directories are bound
to the genesis they were created with and refuse to open with any other.
*/
type GenesisRecord struct {
	_          struct{} `cbor:",toarray"`
	ForkNumber uint64   `json:"fork_number" yaml:"forkNumber"`
	FirstBlock uint64   `json:"first_block" yaml:"firstBlock"`
	RootHash   Bytes    `json:"root_hash" yaml:"rootHash"`
	Validators []Bytes  `json:"validators" yaml:"validators"`
}

func (g *GenesisRecord) IsValid() error {
	if g == nil {
		return ErrGenesisIsNil
	}
	if len(g.RootHash) != RootHashLength {
		return fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidRootHash, RootHashLength, len(g.RootHash))
	}
	if len(g.Validators) == 0 {
		return ErrValidatorsMissing
	}
	seen := make(map[string]struct{}, len(g.Validators))
	for i, v := range g.Validators {
		if len(v) == 0 {
			return fmt.Errorf("validator %d: %w", i, errValidatorKeyEmpty)
		}
		if _, ok := seen[string(v)]; ok {
			return fmt.Errorf("validator %d: %w %s", i, errValidatorDuplicate, v)
		}
		seen[string(v)] = struct{}{}
	}
	return nil
}

// Equal returns true when all the fields of "g" and "o" are equal.
func (g *GenesisRecord) Equal(o *GenesisRecord) bool {
	if g == nil || o == nil {
		return g == o
	}
	if g.ForkNumber != o.ForkNumber || g.FirstBlock != o.FirstBlock {
		return false
	}
	if !bytes.Equal(g.RootHash, o.RootHash) || len(g.Validators) != len(o.Validators) {
		return false
	}
	for i := range g.Validators {
		if !bytes.Equal(g.Validators[i], o.Validators[i]) {
			return false
		}
	}
	return true
}

// Hash returns digest of the CBOR encoding of the record.
func (g *GenesisRecord) Hash(algorithm crypto.Hash) ([]byte, error) {
	data, err := Cbor.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("encoding genesis record: %w", err)
	}
	hasher := algorithm.New()
	hasher.Write(data)
	return hasher.Sum(nil), nil
}

func (g *GenesisRecord) String() string {
	if g == nil {
		return "<nil>"
	}
	return fmt.Sprintf("fork %d, first block %d, root %s, %d validators", g.ForkNumber, g.FirstBlock, g.RootHash, len(g.Validators))
}
