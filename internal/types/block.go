package types

import (
	"crypto"
	_ "crypto/sha256"
	"errors"
	"fmt"
)

var (
	ErrBlockIsNil = errors.New("block is nil")
	errPayloadNil = errors.New("block payload is nil")
)

/*
Block is a finalized block as persisted by the block store. Content of the
block is opaque to the store, consensus layer encodes it into Payload and the
commit certificate into Justification.
*/
type Block struct {
	_             struct{} `cbor:",toarray"`
	Number        uint64   `json:"number"`
	Payload       Bytes    `json:"payload"`
	Justification Bytes    `json:"justification,omitempty"`
}

func (b *Block) IsValid() error {
	if b == nil {
		return ErrBlockIsNil
	}
	if b.Payload == nil {
		return errPayloadNil
	}
	return nil
}

func (b *Block) GetNumber() uint64 {
	if b == nil {
		return 0
	}
	return b.Number
}

// Hash returns digest of the CBOR encoding of the block.
func (b *Block) Hash(algorithm crypto.Hash) ([]byte, error) {
	if b == nil {
		return nil, ErrBlockIsNil
	}
	data, err := Cbor.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("encoding block %d: %w", b.Number, err)
	}
	hasher := algorithm.New()
	hasher.Write(data)
	return hasher.Sum(nil), nil
}
