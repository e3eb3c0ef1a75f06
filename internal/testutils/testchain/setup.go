/*
Package testchain creates a chain of signed blocks for tests: genesis with a
committee of validators and any number of consecutive finalized blocks.
*/
package testchain

import (
	"crypto"
	"math/rand"
	"testing"

	p2pcrypto "github.com/libp2p/go-libp2p/core/crypto"
	"github.com/stretchr/testify/require"

	"github.com/alphabill-org/bftnode/internal/types"
)

type Setup struct {
	Genesis *types.GenesisRecord
	// Keys are private keys of the validators, in the same order as the
	// public keys in the genesis.
	Keys   []p2pcrypto.PrivKey
	Blocks []*types.Block

	rng *rand.Rand
}

// Justification is the commit certificate of the block: signatures of all the
// validators over the hash of the block number and payload.
type Justification struct {
	_          struct{} `cbor:",toarray"`
	Signatures [][]byte
}

// NewSetup creates genesis with "validators" member committee, first block of
// the chain is chosen randomly.
func NewSetup(t testing.TB, rng *rand.Rand, validators int) *Setup {
	t.Helper()
	require.Positive(t, validators)

	s := &Setup{
		Genesis: &types.GenesisRecord{
			ForkNumber: rng.Uint64(),
			FirstBlock: uint64(rng.Intn(1000)),
			RootHash:   make(types.Bytes, types.RootHashLength),
		},
		rng: rng,
	}
	_, _ = rng.Read(s.Genesis.RootHash)
	for i := 0; i < validators; i++ {
		key, pub, err := p2pcrypto.GenerateEd25519Key(rng)
		require.NoError(t, err)
		pubBytes, err := pub.Raw()
		require.NoError(t, err)
		s.Keys = append(s.Keys, key)
		s.Genesis.Validators = append(s.Genesis.Validators, pubBytes)
	}
	require.NoError(t, s.Genesis.IsValid())
	return s
}

// NextBlockNumber returns the number the next block pushed to the chain will have.
func (s *Setup) NextBlockNumber() uint64 {
	if len(s.Blocks) == 0 {
		return s.Genesis.FirstBlock
	}
	return s.Blocks[len(s.Blocks)-1].Number + 1
}

// PushBlocks appends "count" blocks with random payload to the chain.
func (s *Setup) PushBlocks(t testing.TB, count int) {
	t.Helper()
	for i := 0; i < count; i++ {
		b := &types.Block{
			Number:  s.NextBlockNumber(),
			Payload: make(types.Bytes, 1+s.rng.Intn(512)),
		}
		_, _ = s.rng.Read(b.Payload)

		j := Justification{}
		digest, err := b.Hash(crypto.SHA256)
		require.NoError(t, err)
		for _, key := range s.Keys {
			sig, err := key.Sign(digest)
			require.NoError(t, err)
			j.Signatures = append(j.Signatures, sig)
		}
		b.Justification, err = types.Cbor.Marshal(j)
		require.NoError(t, err)
		s.Blocks = append(s.Blocks, b)
	}
}

/*
Verify checks that the justification of "b" is signed by all the validators of
the genesis.
*/
func (s *Setup) Verify(t testing.TB, b *types.Block) {
	t.Helper()
	var j Justification
	require.NoError(t, types.Cbor.Unmarshal(b.Justification, &j))
	require.Len(t, j.Signatures, len(s.Genesis.Validators))

	// justification covers block hash with empty justification
	digest, err := (&types.Block{Number: b.Number, Payload: b.Payload}).Hash(crypto.SHA256)
	require.NoError(t, err)
	for i, v := range s.Genesis.Validators {
		pub, err := p2pcrypto.UnmarshalEd25519PublicKey(v)
		require.NoError(t, err)
		ok, err := pub.Verify(digest, j.Signatures[i])
		require.NoError(t, err)
		require.True(t, ok, "invalid signature of validator %d on block %d", i, b.Number)
	}
}
