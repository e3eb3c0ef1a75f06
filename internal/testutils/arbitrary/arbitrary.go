/*
Package arbitrary provides generator of random instances of the node's data
types for property style tests.
*/
package arbitrary

import (
	"net/netip"

	fuzz "github.com/google/gofuzz"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/alphabill-org/bftnode/internal/types"
)

const maxValidators = 7

/*
New returns fuzzer which generates valid GenesisRecord, Block, peer.ID and
netip.AddrPort values. Additional fill funcs can be registered with the Funcs
method of the returned fuzzer.
*/
func New(seed int64) *fuzz.Fuzzer {
	return fuzz.NewWithSeed(seed).NilChance(0).Funcs(
		fillGenesis,
		fillBlock,
		fillPeerID,
		fillAddrPort,
	)
}

// Bytes returns random, non-empty byte slice of at most "maxLen" bytes.
func Bytes(c fuzz.Continue, maxLen int) types.Bytes {
	b := make(types.Bytes, 1+c.Intn(maxLen))
	_, _ = c.Read(b)
	return b
}

func fillGenesis(g *types.GenesisRecord, c fuzz.Continue) {
	g.ForkNumber = c.Uint64()
	// leave room for the blocks after the first one
	g.FirstBlock = uint64(c.Uint32())
	g.RootHash = make(types.Bytes, types.RootHashLength)
	_, _ = c.Read(g.RootHash)
	g.Validators = make([]types.Bytes, 1+c.Intn(maxValidators))
	for i := range g.Validators {
		var id peer.ID
		fillPeerID(&id, c)
		g.Validators[i] = types.Bytes(id)
	}
}

func fillBlock(b *types.Block, c fuzz.Continue) {
	b.Number = c.Uint64()
	b.Payload = Bytes(c, 1024)
	if c.RandBool() {
		b.Justification = Bytes(c, 256)
	} else {
		b.Justification = nil
	}
}

func fillPeerID(id *peer.ID, c fuzz.Continue) {
	_, pub, err := crypto.GenerateEd25519Key(c)
	if err != nil {
		panic(err)
	}
	if *id, err = peer.IDFromPublicKey(pub); err != nil {
		panic(err)
	}
}

func fillAddrPort(a *netip.AddrPort, c fuzz.Continue) {
	var ip [16]byte
	_, _ = c.Read(ip[:])
	*a = netip.AddrPortFrom(netip.AddrFrom16(ip), uint16(c.Uint32()))
}
