package testchain

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetup_PushBlocks(t *testing.T) {
	s := NewSetup(t, rand.New(rand.NewSource(1)), 3)
	require.Len(t, s.Keys, 3)
	require.Len(t, s.Genesis.Validators, 3)
	require.Empty(t, s.Blocks)
	require.Equal(t, s.Genesis.FirstBlock, s.NextBlockNumber())

	s.PushBlocks(t, 4)
	s.PushBlocks(t, 1)
	require.Len(t, s.Blocks, 5)
	for i, b := range s.Blocks {
		require.Equal(t, s.Genesis.FirstBlock+uint64(i), b.Number)
		require.NoError(t, b.IsValid())
		s.Verify(t, b)
	}
	require.Equal(t, s.Genesis.FirstBlock+5, s.NextBlockNumber())
}

func TestSetup_Deterministic(t *testing.T) {
	s1 := NewSetup(t, rand.New(rand.NewSource(42)), 2)
	s1.PushBlocks(t, 2)
	s2 := NewSetup(t, rand.New(rand.NewSource(42)), 2)
	s2.PushBlocks(t, 2)
	require.True(t, s1.Genesis.Equal(s2.Genesis))
	require.Equal(t, s1.Blocks, s2.Blocks)
}
