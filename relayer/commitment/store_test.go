package commitment_test

import (
	"errors"
	"fmt"
	"testing"

	commitmenttypes "github.com/cosmos/ibc-go/v3/modules/core/23-commitment/types"
	"github.com/cosmos/ibc-relayer/relayer/commitment"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

var (
	ibcPrefix  = commitment.NewPrefix("ibc")
	metaPrefix = commitment.NewPrefix("meta")
)

func newTestStore(t *testing.T, n int) *commitment.MultiStore {
	t.Helper()
	ms := commitment.NewMultiStore("ibc", "meta")
	for i := 0; i < n; i++ {
		ms.Store("ibc").Set([]byte(fmt.Sprintf("key/%03d", i*2)), []byte(fmt.Sprintf("value-%d", i)))
	}
	ms.Store("meta").Set([]byte("sequence"), []byte{0x01})
	return ms
}

func path(t *testing.T, prefix commitment.Prefix, key []byte) commitment.Path {
	t.Helper()
	p, err := commitment.ApplyPrefix(prefix, key)
	require.NoError(t, err)
	return p
}

func TestMembershipProofs(t *testing.T) {
	for _, n := range []int{1, 2, 3, 5, 8, 13} {
		t.Run(fmt.Sprintf("%d keys", n), func(t *testing.T) {
			snap := newTestStore(t, n).Commit()
			for i := 0; i < n; i++ {
				key := []byte(fmt.Sprintf("key/%03d", i*2))
				value, proof, err := snap.GetProof(ibcPrefix, key)
				require.NoError(t, err)
				require.Equal(t, []byte(fmt.Sprintf("value-%d", i)), value)
				require.NoError(t, commitment.VerifyMembership(commitment.ProofSpecs, snap.Root(), proof, path(t, ibcPrefix, key), value))

				// wrong value
				err = commitment.VerifyMembership(commitment.ProofSpecs, snap.Root(), proof, path(t, ibcPrefix, key), []byte("forged"))
				require.ErrorIs(t, err, commitment.ErrProofInvalid)

				// membership proof cannot prove absence
				err = commitment.VerifyNonMembership(commitment.ProofSpecs, snap.Root(), proof, path(t, ibcPrefix, key))
				require.ErrorIs(t, err, commitment.ErrProofInvalid)

				// the same key in another substore is a different path
				err = commitment.VerifyMembership(commitment.ProofSpecs, snap.Root(), proof, path(t, metaPrefix, key), value)
				require.ErrorIs(t, err, commitment.ErrProofInvalid)
			}
		})
	}
}

func TestNonMembershipProofs(t *testing.T) {
	for _, n := range []int{1, 2, 3, 5, 8, 13} {
		t.Run(fmt.Sprintf("%d keys", n), func(t *testing.T) {
			snap := newTestStore(t, n).Commit()
			absent := [][]byte{[]byte("a"), []byte("zzz")}
			for i := 0; i < n; i++ {
				absent = append(absent, []byte(fmt.Sprintf("key/%03d", i*2+1)))
			}
			for _, key := range absent {
				value, proof, err := snap.GetProof(ibcPrefix, key)
				require.NoError(t, err)
				require.Nil(t, value)
				require.NoError(t, commitment.VerifyNonMembership(commitment.ProofSpecs, snap.Root(), proof, path(t, ibcPrefix, key)), string(key))

				err = commitment.VerifyMembership(commitment.ProofSpecs, snap.Root(), proof, path(t, ibcPrefix, key), []byte("value"))
				require.ErrorIs(t, err, commitment.ErrProofInvalid)
			}
		})
	}
}

func TestProofAgainstOtherRoot(t *testing.T) {
	store := newTestStore(t, 4)
	before := store.Commit()

	key := []byte("key/002")
	value, proof, err := before.GetProof(ibcPrefix, key)
	require.NoError(t, err)

	// a write to any substore changes the app hash
	store.Store("meta").Set([]byte("sequence"), []byte{0x02})
	after := store.Commit()
	require.NotEqual(t, before.Root(), after.Root())

	require.NoError(t, commitment.VerifyMembership(commitment.ProofSpecs, before.Root(), proof, path(t, ibcPrefix, key), value))
	err = commitment.VerifyMembership(commitment.ProofSpecs, after.Root(), proof, path(t, ibcPrefix, key), value)
	require.ErrorIs(t, err, commitment.ErrProofInvalid)

	// snapshots are immutable
	got, ok := before.Get("meta", []byte("sequence"))
	require.True(t, ok)
	require.Equal(t, []byte{0x01}, got)
}

func TestProofSpecsMustMatch(t *testing.T) {
	snap := newTestStore(t, 3).Commit()
	key := []byte("key/000")
	value, proof, err := snap.GetProof(ibcPrefix, key)
	require.NoError(t, err)

	// iavl nodes are encoded differently from simple tree nodes
	err = commitment.VerifyMembership(commitmenttypes.GetSDKSpecs(), snap.Root(), proof, path(t, ibcPrefix, key), value)
	require.ErrorIs(t, err, commitment.ErrProofInvalid)

	// a single level path cannot be checked against a two level proof
	err = commitment.VerifyMembership(commitment.ProofSpecs, snap.Root(), proof, commitmenttypes.NewMerklePath(string(key)), value)
	require.ErrorIs(t, err, commitment.ErrProofInvalid)
}

func TestVerifyMalformedInput(t *testing.T) {
	snap := newTestStore(t, 3).Commit()
	key := []byte("key/000")
	value, proof, err := snap.GetProof(ibcPrefix, key)
	require.NoError(t, err)
	p := path(t, ibcPrefix, key)

	err = commitment.VerifyMembership(commitment.ProofSpecs, snap.Root(), nil, p, value)
	require.ErrorIs(t, err, commitment.ErrProofInvalid)
	require.ErrorIs(t, err, commitment.ErrEmptyProof)

	err = commitment.VerifyMembership(commitment.ProofSpecs, commitment.NewRoot(nil), proof, p, value)
	require.ErrorIs(t, err, commitment.ErrProofInvalid)
	require.ErrorIs(t, err, commitment.ErrEmptyRoot)

	err = commitment.VerifyMembership(commitment.ProofSpecs, snap.Root(), []byte{0xff, 0xff, 0xff}, p, value)
	require.ErrorIs(t, err, commitment.ErrProofInvalid)
	require.ErrorIs(t, err, commitment.ErrInvalidProofEncoding)

	err = commitment.VerifyMembership(commitment.ProofSpecs, snap.Root(), proof, p, nil)
	require.ErrorIs(t, err, commitment.ErrProofInvalid)

	corrupted := append([]byte(nil), proof...)
	corrupted[len(corrupted)-1] ^= 0xff
	require.Error(t, commitment.VerifyMembership(commitment.ProofSpecs, snap.Root(), corrupted, p, value))
}

func TestEmptyStore(t *testing.T) {
	snap := commitment.NewMultiStore("ibc").Commit()
	require.False(t, snap.Root().Empty())
	_, _, err := snap.GetProof(ibcPrefix, []byte("anything"))
	require.True(t, errors.Is(err, commitment.ErrEmptyStore))

	_, _, err = snap.GetProof(commitment.NewPrefix("bank"), []byte("anything"))
	require.ErrorIs(t, err, commitment.ErrInvalidPrefix)
}

func TestStoreCloneAndDelete(t *testing.T) {
	ms := newTestStore(t, 3)
	c := ms.Clone()
	s, cs := ms.Store("ibc"), c.Store("ibc")
	cs.Delete([]byte("key/000"))
	require.True(t, s.Has([]byte("key/000")))
	require.False(t, cs.Has([]byte("key/000")))

	cs.Set([]byte("key/002"), nil)
	require.False(t, cs.Has([]byte("key/002")))

	var seen []string
	s.IteratePrefix([]byte("key/"), func(key, _ []byte) bool {
		seen = append(seen, string(key))
		return true
	})
	require.Equal(t, []string{"key/000", "key/002", "key/004"}, seen)

	require.Panics(t, func() { ms.Store("bank") })
}

func TestApplyPrefix(t *testing.T) {
	p, err := commitment.ApplyPrefix(ibcPrefix, []byte("connections/connection-0"))
	require.NoError(t, err)
	require.Equal(t, []string{"ibc", "connections/connection-0"}, p.KeyPath)

	_, err = commitment.ApplyPrefix(commitment.Prefix{}, []byte("connections/connection-0"))
	require.ErrorIs(t, err, commitment.ErrInvalidPrefix)

	_, err = commitment.ApplyPrefix(ibcPrefix, nil)
	require.ErrorIs(t, err, commitment.ErrInvalidPrefix)
}

func TestProofsProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		keys := rapid.SliceOfNDistinct(rapid.StringMatching(`[a-z]{1,6}`), 1, 40, rapid.ID[string]).Draw(t, "keys")
		ms := commitment.NewMultiStore("ibc", "meta")
		for _, k := range keys {
			ms.Store("ibc").Set([]byte(k), []byte("v:"+k))
		}
		snap := ms.Commit()

		lookup := rapid.StringMatching(`[a-z]{1,6}`).Draw(t, "lookup")
		p, err := commitment.ApplyPrefix(ibcPrefix, []byte(lookup))
		if err != nil {
			t.Fatalf("ApplyPrefix: %v", err)
		}
		value, proof, err := snap.GetProof(ibcPrefix, []byte(lookup))
		if err != nil {
			t.Fatalf("GetProof: %v", err)
		}
		if value != nil {
			if err := commitment.VerifyMembership(commitment.ProofSpecs, snap.Root(), proof, p, value); err != nil {
				t.Fatalf("membership of %q: %v", lookup, err)
			}
			return
		}
		if err := commitment.VerifyNonMembership(commitment.ProofSpecs, snap.Root(), proof, p); err != nil {
			t.Fatalf("non-membership of %q: %v", lookup, err)
		}
	})
}
