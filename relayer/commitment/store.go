package commitment

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math/bits"
	"sort"
	"sync"

	ics23 "github.com/confio/ics23/go"
	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"
	commitmenttypes "github.com/cosmos/ibc-go/v3/modules/core/23-commitment/types"
	"github.com/gogo/protobuf/proto"
	"github.com/tendermint/tendermint/crypto/merkle"
	"github.com/tendermint/tendermint/crypto/tmhash"
)

// Store is a mutable key/value substore of a MultiStore. It is safe for
// concurrent use.
type Store struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewStore() *Store {
	return &Store{data: make(map[string][]byte)}
}

func (s *Store) Get(key []byte) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[string(key)]
	return v, ok
}

func (s *Store) Has(key []byte) bool {
	_, ok := s.Get(key)
	return ok
}

// Set stores a copy of value at key. Empty values are not provable and are
// treated as a delete.
func (s *Store) Set(key, value []byte) {
	if len(value) == 0 {
		s.Delete(key)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[string(key)] = append([]byte(nil), value...)
}

func (s *Store) Delete(key []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, string(key))
}

// IteratePrefix calls fn for every key with the given prefix in ascending
// order until fn returns false.
func (s *Store) IteratePrefix(prefix []byte, fn func(key, value []byte) bool) {
	s.mu.RLock()
	keys := make([]string, 0)
	for k := range s.data {
		if bytes.HasPrefix([]byte(k), prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	values := make([][]byte, len(keys))
	for i, k := range keys {
		values[i] = s.data[k]
	}
	s.mu.RUnlock()

	for i, k := range keys {
		if !fn([]byte(k), values[i]) {
			return
		}
	}
}

// Clone returns an independent copy of the store. Values are never mutated
// in place so they are shared.
func (s *Store) Clone() *Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data := make(map[string][]byte, len(s.data))
	for k, v := range s.data {
		data[k] = v
	}
	return &Store{data: data}
}

// commit freezes the current contents into a tree.
func (s *Store) commit() *tree {
	s.mu.RLock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	values := make([][]byte, len(keys))
	for i, k := range keys {
		values[i] = s.data[k]
	}
	s.mu.RUnlock()
	return newTree(keys, values)
}

// MultiStore is a set of named substores committed under a single root, the
// way a cosmos app commits its module stores: every substore is a simple
// merkle tree, and an outer simple tree maps store names to their roots.
type MultiStore struct {
	stores map[string]*Store
}

// NewMultiStore returns a multistore with one empty substore per name.
func NewMultiStore(names ...string) *MultiStore {
	ms := &MultiStore{stores: make(map[string]*Store, len(names))}
	for _, name := range names {
		ms.stores[name] = NewStore()
	}
	return ms
}

// Store returns the substore with the given name. It panics on unknown names
// since the set of substores is fixed at construction.
func (ms *MultiStore) Store(name string) *Store {
	s, ok := ms.stores[name]
	if !ok {
		panic(fmt.Sprintf("unknown substore %q", name))
	}
	return s
}

// Clone returns an independent copy of every substore.
func (ms *MultiStore) Clone() *MultiStore {
	out := &MultiStore{stores: make(map[string]*Store, len(ms.stores))}
	for name, s := range ms.stores {
		out.stores[name] = s.Clone()
	}
	return out
}

// Commit freezes every substore into a Snapshot.
func (ms *MultiStore) Commit() *Snapshot {
	names := make([]string, 0, len(ms.stores))
	for name := range ms.stores {
		names = append(names, name)
	}
	sort.Strings(names)

	sn := &Snapshot{stores: make(map[string]*tree, len(names))}
	roots := make([][]byte, len(names))
	for i, name := range names {
		t := ms.stores[name].commit()
		sn.stores[name] = t
		roots[i] = t.root
	}
	sn.outer = newTree(names, roots)
	return sn
}

// Snapshot is the committed state of a MultiStore at one height.
type Snapshot struct {
	outer  *tree
	stores map[string]*tree
}

// Root is the app hash of the snapshot.
func (sn *Snapshot) Root() Root {
	return NewRoot(sn.outer.root)
}

// Len returns the number of keys in the named substore.
func (sn *Snapshot) Len(storeName string) int {
	t, ok := sn.stores[storeName]
	if !ok {
		return 0
	}
	return len(t.keys)
}

func (sn *Snapshot) Get(storeName string, key []byte) ([]byte, bool) {
	t, ok := sn.stores[storeName]
	if !ok {
		return nil, false
	}
	i, found := t.search(key)
	if !found {
		return nil, false
	}
	return t.values[i], true
}

// GetProof returns the value stored at path in the substore named by prefix,
// together with an encoded MerkleProof of its existence, or a nil value and a
// MerkleProof of its absence. The proof verifies against Root with
// ProofSpecs.
func (sn *Snapshot) GetProof(prefix Prefix, path []byte) ([]byte, []byte, error) {
	name := string(prefix.Bytes())
	t, ok := sn.stores[name]
	if !ok {
		return nil, nil, sdkerrors.Wrapf(ErrInvalidPrefix, "no substore %q", name)
	}
	if len(t.keys) == 0 {
		return nil, nil, ErrEmptyStore
	}
	value, inner := t.prove(path)

	i, found := sn.outer.search(prefix.Bytes())
	if !found {
		return nil, nil, sdkerrors.Wrapf(ErrInvalidPrefix, "no substore %q", name)
	}
	outer := &ics23.CommitmentProof{
		Proof: &ics23.CommitmentProof_Exist{Exist: sn.outer.existenceProof(i)},
	}

	mp := commitmenttypes.MerkleProof{Proofs: []*ics23.CommitmentProof{inner, outer}}
	bz, err := proto.Marshal(&mp)
	if err != nil {
		return nil, nil, sdkerrors.Wrap(ErrInvalidProofEncoding, err.Error())
	}
	return value, bz, nil
}

// tree is a tendermint simple merkle tree over sorted keys.
type tree struct {
	keys   []string
	values [][]byte
	root   []byte
	proofs []*merkle.Proof
}

func newTree(keys []string, values [][]byte) *tree {
	if len(keys) == 0 {
		return &tree{root: merkle.HashFromByteSlices(nil)}
	}
	items := make([][]byte, len(keys))
	for i, k := range keys {
		items[i] = leafItem([]byte(k), values[i])
	}
	root, proofs := merkle.ProofsFromByteSlices(items)
	return &tree{
		keys:   keys,
		values: values,
		root:   root,
		proofs: proofs,
	}
}

// prove returns the value at key with an ics23 proof of its existence, or
// a nil value with a proof of its absence from its neighbours. The tree must
// not be empty.
func (t *tree) prove(key []byte) ([]byte, *ics23.CommitmentProof) {
	i, found := t.search(key)
	if found {
		return t.values[i], &ics23.CommitmentProof{
			Proof: &ics23.CommitmentProof_Exist{Exist: t.existenceProof(i)},
		}
	}
	nonexist := &ics23.NonExistenceProof{Key: key}
	if i > 0 {
		nonexist.Left = t.existenceProof(i - 1)
	}
	if i < len(t.keys) {
		nonexist.Right = t.existenceProof(i)
	}
	return nil, &ics23.CommitmentProof{
		Proof: &ics23.CommitmentProof_Nonexist{Nonexist: nonexist},
	}
}

// search returns the index of key or the index it would be inserted at.
func (t *tree) search(key []byte) (int, bool) {
	k := string(key)
	i := sort.SearchStrings(t.keys, k)
	return i, i < len(t.keys) && t.keys[i] == k
}

func (t *tree) existenceProof(i int) *ics23.ExistenceProof {
	p := t.proofs[i]
	return &ics23.ExistenceProof{
		Key:   []byte(t.keys[i]),
		Value: t.values[i],
		Leaf:  ics23.TendermintSpec.LeafSpec,
		Path:  innerOps(p.Index, p.Total, p.Aunts),
	}
}

// leafItem is the leaf preimage that makes a tendermint simple tree leaf
// hash equal to the ics23 leaf op of the tendermint spec: length-prefixed key
// followed by the length-prefixed hash of the value.
func leafItem(key, value []byte) []byte {
	item := appendLengthPrefixed(nil, key)
	return appendLengthPrefixed(item, tmhash.Sum(value))
}

func appendLengthPrefixed(buf, bz []byte) []byte {
	var n [binary.MaxVarintLen64]byte
	l := binary.PutUvarint(n[:], uint64(len(bz)))
	buf = append(buf, n[:l]...)
	return append(buf, bz...)
}

// innerOps converts the aunts of a simple tree proof, ordered leaf to root,
// into ics23 inner ops.
func innerOps(index, total int64, aunts [][]byte) []*ics23.InnerOp {
	if total <= 1 || len(aunts) == 0 {
		return nil
	}
	numLeft := splitPoint(total)
	sibling := aunts[len(aunts)-1]
	rest := aunts[:len(aunts)-1]
	if index < numLeft {
		ops := innerOps(index, numLeft, rest)
		return append(ops, &ics23.InnerOp{
			Hash:   ics23.HashOp_SHA256,
			Prefix: []byte{1},
			Suffix: sibling,
		})
	}
	ops := innerOps(index-numLeft, total-numLeft, rest)
	return append(ops, &ics23.InnerOp{
		Hash:   ics23.HashOp_SHA256,
		Prefix: append([]byte{1}, sibling...),
	})
}

// splitPoint returns the largest power of 2 less than n.
func splitPoint(n int64) int64 {
	if n < 1 {
		panic("splitPoint requires a positive length")
	}
	k := int64(1) << uint(bits.Len64(uint64(n))-1)
	if k == n {
		k >>= 1
	}
	return k
}
