package custody

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

type mockState struct {
	collections map[[20]byte]*Collection
	owners      map[[32]byte][20]byte
	holdings    map[string]uint64
	approvals   map[string]bool
	roles       map[string]map[[20]byte]bool
}

func newMockState() *mockState {
	return &mockState{
		collections: make(map[[20]byte]*Collection),
		owners:      make(map[[32]byte][20]byte),
		holdings:    make(map[string]uint64),
		approvals:   make(map[string]bool),
		roles:       make(map[string]map[[20]byte]bool),
	}
}

func (m *mockState) CustodyCollectionGet(addr [20]byte) (*Collection, bool, error) {
	c, ok := m.collections[addr]
	if !ok {
		return nil, false, nil
	}
	clone := *c
	return &clone, true, nil
}

func (m *mockState) CustodyCollectionPut(c *Collection) error {
	clone := *c
	m.collections[c.Address] = &clone
	return nil
}

func (m *mockState) CustodyOwnerGet(key [32]byte) ([20]byte, bool, error) {
	owner, ok := m.owners[key]
	return owner, ok, nil
}

func (m *mockState) CustodyOwnerPut(key [32]byte, owner [20]byte) error {
	m.owners[key] = owner
	return nil
}

func holdingKey(key [32]byte, holder [20]byte) string {
	return string(key[:]) + string(holder[:])
}

func (m *mockState) CustodyHoldingGet(key [32]byte, holder [20]byte) (uint64, error) {
	return m.holdings[holdingKey(key, holder)], nil
}

func (m *mockState) CustodyHoldingPut(key [32]byte, holder [20]byte, amount uint64) error {
	m.holdings[holdingKey(key, holder)] = amount
	return nil
}

func (m *mockState) CustodyApprovalGet(holder, operator [20]byte) (bool, error) {
	return m.approvals[string(holder[:])+string(operator[:])], nil
}

func (m *mockState) CustodyApprovalPut(holder, operator [20]byte, approved bool) error {
	m.approvals[string(holder[:])+string(operator[:])] = approved
	return nil
}

func (m *mockState) HasRole(role string, addr []byte) bool {
	var a [20]byte
	copy(a[:], addr)
	return m.roles[role][a]
}

type recordingReceiver struct {
	unique int
	batch  int
	err    error
}

func (r *recordingReceiver) OnUniqueReceived(_, _, _ [20]byte, _ *big.Int) error {
	r.unique++
	return r.err
}

func (r *recordingReceiver) OnBatchReceived(_, _, _ [20]byte, _ []*big.Int, _ []uint64) error {
	r.batch++
	return r.err
}

var (
	admin  = [20]byte{0xad}
	alice  = [20]byte{0x01}
	bob    = [20]byte{0x02}
	nfts   = [20]byte{0xc1}
	stacks = [20]byte{0xc2}
)

func newTestEngine(t *testing.T) (*Engine, *mockState) {
	t.Helper()
	st := newMockState()
	st.roles[RoleAdmin] = map[[20]byte]bool{admin: true}
	eng := NewEngine()
	eng.SetState(st)
	require.NoError(t, eng.RegisterCollection(admin, &Collection{Address: nfts, Kind: KindUnique, Name: "cards"}))
	require.NoError(t, eng.RegisterCollection(admin, &Collection{Address: stacks, Kind: KindQuantified, Name: "potions"}))
	return eng, st
}

func TestRegisterCollectionValidation(t *testing.T) {
	eng, _ := newTestEngine(t)
	require.ErrorIs(t, eng.RegisterCollection(admin, &Collection{Address: nfts, Kind: KindUnique}), ErrCollectionExists)
	require.ErrorIs(t, eng.RegisterCollection(alice, &Collection{Address: [20]byte{9}, Kind: KindUnique}), ErrUnauthorized)
	require.ErrorIs(t, eng.RegisterCollection(admin, &Collection{Address: [20]byte{9}}), ErrInvalidKind)
}

func TestUniqueTransferFlow(t *testing.T) {
	eng, _ := newTestEngine(t)
	item := big.NewInt(7)
	require.NoError(t, eng.MintUnique(admin, alice, nfts, item))
	require.ErrorIs(t, eng.MintUnique(admin, alice, nfts, item), ErrItemExists)

	require.ErrorIs(t, eng.TransferUnique(bob, alice, bob, nfts, item), ErrNotApproved)
	require.NoError(t, eng.SetApprovalForAll(alice, bob, true))
	require.NoError(t, eng.TransferUnique(bob, alice, bob, nfts, item))

	owner, err := eng.OwnerOf(nfts, item)
	require.NoError(t, err)
	require.Equal(t, bob, owner)
	bal, err := eng.BalanceOf(alice, nfts, item)
	require.NoError(t, err)
	require.Zero(t, bal)
	require.ErrorIs(t, eng.TransferUnique(alice, alice, bob, nfts, item), ErrNotOwner)
	require.ErrorIs(t, eng.Transfer(bob, bob, alice, nfts, item, 2), ErrInvalidAmount)
}

func TestQuantifiedTransferFlow(t *testing.T) {
	eng, _ := newTestEngine(t)
	item := big.NewInt(3)
	require.NoError(t, eng.MintQuantified(admin, alice, stacks, item, 10))
	require.ErrorIs(t, eng.MintUnique(admin, alice, stacks, item), ErrWrongKind)

	require.NoError(t, eng.Transfer(alice, alice, bob, stacks, item, 4))
	aBal, err := eng.BalanceOf(alice, stacks, item)
	require.NoError(t, err)
	bBal, err := eng.BalanceOf(bob, stacks, item)
	require.NoError(t, err)
	require.Equal(t, uint64(6), aBal)
	require.Equal(t, uint64(4), bBal)

	require.ErrorIs(t, eng.TransferQuantified(alice, alice, bob, stacks, item, 7), ErrInsufficientBalance)
	require.ErrorIs(t, eng.TransferBatch(alice, alice, bob, stacks, []*big.Int{item}, nil), ErrLengthMismatch)
	require.ErrorIs(t, eng.TransferQuantified(alice, alice, [20]byte{}, stacks, item, 1), ErrZeroRecipient)
}

func TestReceiverHooks(t *testing.T) {
	eng, _ := newTestEngine(t)
	vault := [20]byte{0x99}
	recv := &recordingReceiver{}
	eng.RegisterReceiver(vault, recv)

	require.NoError(t, eng.MintUnique(admin, vault, nfts, big.NewInt(1)))
	require.NoError(t, eng.MintQuantified(admin, alice, stacks, big.NewInt(2), 5))
	require.NoError(t, eng.TransferQuantified(alice, alice, vault, stacks, big.NewInt(2), 5))
	require.Equal(t, 1, recv.unique)
	require.Equal(t, 1, recv.batch)

	recv.err = errors.New("nope")
	require.ErrorContains(t, eng.MintUnique(admin, vault, nfts, big.NewInt(2)), "receiver rejected")
}

type reentrantReceiver struct {
	eng *Engine
	err error
}

func (r *reentrantReceiver) OnUniqueReceived(_, _, collection [20]byte, item *big.Int) error {
	r.err = r.eng.TransferUnique(bob, bob, alice, collection, item)
	return nil
}

func (r *reentrantReceiver) OnBatchReceived(_, _, _ [20]byte, _ []*big.Int, _ []uint64) error {
	return nil
}

func TestReceiverCannotReenter(t *testing.T) {
	eng, _ := newTestEngine(t)
	recv := &reentrantReceiver{eng: eng}
	eng.RegisterReceiver(bob, recv)
	require.NoError(t, eng.MintUnique(admin, bob, nfts, big.NewInt(5)))
	require.Error(t, recv.err)
	owner, err := eng.OwnerOf(nfts, big.NewInt(5))
	require.NoError(t, err)
	require.Equal(t, bob, owner)
}

func TestAssetKeyDistinguishesItems(t *testing.T) {
	require.NotEqual(t, AssetKey(nfts, big.NewInt(1)), AssetKey(nfts, big.NewInt(2)))
	require.NotEqual(t, AssetKey(nfts, big.NewInt(1)), AssetKey(stacks, big.NewInt(1)))
	require.Equal(t, AssetKey(nfts, nil), AssetKey(nfts, big.NewInt(0)))
}
