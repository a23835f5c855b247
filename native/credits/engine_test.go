package credits

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type mockState struct {
	balances  map[[20]byte]map[uint64]uint64
	approvals map[[40]byte]bool
	params    *Params
	roles     map[string]map[[20]byte]bool
}

func newMockState() *mockState {
	return &mockState{
		balances:  make(map[[20]byte]map[uint64]uint64),
		approvals: make(map[[40]byte]bool),
		params:    &Params{Threshold: 12, URI: "ipfs://credits/{id}.json", ContractURI: "ipfs://credits/contract.json"},
		roles:     make(map[string]map[[20]byte]bool),
	}
}

func (m *mockState) CreditsBalanceGet(holder [20]byte, id uint64) (uint64, error) {
	return m.balances[holder][id], nil
}

func (m *mockState) CreditsBalancePut(holder [20]byte, id uint64, amount uint64) error {
	if m.balances[holder] == nil {
		m.balances[holder] = make(map[uint64]uint64)
	}
	m.balances[holder][id] = amount
	return nil
}

func approvalKey(holder, operator [20]byte) [40]byte {
	var k [40]byte
	copy(k[:20], holder[:])
	copy(k[20:], operator[:])
	return k
}

func (m *mockState) CreditsApprovalGet(holder, operator [20]byte) (bool, error) {
	return m.approvals[approvalKey(holder, operator)], nil
}

func (m *mockState) CreditsApprovalPut(holder, operator [20]byte, approved bool) error {
	m.approvals[approvalKey(holder, operator)] = approved
	return nil
}

func (m *mockState) CreditsParamsGet() (*Params, error) {
	clone := *m.params
	return &clone, nil
}

func (m *mockState) CreditsParamsPut(p *Params) error {
	clone := *p
	m.params = &clone
	return nil
}

func (m *mockState) HasRole(role string, addr []byte) bool {
	var a [20]byte
	copy(a[:], addr)
	return m.roles[role][a]
}

var (
	admin   = [20]byte{0xad}
	spender = [20]byte{0x5e}
	alice   = [20]byte{0x01}
	bob     = [20]byte{0x02}
)

func newTestEngine() (*Engine, *mockState) {
	st := newMockState()
	st.roles[RoleAdmin] = map[[20]byte]bool{admin: true}
	st.roles[RoleMinter] = map[[20]byte]bool{admin: true}
	st.roles[RoleSpender] = map[[20]byte]bool{spender: true}
	eng := NewEngine()
	eng.SetState(st)
	return eng, st
}

func TestAllowedIDsAreDivisors(t *testing.T) {
	require.Equal(t, []uint64{1, 2, 3, 4, 6, 12}, AllowedIDs(12))
	require.Equal(t, []uint64{1, 7}, AllowedIDs(7))
}

func TestMintRejectsNonDivisors(t *testing.T) {
	eng, _ := newTestEngine()
	require.NoError(t, eng.Mint(admin, alice, 4, 3))
	require.ErrorIs(t, eng.Mint(admin, alice, 5, 1), ErrTokenNotAllowed)
	require.ErrorIs(t, eng.Mint(admin, alice, 0, 1), ErrTokenNotAllowed)
	require.ErrorIs(t, eng.Mint(admin, alice, 24, 1), ErrTokenNotAllowed)
	require.ErrorIs(t, eng.Mint(alice, alice, 4, 1), ErrUnauthorized)

	bal, err := eng.Balance(alice, 4)
	require.NoError(t, err)
	require.Equal(t, uint64(3), bal)
}

func TestSpendThreshold(t *testing.T) {
	eng, _ := newTestEngine()
	require.NoError(t, eng.Mint(admin, alice, 4, 3))
	require.NoError(t, eng.Mint(admin, alice, 6, 2))

	require.ErrorIs(t, eng.Spend(spender, alice, 1, []uint64{4}, []uint64{2}), ErrInsufficientCredits)
	require.ErrorIs(t, eng.Spend(spender, alice, 1, []uint64{4}, []uint64{2, 1}), ErrUneven)
	require.ErrorIs(t, eng.Spend(spender, alice, 1, []uint64{12}, []uint64{1}), ErrBurnExceedsBalance)
	require.ErrorIs(t, eng.Spend(alice, alice, 1, []uint64{4}, []uint64{3}), ErrUnauthorized)

	require.NoError(t, eng.Spend(spender, alice, 2, []uint64{4, 6}, []uint64{3, 2}))
	balances, err := eng.Balances(alice)
	require.NoError(t, err)
	require.Zero(t, balances[4])
	require.Zero(t, balances[6])
}

func TestSpendRejectsNonDivisorBeforeBurning(t *testing.T) {
	eng, _ := newTestEngine()
	require.NoError(t, eng.Mint(admin, alice, 12, 1))

	err := eng.Spend(spender, alice, 1, []uint64{12, 5}, []uint64{1, 1})
	require.ErrorIs(t, err, ErrTokenNotAllowed)
	bal, err := eng.Balance(alice, 12)
	require.NoError(t, err)
	require.Equal(t, uint64(1), bal)
}

func TestSpendRejectsDuplicateOverdraw(t *testing.T) {
	eng, _ := newTestEngine()
	require.NoError(t, eng.Mint(admin, alice, 12, 1))
	require.ErrorIs(t, eng.Spend(spender, alice, 1, []uint64{12, 12}, []uint64{1, 1}), ErrBurnExceedsBalance)
	bal, err := eng.Balance(alice, 12)
	require.NoError(t, err)
	require.Equal(t, uint64(1), bal)
}

func TestTransferAndApproval(t *testing.T) {
	eng, _ := newTestEngine()
	require.NoError(t, eng.Mint(admin, alice, 1, 10))
	require.ErrorIs(t, eng.Transfer(bob, alice, bob, 1, 4), ErrNotApproved)
	require.NoError(t, eng.SetApprovalForAll(alice, bob, true))
	require.NoError(t, eng.Transfer(bob, alice, bob, 1, 4))
	require.ErrorIs(t, eng.Transfer(alice, alice, bob, 1, 7), ErrInsufficientBalance)

	got, err := eng.BalanceOfBatch([][20]byte{alice, bob}, []uint64{1, 1})
	require.NoError(t, err)
	require.Equal(t, []uint64{6, 4}, got)
}

func TestMetadata(t *testing.T) {
	eng, _ := newTestEngine()
	uri, err := eng.URI(6)
	require.NoError(t, err)
	require.Equal(t, "ipfs://credits/6.json", uri)

	require.ErrorIs(t, eng.SetContractURI(alice, "x"), ErrUnauthorized)
	require.NoError(t, eng.SetContractURI(admin, "https://example.org/c.json"))
	c, err := eng.ContractURI()
	require.NoError(t, err)
	require.Equal(t, "https://example.org/c.json", c)
}
