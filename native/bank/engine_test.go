package bank

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"lootpool/core/events"
)

type mockState struct {
	tokens   map[string]bool
	balances map[string]*big.Int
	roles    map[string]map[string]bool
}

func newMockState(symbols ...string) *mockState {
	m := &mockState{
		tokens:   make(map[string]bool),
		balances: make(map[string]*big.Int),
		roles:    make(map[string]map[string]bool),
	}
	for _, s := range symbols {
		m.tokens[s] = true
	}
	return m
}

func (m *mockState) TokenExists(symbol string) bool { return m.tokens[symbol] }

func (m *mockState) Balance(addr []byte, symbol string) (*big.Int, error) {
	if bal, ok := m.balances[symbol+string(addr)]; ok {
		return new(big.Int).Set(bal), nil
	}
	return big.NewInt(0), nil
}

func (m *mockState) SetBalance(addr []byte, symbol string, amount *big.Int) error {
	m.balances[symbol+string(addr)] = new(big.Int).Set(amount)
	return nil
}

func (m *mockState) HasRole(role string, addr []byte) bool {
	return m.roles[role][string(addr)]
}

func (m *mockState) grant(role string, addr [20]byte) {
	if m.roles[role] == nil {
		m.roles[role] = make(map[string]bool)
	}
	m.roles[role][string(addr[:])] = true
}

type paused struct{}

func (paused) IsPaused(string) bool { return true }

func TestTransferMovesBalance(t *testing.T) {
	st := newMockState("LINK")
	admin := [20]byte{0xaa}
	alice := [20]byte{0x01}
	bob := [20]byte{0x02}
	st.grant(RoleMinter, admin)

	var buf events.Buffer
	eng := NewEngine()
	eng.SetState(st)
	eng.SetEmitter(&buf)

	require.NoError(t, eng.Mint(admin, alice, "link", big.NewInt(100)))
	require.NoError(t, eng.Transfer(alice, bob, "LINK", big.NewInt(40)))

	aBal, err := eng.Balance(alice, "LINK")
	require.NoError(t, err)
	bBal, err := eng.Balance(bob, "LINK")
	require.NoError(t, err)
	require.Equal(t, int64(60), aBal.Int64())
	require.Equal(t, int64(40), bBal.Int64())
	require.Len(t, buf.Events(), 2)
}

func TestTransferRejections(t *testing.T) {
	st := newMockState("LINK")
	alice := [20]byte{0x01}
	bob := [20]byte{0x02}
	eng := NewEngine()
	eng.SetState(st)

	require.ErrorIs(t, eng.Transfer(alice, bob, "LINK", big.NewInt(1)), ErrInsufficientBalance)
	require.ErrorIs(t, eng.Transfer(alice, bob, "WETH", big.NewInt(1)), ErrUnknownToken)
	require.ErrorIs(t, eng.Transfer(alice, bob, "LINK", big.NewInt(-1)), ErrInvalidAmount)
	require.ErrorIs(t, eng.Mint(alice, bob, "LINK", big.NewInt(1)), ErrUnauthorized)
	require.NoError(t, eng.Transfer(alice, bob, "LINK", big.NewInt(0)))

	eng.SetPauses(paused{})
	require.Error(t, eng.Transfer(alice, bob, "LINK", big.NewInt(0)))
}
