package core

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"lootpool/core/state"
	"lootpool/native/bank"
	"lootpool/native/credits"
	"lootpool/native/custody"
	"lootpool/native/payments"
	"lootpool/native/pool"
	"lootpool/native/randomness"
	"lootpool/native/registry"
)

var genesisMarker = []byte("lootpool/genesis")

var errNoAdmins = errors.New("genesis: at least one admin required")

// TokenSpec describes a fungible token registered at genesis.
type TokenSpec struct {
	Symbol   string
	Name     string
	Decimals uint8
}

// Allocation funds an account at genesis.
type Allocation struct {
	Address [20]byte
	Symbol  string
	Amount  *big.Int
}

// Genesis is the initial configuration of a fresh pool.
type Genesis struct {
	Admins [][20]byte
	Tokens []TokenSpec
	Alloc  []Allocation

	Oracle        [20]byte
	KeyHash       [32]byte
	RandomnessFee *big.Int
	FeeToken      string

	DrawFee      *big.Int
	DrawToken    string
	FeeRecipient [20]byte

	CreditsThreshold uint64
	CreditsURI       string
	ContractURI      string

	Collections []*custody.Collection
}

func (g *Genesis) validate() error {
	if g == nil {
		return fmt.Errorf("genesis must not be nil")
	}
	if len(g.Admins) == 0 {
		return errNoAdmins
	}
	known := make(map[string]bool, len(g.Tokens))
	for _, tok := range g.Tokens {
		known[strings.ToUpper(strings.TrimSpace(tok.Symbol))] = true
	}
	needs := func(field, symbol string, amount *big.Int) error {
		if amount != nil && amount.Sign() < 0 {
			return fmt.Errorf("genesis: %s must not be negative", field)
		}
		if amount != nil && amount.Sign() > 0 && !known[strings.ToUpper(strings.TrimSpace(symbol))] {
			return fmt.Errorf("genesis: %s token %q not registered", field, symbol)
		}
		return nil
	}
	if err := needs("randomness fee", g.FeeToken, g.RandomnessFee); err != nil {
		return err
	}
	return needs("draw fee", g.DrawToken, g.DrawFee)
}

// Bootstrapped reports whether genesis has been applied to the database.
func (n *Node) Bootstrapped() (bool, error) {
	var done bool
	err := n.view(func(st *state.Manager) error {
		var err error
		done, err = st.KVGet(genesisMarker, nil)
		return err
	})
	return done, err
}

// Bootstrap applies genesis once. Later calls on an initialised database are
// no-ops so that restarts keep the committed state.
func (n *Node) Bootstrap(ctx context.Context, g *Genesis) error {
	if err := g.validate(); err != nil {
		return err
	}
	return n.execute(ctx, "bootstrap", func(st *state.Manager) error {
		done, err := st.KVGet(genesisMarker, nil)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		for _, tok := range g.Tokens {
			if err := st.RegisterToken(tok.Symbol, tok.Name, tok.Decimals); err != nil {
				return fmt.Errorf("genesis: %w", err)
			}
		}
		for _, alloc := range g.Alloc {
			if err := st.SetBalance(alloc.Address[:], alloc.Symbol, alloc.Amount); err != nil {
				return fmt.Errorf("genesis: alloc: %w", err)
			}
		}
		if err := n.grantGenesisRoles(st, g.Admins); err != nil {
			return err
		}
		if err := st.RandomnessParamsPut(&randomness.Params{
			Fee:      nonNil(g.RandomnessFee),
			FeeToken: strings.ToUpper(strings.TrimSpace(g.FeeToken)),
			KeyHash:  g.KeyHash,
			Oracle:   g.Oracle,
		}); err != nil {
			return err
		}
		if err := st.PaymentsParamsPut(&payments.Params{
			DrawFee:      nonNil(g.DrawFee),
			DrawToken:    strings.ToUpper(strings.TrimSpace(g.DrawToken)),
			FeeRecipient: g.FeeRecipient,
		}); err != nil {
			return err
		}
		threshold := g.CreditsThreshold
		if threshold == 0 {
			threshold = credits.DefaultThreshold
		}
		if err := st.CreditsParamsPut(&credits.Params{
			Threshold:   threshold,
			URI:         g.CreditsURI,
			ContractURI: g.ContractURI,
		}); err != nil {
			return err
		}
		for _, col := range g.Collections {
			if err := n.custody.RegisterCollection(g.Admins[0], col); err != nil {
				return fmt.Errorf("genesis: %w", err)
			}
		}
		return st.KVPut(genesisMarker, true)
	})
}

func (n *Node) grantGenesisRoles(st *state.Manager, admins [][20]byte) error {
	adminRoles := []string{
		RoleGovernor,
		bank.RoleMinter,
		custody.RoleAdmin,
		registry.RoleAdmin,
		randomness.RoleAdmin,
		credits.RoleAdmin,
		credits.RoleMinter,
		payments.RoleAdmin,
		pool.RoleAdmin,
	}
	for _, admin := range admins {
		for _, role := range adminRoles {
			if err := st.SetRole(role, admin[:]); err != nil {
				return err
			}
		}
	}
	poolAddr := n.pool.Address()
	payVault := n.payments.Vault()
	moduleRoles := []struct {
		role string
		addr [20]byte
	}{
		{registry.RoleDispenser, poolAddr},
		{payments.RoleProcessor, poolAddr},
		{credits.RoleSpender, payVault},
		{credits.RoleMinter, payVault},
	}
	for _, grant := range moduleRoles {
		if err := st.SetRole(grant.role, grant.addr[:]); err != nil {
			return err
		}
	}
	return nil
}

func nonNil(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
