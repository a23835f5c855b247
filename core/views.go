package core

import (
	"math/big"

	"lootpool/core/state"
	"lootpool/native/credits"
	"lootpool/native/custody"
	"lootpool/native/payments"
	"lootpool/native/pool"
	"lootpool/native/randomness"
	"lootpool/native/registry"
)

// UserState summarises what a user can do next.
type UserState struct {
	Status       pool.Status
	Reservation  *pool.Reservation
	Credits      map[uint64]uint64
	DrawToken    string
	TokenBalance *big.Int
	Nonce        uint64
}

// FeeSchedule reports the current pricing of both payment rails and of the
// oracle.
type FeeSchedule struct {
	DrawFee          *big.Int
	DrawToken        string
	FeeRecipient     [20]byte
	RandomnessFee    *big.Int
	FeeToken         string
	CreditsThreshold uint64
	CreditIDs        []uint64
}

// Reservation returns the user's live reservation.
func (n *Node) Reservation(user [20]byte) (*pool.Reservation, bool, error) {
	var (
		res *pool.Reservation
		ok  bool
	)
	err := n.view(func(*state.Manager) error {
		var err error
		res, ok, err = n.pool.Reservation(user)
		return err
	})
	return res, ok, err
}

// Status returns the user's reservation state.
func (n *Node) Status(user [20]byte) (pool.Status, error) {
	var status pool.Status
	err := n.view(func(*state.Manager) error {
		var err error
		status, err = n.pool.Status(user)
		return err
	})
	return status, err
}

// UserState gathers the reservation, credits and token-rail position of a
// user in one consistent read.
func (n *Node) UserState(user [20]byte) (*UserState, error) {
	out := &UserState{}
	err := n.view(func(*state.Manager) error {
		res, ok, err := n.pool.Reservation(user)
		if err != nil {
			return err
		}
		if ok {
			out.Reservation = res
		}
		if out.Status, err = n.pool.Status(user); err != nil {
			return err
		}
		if out.Credits, err = n.credits.Balances(user); err != nil {
			return err
		}
		params, err := n.payments.Params()
		if err != nil {
			return err
		}
		out.DrawToken = params.DrawToken
		out.TokenBalance = big.NewInt(0)
		if params.DrawToken != "" {
			if out.TokenBalance, err = n.bank.Balance(user, params.DrawToken); err != nil {
				return err
			}
		}
		out.Nonce, err = n.payments.Nonce(user)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Fees returns the current fee schedule.
func (n *Node) Fees() (*FeeSchedule, error) {
	out := &FeeSchedule{}
	err := n.view(func(*state.Manager) error {
		pp, err := n.payments.Params()
		if err != nil {
			return err
		}
		rp, err := n.randomness.Params()
		if err != nil {
			return err
		}
		threshold, err := n.credits.Threshold()
		if err != nil {
			return err
		}
		out.DrawFee = pp.DrawFee
		out.DrawToken = pp.DrawToken
		out.FeeRecipient = pp.FeeRecipient
		out.RandomnessFee = rp.Fee
		out.FeeToken = rp.FeeToken
		out.CreditsThreshold = threshold
		out.CreditIDs = credits.AllowedIDs(threshold)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Deck lists every tracked record from tier 0 to the highest tier.
func (n *Node) Deck() ([]*registry.Record, error) {
	var deck []*registry.Record
	err := n.view(func(*state.Manager) error {
		for tier := uint8(0); tier <= registry.MaxTier; tier++ {
			records, err := n.registry.Records(tier)
			if err != nil {
				return err
			}
			deck = append(deck, records...)
		}
		return nil
	})
	return deck, err
}

// Record returns the tracking record of an asset.
func (n *Node) Record(collection [20]byte, item *big.Int) (*registry.Record, bool, error) {
	var (
		rec *registry.Record
		ok  bool
	)
	err := n.view(func(*state.Manager) error {
		var err error
		rec, ok, err = n.registry.Record(collection, item)
		return err
	})
	return rec, ok, err
}

// CountByTier returns the number of records in a tier.
func (n *Node) CountByTier(tier uint8) (uint64, error) {
	var count uint64
	err := n.view(func(*state.Manager) error {
		var err error
		count, err = n.registry.CountByTier(tier)
		return err
	})
	return count, err
}

// ActiveTiers returns the non-empty tier bitmap.
func (n *Node) ActiveTiers() (uint64, error) {
	var bitmap uint64
	err := n.view(func(*state.Manager) error {
		var err error
		bitmap, err = n.registry.ActiveTiers()
		return err
	})
	return bitmap, err
}

// AssetBalance reports how many units of an item holder owns.
func (n *Node) AssetBalance(holder, collection [20]byte, item *big.Int) (uint64, error) {
	var balance uint64
	err := n.view(func(*state.Manager) error {
		var err error
		balance, err = n.custody.BalanceOf(holder, collection, item)
		return err
	})
	return balance, err
}

// Collection returns registered collection metadata.
func (n *Node) Collection(addr [20]byte) (*custody.Collection, error) {
	var col *custody.Collection
	err := n.view(func(*state.Manager) error {
		var err error
		col, err = n.custody.Collection(addr)
		return err
	})
	return col, err
}

// CreditBalances returns every non-zero credit balance of holder.
func (n *Node) CreditBalances(holder [20]byte) (map[uint64]uint64, error) {
	var balances map[uint64]uint64
	err := n.view(func(*state.Manager) error {
		var err error
		balances, err = n.credits.Balances(holder)
		return err
	})
	return balances, err
}

// CreditsURI returns the metadata URI of a credit token id.
func (n *Node) CreditsURI(id uint64) (string, error) {
	var uri string
	err := n.view(func(*state.Manager) error {
		var err error
		uri, err = n.credits.URI(id)
		return err
	})
	return uri, err
}

// TokenBalance returns a fungible token balance.
func (n *Node) TokenBalance(addr [20]byte, symbol string) (*big.Int, error) {
	var balance *big.Int
	err := n.view(func(*state.Manager) error {
		var err error
		balance, err = n.bank.Balance(addr, symbol)
		return err
	})
	return balance, err
}

// PendingRequest returns an outstanding randomness request.
func (n *Node) PendingRequest(id [32]byte) (*randomness.Request, bool, error) {
	var (
		req *randomness.Request
		ok  bool
	)
	err := n.view(func(*state.Manager) error {
		var err error
		req, ok, err = n.randomness.Pending(id)
		return err
	})
	return req, ok, err
}

// RandomnessParams returns the oracle configuration.
func (n *Node) RandomnessParams() (*randomness.Params, error) {
	var params *randomness.Params
	err := n.view(func(*state.Manager) error {
		var err error
		params, err = n.randomness.Params()
		return err
	})
	return params, err
}

// PaymentsParams returns the token-rail configuration.
func (n *Node) PaymentsParams() (*payments.Params, error) {
	var params *payments.Params
	err := n.view(func(*state.Manager) error {
		var err error
		params, err = n.payments.Params()
		return err
	})
	return params, err
}

// HasRole reports whether addr holds role.
func (n *Node) HasRole(role string, addr [20]byte) (bool, error) {
	var ok bool
	err := n.view(func(st *state.Manager) error {
		ok = st.HasRole(role, addr[:])
		return nil
	})
	return ok, err
}
