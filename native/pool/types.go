package pool

import (
	"math/big"

	"github.com/holiman/uint256"

	"lootpool/native/payments"
	"lootpool/native/rarity"
)

// Status describes where a reservation stands.
type Status string

const (
	StatusNone          Status = "none"
	StatusPendingRandom Status = "pendingRandom"
	StatusCanFulfill    Status = "canFulfill"
)

// Reservation is a user's open multi-draw request. Seed is zero until the
// oracle delivers; Tiers is computed once at delivery.
type Reservation struct {
	User          [20]byte
	Quantity      uint8
	DrawsOccurred uint8
	RequestID     [32]byte
	Seed          [32]byte
	Tiers         [rarity.MaxDraws]uint8
	Rail          string
	PerDraw       *big.Int
	Symbol        string
	CreatedAt     uint64
}

// Clone returns a deep copy of the reservation.
func (r *Reservation) Clone() *Reservation {
	if r == nil {
		return nil
	}
	clone := *r
	if r.PerDraw != nil {
		clone.PerDraw = new(big.Int).Set(r.PerDraw)
	}
	return &clone
}

// Seeded reports whether the oracle value has been bound.
func (r *Reservation) Seeded() bool {
	return r != nil && r.Seed != [32]byte{}
}

// Remaining returns the number of draws not yet dispensed.
func (r *Reservation) Remaining() uint8 {
	if r == nil || r.DrawsOccurred >= r.Quantity {
		return 0
	}
	return r.Quantity - r.DrawsOccurred
}

// SeedValue returns the seed as a 256-bit integer.
func (r *Reservation) SeedValue() *uint256.Int {
	return new(uint256.Int).SetBytes32(r.Seed[:])
}

// Receipt rebuilds the payment receipt recorded at initiation.
func (r *Reservation) Receipt() *payments.Receipt {
	perDraw := big.NewInt(0)
	if r.PerDraw != nil {
		perDraw.Set(r.PerDraw)
	}
	return &payments.Receipt{Rail: r.Rail, Quantity: r.Quantity, PerDraw: perDraw, Symbol: r.Symbol}
}

// Draw is a single dispensed asset.
type Draw struct {
	Index      uint8
	TargetTier uint8
	Tier       uint8
	Collection [20]byte
	Item       *big.Int
}
