package registry

import (
	"math/big"

	"lootpool/native/custody"
)

const (
	// MaxTier is the scarcest tier.
	MaxTier = 32
	// TierCount is the number of tier buckets.
	TierCount = MaxTier + 1
)

// Record is a tracked asset resident in one tier bucket. Index is always the
// record's current slot in that bucket.
type Record struct {
	Collection [20]byte
	Item       *big.Int
	Kind       custody.Kind
	Quantity   uint64
	Tier       uint8
	Index      uint64
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	clone := *r
	clone.Item = cloneBig(r.Item)
	return &clone
}

// Key returns the asset key of the record.
func (r *Record) Key() [32]byte {
	return custody.AssetKey(r.Collection, r.Item)
}

// Tier holds the length of a bucket and its round-robin cursor.
type Tier struct {
	Length uint64
	Cursor uint64
}

// Slot points from a bucket position back to a record.
type Slot struct {
	Collection [20]byte
	Item       *big.Int
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
