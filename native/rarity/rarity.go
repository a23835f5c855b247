// Package rarity derives per-draw rarity levels from a single 256-bit random
// value. The value is split into eight 32-bit lanes, lane 0 being the most
// significant, and each lane's level is the length of its leading run of set
// bits. Level r < 32 therefore occurs with probability 2^-(r+1) and level 32
// with probability 2^-32.
package rarity

import (
	"errors"
	"math/bits"

	"github.com/holiman/uint256"
)

const (
	// MaxDraws is the number of lanes carried by one seed.
	MaxDraws = 8
	// LaneBits is the width of a lane.
	LaneBits = 32
	// MaxLevel is the level produced by an all-ones lane.
	MaxLevel = 32
	seedBits = 256
)

var (
	ErrTooManyDraws = errors.New("rarity: draw count out of range")
	ErrMaskRange    = errors.New("rarity: mask range out of bounds")
)

// Mask returns a value with bits [start, end) set, counting from the least
// significant bit.
func Mask(start, end uint) (*uint256.Int, error) {
	if end > seedBits || start > end {
		return nil, ErrMaskRange
	}
	width := end - start
	mask := new(uint256.Int)
	if width == 0 {
		return mask, nil
	}
	mask.SetAllOne()
	mask.Rsh(mask, seedBits-width)
	mask.Lsh(mask, start)
	return mask, nil
}

// Slice extracts numBits bits of seed starting at bit start (LSB = 0).
func Slice(seed *uint256.Int, start, numBits uint) (*uint256.Int, error) {
	mask, err := Mask(start, start+numBits)
	if err != nil {
		return nil, err
	}
	out := new(uint256.Int)
	if seed == nil {
		return out, nil
	}
	out.And(seed, mask)
	out.Rsh(out, start)
	return out, nil
}

// Lane returns the i-th 32-bit lane of seed; lane 0 occupies the top bits.
func Lane(seed *uint256.Int, i int) (uint32, error) {
	if i < 0 || i >= MaxDraws {
		return 0, ErrTooManyDraws
	}
	start := uint(seedBits - LaneBits*(i+1))
	v, err := Slice(seed, start, LaneBits)
	if err != nil {
		return 0, err
	}
	return uint32(v.Uint64()), nil
}

// Level counts the leading run of set bits in lane.
func Level(lane uint32) uint8 {
	return uint8(bits.LeadingZeros32(^lane))
}

// Levels computes the rarity level of the first n lanes of seed. Lanes at or
// beyond n are left at zero. Counts above MaxDraws are rejected rather than
// truncated so callers never silently receive fewer draws than requested.
func Levels(seed *uint256.Int, n int) ([MaxDraws]uint8, error) {
	var levels [MaxDraws]uint8
	if n < 0 || n > MaxDraws {
		return levels, ErrTooManyDraws
	}
	for i := 0; i < n; i++ {
		lane, err := Lane(seed, i)
		if err != nil {
			return levels, err
		}
		levels[i] = Level(lane)
	}
	return levels, nil
}

// FromLanes packs up to eight lanes into a seed, lane 0 first. It is the
// inverse of Lane and is mostly useful for building deterministic fixtures.
func FromLanes(lanes ...uint32) (*uint256.Int, error) {
	if len(lanes) > MaxDraws {
		return nil, ErrTooManyDraws
	}
	seed := new(uint256.Int)
	for i, lane := range lanes {
		part := uint256.NewInt(uint64(lane))
		part.Lsh(part, uint(seedBits-LaneBits*(i+1)))
		seed.Or(seed, part)
	}
	return seed, nil
}
