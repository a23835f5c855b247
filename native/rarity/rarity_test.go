package rarity

import (
	"strconv"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func mustLane(t *testing.T, bitsStr string) uint32 {
	t.Helper()
	v, err := strconv.ParseUint(bitsStr, 2, 32)
	require.NoError(t, err)
	return uint32(v)
}

func TestLevelBinaryVectors(t *testing.T) {
	cases := map[string]uint8{
		"11111111111111111111111111111111": 32,
		"11111111111111111111111111111110": 31,
		"11111111111111111111111111111100": 30,
		"11111111111111111111111111000000": 26,
		"11111111111111111110000000000000": 19,
		"11111111111111111110000000000001": 19,
		"11111111111111111100001000000001": 18,
		"11111111111111110000000000010001": 16,
		"00000000000000000000000000000000": 0,
		"01000000000000000000000000000000": 0,
		"01000000000000000000000000000001": 0,
		"10000000000000000000000000000000": 1,
		"11010000000000000000000000000000": 2,
		"11111110100000000000000000000000": 7,
	}
	for in, want := range cases {
		require.Equal(t, want, Level(mustLane(t, in)), in)
	}
}

func TestLevelNumericVectors(t *testing.T) {
	require.Equal(t, uint8(1), Level(1<<31))
	require.Equal(t, uint8(0), Level(1<<30))
	require.Equal(t, uint8(2), Level(1<<31|1<<30))
	require.Equal(t, uint8(1), Level(1<<31|1<<29))
	require.Equal(t, uint8(4), Level(1<<31|1<<30|1<<29|1<<28))
}

func TestMask(t *testing.T) {
	m, err := Mask(2, 6)
	require.NoError(t, err)
	require.Equal(t, uint64(0b111100), m.Uint64())

	m, err = Mask(250, 256)
	require.NoError(t, err)
	for i := 0; i < 256; i++ {
		bit := new(uint256.Int).Rsh(m, uint(i))
		want := uint64(0)
		if i >= 250 {
			want = 1
		}
		require.Equal(t, want, bit.Uint64()&1, "bit %d", i)
	}

	m, err = Mask(0, 256)
	require.NoError(t, err)
	require.Equal(t, new(uint256.Int).SetAllOne(), m)

	m, err = Mask(7, 7)
	require.NoError(t, err)
	require.True(t, m.IsZero())

	_, err = Mask(0, 257)
	require.ErrorIs(t, err, ErrMaskRange)
}

func TestLanesRoundTrip(t *testing.T) {
	lanes := []uint32{^uint32(0), ^uint32(0) - 1, ^uint32(0) - 2, 3, 4, 5, 6, 7}
	seed, err := FromLanes(lanes...)
	require.NoError(t, err)
	for i, want := range lanes {
		got, err := Lane(seed, i)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
	_, err = Lane(seed, MaxDraws)
	require.ErrorIs(t, err, ErrTooManyDraws)
}

func TestLevelsFullSeed(t *testing.T) {
	in := []string{
		"11111111111111111111111111111111",
		"11111111111111111111111111111101",
		"11111111111111110000000000010001",
		"00000000000000000000000000000000",
		"01000000000000000000000000000001",
		"11111110100000000000000000000000",
		"11111111111111111100001000000001",
		"11111111111111111111111111111111",
	}
	want := [MaxDraws]uint8{32, 30, 16, 0, 0, 7, 18, 32}
	lanes := make([]uint32, len(in))
	for i, s := range in {
		lanes[i] = mustLane(t, s)
	}
	seed, err := FromLanes(lanes...)
	require.NoError(t, err)

	levels, err := Levels(seed, MaxDraws)
	require.NoError(t, err)
	require.Equal(t, want, levels)

	partial, err := Levels(seed, 3)
	require.NoError(t, err)
	require.Equal(t, [MaxDraws]uint8{32, 30, 16}, partial)
}

func TestLevelsAllOnesSeed(t *testing.T) {
	seed := new(uint256.Int).SetAllOne()
	levels, err := Levels(seed, MaxDraws)
	require.NoError(t, err)
	for _, lvl := range levels {
		require.Equal(t, uint8(MaxLevel), lvl)
	}
}

func TestLevelsExponentialBands(t *testing.T) {
	// 2^i consecutive lane values map to level 31-i.
	value := ^uint32(0) - 1
	for band := 0; band <= 6; band++ {
		for j := 0; j < 1<<band; j++ {
			seed, err := FromLanes(value)
			require.NoError(t, err)
			levels, err := Levels(seed, 1)
			require.NoError(t, err)
			require.Equal(t, uint8(31-band), levels[0], "lane %032b", value)
			value--
		}
	}
}

func TestLevelsRejectsOutOfRangeCounts(t *testing.T) {
	seed := uint256.NewInt(12345)
	_, err := Levels(seed, MaxDraws+1)
	require.ErrorIs(t, err, ErrTooManyDraws)
	_, err = Levels(seed, -1)
	require.ErrorIs(t, err, ErrTooManyDraws)

	levels, err := Levels(seed, 0)
	require.NoError(t, err)
	require.Equal(t, [MaxDraws]uint8{}, levels)
}

func TestLevelsStayInRange(t *testing.T) {
	seed := new(uint256.Int)
	for i := 0; i < 64; i++ {
		seed.Mul(seed, uint256.NewInt(6364136223846793005))
		seed.Add(seed, uint256.NewInt(1442695040888963407+uint64(i)))
		levels, err := Levels(seed, MaxDraws)
		require.NoError(t, err)
		for lane, lvl := range levels {
			require.LessOrEqual(t, lvl, uint8(MaxLevel))
			l, _ := Lane(seed, lane)
			if l>>31 == 0 {
				require.Zero(t, lvl)
			}
		}
	}
}
