package events

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBufferFlushPreservesOrder(t *testing.T) {
	var buf Buffer
	buf.Emit(ReservationCleared{Quantity: 1})
	buf.Emit(nil)
	buf.Emit(ReservationRefunded{Undrawn: 2})

	var got []string
	buf.Flush(EmitterFunc(func(evt Event) { got = append(got, evt.EventType()) }))
	require.Equal(t, []string{TypeReservationCleared, TypeReservationRefunded}, got)
	require.Empty(t, buf.Events())
}

func TestFanoutDeliversToAllSubscribers(t *testing.T) {
	var a, b Buffer
	f := NewFanout(&a, nil, &b)
	f.Emit(CustodyDrift{Tier: 3})
	require.Len(t, a.Events(), 1)
	require.Len(t, b.Events(), 1)
}

func TestDrawDispensedWire(t *testing.T) {
	evt := DrawDispensed{
		User:       [20]byte{0x01},
		Collection: [20]byte{0x02},
		Item:       big.NewInt(42),
		Tier:       8,
		TargetTier: 10,
		DrawIndex:  0,
	}.Event()
	require.Equal(t, TypeDrawDispensed, evt.Type)
	require.Equal(t, "42", evt.Attr("item"))
	require.Equal(t, "8", evt.Attr("tier"))
	require.Equal(t, "10", evt.Attr("targetTier"))
	require.Equal(t, "0x0100000000000000000000000000000000000000", evt.Attr("user"))
}

func TestSeededWireJoinsTiers(t *testing.T) {
	evt := ReservationSeeded{Tiers: []uint8{32, 0, 5}}.Event()
	require.Equal(t, "32,0,5", evt.Attr("tiers"))
}
