package events

import (
	"math/big"
	"strconv"

	"lootpool/core/types"
)

const (
	// TypeReservationCreated is emitted when a user opens a draw reservation
	// and the randomness request has been issued.
	TypeReservationCreated = "pool.reservation.created"
	// TypeReservationSeeded is emitted when the oracle value is bound to a
	// reservation and the per-draw tiers are fixed.
	TypeReservationSeeded = "pool.reservation.seeded"
	// TypeDrawDispensed is emitted once per asset handed to a user.
	TypeDrawDispensed = "pool.draw.dispensed"
	// TypeReservationCleared is emitted when every draw of a reservation has
	// been dispensed.
	TypeReservationCleared = "pool.reservation.cleared"
	// TypeReservationRefunded is emitted when an administrator refunds a
	// reservation.
	TypeReservationRefunded = "pool.reservation.refunded"
	// TypeRandomnessDropped is emitted when an oracle value arrives for a
	// request that no longer has a reservation attached.
	TypeRandomnessDropped = "pool.randomness.dropped"
)

// ReservationCreated captures a newly opened reservation.
type ReservationCreated struct {
	User      [20]byte
	Quantity  uint8
	RequestID [32]byte
	Rail      string
	PerDraw   *big.Int
}

// EventType implements the Event interface.
func (ReservationCreated) EventType() string { return TypeReservationCreated }

// Event renders the wire representation.
func (e ReservationCreated) Event() *types.Event {
	return &types.Event{Type: TypeReservationCreated, Attributes: map[string]string{
		"user":      addrHex(e.User),
		"quantity":  strconv.Itoa(int(e.Quantity)),
		"requestId": hashHex(e.RequestID),
		"rail":      e.Rail,
		"perDraw":   bigString(e.PerDraw),
	}}
}

// ReservationSeeded captures the rarity tiers computed from the oracle seed.
type ReservationSeeded struct {
	User      [20]byte
	RequestID [32]byte
	Tiers     []uint8
}

// EventType implements the Event interface.
func (ReservationSeeded) EventType() string { return TypeReservationSeeded }

// Event renders the wire representation.
func (e ReservationSeeded) Event() *types.Event {
	return &types.Event{Type: TypeReservationSeeded, Attributes: map[string]string{
		"user":      addrHex(e.User),
		"requestId": hashHex(e.RequestID),
		"tiers":     joinTiers(e.Tiers),
	}}
}

// DrawDispensed records a single asset leaving the pool for a user.
type DrawDispensed struct {
	User       [20]byte
	Collection [20]byte
	Item       *big.Int
	Tier       uint8
	TargetTier uint8
	DrawIndex  uint8
}

// EventType implements the Event interface.
func (DrawDispensed) EventType() string { return TypeDrawDispensed }

// Event renders the wire representation.
func (e DrawDispensed) Event() *types.Event {
	return &types.Event{Type: TypeDrawDispensed, Attributes: map[string]string{
		"user":       addrHex(e.User),
		"collection": addrHex(e.Collection),
		"item":       bigString(e.Item),
		"tier":       strconv.Itoa(int(e.Tier)),
		"targetTier": strconv.Itoa(int(e.TargetTier)),
		"drawIndex":  strconv.Itoa(int(e.DrawIndex)),
	}}
}

// ReservationCleared marks a fully dispensed reservation.
type ReservationCleared struct {
	User     [20]byte
	Quantity uint8
}

// EventType implements the Event interface.
func (ReservationCleared) EventType() string { return TypeReservationCleared }

// Event renders the wire representation.
func (e ReservationCleared) Event() *types.Event {
	return &types.Event{Type: TypeReservationCleared, Attributes: map[string]string{
		"user":     addrHex(e.User),
		"quantity": strconv.Itoa(int(e.Quantity)),
	}}
}

// ReservationRefunded marks an administrator refund.
type ReservationRefunded struct {
	User    [20]byte
	Undrawn uint8
	Rail    string
}

// EventType implements the Event interface.
func (ReservationRefunded) EventType() string { return TypeReservationRefunded }

// Event renders the wire representation.
func (e ReservationRefunded) Event() *types.Event {
	return &types.Event{Type: TypeReservationRefunded, Attributes: map[string]string{
		"user":    addrHex(e.User),
		"undrawn": strconv.Itoa(int(e.Undrawn)),
		"rail":    e.Rail,
	}}
}

// RandomnessDropped reports an oracle value delivered for a request whose
// reservation was already refunded.
type RandomnessDropped struct {
	RequestID [32]byte
}

// EventType implements the Event interface.
func (RandomnessDropped) EventType() string { return TypeRandomnessDropped }

// Event renders the wire representation.
func (e RandomnessDropped) Event() *types.Event {
	return &types.Event{Type: TypeRandomnessDropped, Attributes: map[string]string{
		"requestId": hashHex(e.RequestID),
	}}
}
