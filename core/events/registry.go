package events

import (
	"math/big"
	"strconv"

	"lootpool/core/types"
)

const (
	// TypeAssetReceived is emitted when the registry vault acknowledges an
	// inbound custody transfer.
	TypeAssetReceived = "registry.asset.received"
	// TypeAssetTracked is emitted when an asset is assigned to a tier.
	TypeAssetTracked = "registry.asset.tracked"
	// TypeAssetMoved is emitted when an administrator moves an asset to a
	// different tier.
	TypeAssetMoved = "registry.asset.moved"
	// TypeAssetRemoved is emitted when a record leaves the registry.
	TypeAssetRemoved = "registry.asset.removed"
	// TypeCustodyDrift is emitted when a tracked asset is found to no longer
	// be held by the vault and its record is cleared.
	TypeCustodyDrift = "registry.custody.drift"
)

// Removal reasons reported on AssetRemoved.
const (
	RemovalDepleted = "depleted"
	RemovalAdmin    = "admin"
	RemovalForced   = "forced"
	RemovalDrift    = "drift"
)

// AssetReceived captures an inbound custody acknowledgment. Batch is false for
// the single-unit unique shape.
type AssetReceived struct {
	Operator   [20]byte
	From       [20]byte
	Collection [20]byte
	Items      []*big.Int
	Amounts    []uint64
	Batch      bool
}

// EventType implements the Event interface.
func (AssetReceived) EventType() string { return TypeAssetReceived }

// Event renders the wire representation.
func (e AssetReceived) Event() *types.Event {
	return &types.Event{Type: TypeAssetReceived, Attributes: map[string]string{
		"operator":   addrHex(e.Operator),
		"from":       addrHex(e.From),
		"collection": addrHex(e.Collection),
		"items":      joinBig(e.Items),
		"amounts":    joinUint(e.Amounts),
		"batch":      strconv.FormatBool(e.Batch),
	}}
}

// AssetTracked captures a tier assignment.
type AssetTracked struct {
	Collection [20]byte
	Item       *big.Int
	Kind       uint8
	Quantity   uint64
	Tier       uint8
}

// EventType implements the Event interface.
func (AssetTracked) EventType() string { return TypeAssetTracked }

// Event renders the wire representation.
func (e AssetTracked) Event() *types.Event {
	return &types.Event{Type: TypeAssetTracked, Attributes: map[string]string{
		"collection": addrHex(e.Collection),
		"item":       bigString(e.Item),
		"kind":       strconv.Itoa(int(e.Kind)),
		"quantity":   uintString(e.Quantity),
		"tier":       strconv.Itoa(int(e.Tier)),
	}}
}

// AssetMoved captures a tier change.
type AssetMoved struct {
	Collection [20]byte
	Item       *big.Int
	From       uint8
	To         uint8
}

// EventType implements the Event interface.
func (AssetMoved) EventType() string { return TypeAssetMoved }

// Event renders the wire representation.
func (e AssetMoved) Event() *types.Event {
	return &types.Event{Type: TypeAssetMoved, Attributes: map[string]string{
		"collection": addrHex(e.Collection),
		"item":       bigString(e.Item),
		"from":       strconv.Itoa(int(e.From)),
		"to":         strconv.Itoa(int(e.To)),
	}}
}

// AssetRemoved captures a record leaving a tier bucket.
type AssetRemoved struct {
	Collection [20]byte
	Item       *big.Int
	Tier       uint8
	Reason     string
}

// EventType implements the Event interface.
func (AssetRemoved) EventType() string { return TypeAssetRemoved }

// Event renders the wire representation.
func (e AssetRemoved) Event() *types.Event {
	return &types.Event{Type: TypeAssetRemoved, Attributes: map[string]string{
		"collection": addrHex(e.Collection),
		"item":       bigString(e.Item),
		"tier":       strconv.Itoa(int(e.Tier)),
		"reason":     e.Reason,
	}}
}

// CustodyDrift reports a tracked asset the vault no longer holds.
type CustodyDrift struct {
	Collection [20]byte
	Item       *big.Int
	Tier       uint8
}

// EventType implements the Event interface.
func (CustodyDrift) EventType() string { return TypeCustodyDrift }

// Event renders the wire representation.
func (e CustodyDrift) Event() *types.Event {
	return &types.Event{Type: TypeCustodyDrift, Attributes: map[string]string{
		"collection": addrHex(e.Collection),
		"item":       bigString(e.Item),
		"tier":       strconv.Itoa(int(e.Tier)),
	}}
}
