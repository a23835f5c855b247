package events

import (
	"math/big"

	"lootpool/core/types"
)

const (
	// TypeRandomnessRequested is emitted when a consumer asks the oracle for a
	// random value. Off-chain oracles watch for this event.
	TypeRandomnessRequested = "randomness.requested"
	// TypeRandomnessFulfilled is emitted once the oracle value was delivered.
	TypeRandomnessFulfilled = "randomness.fulfilled"
	// TypeRandomnessReferenceDeleted is emitted when an administrator purges a
	// pending request.
	TypeRandomnessReferenceDeleted = "randomness.reference.deleted"
	// TypeRandomnessParamsUpdated is emitted when the fee, key hash or oracle
	// identity changes.
	TypeRandomnessParamsUpdated = "randomness.params.updated"
)

// RandomnessRequested captures an outstanding oracle request.
type RandomnessRequested struct {
	RequestID [32]byte
	Requester [20]byte
	KeyHash   [32]byte
	Fee       *big.Int
}

// EventType implements the Event interface.
func (RandomnessRequested) EventType() string { return TypeRandomnessRequested }

// Event renders the wire representation.
func (e RandomnessRequested) Event() *types.Event {
	return &types.Event{Type: TypeRandomnessRequested, Attributes: map[string]string{
		"requestId": hashHex(e.RequestID),
		"requester": addrHex(e.Requester),
		"keyHash":   hashHex(e.KeyHash),
		"fee":       bigString(e.Fee),
	}}
}

// RandomnessFulfilled captures a delivered oracle value.
type RandomnessFulfilled struct {
	RequestID [32]byte
	Requester [20]byte
}

// EventType implements the Event interface.
func (RandomnessFulfilled) EventType() string { return TypeRandomnessFulfilled }

// Event renders the wire representation.
func (e RandomnessFulfilled) Event() *types.Event {
	return &types.Event{Type: TypeRandomnessFulfilled, Attributes: map[string]string{
		"requestId": hashHex(e.RequestID),
		"requester": addrHex(e.Requester),
	}}
}

// RandomnessReferenceDeleted captures an administrative purge.
type RandomnessReferenceDeleted struct {
	RequestID [32]byte
}

// EventType implements the Event interface.
func (RandomnessReferenceDeleted) EventType() string { return TypeRandomnessReferenceDeleted }

// Event renders the wire representation.
func (e RandomnessReferenceDeleted) Event() *types.Event {
	return &types.Event{Type: TypeRandomnessReferenceDeleted, Attributes: map[string]string{
		"requestId": hashHex(e.RequestID),
	}}
}

// RandomnessParamsUpdated captures a configuration change.
type RandomnessParamsUpdated struct {
	Fee     *big.Int
	KeyHash [32]byte
	Oracle  [20]byte
}

// EventType implements the Event interface.
func (RandomnessParamsUpdated) EventType() string { return TypeRandomnessParamsUpdated }

// Event renders the wire representation.
func (e RandomnessParamsUpdated) Event() *types.Event {
	return &types.Event{Type: TypeRandomnessParamsUpdated, Attributes: map[string]string{
		"fee":     bigString(e.Fee),
		"keyHash": hashHex(e.KeyHash),
		"oracle":  addrHex(e.Oracle),
	}}
}
