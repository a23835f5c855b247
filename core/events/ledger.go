package events

import (
	"math/big"
	"strconv"

	"lootpool/core/types"
)

const (
	// TypeCustodyTransfer is emitted for every custody movement of pool assets.
	TypeCustodyTransfer = "custody.transfer"
	// TypeCreditsMinted is emitted when credits are issued.
	TypeCreditsMinted = "credits.minted"
	// TypeCreditsSpent is emitted when credits are burned to pay for draws.
	TypeCreditsSpent = "credits.spent"
	// TypeCreditsTransferred is emitted for holder to holder credit movements.
	TypeCreditsTransferred = "credits.transferred"
	// TypeTokenTransfer is emitted for fungible balance movements.
	TypeTokenTransfer = "bank.transfer"
	// TypePaymentCaptured is emitted when a draw payment is accepted.
	TypePaymentCaptured = "payments.captured"
	// TypePaymentRefunded is emitted when an undrawn share is returned.
	TypePaymentRefunded = "payments.refunded"
	// TypePaymentSettled is emitted when drawn fees reach the fee recipient.
	TypePaymentSettled = "payments.settled"
	// TypeParamsUpdated is emitted when an administrative setter changes a
	// module parameter.
	TypeParamsUpdated = "params.updated"
)

// CustodyTransfer captures a custody movement.
type CustodyTransfer struct {
	Operator   [20]byte
	From       [20]byte
	To         [20]byte
	Collection [20]byte
	Items      []*big.Int
	Amounts    []uint64
}

// EventType implements the Event interface.
func (CustodyTransfer) EventType() string { return TypeCustodyTransfer }

// Event renders the wire representation.
func (e CustodyTransfer) Event() *types.Event {
	return &types.Event{Type: TypeCustodyTransfer, Attributes: map[string]string{
		"operator":   addrHex(e.Operator),
		"from":       addrHex(e.From),
		"to":         addrHex(e.To),
		"collection": addrHex(e.Collection),
		"items":      joinBig(e.Items),
		"amounts":    joinUint(e.Amounts),
	}}
}

// CreditsMinted captures credit issuance.
type CreditsMinted struct {
	To      [20]byte
	TokenID uint64
	Amount  uint64
}

// EventType implements the Event interface.
func (CreditsMinted) EventType() string { return TypeCreditsMinted }

// Event renders the wire representation.
func (e CreditsMinted) Event() *types.Event {
	return &types.Event{Type: TypeCreditsMinted, Attributes: map[string]string{
		"to":      addrHex(e.To),
		"tokenId": uintString(e.TokenID),
		"amount":  uintString(e.Amount),
	}}
}

// CreditsSpent captures a threshold spend.
type CreditsSpent struct {
	User     [20]byte
	Quantity uint64
	TokenIDs []uint64
	Amounts  []uint64
}

// EventType implements the Event interface.
func (CreditsSpent) EventType() string { return TypeCreditsSpent }

// Event renders the wire representation.
func (e CreditsSpent) Event() *types.Event {
	return &types.Event{Type: TypeCreditsSpent, Attributes: map[string]string{
		"user":     addrHex(e.User),
		"quantity": uintString(e.Quantity),
		"tokenIds": joinUint(e.TokenIDs),
		"amounts":  joinUint(e.Amounts),
	}}
}

// CreditsTransferred captures a holder to holder movement.
type CreditsTransferred struct {
	Operator [20]byte
	From     [20]byte
	To       [20]byte
	TokenIDs []uint64
	Amounts  []uint64
}

// EventType implements the Event interface.
func (CreditsTransferred) EventType() string { return TypeCreditsTransferred }

// Event renders the wire representation.
func (e CreditsTransferred) Event() *types.Event {
	return &types.Event{Type: TypeCreditsTransferred, Attributes: map[string]string{
		"operator": addrHex(e.Operator),
		"from":     addrHex(e.From),
		"to":       addrHex(e.To),
		"tokenIds": joinUint(e.TokenIDs),
		"amounts":  joinUint(e.Amounts),
	}}
}

// TokenTransfer captures a fungible balance movement.
type TokenTransfer struct {
	Symbol string
	From   [20]byte
	To     [20]byte
	Amount *big.Int
}

// EventType implements the Event interface.
func (TokenTransfer) EventType() string { return TypeTokenTransfer }

// Event renders the wire representation.
func (e TokenTransfer) Event() *types.Event {
	return &types.Event{Type: TypeTokenTransfer, Attributes: map[string]string{
		"symbol": e.Symbol,
		"from":   addrHex(e.From),
		"to":     addrHex(e.To),
		"amount": bigString(e.Amount),
	}}
}

// PaymentCaptured captures an accepted draw payment.
type PaymentCaptured struct {
	User     [20]byte
	Rail     string
	Quantity uint8
	Amount   *big.Int
}

// EventType implements the Event interface.
func (PaymentCaptured) EventType() string { return TypePaymentCaptured }

// Event renders the wire representation.
func (e PaymentCaptured) Event() *types.Event {
	return &types.Event{Type: TypePaymentCaptured, Attributes: map[string]string{
		"user":     addrHex(e.User),
		"rail":     e.Rail,
		"quantity": strconv.Itoa(int(e.Quantity)),
		"amount":   bigString(e.Amount),
	}}
}

// PaymentRefunded captures a returned undrawn share.
type PaymentRefunded struct {
	User    [20]byte
	Rail    string
	Undrawn uint8
	Amount  *big.Int
}

// EventType implements the Event interface.
func (PaymentRefunded) EventType() string { return TypePaymentRefunded }

// Event renders the wire representation.
func (e PaymentRefunded) Event() *types.Event {
	return &types.Event{Type: TypePaymentRefunded, Attributes: map[string]string{
		"user":    addrHex(e.User),
		"rail":    e.Rail,
		"undrawn": strconv.Itoa(int(e.Undrawn)),
		"amount":  bigString(e.Amount),
	}}
}

// PaymentSettled captures fees forwarded to the fee recipient.
type PaymentSettled struct {
	Recipient [20]byte
	Draws     uint8
	Amount    *big.Int
}

// EventType implements the Event interface.
func (PaymentSettled) EventType() string { return TypePaymentSettled }

// Event renders the wire representation.
func (e PaymentSettled) Event() *types.Event {
	return &types.Event{Type: TypePaymentSettled, Attributes: map[string]string{
		"recipient": addrHex(e.Recipient),
		"draws":     strconv.Itoa(int(e.Draws)),
		"amount":    bigString(e.Amount),
	}}
}

// ParamsUpdated captures an administrative parameter change.
type ParamsUpdated struct {
	Module string
	Field  string
	Value  string
}

// EventType implements the Event interface.
func (ParamsUpdated) EventType() string { return TypeParamsUpdated }

// Event renders the wire representation.
func (e ParamsUpdated) Event() *types.Event {
	return &types.Event{Type: TypeParamsUpdated, Attributes: map[string]string{
		"module": e.Module,
		"field":  e.Field,
		"value":  e.Value,
	}}
}
