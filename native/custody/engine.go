// Package custody keeps ownership of the pool's assets: unique items with a
// single owner and quantified items with per-holder balances. Inbound
// transfers to accounts with a registered Receiver must be acknowledged.
package custody

import (
	"errors"
	"fmt"
	"math/big"

	"lootpool/core/events"
	nativecommon "lootpool/native/common"
)

const (
	moduleName = "custody"
	// RoleAdmin registers collections and mints items.
	RoleAdmin = "ROLE_CUSTODY_ADMIN"
)

var (
	ErrUnauthorized        = errors.New("custody: unauthorized")
	ErrUnknownCollection   = errors.New("custody: collection not registered")
	ErrCollectionExists    = errors.New("custody: collection already registered")
	ErrInvalidKind         = errors.New("custody: invalid kind")
	ErrWrongKind           = errors.New("custody: operation does not match collection kind")
	ErrItemExists          = errors.New("custody: item already minted")
	ErrUnknownItem         = errors.New("custody: item not minted")
	ErrNotOwner            = errors.New("custody: sender does not own item")
	ErrInsufficientBalance = errors.New("custody: insufficient balance")
	ErrInvalidAmount       = errors.New("custody: invalid amount")
	ErrZeroRecipient       = errors.New("custody: recipient must not be zero")
	ErrLengthMismatch      = errors.New("custody: items and amounts length mismatch")
	ErrNotApproved         = errors.New("custody: operator not approved")
	errNilState            = errors.New("custody: state not configured")
)

type engineState interface {
	CustodyCollectionGet(addr [20]byte) (*Collection, bool, error)
	CustodyCollectionPut(c *Collection) error
	CustodyOwnerGet(key [32]byte) ([20]byte, bool, error)
	CustodyOwnerPut(key [32]byte, owner [20]byte) error
	CustodyHoldingGet(key [32]byte, holder [20]byte) (uint64, error)
	CustodyHoldingPut(key [32]byte, holder [20]byte, amount uint64) error
	CustodyApprovalGet(holder, operator [20]byte) (bool, error)
	CustodyApprovalPut(holder, operator [20]byte, approved bool) error
	HasRole(role string, addr []byte) bool
}

// Engine applies custody movements and dispatches receiver acknowledgments.
type Engine struct {
	state     engineState
	emitter   events.Emitter
	pauses    nativecommon.PauseView
	receivers map[[20]byte]Receiver
	guard     nativecommon.ReentrancyGuard
}

// NewEngine constructs a custody engine with a no-op emitter.
func NewEngine() *Engine {
	return &Engine{
		emitter:   events.NoopEmitter{},
		receivers: make(map[[20]byte]Receiver),
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetPauses wires the pause view consulted before mutations.
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// RegisterReceiver installs the acknowledgment hook for addr. Passing nil
// removes it.
func (e *Engine) RegisterReceiver(addr [20]byte, r Receiver) {
	if r == nil {
		delete(e.receivers, addr)
		return
	}
	e.receivers[addr] = r
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) enter() (func(), error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	return e.guard.Enter()
}

func (e *Engine) collection(addr [20]byte) (*Collection, error) {
	col, ok, err := e.state.CustodyCollectionGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUnknownCollection
	}
	return col, nil
}

// RegisterCollection records a new collection and its kind.
func (e *Engine) RegisterCollection(caller [20]byte, col *Collection) error {
	release, err := e.enter()
	if err != nil {
		return err
	}
	defer release()
	if !e.state.HasRole(RoleAdmin, caller[:]) {
		return ErrUnauthorized
	}
	if col == nil || !col.Kind.Valid() {
		return ErrInvalidKind
	}
	if nativecommon.IsZeroAddress(col.Address) {
		return fmt.Errorf("custody: collection address must not be zero")
	}
	if _, ok, err := e.state.CustodyCollectionGet(col.Address); err != nil {
		return err
	} else if ok {
		return ErrCollectionExists
	}
	stored := *col
	return e.state.CustodyCollectionPut(&stored)
}

// Collection returns the registered collection metadata.
func (e *Engine) Collection(addr [20]byte) (*Collection, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.collection(addr)
}

// Kind returns the kind of a registered collection.
func (e *Engine) Kind(collection [20]byte) (Kind, error) {
	col, err := e.Collection(collection)
	if err != nil {
		return KindUnknown, err
	}
	return col.Kind, nil
}

// OwnerOf returns the owner of a unique item.
func (e *Engine) OwnerOf(collection [20]byte, item *big.Int) ([20]byte, error) {
	if e == nil || e.state == nil {
		return [20]byte{}, errNilState
	}
	owner, ok, err := e.state.CustodyOwnerGet(AssetKey(collection, item))
	if err != nil {
		return [20]byte{}, err
	}
	if !ok {
		return [20]byte{}, ErrUnknownItem
	}
	return owner, nil
}

// BalanceOf reports how many units of an item the holder owns. Unique items
// report 1 for their owner and 0 otherwise.
func (e *Engine) BalanceOf(holder, collection [20]byte, item *big.Int) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	col, err := e.collection(collection)
	if err != nil {
		return 0, err
	}
	key := AssetKey(collection, item)
	if col.Kind == KindUnique {
		owner, ok, err := e.state.CustodyOwnerGet(key)
		if err != nil {
			return 0, err
		}
		if ok && owner == holder {
			return 1, nil
		}
		return 0, nil
	}
	return e.state.CustodyHoldingGet(key, holder)
}

// IsApprovedForAll reports whether operator may move holder's assets.
func (e *Engine) IsApprovedForAll(holder, operator [20]byte) (bool, error) {
	if e == nil || e.state == nil {
		return false, errNilState
	}
	return e.state.CustodyApprovalGet(holder, operator)
}

// SetApprovalForAll grants or revokes operator rights over holder's assets.
func (e *Engine) SetApprovalForAll(holder, operator [20]byte, approved bool) error {
	release, err := e.enter()
	if err != nil {
		return err
	}
	defer release()
	if holder == operator {
		return fmt.Errorf("custody: cannot approve self")
	}
	return e.state.CustodyApprovalPut(holder, operator, approved)
}

func (e *Engine) authorize(operator, from [20]byte) error {
	if operator == from {
		return nil
	}
	ok, err := e.state.CustodyApprovalGet(from, operator)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotApproved
	}
	return nil
}

// MintUnique creates a unique item owned by to.
func (e *Engine) MintUnique(caller, to, collection [20]byte, item *big.Int) error {
	release, err := e.enter()
	if err != nil {
		return err
	}
	defer release()
	if !e.state.HasRole(RoleAdmin, caller[:]) {
		return ErrUnauthorized
	}
	if nativecommon.IsZeroAddress(to) {
		return ErrZeroRecipient
	}
	col, err := e.collection(collection)
	if err != nil {
		return err
	}
	if col.Kind != KindUnique {
		return ErrWrongKind
	}
	key := AssetKey(collection, item)
	if _, ok, err := e.state.CustodyOwnerGet(key); err != nil {
		return err
	} else if ok {
		return ErrItemExists
	}
	if err := e.state.CustodyOwnerPut(key, to); err != nil {
		return err
	}
	e.emit(events.CustodyTransfer{Operator: caller, To: to, Collection: collection, Items: []*big.Int{cloneBig(item)}, Amounts: []uint64{1}})
	return e.notifyUnique(caller, [20]byte{}, to, collection, item)
}

// MintQuantified credits amount units of an item to to.
func (e *Engine) MintQuantified(caller, to, collection [20]byte, item *big.Int, amount uint64) error {
	release, err := e.enter()
	if err != nil {
		return err
	}
	defer release()
	if !e.state.HasRole(RoleAdmin, caller[:]) {
		return ErrUnauthorized
	}
	if nativecommon.IsZeroAddress(to) {
		return ErrZeroRecipient
	}
	if amount == 0 {
		return ErrInvalidAmount
	}
	col, err := e.collection(collection)
	if err != nil {
		return err
	}
	if col.Kind != KindQuantified {
		return ErrWrongKind
	}
	key := AssetKey(collection, item)
	bal, err := e.state.CustodyHoldingGet(key, to)
	if err != nil {
		return err
	}
	if bal+amount < bal {
		return ErrInvalidAmount
	}
	if err := e.state.CustodyHoldingPut(key, to, bal+amount); err != nil {
		return err
	}
	items := []*big.Int{cloneBig(item)}
	amounts := []uint64{amount}
	e.emit(events.CustodyTransfer{Operator: caller, To: to, Collection: collection, Items: items, Amounts: amounts})
	return e.notifyBatch(caller, [20]byte{}, to, collection, items, amounts)
}

// Transfer moves amount units of any item. Unique items require amount 1.
func (e *Engine) Transfer(operator, from, to, collection [20]byte, item *big.Int, amount uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	kind, err := e.Kind(collection)
	if err != nil {
		return err
	}
	if kind == KindUnique {
		if amount != 1 {
			return ErrInvalidAmount
		}
		return e.TransferUnique(operator, from, to, collection, item)
	}
	return e.TransferQuantified(operator, from, to, collection, item, amount)
}

// TransferUnique hands a unique item from its owner to a new owner.
func (e *Engine) TransferUnique(operator, from, to, collection [20]byte, item *big.Int) error {
	release, err := e.enter()
	if err != nil {
		return err
	}
	defer release()
	if nativecommon.IsZeroAddress(to) {
		return ErrZeroRecipient
	}
	col, err := e.collection(collection)
	if err != nil {
		return err
	}
	if col.Kind != KindUnique {
		return ErrWrongKind
	}
	if err := e.authorize(operator, from); err != nil {
		return err
	}
	key := AssetKey(collection, item)
	owner, ok, err := e.state.CustodyOwnerGet(key)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnknownItem
	}
	if owner != from {
		return ErrNotOwner
	}
	if err := e.state.CustodyOwnerPut(key, to); err != nil {
		return err
	}
	e.emit(events.CustodyTransfer{Operator: operator, From: from, To: to, Collection: collection, Items: []*big.Int{cloneBig(item)}, Amounts: []uint64{1}})
	return e.notifyUnique(operator, from, to, collection, item)
}

// TransferQuantified moves amount units of a single quantified item.
func (e *Engine) TransferQuantified(operator, from, to, collection [20]byte, item *big.Int, amount uint64) error {
	return e.TransferBatch(operator, from, to, collection, []*big.Int{item}, []uint64{amount})
}

// TransferBatch moves several quantified items of one collection at once.
func (e *Engine) TransferBatch(operator, from, to, collection [20]byte, items []*big.Int, amounts []uint64) error {
	release, err := e.enter()
	if err != nil {
		return err
	}
	defer release()
	if len(items) != len(amounts) || len(items) == 0 {
		return ErrLengthMismatch
	}
	if nativecommon.IsZeroAddress(to) {
		return ErrZeroRecipient
	}
	col, err := e.collection(collection)
	if err != nil {
		return err
	}
	if col.Kind != KindQuantified {
		return ErrWrongKind
	}
	if err := e.authorize(operator, from); err != nil {
		return err
	}
	for i, item := range items {
		amount := amounts[i]
		if amount == 0 {
			return ErrInvalidAmount
		}
		if from == to {
			continue
		}
		key := AssetKey(collection, item)
		fromBal, err := e.state.CustodyHoldingGet(key, from)
		if err != nil {
			return err
		}
		if fromBal < amount {
			return fmt.Errorf("%w: item %s has %d, need %d", ErrInsufficientBalance, cloneBig(item), fromBal, amount)
		}
		toBal, err := e.state.CustodyHoldingGet(key, to)
		if err != nil {
			return err
		}
		if err := e.state.CustodyHoldingPut(key, from, fromBal-amount); err != nil {
			return err
		}
		if err := e.state.CustodyHoldingPut(key, to, toBal+amount); err != nil {
			return err
		}
	}
	cloned := make([]*big.Int, len(items))
	for i := range items {
		cloned[i] = cloneBig(items[i])
	}
	sent := append([]uint64(nil), amounts...)
	e.emit(events.CustodyTransfer{Operator: operator, From: from, To: to, Collection: collection, Items: cloned, Amounts: sent})
	return e.notifyBatch(operator, from, to, collection, cloned, sent)
}

func (e *Engine) notifyUnique(operator, from, to, collection [20]byte, item *big.Int) error {
	r, ok := e.receivers[to]
	if !ok {
		return nil
	}
	if err := r.OnUniqueReceived(operator, from, collection, cloneBig(item)); err != nil {
		return fmt.Errorf("custody: receiver rejected transfer: %w", err)
	}
	return nil
}

func (e *Engine) notifyBatch(operator, from, to, collection [20]byte, items []*big.Int, amounts []uint64) error {
	r, ok := e.receivers[to]
	if !ok {
		return nil
	}
	if err := r.OnBatchReceived(operator, from, collection, items, amounts); err != nil {
		return fmt.Errorf("custody: receiver rejected transfer: %w", err)
	}
	return nil
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
