// Package pool runs the per-user reservation lifecycle: payment capture and a
// randomness request at initiation, rarity binding when the oracle delivers,
// and batched fulfillment that falls back from each draw's rarity tier to the
// highest stocked tier below it.
package pool

import (
	"errors"
	"fmt"
	"time"

	"github.com/holiman/uint256"

	"lootpool/core/events"
	nativecommon "lootpool/native/common"
	"lootpool/native/payments"
	"lootpool/native/rarity"
	"lootpool/native/registry"
)

const (
	moduleName = "pool"
	// RoleAdmin may refund reservations.
	RoleAdmin = "ROLE_POOL_ADMIN"
)

var (
	ErrInvalidQuantity   = errors.New("pool: quantity must be between 1 and 8")
	ErrReservationExists = errors.New("pool: reservation already exists")
	ErrNoReservation     = errors.New("pool: no reservation")
	ErrNotReady          = errors.New("pool: randomness not delivered")
	ErrStockout          = errors.New("pool: no stock at or below target tier")
	ErrZeroSeed          = errors.New("pool: zero seed")
	ErrAlreadySeeded     = errors.New("pool: reservation already seeded")
	ErrUnauthorized      = errors.New("pool: unauthorized")
	errNilState          = errors.New("pool: state not configured")
	errNilCollaborators  = errors.New("pool: collaborators not configured")
)

type engineState interface {
	PoolReservationGet(user [20]byte) (*Reservation, bool, error)
	PoolReservationPut(res *Reservation) error
	PoolReservationDelete(user [20]byte) error
	PoolRequestIndexGet(id [32]byte) ([20]byte, bool, error)
	PoolRequestIndexPut(id [32]byte, user [20]byte) error
	PoolRequestIndexDelete(id [32]byte) error
	HasRole(role string, addr []byte) bool
}

// Registry is the tiered asset store draws are dispensed from.
type Registry interface {
	HighestActiveAtOrBelow(tier uint8) (uint8, bool, error)
	DispenseNext(caller [20]byte, tier uint8, recipient [20]byte) (*registry.Record, bool, error)
}

// Randomness issues oracle requests on behalf of the pool.
type Randomness interface {
	Request(requester [20]byte) ([32]byte, error)
}

// Payments captures, settles and refunds draw payments.
type Payments interface {
	Capture(caller, user [20]byte, quantity uint8, proof *payments.Proof) (*payments.Receipt, error)
	Settle(caller [20]byte, receipt *payments.Receipt, draws uint8) error
	Refund(caller, user [20]byte, receipt *payments.Receipt, undrawn uint8) error
}

// Engine coordinates reservations. It acts towards its collaborators under
// its module address.
type Engine struct {
	state      engineState
	registry   Registry
	randomness Randomness
	payments   Payments
	emitter    events.Emitter
	pauses     nativecommon.PauseView
	self       [20]byte
	nowFn      func() int64
	guard      nativecommon.ReentrancyGuard
}

// NewEngine constructs a pool engine with a no-op emitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		self:    nativecommon.ModuleAddress(moduleName),
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetRegistry wires the asset registry.
func (e *Engine) SetRegistry(r Registry) { e.registry = r }

// SetRandomness wires the randomness client.
func (e *Engine) SetRandomness(r Randomness) { e.randomness = r }

// SetPayments wires the payment processor.
func (e *Engine) SetPayments(p Payments) { e.payments = p }

// SetPauses wires the pause view consulted before mutations.
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// Address returns the identity the pool uses towards its collaborators.
func (e *Engine) Address() [20]byte { return e.self }

// SetNowFunc overrides the time source used for reservation timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) now() uint64 {
	if e.nowFn == nil {
		return uint64(time.Now().Unix())
	}
	return uint64(e.nowFn())
}

func (e *Engine) enter() (func(), error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.registry == nil || e.randomness == nil || e.payments == nil {
		return nil, errNilCollaborators
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	return e.guard.Enter()
}

// Initiate captures payment for quantity draws, requests randomness and opens
// the user's reservation.
func (e *Engine) Initiate(user [20]byte, quantity uint8, proof *payments.Proof) (*Reservation, error) {
	release, err := e.enter()
	if err != nil {
		return nil, err
	}
	defer release()
	if quantity == 0 || quantity > rarity.MaxDraws {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidQuantity, quantity)
	}
	if _, ok, err := e.state.PoolReservationGet(user); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrReservationExists
	}
	receipt, err := e.payments.Capture(e.self, user, quantity, proof)
	if err != nil {
		return nil, err
	}
	id, err := e.randomness.Request(e.self)
	if err != nil {
		return nil, err
	}
	res := &Reservation{
		User:      user,
		Quantity:  quantity,
		RequestID: id,
		Rail:      receipt.Rail,
		PerDraw:   receipt.PerDraw,
		Symbol:    receipt.Symbol,
		CreatedAt: e.now(),
	}
	if err := e.state.PoolReservationPut(res); err != nil {
		return nil, err
	}
	if err := e.state.PoolRequestIndexPut(id, user); err != nil {
		return nil, err
	}
	e.emit(events.ReservationCreated{User: user, Quantity: quantity, RequestID: id, Rail: receipt.Rail, PerDraw: res.Receipt().PerDraw})
	return res.Clone(), nil
}

// OnRandomness binds a delivered seed to the reservation that requested it and
// caches the per-draw rarity tiers. Values for requests whose reservation is
// gone are dropped.
func (e *Engine) OnRandomness(id [32]byte, value *uint256.Int) error {
	release, err := e.enter()
	if err != nil {
		return err
	}
	defer release()
	if value == nil || value.IsZero() {
		return ErrZeroSeed
	}
	user, ok, err := e.state.PoolRequestIndexGet(id)
	if err != nil {
		return err
	}
	if !ok {
		e.emit(events.RandomnessDropped{RequestID: id})
		return nil
	}
	if err := e.state.PoolRequestIndexDelete(id); err != nil {
		return err
	}
	res, ok, err := e.state.PoolReservationGet(user)
	if err != nil {
		return err
	}
	if !ok || res.RequestID != id {
		e.emit(events.RandomnessDropped{RequestID: id})
		return nil
	}
	if res.Seeded() {
		return ErrAlreadySeeded
	}
	tiers, err := rarity.Levels(value, int(res.Quantity))
	if err != nil {
		return err
	}
	res.Seed = value.Bytes32()
	res.Tiers = tiers
	if err := e.state.PoolReservationPut(res); err != nil {
		return err
	}
	e.emit(events.ReservationSeeded{User: user, RequestID: id, Tiers: append([]uint8(nil), tiers[:res.Quantity]...)})
	return nil
}

// Fulfill dispenses up to maxToDraw of the user's remaining draws in order.
// Each draw takes the highest stocked tier at or below its rarity tier. If
// any draw finds no stock the call fails and the caller must discard every
// effect of it.
func (e *Engine) Fulfill(user [20]byte, maxToDraw uint8) ([]Draw, error) {
	release, err := e.enter()
	if err != nil {
		return nil, err
	}
	defer release()
	res, ok, err := e.state.PoolReservationGet(user)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoReservation
	}
	if !res.Seeded() {
		return nil, ErrNotReady
	}
	k := res.Remaining()
	if maxToDraw < k {
		k = maxToDraw
	}
	if k == 0 {
		return nil, nil
	}
	draws := make([]Draw, 0, k)
	for i := uint8(0); i < k; i++ {
		index := res.DrawsOccurred + i
		draw, err := e.drawOne(user, index, res.Tiers[index])
		if err != nil {
			return nil, err
		}
		draws = append(draws, draw)
	}
	res.DrawsOccurred += k
	if err := e.payments.Settle(e.self, res.Receipt(), k); err != nil {
		return nil, err
	}
	if res.DrawsOccurred == res.Quantity {
		if err := e.state.PoolReservationDelete(user); err != nil {
			return nil, err
		}
		e.emit(events.ReservationCleared{User: user, Quantity: res.Quantity})
		return draws, nil
	}
	if err := e.state.PoolReservationPut(res); err != nil {
		return nil, err
	}
	return draws, nil
}

// drawOne resolves a single draw. A record found to have drifted out of
// custody is cleared by the registry and the search is repeated.
func (e *Engine) drawOne(user [20]byte, index, target uint8) (Draw, error) {
	for {
		tier, ok, err := e.registry.HighestActiveAtOrBelow(target)
		if err != nil {
			return Draw{}, err
		}
		if !ok {
			return Draw{}, fmt.Errorf("%w: draw %d targets tier %d", ErrStockout, index, target)
		}
		rec, delivered, err := e.registry.DispenseNext(e.self, tier, user)
		if err != nil {
			return Draw{}, err
		}
		if !delivered {
			continue
		}
		e.emit(events.DrawDispensed{User: user, Collection: rec.Collection, Item: rec.Item, Tier: tier, TargetTier: target, DrawIndex: index})
		return Draw{Index: index, TargetTier: target, Tier: tier, Collection: rec.Collection, Item: rec.Item}, nil
	}
}

// Refund returns the undrawn share of a reservation to its user and deletes
// it, whatever state it is in.
func (e *Engine) Refund(caller, user [20]byte) (uint8, error) {
	release, err := e.enter()
	if err != nil {
		return 0, err
	}
	defer release()
	if !e.state.HasRole(RoleAdmin, caller[:]) {
		return 0, ErrUnauthorized
	}
	res, ok, err := e.state.PoolReservationGet(user)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrNoReservation
	}
	undrawn := res.Remaining()
	if err := e.payments.Refund(e.self, user, res.Receipt(), undrawn); err != nil {
		return 0, err
	}
	if err := e.state.PoolReservationDelete(user); err != nil {
		return 0, err
	}
	if err := e.state.PoolRequestIndexDelete(res.RequestID); err != nil {
		return 0, err
	}
	e.emit(events.ReservationRefunded{User: user, Undrawn: undrawn, Rail: res.Rail})
	return undrawn, nil
}

// Reservation returns the user's live reservation.
func (e *Engine) Reservation(user [20]byte) (*Reservation, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	return e.state.PoolReservationGet(user)
}

// Status reports the user's reservation state.
func (e *Engine) Status(user [20]byte) (Status, error) {
	res, ok, err := e.Reservation(user)
	if err != nil {
		return StatusNone, err
	}
	switch {
	case !ok:
		return StatusNone, nil
	case !res.Seeded():
		return StatusPendingRandom, nil
	default:
		return StatusCanFulfill, nil
	}
}
