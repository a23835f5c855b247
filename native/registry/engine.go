// Package registry tracks custody-held assets in 33 tier buckets. Buckets
// support O(1) insertion and swap-removal, a per-tier round-robin cursor for
// dispensing, and a bitmap of non-empty tiers for fallback search.
package registry

import (
	"errors"
	"fmt"
	"math/big"
	"math/bits"

	"lootpool/core/events"
	nativecommon "lootpool/native/common"
	"lootpool/native/custody"
)

const (
	moduleName = "registry"
	// RoleAdmin assigns tiers and performs recovery transfers.
	RoleAdmin = "ROLE_REGISTRY_ADMIN"
	// RoleDispenser may hand tracked assets out of the vault.
	RoleDispenser = "ROLE_REGISTRY_DISPENSER"
)

var (
	ErrUnauthorized      = errors.New("registry: unauthorized")
	ErrInvalidTier       = errors.New("registry: tier out of range")
	ErrInvalidQuantity   = errors.New("registry: invalid quantity")
	ErrNotCustodian      = errors.New("registry: vault does not hold the asset")
	ErrAlreadyTracked    = errors.New("registry: asset already tracked")
	ErrNotTracked        = errors.New("registry: asset not tracked")
	ErrInsufficientStock = errors.New("registry: insufficient stock")
	errNilState          = errors.New("registry: state not configured")
	errNilCustody        = errors.New("registry: custody not configured")
	errCorruptBucket     = errors.New("registry: bucket slot missing")
)

type engineState interface {
	RegistryRecordGet(key [32]byte) (*Record, bool, error)
	RegistryRecordPut(rec *Record) error
	RegistryRecordDelete(key [32]byte) error
	RegistryTierGet(tier uint8) (*Tier, error)
	RegistryTierPut(tier uint8, t *Tier) error
	RegistrySlotGet(tier uint8, index uint64) (*Slot, bool, error)
	RegistrySlotPut(tier uint8, index uint64, slot *Slot) error
	RegistrySlotDelete(tier uint8, index uint64) error
	RegistryActiveTiersGet() (uint64, error)
	RegistryActiveTiersPut(bitmap uint64) error
	HasRole(role string, addr []byte) bool
}

// Custody is the subset of the custody ledger the registry relies on.
type Custody interface {
	Kind(collection [20]byte) (custody.Kind, error)
	BalanceOf(holder, collection [20]byte, item *big.Int) (uint64, error)
	Transfer(operator, from, to, collection [20]byte, item *big.Int, amount uint64) error
}

// Engine owns the tier buckets. Every mutating entry point is guarded against
// re-entry.
type Engine struct {
	state   engineState
	custody Custody
	emitter events.Emitter
	pauses  nativecommon.PauseView
	vault   [20]byte
	guard   nativecommon.ReentrancyGuard
}

// NewEngine constructs a registry whose vault is the module address.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		vault:   nativecommon.ModuleAddress(moduleName),
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetCustody wires the custody ledger holding the vault's assets.
func (e *Engine) SetCustody(c Custody) { e.custody = c }

// SetPauses wires the pause view consulted before mutations.
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// SetVault overrides the account whose custody backs tracked records.
func (e *Engine) SetVault(addr [20]byte) { e.vault = addr }

// Vault returns the custody account of the registry.
func (e *Engine) Vault() [20]byte { return e.vault }

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

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.custody == nil {
		return errNilCustody
	}
	return nil
}

func (e *Engine) enter(role string, caller [20]byte) (func(), error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if role != "" && !e.state.HasRole(role, caller[:]) {
		return nil, ErrUnauthorized
	}
	return e.guard.Enter()
}

func validTier(tier uint8) error {
	if tier > MaxTier {
		return fmt.Errorf("%w: %d", ErrInvalidTier, tier)
	}
	return nil
}

// Track assigns a vault-held asset to a tier. A quantified asset already
// tracked at the same tier is topped up; any other repeat is rejected.
func (e *Engine) Track(caller, collection [20]byte, item *big.Int, quantity uint64, tier uint8) (*Record, error) {
	release, err := e.enter(RoleAdmin, caller)
	if err != nil {
		return nil, err
	}
	defer release()
	if err := validTier(tier); err != nil {
		return nil, err
	}
	if quantity == 0 {
		return nil, ErrInvalidQuantity
	}
	kind, err := e.custody.Kind(collection)
	if err != nil {
		return nil, err
	}
	if kind == custody.KindUnique && quantity != 1 {
		return nil, fmt.Errorf("%w: unique items carry quantity 1", ErrInvalidQuantity)
	}
	held, err := e.custody.BalanceOf(e.vault, collection, item)
	if err != nil {
		return nil, err
	}
	key := custody.AssetKey(collection, item)
	existing, ok, err := e.state.RegistryRecordGet(key)
	if err != nil {
		return nil, err
	}
	if ok {
		if kind == custody.KindUnique || existing.Tier != tier {
			return nil, ErrAlreadyTracked
		}
		total := existing.Quantity + quantity
		if total < existing.Quantity || held < total {
			return nil, fmt.Errorf("%w: holds %d, tracking %d", ErrNotCustodian, held, total)
		}
		existing.Quantity = total
		if err := e.state.RegistryRecordPut(existing); err != nil {
			return nil, err
		}
		e.emit(events.AssetTracked{Collection: collection, Item: cloneBig(item), Kind: uint8(kind), Quantity: total, Tier: tier})
		return existing.Clone(), nil
	}
	if held < quantity {
		return nil, fmt.Errorf("%w: holds %d, tracking %d", ErrNotCustodian, held, quantity)
	}
	rec := &Record{Collection: collection, Item: cloneBig(item), Kind: kind, Quantity: quantity, Tier: tier}
	if err := e.attach(rec); err != nil {
		return nil, err
	}
	e.emit(events.AssetTracked{Collection: collection, Item: cloneBig(item), Kind: uint8(kind), Quantity: quantity, Tier: tier})
	return rec.Clone(), nil
}

// Move reassigns a tracked asset to another tier.
func (e *Engine) Move(caller, collection [20]byte, item *big.Int, tier uint8) error {
	release, err := e.enter(RoleAdmin, caller)
	if err != nil {
		return err
	}
	defer release()
	if err := validTier(tier); err != nil {
		return err
	}
	rec, ok, err := e.state.RegistryRecordGet(custody.AssetKey(collection, item))
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotTracked
	}
	if rec.Tier == tier {
		return nil
	}
	from := rec.Tier
	if err := e.detach(rec); err != nil {
		return err
	}
	rec.Tier = tier
	if err := e.attach(rec); err != nil {
		return err
	}
	e.emit(events.AssetMoved{Collection: collection, Item: cloneBig(item), From: from, To: tier})
	return nil
}

// Remove stops tracking an asset. Untracked assets are ignored.
func (e *Engine) Remove(caller, collection [20]byte, item *big.Int) error {
	return e.removeTracked(caller, collection, item, events.RemovalAdmin)
}

// ForceRemove stops tracking an asset as part of a recovery.
func (e *Engine) ForceRemove(caller, collection [20]byte, item *big.Int) error {
	return e.removeTracked(caller, collection, item, events.RemovalForced)
}

func (e *Engine) removeTracked(caller, collection [20]byte, item *big.Int, reason string) error {
	release, err := e.enter(RoleAdmin, caller)
	if err != nil {
		return err
	}
	defer release()
	rec, ok, err := e.state.RegistryRecordGet(custody.AssetKey(collection, item))
	if err != nil || !ok {
		return err
	}
	return e.remove(rec, reason)
}

// ClearReference removes whatever record occupies a bucket slot.
func (e *Engine) ClearReference(caller [20]byte, tier uint8, index uint64) error {
	release, err := e.enter(RoleAdmin, caller)
	if err != nil {
		return err
	}
	defer release()
	rec, err := e.recordAt(tier, index)
	if err != nil {
		return err
	}
	return e.remove(rec, events.RemovalAdmin)
}

// ForceTransfer sends every vault-held unit of an asset to the recipient and
// clears any tracking for it.
func (e *Engine) ForceTransfer(caller, collection [20]byte, item *big.Int, to [20]byte) (uint64, error) {
	release, err := e.enter(RoleAdmin, caller)
	if err != nil {
		return 0, err
	}
	defer release()
	held, err := e.custody.BalanceOf(e.vault, collection, item)
	if err != nil {
		return 0, err
	}
	rec, tracked, err := e.state.RegistryRecordGet(custody.AssetKey(collection, item))
	if err != nil {
		return 0, err
	}
	if held == 0 && !tracked {
		return 0, ErrNotCustodian
	}
	if tracked {
		if err := e.remove(rec, events.RemovalForced); err != nil {
			return 0, err
		}
	}
	if held > 0 {
		if err := e.custody.Transfer(e.vault, e.vault, to, collection, item, held); err != nil {
			return 0, err
		}
	}
	return held, nil
}

// DispenseFrom hands one unit of the record at index of tier to recipient.
// When the vault no longer holds the asset the record is cleared and
// delivered is false.
func (e *Engine) DispenseFrom(caller [20]byte, tier uint8, index uint64, recipient [20]byte) (*Record, bool, error) {
	release, err := e.enter(RoleDispenser, caller)
	if err != nil {
		return nil, false, err
	}
	defer release()
	rec, err := e.recordAt(tier, index)
	if err != nil {
		return nil, false, err
	}
	return e.dispense(rec, recipient)
}

// DispenseNext dispenses from tier at the position of its round-robin cursor
// and advances the cursor.
func (e *Engine) DispenseNext(caller [20]byte, tier uint8, recipient [20]byte) (*Record, bool, error) {
	release, err := e.enter(RoleDispenser, caller)
	if err != nil {
		return nil, false, err
	}
	defer release()
	if err := validTier(tier); err != nil {
		return nil, false, err
	}
	t, err := e.state.RegistryTierGet(tier)
	if err != nil {
		return nil, false, err
	}
	if t.Length == 0 {
		return nil, false, fmt.Errorf("%w: tier %d is empty", ErrInsufficientStock, tier)
	}
	index := t.Cursor % t.Length
	t.Cursor++
	if err := e.state.RegistryTierPut(tier, t); err != nil {
		return nil, false, err
	}
	rec, err := e.recordAt(tier, index)
	if err != nil {
		return nil, false, err
	}
	return e.dispense(rec, recipient)
}

func (e *Engine) dispense(rec *Record, recipient [20]byte) (*Record, bool, error) {
	held, err := e.custody.BalanceOf(e.vault, rec.Collection, rec.Item)
	if err != nil {
		return nil, false, err
	}
	snapshot := rec.Clone()
	if held == 0 {
		if err := e.remove(rec, events.RemovalDrift); err != nil {
			return nil, false, err
		}
		e.emit(events.CustodyDrift{Collection: rec.Collection, Item: cloneBig(rec.Item), Tier: rec.Tier})
		return snapshot, false, nil
	}
	remaining := rec.Quantity - 1
	if held-1 < remaining {
		remaining = held - 1
	}
	if rec.Kind == custody.KindUnique || remaining == 0 {
		if err := e.remove(rec, events.RemovalDepleted); err != nil {
			return nil, false, err
		}
	} else {
		rec.Quantity = remaining
		if err := e.state.RegistryRecordPut(rec); err != nil {
			return nil, false, err
		}
	}
	if err := e.custody.Transfer(e.vault, e.vault, recipient, rec.Collection, rec.Item, 1); err != nil {
		return nil, false, err
	}
	snapshot.Quantity = 1
	return snapshot, true, nil
}

func (e *Engine) attach(rec *Record) error {
	t, err := e.state.RegistryTierGet(rec.Tier)
	if err != nil {
		return err
	}
	rec.Index = t.Length
	if err := e.state.RegistrySlotPut(rec.Tier, rec.Index, &Slot{Collection: rec.Collection, Item: cloneBig(rec.Item)}); err != nil {
		return err
	}
	if err := e.state.RegistryRecordPut(rec); err != nil {
		return err
	}
	t.Length++
	if err := e.state.RegistryTierPut(rec.Tier, t); err != nil {
		return err
	}
	return e.setActive(rec.Tier, true)
}

// detach swap-removes rec from its bucket: the last slot fills the hole and
// the moved record's index is rewritten.
func (e *Engine) detach(rec *Record) error {
	t, err := e.state.RegistryTierGet(rec.Tier)
	if err != nil {
		return err
	}
	if t.Length == 0 || rec.Index >= t.Length {
		return errCorruptBucket
	}
	last := t.Length - 1
	if rec.Index != last {
		slot, ok, err := e.state.RegistrySlotGet(rec.Tier, last)
		if err != nil {
			return err
		}
		if !ok {
			return errCorruptBucket
		}
		moved, ok, err := e.state.RegistryRecordGet(custody.AssetKey(slot.Collection, slot.Item))
		if err != nil {
			return err
		}
		if !ok {
			return errCorruptBucket
		}
		moved.Index = rec.Index
		if err := e.state.RegistryRecordPut(moved); err != nil {
			return err
		}
		if err := e.state.RegistrySlotPut(rec.Tier, rec.Index, slot); err != nil {
			return err
		}
	}
	if err := e.state.RegistrySlotDelete(rec.Tier, last); err != nil {
		return err
	}
	t.Length = last
	if t.Length == 0 {
		t.Cursor = 0
	}
	if err := e.state.RegistryTierPut(rec.Tier, t); err != nil {
		return err
	}
	if t.Length == 0 {
		return e.setActive(rec.Tier, false)
	}
	return nil
}

func (e *Engine) remove(rec *Record, reason string) error {
	if err := e.detach(rec); err != nil {
		return err
	}
	if err := e.state.RegistryRecordDelete(rec.Key()); err != nil {
		return err
	}
	e.emit(events.AssetRemoved{Collection: rec.Collection, Item: cloneBig(rec.Item), Tier: rec.Tier, Reason: reason})
	return nil
}

func (e *Engine) setActive(tier uint8, active bool) error {
	bitmap, err := e.state.RegistryActiveTiersGet()
	if err != nil {
		return err
	}
	if active {
		bitmap |= 1 << tier
	} else {
		bitmap &^= 1 << tier
	}
	return e.state.RegistryActiveTiersPut(bitmap)
}

func (e *Engine) recordAt(tier uint8, index uint64) (*Record, error) {
	if err := validTier(tier); err != nil {
		return nil, err
	}
	t, err := e.state.RegistryTierGet(tier)
	if err != nil {
		return nil, err
	}
	if index >= t.Length {
		return nil, fmt.Errorf("%w: tier %d has %d items, index %d", ErrInsufficientStock, tier, t.Length, index)
	}
	slot, ok, err := e.state.RegistrySlotGet(tier, index)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errCorruptBucket
	}
	rec, ok, err := e.state.RegistryRecordGet(custody.AssetKey(slot.Collection, slot.Item))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errCorruptBucket
	}
	return rec, nil
}

// Record returns the tracked record of an asset.
func (e *Engine) Record(collection [20]byte, item *big.Int) (*Record, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	return e.state.RegistryRecordGet(custody.AssetKey(collection, item))
}

// RecordAt returns the record occupying a bucket slot.
func (e *Engine) RecordAt(tier uint8, index uint64) (*Record, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.recordAt(tier, index)
}

// CountByTier returns the number of records in a bucket.
func (e *Engine) CountByTier(tier uint8) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	if err := validTier(tier); err != nil {
		return 0, err
	}
	t, err := e.state.RegistryTierGet(tier)
	if err != nil {
		return 0, err
	}
	return t.Length, nil
}

// Records lists the records of a bucket in slot order.
func (e *Engine) Records(tier uint8) ([]*Record, error) {
	count, err := e.CountByTier(tier)
	if err != nil {
		return nil, err
	}
	out := make([]*Record, 0, count)
	for i := uint64(0); i < count; i++ {
		rec, err := e.recordAt(tier, i)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// ActiveTiers returns the bitmap of non-empty buckets.
func (e *Engine) ActiveTiers() (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	return e.state.RegistryActiveTiersGet()
}

// HighestActiveAtOrBelow returns the highest non-empty tier not above tier.
func (e *Engine) HighestActiveAtOrBelow(tier uint8) (uint8, bool, error) {
	if err := validTier(tier); err != nil {
		return 0, false, err
	}
	bitmap, err := e.ActiveTiers()
	if err != nil {
		return 0, false, err
	}
	masked := bitmap & (uint64(1)<<(uint(tier)+1) - 1)
	if masked == 0 {
		return 0, false, nil
	}
	return uint8(63 - bits.LeadingZeros64(masked)), true, nil
}

// OnUniqueReceived acknowledges a unique item arriving in the vault.
func (e *Engine) OnUniqueReceived(operator, from, collection [20]byte, item *big.Int) error {
	release, err := e.enter("", [20]byte{})
	if err != nil {
		return err
	}
	defer release()
	e.emit(events.AssetReceived{Operator: operator, From: from, Collection: collection, Items: []*big.Int{cloneBig(item)}, Amounts: []uint64{1}})
	return nil
}

// OnBatchReceived acknowledges quantified items arriving in the vault.
func (e *Engine) OnBatchReceived(operator, from, collection [20]byte, items []*big.Int, amounts []uint64) error {
	release, err := e.enter("", [20]byte{})
	if err != nil {
		return err
	}
	defer release()
	cloned := make([]*big.Int, len(items))
	for i, item := range items {
		cloned[i] = cloneBig(item)
	}
	e.emit(events.AssetReceived{Operator: operator, From: from, Collection: collection, Items: cloned, Amounts: append([]uint64(nil), amounts...), Batch: true})
	return nil
}
