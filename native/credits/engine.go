// Package credits is a multi-token spend ledger. Token ids are the divisors
// of a threshold T and a token with id d is worth d credits; spending for q
// draws burns a basket worth at least T*q.
package credits

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"lootpool/core/events"
	nativecommon "lootpool/native/common"
)

const (
	moduleName = "credits"
	// DefaultThreshold is the credit value of one draw.
	DefaultThreshold uint64 = 12

	RoleAdmin   = "ROLE_CREDITS_ADMIN"
	RoleMinter  = "ROLE_CREDITS_MINTER"
	RoleSpender = "ROLE_CREDITS_SPENDER"
)

var (
	ErrUnauthorized        = errors.New("credits: unauthorized")
	ErrTokenNotAllowed     = errors.New("credits: token id not allowed")
	ErrUneven              = errors.New("credits: ids and amounts length mismatch")
	ErrInsufficientCredits = errors.New("credits: basket below threshold")
	ErrBurnExceedsBalance  = errors.New("credits: burn amount exceeds balance")
	ErrInsufficientBalance = errors.New("credits: insufficient balance")
	ErrInvalidAmount       = errors.New("credits: invalid amount")
	ErrNotApproved         = errors.New("credits: operator not approved")
	errNilState            = errors.New("credits: state not configured")
)

// Params holds ledger metadata.
type Params struct {
	Threshold   uint64
	URI         string
	ContractURI string
}

type engineState interface {
	CreditsBalanceGet(holder [20]byte, id uint64) (uint64, error)
	CreditsBalancePut(holder [20]byte, id uint64, amount uint64) error
	CreditsApprovalGet(holder, operator [20]byte) (bool, error)
	CreditsApprovalPut(holder, operator [20]byte, approved bool) error
	CreditsParamsGet() (*Params, error)
	CreditsParamsPut(p *Params) error
	HasRole(role string, addr []byte) bool
}

// Engine applies credit mints, transfers and spends.
type Engine struct {
	state   engineState
	emitter events.Emitter
	pauses  nativecommon.PauseView
	guard   nativecommon.ReentrancyGuard
}

// NewEngine constructs a credits engine with a no-op emitter.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
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

func (e *Engine) params() (*Params, error) {
	p, err := e.state.CreditsParamsGet()
	if err != nil {
		return nil, err
	}
	if p == nil {
		p = &Params{}
	}
	if p.Threshold == 0 {
		p.Threshold = DefaultThreshold
	}
	return p, nil
}

// Threshold returns the credit value of one draw.
func (e *Engine) Threshold() (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	p, err := e.params()
	if err != nil {
		return 0, err
	}
	return p.Threshold, nil
}

// AllowedIDs lists the token ids of a threshold in ascending order.
func AllowedIDs(threshold uint64) []uint64 {
	var ids []uint64
	for d := uint64(1); d <= threshold; d++ {
		if threshold%d == 0 {
			ids = append(ids, d)
		}
	}
	return ids
}

func allowed(threshold, id uint64) bool {
	return id > 0 && id <= threshold && threshold%id == 0
}

// Balance returns the holder's balance of token id.
func (e *Engine) Balance(holder [20]byte, id uint64) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	return e.state.CreditsBalanceGet(holder, id)
}

// BalanceOfBatch returns balances for pairwise holders and ids.
func (e *Engine) BalanceOfBatch(holders [][20]byte, ids []uint64) ([]uint64, error) {
	if len(holders) != len(ids) {
		return nil, ErrUneven
	}
	out := make([]uint64, len(ids))
	for i := range ids {
		bal, err := e.Balance(holders[i], ids[i])
		if err != nil {
			return nil, err
		}
		out[i] = bal
	}
	return out, nil
}

// Balances returns the holder's balance of every allowed id, keyed by id.
func (e *Engine) Balances(holder [20]byte) (map[uint64]uint64, error) {
	threshold, err := e.Threshold()
	if err != nil {
		return nil, err
	}
	out := make(map[uint64]uint64)
	for _, id := range AllowedIDs(threshold) {
		bal, err := e.state.CreditsBalanceGet(holder, id)
		if err != nil {
			return nil, err
		}
		out[id] = bal
	}
	return out, nil
}

// Mint issues amount tokens of id to to.
func (e *Engine) Mint(caller, to [20]byte, id, amount uint64) error {
	release, err := e.enter()
	if err != nil {
		return err
	}
	defer release()
	if !e.state.HasRole(RoleMinter, caller[:]) {
		return ErrUnauthorized
	}
	if amount == 0 {
		return ErrInvalidAmount
	}
	p, err := e.params()
	if err != nil {
		return err
	}
	if !allowed(p.Threshold, id) {
		return fmt.Errorf("%w: %d", ErrTokenNotAllowed, id)
	}
	bal, err := e.state.CreditsBalanceGet(to, id)
	if err != nil {
		return err
	}
	if bal+amount < bal {
		return ErrInvalidAmount
	}
	if err := e.state.CreditsBalancePut(to, id, bal+amount); err != nil {
		return err
	}
	e.emit(events.CreditsMinted{To: to, TokenID: id, Amount: amount})
	return nil
}

// Spend burns a basket from user worth at least Threshold*quantity credits.
// Overpayment is burned as well.
func (e *Engine) Spend(caller, user [20]byte, quantity uint64, ids, amounts []uint64) error {
	release, err := e.enter()
	if err != nil {
		return err
	}
	defer release()
	if !e.state.HasRole(RoleSpender, caller[:]) {
		return ErrUnauthorized
	}
	if len(ids) != len(amounts) {
		return ErrUneven
	}
	p, err := e.params()
	if err != nil {
		return err
	}
	total := new(big.Int)
	for i, id := range ids {
		if !allowed(p.Threshold, id) {
			return fmt.Errorf("%w: %d", ErrTokenNotAllowed, id)
		}
		total.Add(total, new(big.Int).Mul(new(big.Int).SetUint64(id), new(big.Int).SetUint64(amounts[i])))
	}
	need := new(big.Int).Mul(new(big.Int).SetUint64(p.Threshold), new(big.Int).SetUint64(quantity))
	if total.Cmp(need) < 0 {
		return fmt.Errorf("%w: basket %s, need %s", ErrInsufficientCredits, total, need)
	}
	if err := e.burn(user, ids, amounts); err != nil {
		return err
	}
	e.emit(events.CreditsSpent{User: user, Quantity: quantity, TokenIDs: append([]uint64(nil), ids...), Amounts: append([]uint64(nil), amounts...)})
	return nil
}

func (e *Engine) burn(user [20]byte, ids, amounts []uint64) error {
	pending := make(map[uint64]uint64)
	for i, id := range ids {
		bal, ok := pending[id]
		if !ok {
			var err error
			bal, err = e.state.CreditsBalanceGet(user, id)
			if err != nil {
				return err
			}
		}
		if bal < amounts[i] {
			return fmt.Errorf("%w: id %d has %d, burning %d", ErrBurnExceedsBalance, id, bal, amounts[i])
		}
		pending[id] = bal - amounts[i]
	}
	for _, id := range ids {
		if err := e.state.CreditsBalancePut(user, id, pending[id]); err != nil {
			return err
		}
	}
	return nil
}

// Transfer moves amount tokens of id between holders.
func (e *Engine) Transfer(operator, from, to [20]byte, id, amount uint64) error {
	return e.TransferBatch(operator, from, to, []uint64{id}, []uint64{amount})
}

// TransferBatch moves several token ids between holders.
func (e *Engine) TransferBatch(operator, from, to [20]byte, ids, amounts []uint64) error {
	release, err := e.enter()
	if err != nil {
		return err
	}
	defer release()
	if len(ids) != len(amounts) {
		return ErrUneven
	}
	if nativecommon.IsZeroAddress(to) {
		return fmt.Errorf("credits: recipient must not be zero")
	}
	if operator != from {
		ok, err := e.state.CreditsApprovalGet(from, operator)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotApproved
		}
	}
	for i, id := range ids {
		if from == to {
			continue
		}
		fromBal, err := e.state.CreditsBalanceGet(from, id)
		if err != nil {
			return err
		}
		if fromBal < amounts[i] {
			return fmt.Errorf("%w: id %d has %d, sending %d", ErrInsufficientBalance, id, fromBal, amounts[i])
		}
		toBal, err := e.state.CreditsBalanceGet(to, id)
		if err != nil {
			return err
		}
		if err := e.state.CreditsBalancePut(from, id, fromBal-amounts[i]); err != nil {
			return err
		}
		if err := e.state.CreditsBalancePut(to, id, toBal+amounts[i]); err != nil {
			return err
		}
	}
	e.emit(events.CreditsTransferred{Operator: operator, From: from, To: to, TokenIDs: append([]uint64(nil), ids...), Amounts: append([]uint64(nil), amounts...)})
	return nil
}

// SetApprovalForAll grants or revokes operator rights over holder's credits.
func (e *Engine) SetApprovalForAll(holder, operator [20]byte, approved bool) error {
	release, err := e.enter()
	if err != nil {
		return err
	}
	defer release()
	if holder == operator {
		return fmt.Errorf("credits: cannot approve self")
	}
	return e.state.CreditsApprovalPut(holder, operator, approved)
}

// URI returns the metadata location of token id. A "{id}" placeholder in the
// configured URI is replaced with the decimal id.
func (e *Engine) URI(id uint64) (string, error) {
	if e == nil || e.state == nil {
		return "", errNilState
	}
	p, err := e.params()
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(p.URI, "{id}", strconv.FormatUint(id, 10)), nil
}

// ContractURI returns the collection-level metadata location.
func (e *Engine) ContractURI() (string, error) {
	if e == nil || e.state == nil {
		return "", errNilState
	}
	p, err := e.params()
	if err != nil {
		return "", err
	}
	return p.ContractURI, nil
}

// SetURI changes the token metadata template.
func (e *Engine) SetURI(caller [20]byte, uri string) error {
	return e.update(caller, "uri", uri, func(p *Params) { p.URI = uri })
}

// SetContractURI changes the collection metadata location.
func (e *Engine) SetContractURI(caller [20]byte, uri string) error {
	return e.update(caller, "contractUri", uri, func(p *Params) { p.ContractURI = uri })
}

func (e *Engine) update(caller [20]byte, field, value string, apply func(*Params)) error {
	release, err := e.enter()
	if err != nil {
		return err
	}
	defer release()
	if !e.state.HasRole(RoleAdmin, caller[:]) {
		return ErrUnauthorized
	}
	p, err := e.params()
	if err != nil {
		return err
	}
	apply(p)
	if err := e.state.CreditsParamsPut(p); err != nil {
		return err
	}
	e.emit(events.ParamsUpdated{Module: moduleName, Field: field, Value: value})
	return nil
}
