// Package bank moves symbol-keyed fungible balances between accounts. It backs
// the randomness fee token and the draw token used by the token payment rail.
package bank

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"lootpool/core/events"
	nativecommon "lootpool/native/common"
)

const (
	moduleName = "bank"
	// RoleMinter may create new supply of any registered token.
	RoleMinter = "ROLE_BANK_MINTER"
)

var (
	ErrUnknownToken        = errors.New("bank: token not registered")
	ErrInvalidAmount       = errors.New("bank: invalid amount")
	ErrInsufficientBalance = errors.New("bank: insufficient balance")
	ErrUnauthorized        = errors.New("bank: unauthorized")
	errNilState            = errors.New("bank: state not configured")
)

type engineState interface {
	TokenExists(symbol string) bool
	Balance(addr []byte, symbol string) (*big.Int, error)
	SetBalance(addr []byte, symbol string, amount *big.Int) error
	HasRole(role string, addr []byte) bool
}

// Engine applies balance movements against the configured state.
type Engine struct {
	state   engineState
	emitter events.Emitter
	pauses  nativecommon.PauseView
}

// NewEngine constructs a bank engine with a no-op emitter.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetPauses wires the pause view consulted before transfers.
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

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Balance returns the holder's balance of symbol.
func (e *Engine) Balance(addr [20]byte, symbol string) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	normalized := normalizeSymbol(symbol)
	if !e.state.TokenExists(normalized) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownToken, normalized)
	}
	return e.state.Balance(addr[:], normalized)
}

// Transfer moves amount of symbol from one account to another. A zero amount or
// a self transfer leaves balances untouched.
func (e *Engine) Transfer(from, to [20]byte, symbol string, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	normalized := normalizeSymbol(symbol)
	if !e.state.TokenExists(normalized) {
		return fmt.Errorf("%w: %s", ErrUnknownToken, normalized)
	}
	if amount.Sign() == 0 || from == to {
		return nil
	}
	fromBal, err := e.state.Balance(from[:], normalized)
	if err != nil {
		return err
	}
	if fromBal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, fromBal, amount)
	}
	toBal, err := e.state.Balance(to[:], normalized)
	if err != nil {
		return err
	}
	if err := e.state.SetBalance(from[:], normalized, new(big.Int).Sub(fromBal, amount)); err != nil {
		return err
	}
	if err := e.state.SetBalance(to[:], normalized, new(big.Int).Add(toBal, amount)); err != nil {
		return err
	}
	e.emit(events.TokenTransfer{Symbol: normalized, From: from, To: to, Amount: new(big.Int).Set(amount)})
	return nil
}

// Mint credits new supply to an account. The caller must hold RoleMinter.
func (e *Engine) Mint(caller, to [20]byte, symbol string, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if !e.state.HasRole(RoleMinter, caller[:]) {
		return ErrUnauthorized
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	normalized := normalizeSymbol(symbol)
	if !e.state.TokenExists(normalized) {
		return fmt.Errorf("%w: %s", ErrUnknownToken, normalized)
	}
	bal, err := e.state.Balance(to[:], normalized)
	if err != nil {
		return err
	}
	if err := e.state.SetBalance(to[:], normalized, new(big.Int).Add(bal, amount)); err != nil {
		return err
	}
	e.emit(events.TokenTransfer{Symbol: normalized, To: to, Amount: new(big.Int).Set(amount)})
	return nil
}
