// Package payments captures draw payments on the credits or token rail and
// later settles drawn fees or refunds the undrawn share on the same rail.
package payments

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"lootpool/core/events"
	nativecommon "lootpool/native/common"
)

const (
	moduleName = "payments"
	// RoleAdmin changes the draw fee and fee recipient.
	RoleAdmin = "ROLE_PAYMENTS_ADMIN"
	// RoleProcessor may capture, settle and refund payments.
	RoleProcessor = "ROLE_PAYMENTS_PROCESSOR"
)

var (
	ErrUnauthorized   = errors.New("payments: unauthorized")
	ErrInvalidProof   = errors.New("payments: proof must name exactly one rail")
	ErrBadSignature   = errors.New("payments: signature does not match user")
	ErrWrongRecipient = errors.New("payments: transfer recipient is not the vault")
	ErrWrongAmount    = errors.New("payments: transfer amount does not match draw fee")
	ErrBadNonce       = errors.New("payments: unexpected nonce")
	ErrUnknownRail    = errors.New("payments: unknown rail")
	ErrInvalidFee     = errors.New("payments: invalid draw fee")
	errNilState       = errors.New("payments: state not configured")
	errNilLedgers     = errors.New("payments: ledgers not configured")
)

type engineState interface {
	PaymentsParamsGet() (*Params, error)
	PaymentsParamsPut(p *Params) error
	PaymentsNonceGet(user [20]byte) (uint64, error)
	PaymentsNoncePut(user [20]byte, nonce uint64) error
	HasRole(role string, addr []byte) bool
}

// Credits is the spend-token ledger used by the credits rail.
type Credits interface {
	Threshold() (uint64, error)
	Spend(caller, user [20]byte, quantity uint64, ids, amounts []uint64) error
	Mint(caller, to [20]byte, id, amount uint64) error
}

// Funds moves draw-token balances.
type Funds interface {
	Transfer(from, to [20]byte, symbol string, amount *big.Int) error
}

// Engine processes payments for draw reservations.
type Engine struct {
	state   engineState
	credits Credits
	funds   Funds
	emitter events.Emitter
	pauses  nativecommon.PauseView
	vault   [20]byte
	guard   nativecommon.ReentrancyGuard
}

// NewEngine constructs a processor whose vault is the module address.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		vault:   nativecommon.ModuleAddress(moduleName),
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetCredits wires the credits ledger.
func (e *Engine) SetCredits(c Credits) { e.credits = c }

// SetFunds wires the draw-token ledger.
func (e *Engine) SetFunds(f Funds) { e.funds = f }

// SetPauses wires the pause view consulted before mutations.
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// Vault returns the account holding captured token payments. It also acts as
// the processor's identity towards the credits ledger.
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

func (e *Engine) enter(role string, caller [20]byte) (func(), error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.credits == nil || e.funds == nil {
		return nil, errNilLedgers
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if !e.state.HasRole(role, caller[:]) {
		return nil, ErrUnauthorized
	}
	return e.guard.Enter()
}

// Params returns the token rail configuration.
func (e *Engine) Params() (*Params, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	p, err := e.state.PaymentsParamsGet()
	if err != nil {
		return nil, err
	}
	return p.Clone(), nil
}

// Nonce returns the nonce the user's next token proof must carry.
func (e *Engine) Nonce(user [20]byte) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	return e.state.PaymentsNonceGet(user)
}

// Capture validates proof and collects payment for quantity draws.
func (e *Engine) Capture(caller, user [20]byte, quantity uint8, proof *Proof) (*Receipt, error) {
	release, err := e.enter(RoleProcessor, caller)
	if err != nil {
		return nil, err
	}
	defer release()
	if proof == nil || (proof.Credits == nil) == (proof.Token == nil) {
		return nil, ErrInvalidProof
	}
	if proof.Credits != nil {
		if err := e.credits.Spend(e.vault, user, uint64(quantity), proof.Credits.IDs, proof.Credits.Amounts); err != nil {
			return nil, err
		}
		e.emit(events.PaymentCaptured{User: user, Rail: RailCredits, Quantity: quantity, Amount: big.NewInt(0)})
		return &Receipt{Rail: RailCredits, Quantity: quantity, PerDraw: big.NewInt(0)}, nil
	}
	return e.captureToken(user, quantity, proof.Token)
}

func (e *Engine) captureToken(user [20]byte, quantity uint8, proof *TokenProof) (*Receipt, error) {
	params, err := e.state.PaymentsParamsGet()
	if err != nil {
		return nil, err
	}
	amount := cloneBig(proof.Amount)
	signer, err := recoverSigner(TransferDigest(user, proof.Recipient, amount, proof.Nonce), proof.Signature)
	if err != nil {
		return nil, err
	}
	if signer != user {
		return nil, ErrBadSignature
	}
	if proof.Recipient != e.vault {
		return nil, ErrWrongRecipient
	}
	expected := new(big.Int).Mul(cloneBig(params.DrawFee), big.NewInt(int64(quantity)))
	if amount.Cmp(expected) != 0 {
		return nil, fmt.Errorf("%w: got %s, want %s", ErrWrongAmount, amount, expected)
	}
	nonce, err := e.state.PaymentsNonceGet(user)
	if err != nil {
		return nil, err
	}
	if proof.Nonce != nonce {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrBadNonce, proof.Nonce, nonce)
	}
	symbol := strings.ToUpper(strings.TrimSpace(params.DrawToken))
	if err := e.funds.Transfer(user, e.vault, symbol, amount); err != nil {
		return nil, err
	}
	if err := e.state.PaymentsNoncePut(user, nonce+1); err != nil {
		return nil, err
	}
	e.emit(events.PaymentCaptured{User: user, Rail: RailToken, Quantity: quantity, Amount: cloneBig(amount)})
	return &Receipt{Rail: RailToken, Quantity: quantity, PerDraw: cloneBig(params.DrawFee), Symbol: symbol}, nil
}

// Settle forwards the fees of completed draws to the fee recipient. Credits
// rail payments were burned at capture and need no settlement.
func (e *Engine) Settle(caller [20]byte, receipt *Receipt, draws uint8) error {
	release, err := e.enter(RoleProcessor, caller)
	if err != nil {
		return err
	}
	defer release()
	if receipt == nil || draws == 0 {
		return nil
	}
	switch receipt.Rail {
	case RailCredits:
		return nil
	case RailToken:
	default:
		return ErrUnknownRail
	}
	params, err := e.state.PaymentsParamsGet()
	if err != nil {
		return err
	}
	amount := new(big.Int).Mul(cloneBig(receipt.PerDraw), big.NewInt(int64(draws)))
	if amount.Sign() == 0 || nativecommon.IsZeroAddress(params.FeeRecipient) {
		return nil
	}
	if err := e.funds.Transfer(e.vault, params.FeeRecipient, receipt.Symbol, amount); err != nil {
		return err
	}
	e.emit(events.PaymentSettled{Recipient: params.FeeRecipient, Draws: draws, Amount: amount})
	return nil
}

// Refund returns the share of undrawn draws to the user on the rail they paid
// with. Credits come back as threshold-valued tokens.
func (e *Engine) Refund(caller, user [20]byte, receipt *Receipt, undrawn uint8) error {
	release, err := e.enter(RoleProcessor, caller)
	if err != nil {
		return err
	}
	defer release()
	if receipt == nil || undrawn == 0 {
		return nil
	}
	amount := new(big.Int)
	switch receipt.Rail {
	case RailCredits:
		threshold, err := e.credits.Threshold()
		if err != nil {
			return err
		}
		if err := e.credits.Mint(e.vault, user, threshold, uint64(undrawn)); err != nil {
			return err
		}
		amount.SetUint64(threshold * uint64(undrawn))
	case RailToken:
		amount.Mul(cloneBig(receipt.PerDraw), big.NewInt(int64(undrawn)))
		if amount.Sign() > 0 {
			if err := e.funds.Transfer(e.vault, user, receipt.Symbol, amount); err != nil {
				return err
			}
		}
	default:
		return ErrUnknownRail
	}
	e.emit(events.PaymentRefunded{User: user, Rail: receipt.Rail, Undrawn: undrawn, Amount: amount})
	return nil
}

// SetDrawFee changes the per-draw price on the token rail.
func (e *Engine) SetDrawFee(caller [20]byte, fee *big.Int) error {
	if fee == nil || fee.Sign() < 0 {
		return ErrInvalidFee
	}
	return e.update(caller, "drawFee", fee.String(), func(p *Params) { p.DrawFee = cloneBig(fee) })
}

// SetFeeRecipient changes the account receiving settled fees.
func (e *Engine) SetFeeRecipient(caller [20]byte, recipient [20]byte) error {
	return e.update(caller, "feeRecipient", common.Address(recipient).Hex(), func(p *Params) { p.FeeRecipient = recipient })
}

func (e *Engine) update(caller [20]byte, field, value string, apply func(*Params)) error {
	release, err := e.enter(RoleAdmin, caller)
	if err != nil {
		return err
	}
	defer release()
	params, err := e.state.PaymentsParamsGet()
	if err != nil {
		return err
	}
	params = params.Clone()
	apply(params)
	if err := e.state.PaymentsParamsPut(params); err != nil {
		return err
	}
	e.emit(events.ParamsUpdated{Module: moduleName, Field: field, Value: value})
	return nil
}
