// Package randomness tracks outstanding oracle requests. A request debits the
// configured fee from the client's vault and is answered at most once by the
// trusted oracle, whose value is forwarded to the requesting consumer.
package randomness

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"lootpool/core/events"
	nativecommon "lootpool/native/common"
)

const (
	moduleName = "randomness"
	// RoleAdmin updates parameters and purges stale requests.
	RoleAdmin = "ROLE_RANDOMNESS_ADMIN"
)

var (
	ErrInsufficientFee    = errors.New("randomness: insufficient fee balance")
	ErrUnauthorizedOracle = errors.New("randomness: caller is not the oracle")
	ErrUnknownRequest     = errors.New("randomness: unknown request")
	ErrUnknownConsumer    = errors.New("randomness: requester is not a registered consumer")
	ErrUnauthorized       = errors.New("randomness: unauthorized")
	ErrInvalidFee         = errors.New("randomness: invalid fee")
	errNilState           = errors.New("randomness: state not configured")
	errNilFunds           = errors.New("randomness: funds not configured")
)

// Request is an outstanding oracle request.
type Request struct {
	ID        [32]byte
	Requester [20]byte
	KeyHash   [32]byte
	Nonce     uint64
	Fee       *big.Int
}

// Params configures the fee and oracle identity applied to new requests.
type Params struct {
	Fee      *big.Int
	FeeToken string
	KeyHash  [32]byte
	Oracle   [20]byte
	Nonce    uint64
}

// Clone returns a deep copy of the params.
func (p *Params) Clone() *Params {
	if p == nil {
		return &Params{Fee: big.NewInt(0)}
	}
	clone := *p
	clone.Fee = cloneBig(p.Fee)
	return &clone
}

// Consumer receives delivered random values.
type Consumer interface {
	OnRandomness(id [32]byte, value *uint256.Int) error
}

// Funds moves fee-token balances.
type Funds interface {
	Balance(addr [20]byte, symbol string) (*big.Int, error)
	Transfer(from, to [20]byte, symbol string, amount *big.Int) error
}

type engineState interface {
	RandomnessRequestGet(id [32]byte) (*Request, bool, error)
	RandomnessRequestPut(req *Request) error
	RandomnessRequestDelete(id [32]byte) error
	RandomnessParamsGet() (*Params, error)
	RandomnessParamsPut(p *Params) error
	HasRole(role string, addr []byte) bool
}

// Engine issues and resolves randomness requests.
type Engine struct {
	state     engineState
	funds     Funds
	emitter   events.Emitter
	pauses    nativecommon.PauseView
	vault     [20]byte
	consumers map[[20]byte]Consumer
	guard     nativecommon.ReentrancyGuard
}

// NewEngine constructs a client whose fee vault is the module address.
func NewEngine() *Engine {
	return &Engine{
		emitter:   events.NoopEmitter{},
		vault:     nativecommon.ModuleAddress(moduleName),
		consumers: make(map[[20]byte]Consumer),
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetFunds wires the ledger that holds the fee token.
func (e *Engine) SetFunds(f Funds) { e.funds = f }

// SetPauses wires the pause view consulted before mutations.
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// Vault returns the account funding oracle fees.
func (e *Engine) Vault() [20]byte { return e.vault }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// RegisterConsumer allows addr to request randomness and routes deliveries
// for its requests to c.
func (e *Engine) RegisterConsumer(addr [20]byte, c Consumer) {
	if c == nil {
		delete(e.consumers, addr)
		return
	}
	e.consumers[addr] = c
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

// RequestID derives the identifier of the nonce-th request of requester.
func RequestID(keyHash [32]byte, requester [20]byte, nonce uint64) [32]byte {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], nonce)
	var id [32]byte
	copy(id[:], ethcrypto.Keccak256(keyHash[:], requester[:], n[:]))
	return id
}

// Params returns the current configuration.
func (e *Engine) Params() (*Params, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	p, err := e.state.RandomnessParamsGet()
	if err != nil {
		return nil, err
	}
	return p.Clone(), nil
}

// Pending returns an outstanding request.
func (e *Engine) Pending(id [32]byte) (*Request, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	return e.state.RandomnessRequestGet(id)
}

// Request pays the oracle fee from the vault and records a new request for
// requester.
func (e *Engine) Request(requester [20]byte) ([32]byte, error) {
	release, err := e.enter()
	if err != nil {
		return [32]byte{}, err
	}
	defer release()
	if e.funds == nil {
		return [32]byte{}, errNilFunds
	}
	if _, ok := e.consumers[requester]; !ok {
		return [32]byte{}, ErrUnknownConsumer
	}
	params, err := e.state.RandomnessParamsGet()
	if err != nil {
		return [32]byte{}, err
	}
	fee := cloneBig(params.Fee)
	if fee.Sign() > 0 {
		bal, err := e.funds.Balance(e.vault, params.FeeToken)
		if err != nil {
			return [32]byte{}, err
		}
		if bal.Cmp(fee) < 0 {
			return [32]byte{}, fmt.Errorf("%w: have %s, need %s", ErrInsufficientFee, bal, fee)
		}
		if err := e.funds.Transfer(e.vault, params.Oracle, params.FeeToken, fee); err != nil {
			return [32]byte{}, err
		}
	}
	req := &Request{
		ID:        RequestID(params.KeyHash, requester, params.Nonce),
		Requester: requester,
		KeyHash:   params.KeyHash,
		Nonce:     params.Nonce,
		Fee:       fee,
	}
	params.Nonce++
	if err := e.state.RandomnessParamsPut(params); err != nil {
		return [32]byte{}, err
	}
	if err := e.state.RandomnessRequestPut(req); err != nil {
		return [32]byte{}, err
	}
	e.emit(events.RandomnessRequested{RequestID: req.ID, Requester: requester, KeyHash: req.KeyHash, Fee: cloneBig(fee)})
	return req.ID, nil
}

// Fulfill delivers the oracle's value for id. The request is consumed before
// the consumer runs; a consumer error fails the whole delivery.
func (e *Engine) Fulfill(caller [20]byte, id [32]byte, value *uint256.Int) error {
	release, err := e.enter()
	if err != nil {
		return err
	}
	defer release()
	params, err := e.state.RandomnessParamsGet()
	if err != nil {
		return err
	}
	if caller != params.Oracle {
		return ErrUnauthorizedOracle
	}
	req, ok, err := e.state.RandomnessRequestGet(id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnknownRequest
	}
	if err := e.state.RandomnessRequestDelete(id); err != nil {
		return err
	}
	consumer, ok := e.consumers[req.Requester]
	if !ok {
		return ErrUnknownConsumer
	}
	if value == nil {
		value = new(uint256.Int)
	}
	e.emit(events.RandomnessFulfilled{RequestID: id, Requester: req.Requester})
	return consumer.OnRandomness(id, new(uint256.Int).Set(value))
}

// DeleteReference purges a pending request without delivering a value.
func (e *Engine) DeleteReference(caller [20]byte, id [32]byte) error {
	release, err := e.enter()
	if err != nil {
		return err
	}
	defer release()
	if !e.state.HasRole(RoleAdmin, caller[:]) {
		return ErrUnauthorized
	}
	if _, ok, err := e.state.RandomnessRequestGet(id); err != nil {
		return err
	} else if !ok {
		return ErrUnknownRequest
	}
	if err := e.state.RandomnessRequestDelete(id); err != nil {
		return err
	}
	e.emit(events.RandomnessReferenceDeleted{RequestID: id})
	return nil
}

// SetFee changes the fee charged for later requests.
func (e *Engine) SetFee(caller [20]byte, fee *big.Int) error {
	if fee == nil || fee.Sign() < 0 {
		return ErrInvalidFee
	}
	return e.update(caller, func(p *Params) { p.Fee = cloneBig(fee) })
}

// SetKeyHash changes the oracle key parameter for later requests.
func (e *Engine) SetKeyHash(caller [20]byte, keyHash [32]byte) error {
	return e.update(caller, func(p *Params) { p.KeyHash = keyHash })
}

// SetOracle changes the identity allowed to deliver values.
func (e *Engine) SetOracle(caller [20]byte, oracle [20]byte) error {
	return e.update(caller, func(p *Params) { p.Oracle = oracle })
}

func (e *Engine) update(caller [20]byte, apply func(*Params)) error {
	release, err := e.enter()
	if err != nil {
		return err
	}
	defer release()
	if !e.state.HasRole(RoleAdmin, caller[:]) {
		return ErrUnauthorized
	}
	params, err := e.state.RandomnessParamsGet()
	if err != nil {
		return err
	}
	apply(params)
	if err := e.state.RandomnessParamsPut(params); err != nil {
		return err
	}
	e.emit(events.RandomnessParamsUpdated{Fee: cloneBig(params.Fee), KeyHash: params.KeyHash, Oracle: params.Oracle})
	return nil
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
