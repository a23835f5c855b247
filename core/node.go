// Package core wires the native engines into a single serialized node. Every
// operation runs against a fresh state overlay that is committed in one batch
// on success and discarded on failure, and the events it produced are
// published only after the commit.
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"lootpool/core/events"
	"lootpool/core/state"
	"lootpool/native/bank"
	"lootpool/native/credits"
	"lootpool/native/custody"
	"lootpool/native/payments"
	"lootpool/native/pool"
	"lootpool/native/randomness"
	"lootpool/native/registry"
	"lootpool/observability/metrics"
	"lootpool/storage"
)

// RoleGovernor may pause modules and grant roles.
const RoleGovernor = "ROLE_GOVERNOR"

var (
	ErrUnauthorized = errors.New("core: unauthorized")
	ErrNilDatabase  = errors.New("core: database must not be nil")
)

// Option customises a node at construction.
type Option func(*Node)

// WithLogger sets the node logger.
func WithLogger(logger *slog.Logger) Option {
	return func(n *Node) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// WithMetrics sets the metrics sink. The node subscribes it to committed
// events.
func WithMetrics(m *metrics.PoolMetrics) Option {
	return func(n *Node) { n.metrics = m }
}

// WithTracer sets the tracer used to wrap each operation in a span.
func WithTracer(t trace.Tracer) Option {
	return func(n *Node) {
		if t != nil {
			n.tracer = t
		}
	}
}

// WithClock overrides the node clock used for reservation timestamps.
func WithClock(now func() time.Time) Option {
	return func(n *Node) {
		if now != nil {
			n.now = now
		}
	}
}

// Node serializes access to the pool's state.
type Node struct {
	mu      sync.Mutex
	db      storage.Database
	fanout  *events.Fanout
	logger  *slog.Logger
	metrics *metrics.PoolMetrics
	tracer  trace.Tracer
	now     func() time.Time

	bank       *bank.Engine
	custody    *custody.Engine
	registry   *registry.Engine
	randomness *randomness.Engine
	credits    *credits.Engine
	payments   *payments.Engine
	pool       *pool.Engine
}

// NewNode constructs a node over db and wires the engines to one another.
func NewNode(db storage.Database, opts ...Option) (*Node, error) {
	if db == nil {
		return nil, ErrNilDatabase
	}
	n := &Node{
		db:         db,
		fanout:     events.NewFanout(),
		logger:     slog.Default(),
		tracer:     noop.NewTracerProvider().Tracer("lootpool"),
		now:        time.Now,
		bank:       bank.NewEngine(),
		custody:    custody.NewEngine(),
		registry:   registry.NewEngine(),
		randomness: randomness.NewEngine(),
		credits:    credits.NewEngine(),
		payments:   payments.NewEngine(),
		pool:       pool.NewEngine(),
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.metrics != nil {
		n.fanout.Subscribe(n.metrics)
	}

	n.registry.SetCustody(n.custody)
	n.custody.RegisterReceiver(n.registry.Vault(), n.registry)
	n.randomness.SetFunds(n.bank)
	n.randomness.RegisterConsumer(n.pool.Address(), n.pool)
	n.payments.SetCredits(n.credits)
	n.payments.SetFunds(n.bank)
	n.pool.SetRegistry(n.registry)
	n.pool.SetRandomness(n.randomness)
	n.pool.SetPayments(n.payments)
	n.pool.SetNowFunc(func() int64 { return n.now().Unix() })
	return n, nil
}

// Subscribe registers an emitter for committed events. Subscribers run while
// the node lock is held and must not call back into the node synchronously.
func (n *Node) Subscribe(sub events.Emitter) { n.fanout.Subscribe(sub) }

// PoolAddress is the identity of the reservation engine.
func (n *Node) PoolAddress() [20]byte { return n.pool.Address() }

// VaultAddress is the custody account backing tracked assets.
func (n *Node) VaultAddress() [20]byte { return n.registry.Vault() }

// PaymentsVault receives token-rail payments.
func (n *Node) PaymentsVault() [20]byte { return n.payments.Vault() }

// RandomnessVault pays oracle fees.
func (n *Node) RandomnessVault() [20]byte { return n.randomness.Vault() }

func (n *Node) bind(st *state.Manager, emitter events.Emitter) {
	n.bank.SetState(st)
	n.bank.SetPauses(st)
	n.bank.SetEmitter(emitter)
	n.custody.SetState(st)
	n.custody.SetPauses(st)
	n.custody.SetEmitter(emitter)
	n.registry.SetState(st)
	n.registry.SetPauses(st)
	n.registry.SetEmitter(emitter)
	n.randomness.SetState(st)
	n.randomness.SetPauses(st)
	n.randomness.SetEmitter(emitter)
	n.credits.SetState(st)
	n.credits.SetPauses(st)
	n.credits.SetEmitter(emitter)
	n.payments.SetState(st)
	n.payments.SetPauses(st)
	n.payments.SetEmitter(emitter)
	n.pool.SetState(st)
	n.pool.SetPauses(st)
	n.pool.SetEmitter(emitter)
}

// execute runs fn as one atomic operation.
func (n *Node) execute(ctx context.Context, op string, fn func(st *state.Manager) error) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	_, span := n.tracer.Start(ctx, "node."+op, trace.WithAttributes(attribute.String("lootpool.op", op)))
	started := time.Now()
	defer func() {
		n.metrics.ObserveCall(op, err, time.Since(started))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	n.mu.Lock()
	defer n.mu.Unlock()

	st := state.NewManager(n.db)
	var buf events.Buffer
	n.bind(st, &buf)
	if err = fn(st); err != nil {
		st.Discard()
		if errors.Is(err, pool.ErrStockout) {
			n.metrics.RecordStockout()
		}
		n.logger.Debug("operation reverted", "op", op, "error", err)
		return err
	}
	pending := st.Pending()
	if err = st.Commit(); err != nil {
		n.logger.Error("commit failed", "op", op, "error", err)
		return fmt.Errorf("core: %s: %w", op, err)
	}
	published := len(buf.Events())
	buf.Flush(n.fanout)
	n.logger.Debug("operation committed", "op", op, "writes", pending, "events", published)
	return nil
}

// view runs fn against an overlay that is always discarded. Views share the
// engines with execute and therefore take the same lock.
func (n *Node) view(fn func(st *state.Manager) error) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	st := state.NewManager(n.db)
	defer st.Discard()
	n.bind(st, events.NoopEmitter{})
	return fn(st)
}
