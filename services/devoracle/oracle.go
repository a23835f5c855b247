// Package devoracle answers randomness requests in process for development
// deployments. Values are derived from a shared secret and are therefore
// predictable to anyone holding it.
package devoracle

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"lootpool/core/events"
	"lootpool/native/randomness"
)

// Submitter delivers oracle values. *core.Node satisfies it.
type Submitter interface {
	SubmitRandomness(ctx context.Context, caller [20]byte, id [32]byte, value *uint256.Int) error
}

// Config configures an Oracle.
type Config struct {
	// Address is the oracle identity the randomness module expects.
	Address [20]byte
	Secret  string
	// Delay postpones each answer.
	Delay time.Duration
	// QueueSize bounds requests waiting for an answer. Defaults to 256.
	QueueSize int
	// Meter receives the request counters. Defaults to the global provider.
	Meter metric.Meter
}

// Oracle subscribes to node events and submits a value for every
// RandomnessRequested it sees.
type Oracle struct {
	submitter Submitter
	cfg       Config
	secret    []byte
	queue     chan [32]byte
	logger    *slog.Logger
	metrics   *oracleMetrics
}

// New builds an oracle. Subscribe it to the node, then call Run.
func New(submitter Submitter, cfg Config, logger *slog.Logger) (*Oracle, error) {
	if submitter == nil {
		return nil, errors.New("devoracle: submitter required")
	}
	if cfg.Secret == "" {
		return nil, errors.New("devoracle: secret required")
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Oracle{
		submitter: submitter,
		cfg:       cfg,
		secret:    []byte(cfg.Secret),
		queue:     make(chan [32]byte, cfg.QueueSize),
		logger:    logger.With(slog.String("component", "devoracle")),
		metrics:   newOracleMetrics(cfg.Meter),
	}, nil
}

// Emit implements events.Emitter. It never blocks: the node publishes while
// holding its lock, so a full queue drops the request and logs it.
func (o *Oracle) Emit(evt events.Event) {
	req, ok := evt.(events.RandomnessRequested)
	if !ok {
		return
	}
	select {
	case o.queue <- req.RequestID:
	default:
		o.metrics.record(outcomeDropped)
		o.logger.Warn("request queue full, dropping", slog.String("request_id", hashHex(req.RequestID)))
	}
}

// Run answers queued requests until ctx is canceled.
func (o *Oracle) Run(ctx context.Context) error {
	o.logger.Info("dev oracle started", slog.String("oracle", common.Address(o.cfg.Address).Hex()), slog.Duration("delay", o.cfg.Delay))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case id := <-o.queue:
			if err := o.answer(ctx, id); err != nil {
				if errors.Is(err, context.Canceled) {
					return err
				}
				o.logger.Warn("fulfillment failed", slog.String("request_id", hashHex(id)), slog.Any("error", err))
			}
		}
	}
}

func (o *Oracle) answer(ctx context.Context, id [32]byte) error {
	if o.cfg.Delay > 0 {
		timer := time.NewTimer(o.cfg.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	err := o.submitter.SubmitRandomness(ctx, o.cfg.Address, id, Value(o.secret, id))
	switch {
	case errors.Is(err, randomness.ErrUnknownRequest):
		// Deleted or already answered.
		o.metrics.record(outcomeStale)
		o.logger.Info("request no longer pending", slog.String("request_id", hashHex(id)))
		return nil
	case err == nil:
		o.metrics.record(outcomeAnswered)
		o.logger.Debug("request fulfilled", slog.String("request_id", hashHex(id)))
	case !errors.Is(err, context.Canceled):
		o.metrics.record(outcomeFailed)
	}
	return err
}

// Value derives the answer for id as keccak256(secret || id). A zero digest
// is replaced by one since the pool rejects zero seeds.
func Value(secret []byte, id [32]byte) *uint256.Int {
	v := new(uint256.Int).SetBytes(ethcrypto.Keccak256(secret, id[:]))
	if v.IsZero() {
		v.SetOne()
	}
	return v
}

const (
	meterName       = "lootpool/devoracle"
	requestsCounter = "lootpool.devoracle.requests"
	outcomeAnswered = "answered"
	outcomeStale    = "stale"
	outcomeFailed   = "failed"
	outcomeDropped  = "dropped"
)

type oracleMetrics struct {
	requests metric.Int64Counter
}

func newOracleMetrics(meter metric.Meter) *oracleMetrics {
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(meterName)
	}
	counter, err := meter.Int64Counter(requestsCounter,
		metric.WithDescription("Randomness requests handled by the development oracle, by outcome."))
	if err != nil {
		counter, _ = noop.NewMeterProvider().Meter(meterName).Int64Counter(requestsCounter)
	}
	return &oracleMetrics{requests: counter}
}

func (m *oracleMetrics) record(outcome string) {
	m.requests.Add(context.Background(), 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func hashHex(h [32]byte) string { return common.Hash(h).Hex() }
