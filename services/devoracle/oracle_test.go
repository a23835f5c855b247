package devoracle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"lootpool/core"
	"lootpool/core/events"
	"lootpool/native/custody"
	"lootpool/native/payments"
	"lootpool/native/pool"
	"lootpool/native/randomness"
	"lootpool/storage"
)

type submission struct {
	caller [20]byte
	id     [32]byte
	value  *uint256.Int
}

type fakeSubmitter struct {
	mu    sync.Mutex
	calls []submission
	err   error
	done  chan struct{}
}

func newFakeSubmitter() *fakeSubmitter {
	return &fakeSubmitter{done: make(chan struct{}, 16)}
}

func (f *fakeSubmitter) SubmitRandomness(_ context.Context, caller [20]byte, id [32]byte, value *uint256.Int) error {
	f.mu.Lock()
	f.calls = append(f.calls, submission{caller: caller, id: id, value: value})
	err := f.err
	f.mu.Unlock()
	f.done <- struct{}{}
	return err
}

func (f *fakeSubmitter) snapshot() []submission {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]submission(nil), f.calls...)
}

func TestValueIsDeterministic(t *testing.T) {
	id := [32]byte{0x01}
	a := Value([]byte("secret"), id)
	require.True(t, a.Eq(Value([]byte("secret"), id)))
	require.False(t, a.Eq(Value([]byte("other"), id)))
	require.False(t, a.IsZero())
}

func TestOracleAnswersRequests(t *testing.T) {
	sub := newFakeSubmitter()
	oracleAddr := [20]byte{0x0C}
	o, err := New(sub, Config{Address: oracleAddr, Secret: "s"}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- o.Run(ctx) }()

	o.Emit(events.RandomnessFulfilled{RequestID: [32]byte{0x09}})
	o.Emit(events.RandomnessRequested{RequestID: [32]byte{0x02}})
	<-sub.done

	calls := sub.snapshot()
	require.Len(t, calls, 1)
	require.Equal(t, oracleAddr, calls[0].caller)
	require.Equal(t, [32]byte{0x02}, calls[0].id)
	require.True(t, calls[0].value.Eq(Value([]byte("s"), [32]byte{0x02})))

	cancel()
	require.ErrorIs(t, <-errCh, context.Canceled)
}

func TestOracleKeepsRunningAfterFailures(t *testing.T) {
	sub := newFakeSubmitter()
	sub.err = errors.New("boom")
	o, err := New(sub, Config{Secret: "s"}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = o.Run(ctx) }()

	o.Emit(events.RandomnessRequested{RequestID: [32]byte{0x01}})
	<-sub.done
	o.Emit(events.RandomnessRequested{RequestID: [32]byte{0x02}})
	<-sub.done
	require.Len(t, sub.snapshot(), 2)
}

func TestEmitDropsWhenQueueFull(t *testing.T) {
	o, err := New(newFakeSubmitter(), Config{Secret: "s", QueueSize: 1}, nil)
	require.NoError(t, err)
	o.Emit(events.RandomnessRequested{RequestID: [32]byte{0x01}})
	o.Emit(events.RandomnessRequested{RequestID: [32]byte{0x02}})
	require.Len(t, o.queue, 1)
	require.Equal(t, [32]byte{0x01}, <-o.queue)
}

func TestDelayHonorsCancellation(t *testing.T) {
	sub := newFakeSubmitter()
	o, err := New(sub, Config{Secret: "s", Delay: time.Hour}, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- o.Run(ctx) }()

	o.Emit(events.RandomnessRequested{RequestID: [32]byte{0x01}})
	require.Eventually(t, func() bool { return len(o.queue) == 0 }, time.Second, time.Millisecond)
	cancel()
	require.ErrorIs(t, <-errCh, context.Canceled)
	require.Empty(t, sub.snapshot())
}

func TestUnknownRequestIsNotAnError(t *testing.T) {
	sub := newFakeSubmitter()
	sub.err = randomness.ErrUnknownRequest
	o, err := New(sub, Config{Secret: "s"}, nil)
	require.NoError(t, err)
	require.NoError(t, o.answer(context.Background(), [32]byte{0x01}))
}

func TestOracleCountsOutcomes(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	sub := newFakeSubmitter()
	o, err := New(sub, Config{Secret: "s", QueueSize: 1, Meter: provider.Meter("devoracle-test")}, nil)
	require.NoError(t, err)

	o.Emit(events.RandomnessRequested{RequestID: [32]byte{0x01}})
	o.Emit(events.RandomnessRequested{RequestID: [32]byte{0x02}})
	require.NoError(t, o.answer(context.Background(), <-o.queue))

	sub.err = randomness.ErrUnknownRequest
	require.NoError(t, o.answer(context.Background(), [32]byte{0x03}))
	sub.err = errors.New("boom")
	require.Error(t, o.answer(context.Background(), [32]byte{0x04}))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	counts := make(map[string]int64)
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != requestsCounter {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				outcome, _ := dp.Attributes.Value("outcome")
				counts[outcome.AsString()] = dp.Value
			}
		}
	}
	require.Equal(t, map[string]int64{
		outcomeDropped:  1,
		outcomeAnswered: 1,
		outcomeStale:    1,
		outcomeFailed:   1,
	}, counts)
}

func TestOracleSeedsNodeReservation(t *testing.T) {
	admin, oracle, user := [20]byte{0xAD}, [20]byte{0x0C}, [20]byte{0x05}
	node, err := core.NewNode(storage.NewMemDB())
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, node.Bootstrap(ctx, &core.Genesis{
		Admins:      [][20]byte{admin},
		Oracle:      oracle,
		Collections: []*custody.Collection{{Address: [20]byte{0xC1}, Kind: custody.KindUnique, Name: "Relics"}},
	}))

	o, err := New(node, Config{Address: oracle, Secret: "dev"}, nil)
	require.NoError(t, err)
	node.Subscribe(o)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() { _ = o.Run(runCtx) }()

	require.NoError(t, node.MintCredits(ctx, admin, user, 12, 1))
	res, err := node.InitiateDraw(ctx, user, 1, &payments.Proof{
		Credits: &payments.CreditsProof{IDs: []uint64{12}, Amounts: []uint64{1}},
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		status, err := node.Status(user)
		return err == nil && status == pool.StatusCanFulfill
	}, 2*time.Second, 5*time.Millisecond)

	got, ok, err := node.Reservation(user)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, res.RequestID, got.RequestID)
	seed := Value([]byte("dev"), res.RequestID).Bytes32()
	require.Equal(t, seed, got.Seed)
}
