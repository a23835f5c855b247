package core

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"lootpool/core/events"
	nativecommon "lootpool/native/common"
	"lootpool/native/custody"
	"lootpool/native/payments"
	"lootpool/native/pool"
	"lootpool/native/randomness"
	"lootpool/native/rarity"
	"lootpool/storage"
)

var (
	testAdmin   = [20]byte{0xAD}
	testOracle  = [20]byte{0x0C}
	testUser    = [20]byte{0x05}
	testFees    = [20]byte{0xFE}
	uniqueCol   = [20]byte{0xC1}
	quantityCol = [20]byte{0xC2}
)

type testNode struct {
	*Node
	db     *storage.MemDB
	events events.Buffer
}

func newTestNode(t *testing.T, extra ...Allocation) *testNode {
	t.Helper()
	db := storage.NewMemDB()
	node, err := NewNode(db)
	require.NoError(t, err)
	tn := &testNode{Node: node, db: db}
	node.Subscribe(&tn.events)

	alloc := append([]Allocation{
		{Address: node.RandomnessVault(), Symbol: "ORCL", Amount: big.NewInt(100)},
		{Address: testUser, Symbol: "LOOT", Amount: big.NewInt(1_000)},
	}, extra...)
	require.NoError(t, node.Bootstrap(context.Background(), &Genesis{
		Admins:        [][20]byte{testAdmin},
		Tokens:        []TokenSpec{{Symbol: "LOOT", Name: "Loot", Decimals: 18}, {Symbol: "ORCL", Name: "Oracle fee", Decimals: 18}},
		Alloc:         alloc,
		Oracle:        testOracle,
		KeyHash:       [32]byte{0x4B},
		RandomnessFee: big.NewInt(1),
		FeeToken:      "ORCL",
		DrawFee:       big.NewInt(10),
		DrawToken:     "LOOT",
		FeeRecipient:  testFees,
		CreditsURI:    "ipfs://credits/{id}.json",
		Collections: []*custody.Collection{
			{Address: uniqueCol, Kind: custody.KindUnique, Name: "Relics"},
			{Address: quantityCol, Kind: custody.KindQuantified, Name: "Potions"},
		},
	}))
	tn.events.Reset()
	return tn
}

func (tn *testNode) stock(t *testing.T, item int64, tier uint8) {
	t.Helper()
	_, err := tn.DepositAndTrack(context.Background(), testAdmin, uniqueCol, big.NewInt(item), 1, tier)
	require.NoError(t, err)
}

func (tn *testNode) creditDraw(t *testing.T, quantity uint8) *pool.Reservation {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, tn.MintCredits(ctx, testAdmin, testUser, 12, uint64(quantity)))
	res, err := tn.InitiateDraw(ctx, testUser, quantity, &payments.Proof{
		Credits: &payments.CreditsProof{IDs: []uint64{12}, Amounts: []uint64{uint64(quantity)}},
	})
	require.NoError(t, err)
	return res
}

func seedOf(t *testing.T, lanes ...uint32) *uint256.Int {
	t.Helper()
	seed, err := rarity.FromLanes(lanes...)
	require.NoError(t, err)
	return seed
}

func TestBootstrapIsIdempotent(t *testing.T) {
	tn := newTestNode(t)
	done, err := tn.Bootstrapped()
	require.NoError(t, err)
	require.True(t, done)

	// A second bootstrap with different params keeps the committed ones.
	require.NoError(t, tn.Bootstrap(context.Background(), &Genesis{Admins: [][20]byte{{0x99}}}))
	params, err := tn.PaymentsParams()
	require.NoError(t, err)
	require.Equal(t, big.NewInt(10), params.DrawFee)

	ok, err := tn.HasRole(RoleGovernor, [20]byte{0x99})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestBootstrapRejectsUnknownFeeToken(t *testing.T) {
	node, err := NewNode(storage.NewMemDB())
	require.NoError(t, err)
	err = node.Bootstrap(context.Background(), &Genesis{
		Admins:  [][20]byte{testAdmin},
		DrawFee: big.NewInt(1), DrawToken: "NOPE",
	})
	require.Error(t, err)
	require.ErrorIs(t, node.Bootstrap(context.Background(), &Genesis{}), errNoAdmins)
}

func TestCreditDrawEndToEnd(t *testing.T) {
	tn := newTestNode(t)
	ctx := context.Background()
	tn.stock(t, 1, 0)
	tn.stock(t, 2, 5)

	res := tn.creditDraw(t, 2)
	status, err := tn.Status(testUser)
	require.NoError(t, err)
	require.Equal(t, pool.StatusPendingRandom, status)

	// Oracle fee left the randomness vault.
	fee, err := tn.TokenBalance(testOracle, "ORCL")
	require.NoError(t, err)
	require.Equal(t, big.NewInt(1), fee)

	require.ErrorIs(t, tn.SubmitRandomness(ctx, testUser, res.RequestID, seedOf(t, 0xFC000000, 0)), randomness.ErrUnauthorizedOracle)
	require.NoError(t, tn.SubmitRandomness(ctx, testOracle, res.RequestID, seedOf(t, 0xFC000000, 0)))

	status, err = tn.Status(testUser)
	require.NoError(t, err)
	require.Equal(t, pool.StatusCanFulfill, status)

	draws, err := tn.FulfillDraw(ctx, testUser, 8)
	require.NoError(t, err)
	require.Len(t, draws, 2)
	require.Equal(t, uint8(6), draws[0].TargetTier)
	require.Equal(t, uint8(5), draws[0].Tier)
	require.Equal(t, uint8(0), draws[1].Tier)

	for _, item := range []int64{1, 2} {
		bal, err := tn.AssetBalance(testUser, uniqueCol, big.NewInt(item))
		require.NoError(t, err)
		require.Equal(t, uint64(1), bal)
	}
	_, ok, err := tn.Reservation(testUser)
	require.NoError(t, err)
	require.False(t, ok)
	deck, err := tn.Deck()
	require.NoError(t, err)
	require.Empty(t, deck)

	var types []string
	for _, evt := range tn.events.Events() {
		types = append(types, evt.EventType())
	}
	require.Contains(t, types, events.TypeReservationCleared)
	require.Contains(t, types, events.TypeDrawDispensed)
}

func TestStockoutRevertsEveryEffect(t *testing.T) {
	tn := newTestNode(t)
	ctx := context.Background()
	tn.stock(t, 7, 3)

	res := tn.creditDraw(t, 2)
	require.NoError(t, tn.SubmitRandomness(ctx, testOracle, res.RequestID, seedOf(t, 0xF0000000, 0xF0000000)))
	tn.events.Reset()
	before := tn.db.Len()

	_, err := tn.FulfillDraw(ctx, testUser, 2)
	require.ErrorIs(t, err, pool.ErrStockout)

	// The first draw's custody move never reached storage.
	owner, err := tn.AssetBalance(tn.VaultAddress(), uniqueCol, big.NewInt(7))
	require.NoError(t, err)
	require.Equal(t, uint64(1), owner)
	rec, ok, err := tn.Record(uniqueCol, big.NewInt(7))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint8(3), rec.Tier)
	got, ok, err := tn.Reservation(testUser)
	require.NoError(t, err)
	require.True(t, ok)
	require.Zero(t, got.DrawsOccurred)
	require.Empty(t, tn.events.Events())
	require.Equal(t, before, tn.db.Len())

	// Drawing one at a time succeeds for the stocked draw.
	draws, err := tn.FulfillDraw(ctx, testUser, 1)
	require.NoError(t, err)
	require.Len(t, draws, 1)
	got, _, err = tn.Reservation(testUser)
	require.NoError(t, err)
	require.Equal(t, uint8(1), got.DrawsOccurred)
}

func TestTokenDrawSettlesAndRefunds(t *testing.T) {
	key, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	user := [20]byte(ethcrypto.PubkeyToAddress(key.PublicKey))
	tn := newTestNode(t, Allocation{Address: user, Symbol: "LOOT", Amount: big.NewInt(100)})
	ctx := context.Background()
	tn.stock(t, 1, 0)

	proof := signedProof(t, key, tn.PaymentsVault(), 30, 0)
	res, err := tn.InitiateDraw(ctx, user, 3, &payments.Proof{Token: proof})
	require.NoError(t, err)
	require.Equal(t, payments.RailToken, res.Rail)

	// Replaying the same nonce is rejected.
	_, err = tn.InitiateDraw(ctx, user, 3, &payments.Proof{Token: proof})
	require.Error(t, err)

	require.NoError(t, tn.SubmitRandomness(ctx, testOracle, res.RequestID, seedOf(t, 1, 1, 1)))
	_, err = tn.FulfillDraw(ctx, user, 1)
	require.NoError(t, err)

	fees, err := tn.TokenBalance(testFees, "LOOT")
	require.NoError(t, err)
	require.Equal(t, big.NewInt(10), fees)

	undrawn, err := tn.Refund(ctx, testAdmin, user)
	require.NoError(t, err)
	require.Equal(t, uint8(2), undrawn)
	bal, err := tn.TokenBalance(user, "LOOT")
	require.NoError(t, err)
	require.Equal(t, big.NewInt(90), bal)
	vault, err := tn.TokenBalance(tn.PaymentsVault(), "LOOT")
	require.NoError(t, err)
	require.Zero(t, vault.Sign())

	state, err := tn.UserState(user)
	require.NoError(t, err)
	require.Equal(t, pool.StatusNone, state.Status)
	require.Equal(t, uint64(1), state.Nonce)
}

func signedProof(t *testing.T, key *ecdsa.PrivateKey, vault [20]byte, amount int64, nonce uint64) *payments.TokenProof {
	t.Helper()
	proof, err := payments.SignTransfer(key, vault, big.NewInt(amount), nonce)
	require.NoError(t, err)
	return proof
}

func TestLateRandomnessAfterRefundIsDropped(t *testing.T) {
	tn := newTestNode(t)
	ctx := context.Background()
	res := tn.creditDraw(t, 1)

	_, err := tn.Refund(ctx, testAdmin, testUser)
	require.NoError(t, err)
	credits, err := tn.CreditBalances(testUser)
	require.NoError(t, err)
	require.Equal(t, uint64(1), credits[12])

	tn.events.Reset()
	require.NoError(t, tn.SubmitRandomness(ctx, testOracle, res.RequestID, seedOf(t, 1)))
	var dropped bool
	for _, evt := range tn.events.Events() {
		if evt.EventType() == events.TypeRandomnessDropped {
			dropped = true
		}
	}
	require.True(t, dropped)
}

func TestPauseBlocksModule(t *testing.T) {
	tn := newTestNode(t)
	ctx := context.Background()
	require.ErrorIs(t, tn.SetPaused(ctx, testUser, "pool", true), ErrUnauthorized)
	require.NoError(t, tn.SetPaused(ctx, testAdmin, "pool", true))

	require.NoError(t, tn.MintCredits(ctx, testAdmin, testUser, 12, 1))
	_, err := tn.InitiateDraw(ctx, testUser, 1, &payments.Proof{
		Credits: &payments.CreditsProof{IDs: []uint64{12}, Amounts: []uint64{1}},
	})
	require.ErrorIs(t, err, nativecommon.ErrModulePaused)

	require.NoError(t, tn.SetPaused(ctx, testAdmin, "pool", false))
	_, err = tn.InitiateDraw(ctx, testUser, 1, &payments.Proof{
		Credits: &payments.CreditsProof{IDs: []uint64{12}, Amounts: []uint64{1}},
	})
	require.NoError(t, err)
}

func TestForceTransferClearsTracking(t *testing.T) {
	tn := newTestNode(t)
	ctx := context.Background()
	_, err := tn.DepositAndTrack(ctx, testAdmin, quantityCol, big.NewInt(9), 4, 2)
	require.NoError(t, err)

	moved, err := tn.ForceTransfer(ctx, testAdmin, quantityCol, big.NewInt(9), testAdmin)
	require.NoError(t, err)
	require.Equal(t, uint64(4), moved)
	_, ok, err := tn.Record(quantityCol, big.NewInt(9))
	require.NoError(t, err)
	require.False(t, ok)
	bitmap, err := tn.ActiveTiers()
	require.NoError(t, err)
	require.Zero(t, bitmap)
}

func TestCanceledContextSkipsCall(t *testing.T) {
	tn := newTestNode(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, tn.MintCredits(ctx, testAdmin, testUser, 12, 1), context.Canceled)
}
