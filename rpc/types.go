package rpc

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"lootpool/core"
	"lootpool/crypto"
	"lootpool/indexer"
	"lootpool/native/pool"
	"lootpool/native/registry"
)

// Actions accepted by /userAction.
const (
	ActionTokenDraw  = "tokenDraw"
	ActionCreditDraw = "creditDraw"
	ActionFulfill    = "fulfill"
)

// UserRequest names the subject of a read query.
type UserRequest struct {
	User  string `json:"user"`
	Limit int    `json:"limit,omitempty"`
}

// TransferAuthorization is a user-signed draw token transfer.
type TransferAuthorization struct {
	Amount    string `json:"amount"`
	Recipient string `json:"recipient"`
	Nonce     uint64 `json:"nonce"`
	Signature string `json:"signature"`
}

// UserActionRequest drives the caller's own reservation.
type UserActionRequest struct {
	Action        string                 `json:"action"`
	Quantity      uint8                  `json:"quantity,omitempty"`
	CreditIDs     []uint64               `json:"creditIds,omitempty"`
	CreditAmounts []uint64               `json:"creditAmounts,omitempty"`
	Transfer      *TransferAuthorization `json:"transfer,omitempty"`
	MaxToDraw     *uint8                 `json:"maxToDraw,omitempty"`
}

// OracleFulfillRequest delivers a random value for a pending request.
type OracleFulfillRequest struct {
	RequestID string `json:"requestId"`
	Value     string `json:"value"`
}

// AssetRequest names a tracked asset and carries optional admin fields.
type AssetRequest struct {
	Collection string `json:"collection"`
	Item       string `json:"item"`
	Tier       uint8  `json:"tier,omitempty"`
	Quantity   uint64 `json:"quantity,omitempty"`
	To         string `json:"to,omitempty"`
	Force      bool   `json:"force,omitempty"`
}

// MintAssetsRequest deposits items into the vault and tracks them.
type MintAssetsRequest struct {
	Collection string         `json:"collection"`
	Items      []AssetRequest `json:"items"`
}

// MintCreditsRequest issues credits.
type MintCreditsRequest struct {
	To     string `json:"to"`
	ID     uint64 `json:"id"`
	Amount uint64 `json:"amount"`
}

// ValueRequest carries a single admin parameter.
type ValueRequest struct {
	Value string `json:"value"`
}

// PauseRequest toggles a module pause.
type PauseRequest struct {
	Module string `json:"module"`
	Paused bool   `json:"paused"`
}

// RecordResult is a tracked asset.
type RecordResult struct {
	Collection string `json:"collection"`
	Item       string `json:"item"`
	Kind       string `json:"kind"`
	Quantity   uint64 `json:"quantity"`
	Tier       uint8  `json:"tier"`
	Index      uint64 `json:"index"`
}

// DrawResult is one dispensed asset.
type DrawResult struct {
	Index      uint8  `json:"index"`
	TargetTier uint8  `json:"targetTier"`
	Tier       uint8  `json:"tier"`
	Collection string `json:"collection"`
	Item       string `json:"item"`
}

// ReservationResult describes a live reservation. Tiers is present once the
// oracle has delivered.
type ReservationResult struct {
	Quantity      uint8  `json:"quantity"`
	DrawsOccurred uint8  `json:"drawsOccurred"`
	RequestID     string `json:"requestId"`
	Rail          string `json:"rail"`
	PerDraw       string `json:"perDraw"`
	Tiers         []int  `json:"tiers,omitempty"`
	CreatedAt     uint64 `json:"createdAt"`
}

// UserStateResult answers /currentUserState.
type UserStateResult struct {
	User        string             `json:"user"`
	Status      string             `json:"status"`
	Reservation *ReservationResult `json:"reservation,omitempty"`
}

// BalancesResult answers /userBalances.
type BalancesResult struct {
	User         string            `json:"user"`
	Credits      map[string]uint64 `json:"credits"`
	DrawToken    string            `json:"drawToken"`
	TokenBalance string            `json:"tokenBalance"`
	Nonce        uint64            `json:"nonce"`
}

// FeesResult answers /fees.
type FeesResult struct {
	DrawFee          string   `json:"drawFee"`
	DrawToken        string   `json:"drawToken"`
	FeeRecipient     string   `json:"feeRecipient"`
	RandomnessFee    string   `json:"randomnessFee"`
	FeeToken         string   `json:"feeToken"`
	CreditsThreshold uint64   `json:"creditsThreshold"`
	CreditIDs        []uint64 `json:"creditIds"`
	Vault            string   `json:"vault"`
}

// HistoryResult answers /userHistory.
type HistoryResult struct {
	User         string              `json:"user"`
	Interactions []InteractionResult `json:"interactions"`
	Fulfillments []FulfillmentResult `json:"fulfillments"`
}

type InteractionResult struct {
	Kind      string `json:"kind"`
	Quantity  int    `json:"quantity"`
	Rail      string `json:"rail"`
	Amount    string `json:"amount"`
	RequestID string `json:"requestId,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

type FulfillmentResult struct {
	Collection string `json:"collection"`
	Item       string `json:"item"`
	Tier       int    `json:"tier"`
	TargetTier int    `json:"targetTier"`
	DrawIndex  int    `json:"drawIndex"`
	Timestamp  int64  `json:"timestamp"`
}

// UserActionResult answers /userAction.
type UserActionResult struct {
	Action      string             `json:"action"`
	Reservation *ReservationResult `json:"reservation,omitempty"`
	Draws       []DrawResult       `json:"draws,omitempty"`
}

func parseAddress(field, raw string) ([20]byte, error) {
	addr, err := crypto.ParseAddress(raw)
	if err != nil {
		return addr, invalid(field + ": " + err.Error())
	}
	return addr, nil
}

func parseHash(field, raw string) ([32]byte, error) {
	h, err := crypto.ParseHash(raw)
	if err != nil {
		return h, invalid(field + ": " + err.Error())
	}
	return h, nil
}

// parseBig accepts decimal or 0x-prefixed hex.
func parseBig(field, raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, invalid(field + ": value required")
	}
	v, ok := new(big.Int).SetString(trimmed, 0)
	if !ok || v.Sign() < 0 {
		return nil, invalid(fmt.Sprintf("%s: invalid amount %q", field, raw))
	}
	return v, nil
}

func parseUint256(field, raw string) (*uint256.Int, error) {
	v, err := parseBig(field, raw)
	if err != nil {
		return nil, err
	}
	out, overflow := uint256.FromBig(v)
	if overflow {
		return nil, invalid(field + ": exceeds 256 bits")
	}
	return out, nil
}

func parseSignature(raw string) ([]byte, error) {
	sig, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(raw), "0x"))
	if err != nil || len(sig) != 65 {
		return nil, invalid("transfer.signature: expected 65-byte hex")
	}
	return sig, nil
}

func hexAddr(addr [20]byte) string { return crypto.FormatAddress(addr) }

func hexHash(h [32]byte) string { return common.Hash(h).Hex() }

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func recordResult(rec *registry.Record) RecordResult {
	return RecordResult{
		Collection: hexAddr(rec.Collection),
		Item:       bigString(rec.Item),
		Kind:       rec.Kind.String(),
		Quantity:   rec.Quantity,
		Tier:       rec.Tier,
		Index:      rec.Index,
	}
}

func drawResults(draws []pool.Draw) []DrawResult {
	out := make([]DrawResult, 0, len(draws))
	for _, d := range draws {
		out = append(out, DrawResult{
			Index:      d.Index,
			TargetTier: d.TargetTier,
			Tier:       d.Tier,
			Collection: hexAddr(d.Collection),
			Item:       bigString(d.Item),
		})
	}
	return out
}

func reservationResult(res *pool.Reservation) *ReservationResult {
	if res == nil {
		return nil
	}
	out := &ReservationResult{
		Quantity:      res.Quantity,
		DrawsOccurred: res.DrawsOccurred,
		RequestID:     hexHash(res.RequestID),
		Rail:          res.Rail,
		PerDraw:       bigString(res.PerDraw),
		CreatedAt:     res.CreatedAt,
	}
	if res.Seeded() {
		out.Tiers = make([]int, 0, res.Quantity)
		for _, tier := range res.Tiers[:res.Quantity] {
			out.Tiers = append(out.Tiers, int(tier))
		}
	}
	return out
}

func balancesResult(user [20]byte, st *core.UserState) BalancesResult {
	credits := make(map[string]uint64, len(st.Credits))
	for id, amount := range st.Credits {
		credits[strconv.FormatUint(id, 10)] = amount
	}
	return BalancesResult{
		User:         hexAddr(user),
		Credits:      credits,
		DrawToken:    st.DrawToken,
		TokenBalance: bigString(st.TokenBalance),
		Nonce:        st.Nonce,
	}
}

func feesResult(fees *core.FeeSchedule, vault [20]byte) FeesResult {
	ids := append([]uint64(nil), fees.CreditIDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return FeesResult{
		DrawFee:          bigString(fees.DrawFee),
		DrawToken:        fees.DrawToken,
		FeeRecipient:     hexAddr(fees.FeeRecipient),
		RandomnessFee:    bigString(fees.RandomnessFee),
		FeeToken:         fees.FeeToken,
		CreditsThreshold: fees.CreditsThreshold,
		CreditIDs:        ids,
		Vault:            hexAddr(vault),
	}
}

func historyResult(user [20]byte, h *indexer.History) HistoryResult {
	out := HistoryResult{
		User:         hexAddr(user),
		Interactions: make([]InteractionResult, 0, len(h.Interactions)),
		Fulfillments: make([]FulfillmentResult, 0, len(h.Fulfillments)),
	}
	for _, in := range h.Interactions {
		out.Interactions = append(out.Interactions, InteractionResult{
			Kind:      in.Kind,
			Quantity:  in.Quantity,
			Rail:      in.Rail,
			Amount:    in.Amount,
			RequestID: in.RequestID,
			Timestamp: in.CreatedAt.Unix(),
		})
	}
	for _, f := range h.Fulfillments {
		out.Fulfillments = append(out.Fulfillments, FulfillmentResult{
			Collection: f.Collection,
			Item:       f.Item,
			Tier:       f.Tier,
			TargetTier: f.TargetTier,
			DrawIndex:  f.DrawIndex,
			Timestamp:  f.CreatedAt.Unix(),
		})
	}
	return out
}
