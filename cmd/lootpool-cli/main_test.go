package main

import (
	"bytes"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"lootpool/crypto"
	"lootpool/native/payments"
	"lootpool/rpc"
	"lootpool/rpc/middleware"
)

type captured struct {
	path   string
	header http.Header
	body   []byte
}

type fakeAPI struct {
	mu       sync.Mutex
	requests []captured
	replies  map[string]interface{}
	status   int
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, captured{path: r.URL.Path, header: r.Header.Clone(), body: buf.Bytes()})
	reply, ok := f.replies[r.URL.Path]
	status := f.status
	f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "pool: no reservation"})
		return
	}
	if !ok {
		reply = map[string]bool{"ok": true}
	}
	_ = json.NewEncoder(w).Encode(reply)
}

func (f *fakeAPI) last(t *testing.T, path string) captured {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.requests) - 1; i >= 0; i-- {
		if f.requests[i].path == path {
			return f.requests[i]
		}
	}
	t.Fatalf("no request to %s", path)
	return captured{}
}

func newTestCLI(t *testing.T, api *fakeAPI) (*cli, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	t.Setenv(envRPC, srv.URL)
	t.Setenv(envKeystore, "")
	t.Setenv(envJWTSecret, "")
	t.Setenv(envPassphrase, "")
	var stdout, stderr bytes.Buffer
	return newCLI(&stdout, &stderr), &stdout, &stderr
}

const testFrom = "0x00000000000000000000000000000000000000Aa"

func TestDrawWithCreditsSendsCallerHeader(t *testing.T) {
	api := &fakeAPI{}
	c, stdout, stderr := newTestCLI(t, api)
	code := c.run([]string{"--from", testFrom, "draw-with-credits", "--quantity", "2", "--ids", "12,6", "--amounts", "1,2"})
	require.Equal(t, 0, code, stderr.String())
	require.Contains(t, stdout.String(), "\"ok\": true")

	req := api.last(t, "/userAction")
	require.True(t, strings.EqualFold(testFrom, req.header.Get(middleware.CallerHeader)))
	var body rpc.UserActionRequest
	require.NoError(t, json.Unmarshal(req.body, &body))
	require.Equal(t, rpc.ActionCreditDraw, body.Action)
	require.Equal(t, uint8(2), body.Quantity)
	require.Equal(t, []uint64{12, 6}, body.CreditIDs)
	require.Equal(t, []uint64{1, 2}, body.CreditAmounts)
}

func TestDrawWithTokenSignsTransfer(t *testing.T) {
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "user.keystore")
	require.NoError(t, crypto.SaveToKeystore(path, key, "", crypto.LightKDF))
	vault := [20]byte{0x77}

	api := &fakeAPI{replies: map[string]interface{}{
		"/fees":         rpc.FeesResult{DrawFee: "10", Vault: crypto.FormatAddress(vault)},
		"/userBalances": rpc.BalancesResult{Nonce: 3},
	}}
	c, _, stderr := newTestCLI(t, api)
	code := c.run([]string{"--keystore", path, "draw-with-token", "--quantity", "2"})
	require.Equal(t, 0, code, stderr.String())

	var body rpc.UserActionRequest
	require.NoError(t, json.Unmarshal(api.last(t, "/userAction").body, &body))
	require.Equal(t, rpc.ActionTokenDraw, body.Action)
	require.Equal(t, "20", body.Transfer.Amount)
	require.Equal(t, uint64(3), body.Transfer.Nonce)

	sig, err := hexutil.Decode(body.Transfer.Signature)
	require.NoError(t, err)
	digest := payments.TransferDigest(key.Address(), vault, big.NewInt(20), 3)
	pub, err := ethcrypto.SigToPub(digest, sig)
	require.NoError(t, err)
	require.Equal(t, key.Address(), [20]byte(ethcrypto.PubkeyToAddress(*pub)))
}

func TestUploadUsesBearerToken(t *testing.T) {
	api := &fakeAPI{}
	c, _, stderr := newTestCLI(t, api)
	c.auth.HMACSecret = "cli-secret"
	manifest := filepath.Join(t.TempDir(), "deck.yaml")
	require.NoError(t, os.WriteFile(manifest, []byte(`collection: "0x00000000000000000000000000000000000000c1"
items:
  - item: "1"
    tier: 4
  - item: "2"
    tier: 9
    quantity: 5
`), 0o600))

	code := c.run([]string{"--from", testFrom, "upload", "--file", manifest})
	require.Equal(t, 0, code, stderr.String())

	req := api.last(t, "/admin/mint-assets")
	bearer := strings.TrimPrefix(req.header.Get("Authorization"), "Bearer ")
	require.NotEmpty(t, bearer)
	require.Empty(t, req.header.Get(middleware.CallerHeader))

	var body rpc.MintAssetsRequest
	require.NoError(t, json.Unmarshal(req.body, &body))
	require.Len(t, body.Items, 2)
	require.Equal(t, uint8(9), body.Items[1].Tier)
	require.Equal(t, uint64(5), body.Items[1].Quantity)
}

func TestErrorsSurfaceServerMessage(t *testing.T) {
	api := &fakeAPI{status: http.StatusNotFound}
	c, _, stderr := newTestCLI(t, api)
	code := c.run([]string{"--from", testFrom, "fulfill-draw"})
	require.Equal(t, 1, code)
	require.Contains(t, stderr.String(), "no reservation")
}

func TestUsageErrors(t *testing.T) {
	c, _, stderr := newTestCLI(t, &fakeAPI{})
	require.Equal(t, 1, c.run([]string{"launch-rockets"}))
	require.Contains(t, stderr.String(), "Unknown command")

	require.Equal(t, 1, c.run([]string{"refund"}))
	require.Equal(t, 1, c.run([]string{"set-param", "--name", "colour", "--value", "red"}))
	require.Equal(t, 1, c.run([]string{"credits-balance"}))
}

func TestHistoryDefaultsToCaller(t *testing.T) {
	api := &fakeAPI{}
	c, _, stderr := newTestCLI(t, api)
	require.Equal(t, 0, c.run([]string{"--from=" + testFrom, "history", "--limit", "5"}), stderr.String())
	var body rpc.UserRequest
	require.NoError(t, json.Unmarshal(api.last(t, "/userHistory").body, &body))
	require.True(t, strings.EqualFold(testFrom, body.User))
	require.Equal(t, 5, body.Limit)
}

func TestExportWritesResponseBody(t *testing.T) {
	api := &fakeAPI{}
	c, stdout, stderr := newTestCLI(t, api)
	out := filepath.Join(t.TempDir(), "f.parquet")
	code := c.run([]string{"--from", testFrom, "export-fulfillments", "--out", out, "--since", "2026-01-02T00:00:00Z"})
	require.Equal(t, 0, code, stderr.String())
	require.Contains(t, stdout.String(), out)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	require.JSONEq(t, `{"ok":true}`, string(data))
	req := api.last(t, "/admin/export/fulfillments")
	require.NotEmpty(t, req.header.Get(middleware.CallerHeader))

	code = c.run([]string{"--from", testFrom, "export-fulfillments", "--since", "soon"})
	require.Equal(t, 1, code)
}

func TestFulfillDrawMaxFlag(t *testing.T) {
	api := &fakeAPI{}
	c, _, stderr := newTestCLI(t, api)
	require.Equal(t, 0, c.run([]string{"--from", testFrom, "fulfill-draw"}), stderr.String())
	var body rpc.UserActionRequest
	require.NoError(t, json.Unmarshal(api.last(t, "/userAction").body, &body))
	require.Equal(t, rpc.ActionFulfill, body.Action)
	require.Nil(t, body.MaxToDraw)

	require.Equal(t, 0, c.run([]string{"--from", testFrom, "fulfill-draw", "--max", "0"}), stderr.String())
	body = rpc.UserActionRequest{}
	require.NoError(t, json.Unmarshal(api.last(t, "/userAction").body, &body))
	require.NotNil(t, body.MaxToDraw)
	require.Zero(t, *body.MaxToDraw)

	require.Equal(t, 1, c.run([]string{"--from", testFrom, "fulfill-draw", "--max", "300"}))
}
