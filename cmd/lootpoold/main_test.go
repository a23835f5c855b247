package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"lootpool/config"
	"lootpool/indexer"
	"lootpool/observability/logging"
	"lootpool/rpc"
	"lootpool/rpc/middleware"
	"lootpool/storage"
)

const relics = "0x00000000000000000000000000000000000000C1"

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg, err := config.Load(filepath.Join(dir, "config.toml"))
	require.NoError(t, err)
	cfg.DataDir = dir
	cfg.IndexerDSN = filepath.Join(dir, "indexer.db")
	cfg.Pool.Collections = []config.Collection{{Address: relics, Kind: "unique", Name: "Relics"}}
	return cfg
}

type client struct {
	t    *testing.T
	base string
}

func (c client) post(caller, path string, body, out interface{}) int {
	c.t.Helper()
	var buf bytes.Buffer
	require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	req, err := http.NewRequest(http.MethodPost, c.base+path, &buf)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	if caller != "" {
		req.Header.Set(middleware.CallerHeader, caller)
	}
	return c.send(req, out)
}

func (c client) get(path string) (int, string) {
	c.t.Helper()
	resp, err := http.Get(c.base + path)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	return resp.StatusCode, string(data)
}

func (c client) send(req *http.Request, out interface{}) int {
	c.t.Helper()
	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	if out != nil && resp.StatusCode == http.StatusOK {
		require.NoError(c.t, json.Unmarshal(data, out), string(data))
	}
	return resp.StatusCode
}

func TestDaemonServesDrawWithDevOracle(t *testing.T) {
	cfg := testConfig(t)
	logger := logging.New(io.Discard, logging.Options{Service: serviceName})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d, err := newDaemon(ctx, cfg, storage.NewMemDB(), logger)
	require.NoError(t, err)
	defer d.Close()

	drawFee, ok, err := d.mirror.Global(ctx, indexer.KeyDrawFee)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, cfg.Pool.DrawFee, drawFee)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	served := make(chan error, 1)
	go func() { served <- d.Serve(ctx, ln) }()

	c := client{t: t, base: "http://" + ln.Addr().String()}
	code, _ := c.get("/healthz")
	require.Equal(t, http.StatusOK, code)

	admin := cfg.Pool.Admins[0]
	user := "0x0000000000000000000000000000000000000005"
	require.Equal(t, http.StatusOK, c.post(admin, "/admin/mint-assets", rpc.MintAssetsRequest{
		Collection: relics,
		Items:      []rpc.AssetRequest{{Item: "1", Tier: 0}},
	}, nil))
	require.Equal(t, http.StatusOK, c.post(admin, "/admin/mint-credits", rpc.MintCreditsRequest{To: user, ID: 12, Amount: 1}, nil))
	require.Equal(t, http.StatusOK, c.post(user, "/userAction", rpc.UserActionRequest{
		Action: rpc.ActionCreditDraw, Quantity: 1, CreditIDs: []uint64{12}, CreditAmounts: []uint64{1},
	}, nil))

	require.Eventually(t, func() bool {
		var st rpc.UserStateResult
		if c.post("", "/currentUserState", rpc.UserRequest{User: user}, &st) != http.StatusOK {
			return false
		}
		return st.Status == "canFulfill"
	}, 5*time.Second, 20*time.Millisecond)

	var result rpc.UserActionResult
	require.Equal(t, http.StatusOK, c.post(user, "/userAction", rpc.UserActionRequest{Action: rpc.ActionFulfill}, &result))
	require.Len(t, result.Draws, 1)
	require.Equal(t, "1", result.Draws[0].Item)

	code, body := c.get("/metrics")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, "lootpool_node_calls_total")
	require.Contains(t, body, "lootpool_http_requests_total")
	require.Contains(t, body, "go_goroutines")

	cancel()
	select {
	case err := <-served:
		require.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("daemon did not stop")
	}
}

func TestDaemonRestartKeepsState(t *testing.T) {
	cfg := testConfig(t)
	cfg.DevOracle.Enabled = false
	logger := logging.New(io.Discard, logging.Options{Service: serviceName})
	ctx := context.Background()
	db := storage.NewMemDB()

	first, err := newDaemon(ctx, cfg, db, logger)
	require.NoError(t, err)
	require.Nil(t, first.oracle)
	first.Close()

	second, err := newDaemon(ctx, cfg, db, logger)
	require.NoError(t, err)
	defer second.Close()
	done, err := second.node.Bootstrapped()
	require.NoError(t, err)
	require.True(t, done)
}
