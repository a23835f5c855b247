package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"lootpool/crypto"
	nativecommon "lootpool/native/common"
	"lootpool/native/custody"
)

const testAdmin = "0x00000000000000000000000000000000000000aD"

func TestLoadCreatesDefaultWithAdminKeystore(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.FileExists(t, path)
	require.Equal(t, filepath.Join(dir, "admin.keystore"), cfg.AdminKeystore)
	require.Len(t, cfg.Pool.Admins, 1)

	key, err := crypto.LoadFromKeystore(cfg.AdminKeystore, "")
	require.NoError(t, err)
	require.Equal(t, crypto.FormatAddress(key.Address()), cfg.Pool.Admins[0])

	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.Pool.Admins, reloaded.Pool.Admins)
	require.Equal(t, 15*time.Second, reloaded.RPCReadTimeout.Duration)
}

func TestLoadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lootpool.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
Env = "staging"
RPCAddress = "127.0.0.1:9000"
RPCReadTimeout = "3s"

[pool]
Admins = ["`+testAdmin+`"]
DrawFee = "25"
DrawToken = "LOOT"
FeeRecipient = "module:treasury"

[[pool.Tokens]]
Symbol = "LOOT"
Name = "Loot"
Decimals = 18

[[pool.Alloc]]
Address = "module:randomness"
Symbol = "LOOT"
Amount = "500"

[[pool.Collections]]
Address = "0x00000000000000000000000000000000000000c1"
Kind = "unique"
Name = "Relics"

[rate_limit]
RatePerSecond = 5.5
Burst = 3
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "staging", cfg.Env)
	require.Equal(t, 3*time.Second, cfg.RPCReadTimeout.Duration)
	require.Equal(t, uint64(12), cfg.Pool.CreditsThreshold)
	require.Equal(t, 3, cfg.RateLimit.Burst)

	g, err := cfg.Genesis()
	require.NoError(t, err)
	require.Equal(t, "25", g.DrawFee.String())
	require.Equal(t, nativecommon.ModuleAddress("treasury"), g.FeeRecipient)
	require.Equal(t, nativecommon.ModuleAddress("randomness"), g.Alloc[0].Address)
	require.Equal(t, custody.KindUnique, g.Collections[0].Kind)
	require.Equal(t, byte(0xAD), g.Admins[0][19])
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lootpool.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
env: prod
pool:
  admins: ["`+testAdmin+`"]
  randomness_fee: "7"
  fee_token: ORCL
  tokens:
    - symbol: ORCL
      name: Oracle
dev_oracle:
  enabled: true
  secret: s3cret
  delay: 250ms
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "prod", cfg.Env)
	require.Equal(t, 250*time.Millisecond, cfg.DevOracle.Delay.Duration)
	g, err := cfg.Genesis()
	require.NoError(t, err)
	require.Equal(t, "7", g.RandomnessFee.String())
}

func TestLoadRejectsUnknownTOMLKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("Bogus = 1\n"), 0o644))
	_, err := Load(path)
	require.ErrorContains(t, err, "unknown key")
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"no admins":       func(c *Config) { c.Pool.Admins = nil },
		"bad admin":       func(c *Config) { c.Pool.Admins = []string{"nope"} },
		"negative fee":    func(c *Config) { c.Pool.DrawFee = "-1" },
		"bad key hash":    func(c *Config) { c.Pool.KeyHash = "0x12" },
		"bad kind":        func(c *Config) { c.Pool.Collections = []Collection{{Address: testAdmin, Kind: "fungible"}} },
		"sample ratio":    func(c *Config) { c.Telemetry.SampleRatio = 2 },
		"oracle secret":   func(c *Config) { c.DevOracle = DevOracle{Enabled: true} },
		"empty module":    func(c *Config) { c.Pool.FeeRecipient = "module:" },
		"bad alloc value": func(c *Config) { c.Pool.Alloc = []Allocation{{Address: testAdmin, Amount: "x"}} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			cfg.Pool.Admins = []string{testAdmin}
			require.NoError(t, cfg.Validate())
			mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
