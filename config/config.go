package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"lootpool/crypto"
)

// Config is the lootpoold configuration file.
type Config struct {
	Env             string    `toml:"Env" yaml:"env"`
	DataDir         string    `toml:"DataDir" yaml:"data_dir"`
	RPCAddress      string    `toml:"RPCAddress" yaml:"rpc_address"`
	RPCReadTimeout  Duration  `toml:"RPCReadTimeout" yaml:"rpc_read_timeout"`
	RPCWriteTimeout Duration  `toml:"RPCWriteTimeout" yaml:"rpc_write_timeout"`
	CORSOrigins     []string  `toml:"CORSOrigins" yaml:"cors_origins"`
	IndexerDSN      string    `toml:"IndexerDSN" yaml:"indexer_dsn"`
	AdminKeystore   string    `toml:"AdminKeystore" yaml:"admin_keystore"`
	Pool            Pool      `toml:"pool" yaml:"pool"`
	Log             Log       `toml:"log" yaml:"log"`
	RateLimit       RateLimit `toml:"rate_limit" yaml:"rate_limit"`
	Auth            Auth      `toml:"auth" yaml:"auth"`
	DevOracle       DevOracle `toml:"dev_oracle" yaml:"dev_oracle"`
	Telemetry       Telemetry `toml:"telemetry" yaml:"telemetry"`
}

// Load loads the configuration from path. A missing file is created with
// development defaults. Files ending in .yaml or .yml are parsed as YAML,
// anything else as TOML.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if isYAML(path) {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	} else {
		meta, err := toml.Decode(string(data), cfg)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("config file %s has unknown key %s", path, undecoded[0])
		}
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// Default returns a single-node development configuration.
func Default() *Config {
	cfg := &Config{
		Env:        "dev",
		DataDir:    "./lootpool-data",
		RPCAddress: ":8080",
		Pool: Pool{
			CreditsThreshold: 12,
			FeeToken:         "ORCL",
			RandomnessFee:    "0",
			DrawToken:        "LOOT",
			DrawFee:          "1000000000000000000",
			TokenURI:         "https://lootpool.local/credits/{id}.json",
			ContractURI:      "https://lootpool.local/credits.json",
			Tokens: []Token{
				{Symbol: "LOOT", Name: "Loot", Decimals: 18},
				{Symbol: "ORCL", Name: "Oracle fee", Decimals: 18},
			},
		},
		DevOracle: DevOracle{Enabled: true, Secret: "lootpool-dev"},
	}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.Env) == "" {
		c.Env = "dev"
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./lootpool-data"
	}
	if strings.TrimSpace(c.RPCAddress) == "" {
		c.RPCAddress = ":8080"
	}
	if c.RPCReadTimeout.Duration <= 0 {
		c.RPCReadTimeout.Duration = 15 * time.Second
	}
	if c.RPCWriteTimeout.Duration <= 0 {
		c.RPCWriteTimeout.Duration = 15 * time.Second
	}
	if strings.TrimSpace(c.IndexerDSN) == "" {
		c.IndexerDSN = filepath.Join(c.DataDir, "indexer.db")
	}
	if c.Pool.CreditsThreshold == 0 {
		c.Pool.CreditsThreshold = 12
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.RateLimit.RatePerSecond <= 0 {
		c.RateLimit.RatePerSecond = 20
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = 40
	}
	if c.Auth.ClockSkew.Duration <= 0 {
		c.Auth.ClockSkew.Duration = 2 * time.Minute
	}
	if c.CORSOrigins == nil {
		c.CORSOrigins = []string{}
	}
}

// createDefault creates and saves a default configuration file together with
// an admin keystore whose account administers the pool and acts as oracle.
func createDefault(path string) (*Config, error) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	keystorePath := defaultKeystorePath(path)
	if err := crypto.SaveToKeystore(keystorePath, key, "", crypto.LightKDF); err != nil {
		return nil, err
	}
	admin := crypto.FormatAddress(key.Address())

	cfg := Default()
	cfg.AdminKeystore = keystorePath
	cfg.Pool.Admins = []string{admin}
	cfg.Pool.Oracle = admin
	cfg.Pool.FeeRecipient = admin
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	var buf bytes.Buffer
	if isYAML(path) {
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return err
		}
		if err := enc.Close(); err != nil {
			return err
		}
	} else if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func defaultKeystorePath(configPath string) string {
	dir := filepath.Dir(configPath)
	if dir == "." || dir == "" {
		dir = ""
	}
	return filepath.Join(dir, "admin.keystore")
}
