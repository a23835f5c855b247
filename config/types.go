package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so both TOML and YAML files can use human
// readable strings such as "15s".
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses human readable duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be string")
	}
	return d.UnmarshalText([]byte(value.Value))
}

// UnmarshalText implements encoding.TextUnmarshaler for the TOML decoder.
func (d *Duration) UnmarshalText(text []byte) error {
	raw := string(text)
	if raw == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Token registers a fungible token at genesis.
type Token struct {
	Symbol   string `toml:"Symbol" yaml:"symbol"`
	Name     string `toml:"Name" yaml:"name"`
	Decimals uint8  `toml:"Decimals" yaml:"decimals"`
}

// Allocation funds an account at genesis. Amount is a base-10 integer.
type Allocation struct {
	Address string `toml:"Address" yaml:"address"`
	Symbol  string `toml:"Symbol" yaml:"symbol"`
	Amount  string `toml:"Amount" yaml:"amount"`
}

// Collection registers an asset collection at genesis.
type Collection struct {
	Address string `toml:"Address" yaml:"address"`
	Kind    string `toml:"Kind" yaml:"kind"`
	Name    string `toml:"Name" yaml:"name"`
	URI     string `toml:"URI" yaml:"uri"`
}

// Pool holds the economic parameters applied at genesis.
type Pool struct {
	Admins           []string     `toml:"Admins" yaml:"admins"`
	Oracle           string       `toml:"Oracle" yaml:"oracle"`
	KeyHash          string       `toml:"KeyHash" yaml:"key_hash"`
	RandomnessFee    string       `toml:"RandomnessFee" yaml:"randomness_fee"`
	FeeToken         string       `toml:"FeeToken" yaml:"fee_token"`
	DrawFee          string       `toml:"DrawFee" yaml:"draw_fee"`
	DrawToken        string       `toml:"DrawToken" yaml:"draw_token"`
	FeeRecipient     string       `toml:"FeeRecipient" yaml:"fee_recipient"`
	CreditsThreshold uint64       `toml:"CreditsThreshold" yaml:"credits_threshold"`
	TokenURI         string       `toml:"TokenURI" yaml:"token_uri"`
	ContractURI      string       `toml:"ContractURI" yaml:"contract_uri"`
	Tokens           []Token      `toml:"Tokens" yaml:"tokens"`
	Alloc            []Allocation `toml:"Alloc" yaml:"alloc"`
	Collections      []Collection `toml:"Collections" yaml:"collections"`
}

// Log configures structured logging.
type Log struct {
	Level      string `toml:"Level" yaml:"level"`
	File       string `toml:"File" yaml:"file"`
	MaxSizeMB  int    `toml:"MaxSizeMB" yaml:"max_size_mb"`
	MaxBackups int    `toml:"MaxBackups" yaml:"max_backups"`
	MaxAgeDays int    `toml:"MaxAgeDays" yaml:"max_age_days"`
}

// RateLimit bounds requests per client on the HTTP API.
type RateLimit struct {
	RatePerSecond float64 `toml:"RatePerSecond" yaml:"rate_per_second"`
	Burst         int     `toml:"Burst" yaml:"burst"`
}

// Auth configures bearer tokens for admin and oracle routes.
type Auth struct {
	HMACSecret string   `toml:"HMACSecret" yaml:"hmac_secret"`
	Issuer     string   `toml:"Issuer" yaml:"issuer"`
	Audience   string   `toml:"Audience" yaml:"audience"`
	ClockSkew  Duration `toml:"ClockSkew" yaml:"clock_skew"`
}

// DevOracle configures the in-process development oracle.
type DevOracle struct {
	Enabled bool   `toml:"Enabled" yaml:"enabled"`
	Secret  string `toml:"Secret" yaml:"secret"`
	// Delay postpones each fulfillment, simulating oracle latency.
	Delay Duration `toml:"Delay" yaml:"delay"`
}

// Telemetry configures OTLP export.
type Telemetry struct {
	Endpoint    string  `toml:"Endpoint" yaml:"endpoint"`
	Insecure    bool    `toml:"Insecure" yaml:"insecure"`
	Headers     string  `toml:"Headers" yaml:"headers"`
	Traces      bool    `toml:"Traces" yaml:"traces"`
	Metrics     bool    `toml:"Metrics" yaml:"metrics"`
	SampleRatio float64 `toml:"SampleRatio" yaml:"sample_ratio"`
}
