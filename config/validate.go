package config

import (
	"fmt"
	"math/big"
	"strings"

	"lootpool/crypto"
)

// MaxTier is the highest tier the registry accepts.
const MaxTier = 32

// Validate checks the configuration for values the node cannot start with.
func (c *Config) Validate() error {
	if len(c.Pool.Admins) == 0 {
		return fmt.Errorf("pool: at least one admin required")
	}
	for _, admin := range c.Pool.Admins {
		if _, err := crypto.ParseAddress(admin); err != nil {
			return fmt.Errorf("pool.Admins: %w", err)
		}
	}
	for field, value := range map[string]string{
		"pool.Oracle":       c.Pool.Oracle,
		"pool.FeeRecipient": c.Pool.FeeRecipient,
	} {
		if strings.TrimSpace(value) == "" {
			continue
		}
		if _, err := resolveAddress(value); err != nil {
			return fmt.Errorf("%s: %w", field, err)
		}
	}
	if c.Pool.KeyHash != "" {
		if _, err := crypto.ParseHash(c.Pool.KeyHash); err != nil {
			return fmt.Errorf("pool.KeyHash: %w", err)
		}
	}
	if _, err := parseAmount(c.Pool.RandomnessFee); err != nil {
		return fmt.Errorf("pool.RandomnessFee: %w", err)
	}
	if _, err := parseAmount(c.Pool.DrawFee); err != nil {
		return fmt.Errorf("pool.DrawFee: %w", err)
	}
	for i, alloc := range c.Pool.Alloc {
		if _, err := resolveAddress(alloc.Address); err != nil {
			return fmt.Errorf("pool.Alloc[%d]: %w", i, err)
		}
		if _, err := parseAmount(alloc.Amount); err != nil {
			return fmt.Errorf("pool.Alloc[%d]: %w", i, err)
		}
	}
	for i, col := range c.Pool.Collections {
		if _, err := crypto.ParseAddress(col.Address); err != nil {
			return fmt.Errorf("pool.Collections[%d]: %w", i, err)
		}
		if _, err := parseKind(col.Kind); err != nil {
			return fmt.Errorf("pool.Collections[%d]: %w", i, err)
		}
	}
	if c.RateLimit.Burst < 1 {
		return fmt.Errorf("rate_limit: burst must be positive")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry: sample ratio must be within [0,1]")
	}
	if c.DevOracle.Enabled && strings.TrimSpace(c.DevOracle.Secret) == "" {
		return fmt.Errorf("dev_oracle: secret required when enabled")
	}
	return nil
}

func parseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	v, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("amount %q must not be negative", raw)
	}
	return v, nil
}
