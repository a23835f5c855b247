package config

import (
	"fmt"
	"strings"

	"lootpool/core"
	"lootpool/crypto"
	nativecommon "lootpool/native/common"
	"lootpool/native/custody"
)

const modulePrefix = "module:"

// resolveAddress accepts a hex address or "module:<name>" for a native
// module account such as module:randomness.
func resolveAddress(raw string) ([20]byte, error) {
	trimmed := strings.TrimSpace(raw)
	if name, ok := strings.CutPrefix(trimmed, modulePrefix); ok {
		if strings.TrimSpace(name) == "" {
			return [20]byte{}, fmt.Errorf("empty module name in %q", raw)
		}
		return nativecommon.ModuleAddress(name), nil
	}
	return crypto.ParseAddress(trimmed)
}

func parseKind(raw string) (custody.Kind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "unique", "erc721":
		return custody.KindUnique, nil
	case "quantified", "erc1155":
		return custody.KindQuantified, nil
	default:
		return custody.KindUnknown, fmt.Errorf("unknown collection kind %q", raw)
	}
}

// Genesis converts the pool section into the node's genesis description.
func (c *Config) Genesis() (*core.Genesis, error) {
	p := c.Pool
	g := &core.Genesis{
		FeeToken:         p.FeeToken,
		DrawToken:        p.DrawToken,
		CreditsThreshold: p.CreditsThreshold,
		CreditsURI:       p.TokenURI,
		ContractURI:      p.ContractURI,
	}
	for _, raw := range p.Admins {
		addr, err := crypto.ParseAddress(raw)
		if err != nil {
			return nil, err
		}
		g.Admins = append(g.Admins, addr)
	}
	var err error
	if p.Oracle != "" {
		if g.Oracle, err = crypto.ParseAddress(p.Oracle); err != nil {
			return nil, err
		}
	}
	if p.FeeRecipient != "" {
		if g.FeeRecipient, err = resolveAddress(p.FeeRecipient); err != nil {
			return nil, err
		}
	}
	if p.KeyHash != "" {
		if g.KeyHash, err = crypto.ParseHash(p.KeyHash); err != nil {
			return nil, err
		}
	}
	if g.RandomnessFee, err = parseAmount(p.RandomnessFee); err != nil {
		return nil, err
	}
	if g.DrawFee, err = parseAmount(p.DrawFee); err != nil {
		return nil, err
	}
	for _, tok := range p.Tokens {
		g.Tokens = append(g.Tokens, core.TokenSpec{Symbol: tok.Symbol, Name: tok.Name, Decimals: tok.Decimals})
	}
	for _, alloc := range p.Alloc {
		addr, err := resolveAddress(alloc.Address)
		if err != nil {
			return nil, err
		}
		amount, err := parseAmount(alloc.Amount)
		if err != nil {
			return nil, err
		}
		g.Alloc = append(g.Alloc, core.Allocation{Address: addr, Symbol: alloc.Symbol, Amount: amount})
	}
	for _, col := range p.Collections {
		addr, err := crypto.ParseAddress(col.Address)
		if err != nil {
			return nil, err
		}
		kind, err := parseKind(col.Kind)
		if err != nil {
			return nil, err
		}
		g.Collections = append(g.Collections, &custody.Collection{Address: addr, Kind: kind, Name: col.Name, URI: col.URI})
	}
	return g, nil
}
