package main

import (
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"lootpool/rpc"
	"lootpool/rpc/middleware"
)

func newFlagSet(c *cli, name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return errors.New("unexpected positional arguments")
	}
	return nil
}

func required(values map[string]string) error {
	for name, v := range values {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("--%s is required", name)
		}
	}
	return nil
}

func runSetTier(c *cli, args []string) error {
	fs := newFlagSet(c, "set-tier")
	var req rpc.AssetRequest
	var tier uint
	fs.StringVar(&req.Collection, "collection", "", "collection address")
	fs.StringVar(&req.Item, "item", "", "item id")
	fs.UintVar(&tier, "tier", 0, "target tier")
	fs.Uint64Var(&req.Quantity, "quantity", 1, "units to track when the asset is new")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := required(map[string]string{"collection": req.Collection, "item": req.Item}); err != nil {
		return err
	}
	if tier > 255 {
		return errors.New("--tier out of range")
	}
	req.Tier = uint8(tier)
	return c.forward(http.MethodPost, "/admin/tier", middleware.ScopeAdmin, req)
}

func runForceTransfer(c *cli, args []string) error {
	fs := newFlagSet(c, "force-transfer")
	var req rpc.AssetRequest
	fs.StringVar(&req.Collection, "collection", "", "collection address")
	fs.StringVar(&req.Item, "item", "", "item id")
	fs.StringVar(&req.To, "to", "", "recipient address")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := required(map[string]string{"collection": req.Collection, "item": req.Item, "to": req.To}); err != nil {
		return err
	}
	return c.forward(http.MethodPost, "/admin/force-transfer", middleware.ScopeAdmin, req)
}

func runRemove(c *cli, args []string) error {
	fs := newFlagSet(c, "remove")
	var req rpc.AssetRequest
	fs.StringVar(&req.Collection, "collection", "", "collection address")
	fs.StringVar(&req.Item, "item", "", "item id")
	fs.BoolVar(&req.Force, "force", false, "skip the custody check")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := required(map[string]string{"collection": req.Collection, "item": req.Item}); err != nil {
		return err
	}
	return c.forward(http.MethodPost, "/admin/remove", middleware.ScopeAdmin, req)
}

func runMintCredits(c *cli, args []string) error {
	fs := newFlagSet(c, "mint-credits")
	var req rpc.MintCreditsRequest
	fs.StringVar(&req.To, "to", "", "recipient address")
	fs.Uint64Var(&req.ID, "id", 0, "credit token id")
	fs.Uint64Var(&req.Amount, "amount", 0, "amount to mint")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := required(map[string]string{"to": req.To}); err != nil {
		return err
	}
	if req.ID == 0 || req.Amount == 0 {
		return errors.New("--id and --amount must be positive")
	}
	return c.forward(http.MethodPost, "/admin/mint-credits", middleware.ScopeAdmin, req)
}

func runRefund(c *cli, args []string) error {
	fs := newFlagSet(c, "refund")
	var req rpc.UserRequest
	fs.StringVar(&req.User, "user", "", "user whose reservation is refunded")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := required(map[string]string{"user": req.User}); err != nil {
		return err
	}
	return c.forward(http.MethodPost, "/admin/refund", middleware.ScopeAdmin, req)
}

// manifest lists items to deposit and track. JSON manifests parse as YAML.
type manifest struct {
	Collection string `yaml:"collection"`
	Items      []struct {
		Item     string `yaml:"item"`
		Tier     uint8  `yaml:"tier"`
		Quantity uint64 `yaml:"quantity"`
	} `yaml:"items"`
}

func runUpload(c *cli, args []string) error {
	fs := newFlagSet(c, "upload")
	var path string
	fs.StringVar(&path, "file", "", "YAML or JSON manifest")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := required(map[string]string{"file": path}); err != nil {
		return err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var m manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	if len(m.Items) == 0 {
		return fmt.Errorf("%s lists no items", path)
	}
	req := rpc.MintAssetsRequest{Collection: m.Collection}
	for _, it := range m.Items {
		req.Items = append(req.Items, rpc.AssetRequest{Item: it.Item, Tier: it.Tier, Quantity: it.Quantity})
	}
	return c.forward(http.MethodPost, "/admin/mint-assets", middleware.ScopeAdmin, req)
}

var paramRoutes = map[string]string{
	"fee":              "/admin/fee",
	"key-hash":         "/admin/key-hash",
	"draw-fee":         "/admin/draw-fee",
	"fee-recipient":    "/admin/fee-recipient",
	"delete-reference": "/admin/delete-reference",
}

func runSetParam(c *cli, args []string) error {
	fs := newFlagSet(c, "set-param")
	var name, value string
	fs.StringVar(&name, "name", "", "parameter name")
	fs.StringVar(&value, "value", "", "new value")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	route, ok := paramRoutes[name]
	if !ok {
		return fmt.Errorf("unknown parameter %q", name)
	}
	if err := required(map[string]string{"value": value}); err != nil {
		return err
	}
	return c.forward(http.MethodPost, route, middleware.ScopeAdmin, rpc.ValueRequest{Value: value})
}

func runPause(c *cli, args []string) error {
	fs := newFlagSet(c, "pause")
	var module string
	var resume bool
	fs.StringVar(&module, "module", "", "module to pause")
	fs.BoolVar(&resume, "resume", false, "resume instead of pausing")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := required(map[string]string{"module": module}); err != nil {
		return err
	}
	return c.forward(http.MethodPost, "/admin/pause", middleware.ScopeAdmin, rpc.PauseRequest{Module: module, Paused: !resume})
}

func runExport(c *cli, args []string) error {
	fs := newFlagSet(c, "export-fulfillments")
	out := fs.String("out", "fulfillments.parquet", "destination file")
	since := fs.String("since", "", "only rows at or after this RFC 3339 time")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	path := "/admin/export/fulfillments"
	if s := strings.TrimSpace(*since); s != "" {
		if _, err := time.Parse(time.RFC3339, s); err != nil {
			return fmt.Errorf("--since: %w", err)
		}
		path += "?since=" + url.QueryEscape(s)
	}
	data, err := c.send(http.MethodGet, path, middleware.ScopeAdmin, nil, 256<<20)
	if err != nil {
		return err
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "wrote %d bytes to %s\n", len(data), *out)
	return nil
}
