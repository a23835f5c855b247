package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"lootpool/cmd/internal/passphrase"
	"lootpool/rpc/middleware"
)

const (
	envRPC        = "LOOTPOOL_RPC_URL"
	envKeystore   = "LOOTPOOL_KEYSTORE"
	envPassphrase = "LOOTPOOL_KEYSTORE_PASSPHRASE"
	envJWTSecret  = "LOOTPOOL_JWT_SECRET"
	envJWTIssuer  = "LOOTPOOL_JWT_ISSUER"
	envJWTAud     = "LOOTPOOL_JWT_AUDIENCE"
)

type command struct {
	name  string
	usage string
	run   func(c *cli, args []string) error
}

var commands = []command{
	{"set-tier", "--collection ADDR --item ID --tier N [--quantity N]", runSetTier},
	{"force-transfer", "--collection ADDR --item ID --to ADDR", runForceTransfer},
	{"remove", "--collection ADDR --item ID [--force]", runRemove},
	{"mint-credits", "--to ADDR --id N --amount N", runMintCredits},
	{"refund", "--user ADDR", runRefund},
	{"upload", "--file manifest.yaml", runUpload},
	{"set-param", "--name fee|key-hash|draw-fee|fee-recipient|delete-reference --value V", runSetParam},
	{"pause", "--module NAME [--resume]", runPause},
	{"export-fulfillments", "[--out FILE] [--since RFC3339]", runExport},
	{"credits-balance", "[--user ADDR]", runCreditsBalance},
	{"draw-with-credits", "--quantity N --ids 12,6 --amounts 1,2", runDrawWithCredits},
	{"draw-with-token", "--quantity N", runDrawWithToken},
	{"fulfill-draw", "[--max N]", runFulfillDraw},
	{"views", "deck|fees|state [--user ADDR]", runViews},
	{"history", "[--user ADDR] [--limit N]", runHistory},
}

type cli struct {
	endpoint   string
	keystore   string
	from       string
	auth       middleware.AuthConfig
	passphrase *passphrase.Source
	http       *http.Client
	stdout     io.Writer
	stderr     io.Writer
}

func newCLI(stdout, stderr io.Writer) *cli {
	endpoint := strings.TrimSpace(os.Getenv(envRPC))
	if endpoint == "" {
		endpoint = "http://localhost:8080"
	}
	return &cli{
		endpoint: endpoint,
		keystore: strings.TrimSpace(os.Getenv(envKeystore)),
		auth: middleware.AuthConfig{
			HMACSecret: os.Getenv(envJWTSecret),
			Issuer:     os.Getenv(envJWTIssuer),
			Audience:   os.Getenv(envJWTAud),
		},
		passphrase: passphrase.NewSource(envPassphrase, true),
		http:       &http.Client{Timeout: 30 * time.Second},
		stdout:     stdout,
		stderr:     stderr,
	}
}

func main() {
	os.Exit(newCLI(os.Stdout, os.Stderr).run(os.Args[1:]))
}

func (c *cli) run(args []string) int {
	args, err := c.applyGlobalFlags(args)
	if err != nil {
		fmt.Fprintln(c.stderr, "Error:", err)
		return 1
	}
	if len(args) == 0 {
		c.printUsage()
		return 1
	}
	for _, cmd := range commands {
		if cmd.name != args[0] {
			continue
		}
		if err := cmd.run(c, args[1:]); err != nil {
			fmt.Fprintln(c.stderr, "Error:", err)
			return 1
		}
		return 0
	}
	fmt.Fprintf(c.stderr, "Unknown command: %s\n", args[0])
	c.printUsage()
	return 1
}

// applyGlobalFlags strips --rpc, --keystore and --from wherever they appear.
func (c *cli) applyGlobalFlags(args []string) ([]string, error) {
	targets := map[string]*string{"--rpc": &c.endpoint, "--keystore": &c.keystore, "--from": &c.from}
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		name, value, hasValue := strings.Cut(arg, "=")
		dst, ok := targets[name]
		if !ok {
			out = append(out, arg)
			continue
		}
		if !hasValue {
			if i+1 >= len(args) {
				return nil, fmt.Errorf("missing value for %s", name)
			}
			value = args[i+1]
			i++
		}
		*dst = strings.TrimSpace(value)
	}
	return out, nil
}

func (c *cli) printUsage() {
	fmt.Fprintln(c.stderr, "Usage: lootpool-cli [--rpc URL] [--keystore PATH | --from ADDR] <command> [flags]")
	fmt.Fprintln(c.stderr, "Commands:")
	for _, cmd := range commands {
		fmt.Fprintf(c.stderr, "  %-18s %s\n", cmd.name, cmd.usage)
	}
	fmt.Fprintf(c.stderr, "Environment: %s, %s, %s, %s\n", envRPC, envKeystore, envPassphrase, envJWTSecret)
}
