package main

import (
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"lootpool/crypto"
	"lootpool/native/payments"
	"lootpool/rpc"
	"lootpool/rpc/middleware"
)

func parseUintList(raw string) ([]uint64, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	out := make([]uint64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", p)
		}
		out = append(out, v)
	}
	return out, nil
}

func quantityFlag(q uint) (uint8, error) {
	if q == 0 || q > 255 {
		return 0, errors.New("--quantity must be between 1 and 255")
	}
	return uint8(q), nil
}

func runCreditsBalance(c *cli, args []string) error {
	fs := newFlagSet(c, "credits-balance")
	var user string
	fs.StringVar(&user, "user", "", "holder address (defaults to the caller)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	addr, err := c.userOrSelf(user)
	if err != nil {
		return err
	}
	var out rpc.BalancesResult
	if err := c.call(http.MethodPost, "/userBalances", "", rpc.UserRequest{User: addr}, &out); err != nil {
		return err
	}
	return c.print(out.Credits)
}

func runDrawWithCredits(c *cli, args []string) error {
	fs := newFlagSet(c, "draw-with-credits")
	var quantity uint
	var ids, amounts string
	fs.UintVar(&quantity, "quantity", 1, "number of draws")
	fs.StringVar(&ids, "ids", "", "comma separated credit ids")
	fs.StringVar(&amounts, "amounts", "", "comma separated amounts per id")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	q, err := quantityFlag(quantity)
	if err != nil {
		return err
	}
	req := rpc.UserActionRequest{Action: rpc.ActionCreditDraw, Quantity: q}
	if req.CreditIDs, err = parseUintList(ids); err != nil {
		return err
	}
	if req.CreditAmounts, err = parseUintList(amounts); err != nil {
		return err
	}
	if len(req.CreditIDs) == 0 {
		return errors.New("--ids is required")
	}
	return c.forward(http.MethodPost, "/userAction", middleware.ScopeUser, req)
}

// runDrawWithToken signs a transfer of drawFee*quantity to the payments vault
// at the caller's current nonce.
func runDrawWithToken(c *cli, args []string) error {
	fs := newFlagSet(c, "draw-with-token")
	var quantity uint
	fs.UintVar(&quantity, "quantity", 1, "number of draws")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	q, err := quantityFlag(quantity)
	if err != nil {
		return err
	}
	addr, key, err := c.identity()
	if err != nil {
		return err
	}
	if key == nil {
		return errors.New("draw-with-token requires --keystore")
	}
	var fees rpc.FeesResult
	if err := c.call(http.MethodGet, "/fees", "", nil, &fees); err != nil {
		return err
	}
	var balances rpc.BalancesResult
	if err := c.call(http.MethodPost, "/userBalances", "", rpc.UserRequest{User: crypto.FormatAddress(addr)}, &balances); err != nil {
		return err
	}
	fee, ok := new(big.Int).SetString(fees.DrawFee, 10)
	if !ok {
		return fmt.Errorf("unexpected draw fee %q", fees.DrawFee)
	}
	vault, err := crypto.ParseAddress(fees.Vault)
	if err != nil {
		return err
	}
	amount := new(big.Int).Mul(fee, big.NewInt(int64(q)))
	proof, err := payments.SignTransfer(key.PrivateKey, vault, amount, balances.Nonce)
	if err != nil {
		return err
	}
	req := rpc.UserActionRequest{
		Action:   rpc.ActionTokenDraw,
		Quantity: q,
		Transfer: &rpc.TransferAuthorization{
			Amount:    amount.String(),
			Recipient: fees.Vault,
			Nonce:     proof.Nonce,
			Signature: hexutil.Encode(proof.Signature),
		},
	}
	return c.forward(http.MethodPost, "/userAction", middleware.ScopeUser, req)
}

func runFulfillDraw(c *cli, args []string) error {
	fs := newFlagSet(c, "fulfill-draw")
	limit := fs.Int("max", -1, "draw at most this many; 0 only checks the reservation (default all remaining)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	req := rpc.UserActionRequest{Action: rpc.ActionFulfill}
	if *limit >= 0 {
		if *limit > 255 {
			return errors.New("--max out of range")
		}
		n := uint8(*limit)
		req.MaxToDraw = &n
	}
	return c.forward(http.MethodPost, "/userAction", middleware.ScopeUser, req)
}

func runViews(c *cli, args []string) error {
	if len(args) == 0 {
		return errors.New("views requires deck, fees or state")
	}
	what := args[0]
	switch what {
	case "deck":
		return c.forward(http.MethodGet, "/deck", "", nil)
	case "fees":
		return c.forward(http.MethodGet, "/fees", "", nil)
	case "state":
		fs := newFlagSet(c, "views state")
		var user string
		fs.StringVar(&user, "user", "", "user address (defaults to the caller)")
		if err := parseFlags(fs, args[1:]); err != nil {
			return err
		}
		addr, err := c.userOrSelf(user)
		if err != nil {
			return err
		}
		return c.forward(http.MethodPost, "/currentUserState", "", rpc.UserRequest{User: addr})
	default:
		return fmt.Errorf("unknown view %q", what)
	}
}

func runHistory(c *cli, args []string) error {
	fs := newFlagSet(c, "history")
	var user string
	var limit int
	fs.StringVar(&user, "user", "", "user address (defaults to the caller)")
	fs.IntVar(&limit, "limit", 20, "maximum entries per list")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	addr, err := c.userOrSelf(user)
	if err != nil {
		return err
	}
	return c.forward(http.MethodPost, "/userHistory", "", rpc.UserRequest{User: addr, Limit: limit})
}
