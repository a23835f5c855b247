package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"lootpool/crypto"
	"lootpool/rpc/middleware"
)

// identity resolves the caller. A keystore yields a signing key as well.
func (c *cli) identity() ([20]byte, *crypto.PrivateKey, error) {
	if c.keystore != "" {
		pass, err := c.passphrase.Get()
		if err != nil {
			return [20]byte{}, nil, err
		}
		key, err := crypto.LoadFromKeystore(c.keystore, pass)
		if err != nil {
			return [20]byte{}, nil, err
		}
		return key.Address(), key, nil
	}
	if c.from != "" {
		addr, err := crypto.ParseAddress(c.from)
		return addr, nil, err
	}
	return [20]byte{}, nil, errors.New("caller unknown; pass --keystore or --from")
}

// userOrSelf returns the parsed flag value or the caller's own address.
func (c *cli) userOrSelf(raw string) (string, error) {
	if strings.TrimSpace(raw) != "" {
		addr, err := crypto.ParseAddress(raw)
		if err != nil {
			return "", err
		}
		return crypto.FormatAddress(addr), nil
	}
	addr, _, err := c.identity()
	if err != nil {
		return "", err
	}
	return crypto.FormatAddress(addr), nil
}

// call issues a JSON request. A non-empty scope authenticates as the caller.
func (c *cli) call(method, path, scope string, body, out interface{}) error {
	raw, err := c.send(method, path, scope, body, 4<<20)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}

// send issues the request and returns at most limit bytes of a 2xx body.
func (c *cli) send(method, path, scope string, body interface{}, limit int64) ([]byte, error) {
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		payload = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, strings.TrimRight(c.endpoint, "/")+path, payload)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if scope != "" {
		if err := c.authorize(req, scope); err != nil {
			return nil, err
		}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("%s: %s", resp.Status, apiErr.Error)
		}
		return nil, fmt.Errorf("%s", resp.Status)
	}
	return raw, nil
}

func (c *cli) authorize(req *http.Request, scope string) error {
	addr, _, err := c.identity()
	if err != nil {
		return err
	}
	if strings.TrimSpace(c.auth.HMACSecret) == "" {
		req.Header.Set(middleware.CallerHeader, crypto.FormatAddress(addr))
		return nil
	}
	token, err := middleware.IssueToken(c.auth, addr, []string{scope}, 5*time.Minute)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

func (c *cli) print(v interface{}) error {
	enc := json.NewEncoder(c.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// forward sends body and prints the decoded answer.
func (c *cli) forward(method, path, scope string, body interface{}) error {
	var out json.RawMessage
	if err := c.call(method, path, scope, body, &out); err != nil {
		return err
	}
	return c.print(out)
}
