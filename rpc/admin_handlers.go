package rpc

import (
	"context"
	"math/big"
	"net/http"
	"strings"
)

func (s *Server) admin(r *http.Request) [20]byte {
	addr, _ := s.caller(r)
	return addr
}

func parseAsset(req AssetRequest) ([20]byte, *big.Int, error) {
	collection, err := parseAddress("collection", req.Collection)
	if err != nil {
		return collection, nil, err
	}
	item, err := parseBig("item", req.Item)
	if err != nil {
		return collection, nil, err
	}
	return collection, item, nil
}

// handleSetTier tracks an asset the vault already holds, or moves a tracked
// asset to another tier.
func (s *Server) handleSetTier(w http.ResponseWriter, r *http.Request) {
	var req AssetRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	collection, item, err := parseAsset(req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	caller := s.admin(r)
	_, tracked, err := s.node.Record(collection, item)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if tracked {
		err = s.node.MoveAsset(r.Context(), caller, collection, item, req.Tier)
	} else {
		qty := req.Quantity
		if qty == 0 {
			qty = 1
		}
		_, err = s.node.Track(r.Context(), caller, collection, item, qty, req.Tier)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeRecord(w, r, collection, item)
}

func (s *Server) writeRecord(w http.ResponseWriter, r *http.Request, collection [20]byte, item *big.Int) {
	rec, ok, err := s.node.Record(collection, item)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !ok {
		writeResult(w, map[string]bool{"tracked": false})
		return
	}
	writeResult(w, recordResult(rec))
}

func (s *Server) handleForceTransfer(w http.ResponseWriter, r *http.Request) {
	var req AssetRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	collection, item, err := parseAsset(req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	to, err := parseAddress("to", req.To)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	moved, err := s.node.ForceTransfer(r.Context(), s.admin(r), collection, item, to)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeResult(w, map[string]uint64{"moved": moved})
}

// handleRemove drops a record. Force skips the custody check.
func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	var req AssetRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	collection, item, err := parseAsset(req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if req.Force {
		err = s.node.ForceRemove(r.Context(), s.admin(r), collection, item)
	} else {
		err = s.node.RemoveAsset(r.Context(), s.admin(r), collection, item)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeResult(w, map[string]bool{"removed": true})
}

func (s *Server) handleAdminRefund(w http.ResponseWriter, r *http.Request) {
	var req UserRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	user, err := parseAddress("user", req.User)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	undrawn, err := s.node.Refund(r.Context(), s.admin(r), user)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeResult(w, map[string]uint8{"refunded": undrawn})
}

func (s *Server) handleMintCredits(w http.ResponseWriter, r *http.Request) {
	var req MintCreditsRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	to, err := parseAddress("to", req.To)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.node.MintCredits(r.Context(), s.admin(r), to, req.ID, req.Amount); err != nil {
		s.fail(w, r, err)
		return
	}
	balances, err := s.node.CreditBalances(to)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeResult(w, map[string]uint64{"balance": balances[req.ID]})
}

// valueHandler decodes a ValueRequest and applies it with set.
func (s *Server) valueHandler(set func(ctx context.Context, caller [20]byte, value string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ValueRequest
		if err := decode(r, &req); err != nil {
			s.fail(w, r, err)
			return
		}
		if err := set(r.Context(), s.admin(r), req.Value); err != nil {
			s.fail(w, r, err)
			return
		}
		writeResult(w, map[string]string{"value": strings.TrimSpace(req.Value)})
	}
}

func (s *Server) handleRandomnessFee(w http.ResponseWriter, r *http.Request) {
	s.valueHandler(func(ctx context.Context, caller [20]byte, value string) error {
		fee, err := parseBig("value", value)
		if err != nil {
			return err
		}
		return s.node.SetRandomnessFee(ctx, caller, fee)
	})(w, r)
}

func (s *Server) handleKeyHash(w http.ResponseWriter, r *http.Request) {
	s.valueHandler(func(ctx context.Context, caller [20]byte, value string) error {
		keyHash, err := parseHash("value", value)
		if err != nil {
			return err
		}
		return s.node.SetKeyHash(ctx, caller, keyHash)
	})(w, r)
}

func (s *Server) handleDrawFee(w http.ResponseWriter, r *http.Request) {
	s.valueHandler(func(ctx context.Context, caller [20]byte, value string) error {
		fee, err := parseBig("value", value)
		if err != nil {
			return err
		}
		return s.node.SetDrawFee(ctx, caller, fee)
	})(w, r)
}

func (s *Server) handleFeeRecipient(w http.ResponseWriter, r *http.Request) {
	s.valueHandler(func(ctx context.Context, caller [20]byte, value string) error {
		recipient, err := parseAddress("value", value)
		if err != nil {
			return err
		}
		return s.node.SetFeeRecipient(ctx, caller, recipient)
	})(w, r)
}

func (s *Server) handleDeleteReference(w http.ResponseWriter, r *http.Request) {
	s.valueHandler(func(ctx context.Context, caller [20]byte, value string) error {
		id, err := parseHash("value", value)
		if err != nil {
			return err
		}
		return s.node.DeleteReference(ctx, caller, id)
	})(w, r)
}

// handleMintAssets deposits and tracks each item in its own call. Items after
// a failure are not attempted.
func (s *Server) handleMintAssets(w http.ResponseWriter, r *http.Request) {
	var req MintAssetsRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	collection, err := parseAddress("collection", req.Collection)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if len(req.Items) == 0 {
		s.fail(w, r, invalid("items required"))
		return
	}
	caller := s.admin(r)
	out := make([]RecordResult, 0, len(req.Items))
	for _, entry := range req.Items {
		item, err := parseBig("item", entry.Item)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		qty := entry.Quantity
		if qty == 0 {
			qty = 1
		}
		rec, err := s.node.DepositAndTrack(r.Context(), caller, collection, item, qty, entry.Tier)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		out = append(out, recordResult(rec))
	}
	writeResult(w, out)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	var req PauseRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	module := strings.TrimSpace(req.Module)
	if module == "" {
		s.fail(w, r, invalid("module required"))
		return
	}
	if err := s.node.SetPaused(r.Context(), s.admin(r), module, req.Paused); err != nil {
		s.fail(w, r, err)
		return
	}
	writeResult(w, req)
}
