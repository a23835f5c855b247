package rpc

import (
	"errors"
	"log/slog"
	"net/http"

	"lootpool/native/payments"
	"lootpool/native/rarity"
	"lootpool/rpc/middleware"
)

var errMirrorUnavailable = errors.New("history index unavailable")

// fail logs server side failures before answering.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	if statusFor(err) >= http.StatusInternalServerError {
		s.logger.Error("rpc request failed",
			slog.String("path", r.URL.Path),
			slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
			slog.Any("error", err))
	}
	writeError(w, err)
}

func (s *Server) caller(r *http.Request) ([20]byte, bool) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		return [20]byte{}, false
	}
	return p.Address, true
}

func (s *Server) handleDeck(w http.ResponseWriter, r *http.Request) {
	deck, err := s.node.Deck()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]RecordResult, 0, len(deck))
	for _, rec := range deck {
		out = append(out, recordResult(rec))
	}
	writeResult(w, out)
}

func (s *Server) handleFees(w http.ResponseWriter, r *http.Request) {
	fees, err := s.node.Fees()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeResult(w, feesResult(fees, s.node.PaymentsVault()))
}

func (s *Server) handleUserHistory(w http.ResponseWriter, r *http.Request) {
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
	if s.mirror == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: errMirrorUnavailable.Error()})
		return
	}
	history, err := s.mirror.History(r.Context(), user, req.Limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeResult(w, historyResult(user, history))
}

func (s *Server) handleUserBalances(w http.ResponseWriter, r *http.Request) {
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
	st, err := s.node.UserState(user)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeResult(w, balancesResult(user, st))
}

func (s *Server) handleCurrentUserState(w http.ResponseWriter, r *http.Request) {
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
	st, err := s.node.UserState(user)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeResult(w, UserStateResult{
		User:        hexAddr(user),
		Status:      string(st.Status),
		Reservation: reservationResult(st.Reservation),
	})
}

func (s *Server) handleUserAction(w http.ResponseWriter, r *http.Request) {
	user, ok := s.caller(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "caller unknown"})
		return
	}
	var req UserActionRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	switch req.Action {
	case ActionCreditDraw:
		if len(req.CreditIDs) == 0 {
			s.fail(w, r, invalid("creditIds required"))
			return
		}
		proof := &payments.Proof{Credits: &payments.CreditsProof{IDs: req.CreditIDs, Amounts: req.CreditAmounts}}
		s.initiate(w, r, user, req, proof)
	case ActionTokenDraw:
		proof, err := tokenProof(req.Transfer)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		s.initiate(w, r, user, req, &payments.Proof{Token: proof})
	case ActionFulfill:
		limit := uint8(rarity.MaxDraws)
		if req.MaxToDraw != nil {
			limit = *req.MaxToDraw
		}
		draws, err := s.node.FulfillDraw(r.Context(), user, limit)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeResult(w, UserActionResult{Action: req.Action, Draws: drawResults(draws)})
	default:
		s.fail(w, r, invalid("unknown action "+req.Action))
	}
}

func (s *Server) initiate(w http.ResponseWriter, r *http.Request, user [20]byte, req UserActionRequest, proof *payments.Proof) {
	res, err := s.node.InitiateDraw(r.Context(), user, req.Quantity, proof)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeResult(w, UserActionResult{Action: req.Action, Reservation: reservationResult(res)})
}

func tokenProof(t *TransferAuthorization) (*payments.TokenProof, error) {
	if t == nil {
		return nil, invalid("transfer required")
	}
	amount, err := parseBig("transfer.amount", t.Amount)
	if err != nil {
		return nil, err
	}
	recipient, err := parseAddress("transfer.recipient", t.Recipient)
	if err != nil {
		return nil, err
	}
	sig, err := parseSignature(t.Signature)
	if err != nil {
		return nil, err
	}
	return &payments.TokenProof{Amount: amount, Recipient: recipient, Nonce: t.Nonce, Signature: sig}, nil
}

func (s *Server) handleOracleFulfill(w http.ResponseWriter, r *http.Request) {
	oracle, ok := s.caller(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "caller unknown"})
		return
	}
	var req OracleFulfillRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	id, err := parseHash("requestId", req.RequestID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	value, err := parseUint256("value", req.Value)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.node.SubmitRandomness(r.Context(), oracle, id, value); err != nil {
		s.fail(w, r, err)
		return
	}
	writeResult(w, map[string]string{"requestId": hexHash(id)})
}
