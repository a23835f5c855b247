package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"lootpool/core"
	"lootpool/native/bank"
	nativecommon "lootpool/native/common"
	"lootpool/native/credits"
	"lootpool/native/custody"
	"lootpool/native/payments"
	"lootpool/native/pool"
	"lootpool/native/randomness"
	"lootpool/native/registry"
)

// errorResponse is the body of every non-2xx answer.
type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

// badRequest marks malformed input detected before the node is called.
type badRequest struct{ msg string }

func (e *badRequest) Error() string { return e.msg }

func invalid(msg string) error { return &badRequest{msg: msg} }

var statusBySentinel = []struct {
	err    error
	status int
}{
	{core.ErrUnauthorized, http.StatusForbidden},
	{bank.ErrUnauthorized, http.StatusForbidden},
	{credits.ErrUnauthorized, http.StatusForbidden},
	{custody.ErrUnauthorized, http.StatusForbidden},
	{payments.ErrUnauthorized, http.StatusForbidden},
	{pool.ErrUnauthorized, http.StatusForbidden},
	{registry.ErrUnauthorized, http.StatusForbidden},
	{randomness.ErrUnauthorizedOracle, http.StatusForbidden},
	{randomness.ErrUnauthorized, http.StatusForbidden},
	{custody.ErrNotApproved, http.StatusForbidden},
	{credits.ErrNotApproved, http.StatusForbidden},

	{pool.ErrNoReservation, http.StatusNotFound},
	{registry.ErrNotTracked, http.StatusNotFound},
	{randomness.ErrUnknownRequest, http.StatusNotFound},
	{custody.ErrUnknownCollection, http.StatusNotFound},
	{custody.ErrUnknownItem, http.StatusNotFound},

	{pool.ErrReservationExists, http.StatusConflict},
	{pool.ErrAlreadySeeded, http.StatusConflict},
	{pool.ErrNotReady, http.StatusConflict},
	{pool.ErrStockout, http.StatusConflict},
	{registry.ErrAlreadyTracked, http.StatusConflict},
	{custody.ErrItemExists, http.StatusConflict},
	{custody.ErrCollectionExists, http.StatusConflict},
	{nativecommon.ErrReentrant, http.StatusConflict},

	{credits.ErrInsufficientCredits, http.StatusPaymentRequired},
	{credits.ErrBurnExceedsBalance, http.StatusPaymentRequired},
	{credits.ErrInsufficientBalance, http.StatusPaymentRequired},
	{bank.ErrInsufficientBalance, http.StatusPaymentRequired},
	{randomness.ErrInsufficientFee, http.StatusPaymentRequired},

	{nativecommon.ErrModulePaused, http.StatusServiceUnavailable},
	{context.Canceled, http.StatusServiceUnavailable},
	{context.DeadlineExceeded, http.StatusGatewayTimeout},
}

// validationSentinels are rejections of well formed but unacceptable input.
var validationSentinels = []error{
	pool.ErrInvalidQuantity, pool.ErrZeroSeed,
	registry.ErrInvalidTier, registry.ErrInvalidQuantity, registry.ErrNotCustodian, registry.ErrInsufficientStock,
	payments.ErrInvalidProof, payments.ErrBadSignature, payments.ErrWrongRecipient, payments.ErrWrongAmount,
	payments.ErrBadNonce, payments.ErrUnknownRail, payments.ErrInvalidFee, randomness.ErrInvalidFee,
	credits.ErrTokenNotAllowed, credits.ErrUneven, credits.ErrInvalidAmount,
	custody.ErrInvalidKind, custody.ErrWrongKind, custody.ErrNotOwner, custody.ErrInsufficientBalance,
	custody.ErrInvalidAmount, custody.ErrZeroRecipient, custody.ErrLengthMismatch,
	bank.ErrUnknownToken, bank.ErrInvalidAmount,
}

func statusFor(err error) int {
	var bad *badRequest
	if errors.As(err, &bad) {
		return http.StatusBadRequest
	}
	for _, entry := range statusBySentinel {
		if errors.Is(err, entry.err) {
			return entry.status
		}
	}
	for _, sentinel := range validationSentinels {
		if errors.Is(err, sentinel) {
			return http.StatusBadRequest
		}
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = http.StatusText(status)
	}
	writeJSON(w, status, errorResponse{Error: msg, RequestID: w.Header().Get("X-Request-ID")})
}

func writeResult(w http.ResponseWriter, result interface{}) {
	writeJSON(w, http.StatusOK, result)
}

// decode reads a JSON body, rejecting unknown fields.
func decode(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return invalid("invalid request body: " + err.Error())
	}
	return nil
}
