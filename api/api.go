/*
Package api exposes token operations over HTTP.

All amounts are decimal strings of raw token units. Mutating requests are
executed on behalf of the caller determined by CallerResolver, the resolved
identity is trusted as is.
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/token-ledger/account"
	"github.com/nspcc-dev/token-ledger/metrics"
	"github.com/nspcc-dev/token-ledger/token"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Ledger is a token served by the API.
type Ledger interface {
	token.Token
	Info() token.Info
}

// CallerResolver determines the account on whose behalf the request is made.
type CallerResolver interface {
	Caller(r *http.Request) (util.Uint160, error)
}

// HeaderResolver takes caller account from the request header.
type HeaderResolver string

// Caller implements CallerResolver.
func (h HeaderResolver) Caller(r *http.Request) (util.Uint160, error) {
	v := r.Header.Get(string(h))
	if v == "" {
		return util.Uint160{}, fmt.Errorf("missing %s header", string(h))
	}

	acc, err := account.Parse(v)
	if err != nil {
		return util.Uint160{}, fmt.Errorf("invalid %s header: %w", string(h), err)
	}

	return acc, nil
}

// Prm groups Handler parameters.
type Prm struct {
	Ledger Ledger
	Caller CallerResolver

	// Optional logger, no-op by default.
	Logger *zap.Logger

	// Optional metrics source served at /metrics.
	Gatherer prometheus.Gatherer
}

type server struct {
	ledger Ledger
	caller CallerResolver
	log    *zap.Logger
}

// NewHandler returns HTTP handler of the token API:
//
//	GET  /token
//	GET  /balances/{account}
//	GET  /allowances/{owner}/{delegate}
//	POST /transfer        {"to", "amount"}
//	POST /transfer-from   {"from", "to", "amount"}
//	POST /mint            {"amount"}
//	POST /burn            {"amount"}
//	POST /approve         {"delegate", "amount"}
//	POST /approve/update  {"delegate", "delta"}
//	GET  /metrics
func NewHandler(prm Prm) http.Handler {
	s := &server{
		ledger: prm.Ledger,
		caller: prm.Caller,
		log:    prm.Logger,
	}

	if s.log == nil {
		s.log = zap.NewNop()
	}

	r := mux.NewRouter()

	r.HandleFunc("/token", s.handleToken).Methods(http.MethodGet)
	r.HandleFunc("/balances/{account}", s.handleBalance).Methods(http.MethodGet)
	r.HandleFunc("/allowances/{owner}/{delegate}", s.handleAllowance).Methods(http.MethodGet)

	r.HandleFunc("/transfer", s.handleTransfer).Methods(http.MethodPost)
	r.HandleFunc("/transfer-from", s.handleTransferFrom).Methods(http.MethodPost)
	r.HandleFunc("/mint", s.handleMint).Methods(http.MethodPost)
	r.HandleFunc("/burn", s.handleBurn).Methods(http.MethodPost)
	r.HandleFunc("/approve", s.handleApprove).Methods(http.MethodPost)
	r.HandleFunc("/approve/update", s.handleUpdateApprove).Methods(http.MethodPost)

	if prm.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(prm.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	return r
}

// Amount is a JSON-encoded decimal integer.
type Amount struct {
	*big.Int
}

// MarshalJSON implements json.Marshaler.
func (a Amount) MarshalJSON() ([]byte, error) {
	if a.Int == nil {
		return []byte(`"0"`), nil
	}
	return json.Marshal(a.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("amount must be a decimal string: %w", err)
	}

	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return fmt.Errorf("invalid amount %q", s)
	}

	a.Int = v
	return nil
}

// TokenResponse describes the token.
type TokenResponse struct {
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Decimals    int    `json:"decimals"`
	TotalSupply Amount `json:"totalSupply"`
	Version     int    `json:"version"`
	Protocol    string `json:"protocol"`
}

// BalanceResponse is a balance of the account.
type BalanceResponse struct {
	Account string `json:"account"`
	Balance Amount `json:"balance"`
}

// AllowanceResponse is an allowance given by owner to delegate.
type AllowanceResponse struct {
	Owner     string `json:"owner"`
	Delegate  string `json:"delegate"`
	Allowance Amount `json:"allowance"`
}

// TransferRequest is a body of /transfer and /transfer-from requests.
type TransferRequest struct {
	From   string `json:"from,omitempty"`
	To     string `json:"to"`
	Amount Amount `json:"amount"`
}

// SupplyRequest is a body of /mint and /burn requests.
type SupplyRequest struct {
	Amount Amount `json:"amount"`
}

// SupplyResponse contains total supply after mint or burn.
type SupplyResponse struct {
	TotalSupply Amount `json:"totalSupply"`
}

// ApproveRequest is a body of /approve and /approve/update requests.
type ApproveRequest struct {
	Delegate string `json:"delegate"`
	Amount   Amount `json:"amount,omitempty"`
	Delta    Amount `json:"delta,omitempty"`
}

// ErrorResponse describes failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	// Machine-readable failure reason.
	Code string `json:"code"`
}

var errBadRequest = errors.New("bad request")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *server) writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", zap.Error(err))
	}

	code := metrics.Result(err)
	if errors.Is(err, errBadRequest) {
		code = "bad_request"
	}

	writeJSON(w, status, ErrorResponse{Error: err.Error(), Code: code})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, token.ErrInvalidAmount),
		errors.Is(err, token.ErrInvalidRecipient):
		return http.StatusBadRequest
	case errors.Is(err, token.ErrInsufficientFunds),
		errors.Is(err, token.ErrInsufficientAllowance):
		return http.StatusUnprocessableEntity
	case errors.Is(err, token.ErrOperationDisabled):
		return http.StatusForbidden
	case errors.Is(err, token.ErrAlreadyInitialized):
		return http.StatusConflict
	case errors.Is(err, token.ErrNotInitialized):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
