package api

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/token-ledger/account"
)

const maxBodySize = 1 << 16

func (s *server) handleToken(w http.ResponseWriter, _ *http.Request) {
	info := s.ledger.Info()

	writeJSON(w, http.StatusOK, TokenResponse{
		Name:        info.Name,
		Symbol:      info.Symbol,
		Decimals:    info.Decimals,
		TotalSupply: Amount{info.TotalSupply},
		Version:     info.Version,
		Protocol:    info.Protocol,
	})
}

func (s *server) handleBalance(w http.ResponseWriter, r *http.Request) {
	acc, err := parseAccount(mux.Vars(r)["account"], "account")
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, BalanceResponse{
		Account: account.String(acc),
		Balance: Amount{s.ledger.BalanceOf(acc)},
	})
}

func (s *server) handleAllowance(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	owner, err := parseAccount(vars["owner"], "owner")
	if err != nil {
		s.writeError(w, err)
		return
	}

	delegate, err := parseAccount(vars["delegate"], "delegate")
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, AllowanceResponse{
		Owner:     account.String(owner),
		Delegate:  account.String(delegate),
		Allowance: Amount{s.ledger.Allowance(owner, delegate)},
	})
}

func (s *server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest

	caller, ok := s.decode(w, r, &req)
	if !ok {
		return
	}

	to, err := parseAccount(req.To, "to")
	if err != nil {
		s.writeError(w, err)
		return
	}

	if err = s.ledger.Transfer(caller, to, req.Amount.Int); err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, BalanceResponse{
		Account: account.String(caller),
		Balance: Amount{s.ledger.BalanceOf(caller)},
	})
}

func (s *server) handleTransferFrom(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest

	caller, ok := s.decode(w, r, &req)
	if !ok {
		return
	}

	from, err := parseAccount(req.From, "from")
	if err != nil {
		s.writeError(w, err)
		return
	}

	to, err := parseAccount(req.To, "to")
	if err != nil {
		s.writeError(w, err)
		return
	}

	if err = s.ledger.TransferFrom(caller, from, to, req.Amount.Int); err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, AllowanceResponse{
		Owner:     account.String(from),
		Delegate:  account.String(caller),
		Allowance: Amount{s.ledger.Allowance(from, caller)},
	})
}

func (s *server) handleMint(w http.ResponseWriter, r *http.Request) {
	s.handleSupply(w, r, s.ledger.Mint)
}

func (s *server) handleBurn(w http.ResponseWriter, r *http.Request) {
	s.handleSupply(w, r, s.ledger.Burn)
}

func (s *server) handleSupply(w http.ResponseWriter, r *http.Request, op func(util.Uint160, *big.Int) (*big.Int, error)) {
	var req SupplyRequest

	caller, ok := s.decode(w, r, &req)
	if !ok {
		return
	}

	supply, err := op(caller, req.Amount.Int)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, SupplyResponse{TotalSupply: Amount{supply}})
}

func (s *server) handleApprove(w http.ResponseWriter, r *http.Request) {
	var req ApproveRequest

	caller, ok := s.decode(w, r, &req)
	if !ok {
		return
	}

	delegate, err := parseAccount(req.Delegate, "delegate")
	if err != nil {
		s.writeError(w, err)
		return
	}

	if err = s.ledger.Approve(caller, delegate, req.Amount.Int); err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, AllowanceResponse{
		Owner:     account.String(caller),
		Delegate:  account.String(delegate),
		Allowance: Amount{s.ledger.Allowance(caller, delegate)},
	})
}

func (s *server) handleUpdateApprove(w http.ResponseWriter, r *http.Request) {
	var req ApproveRequest

	caller, ok := s.decode(w, r, &req)
	if !ok {
		return
	}

	delegate, err := parseAccount(req.Delegate, "delegate")
	if err != nil {
		s.writeError(w, err)
		return
	}

	res, err := s.ledger.UpdateApprove(caller, delegate, req.Delta.Int)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, AllowanceResponse{
		Owner:     account.String(caller),
		Delegate:  account.String(delegate),
		Allowance: Amount{res},
	})
}

// decode resolves the caller and reads request body into v. Errors are
// written to w.
func (s *server) decode(w http.ResponseWriter, r *http.Request, v any) (util.Uint160, bool) {
	caller, err := s.caller.Caller(r)
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: %w", errBadRequest, err))
		return util.Uint160{}, false
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.DisallowUnknownFields()

	if err = dec.Decode(v); err != nil {
		s.writeError(w, fmt.Errorf("%w: decode body: %w", errBadRequest, err))
		return util.Uint160{}, false
	}

	return caller, true
}

func parseAccount(s, field string) (util.Uint160, error) {
	if s == "" {
		return util.Uint160{}, fmt.Errorf("%w: missing %s", errBadRequest, field)
	}

	acc, err := account.Parse(s)
	if err != nil {
		return util.Uint160{}, fmt.Errorf("%w: %s: %w", errBadRequest, field, err)
	}

	return acc, nil
}
