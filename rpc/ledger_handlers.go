package rpc

import (
	"errors"
	"net/http"

	"fanvault/native/ledger"
)

type subOpenParams struct {
	Caller       string `json:"caller"`
	Creator      string `json:"creator"`
	PeriodAmount string `json:"periodAmount"`
	Amount       string `json:"amount"`
}

type subClaimParams struct {
	Caller string `json:"caller"`
	Fan    string `json:"fan"`
}

type subCancelParams struct {
	Caller  string `json:"caller"`
	Creator string `json:"creator"`
}

type subGetParams struct {
	Fan     string `json:"fan"`
	Creator string `json:"creator"`
}

type balanceParams struct {
	Address string `json:"address"`
}

type recentEventsParams struct {
	Limit int `json:"limit,omitempty"`
}

type subDepositResult struct {
	Payer            string `json:"payer"`
	Payee            string `json:"payee"`
	TotalDeposited   string `json:"totalDeposited"`
	RemainingBalance string `json:"remainingBalance"`
	RatePerSecond    string `json:"ratePerSecond"`
	LastSettledAt    int64  `json:"lastSettledAt"`
	OpenedAt         int64  `json:"openedAt"`
	Active           bool   `json:"active"`
}

type subClaimResult struct {
	Fan       string `json:"fan"`
	Creator   string `json:"creator"`
	Claimed   string `json:"claimed"`
	Remaining string `json:"remaining"`
}

type subCancelResult struct {
	Fan     string `json:"fan"`
	Creator string `json:"creator"`
	Settled string `json:"settled"`
	Refund  string `json:"refund"`
}

type balanceResult struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
}

func formatDeposit(deposit *ledger.Deposit) subDepositResult {
	return subDepositResult{
		Payer:            formatAddr(deposit.Payer),
		Payee:            formatAddr(deposit.Payee),
		TotalDeposited:   bigString(deposit.TotalDeposited),
		RemainingBalance: bigString(deposit.RemainingBalance),
		RatePerSecond:    bigString(deposit.RatePerSecond),
		LastSettledAt:    deposit.LastSettledAt,
		OpenedAt:         deposit.OpenedAt,
		Active:           deposit.Active(),
	}
}

func ledgerErrorStatus(err error) (int, int, string) {
	switch {
	case errors.Is(err, ledger.ErrPayeeNotFound):
		return http.StatusNotFound, codeInvalidParams, "payee not registered"
	case errors.Is(err, ledger.ErrAlreadyActive):
		return http.StatusConflict, codeInvalidParams, "deposit already active"
	case errors.Is(err, ledger.ErrInsufficientPayment):
		return http.StatusBadRequest, codeInvalidParams, "deposit below period amount"
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return http.StatusBadRequest, codeInvalidParams, "insufficient balance"
	case errors.Is(err, ledger.ErrNoActiveDeposit):
		return http.StatusNotFound, codeInvalidParams, "no active deposit"
	case errors.Is(err, ledger.ErrTransferFailed):
		return http.StatusConflict, codeServerError, "transfer failed"
	default:
		return http.StatusInternalServerError, codeServerError, "operation failed"
	}
}

func (s *Server) handleSubscriptionOpen(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params subOpenParams
	if err := singleParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	payer, err := decodeAddr(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	payee, err := decodeAddr(params.Creator)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid creator address", err.Error())
		return
	}
	periodAmount, err := parseAmount(params.PeriodAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	deposit, err := s.node.SubscriptionOpen(payer, payee, periodAmount, amount)
	if err != nil {
		status, code, message := ledgerErrorStatus(err)
		writeError(w, status, req.ID, code, message, err.Error())
		return
	}
	writeResult(w, req.ID, formatDeposit(deposit))
}

func (s *Server) handleSubscriptionClaim(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params subClaimParams
	if err := singleParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	payee, err := decodeAddr(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	payer, err := decodeAddr(params.Fan)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid fan address", err.Error())
		return
	}
	claimed, deposit, err := s.node.SubscriptionClaim(payer, payee)
	if err != nil {
		status, code, message := ledgerErrorStatus(err)
		writeError(w, status, req.ID, code, message, err.Error())
		return
	}
	writeResult(w, req.ID, subClaimResult{
		Fan:       params.Fan,
		Creator:   params.Caller,
		Claimed:   bigString(claimed),
		Remaining: bigString(deposit.RemainingBalance),
	})
}

func (s *Server) handleSubscriptionCancel(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params subCancelParams
	if err := singleParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	payer, err := decodeAddr(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	payee, err := decodeAddr(params.Creator)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid creator address", err.Error())
		return
	}
	refund, settled, err := s.node.SubscriptionCancel(payer, payee)
	if err != nil {
		status, code, message := ledgerErrorStatus(err)
		writeError(w, status, req.ID, code, message, err.Error())
		return
	}
	writeResult(w, req.ID, subCancelResult{
		Fan:     params.Caller,
		Creator: params.Creator,
		Settled: bigString(settled),
		Refund:  bigString(refund),
	})
}

func (s *Server) handleSubscriptionGet(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params subGetParams
	if err := singleParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	payer, err := decodeAddr(params.Fan)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid fan address", err.Error())
		return
	}
	payee, err := decodeAddr(params.Creator)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid creator address", err.Error())
		return
	}
	deposit, err := s.node.SubscriptionGet(payer, payee)
	if err != nil {
		status, code, message := ledgerErrorStatus(err)
		writeError(w, status, req.ID, code, message, err.Error())
		return
	}
	writeResult(w, req.ID, formatDeposit(deposit))
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params balanceParams
	if err := singleParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	addr, err := decodeAddr(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address", err.Error())
		return
	}
	balance, err := s.node.Balance(addr)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to load balance", err.Error())
		return
	}
	writeResult(w, req.ID, balanceResult{Address: params.Address, Balance: bigString(balance)})
}

func (s *Server) handleRecentEvents(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	params := recentEventsParams{}
	if len(req.Params) > 0 {
		if err := singleParams(req, &params); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
			return
		}
	}
	writeResult(w, req.ID, s.node.RecentEvents(params.Limit))
}
