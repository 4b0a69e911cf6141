package rpc

import (
	"fmt"
	"net/http"

	"farmmarket/crypto"
)

type balanceParams struct {
	Address string `json:"address"`
}

type faucetParams struct {
	Address string `json:"address"`
	Amount  uint64 `json:"amount"`
}

type balanceResult struct {
	Address string `json:"address"`
	Balance uint64 `json:"balance"`
}

type supplyResult struct {
	TotalSupply uint64 `json:"totalSupply"`
}

func (s *Server) handleBalance(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params balanceParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	addr, err := crypto.ParseAddress(params.Address)
	if err != nil {
		writeInvalidParams(w, req.ID, fmt.Errorf("address: %w", err))
		return
	}
	balance, err := s.engine.Balance(addr)
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, balanceResult{Address: crypto.FormatAddress(addr), Balance: balance})
}

func (s *Server) handleTotalSupply(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	supply, err := s.engine.TotalSupply()
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, supplyResult{TotalSupply: supply})
}

// handleFaucet mints test tokens. It is only reachable when the node enables
// the faucet.
func (s *Server) handleFaucet(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if !s.cfg.FaucetEnabled {
		writeError(w, http.StatusForbidden, req.ID, codeMarketForbidden, "forbidden", "faucet disabled")
		return
	}
	var params faucetParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	addr, err := crypto.ParseAddress(params.Address)
	if err != nil {
		writeInvalidParams(w, req.ID, fmt.Errorf("address: %w", err))
		return
	}
	if params.Amount == 0 {
		writeInvalidParams(w, req.ID, fmt.Errorf("amount must be positive"))
		return
	}
	if s.cfg.FaucetMaxAmount > 0 && params.Amount > s.cfg.FaucetMaxAmount {
		writeInvalidParams(w, req.ID, fmt.Errorf("amount exceeds faucet limit %d", s.cfg.FaucetMaxAmount))
		return
	}
	if err := s.engine.Faucet(addr, params.Amount); err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	balance, err := s.engine.Balance(addr)
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, balanceResult{Address: crypto.FormatAddress(addr), Balance: balance})
}
