// Package api exposes the ledger's four commands and three queries as a
// JSON-over-HTTP surface, plus a websocket event stream. It plays the
// host role from the ledger's point of view: callers are identified by
// an explicit account parameter (signature verification is out of
// scope) and mutating calls are serialized so each one runs to
// completion atomically with respect to the others.
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/dlebee/erc20/internal/domain"
	"github.com/dlebee/erc20/internal/ledger"
	"github.com/dlebee/erc20/internal/observability"
	"github.com/dlebee/erc20/internal/storage"
)

// Machine-readable error codes returned in the response body.
const (
	codeInsufficientBalance   = "INSUFFICIENT_BALANCE"
	codeInsufficientAllowance = "INSUFFICIENT_ALLOWANCE"
	codeBalanceOverflow       = "BALANCE_OVERFLOW"
	codeBadRequest            = "BAD_REQUEST"
	codeInternal              = "INTERNAL"
)

// Server handles the HTTP surface of the ledger.
type Server struct {
	ledger  *ledger.Ledger
	journal storage.EventJournal
	hub     *Hub
	metrics *observability.Metrics
	logger  *log.Logger

	// Serializes mutating calls: one logical thread per ledger instance.
	mu sync.Mutex
}

// NewServer creates a new API server.
func NewServer(l *ledger.Ledger, journal storage.EventJournal, hub *Hub, metrics *observability.Metrics, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.Writer(), "[api] ", log.LstdFlags|log.Lshortfile)
	}
	s := &Server{
		ledger:  l,
		journal: journal,
		hub:     hub,
		metrics: metrics,
		logger:  logger,
	}
	if hub != nil && metrics != nil {
		hub.onClientChange = func(delta int) {
			metrics.StreamClients.Add(float64(delta))
		}
	}
	return s
}

// Routes returns the HTTP mux for the server.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/transfer", s.instrument("transfer", s.handleTransfer))
	mux.HandleFunc("POST /v1/approve", s.instrument("approve", s.handleApprove))
	mux.HandleFunc("POST /v1/transfer_from", s.instrument("transfer_from", s.handleTransferFrom))

	mux.HandleFunc("GET /v1/supply", s.instrument("supply", s.handleSupply))
	mux.HandleFunc("GET /v1/balance/{account}", s.instrument("balance", s.handleBalance))
	mux.HandleFunc("GET /v1/allowance/{owner}/{spender}", s.instrument("allowance", s.handleAllowance))
	mux.HandleFunc("GET /v1/events/{account}", s.instrument("events", s.handleEvents))

	if s.hub != nil {
		mux.HandleFunc("GET /v1/events/stream", func(w http.ResponseWriter, r *http.Request) {
			s.hub.ServeStream(w, r)
		})
	}

	mux.HandleFunc("GET /healthz", s.handleHealthz)

	return mux
}

// instrument records request duration per route.
func (s *Server) instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	if s.metrics == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next(w, r)
		s.metrics.RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

type transferRequest struct {
	Caller domain.AccountID `json:"caller"`
	To     domain.AccountID `json:"to"`
	Value  uint64           `json:"value"`
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Caller.IsZero() || req.To.IsZero() {
		s.writeError(w, http.StatusBadRequest, codeBadRequest, "caller and to are required")
		return
	}

	s.mu.Lock()
	err := s.ledger.Transfer(r.Context(), req.Caller, req.To, req.Value)
	s.mu.Unlock()

	s.finishCommand(w, "transfer", req.Value, err)
}

type approveRequest struct {
	Caller  domain.AccountID `json:"caller"`
	Spender domain.AccountID `json:"spender"`
	Value   uint64           `json:"value"`
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Caller.IsZero() || req.Spender.IsZero() {
		s.writeError(w, http.StatusBadRequest, codeBadRequest, "caller and spender are required")
		return
	}

	s.mu.Lock()
	err := s.ledger.Approve(r.Context(), req.Caller, req.Spender, req.Value)
	s.mu.Unlock()

	s.finishCommand(w, "approve", 0, err)
}

type transferFromRequest struct {
	Caller domain.AccountID `json:"caller"`
	From   domain.AccountID `json:"from"`
	To     domain.AccountID `json:"to"`
	Value  uint64           `json:"value"`
}

func (s *Server) handleTransferFrom(w http.ResponseWriter, r *http.Request) {
	var req transferFromRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Caller.IsZero() || req.From.IsZero() || req.To.IsZero() {
		s.writeError(w, http.StatusBadRequest, codeBadRequest, "caller, from and to are required")
		return
	}

	s.mu.Lock()
	err := s.ledger.TransferFrom(r.Context(), req.Caller, req.From, req.To, req.Value)
	s.mu.Unlock()

	s.finishCommand(w, "transfer_from", req.Value, err)
}

func (s *Server) handleSupply(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]uint64{"total_supply": s.ledger.TotalSupply()})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	account, err := domain.ParseAccountID(r.PathValue("account"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}

	balance, err := s.ledger.BalanceOf(r.Context(), account)
	if err != nil {
		s.internalError(w, "balance query", err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"account": account,
		"balance": balance,
	})
}

func (s *Server) handleAllowance(w http.ResponseWriter, r *http.Request) {
	owner, err := domain.ParseAccountID(r.PathValue("owner"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	spender, err := domain.ParseAccountID(r.PathValue("spender"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}

	allowance, err := s.ledger.Allowance(r.Context(), owner, spender)
	if err != nil {
		s.internalError(w, "allowance query", err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"owner":     owner,
		"spender":   spender,
		"allowance": allowance,
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		s.writeError(w, http.StatusNotFound, codeBadRequest, "event journal not configured")
		return
	}

	account, err := domain.ParseAccountID(r.PathValue("account"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}

	events, err := s.journal.GetByAccount(r.Context(), account)
	if err != nil {
		s.internalError(w, "events query", err)
		return
	}
	if events == nil {
		events = []*domain.Event{}
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decode reads a JSON body, answering 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return false
	}
	return true
}

// finishCommand maps a command result to a response and records metrics.
func (s *Server) finishCommand(w http.ResponseWriter, op string, value uint64, err error) {
	status := "ok"
	defer func() {
		if s.metrics != nil {
			s.metrics.OperationsTotal.WithLabelValues(op, status).Inc()
		}
	}()

	switch {
	case err == nil:
		if s.metrics != nil && value > 0 && op != "approve" {
			s.metrics.TransferredValue.Add(float64(value))
		}
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	case errors.Is(err, ledger.ErrInsufficientBalance):
		status = "insufficient_balance"
		s.writeError(w, http.StatusUnprocessableEntity, codeInsufficientBalance, err.Error())
	case errors.Is(err, ledger.ErrInsufficientAllowance):
		status = "insufficient_allowance"
		s.writeError(w, http.StatusUnprocessableEntity, codeInsufficientAllowance, err.Error())
	case errors.Is(err, ledger.ErrBalanceOverflow):
		status = "overflow"
		s.writeError(w, http.StatusUnprocessableEntity, codeBalanceOverflow, err.Error())
	default:
		status = "error"
		s.internalError(w, op, err)
	}
}

func (s *Server) internalError(w http.ResponseWriter, op string, err error) {
	s.logger.Printf("%s: %v", op, err)
	s.writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Printf("encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, map[string]string{
		"error":   code,
		"message": message,
	})
}
