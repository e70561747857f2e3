// Package api is the HTTP admission endpoint collaborator: a thin chi
// router exposing transaction admission and block/transaction lookups. It
// is not one of the core's C1-C9 components; it carries none of the
// consensus/state logic itself, only translating HTTP requests into calls
// against the core's mempool and indexer.
package api

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"meridian/core"
)

// envelope is the structured response shape: status=error responses carry
// a human-readable message; successful responses carry data.
type envelope struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// Server wires the admission/query HTTP surface to the core collaborators.
type Server struct {
	Mempool *core.Mempool
	Indexer *core.Indexer
	logger  *log.Logger
	router  chi.Router
}

// NewServer builds the chi router. logger may be nil (falls back to the
// standard logrus logger).
func NewServer(mempool *core.Mempool, indexer *core.Indexer, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.StandardLogger()
	}
	s := &Server{Mempool: mempool, Indexer: indexer, logger: logger}
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Post("/tx", s.handleSubmitTx)
	r.Get("/block/{height}", s.handleGetBlock)
	r.Get("/tx/{hash}", s.handleGetTx)
	s.router = r
	return s
}

// ServeHTTP lets Server be used directly as an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.router.ServeHTTP(w, r) }

func writeJSON(w http.ResponseWriter, status int, env envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

func (s *Server) handleSubmitTx(w http.ResponseWriter, r *http.Request) {
	var tx core.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{Status: "error", Message: "malformed transaction body"})
		return
	}
	h, err := s.Mempool.Add(&tx)
	if err != nil {
		s.logger.Warnf("api: tx admission rejected: %v", err)
		writeJSON(w, http.StatusBadRequest, envelope{Status: "error", Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, envelope{Status: "ok", Data: map[string]string{"hash": h.Hex()}})
}

func (s *Server) handleGetBlock(w http.ResponseWriter, r *http.Request) {
	height, err := strconv.ParseUint(chi.URLParam(r, "height"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{Status: "error", Message: "malformed height"})
		return
	}
	b, err := s.Indexer.BlockByNumber(height)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, envelope{Status: "error", Message: "block not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, envelope{Status: "error", Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, envelope{Status: "ok", Data: b})
}

func (s *Server) handleGetTx(w http.ResponseWriter, r *http.Request) {
	raw, err := hex.DecodeString(chi.URLParam(r, "hash"))
	if err != nil || len(raw) != 32 {
		writeJSON(w, http.StatusBadRequest, envelope{Status: "error", Message: "malformed transaction hash"})
		return
	}
	var h core.Hash
	copy(h[:], raw)
	tx, blockHash, number, index, err := s.Indexer.TxLocation(h)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, envelope{Status: "error", Message: "transaction not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, envelope{Status: "error", Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, envelope{Status: "ok", Data: map[string]any{
		"transaction": tx, "block_hash": blockHash, "block_number": number, "index": index,
	}})
}
