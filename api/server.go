// Package api exposes the ledger and registry over HTTP. Every mutating
// flow follows the same commit order: external validation first, then the
// ledger append, then the record-store write. A collaborator failure aborts
// before the ledger is touched.
package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"voterchain-backend/blockchain/ledger"
	"voterchain-backend/contract"
	"voterchain-backend/dedup"
	"voterchain-backend/hashing"
	"voterchain-backend/integrity"
	"voterchain-backend/metrics"
	"voterchain-backend/models"
	"voterchain-backend/pow"
	"voterchain-backend/storage"
	"voterchain-backend/store"
)

type Server struct {
	stateID    string
	ledger     *ledger.Ledger
	registry   *contract.Registry
	voters     *store.VoterStore
	verifier   *integrity.Verifier
	biometric  dedup.Verifier
	policy     dedup.Policy
	auth       *AdminAuth
	chainStore *storage.ChainStorage
	metrics    *metrics.Collector
}

type Config struct {
	StateID    string
	Ledger     *ledger.Ledger
	Registry   *contract.Registry
	Voters     *store.VoterStore
	Verifier   *integrity.Verifier
	Biometric  dedup.Verifier
	Policy     dedup.Policy
	Auth       *AdminAuth
	ChainStore *storage.ChainStorage
}

func NewServer(cfg Config) *Server {
	return &Server{
		stateID:    cfg.StateID,
		ledger:     cfg.Ledger,
		registry:   cfg.Registry,
		voters:     cfg.Voters,
		verifier:   cfg.Verifier,
		biometric:  cfg.Biometric,
		policy:     cfg.Policy,
		auth:       cfg.Auth,
		chainStore: cfg.ChainStore,
		metrics:    metrics.NewCollector(),
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Ledger node surface.
	mux.HandleFunc("GET /chain", s.handleChain)
	mux.HandleFunc("POST /transactions/new", s.handleNewTransaction)
	mux.HandleFunc("GET /verify/{voter_id}", s.handleVerifyVoter)

	// Registry surface.
	mux.HandleFunc("POST /api/register", s.timed(metrics.OpRegister, s.handleRegister))
	mux.HandleFunc("POST /api/transfer", s.timed(metrics.OpTransfer, s.handleTransfer))
	mux.HandleFunc("POST /api/vote", s.timed(metrics.OpVote, s.handleVote))
	mux.HandleFunc("GET /api/voters/{voter_id}/status", s.handleVoterStatus)
	mux.HandleFunc("GET /api/metrics", s.handleMetrics)

	// Admin surface, signature-authenticated.
	mux.HandleFunc("POST /api/admin/integrity-check", s.adminOnly(s.handleIntegrityCheck))
	mux.HandleFunc("GET /api/admin/integrity/{voter_id}", s.adminOnly(s.handleVoterIntegrity))
	mux.HandleFunc("POST /api/admin/tamper/{voter_id}", s.adminOnly(s.handleTamper))
	mux.HandleFunc("POST /api/admin/snapshot", s.adminOnly(s.handleSnapshot))
	mux.HandleFunc("GET /api/admin/credentials", s.handleCredentials)

	return mux
}

func (s *Server) Start(addr string) error {
	slog.Info("api server listening", "addr", addr, "state", s.stateID)
	return http.ListenAndServe(addr, s.Handler())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string, details any) {
	s.writeJSON(w, status, errorResponse{Error: msg, Details: details})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// timed records throughput and latency for one operation.
func (s *Server) timed(op string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		s.metrics.Observe(op, start, rec.status < http.StatusBadRequest)
	}
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidPayload):
		return http.StatusBadRequest
	case errors.Is(err, contract.ErrNotFound), errors.Is(err, store.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, contract.ErrAlreadyRegistered), errors.Is(err, contract.ErrAlreadyVoted):
		return http.StatusConflict
	case errors.Is(err, pow.ErrMiningTimeout), errors.Is(err, dedup.ErrUnavailable):
		return http.StatusServiceUnavailable
	}
	var mismatch *contract.OwnershipMismatchError
	if errors.As(err, &mismatch) {
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

func (s *Server) handleChain(w http.ResponseWriter, r *http.Request) {
	chain := s.ledger.FullChain()
	s.writeJSON(w, http.StatusOK, struct {
		Chain   []models.Block `json:"chain"`
		Length  int            `json:"length"`
		IsValid bool           `json:"is_valid"`
	}{
		Chain:   chain,
		Length:  len(chain),
		IsValid: s.ledger.CheckIntegrity(),
	})
}

type newTransactionRequest struct {
	Sender    string                    `json:"sender"`
	Recipient string                    `json:"recipient"`
	Data      models.TransactionPayload `json:"data"`
}

func (s *Server) handleNewTransaction(w http.ResponseWriter, r *http.Request) {
	var req newTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	tx := models.Transaction{
		ID:        hashing.TransactionID(req.Data.VoterID, req.Data.EventType),
		Sender:    req.Sender,
		Recipient: req.Recipient,
		Data:      req.Data,
		Timestamp: time.Now().Unix(),
	}

	block, err := s.ledger.SubmitAndSeal(r.Context(), tx)
	if err != nil {
		s.writeError(w, statusFor(err), err.Error(), nil)
		return
	}

	s.writeJSON(w, http.StatusOK, struct {
		Message         string `json:"message"`
		BlockIndex      uint64 `json:"block_index"`
		TransactionHash string `json:"transaction_hash"`
	}{
		Message:         "Transaction added and block mined",
		BlockIndex:      block.Index,
		TransactionHash: block.CurrentHash,
	})
}

func (s *Server) handleVerifyVoter(w http.ResponseWriter, r *http.Request) {
	voterID := r.PathValue("voter_id")

	history := s.ledger.FindTransactionsFor(voterID)
	if len(history) == 0 {
		s.writeError(w, http.StatusNotFound, "voter not found on chain", nil)
		return
	}

	s.writeJSON(w, http.StatusOK, struct {
		History []models.Transaction `json:"history"`
		Latest  models.Transaction   `json:"latest"`
	}{
		History: history,
		Latest:  history[len(history)-1],
	})
}

type registerRequest struct {
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	DateOfBirth  string `json:"date_of_birth"`
	AddressLine1 string `json:"address_line1"`
	AddressLine2 string `json:"address_line2,omitempty"`
	Phone        string `json:"phone,omitempty"`
	Email        string `json:"email,omitempty"`
	PhotoBase64  string `json:"photo_base64"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if req.FirstName == "" || req.LastName == "" || req.DateOfBirth == "" || req.AddressLine1 == "" {
		s.writeError(w, http.StatusBadRequest, "missing required registration fields", nil)
		return
	}

	dob, err := time.Parse("2006-01-02", req.DateOfBirth)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "date_of_birth must be YYYY-MM-DD", nil)
		return
	}

	photo, err := base64.StdEncoding.DecodeString(req.PhotoBase64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "photo_base64 is not valid base64", nil)
		return
	}

	// Duplicate screening fails closed: no decision, no registration.
	decision, err := s.biometric.Verify(r.Context(), photo, "")
	if err != nil {
		s.writeError(w, statusFor(err), "biometric service unavailable", nil)
		return
	}
	if decision.MatchedVoterID != "" && decision.Confidence > s.policy.ConfidenceFloor {
		s.writeError(w, http.StatusConflict, "duplicate voter detected", map[string]any{
			"matched_voter_id": decision.MatchedVoterID,
			"confidence":       decision.Confidence,
		})
		return
	}

	voterID := uuid.New().String()
	rec := &models.VoterRecord{
		VoterID:      voterID,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		DateOfBirth:  dob,
		StateID:      s.stateID,
		AddressLine1: req.AddressLine1,
		AddressLine2: req.AddressLine2,
		Phone:        req.Phone,
		Email:        req.Email,
		Status:       string(models.StatusActive),
	}

	dataHash, err := hashing.Hash(rec.Canonical())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to hash voter record", nil)
		return
	}

	result, err := s.registry.Register(r.Context(), voterID, dataHash, s.stateID)
	if err != nil {
		s.writeError(w, statusFor(err), err.Error(), nil)
		return
	}

	// Record-store write happens only after ledger acceptance.
	rec.Metadata = map[string]string{"registered_tx": result.TransactionID}
	if err := s.voters.Put(rec); err != nil {
		slog.Error("record store write failed after ledger commit", "voter_id", voterID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "voter sealed on chain but record store write failed", nil)
		return
	}

	s.writeJSON(w, http.StatusOK, struct {
		VoterID               string `json:"voter_id"`
		Status                string `json:"status"`
		Message               string `json:"message"`
		BlockchainTransaction string `json:"blockchain_transaction_id"`
		BlockIndex            uint64 `json:"block_index"`
	}{
		VoterID:               voterID,
		Status:                "SUCCESS",
		Message:               "Voter registered on ledger",
		BlockchainTransaction: result.TransactionID,
		BlockIndex:            result.BlockIndex,
	})
}

type transferRequest struct {
	VoterID         string `json:"voter_id"`
	FromState       string `json:"from_state"`
	ToState         string `json:"to_state"`
	NewAddressLine1 string `json:"new_address_line1,omitempty"`
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	rec, err := s.voters.ReadCanonicalRecord(req.VoterID)
	if err != nil {
		s.writeError(w, statusFor(err), err.Error(), nil)
		return
	}

	// Hash the post-transfer record so the chain seals the new state.
	updated := *rec
	updated.StateID = req.ToState
	if req.NewAddressLine1 != "" {
		updated.AddressLine1 = req.NewAddressLine1
	}
	newHash, err := hashing.Hash(updated.Canonical())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to hash voter record", nil)
		return
	}

	result, err := s.registry.Transfer(r.Context(), req.VoterID, req.FromState, req.ToState, newHash)
	if err != nil {
		var mismatch *contract.OwnershipMismatchError
		if errors.As(err, &mismatch) {
			s.writeError(w, http.StatusForbidden, "ownership verification failed", map[string]string{
				"current_owner": mismatch.CurrentOwner,
				"claimed":       mismatch.Claimed,
			})
			return
		}
		s.writeError(w, statusFor(err), err.Error(), nil)
		return
	}

	updated.Status = string(models.StatusActive)
	if updated.Metadata == nil {
		updated.Metadata = map[string]string{}
	}
	updated.Metadata["transferred_tx"] = result.TransactionID
	if err := s.voters.Put(&updated); err != nil {
		slog.Error("record store write failed after ledger commit", "voter_id", req.VoterID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "transfer sealed on chain but record store write failed", nil)
		return
	}

	s.writeJSON(w, http.StatusOK, struct {
		VoterID               string `json:"voter_id"`
		FromState             string `json:"from_state"`
		ToState               string `json:"to_state"`
		Status                string `json:"status"`
		BlockchainTransaction string `json:"blockchain_transaction_id"`
	}{
		VoterID:               req.VoterID,
		FromState:             result.FromState,
		ToState:               result.ToState,
		Status:                "SUCCESS",
		BlockchainTransaction: result.TransactionID,
	})
}

type voteRequest struct {
	VoterID        string `json:"voter_id"`
	PollingBoothID string `json:"polling_booth_id"`
	PhotoBase64    string `json:"photo_base64"`
}

func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	var req voteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	if _, err := s.voters.ReadCanonicalRecord(req.VoterID); err != nil {
		s.writeError(w, statusFor(err), err.Error(), nil)
		return
	}

	photo, err := base64.StdEncoding.DecodeString(req.PhotoBase64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "photo_base64 is not valid base64", nil)
		return
	}

	decision, err := s.biometric.Verify(r.Context(), photo, req.VoterID)
	if err != nil {
		s.writeError(w, statusFor(err), "biometric service unavailable", nil)
		return
	}
	if !s.policy.Admit(decision, req.VoterID) {
		s.writeError(w, http.StatusUnauthorized, "biometric verification failed", map[string]any{
			"confidence": decision.Confidence,
		})
		return
	}

	result, err := s.registry.MarkVoted(r.Context(), req.VoterID, s.stateID, req.PollingBoothID)
	if err != nil {
		var dv *contract.DoubleVoteError
		if errors.As(err, &dv) {
			s.writeError(w, http.StatusConflict, "double voting prevented", map[string]string{
				"voted_at": dv.VotedAt.Format(time.RFC3339),
			})
			return
		}
		var mismatch *contract.OwnershipMismatchError
		if errors.As(err, &mismatch) {
			s.writeError(w, http.StatusForbidden, "voter is owned by another jurisdiction", map[string]string{
				"current_owner": mismatch.CurrentOwner,
			})
			return
		}
		s.writeError(w, statusFor(err), err.Error(), nil)
		return
	}

	if err := s.voters.WriteStatus(req.VoterID, string(models.StatusVoted), map[string]string{
		"voted_tx": result.TransactionID,
	}); err != nil {
		slog.Error("record store write failed after ledger commit", "voter_id", req.VoterID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "vote sealed on chain but record store write failed", nil)
		return
	}

	s.writeJSON(w, http.StatusOK, struct {
		VoterID               string    `json:"voter_id"`
		Status                string    `json:"status"`
		Message               string    `json:"message"`
		BlockchainTransaction string    `json:"blockchain_transaction_id"`
		VotedAt               time.Time `json:"voted_at"`
	}{
		VoterID:               req.VoterID,
		Status:                "SUCCESS",
		Message:               "Vote recorded",
		BlockchainTransaction: result.TransactionID,
		VotedAt:               result.VotedAt,
	})
}

func (s *Server) handleVoterStatus(w http.ResponseWriter, r *http.Request) {
	voterID := r.PathValue("voter_id")

	rec, err := s.voters.ReadCanonicalRecord(voterID)
	if err != nil {
		s.writeError(w, statusFor(err), err.Error(), nil)
		return
	}

	asset, err := s.registry.Asset(voterID)
	if err != nil {
		s.writeError(w, statusFor(err), err.Error(), nil)
		return
	}

	s.writeJSON(w, http.StatusOK, struct {
		VoterID      string `json:"voter_id"`
		Name         string `json:"name"`
		Status       string `json:"status"`
		CurrentState string `json:"current_state"`
		IsVoted      bool   `json:"is_voted"`
		CanVote      bool   `json:"can_vote"`
	}{
		VoterID:      voterID,
		Name:         rec.FirstName + " " + rec.LastName,
		Status:       string(asset.Status),
		CurrentState: asset.CurrentOwnerState,
		IsVoted:      asset.IsVoted,
		CanVote:      !asset.IsVoted && asset.CurrentOwnerState == s.stateID,
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}

// adminOnly gates a handler behind signature authentication. The signature
// covers the method and path, so a captured header cannot be replayed
// against another endpoint.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sig := r.Header.Get("X-Admin-Signature")
		if sig == "" || !s.auth.Verify(r.Method, r.URL.Path, sig) {
			s.writeError(w, http.StatusUnauthorized, "admin signature required", nil)
			return
		}
		next(w, r)
	}
}

type integrityEntry struct {
	VoterID      string                 `json:"voter_id"`
	Name         string                 `json:"name"`
	Report       models.IntegrityReport `json:"report"`
	HashMismatch bool                   `json:"hash_mismatch"`
}

func (s *Server) handleIntegrityCheck(w http.ResponseWriter, r *http.Request) {
	report := make([]integrityEntry, 0)
	err := s.voters.All(func(rec *models.VoterRecord) error {
		res := s.verifier.VerifyRecord(rec)
		report = append(report, integrityEntry{
			VoterID: rec.VoterID,
			Name:    rec.FirstName + " " + rec.LastName,
			Report:  res,
			HashMismatch: res.Status == models.IntegrityTampered ||
				res.Status == models.IntegritySimulated,
		})
		return nil
	})
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleVoterIntegrity(w http.ResponseWriter, r *http.Request) {
	rec, err := s.voters.ReadCanonicalRecord(r.PathValue("voter_id"))
	if err != nil {
		s.writeError(w, statusFor(err), err.Error(), nil)
		return
	}
	s.writeJSON(w, http.StatusOK, s.verifier.VerifyRecord(rec))
}

func (s *Server) handleTamper(w http.ResponseWriter, r *http.Request) {
	voterID := r.PathValue("voter_id")

	if err := s.voters.Tamper(voterID, "HACKED ADDRESS #999"); err != nil {
		s.writeError(w, statusFor(err), err.Error(), nil)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{
		"message":           fmt.Sprintf("voter %s record altered locally; ledger remains immutable", voterID),
		"blockchain_status": "unchanged",
	})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	path, err := s.chainStore.ExportSnapshot(s.ledger.FullChain())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"snapshot": path})
}

func (s *Server) handleCredentials(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"address":    s.auth.Address(),
		"public_key": s.auth.PublicKeyHex(),
	})
}
