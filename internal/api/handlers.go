package api

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/iamzubin/dodo-ledger/internal/authgate"
	"github.com/iamzubin/dodo-ledger/internal/config"
	"github.com/iamzubin/dodo-ledger/internal/domain"
	"github.com/iamzubin/dodo-ledger/internal/ledger"
	"github.com/iamzubin/dodo-ledger/internal/logging"
	"github.com/iamzubin/dodo-ledger/internal/webhook"
)

// Server holds the dependencies every handler needs, the way the teacher's
// internal/api.Handler bundled its store and service.
type Server struct {
	pool     *pgxpool.Pool
	engine   *ledger.Engine
	webhooks *webhook.EndpointRegistry
	cfg      *config.Config
	log      *zap.SugaredLogger
}

// NewServer wires a Server from its dependencies.
func NewServer(pool *pgxpool.Pool, engine *ledger.Engine, webhooks *webhook.EndpointRegistry, cfg *config.Config, log *zap.SugaredLogger) *Server {
	return &Server{pool: pool, engine: engine, webhooks: webhooks, cfg: cfg, log: log}
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"service": "dodo-ledger", "status": "ok"})
}

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// handleSignup creates a business account with a bcrypt-hashed password
// (SPEC_FULL §6 — the ambient concern the teacher's go.mod anticipated via
// its indirect golang.org/x/crypto dependency but never exercised).
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "email and password are required", nil)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		logging.FromContext(r.Context()).Errorw("hash password", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error", nil)
		return
	}

	var businessID uuid.UUID
	err = s.pool.QueryRow(r.Context(),
		`INSERT INTO businesses (email, password_hash, name) VALUES ($1, $2, $3)
		 RETURNING id`,
		req.Email, string(hash), req.Name,
	).Scan(&businessID)
	if isUniqueViolation(err) {
		respondError(w, http.StatusConflict, "email already registered", nil)
		return
	}
	if err != nil {
		logging.FromContext(r.Context()).Errorw("create business", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error", nil)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]string{"business_id": businessID.String()})
}

type generateAPIKeyRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// handleGenerateAPIKey verifies the business's credentials and mints a new
// API key (spec §4.1's "sk_live_<64-hex>" format). The plaintext key is
// returned exactly once; only its SHA-256 hash is ever stored.
func (s *Server) handleGenerateAPIKey(w http.ResponseWriter, r *http.Request) {
	var req generateAPIKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	var (
		businessID   uuid.UUID
		passwordHash string
	)
	err := s.pool.QueryRow(r.Context(),
		`SELECT id, password_hash FROM businesses WHERE email = $1`,
		req.Email,
	).Scan(&businessID, &passwordHash)
	if errors.Is(err, pgx.ErrNoRows) {
		respondError(w, http.StatusUnauthorized, "invalid credentials", nil)
		return
	}
	if err != nil {
		logging.FromContext(r.Context()).Errorw("lookup business", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error", nil)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(req.Password)) != nil {
		respondError(w, http.StatusUnauthorized, "invalid credentials", nil)
		return
	}

	rawKey, err := mintAPIKey()
	if err != nil {
		logging.FromContext(r.Context()).Errorw("mint api key", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error", nil)
		return
	}

	_, err = s.pool.Exec(r.Context(),
		`INSERT INTO api_keys (business_id, key_hash, is_active) VALUES ($1, $2, TRUE)`,
		businessID, authgate.HashKey(rawKey),
	)
	if err != nil {
		logging.FromContext(r.Context()).Errorw("store api key", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error", nil)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]string{"api_key": rawKey})
}

func mintAPIKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "sk_live_" + hex.EncodeToString(buf), nil
}

// isUniqueViolation reports whether err is Postgres error 23505
// (unique_violation) — the email-already-registered case on signup.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

type createAccountRequest struct {
	Currency string `json:"currency"`
}

// handleCreateAccount provisions an account with the configured opening
// balance (spec §4.5).
func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	businessID, ok := authgate.BusinessID(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	acc, err := s.engine.CreateAccount(r.Context(), businessID, req.Currency, s.cfg.OpeningBalanceMinorUnits)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, acc)
}

// handleListAccounts returns every account owned by the caller.
func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	businessID, ok := authgate.BusinessID(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	rows, err := s.pool.Query(r.Context(),
		`SELECT id, business_id, currency, balance, created_at FROM accounts WHERE business_id = $1 ORDER BY created_at`,
		businessID,
	)
	if err != nil {
		logging.FromContext(r.Context()).Errorw("list accounts", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error", nil)
		return
	}
	defer rows.Close()

	accounts := []domain.Account{}
	for rows.Next() {
		var a domain.Account
		if err := rows.Scan(&a.ID, &a.BusinessID, &a.Currency, &a.Balance, &a.CreatedAt); err != nil {
			logging.FromContext(r.Context()).Errorw("scan account", "error", err)
			respondError(w, http.StatusInternalServerError, "internal error", nil)
			return
		}
		accounts = append(accounts, a)
	}
	respondJSON(w, http.StatusOK, accounts)
}

// handleTransfer moves funds between two accounts (spec §4.3). A fresh
// transfer answers 201; a replay of a completed idempotency key answers 200
// with the cached response.
func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	businessID, ok := authgate.BusinessID(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	var req domain.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if req.IdempotencyKey == "" {
		respondError(w, http.StatusBadRequest, "idempotency_key is required", nil)
		return
	}

	resp, err := s.engine.Transfer(r.Context(), businessID, req)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	status := http.StatusCreated
	if resp.Cached {
		status = http.StatusOK
	}
	respondJSON(w, status, resp)
}

// handleCreditDebit applies a single-account credit or debit (spec §4.3).
func (s *Server) handleCreditDebit(w http.ResponseWriter, r *http.Request) {
	businessID, ok := authgate.BusinessID(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	var req domain.CreditDebitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if req.IdempotencyKey == "" {
		respondError(w, http.StatusBadRequest, "idempotency_key is required", nil)
		return
	}

	resp, err := s.engine.CreditDebit(r.Context(), businessID, req)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

type registerWebhookRequest struct {
	URL    string `json:"url"`
	Secret string `json:"secret"`
}

// handleRegisterWebhook registers a new webhook endpoint for the caller.
func (s *Server) handleRegisterWebhook(w http.ResponseWriter, r *http.Request) {
	businessID, ok := authgate.BusinessID(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	var req registerWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if req.URL == "" {
		respondError(w, http.StatusBadRequest, "url is required", nil)
		return
	}

	ep, err := s.webhooks.Register(r.Context(), businessID, req.URL, req.Secret)
	if err != nil {
		logging.FromContext(r.Context()).Errorw("register webhook", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error", nil)
		return
	}
	respondJSON(w, http.StatusCreated, ep)
}

// handleListWebhooks returns the caller's registered endpoints.
func (s *Server) handleListWebhooks(w http.ResponseWriter, r *http.Request) {
	businessID, ok := authgate.BusinessID(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	endpoints, err := s.webhooks.List(r.Context(), businessID)
	if err != nil {
		logging.FromContext(r.Context()).Errorw("list webhooks", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error", nil)
		return
	}
	respondJSON(w, http.StatusOK, endpoints)
}
