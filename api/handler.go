package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"

	"github.com/jellydator/ttlcache/v3"
	"github.com/qubic/go-ledger-engine/business/domain/ledger"
	"github.com/qubic/go-ledger-engine/entities"
	"go.uber.org/zap"
)

const accountsKey = "accounts"

type AccountProvider interface {
	Accounts() []entities.Account
	Account(client uint16) (entities.Account, bool)
	Status() ledger.Status
}

type AccountsResponse struct {
	Accounts []entities.Account `json:"accounts"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// Handler serves account snapshots. Snapshots of the whole table are cached, so frequent polling
// during processing does not contend with the engine for the account lock.
type Handler struct {
	provider      AccountProvider
	accountsCache *ttlcache.Cache[string, []entities.Account]
	accountsLock  sync.Mutex
	logger        *zap.SugaredLogger
}

func NewHandler(provider AccountProvider, accountsCache *ttlcache.Cache[string, []entities.Account], logger *zap.SugaredLogger) *Handler {
	return &Handler{
		provider:      provider,
		accountsCache: accountsCache,
		logger:        logger,
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/accounts", h.getAccounts)
	mux.HandleFunc("GET /v1/accounts/{client}", h.getAccount)
	mux.HandleFunc("GET /v1/status", h.getStatus)
	mux.HandleFunc("GET /health", h.getHealth)
}

func (h *Handler) getAccounts(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, AccountsResponse{Accounts: h.accounts()})
}

func (h *Handler) accounts() []entities.Account {
	h.accountsLock.Lock() // lock so that we do not get multiple threads inside the `if`
	defer h.accountsLock.Unlock()

	item := h.accountsCache.Get(accountsKey)
	if item != nil {
		return item.Value()
	}

	accounts := h.provider.Accounts()
	h.accountsCache.Set(accountsKey, accounts, ttlcache.DefaultTTL)
	return accounts
}

func (h *Handler) getAccount(w http.ResponseWriter, r *http.Request) {
	client, err := strconv.ParseUint(r.PathValue("client"), 10, 16)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid client id"})
		return
	}

	account, ok := h.provider.Account(uint16(client))
	if !ok {
		h.writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "account not found"})
		return
	}
	h.writeJSON(w, http.StatusOK, account)
}

func (h *Handler) getStatus(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, h.provider.Status())
}

func (h *Handler) getHealth(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{Status: "UP"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(value)
	if err != nil {
		h.logger.Errorw("Error writing response", "error", err)
	}
}
