package handlers

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/finbase/backend/internal/config"
	"github.com/finbase/backend/internal/middleware"
	"github.com/finbase/backend/internal/models"
	"github.com/finbase/backend/internal/services"
)

// FinanceHandler is the HTTP boundary of the finance engine. It decodes
// and validates requests, converts wire amounts (major units, two
// decimals) to minor units, and hands the engine explicit
// (userID, organizationID) parameters from the authenticated context.
type FinanceHandler struct {
	pins      *services.PinService
	transfers *services.TransferService
	reversals *services.ReversalService
	balances  *services.BalanceService
	registry  *services.AccountRegistry
	validator *services.ValidationHelper
	cfg       *config.FinanceConfig
}

func NewFinanceHandler(pins *services.PinService, transfers *services.TransferService, reversals *services.ReversalService, balances *services.BalanceService, registry *services.AccountRegistry, cfg *config.FinanceConfig) *FinanceHandler {
	return &FinanceHandler{
		pins:      pins,
		transfers: transfers,
		reversals: reversals,
		balances:  balances,
		registry:  registry,
		validator: services.NewValidationHelper(),
		cfg:       cfg,
	}
}

type setPinRequest struct {
	Pin      string `json:"pin" validate:"required,len=4,numeric"`
	Password string `json:"password" validate:"required"`
}

type transferRequest struct {
	Email       string  `json:"email" validate:"required,email"`
	Amount      float64 `json:"amount" validate:"required,gt=0"`
	Currency    string  `json:"currency" validate:"required,len=3,uppercase"`
	Pin         string  `json:"pin" validate:"required,len=4,numeric"`
	Description string  `json:"description" validate:"max=200"`
}

// Deposit currency defaults to the organization's bootstrap currency when
// omitted.
type depositRequest struct {
	Amount      float64 `json:"amount" validate:"required,gt=0"`
	Currency    string  `json:"currency" validate:"omitempty,len=3,uppercase"`
	Description string  `json:"description" validate:"max=200"`
}

type reverseRequest struct {
	TransactionID string `json:"transactionId" validate:"required,uuid4"`
	Reason        string `json:"reason" validate:"required,max=200"`
}

// transactionView is the wire shape of a committed transaction; posting
// amounts go back out in major units.
type transactionView struct {
	ID          string        `json:"id"`
	Type        string        `json:"type"`
	Description string        `json:"description"`
	CreatedAt   string        `json:"createdAt"`
	Postings    []postingView `json:"postings"`
}

type postingView struct {
	Amount  float64     `json:"amount"`
	Account accountView `json:"account"`
}

type accountView struct {
	Currency string `json:"currency"`
	UserID   int    `json:"userId"`
}

func viewOf(txn *models.Transaction) transactionView {
	view := transactionView{
		ID:          txn.ID,
		Type:        txn.Type,
		Description: txn.Description,
		CreatedAt:   txn.CreatedAt.Format("2006-01-02T15:04:05.000Z07:00"),
	}
	for _, p := range txn.Postings {
		view.Postings = append(view.Postings, postingView{
			Amount: models.NewMoney(p.Amount, p.Currency).MajorUnits(),
			Account: accountView{
				Currency: p.Currency,
				UserID:   p.AccountOwnerID,
			},
		})
	}
	return view
}

func (h *FinanceHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return false
	}
	if err := h.validator.ValidateStruct(dst); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return false
	}
	return true
}

func caller(w http.ResponseWriter, r *http.Request) (int, int, bool) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return 0, 0, false
	}
	organizationID, ok := middleware.OrganizationID(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return 0, 0, false
	}
	return userID, organizationID, true
}

// SetPin sets or replaces the caller's transaction PIN
// @Summary Set transaction PIN
// @Description Set the 4-digit transaction PIN, re-verifying the login password
// @Tags finance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body setPinRequest true "PIN request"
// @Success 200 {object} map[string]string
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Router /finance/pin [post]
func (h *FinanceHandler) SetPin(w http.ResponseWriter, r *http.Request) {
	userID, organizationID, ok := caller(w, r)
	if !ok {
		return
	}

	var req setPinRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.pins.SetPin(r.Context(), userID, req.Pin, req.Password); err != nil {
		services.SendErrorResponse(w, err.Error(), services.StatusForError(err), nil)
		return
	}

	// Completing PIN setup provisions the member's account in the
	// organization's bootstrap currency, so their first balance query has a
	// row to return.
	if _, err := h.registry.GetOrCreate(r.Context(), userID, organizationID, h.cfg.BootstrapCurrency); err != nil {
		log.Printf("[FINANCE] Account bootstrap failed for user %d: %v", userID, err)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "PIN updated"})
}

// GetBalances returns the caller's per-currency balances
// @Summary Get balances
// @Description Get the caller's account balances, optionally filtered by currency
// @Tags finance
// @Produce json
// @Security BearerAuth
// @Param currency query string false "Currency filter"
// @Success 200 {array} services.BalanceRow
// @Failure 401 {object} services.ErrorResponse
// @Router /finance/balance [get]
func (h *FinanceHandler) GetBalances(w http.ResponseWriter, r *http.Request) {
	userID, organizationID, ok := caller(w, r)
	if !ok {
		return
	}

	rows, err := h.balances.Balances(r.Context(), userID, organizationID, r.URL.Query().Get("currency"))
	if err != nil {
		log.Printf("[FINANCE] Balance query failed for user %d: %v", userID, err)
		services.SendErrorResponse(w, "Failed to fetch balances", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rows)
}

// GetTransactions pages through the caller's transaction history
// @Summary List transactions
// @Description Get the caller's transactions newest first with cursor pagination
// @Tags finance
// @Produce json
// @Security BearerAuth
// @Param currency query string false "Currency filter"
// @Param limit query int false "Page size (default 20, max 100)"
// @Param cursor query string false "Opaque page cursor"
// @Success 200 {object} object{transactions=[]transactionView,nextCursor=string}
// @Failure 401 {object} services.ErrorResponse
// @Router /finance/transactions [get]
func (h *FinanceHandler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	userID, organizationID, ok := caller(w, r)
	if !ok {
		return
	}

	limit := h.cfg.HistoryPageLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil {
			limit = parsed
		}
	}

	txns, nextCursor, err := h.balances.History(r.Context(), userID, organizationID,
		r.URL.Query().Get("currency"), r.URL.Query().Get("cursor"), limit)
	if err != nil {
		log.Printf("[FINANCE] History query failed for user %d: %v", userID, err)
		services.SendErrorResponse(w, "Failed to fetch transactions", http.StatusInternalServerError, nil)
		return
	}

	views := make([]transactionView, 0, len(txns))
	for i := range txns {
		views = append(views, viewOf(&txns[i]))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"transactions": views,
		"nextCursor":   nextCursor,
	})
}

// Transfer sends money to another user by email
// @Summary Transfer funds
// @Description Transfer funds to another member of the organization, gated by the transaction PIN
// @Tags finance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body transferRequest true "Transfer request"
// @Success 201 {object} transactionView
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Failure 422 {object} services.ErrorResponse
// @Router /finance/transfer [post]
func (h *FinanceHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	userID, organizationID, ok := caller(w, r)
	if !ok {
		return
	}

	var req transferRequest
	if !h.decode(w, r, &req) {
		return
	}

	amount := models.FromMajorUnits(req.Amount, req.Currency)
	txn, err := h.transfers.Transfer(r.Context(), userID, organizationID, req.Email, amount, req.Pin, req.Description)
	if err != nil {
		services.SendErrorResponse(w, err.Error(), services.StatusForError(err), nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(viewOf(txn))
}

// Deposit funds the caller's account from the organization treasury
// @Summary Deposit funds
// @Description Fund the caller's account from the organization treasury
// @Tags finance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body depositRequest true "Deposit request"
// @Success 201 {object} transactionView
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Router /finance/deposit [post]
func (h *FinanceHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	userID, organizationID, ok := caller(w, r)
	if !ok {
		return
	}

	var req depositRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Currency == "" {
		req.Currency = h.cfg.BootstrapCurrency
	}

	amount := models.FromMajorUnits(req.Amount, req.Currency)
	txn, err := h.transfers.Deposit(r.Context(), userID, organizationID, amount, req.Description)
	if err != nil {
		services.SendErrorResponse(w, err.Error(), services.StatusForError(err), nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(viewOf(txn))
}

// Reverse commits a compensating transaction for a prior one
// @Summary Reverse a transaction
// @Description Commit a compensating transaction inverting a prior transaction's postings
// @Tags finance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body reverseRequest true "Reversal request"
// @Success 201 {object} transactionView
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Failure 422 {object} services.ErrorResponse
// @Router /finance/reverse [post]
func (h *FinanceHandler) Reverse(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := caller(w, r)
	if !ok {
		return
	}

	var req reverseRequest
	if !h.decode(w, r, &req) {
		return
	}

	txn, err := h.reversals.Reverse(r.Context(), userID, req.TransactionID, req.Reason)
	if err != nil {
		services.SendErrorResponse(w, err.Error(), services.StatusForError(err), nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(viewOf(txn))
}
