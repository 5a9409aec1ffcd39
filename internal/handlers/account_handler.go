package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/ruralpay/escrow/internal/custody"
	"github.com/ruralpay/escrow/internal/models"
	"github.com/ruralpay/escrow/internal/services"
	"github.com/ruralpay/escrow/internal/store"
)

// AccountHandler serves profiles, balances, stats and custody movements.
type AccountHandler struct {
	engine    *services.Engine
	validator *services.ValidationHelper
}

func NewAccountHandler(engine *services.Engine) *AccountHandler {
	return &AccountHandler{
		engine:    engine,
		validator: services.NewValidationHelper(),
	}
}

// UpsertUser creates or updates the caller's profile
// @Summary Upsert profile
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Router /users [post]
func (h *AccountHandler) UpsertUser(w http.ResponseWriter, r *http.Request) {
	account, ok := caller(w, r)
	if !ok {
		return
	}
	var req services.ProfileInput
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	user, err := h.engine.UpsertUser(r.Context(), account, req)
	if err != nil {
		sendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *AccountHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.engine.User(chi.URLParam(r, "account"))
	if err != nil {
		sendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *AccountHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.Stats(chi.URLParam(r, "account"))
	if err != nil {
		sendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// RankStats lists trade counters ordered by ?order=total|sells|buys
func (h *AccountHandler) RankStats(w http.ResponseWriter, r *http.Request) {
	order := store.StatsOrder(r.URL.Query().Get("order"))
	switch order {
	case "":
		order = store.StatsByTotal
	case store.StatsByTotal, store.StatsBySells, store.StatsByBuys:
	default:
		SendErrorResponse(w, "order must be one of total, sells, buys", http.StatusBadRequest, nil)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	writeJSON(w, http.StatusOK, h.engine.RankStats(order, limit))
}

// GetBalance returns the three buckets of an account. Only the owner may
// read them.
func (h *AccountHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	account, ok := caller(w, r)
	if !ok {
		return
	}
	if chi.URLParam(r, "account") != account {
		SendErrorResponse(w, "Balances are only visible to their owner", http.StatusForbidden, nil)
		return
	}

	b, err := h.engine.Balance(account)
	if err != nil {
		sendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"account":   b.Account,
		"available": models.Seeds(b.Available),
		"locked":    models.Seeds(b.Locked),
		"escrow":    models.Seeds(b.Escrow),
		"total":     models.Seeds(b.Total()),
	})
}

// Withdraw sends available funds back to the caller
// @Summary Withdraw
// @Tags balances
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{quantity=string} true "e.g. 10.0000 SEEDS"
// @Router /withdrawals [post]
func (h *AccountHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	account, ok := caller(w, r)
	if !ok {
		return
	}
	var req struct {
		Quantity models.Asset `json:"quantity"`
	}
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	if err := h.engine.Withdraw(r.Context(), account, req.Quantity); err != nil {
		sendError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"success":  true,
		"quantity": req.Quantity,
	})
}

// ReceiveDeposit accepts a deposit notification from the custody bridge,
// authenticated as the operator.
func (h *AccountHandler) ReceiveDeposit(w http.ResponseWriter, r *http.Request) {
	account, ok := caller(w, r)
	if !ok {
		return
	}
	if !h.engine.IsOperator(account) {
		SendErrorResponse(w, "Deposit notifications are accepted from the operator only", http.StatusForbidden, nil)
		return
	}
	var req struct {
		From     string       `json:"from" validate:"required,account"`
		To       string       `json:"to" validate:"required,account"`
		Quantity models.Asset `json:"quantity"`
		Memo     string       `json:"memo"`
	}
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	d := custody.Deposit{From: req.From, To: req.To, Quantity: req.Quantity, Memo: req.Memo}
	if err := h.engine.ReceiveDeposit(r.Context(), d); err != nil {
		sendError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"success": true})
}
