package handlers

import (
	"net/http"
	"strconv"

	"github.com/ruralpay/escrow/internal/models"
	"github.com/ruralpay/escrow/internal/services"
	"github.com/ruralpay/escrow/internal/store"
)

type OfferHandler struct {
	engine    *services.Engine
	validator *services.ValidationHelper
}

func NewOfferHandler(engine *services.Engine) *OfferHandler {
	return &OfferHandler{
		engine:    engine,
		validator: services.NewValidationHelper(),
	}
}

// CreateSellOffer opens a listing
// @Summary Create sell offer
// @Tags offers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body services.SellOfferInput true "Listing"
// @Success 201 {object} models.Offer
// @Failure 422 {object} ErrorResponse
// @Router /offers/sell [post]
func (h *OfferHandler) CreateSellOffer(w http.ResponseWriter, r *http.Request) {
	account, ok := caller(w, r)
	if !ok {
		return
	}
	var req services.SellOfferInput
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	offer, err := h.engine.CreateSellOffer(r.Context(), account, req)
	if err != nil {
		sendError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, offer)
}

func (h *OfferHandler) CancelSellOffer(w http.ResponseWriter, r *http.Request) {
	account, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	offer, err := h.engine.CancelSellOffer(r.Context(), account, id)
	if err != nil {
		sendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, offer)
}

// CreateBuyOffer proposes a purchase against a listing
// @Summary Create buy offer
// @Tags offers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body services.BuyOfferInput true "Proposal"
// @Success 201 {object} models.Offer
// @Router /offers/buy [post]
func (h *OfferHandler) CreateBuyOffer(w http.ResponseWriter, r *http.Request) {
	account, ok := caller(w, r)
	if !ok {
		return
	}
	var req services.BuyOfferInput
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	offer, err := h.engine.CreateBuyOffer(r.Context(), account, req)
	if err != nil {
		sendError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, offer)
}

// step adapts one buy offer transition to an HTTP handler.
func (h *OfferHandler) step(transition func(r *http.Request, caller string, id uint64) (*models.Offer, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account, ok := caller(w, r)
		if !ok {
			return
		}
		id, ok := idParam(w, r)
		if !ok {
			return
		}

		offer, err := transition(r, account, id)
		if err != nil {
			sendError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, offer)
	}
}

func (h *OfferHandler) Accept() http.HandlerFunc {
	return h.step(func(r *http.Request, caller string, id uint64) (*models.Offer, error) {
		return h.engine.AcceptBuyOffer(r.Context(), caller, id)
	})
}

func (h *OfferHandler) Reject() http.HandlerFunc {
	return h.step(func(r *http.Request, caller string, id uint64) (*models.Offer, error) {
		return h.engine.RejectBuyOffer(r.Context(), caller, id)
	})
}

func (h *OfferHandler) Cancel() http.HandlerFunc {
	return h.step(func(r *http.Request, caller string, id uint64) (*models.Offer, error) {
		return h.engine.CancelBuyOffer(r.Context(), caller, id)
	})
}

func (h *OfferHandler) Pay() http.HandlerFunc {
	return h.step(func(r *http.Request, caller string, id uint64) (*models.Offer, error) {
		return h.engine.PayBuyOffer(r.Context(), caller, id)
	})
}

func (h *OfferHandler) Confirm() http.HandlerFunc {
	return h.step(func(r *http.Request, caller string, id uint64) (*models.Offer, error) {
		return h.engine.ConfirmPayment(r.Context(), caller, id)
	})
}

// InitiateArbitration opens a dispute on a paid trade.
func (h *OfferHandler) InitiateArbitration(w http.ResponseWriter, r *http.Request) {
	account, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	c, err := h.engine.InitiateArbitration(r.Context(), account, id)
	if err != nil {
		sendError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *OfferHandler) GetOffer(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	offer, err := h.engine.Offer(id)
	if err != nil {
		sendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, offer)
}

// ListOffers filters offers by seller, buyer, status, sell_id, time_zone,
// fiat_currency and kind. order=price lists sell offers by price.
func (h *OfferHandler) ListOffers(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()
	q := store.Query{
		Kind:         models.OfferKind(qs.Get("kind")),
		Seller:       qs.Get("seller"),
		Buyer:        qs.Get("buyer"),
		Status:       models.OfferStatus(qs.Get("status")),
		TimeZone:     qs.Get("time_zone"),
		FiatCurrency: qs.Get("fiat_currency"),
		ByPrice:      qs.Get("order") == "price",
		Limit:        100,
	}
	if q.Kind != "" && q.Kind != models.KindSell && q.Kind != models.KindBuy {
		SendErrorResponse(w, "kind must be sell or buy", http.StatusBadRequest, nil)
		return
	}
	if v := qs.Get("sell_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			SendErrorResponse(w, "Invalid sell_id", http.StatusBadRequest, nil)
			return
		}
		q.SellID = id
	}
	if v := qs.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 || limit > 1000 {
			SendErrorResponse(w, "limit must be between 1 and 1000", http.StatusBadRequest, nil)
			return
		}
		q.Limit = limit
	}

	writeJSON(w, http.StatusOK, h.engine.FindOffers(q))
}

func (h *OfferHandler) Children(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	children, err := h.engine.Children(id)
	if err != nil {
		sendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, children)
}
