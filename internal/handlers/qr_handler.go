package handlers

import (
	"net/http"

	"github.com/ruralpay/escrow/internal/services"
)

type QRHandler struct {
	service *services.QRService
}

func NewQRHandler(service *services.QRService) *QRHandler {
	return &QRHandler{service: service}
}

// DepositInstructions returns the transfer request that funds the caller
// @Summary Deposit instructions
// @Description Transfer URI and QR code (base64 PNG) for depositing into escrow
// @Tags QR
// @Produce json
// @Security BearerAuth
// @Success 200 {object} services.DepositInstructions
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /deposits/instructions [get]
func (h *QRHandler) DepositInstructions(w http.ResponseWriter, r *http.Request) {
	account, ok := caller(w, r)
	if !ok {
		return
	}

	d, err := h.service.DepositInstructions(account)
	if err != nil {
		sendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}
