package handler

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/winmicro/wallet-engine/internal/gateway"
	"github.com/winmicro/wallet-engine/internal/service"
	"go.uber.org/zap"
)

// CallbackHandler receives server-to-server notifications from payment
// providers. Requests are unauthenticated; the gateway adapter verifies the
// provider signature over the raw body before any state changes.
type CallbackHandler struct {
	settlementSvc *service.SettlementService
}

func NewCallbackHandler(settlementSvc *service.SettlementService) *CallbackHandler {
	return &CallbackHandler{settlementSvc: settlementSvc}
}

// signatureHeaders maps each provider to the header its callbacks carry.
var signatureHeaders = map[string]string{
	gateway.ProviderCardUPI:      "X-Cardupi-Signature",
	gateway.ProviderIntlCard:     "Intlcard-Signature",
	gateway.ProviderMobileWallet: "X-Mwallet-Signature",
}

// HandleDepositCallback handles POST /v1/callbacks/{provider}. The reference
// id rides in a query parameter so the raw body stays byte-exact for
// signature verification.
func (h *CallbackHandler) HandleDepositCallback(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	referenceID := r.URL.Query().Get("reference_id")
	if referenceID == "" {
		RespondError(w, r, http.StatusBadRequest, "request/missing-reference", "reference_id query parameter is required")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		zap.L().Error("read callback body failed", zap.Error(err))
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Failed to read request body")
		return
	}

	header, ok := signatureHeaders[provider]
	if !ok {
		RespondError(w, r, http.StatusNotFound, "gateway/unknown-provider", "unknown payment provider")
		return
	}

	result, err := h.settlementSvc.ConfirmDeposit(r.Context(), service.ConfirmDepositRequest{
		ReferenceID: referenceID,
		Payload:     body,
		Signature:   r.Header.Get(header),
	})
	if err != nil {
		zap.L().Warn("deposit callback rejected",
			zap.Error(err),
			zap.String("provider", provider),
			zap.String("reference_id", referenceID),
		)
		respondServiceError(w, r, err)
		return
	}

	RespondJSON(w, http.StatusOK, map[string]any{
		"status":            result.Transaction.Status,
		"reference_id":      result.Transaction.ReferenceID,
		"already_processed": result.AlreadyProcessed,
	})
}
