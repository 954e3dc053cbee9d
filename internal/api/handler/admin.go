package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/winmicro/wallet-engine/internal/domain"
	"github.com/winmicro/wallet-engine/internal/service"
	"go.uber.org/zap"
)

// AdminHandler covers the operator surface: commission settings, payout
// resolution, internal credits, the platform wallet report and the
// reconciliation views. Every route is behind the admin role check.
type AdminHandler struct {
	settlementSvc *service.SettlementService
	settingsSvc   *service.SettingsService
	walletSvc     *service.WalletService
	reconSvc      *service.ReconciliationService
}

func NewAdminHandler(
	settlementSvc *service.SettlementService,
	settingsSvc *service.SettingsService,
	walletSvc *service.WalletService,
	reconSvc *service.ReconciliationService,
) *AdminHandler {
	return &AdminHandler{
		settlementSvc: settlementSvc,
		settingsSvc:   settingsSvc,
		walletSvc:     walletSvc,
		reconSvc:      reconSvc,
	}
}

// GetSettings handles GET /v1/admin/settings.
func (h *AdminHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settingsSvc.Get(r.Context())
	if err != nil {
		zap.L().Error("get settings failed", zap.Error(err))
		respondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, settings)
}

// UpdateSettings handles PUT /v1/admin/settings.
func (h *AdminHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}

	settings, err := h.settingsSvc.Update(r.Context(), req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, settings)
}

// ResolveWithdrawal handles POST /v1/admin/withdrawals/{reference}/resolve.
func (h *AdminHandler) ResolveWithdrawal(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Success     bool   `json:"success"`
		ProviderRef string `json:"provider_ref"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}

	result, err := h.settlementSvc.ResolveWithdrawal(r.Context(), service.ResolveWithdrawalRequest{
		ReferenceID: chi.URLParam(r, "reference"),
		Success:     req.Success,
		ProviderRef: req.ProviderRef,
	})
	if err != nil {
		zap.L().Warn("resolve withdrawal failed", zap.Error(err), zap.String("reference_id", chi.URLParam(r, "reference")))
		respondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, result)
}

// CreditInternal handles POST /v1/admin/credits. Campaign owners do not call
// this directly; the marketplace backend submits approvals on their behalf.
func (h *AdminHandler) CreditInternal(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FromUserID        string `json:"from_user_id"`
		ToUserID          string `json:"to_user_id"`
		Amount            int64  `json:"amount"`
		Currency          string `json:"currency"`
		CommissionApplies bool   `json:"commission_applies"`
		Note              string `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}

	fromID, err := uuid.Parse(req.FromUserID)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-user-id", "Invalid from_user_id")
		return
	}
	toID, err := uuid.Parse(req.ToUserID)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-user-id", "Invalid to_user_id")
		return
	}
	currency, err := domain.ParseCurrency(req.Currency)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-currency", err.Error())
		return
	}

	result, err := h.settlementSvc.CreditInternal(r.Context(), service.CreditInternalRequest{
		FromUserID:        fromID,
		ToUserID:          toID,
		Currency:          currency,
		Amount:            req.Amount,
		CommissionApplies: req.CommissionApplies,
		Note:              req.Note,
	})
	if err != nil {
		zap.L().Warn("internal credit rejected", zap.Error(err), zap.String("to_user_id", toID.String()))
		respondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusCreated, result)
}

// GetAdminWallets handles GET /v1/admin/wallets.
func (h *AdminHandler) GetAdminWallets(w http.ResponseWriter, r *http.Request) {
	wallets, err := h.walletSvc.AdminWalletReport(r.Context())
	if err != nil {
		zap.L().Error("admin wallet report failed", zap.Error(err))
		respondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, wallets)
}

// RunReconciliation handles POST /v1/admin/reconciliation.
func (h *AdminHandler) RunReconciliation(w http.ResponseWriter, r *http.Request) {
	report, err := h.reconSvc.Check(r.Context())
	if err != nil {
		zap.L().Error("reconciliation sweep failed", zap.Error(err))
		respondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, report)
}

// GetPendingBacklog handles GET /v1/admin/pending.
func (h *AdminHandler) GetPendingBacklog(w http.ResponseWriter, r *http.Request) {
	stats, err := h.reconSvc.PendingBacklog(r.Context())
	if err != nil {
		zap.L().Error("pending backlog read failed", zap.Error(err))
		respondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, stats)
}
