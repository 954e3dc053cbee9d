package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/winmicro/wallet-engine/internal/domain"
	"github.com/winmicro/wallet-engine/internal/models"
	"github.com/winmicro/wallet-engine/internal/service"
	"go.uber.org/zap"
)

// WalletHandler serves the user-facing wallet surface: deposits,
// withdrawals, balances and statement reads. The acting user always comes
// from the auth context, never from the request body.
type WalletHandler struct {
	settlementSvc *service.SettlementService
	walletSvc     *service.WalletService
}

func NewWalletHandler(settlementSvc *service.SettlementService, walletSvc *service.WalletService) *WalletHandler {
	return &WalletHandler{settlementSvc: settlementSvc, walletSvc: walletSvc}
}

// InitiateDeposit handles POST /v1/wallet/deposits.
func (h *WalletHandler) InitiateDeposit(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	var req struct {
		Amount      int64  `json:"amount"`
		Currency    string `json:"currency"`
		Provider    string `json:"provider"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	currency, err := domain.ParseCurrency(req.Currency)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-currency", err.Error())
		return
	}

	intent, err := h.settlementSvc.InitiateDeposit(r.Context(), service.InitiateDepositRequest{
		UserID:      actorID,
		Currency:    currency,
		Amount:      req.Amount,
		Provider:    req.Provider,
		Description: req.Description,
	})
	if err != nil {
		zap.L().Warn("initiate deposit rejected", zap.Error(err), zap.String("user_id", actorID.String()))
		respondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusCreated, intent)
}

// ConfirmDeposit handles POST /v1/wallet/deposits/{reference}/confirm.
// The client submits the provider's assertion after completing checkout;
// server-to-server callbacks use the callback route instead.
func (h *WalletHandler) ConfirmDeposit(w http.ResponseWriter, r *http.Request) {
	if _, _, err := requestActor(r); err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	referenceID := chi.URLParam(r, "reference")
	var req struct {
		ChargeID  string            `json:"charge_id"`
		Assertion map[string]string `json:"assertion"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}

	result, err := h.settlementSvc.ConfirmDeposit(r.Context(), service.ConfirmDepositRequest{
		ReferenceID: referenceID,
		ChargeID:    req.ChargeID,
		Assertion:   req.Assertion,
	})
	if err != nil {
		zap.L().Warn("confirm deposit failed", zap.Error(err), zap.String("reference_id", referenceID))
		respondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, result)
}

// InitiateWithdrawal handles POST /v1/wallet/withdrawals.
func (h *WalletHandler) InitiateWithdrawal(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	var req struct {
		Amount   int64                     `json:"amount"`
		Currency string                    `json:"currency"`
		Details  service.WithdrawalDetails `json:"details"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	currency, err := domain.ParseCurrency(req.Currency)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-currency", err.Error())
		return
	}

	result, err := h.settlementSvc.InitiateWithdrawal(r.Context(), service.InitiateWithdrawalRequest{
		UserID:   actorID,
		Currency: currency,
		Amount:   req.Amount,
		Details:  req.Details,
	})
	if err != nil {
		zap.L().Warn("initiate withdrawal rejected", zap.Error(err), zap.String("user_id", actorID.String()))
		respondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusCreated, result)
}

// GetBalance handles GET /v1/wallet/balance.
func (h *WalletHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	balance, err := h.walletSvc.Balance(r.Context(), actorID)
	if err != nil {
		zap.L().Error("get balance failed", zap.Error(err), zap.String("user_id", actorID.String()))
		respondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, balance)
}

// GetStatement handles GET /v1/wallet/transactions.
func (h *WalletHandler) GetStatement(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	entries, err := h.walletSvc.Statement(r.Context(), service.StatementRequest{
		UserID: actorID,
		Limit:  int32(limit),
		Offset: int32(offset),
	})
	if err != nil {
		zap.L().Error("get statement failed", zap.Error(err), zap.String("user_id", actorID.String()))
		respondServiceError(w, r, err)
		return
	}
	if entries == nil {
		entries = []models.WalletTransaction{}
	}
	RespondJSON(w, http.StatusOK, entries)
}

// GetTransaction handles GET /v1/wallet/transactions/{reference}.
func (h *WalletHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	actorID, isAdmin, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	tx, err := h.walletSvc.Transaction(r.Context(), chi.URLParam(r, "reference"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if !isAdmin && tx.UserID != actorID {
		RespondError(w, r, http.StatusForbidden, "auth/insufficient-permissions", "insufficient permissions")
		return
	}
	RespondJSON(w, http.StatusOK, tx)
}

// GetEarnings handles GET /v1/wallet/earnings.
func (h *WalletHandler) GetEarnings(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	earnings, err := h.walletSvc.Earnings(r.Context(), actorID)
	if err != nil {
		zap.L().Error("get earnings failed", zap.Error(err), zap.String("user_id", actorID.String()))
		respondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, earnings)
}
