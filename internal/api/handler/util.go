package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/winmicro/wallet-engine/internal/api/middleware"
	"github.com/winmicro/wallet-engine/internal/api/problem"
	"github.com/winmicro/wallet-engine/internal/models"
)

// RespondJSON writes a JSON response.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// RespondError writes an error response.
func RespondError(w http.ResponseWriter, r *http.Request, status int, problemType, message string) {
	if problemType != "" && problemType != "about:blank" && !strings.HasPrefix(problemType, "http") {
		problemType = problem.Type(problemType)
	}
	problem.Write(w, r, status, problemType, http.StatusText(status), message)
}

func requestActor(r *http.Request) (uuid.UUID, bool, error) {
	actorID := middleware.UserUUIDFromContext(r.Context())
	if actorID == uuid.Nil {
		return uuid.Nil, false, errors.New("missing user in auth context")
	}
	return actorID, middleware.UserRoleFromContext(r.Context()) == middleware.RoleAdmin, nil
}

// respondServiceError translates sentinel errors from the service layer into
// problem responses. Unexpected errors fall through to a generic 500 so
// internal detail never leaks to clients.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, models.ErrValidation):
		RespondError(w, r, http.StatusBadRequest, "request/validation", err.Error())
	case errors.Is(err, models.ErrPolicyViolation):
		RespondError(w, r, http.StatusUnprocessableEntity, "wallet/policy-violation", err.Error())
	case errors.Is(err, models.ErrInsufficientBalance):
		RespondError(w, r, http.StatusUnprocessableEntity, "wallet/insufficient-balance", "insufficient balance")
	case errors.Is(err, models.ErrNotFound):
		RespondError(w, r, http.StatusNotFound, "wallet/not-found", "transaction not found")
	case errors.Is(err, models.ErrAlreadyProcessed):
		RespondError(w, r, http.StatusConflict, "wallet/already-processed", "transaction already processed")
	case errors.Is(err, models.ErrGatewayFailure):
		RespondError(w, r, http.StatusBadGateway, "gateway/failure", err.Error())
	default:
		if status, pType, msg, ok := mapDBError(err); ok {
			RespondError(w, r, status, pType, msg)
			return
		}
		RespondError(w, r, http.StatusInternalServerError, "internal-server-error", "unexpected server error")
	}
}

func mapDBError(err error) (status int, problemType, message string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return 0, "", "", false
	}

	switch pgErr.Code {
	case "23505": // unique_violation
		return http.StatusConflict, "db/unique-violation", "resource already exists", true
	case "23503": // foreign_key_violation
		return http.StatusBadRequest, "db/foreign-key-violation", "invalid reference", true
	case "23514": // check_violation
		return http.StatusBadRequest, "db/check-violation", "request violates data constraints", true
	case "23502": // not_null_violation
		return http.StatusBadRequest, "db/not-null-violation", "missing required field", true
	default:
		return 0, "", "", false
	}
}
