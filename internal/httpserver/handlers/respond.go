package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MrSnakeDoc/clashfun/internal/accelerator"
	"github.com/MrSnakeDoc/clashfun/internal/domain"
	"github.com/MrSnakeDoc/clashfun/internal/gamedetect"
	"github.com/MrSnakeDoc/clashfun/internal/httpserver/deps"
	"github.com/MrSnakeDoc/clashfun/internal/logger"
	"github.com/MrSnakeDoc/clashfun/internal/selection"
	"github.com/MrSnakeDoc/clashfun/internal/session"
	"github.com/MrSnakeDoc/clashfun/internal/subscription"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorStatus maps a typed error to its HTTP status and user-facing payload.
func errorStatus(err error) (int, domain.AppError) {
	var (
		pe *subscription.ParseError
		fe *subscription.FetchError
		se *selection.Error
		le *selection.LookupError
		ss *session.Error
		ge *gamedetect.Error
	)
	switch {
	case errors.As(err, &pe):
		return http.StatusUnprocessableEntity, pe.AppError
	case errors.As(err, &fe):
		return http.StatusBadGateway, fe.AppError
	case errors.As(err, &le):
		if errors.Is(err, selection.ErrNodeNotFound) {
			return http.StatusNotFound, le.AppError
		}
		return http.StatusConflict, le.AppError
	case errors.As(err, &se):
		return http.StatusConflict, se.AppError
	case errors.As(err, &ss):
		if ss.Kind == session.KindApplyFailed {
			return http.StatusServiceUnavailable, ss.AppError
		}
		return http.StatusConflict, ss.AppError
	case errors.As(err, &ge):
		return http.StatusServiceUnavailable, ge.AppError
	case errors.Is(err, accelerator.ErrNoSubscription):
		return http.StatusConflict, domain.AppError{Code: "NO_SUBSCRIPTION", Message: err.Error(), Stage: domain.StageSelect}
	case errors.Is(err, accelerator.ErrNoStore):
		return http.StatusServiceUnavailable, domain.AppError{Code: "STORE_DISABLED", Message: err.Error()}
	}
	return http.StatusInternalServerError, domain.AppError{Code: "INTERNAL", Message: err.Error()}
}

func writeError(w http.ResponseWriter, d deps.Deps, err error) {
	status, appErr := errorStatus(err)
	if status >= http.StatusInternalServerError {
		d.Logger.Error("request failed", logger.String("code", appErr.Code), logger.Error(err))
	} else {
		d.Logger.Debug("request rejected", logger.String("code", appErr.Code), logger.Error(err))
	}
	writeJSON(w, status, domain.ErrorResponse{Error: appErr})
}

func badRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, domain.ErrorResponse{Error: domain.AppError{
		Code:    "INVALID_ARGUMENT",
		Message: message,
	}})
}
