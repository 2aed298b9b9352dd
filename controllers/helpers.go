package controllers

import (
	"errors"
	"log/slog"
	"net/http"

	"go-storefront/models"
	"go-storefront/storage"
	"go-storefront/utils"
)

// respondStoreError maps a storage error onto a status code and error payload
func respondStoreError(w http.ResponseWriter, logger *slog.Logger, err error, notFound, failed string) {
	var verr *models.ValidationError
	switch {
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, storage.ErrForeignID):
		utils.RespondError(w, notFound, http.StatusNotFound)
	case errors.As(err, &verr):
		utils.RespondError(w, verr.Error(), http.StatusBadRequest)
	case errors.Is(err, storage.ErrDuplicate):
		utils.RespondError(w, "Record already exists", http.StatusBadRequest)
	default:
		logger.Error(failed, "error", err)
		utils.RespondError(w, failed, http.StatusInternalServerError)
	}
}

func loggerOrDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
