package httpadapter

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kirillkom/fitscore/internal/core/domain"
)

func (rt *Router) reportHistory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	records, err := rt.history.History(r.Context(), userID)
	if err != nil {
		slog.Error("history_query_failed",
			"request_id", requestIDFromContext(r.Context()),
			"user_id", domain.NormalizeUserID(userID),
			"error", err,
		)
		writeError(w, mapErrorToHTTPStatus(err), publicErrorMessage(err))
		return
	}
	if records == nil {
		records = []domain.ReportRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}
