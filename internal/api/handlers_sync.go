package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/diaria/diaria-assistant/internal/api/respond"
	"github.com/diaria/diaria-assistant/internal/model"
	"github.com/diaria/diaria-assistant/internal/services"
)

// SyncHandler exposes the snapshot reconciliation flow (thin transport
// layer).
type SyncHandler struct {
	sync    *services.SyncService
	summary *services.SummaryService
}

func NewSyncHandler(sync *services.SyncService, summary *services.SummaryService) *SyncHandler {
	return &SyncHandler{sync: sync, summary: summary}
}

// syncResponse keeps the upstream-facing Spanish field names callers of the
// previous system already depend on.
type syncResponse struct {
	UserID     string          `json:"userId"`
	Changes    bool            `json:"cambiosDetectados"`
	FirstSync  bool            `json:"esPrimeraVez"`
	Stats      model.SyncStats `json:"stats"`
	SyncTime   time.Time       `json:"syncTime"`
	ErrMessage string          `json:"error,omitempty"`
}

// Sync handles POST /api/users/{userId}/sync.
func (h *SyncHandler) Sync(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]

	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "invalid JSON")
		return
	}
	if req.Email == "" {
		respond.WriteBadRequest(w, "email is required")
		return
	}

	res, err := h.sync.SyncUser(r.Context(), userID, req.Email)
	if err != nil {
		// An unreachable planner is reported in-band so clients can show
		// "no changes" instead of a bare transport error.
		if errors.Is(err, model.ErrExternalSource) {
			respond.WriteJSON(w, http.StatusBadGateway, syncResponse{
				UserID:     userID,
				ErrMessage: err.Error(),
			})
			return
		}
		respond.WriteServiceError(w, err)
		return
	}

	respond.WriteJSON(w, http.StatusOK, syncResponse{
		UserID:    res.UserID,
		Changes:   res.HasChanges,
		FirstSync: res.FirstSync,
		Stats:     res.Stats,
		SyncTime:  res.SyncTime,
	})
}

// Activities handles GET /api/users/{userId}/activities?date=YYYY-MM-DD.
func (h *SyncHandler) Activities(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	date := r.URL.Query().Get("date")
	if date == "" {
		date = time.Now().UTC().Format("2006-01-02")
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		respond.WriteBadRequest(w, "date must be YYYY-MM-DD")
		return
	}

	acts, err := h.sync.ActivitiesOn(r.Context(), userID, date)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"userId":     userID,
		"date":       date,
		"activities": acts,
	})
}

// DailySummary handles GET /api/users/{userId}/summary?date=YYYY-MM-DD.
func (h *SyncHandler) DailySummary(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	date := r.URL.Query().Get("date")
	if date == "" {
		date = time.Now().UTC().Format("2006-01-02")
	}

	sum, err := h.summary.DailySummary(r.Context(), userID, date)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, sum)
}
