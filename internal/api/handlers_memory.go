package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/diaria/diaria-assistant/internal/api/respond"
	"github.com/diaria/diaria-assistant/internal/services"
)

// MemoryHandler exposes the memory record operations (thin transport
// layer).
type MemoryHandler struct {
	memory *services.MemoryService
}

func NewMemoryHandler(memory *services.MemoryService) *MemoryHandler {
	return &MemoryHandler{memory: memory}
}

// CreateFact handles POST /api/users/{userId}/memory.
func (h *MemoryHandler) CreateFact(w http.ResponseWriter, r *http.Request) {
	var req services.CreateFactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "invalid JSON")
		return
	}
	req.UserID = mux.Vars(r)["userId"]

	res, err := h.memory.CreateFact(r.Context(), req)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	status := http.StatusCreated
	if res.Duplicate {
		status = http.StatusOK
	}
	respond.WriteJSON(w, status, res)
}

// GetRelevant handles GET /api/users/{userId}/memory/relevant?q=&limit=.
func (h *MemoryHandler) GetRelevant(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	query := r.URL.Query().Get("q")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respond.WriteBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	res, err := h.memory.GetRelevant(r.Context(), userID, query, limit)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, res)
}

// GetContext handles GET /api/users/{userId}/memory/context.
func (h *MemoryHandler) GetContext(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]

	ctxText, err := h.memory.BuildAIContext(r.Context(), userID)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]string{
		"userId":  userID,
		"context": ctxText,
	})
}

// Deduplicate handles POST /api/users/{userId}/memory/deduplicate.
func (h *MemoryHandler) Deduplicate(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]

	removed, err := h.memory.DeduplicateExisting(r.Context(), userID)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"userId":  userID,
		"removed": removed,
	})
}

// RecordConversation handles POST /api/users/{userId}/memory/conversation.
func (h *MemoryHandler) RecordConversation(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]

	var req struct {
		Speaker string `json:"speaker"`
		Summary string `json:"summary"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "invalid JSON")
		return
	}

	if err := h.memory.RecordConversation(r.Context(), userID, req.Speaker, req.Summary); err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Extract handles POST /api/users/{userId}/memory/extract.
func (h *MemoryHandler) Extract(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]

	var req struct {
		UserMessage string `json:"userMessage"`
		AIMessage   string `json:"aiMessage"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "invalid JSON")
		return
	}

	res, err := h.memory.ExtractAndStore(r.Context(), userID, req.UserMessage, req.AIMessage)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, res)
}

// Clear handles DELETE /api/users/{userId}/memory[?category=].
func (h *MemoryHandler) Clear(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	category := r.URL.Query().Get("category")

	if err := h.memory.Clear(r.Context(), userID, category); err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Decay handles POST /api/maintenance/memory/decay.
func (h *MemoryHandler) Decay(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DaysUnused int `json:"daysUnused"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "invalid JSON")
		return
	}

	decayed, err := h.memory.DecayRelevance(r.Context(), req.DaysUnused)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]int{"decayed": decayed})
}
