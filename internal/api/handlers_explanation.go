package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/diaria/diaria-assistant/internal/api/respond"
	"github.com/diaria/diaria-assistant/internal/services"
)

// ExplanationHandler exposes voice-explanation submission.
type ExplanationHandler struct {
	explanations *services.ExplanationService
}

func NewExplanationHandler(explanations *services.ExplanationService) *ExplanationHandler {
	return &ExplanationHandler{explanations: explanations}
}

// Submit handles
// POST /api/users/{userId}/activities/{activityId}/tasks/{taskId}/explanation.
func (h *ExplanationHandler) Submit(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var req struct {
		Text        string `json:"text"`
		AuthorEmail string `json:"authorEmail"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "invalid JSON")
		return
	}

	res, err := h.explanations.SubmitExplanation(r.Context(), services.SubmitExplanationRequest{
		UserID:      vars["userId"],
		ActivityID:  vars["activityId"],
		TaskID:      vars["taskId"],
		Text:        req.Text,
		AuthorEmail: req.AuthorEmail,
	})
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, res)
}
