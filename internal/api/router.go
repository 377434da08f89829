// Package api is the HTTP transport: gorilla/mux routing over the domain
// services, with panic recovery installed globally.
package api

import (
	"github.com/gorilla/mux"

	"github.com/diaria/diaria-assistant/internal/api/recovery"
	"github.com/diaria/diaria-assistant/internal/services"
)

// Deps carries the constructed services the router exposes.
type Deps struct {
	Sync         *services.SyncService
	Memory       *services.MemoryService
	Explanations *services.ExplanationService
	Summary      *services.SummaryService

	// IsHealthy feeds /api/health; nil reports healthy.
	IsHealthy func() bool
}

// NewRouter builds the full route table.
func NewRouter(deps Deps) *mux.Router {
	router := mux.NewRouter()
	router.Use(RequestID, recovery.Middleware)

	healthHandler := NewHealthHandler(deps.IsHealthy)
	syncHandler := NewSyncHandler(deps.Sync, deps.Summary)
	memoryHandler := NewMemoryHandler(deps.Memory)
	explanationHandler := NewExplanationHandler(deps.Explanations)

	router.HandleFunc("/api/health", healthHandler.CheckHealth).Methods("GET")

	// Sync and snapshot reads
	router.HandleFunc("/api/users/{userId}/sync", syncHandler.Sync).Methods("POST")
	router.HandleFunc("/api/users/{userId}/activities", syncHandler.Activities).Methods("GET")
	router.HandleFunc("/api/users/{userId}/summary", syncHandler.DailySummary).Methods("GET")

	// Memory record
	router.HandleFunc("/api/users/{userId}/memory", memoryHandler.CreateFact).Methods("POST")
	router.HandleFunc("/api/users/{userId}/memory", memoryHandler.Clear).Methods("DELETE")
	router.HandleFunc("/api/users/{userId}/memory/relevant", memoryHandler.GetRelevant).Methods("GET")
	router.HandleFunc("/api/users/{userId}/memory/context", memoryHandler.GetContext).Methods("GET")
	router.HandleFunc("/api/users/{userId}/memory/deduplicate", memoryHandler.Deduplicate).Methods("POST")
	router.HandleFunc("/api/users/{userId}/memory/conversation", memoryHandler.RecordConversation).Methods("POST")
	router.HandleFunc("/api/users/{userId}/memory/extract", memoryHandler.Extract).Methods("POST")

	// Task explanations
	router.HandleFunc("/api/users/{userId}/activities/{activityId}/tasks/{taskId}/explanation",
		explanationHandler.Submit).Methods("POST")

	// Maintenance
	router.HandleFunc("/api/maintenance/memory/decay", memoryHandler.Decay).Methods("POST")

	return router
}
