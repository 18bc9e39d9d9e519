package handlers

import (
	"context"
	"net/http"
	"time"

	"healthTrackerAPI/internal/logger"
	"healthTrackerAPI/middleware"
	"healthTrackerAPI/services"
)

type AchievementHandler struct {
	responder
	achievementService *services.AchievementService
	log                *logger.Logger
}

func NewAchievementHandler(achievementService *services.AchievementService, log *logger.Logger) *AchievementHandler {
	return &AchievementHandler{
		responder:          responder{log: log},
		achievementService: achievementService,
		log:                log,
	}
}

// CheckAchievements runs the unlock pass for the caller. Anonymous callers
// get an empty list rather than a 401.
func (h *AchievementHandler) CheckAchievements(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	clerkID, _ := middleware.GetClerkID(ctx)

	newly, err := h.achievementService.RunCheck(ctx, clerkID)
	if err != nil {
		h.log.Error("achievement check failed", "user_id", clerkID, "error", err)
		h.respondWithError(w, http.StatusInternalServerError, "Failed to check achievements")
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"newlyUnlocked": newly,
	})
}

func (h *AchievementHandler) GetAchievements(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, _ := middleware.GetClerkID(ctx)

	views, err := h.achievementService.GetCatalogWithProgress(ctx, clerkID)
	if err != nil {
		h.log.Error("failed to load achievements", "user_id", clerkID, "error", err)
		h.respondWithError(w, http.StatusInternalServerError, "Failed to load achievements")
		return
	}

	h.respondWithJSON(w, http.StatusOK, views)
}

func (h *AchievementHandler) GetLevel(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, _ := middleware.GetClerkID(ctx)

	info, err := h.achievementService.GetLevelInfo(ctx, clerkID)
	if err != nil {
		h.log.Error("failed to load level", "user_id", clerkID, "error", err)
		h.respondWithError(w, http.StatusInternalServerError, "Failed to load level")
		return
	}

	h.respondWithJSON(w, http.StatusOK, info)
}
