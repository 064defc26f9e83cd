package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/gh-digest/app/database"
	"github.com/lysyi3m/gh-digest/app/detector"
	"github.com/lysyi3m/gh-digest/app/feed"
	"github.com/lysyi3m/gh-digest/app/tasks"
	"github.com/lysyi3m/gh-digest/app/translation"
)

const (
	feedItemLimit   = 50
	defaultPerPage  = 20
	maxPerPage      = 100
	userIDHeader    = "X-User-ID"
	errDatabase     = "Database error"
	errUserRequired = "User ID required"
)

func NewHandler(config HandlerConfig, configCache *feed.ConfigCache, targetRepo database.TargetRepository,
	activityRepo database.ActivityRepository, detector tasks.UpdateDetector, translations TranslationService,
	scheduler tasks.TaskSchedulerInterface) *Handler {
	return &Handler{
		configCache:  configCache,
		targetRepo:   targetRepo,
		activityRepo: activityRepo,
		generator:    feed.NewGenerator(config.BaseURL, config.Version),
		detector:     detector,
		translations: translations,
		scheduler:    scheduler,
		feedLanguage: config.FeedLanguage,
		version:      config.Version,
	}
}

func (h *Handler) GetFeed(c *gin.Context) {
	name := c.Param("name")

	targetConfig, err := h.configCache.GetConfig(name)
	if err != nil {
		slog.Error("Target configuration not found", "target", name, "error", err)
		c.Status(http.StatusNotFound)
		return
	}

	target, err := h.targetRepo.GetTargetByName(c.Request.Context(), name)
	if err != nil {
		slog.Error("Database error", "operation", "get_target", "target", name, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	if target == nil {
		slog.Error("Target not found in database", "target", name)
		c.Status(http.StatusNotFound)
		return
	}

	activities, err := h.activityRepo.ListByTarget(c.Request.Context(), target.ID, feedItemLimit)
	if err != nil {
		slog.Error("Database error", "operation", "list_activities", "target", name, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	channel := feed.Channel{
		Name:     name,
		Title:    fmt.Sprintf("%s activity", targetConfig.Repo),
		Link:     "https://github.com/" + targetConfig.Repo,
		Language: h.feedLanguage,
	}

	rss, err := h.generator.Run(channel, activities)
	if err != nil {
		slog.Error("RSS generation error", "target", name, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.Header("X-Feed-Items", strconv.Itoa(len(activities)))
	c.Header("X-Feed-Name", name)
	if target.LastCheckedAt != nil {
		c.Header("X-Last-Checked", target.LastCheckedAt.Format(time.RFC3339))
	}

	c.String(http.StatusOK, rss)
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
		"version":   h.version,
	}

	if targetCount, err := h.targetRepo.GetTargetCount(c.Request.Context()); err == nil {
		health["targets"] = targetCount
	}

	health["loaded_configurations"] = h.configCache.GetConfigCount()
	health["translation_enabled"] = h.translations != nil

	c.JSON(http.StatusOK, health)
}

func (h *Handler) APIListTargets(c *gin.Context) {
	configs := h.configCache.GetConfigs()

	targets := make([]map[string]interface{}, 0, len(configs))

	for _, targetConfig := range configs {
		targetInfo := map[string]interface{}{
			"name":             targetConfig.Name,
			"repo":             targetConfig.Repo,
			"source":           targetConfig.Source,
			"enabled":          targetConfig.Settings.Enabled,
			"auto_translate":   targetConfig.Settings.AutoTranslate,
			"refresh_interval": (time.Duration(targetConfig.Settings.RefreshInterval) * time.Second).String(),
			"watchers":         len(targetConfig.Watchers),
			"filters":          len(targetConfig.Filters),
		}

		if target, err := h.targetRepo.GetTargetByName(c.Request.Context(), targetConfig.Name); err == nil && target != nil {
			targetInfo["id"] = target.ID
			targetInfo["last_checked_at"] = target.LastCheckedAt
			targetInfo["next_check_at"] = target.NextCheckAt

			if stats, err := h.activityRepo.GetActivityStats(c.Request.Context(), target.ID); err == nil {
				targetInfo["activity_count"] = stats.Total
			}
		}

		targets = append(targets, targetInfo)
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"targets": targets,
		"total":   len(targets),
	})
}

func (h *Handler) APIGetTargetDetails(c *gin.Context) {
	name := c.Param("name")

	targetConfig, err := h.configCache.GetConfig(name)
	if err != nil {
		slog.Error("Target configuration not found", "target", name, "error", err)
		c.JSON(http.StatusNotFound, gin.H{"error": "Target configuration not found"})
		return
	}

	target, err := h.targetRepo.GetTargetByName(c.Request.Context(), name)
	if err != nil {
		slog.Error("Database error", "operation", "get_target", "target", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errDatabase})
		return
	}

	if target == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Target not found in database"})
		return
	}

	details := map[string]interface{}{
		"name":             name,
		"repo":             targetConfig.Repo,
		"source":           targetConfig.Source,
		"enabled":          targetConfig.Settings.Enabled,
		"auto_translate":   targetConfig.Settings.AutoTranslate,
		"page_size":        targetConfig.Settings.PageSize,
		"refresh_interval": (time.Duration(targetConfig.Settings.RefreshInterval) * time.Second).String(),
		"timeout":          (time.Duration(targetConfig.Settings.Timeout) * time.Second).String(),
		"watchers":         targetConfig.Watchers,
		"filters":          targetConfig.Filters,
	}

	details["database"] = map[string]interface{}{
		"id":              target.ID,
		"full_name":       target.FullName,
		"source_type":     target.SourceType,
		"last_checked_at": target.LastCheckedAt,
		"next_check_at":   target.NextCheckAt,
		"created_at":      target.CreatedAt,
		"updated_at":      target.UpdatedAt,
	}

	if stats, err := h.activityRepo.GetActivityStats(c.Request.Context(), target.ID); err == nil {
		details["activities"] = map[string]interface{}{
			"total":         stats.Total,
			"releases":      stats.Releases,
			"issues":        stats.Issues,
			"pull_requests": stats.PullRequests,
		}
		details["translations"] = map[string]interface{}{
			"completed": stats.TranslationsDone,
			"queued":    stats.TranslationsQueued,
			"failed":    stats.TranslationsFailed,
		}
	}

	c.JSON(http.StatusOK, details)
}

func (h *Handler) APIReloadTarget(c *gin.Context) {
	name := c.Param("name")

	if _, err := h.configCache.GetConfig(name); err != nil {
		slog.Error("Target configuration not found", "target", name, "error", err)
		c.JSON(http.StatusNotFound, gin.H{"error": "Target configuration not found"})
		return
	}

	targetConfig, err := h.configCache.LoadConfig(name)
	if err != nil {
		slog.Error("Error reloading configuration", "target", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to reload configuration",
			"details": err.Error(),
		})
		return
	}

	if err := h.scheduler.ScheduleConfigSync(targetConfig); err != nil {
		slog.Error("Error enqueueing sync task", "target", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to enqueue sync task",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Configuration reloaded and sync task enqueued successfully",
		"target": gin.H{
			"name":     name,
			"repo":     targetConfig.Repo,
			"enabled":  targetConfig.Settings.Enabled,
			"watchers": len(targetConfig.Watchers),
		},
	})
}

// APIDetectTarget runs a detection pass synchronously and reports the activities it stored.
func (h *Handler) APIDetectTarget(c *gin.Context) {
	name := c.Param("name")

	target, err := h.targetRepo.GetTargetByName(c.Request.Context(), name)
	if err != nil {
		slog.Error("Database error", "operation", "get_target", "target", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errDatabase})
		return
	}

	if target == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Target not found in database"})
		return
	}

	newIDs, err := h.detector.DetectUpdates(c.Request.Context(), target.ID)
	if err != nil {
		var detectionErr *detector.DetectionError
		switch {
		case errors.Is(err, detector.ErrTargetNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Target not found in database"})
		case errors.Is(err, detector.ErrUnsupportedTargetType):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Unsupported target source", "details": err.Error()})
		case errors.As(err, &detectionErr):
			slog.Warn("Detection failed", "target", name, "error", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "Activity source unavailable", "details": detectionErr.Err.Error()})
		default:
			slog.Error("Detection error", "target", name, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": errDatabase})
		}
		return
	}

	if newIDs == nil {
		newIDs = []string{}
	}

	c.JSON(http.StatusOK, gin.H{
		"target":           name,
		"new_activity_ids": newIDs,
		"count":            len(newIDs),
	})
}

func (h *Handler) APIListActivities(c *gin.Context) {
	userID := c.GetHeader(userIDHeader)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": errUserRequired})
		return
	}

	query := database.ActivityQuery{
		Kind:              database.ActivityKind(c.Query("kind")),
		TranslationStatus: database.TranslationStatus(c.Query("translation_status")),
		Page:              1,
		PerPage:           defaultPerPage,
	}

	switch query.Kind {
	case "", database.ActivityKindRelease, database.ActivityKindIssue, database.ActivityKindPullRequest:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid kind", "details": string(query.Kind)})
		return
	}

	switch query.TranslationStatus {
	case "", database.TranslationStatusNotRequested, database.TranslationStatusPending,
		database.TranslationStatusProcessing, database.TranslationStatusCompleted, database.TranslationStatusFailed:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid translation status", "details": string(query.TranslationStatus)})
		return
	}

	if raw := c.Query("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid page"})
			return
		}
		query.Page = page
	}

	if raw := c.Query("per_page"); raw != "" {
		perPage, err := strconv.Atoi(raw)
		if err != nil || perPage < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid per_page"})
			return
		}
		query.PerPage = min(perPage, maxPerPage)
	}

	if name := c.Query("target"); name != "" {
		target, err := h.targetRepo.GetTargetByName(c.Request.Context(), name)
		if err != nil {
			slog.Error("Database error", "operation", "get_target", "target", name, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": errDatabase})
			return
		}
		if target == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Target not found in database"})
			return
		}
		query.TargetID = target.ID
	}

	activities, total, err := h.activityRepo.ListForUser(c.Request.Context(), userID, query)
	if err != nil {
		slog.Error("Database error", "operation", "list_activities", "user", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errDatabase})
		return
	}

	items := make([]activityResponse, 0, len(activities))
	for _, activity := range activities {
		items = append(items, newActivityResponse(activity))
	}

	c.JSON(http.StatusOK, gin.H{
		"activities": items,
		"total":      total,
		"page":       query.Page,
		"per_page":   query.PerPage,
	})
}

func (h *Handler) APIRequestTranslation(c *gin.Context) {
	if h.translations == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Translation is not configured"})
		return
	}

	userID := c.GetHeader(userIDHeader)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": errUserRequired})
		return
	}

	var req translationRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	activityID := c.Param("id")
	outcome, activity, err := h.translations.RequestTranslation(c.Request.Context(), activityID, userID, req.Force)
	if err != nil {
		slog.Error("Database error", "operation", "request_translation", "activity", activityID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errDatabase})
		return
	}

	switch outcome {
	case translation.RequestNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": "Activity not found"})
		return
	case translation.RequestAlreadyCompleted:
		c.JSON(http.StatusOK, gin.H{"outcome": outcome, "translation": activityTranslation(activity)})
		return
	case translation.RequestConflict:
		// Processing without force counts as already in progress.
		if !req.Force && activity.TranslationStatus == database.TranslationStatusProcessing {
			c.JSON(http.StatusAccepted, gin.H{"outcome": outcomeInProgress, "translation": activityTranslation(activity)})
			return
		}
		c.JSON(http.StatusConflict, gin.H{"outcome": outcome, "translation": activityTranslation(activity)})
		return
	}

	if activity.TranslationStatus == database.TranslationStatusPending && h.scheduler != nil {
		if err := h.scheduler.ScheduleTranslation(activityID); err != nil {
			slog.Warn("Failed to enqueue translation, leaving it for the next tick", "activity", activityID, "error", err)
		}
	}

	c.JSON(http.StatusAccepted, gin.H{"outcome": outcome, "translation": activityTranslation(activity)})
}

func (h *Handler) APIGetTranslation(c *gin.Context) {
	userID := c.GetHeader(userIDHeader)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": errUserRequired})
		return
	}

	if h.translations == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Translation is not configured"})
		return
	}

	activityID := c.Param("id")
	status, err := h.translations.GetTranslationStatus(c.Request.Context(), activityID, userID)
	if errors.Is(err, translation.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Activity not found"})
		return
	}
	if err != nil {
		slog.Error("Database error", "operation", "get_translation", "activity", activityID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errDatabase})
		return
	}

	c.JSON(http.StatusOK, newTranslationStatusResponse(status))
}

func activityTranslation(activity *database.Activity) translationStatusResponse {
	return newTranslationStatusResponse(&translation.Status{
		ActivityID:      activity.ID,
		Status:          activity.TranslationStatus,
		RequestedAt:     activity.TranslationRequestedAt,
		StartedAt:       activity.TranslationStartedAt,
		CompletedAt:     activity.TranslationCompletedAt,
		Error:           activity.TranslationError,
		TranslatedTitle: activity.TranslatedTitle,
		TranslatedBody:  activity.TranslatedBody,
		Summary:         activity.Summary,
	})
}
