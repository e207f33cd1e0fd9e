package api

import (
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mealmetrics/backend/internal/middleware"
	"github.com/mealmetrics/backend/internal/service"
)

// MealHandler exposes the photo analysis pipeline and the meal ledger
// over HTTP.
type MealHandler struct {
	visionService *service.VisionService
	pendingStore  *service.PendingMealStore
	mealService   *service.MealService
	photoService  *service.PhotoService
	authService   *service.AuthService
	rateLimiter   *middleware.RateLimiter
	maxImageBytes int64
}

// NewMealHandler creates a new meal handler.
func NewMealHandler(
	visionService *service.VisionService,
	pendingStore *service.PendingMealStore,
	mealService *service.MealService,
	photoService *service.PhotoService,
	authService *service.AuthService,
	rateLimiter *middleware.RateLimiter,
	maxImageSizeMB int,
) *MealHandler {
	return &MealHandler{
		visionService: visionService,
		pendingStore:  pendingStore,
		mealService:   mealService,
		photoService:  photoService,
		authService:   authService,
		rateLimiter:   rateLimiter,
		maxImageBytes: int64(maxImageSizeMB) * 1024 * 1024,
	}
}

// RegisterRoutes registers the meal routes.
func (h *MealHandler) RegisterRoutes(router *gin.RouterGroup) {
	meals := router.Group("/meals")
	meals.Use(middleware.AuthMiddleware(h.authService))
	{
		analyze := meals.Group("")
		if h.rateLimiter != nil {
			analyze.Use(h.rateLimiter.RateLimitMiddleware())
		}
		analyze.POST("/analyze", h.Analyze)

		meals.POST("/pending/:id/confirm", h.ConfirmPending)
		meals.DELETE("/pending/:id", h.CancelPending)
		meals.GET("/photos/:id", h.MealPhoto)
		meals.GET("/today", h.TodaySummary)
		meals.GET("/history", h.History)
		meals.GET("/stats", h.Stats)
		meals.DELETE("/today", h.ClearToday)
		meals.DELETE("", h.ClearAll)
	}
}

// Analyze accepts a multipart photo upload plus an optional caption,
// runs the vision pipeline, and parks the result as a pending meal the
// user can confirm or discard.
func (h *MealHandler) Analyze(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	fileHeader, err := c.FormFile("photo")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"message": "A photo file is required",
		})
		return
	}
	if fileHeader.Size > h.maxImageBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error":   "Photo too large",
			"message": "The uploaded photo exceeds the maximum allowed size",
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"message": "Could not read the uploaded photo",
		})
		return
	}
	defer func() { _ = file.Close() }()

	imageData, err := io.ReadAll(io.LimitReader(file, h.maxImageBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"message": "Could not read the uploaded photo",
		})
		return
	}
	if int64(len(imageData)) > h.maxImageBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error":   "Photo too large",
			"message": "The uploaded photo exceeds the maximum allowed size",
		})
		return
	}

	caption := c.PostForm("caption")

	analysis, processedJPEG, err := h.visionService.AnalyzeMealPhoto(c.Request.Context(), imageData, caption)
	if err != nil {
		kind := service.ErrorKindOf(err)
		log.Printf("[MealHandler] analysis failed for user %d: %v", userID, err)
		c.JSON(statusForKind(kind), gin.H{
			"error":   "Analysis failed",
			"message": service.UserMessageForKind(kind),
		})
		return
	}

	var photoKey string
	if h.photoService != nil && h.photoService.Enabled() {
		photoKey, err = h.photoService.Upload(c.Request.Context(), userID, processedJPEG)
		if err != nil {
			// Archival is best effort, the analysis still stands.
			log.Printf("[MealHandler] photo upload failed for user %d: %v", userID, err)
			photoKey = ""
		}
	}

	pending := &service.PendingMeal{
		UserID:   userID,
		Analysis: *analysis,
		PhotoKey: photoKey,
	}
	if err := h.pendingStore.Save(c.Request.Context(), pending); err != nil {
		log.Printf("[MealHandler] failed to save pending meal for user %d: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to store analysis",
			"message": "Please try again",
		})
		return
	}

	c.JSON(http.StatusOK, AnalyzeResponse{
		PendingID: pending.ID,
		Message:   h.visionService.RenderAnalysis(analysis),
		Analysis:  analysis,
	})
}

// ConfirmPending logs a previously analyzed meal into the ledger.
func (h *MealHandler) ConfirmPending(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	pending, err := h.pendingStore.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrPendingNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "Pending meal not found",
				"message": "The analysis has expired or was already handled",
			})
			return
		}
		log.Printf("[MealHandler] failed to load pending meal for user %d: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load pending meal"})
		return
	}

	meal, err := h.mealService.LogMeal(c.Request.Context(), userID, &pending.Analysis, pending.PhotoKey)
	if err != nil {
		log.Printf("[MealHandler] failed to log meal for user %d: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to log meal"})
		return
	}

	if err := h.pendingStore.Delete(c.Request.Context(), userID, pending.ID); err != nil {
		log.Printf("[MealHandler] failed to delete pending meal %s: %v", pending.ID, err)
	}

	summary, err := h.mealService.TodaySummary(c.Request.Context(), userID)
	if err != nil {
		// The meal is saved, the summary is a convenience.
		log.Printf("[MealHandler] failed to load today summary for user %d: %v", userID, err)
		c.JSON(http.StatusCreated, gin.H{"meal": meal})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"meal":    meal,
		"summary": summary,
	})
}

// CancelPending discards a pending analysis without logging it.
func (h *MealHandler) CancelPending(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	id := c.Param("id")
	if _, err := h.pendingStore.Get(c.Request.Context(), userID, id); err != nil {
		if errors.Is(err, service.ErrPendingNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "Pending meal not found",
				"message": "The analysis has expired or was already handled",
			})
			return
		}
		log.Printf("[MealHandler] failed to load pending meal for user %d: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load pending meal"})
		return
	}

	if err := h.pendingStore.Delete(c.Request.Context(), userID, id); err != nil {
		log.Printf("[MealHandler] failed to delete pending meal %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to discard pending meal"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

// MealPhoto returns a short-lived download link for a logged meal's
// archived photo.
func (h *MealHandler) MealPhoto(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	if h.photoService == nil || !h.photoService.Enabled() {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "Photo not available",
			"message": "Photo storage is not configured",
		})
		return
	}

	meal, err := h.mealService.GetMeal(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Meal not found"})
			return
		}
		log.Printf("[MealHandler] failed to load meal for user %d: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load meal"})
		return
	}
	if meal.PhotoKey == "" {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "Photo not available",
			"message": "No photo was stored for this meal",
		})
		return
	}

	url, err := h.photoService.PresignedURL(c.Request.Context(), meal.PhotoKey, 15*time.Minute)
	if err != nil {
		log.Printf("[MealHandler] failed to presign photo %s: %v", meal.PhotoKey, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate photo link"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"url":        url,
		"expires_in": int((15 * time.Minute).Seconds()),
	})
}

// TodaySummary returns the rollup plus the individual meals for today.
func (h *MealHandler) TodaySummary(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	summary, err := h.mealService.TodaySummary(c.Request.Context(), userID)
	if err != nil {
		log.Printf("[MealHandler] failed to load today summary for user %d: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load summary"})
		return
	}

	c.JSON(http.StatusOK, summary)
}

// History returns the summary for a specific past date.
func (h *MealHandler) History(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	date := c.Query("date")
	if _, err := time.Parse("2006-01-02", date); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid date",
			"message": "The date must be in YYYY-MM-DD format",
		})
		return
	}

	summary, err := h.mealService.SummaryForDate(c.Request.Context(), userID, date)
	if err != nil {
		log.Printf("[MealHandler] failed to load summary for user %d on %s: %v", userID, date, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load summary"})
		return
	}

	c.JSON(http.StatusOK, summary)
}

// Stats aggregates the meal ledger over the last week or month.
func (h *MealHandler) Stats(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var days int
	switch c.DefaultQuery("period", "week") {
	case "week":
		days = 7
	case "month":
		days = 30
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid period",
			"message": "The period must be week or month",
		})
		return
	}

	stats, err := h.mealService.Stats(c.Request.Context(), userID, days)
	if err != nil {
		log.Printf("[MealHandler] failed to load stats for user %d: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load stats"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// ClearToday deletes every meal logged today along with its rollup.
func (h *MealHandler) ClearToday(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	deleted, err := h.mealService.ClearDay(c.Request.Context(), userID, h.mealService.Today())
	if err != nil {
		log.Printf("[MealHandler] failed to clear today for user %d: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear meals"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

// ClearAll deletes the user's entire meal history.
func (h *MealHandler) ClearAll(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	deleted, err := h.mealService.ClearAll(c.Request.Context(), userID)
	if err != nil {
		log.Printf("[MealHandler] failed to clear history for user %d: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear meals"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

// statusForKind maps pipeline failures onto HTTP status codes. Model
// trouble is the server's problem, unusable responses are reported as
// unprocessable so the caller can retake the photo.
func statusForKind(kind service.ErrorKind) int {
	switch kind {
	case service.KindTransient, service.KindModelUnavailable:
		return http.StatusServiceUnavailable
	case service.KindMalformedResponse, service.KindMissingField, service.KindValidation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
