package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mealmetrics/backend/internal/models"
	"github.com/mealmetrics/backend/internal/types"
)

// maxDescriptionLen caps stored meal descriptions.
const maxDescriptionLen = 1000

// MealService owns the confirmed-meal ledger and its daily rollups. Calendar
// dates are computed in the configured display timezone so "today" matches
// the user's day, not the server's.
type MealService struct {
	db  *gorm.DB
	loc *time.Location
}

// NewMealService creates a MealService. utcOffsetHours is the fixed display
// timezone offset.
func NewMealService(db *gorm.DB, utcOffsetHours int) *MealService {
	return &MealService{
		db:  db,
		loc: time.FixedZone(fmt.Sprintf("UTC%+d", utcOffsetHours), utcOffsetHours*3600),
	}
}

// Now returns the current time in the display timezone.
func (s *MealService) Now() time.Time {
	return time.Now().In(s.loc)
}

// Today returns today's calendar date in the display timezone.
func (s *MealService) Today() string {
	return s.Now().Format("2006-01-02")
}

// EnsureUser creates or refreshes the user row for a gateway identity.
func (s *MealService) EnsureUser(ctx context.Context, userID int64, username, firstName, lastName string) error {
	now := time.Now()
	var user models.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = models.User{
			ID:           userID,
			Username:     username,
			FirstName:    firstName,
			LastName:     lastName,
			CreatedAt:    now,
			LastActiveAt: now,
		}
		return s.db.WithContext(ctx).Create(&user).Error
	}
	if err != nil {
		return fmt.Errorf("failed to look up user %d: %w", userID, err)
	}

	return s.db.WithContext(ctx).Model(&user).Updates(map[string]any{
		"username":       username,
		"first_name":     firstName,
		"last_name":      lastName,
		"last_active_at": now,
	}).Error
}

// LogMeal persists a confirmed analysis as a flat ledger entry and updates
// the daily summary in the same transaction.
func (s *MealService) LogMeal(ctx context.Context, userID int64, analysis *types.MealAnalysis, photoKey string) (*models.Meal, error) {
	description := analysis.Description
	if description == "" {
		return nil, fmt.Errorf("meal description must not be empty")
	}
	if len(description) > maxDescriptionLen {
		log.Printf("[MealService] description too long for user %d, truncating", userID)
		description = description[:maxDescriptionLen]
	}
	if analysis.TotalCalories < 0 {
		return nil, fmt.Errorf("calories must not be negative")
	}
	if analysis.TotalCalories > 10000 {
		log.Printf("[MealService] calories look too high for user %d: %.0f", userID, analysis.TotalCalories)
	}

	now := s.Now()
	meal := &models.Meal{
		ID:          uuid.New(),
		UserID:      userID,
		Description: description,
		Calories:    analysis.TotalCalories,
		Confidence:  analysis.Confidence,
		PhotoKey:    photoKey,
		LoggedAt:    now,
		Date:        now.Format("2006-01-02"),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(meal).Error; err != nil {
			return fmt.Errorf("failed to insert meal: %w", err)
		}
		return applySummaryDelta(tx, userID, meal.Date, meal.Calories, 1)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[MealService] meal logged for user %d: %s (%.0f cal)", userID, description, meal.Calories)
	return meal, nil
}

// applySummaryDelta updates or creates the daily summary row.
func applySummaryDelta(tx *gorm.DB, userID int64, date string, calories float64, mealDelta int) error {
	var summary models.DailySummary
	err := tx.Where("user_id = ? AND date = ?", userID, date).First(&summary).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if mealDelta <= 0 {
			return nil
		}
		summary = models.DailySummary{
			ID:            uuid.New(),
			UserID:        userID,
			Date:          date,
			TotalCalories: calories,
			MealCount:     mealDelta,
		}
		return tx.Create(&summary).Error
	}
	if err != nil {
		return fmt.Errorf("failed to load daily summary: %w", err)
	}

	return tx.Model(&summary).Updates(map[string]any{
		"total_calories": summary.TotalCalories + calories,
		"meal_count":     summary.MealCount + mealDelta,
	}).Error
}

// GetMeal loads one ledger entry owned by the user.
func (s *MealService) GetMeal(ctx context.Context, userID int64, id string) (*models.Meal, error) {
	var meal models.Meal
	err := s.db.WithContext(ctx).First(&meal, "id = ? AND user_id = ?", id, userID).Error
	if err != nil {
		return nil, err
	}
	return &meal, nil
}

// DaySummary is the view returned for a single calendar date.
type DaySummary struct {
	Date          string        `json:"date"`
	TotalCalories float64       `json:"total_calories"`
	MealCount     int           `json:"meal_count"`
	Meals         []models.Meal `json:"meals"`
}

// SummaryForDate returns the rollup plus the individual meals for one date.
func (s *MealService) SummaryForDate(ctx context.Context, userID int64, date string) (*DaySummary, error) {
	var meals []models.Meal
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND date = ?", userID, date).
		Order("logged_at ASC").
		Find(&meals).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load meals for %s: %w", date, err)
	}

	summary := &DaySummary{Date: date, Meals: meals, MealCount: len(meals)}
	for _, m := range meals {
		summary.TotalCalories += m.Calories
	}
	return summary, nil
}

// TodaySummary returns today's rollup.
func (s *MealService) TodaySummary(ctx context.Context, userID int64) (*DaySummary, error) {
	return s.SummaryForDate(ctx, userID, s.Today())
}

// PeriodStats aggregates daily summaries over a trailing window.
type PeriodStats struct {
	StartDate      string                `json:"start_date"`
	EndDate        string                `json:"end_date"`
	TotalCalories  float64               `json:"total_calories"`
	TotalMeals     int                   `json:"total_meals"`
	DaysWithMeals  int                   `json:"days_with_meals"`
	AvgDailyCal    float64               `json:"avg_daily_calories"`
	DailySummaries []models.DailySummary `json:"daily_summaries"`
}

// Stats aggregates the last `days` calendar days including today.
func (s *MealService) Stats(ctx context.Context, userID int64, days int) (*PeriodStats, error) {
	end := s.Now()
	start := end.AddDate(0, 0, -(days - 1))
	startDate := start.Format("2006-01-02")
	endDate := end.Format("2006-01-02")

	var summaries []models.DailySummary
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND date >= ? AND date <= ?", userID, startDate, endDate).
		Order("date ASC").
		Find(&summaries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load summaries: %w", err)
	}

	stats := &PeriodStats{
		StartDate:      startDate,
		EndDate:        endDate,
		DailySummaries: summaries,
		DaysWithMeals:  len(summaries),
	}
	for _, d := range summaries {
		stats.TotalCalories += d.TotalCalories
		stats.TotalMeals += d.MealCount
	}
	if stats.DaysWithMeals > 0 {
		stats.AvgDailyCal = stats.TotalCalories / float64(stats.DaysWithMeals)
	}
	return stats, nil
}

// ClearDay deletes all meals and the summary for one date. Returns the
// number of meals removed.
func (s *MealService) ClearDay(ctx context.Context, userID int64, date string) (int64, error) {
	var removed int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND date = ?", userID, date).Delete(&models.Meal{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete meals: %w", res.Error)
		}
		removed = res.RowsAffected
		return tx.Where("user_id = ? AND date = ?", userID, date).Delete(&models.DailySummary{}).Error
	})
	return removed, err
}

// ClearAll deletes the user's entire ledger.
func (s *MealService) ClearAll(ctx context.Context, userID int64) (int64, error) {
	var removed int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ?", userID).Delete(&models.Meal{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete meals: %w", res.Error)
		}
		removed = res.RowsAffected
		return tx.Where("user_id = ?", userID).Delete(&models.DailySummary{}).Error
	})
	return removed, err
}
