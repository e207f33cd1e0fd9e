package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a chat user known to the gateway. The primary key is the chat
// platform's numeric user id, not an internally generated one.
type User struct {
	ID           int64     `gorm:"primarykey" json:"id"`
	Username     string    `gorm:"size:100" json:"username"`
	FirstName    string    `gorm:"size:100" json:"first_name"`
	LastName     string    `gorm:"size:100" json:"last_name"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`
}

// Meal is one confirmed ledger entry.
type Meal struct {
	ID          uuid.UUID `gorm:"type:varchar(36);primarykey" json:"id"`
	UserID      int64     `gorm:"not null;index:idx_meals_user_date" json:"user_id"`
	Description string    `gorm:"size:1000;not null" json:"description"`
	Calories    float64   `gorm:"not null" json:"calories"`
	Confidence  float64   `json:"confidence"`
	PhotoKey    string    `gorm:"size:255" json:"photo_key,omitempty"`
	LoggedAt    time.Time `gorm:"not null" json:"logged_at"`
	Date        string    `gorm:"size:10;not null;index:idx_meals_user_date" json:"date"`
	CreatedAt   time.Time `json:"created_at"`
}

// DailySummary is the per-user per-calendar-date rollup, maintained in the
// same transaction as the meal insert.
type DailySummary struct {
	ID            uuid.UUID `gorm:"type:varchar(36);primarykey" json:"id"`
	UserID        int64     `gorm:"not null;uniqueIndex:idx_summaries_user_date" json:"user_id"`
	Date          string    `gorm:"size:10;not null;uniqueIndex:idx_summaries_user_date" json:"date"`
	TotalCalories float64   `gorm:"not null" json:"total_calories"`
	MealCount     int       `gorm:"not null" json:"meal_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
