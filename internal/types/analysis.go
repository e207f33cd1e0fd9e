package types

// HealthCategory classifies a meal for display and commentary purposes.
type HealthCategory string

const (
	HealthCategoryHealthy  HealthCategory = "healthy"
	HealthCategoryModerate HealthCategory = "moderate"
	HealthCategoryJunk     HealthCategory = "junk"
)

// FoodItem is one identified food or drink component of a meal.
type FoodItem struct {
	Name          string  `json:"name"`
	Portion       string  `json:"portion"`
	Calories      float64 `json:"calories"`
	Carbs         float64 `json:"carbs"`
	Protein       float64 `json:"protein"`
	Fat           float64 `json:"fat"`
	CookingMethod string  `json:"cooking_method,omitempty"`
	HealthScore   int     `json:"health_score"`
}

// MealAnalysis is the structured result of one image analysis. It is
// immutable once returned by the vision pipeline.
type MealAnalysis struct {
	Description           string         `json:"description"`
	FoodItems             []FoodItem     `json:"food_items"`
	TotalCalories         float64        `json:"total_calories"`
	Confidence            float64        `json:"confidence"`
	TotalCarbs            float64        `json:"total_carbs"`
	TotalProtein          float64        `json:"total_protein"`
	TotalFat              float64        `json:"total_fat"`
	HealthCategory        HealthCategory `json:"health_category"`
	HealthScore           int            `json:"health_score"`
	WittyComment          string         `json:"witty_comment,omitempty"`
	Recommendations       string         `json:"recommendations,omitempty"`
	FunFact               string         `json:"fun_fact,omitempty"`
	Notes                 string         `json:"notes,omitempty"`
	UserInputAcknowledged string         `json:"user_input_acknowledged,omitempty"`
}
