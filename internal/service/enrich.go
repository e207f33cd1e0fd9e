package service

import (
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"

	"github.com/mealmetrics/backend/internal/types"
)

// Defaults applied when a numeric field is present but unparsable.
const (
	defaultCalories   = 100.0
	defaultConfidence = 50.0
	defaultHealthScr  = 5
)

// Calorie-to-macro split used whenever macros must be estimated: 50% of
// calories as carbs, 20% as protein, 30% as fat, at 4/4/9 kcal per gram.
const (
	carbCalorieShare    = 0.5
	proteinCalorieShare = 0.2
	fatCalorieShare     = 0.3
)

var firstNumberRe = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// parseFlexibleNumber coerces loosely-typed numeric input ("85%", "250
// calories", plain numbers) to a float. Unparsable input yields the default.
func parseFlexibleNumber(v any, def float64) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return f
		}
	case string:
		if m := firstNumberRe.FindString(n); m != "" {
			if f, err := strconv.ParseFloat(m, 64); err == nil {
				return f
			}
		}
	}
	return def
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampHealthScore(v float64) int {
	return int(clamp(v, 1, 10))
}

// ValidateAndEnrich turns a candidate JSON payload into a MealAnalysis,
// centralizing all defaulting and derived-field synthesis. When the candidate
// does not parse, it falls through to regex salvage over the raw text.
func ValidateAndEnrich(candidate, raw string) (*types.MealAnalysis, error) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(candidate), &obj); err != nil {
		log.Printf("[Validator] candidate JSON unparsable, attempting salvage: %v", err)
		return salvageAnalysis(raw)
	}
	return enrichParsed(obj)
}

// enrichParsed enforces required fields, coerces numerics and fills every
// optional field of the analysis.
func enrichParsed(obj map[string]any) (*types.MealAnalysis, error) {
	for _, field := range []string{"description", "total_calories", "confidence"} {
		if _, ok := obj[field]; !ok {
			return nil, newAnalysisError(KindMissingField, fmt.Sprintf("missing required field in AI response: %s", field))
		}
	}

	analysis := &types.MealAnalysis{
		Description:           asString(obj["description"]),
		TotalCalories:         clamp(parseFlexibleNumber(obj["total_calories"], defaultCalories), 0, 1e9),
		Confidence:            clamp(parseFlexibleNumber(obj["confidence"], defaultConfidence), 0, 100),
		TotalCarbs:            parseFlexibleNumber(obj["total_carbs"], 0),
		TotalProtein:          parseFlexibleNumber(obj["total_protein"], 0),
		TotalFat:              parseFlexibleNumber(obj["total_fat"], 0),
		HealthCategory:        parseHealthCategory(asString(obj["health_category"])),
		HealthScore:           clampHealthScore(parseFlexibleNumber(obj["health_score"], defaultHealthScr)),
		WittyComment:          asString(obj["witty_comment"]),
		Recommendations:       asString(obj["recommendations"]),
		FunFact:               asString(obj["fun_fact"]),
		Notes:                 asString(obj["notes"]),
		UserInputAcknowledged: asString(obj["user_input_acknowledged"]),
		FoodItems:             parseFoodItems(obj["food_items"]),
	}

	if len(analysis.FoodItems) == 0 {
		analysis.FoodItems = synthesizeItems(analysis.Description, analysis.TotalCalories, analysis.HealthScore)
	}
	backfillMacros(analysis)
	fillCommentary(analysis)

	return analysis, nil
}

func asString(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func parseHealthCategory(s string) types.HealthCategory {
	switch types.HealthCategory(strings.ToLower(s)) {
	case types.HealthCategoryHealthy:
		return types.HealthCategoryHealthy
	case types.HealthCategoryJunk:
		return types.HealthCategoryJunk
	default:
		return types.HealthCategoryModerate
	}
}

// parseFoodItems coerces the raw food_items array, passing every numeric
// sub-field through the tolerant parser.
func parseFoodItems(v any) []types.FoodItem {
	rawItems, ok := v.([]any)
	if !ok {
		return nil
	}

	items := make([]types.FoodItem, 0, len(rawItems))
	for _, ri := range rawItems {
		m, ok := ri.(map[string]any)
		if !ok {
			continue
		}
		name := asString(m["name"])
		if name == "" {
			continue
		}
		items = append(items, types.FoodItem{
			Name:          name,
			Portion:       asString(m["portion"]),
			Calories:      clamp(parseFlexibleNumber(m["calories"], 0), 0, 1e9),
			Carbs:         parseFlexibleNumber(m["carbs"], 0),
			Protein:       parseFlexibleNumber(m["protein"], 0),
			Fat:           parseFlexibleNumber(m["fat"], 0),
			CookingMethod: asString(m["cooking_method"]),
			HealthScore:   clampHealthScore(parseFlexibleNumber(m["health_score"], defaultHealthScr)),
		})
	}
	return items
}

// synthesizeItems builds a food-item breakdown from the description alone:
// comma-separated names share the total calories evenly and inherit the
// overall health score, with macros estimated via the standard split.
func synthesizeItems(description string, totalCalories float64, healthScore int) []types.FoodItem {
	parts := strings.Split(description, ",")
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		if name := strings.TrimSpace(p); name != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil
	}

	perItem := totalCalories / float64(len(names))
	items := make([]types.FoodItem, 0, len(names))
	for _, name := range names {
		carbs, protein, fat := macroSplit(perItem)
		items = append(items, types.FoodItem{
			Name:        name,
			Portion:     "estimated portion",
			Calories:    perItem,
			Carbs:       carbs,
			Protein:     protein,
			Fat:         fat,
			HealthScore: healthScore,
		})
	}
	return items
}

// macroSplit converts calories to estimated gram amounts.
func macroSplit(calories float64) (carbs, protein, fat float64) {
	carbs = calories * carbCalorieShare / 4
	protein = calories * proteinCalorieShare / 4
	fat = calories * fatCalorieShare / 9
	return
}

// backfillMacros estimates meal totals when the model returned none.
func backfillMacros(a *types.MealAnalysis) {
	if a.TotalCarbs == 0 && a.TotalProtein == 0 && a.TotalFat == 0 && a.TotalCalories > 0 {
		a.TotalCarbs, a.TotalProtein, a.TotalFat = macroSplit(a.TotalCalories)
	}
}

// fillCommentary replaces empty commentary fields with category-aware filler
// so the rendered message never has blank sections.
func fillCommentary(a *types.MealAnalysis) {
	highCalorie := a.TotalCalories >= 800
	switch {
	case a.HealthCategory == types.HealthCategoryJunk || highCalorie:
		if a.WittyComment == "" {
			a.WittyComment = "That plate is living its best life - your arteries may disagree."
		}
		if a.Recommendations == "" {
			a.Recommendations = "Balance this out with something lighter for your next meal."
		}
		if a.FunFact == "" {
			a.FunFact = "A brisk 30-minute walk burns roughly 150 calories."
		}
	case a.HealthCategory == types.HealthCategoryHealthy || a.TotalCalories <= 350:
		if a.WittyComment == "" {
			a.WittyComment = "Your future self just sent a thank-you note for this one."
		}
		if a.Recommendations == "" {
			a.Recommendations = "Keep it up - meals like this add up to real results."
		}
		if a.FunFact == "" {
			a.FunFact = "Colorful vegetables pack different antioxidants - variety beats quantity."
		}
	default:
		if a.WittyComment == "" {
			a.WittyComment = "A solid middle-of-the-road meal - no complaints here."
		}
		if a.Recommendations == "" {
			a.Recommendations = "Adding a side of vegetables would round this out nicely."
		}
		if a.FunFact == "" {
			a.FunFact = "It takes about 20 minutes for your brain to register fullness."
		}
	}
}

// Salvage regexes for responses that never became valid JSON.
var (
	salvageDescriptionRe = regexp.MustCompile(`"description"\s*:\s*"([^"]*)"`)
	salvageCaloriesRe    = regexp.MustCompile(`"total_calories"\s*:\s*"?(-?\d+(?:\.\d+)?)`)
	salvageConfidenceRe  = regexp.MustCompile(`"confidence"\s*:\s*"?(-?\d+(?:\.\d+)?)`)
	salvageItemRe        = regexp.MustCompile(`"name"\s*:\s*"([^"]+)"[^{}]*?"calories"\s*:\s*"?(-?\d+(?:\.\d+)?)`)
)

// foodKeywords is the last-resort signal used to keep a degraded result
// instead of failing an interactive exchange outright.
var foodKeywords = []string{
	"pizza", "burger", "sandwich", "salad", "rice", "pasta", "noodle",
	"chicken", "beef", "fish", "egg", "bread", "soup", "curry", "fries",
	"cake", "cookie", "fruit", "juice", "coffee", "tea", "milk", "meal",
	"snack", "drink", "food",
}

// salvageAnalysis recovers a minimal MealAnalysis from malformed raw text.
// It fails only when the text carries no JSON-like structure, no food
// keyword and no numeric signal at all.
func salvageAnalysis(raw string) (*types.MealAnalysis, error) {
	analysis := &types.MealAnalysis{
		TotalCalories:  150,
		Confidence:     60,
		HealthCategory: types.HealthCategoryModerate,
		HealthScore:    defaultHealthScr,
		Notes:          "Analysis completed with partial data due to response formatting",
	}

	found := false
	if m := salvageDescriptionRe.FindStringSubmatch(raw); m != nil && strings.TrimSpace(m[1]) != "" {
		analysis.Description = strings.TrimSpace(m[1])
		found = true
	}
	if m := salvageCaloriesRe.FindStringSubmatch(raw); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			analysis.TotalCalories = clamp(v, 0, 1e9)
			found = true
		}
	}
	if m := salvageConfidenceRe.FindStringSubmatch(raw); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			analysis.Confidence = clamp(v, 0, 100)
		}
	}
	for _, m := range salvageItemRe.FindAllStringSubmatch(raw, -1) {
		calories, _ := strconv.ParseFloat(m[2], 64)
		analysis.FoodItems = append(analysis.FoodItems, types.FoodItem{
			Name:        m[1],
			Portion:     "estimated portion",
			Calories:    clamp(calories, 0, 1e9),
			HealthScore: defaultHealthScr,
		})
	}
	if len(analysis.FoodItems) > 0 {
		found = true
	}

	if !found {
		// No field-level signal: fall back to keyword matching before
		// giving up entirely.
		lower := strings.ToLower(raw)
		keyword := ""
		for _, kw := range foodKeywords {
			if strings.Contains(lower, kw) {
				keyword = kw
				break
			}
		}

		hasJSONShape := strings.Contains(raw, "{")
		hasNumber := firstNumberRe.MatchString(raw)
		if keyword == "" && !hasJSONShape && !hasNumber {
			return nil, newAnalysisError(KindValidation, "response contains no usable food signal")
		}

		analysis.Confidence = 50
		if keyword != "" {
			analysis.Description = "Meal containing " + keyword
		} else {
			analysis.Description = "Food item"
		}
	}

	if analysis.Description == "" {
		analysis.Description = "Food item"
	}
	if len(analysis.FoodItems) == 0 {
		analysis.FoodItems = synthesizeItems(analysis.Description, analysis.TotalCalories, analysis.HealthScore)
	}
	backfillMacros(analysis)
	fillCommentary(analysis)

	log.Printf("[Validator] recovered partial analysis from malformed response: %s", analysis.Description)
	return analysis, nil
}
