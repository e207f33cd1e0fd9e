package service

import (
	"fmt"
	"log"
	"math"
	"strings"

	"github.com/mealmetrics/backend/internal/types"
)

// placeholderTexts are schema placeholders a model sometimes echoes back
// verbatim instead of writing real commentary. Sections equal to one of
// these are dropped from the rendered message.
var placeholderTexts = map[string]bool{
	"One playful sentence about the meal":             true,
	"One practical suggestion":                        true,
	"One short nutrition fact relevant to this meal":  true,
	"Any additional observations or assumptions made": true,
}

var markdownEscaper = strings.NewReplacer(
	"*", "\\*",
	"_", "\\_",
	"[", "\\[",
	"]", "\\]",
	"`", "\\`",
)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

// FormatAnalysis renders a MealAnalysis into the user-facing chat message.
// Rendering the same analysis twice produces identical text. Any panic mid
// render degrades to a minimal plain summary instead of losing the message.
func FormatAnalysis(a *types.MealAnalysis) (msg string) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Formatter] render failed, falling back to plain summary: %v", r)
			msg = fmt.Sprintf("🍽️ %s\nEstimated calories: %.0f\nConfidence: %.0f%%",
				a.Description, a.TotalCalories, a.Confidence)
		}
	}()

	var b strings.Builder

	if a.UserInputAcknowledged != "" {
		fmt.Fprintf(&b, "💬 Noted: _%s_\n\n", escapeMarkdown(a.UserInputAcknowledged))
	}

	fmt.Fprintf(&b, "%s *%s*\n\n", categoryIcon(a.HealthCategory), escapeMarkdown(a.Description))

	if a.HealthCategory == types.HealthCategoryJunk {
		b.WriteString("🚨 *JUNK FOOD ALERT* 🚨\n\n")
	}

	fmt.Fprintf(&b, "🔥 *Estimated Calories:* %.0f\n", a.TotalCalories)
	fmt.Fprintf(&b, "%s *Health Score:* %d/10\n", healthScoreIcon(a.HealthCategory), a.HealthScore)
	fmt.Fprintf(&b, "📊 *Confidence:* %.0f%%\n", a.Confidence)

	if a.TotalCarbs > 0 || a.TotalProtein > 0 || a.TotalFat > 0 {
		b.WriteString("\n*Macronutrients:*\n")
		fmt.Fprintf(&b, "🍞 Carbs: %.0fg\n", a.TotalCarbs)
		fmt.Fprintf(&b, "🥩 Protein: %.0fg\n", a.TotalProtein)
		fmt.Fprintf(&b, "🧈 Fat: %.0fg\n", a.TotalFat)
	}

	if len(a.FoodItems) > 0 {
		b.WriteString("\n*Breakdown:*\n")
		for i, item := range a.FoodItems {
			fmt.Fprintf(&b, "%d. *%s*", i+1, escapeMarkdown(item.Name))
			if item.Portion != "" {
				fmt.Fprintf(&b, " (%s)", escapeMarkdown(item.Portion))
			}
			fmt.Fprintf(&b, " - %.0f cal", item.Calories)
			if item.CookingMethod != "" {
				fmt.Fprintf(&b, ", %s", escapeMarkdown(item.CookingMethod))
			}
			fmt.Fprintf(&b, " %s\n", itemHealthIndicator(item.HealthScore))
		}
	}

	writeCommentary(&b, "😄", a.WittyComment)
	writeCommentary(&b, "💡", a.Recommendations)
	writeCommentary(&b, "🤓", a.FunFact)
	writeCommentary(&b, "📝", a.Notes)

	lower, upper := CalorieRange(a.TotalCalories)
	fmt.Fprintf(&b, "\n_NB: the estimate is %.0f-%.0f kcal for a typical serving of %s._",
		lower, upper, escapeMarkdown(a.Description))

	return b.String()
}

func writeCommentary(b *strings.Builder, icon, text string) {
	if text == "" || placeholderTexts[text] {
		return
	}
	fmt.Fprintf(b, "\n%s %s\n", icon, escapeMarkdown(text))
}

func categoryIcon(c types.HealthCategory) string {
	switch c {
	case types.HealthCategoryHealthy:
		return "🥗"
	case types.HealthCategoryJunk:
		return "🍔"
	default:
		return "🍽️"
	}
}

func healthScoreIcon(c types.HealthCategory) string {
	switch c {
	case types.HealthCategoryJunk:
		return "🚨"
	case types.HealthCategoryHealthy:
		return "🎉"
	default:
		return "📊"
	}
}

// itemHealthIndicator buckets a per-item health score into four tiers.
func itemHealthIndicator(score int) string {
	switch {
	case score >= 8:
		return "🌟"
	case score >= 6:
		return "✅"
	case score >= 4:
		return "⚠️"
	default:
		return "❌"
	}
}

// CalorieRange derives the ±50-calorie disclosure band, rounded outward to
// the nearest 25.
func CalorieRange(calories float64) (lower, upper float64) {
	lower = math.Floor(math.Max(0, calories-50)/25) * 25
	upper = math.Ceil((calories+50)/25) * 25
	return
}
