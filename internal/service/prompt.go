package service

import (
	"fmt"
	"strings"
)

// calorieAnalysisPrompt is the fixed instruction template sent with every
// photo. It encodes the output schema and the tone rules for commentary.
const calorieAnalysisPrompt = `You are a nutrition expert AI that analyzes food images to estimate calories and overall meal quality.

Analyze this food image and provide:
1. A detailed description of the food and drink items you can identify
2. Estimated portion sizes and cooking methods for each item
3. Estimated calories and macronutrients (carbs, protein, fat in grams) per item
4. Total estimated calories and macronutrients for the entire meal
5. A health category for the meal: "healthy", "moderate", or "junk"
6. A health score from 1 (very unhealthy) to 10 (very healthy), overall and per item
7. Your confidence level in this estimate (0-100%)
8. A short witty comment about the meal, a practical recommendation, and a fun fact

Consider:
- Portion sizes (small, medium, large, or specific measurements if possible)
- Cooking methods (fried, grilled, steamed, etc.) and their caloric impact
- Visible ingredients and their caloric density
- Standard serving sizes for common foods

If you cannot clearly identify the food or portion sizes, lower your confidence,
use a generic category name for the food, give a calorie range in the notes, and
recommend a clearer photo.

Format your response as valid JSON only, with this exact structure:
{
    "description": "Brief description of the meal",
    "food_items": [
        {
            "name": "food item name",
            "portion": "estimated portion size",
            "calories": estimated_calories_number,
            "carbs": grams_number,
            "protein": grams_number,
            "fat": grams_number,
            "cooking_method": "how it was prepared",
            "health_score": score_1_to_10
        }
    ],
    "total_calories": total_estimated_calories_number,
    "confidence": confidence_percentage_number,
    "total_carbs": grams_number,
    "total_protein": grams_number,
    "total_fat": grams_number,
    "health_category": "healthy|moderate|junk",
    "health_score": score_1_to_10,
    "witty_comment": "One playful sentence about the meal",
    "recommendations": "One practical suggestion",
    "fun_fact": "One short nutrition fact relevant to this meal",
    "notes": "Any additional observations or assumptions made"
}

IMPORTANT:
- Return ONLY valid JSON, no markdown formatting or code blocks
- Be conservative with estimates - it's better to slightly underestimate than overestimate calories
- Ensure all JSON fields are properly closed and the response is complete`

// captionOverrideTemplate is appended when the user supplied a caption. The
// caption is authoritative for food identity; the image only sizes portions.
const captionOverrideTemplate = `

USER-PROVIDED DETAILS (AUTHORITATIVE):
The user described this meal as: "%s"

Rules for using this description:
- Treat the food or drink named by the user as ground truth. Do NOT substitute
  a different food identity based on what the image appears to show.
- If the user stated an explicit quantity or size, use it as given.
- If the user did not state a quantity, use the image ONLY to estimate the
  portion size or quantity of the food the user named.
- Acknowledge the user's description in the "user_input_acknowledged" field.`

// BuildPrompt assembles the instruction text for one analysis request. An
// empty or whitespace-only caption yields the base template unchanged.
func BuildPrompt(caption string) string {
	caption = strings.TrimSpace(caption)
	if caption == "" {
		return calorieAnalysisPrompt
	}
	return calorieAnalysisPrompt + fmt.Sprintf(captionOverrideTemplate, caption)
}
