package service

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeResponsePlainJSON(t *testing.T) {
	got, err := NormalizeResponse(`{"description": "Toast", "total_calories": 120, "confidence": 80}`)
	require.NoError(t, err)
	assert.Equal(t, `{"description": "Toast", "total_calories": 120, "confidence": 80}`, got)
}

func TestNormalizeResponseStripsCodeFences(t *testing.T) {
	raw := "```json\n{\"description\": \"Salad\"}\n```"
	got, err := NormalizeResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, `{"description": "Salad"}`, got)

	// Fence without a language tag.
	raw = "```\n{\"description\": \"Salad\"}\n```"
	got, err = NormalizeResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, `{"description": "Salad"}`, got)
}

func TestNormalizeResponseExtractsEmbeddedObject(t *testing.T) {
	raw := `Sure! Here is the analysis you asked for: {"description": "Ramen", "total_calories": 550, "confidence": 70} Hope that helps.`
	got, err := NormalizeResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, `{"description": "Ramen", "total_calories": 550, "confidence": 70}`, got)
}

func TestNormalizeResponseNoObject(t *testing.T) {
	_, err := NormalizeResponse("I could not identify any food in this image.")
	require.Error(t, err)
	assert.Equal(t, KindMalformedResponse, ErrorKindOf(err))
}

func TestNormalizeResponseRepairsTruncation(t *testing.T) {
	t.Run("unterminated string", func(t *testing.T) {
		got, err := NormalizeResponse(`{"description": "Latte with extra foa`)
		require.NoError(t, err)
		assert.True(t, json.Valid([]byte(got)), "repaired output should parse: %s", got)
	})

	t.Run("open array", func(t *testing.T) {
		got, err := NormalizeResponse(`{"values": [1, 2`)
		require.NoError(t, err)
		assert.True(t, json.Valid([]byte(got)), "repaired output should parse: %s", got)
	})

	t.Run("cut off after key", func(t *testing.T) {
		// The repaired string may still be invalid JSON here; the contract
		// is that the validator's salvage recovers the named fields.
		raw := `{"description": "Latte", "total_calories": 125, "confidence`
		candidate, err := NormalizeResponse(raw)
		require.NoError(t, err)

		if json.Valid([]byte(candidate)) {
			var obj map[string]any
			require.NoError(t, json.Unmarshal([]byte(candidate), &obj))
			assert.Equal(t, "Latte", obj["description"])
			return
		}

		analysis, err := ValidateAndEnrich(candidate, raw)
		require.NoError(t, err)
		assert.Equal(t, "Latte", analysis.Description)
		assert.Equal(t, 125.0, analysis.TotalCalories)
	})
}

func TestCountUnescapedQuotes(t *testing.T) {
	assert.Equal(t, 2, countUnescapedQuotes(`"abc"`))
	assert.Equal(t, 2, countUnescapedQuotes(`"say \"hi\""`))
	assert.Equal(t, 1, countUnescapedQuotes(`"unterminated`))
}
