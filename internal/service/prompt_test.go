package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildPromptWithoutCaption(t *testing.T) {
	prompt := BuildPrompt("")
	assert.Equal(t, calorieAnalysisPrompt, prompt)
	assert.NotContains(t, prompt, "USER-PROVIDED DETAILS")

	// Whitespace-only captions behave like no caption.
	assert.Equal(t, calorieAnalysisPrompt, BuildPrompt("   \n\t "))
}

func TestBuildPromptWithCaption(t *testing.T) {
	caption := "mango juice (no quantity)"
	prompt := BuildPrompt(caption)

	assert.True(t, strings.HasPrefix(prompt, calorieAnalysisPrompt))
	assert.Contains(t, prompt, `"mango juice (no quantity)"`)
	assert.Contains(t, prompt, "USER-PROVIDED DETAILS (AUTHORITATIVE)")

	// The caption block must forbid overriding the stated food identity,
	// leaving the image only for portion estimation.
	assert.Contains(t, prompt, "Do NOT substitute")
	assert.Contains(t, prompt, "use the image ONLY to estimate")
}

func TestBuildPromptTrimsCaption(t *testing.T) {
	prompt := BuildPrompt("  two eggs  ")
	assert.Contains(t, prompt, `"two eggs"`)
	assert.NotContains(t, prompt, `"  two eggs  "`)
}
