package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/jpeg"
	"log"
	"strings"

	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/mealmetrics/backend/internal/types"
)

// VisionService runs the full photo-to-analysis pipeline. It is stateless
// between calls: one inbound image triggers one sequential pass and nothing
// is cached across requests.
type VisionService struct {
	dispatcher *Dispatcher
}

// NewVisionService creates a VisionService on top of a configured dispatcher.
func NewVisionService(dispatcher *Dispatcher) *VisionService {
	return &VisionService{dispatcher: dispatcher}
}

// AnalyzeMealPhoto analyzes a food photo with an optional user caption and
// returns the structured analysis plus the preprocessed JPEG that was sent
// to the model (for archival). The caption, when present, overrides visual
// food identification.
func (s *VisionService) AnalyzeMealPhoto(ctx context.Context, imageData []byte, caption string) (*types.MealAnalysis, []byte, error) {
	img, format, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, nil, wrapAnalysisError(KindValidation, "unsupported or corrupt image", err)
	}
	log.Printf("[Vision] decoded %s image %dx%d", format, img.Bounds().Dx(), img.Bounds().Dy())

	processed := EnhanceImage(img)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, processed, &jpeg.Options{Quality: 85}); err != nil {
		return nil, nil, wrapAnalysisError(KindValidation, "failed to encode image", err)
	}
	jpegData := buf.Bytes()

	prompt := BuildPrompt(caption)
	imageB64 := base64.StdEncoding.EncodeToString(jpegData)

	raw, err := s.dispatcher.Dispatch(ctx, imageB64, prompt)
	if err != nil {
		return nil, nil, err
	}

	candidate, err := NormalizeResponse(raw)
	if err != nil {
		// No JSON object located at all: hand the raw text to salvage
		// before giving up.
		analysis, salvageErr := salvageAnalysis(raw)
		if salvageErr != nil {
			return nil, nil, err
		}
		s.acknowledgeCaption(analysis, caption)
		return analysis, jpegData, nil
	}

	analysis, err := ValidateAndEnrich(candidate, raw)
	if err != nil {
		return nil, nil, err
	}
	s.acknowledgeCaption(analysis, caption)

	log.Printf("[Vision] analyzed meal: %s (%.0f cal, %.0f%% confidence)",
		analysis.Description, analysis.TotalCalories, analysis.Confidence)
	return analysis, jpegData, nil
}

// acknowledgeCaption echoes the caption back when the model did not.
func (s *VisionService) acknowledgeCaption(a *types.MealAnalysis, caption string) {
	caption = strings.TrimSpace(caption)
	if caption != "" && a.UserInputAcknowledged == "" {
		a.UserInputAcknowledged = caption
	}
}

// RenderAnalysis is the display entry point used by the API layer.
func (s *VisionService) RenderAnalysis(a *types.MealAnalysis) string {
	return FormatAnalysis(a)
}
