package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPhotoPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 48, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 48; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 200, G: 150, B: 80, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func visionServiceWithResponse(t *testing.T, content string) (*VisionService, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		fmt.Fprintf(w, `{"choices": [{"message": {"content": %s}}]}`, mustJSON(t, content))
	}))
	d := newTestDispatcher(srv.URL, []string{"model-a"})
	return NewVisionService(d), srv
}

func mustJSON(t *testing.T, s string) string {
	t.Helper()
	b, err := json.Marshal(s)
	require.NoError(t, err)
	return string(b)
}

func TestAnalyzeMealPhoto(t *testing.T) {
	svc, srv := visionServiceWithResponse(t,
		`{"description": "Pancakes with syrup", "total_calories": 520, "confidence": 78, "health_category": "moderate"}`)
	defer srv.Close()

	analysis, jpegData, err := svc.AnalyzeMealPhoto(context.Background(), testPhotoPNG(t), "")
	require.NoError(t, err)
	assert.Equal(t, "Pancakes with syrup", analysis.Description)
	assert.Equal(t, 520.0, analysis.TotalCalories)
	assert.NotEmpty(t, jpegData, "the preprocessed JPEG should be returned for archival")

	// The returned bytes are a decodable JPEG.
	_, format, err := image.Decode(bytes.NewReader(jpegData))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
}

func TestAnalyzeMealPhotoEchoesCaption(t *testing.T) {
	svc, srv := visionServiceWithResponse(t,
		`{"description": "Mango juice", "total_calories": 180, "confidence": 70}`)
	defer srv.Close()

	analysis, _, err := svc.AnalyzeMealPhoto(context.Background(), testPhotoPNG(t), "mango juice")
	require.NoError(t, err)
	assert.Equal(t, "mango juice", analysis.UserInputAcknowledged)
}

func TestAnalyzeMealPhotoKeepsModelAcknowledgement(t *testing.T) {
	svc, srv := visionServiceWithResponse(t,
		`{"description": "Mango juice", "total_calories": 180, "confidence": 70, "user_input_acknowledged": "one glass of mango juice"}`)
	defer srv.Close()

	analysis, _, err := svc.AnalyzeMealPhoto(context.Background(), testPhotoPNG(t), "mango juice")
	require.NoError(t, err)
	assert.Equal(t, "one glass of mango juice", analysis.UserInputAcknowledged)
}

func TestAnalyzeMealPhotoSalvagesProse(t *testing.T) {
	// No JSON object anywhere, but a clear food keyword: salvage keeps the
	// exchange alive with a degraded analysis.
	svc, srv := visionServiceWithResponse(t, "This looks like a burger with fries to me.")
	defer srv.Close()

	analysis, _, err := svc.AnalyzeMealPhoto(context.Background(), testPhotoPNG(t), "")
	require.NoError(t, err)
	assert.Equal(t, "Meal containing burger", analysis.Description)
	assert.Equal(t, 50.0, analysis.Confidence)
}

func TestAnalyzeMealPhotoRejectsBadImage(t *testing.T) {
	svc, srv := visionServiceWithResponse(t, "{}")
	defer srv.Close()

	_, _, err := svc.AnalyzeMealPhoto(context.Background(), []byte("definitely not an image"), "")
	require.Error(t, err)
	assert.Equal(t, KindValidation, ErrorKindOf(err))
}
