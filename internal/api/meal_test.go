package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mealmetrics/backend/internal/api"
	"github.com/mealmetrics/backend/internal/service"
	"github.com/mealmetrics/backend/internal/testhelpers"
	"github.com/mealmetrics/backend/internal/types"
)

// setupMealAPI wires the meal routes over an in-memory database. The vision
// pipeline and pending store stay nil; the routes under test never reach them.
func setupMealAPI(t *testing.T) (*gin.Engine, *service.MealService, string) {
	gin.SetMode(gin.TestMode)
	db := testhelpers.SetupTestDatabase(t)

	authSvc := service.NewAuthService("test-jwt-secret", "")
	mealSvc := service.NewMealService(db, 6)
	require.NoError(t, mealSvc.EnsureUser(context.Background(), 501, "tester", "", ""))

	handler := api.NewMealHandler(nil, nil, mealSvc, nil, authSvc, nil, 10)
	router := gin.New()
	handler.RegisterRoutes(router.Group("/api/v1"))

	token, err := authSvc.GenerateToken(501, "tester")
	require.NoError(t, err)

	return router, mealSvc, token
}

func authedRequest(method, target, token string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func logTestMeal(t *testing.T, svc *service.MealService, description string, calories float64) {
	t.Helper()
	_, err := svc.LogMeal(context.Background(), 501, &types.MealAnalysis{
		Description:   description,
		TotalCalories: calories,
		Confidence:    80,
	}, "")
	require.NoError(t, err)
}

func TestMealPhotoWithoutStorage(t *testing.T) {
	router, mealSvc, token := setupMealAPI(t)
	logTestMeal(t, mealSvc, "Soup", 120)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, authedRequest("GET", "/api/v1/meals/photos/some-id", token))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "not configured")
}

func TestMealRoutesRequireAuth(t *testing.T) {
	router, _, _ := setupMealAPI(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/meals/today", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTodaySummaryEndpoint(t *testing.T) {
	router, mealSvc, token := setupMealAPI(t)
	logTestMeal(t, mealSvc, "Omelette", 250)
	logTestMeal(t, mealSvc, "Coffee", 50)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, authedRequest("GET", "/api/v1/meals/today", token))
	require.Equal(t, http.StatusOK, w.Code)

	var summary service.DaySummary
	require.NoError(t, json.NewDecoder(w.Body).Decode(&summary))
	assert.Equal(t, 300.0, summary.TotalCalories)
	assert.Equal(t, 2, summary.MealCount)
}

func TestHistoryEndpointValidatesDate(t *testing.T) {
	router, _, token := setupMealAPI(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, authedRequest("GET", "/api/v1/meals/history?date=not-a-date", token))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, authedRequest("GET", "/api/v1/meals/history", token))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHistoryEndpoint(t *testing.T) {
	router, mealSvc, token := setupMealAPI(t)
	logTestMeal(t, mealSvc, "Lunch", 600)

	today := mealSvc.Today()
	w := httptest.NewRecorder()
	router.ServeHTTP(w, authedRequest("GET", "/api/v1/meals/history?date="+today, token))
	require.Equal(t, http.StatusOK, w.Code)

	var summary service.DaySummary
	require.NoError(t, json.NewDecoder(w.Body).Decode(&summary))
	assert.Equal(t, today, summary.Date)
	assert.Equal(t, 600.0, summary.TotalCalories)
}

func TestStatsEndpoint(t *testing.T) {
	router, mealSvc, token := setupMealAPI(t)
	logTestMeal(t, mealSvc, "Dinner", 800)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, authedRequest("GET", "/api/v1/meals/stats?period=week", token))
	require.Equal(t, http.StatusOK, w.Code)

	var stats service.PeriodStats
	require.NoError(t, json.NewDecoder(w.Body).Decode(&stats))
	assert.Equal(t, 800.0, stats.TotalCalories)
	assert.Equal(t, 1, stats.TotalMeals)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, authedRequest("GET", "/api/v1/meals/stats?period=fortnight", token))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestClearEndpoints(t *testing.T) {
	router, mealSvc, token := setupMealAPI(t)
	logTestMeal(t, mealSvc, "Breakfast", 300)
	logTestMeal(t, mealSvc, "Lunch", 700)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, authedRequest("DELETE", "/api/v1/meals/today", token))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Deleted int64 `json:"deleted"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, int64(2), resp.Deleted)

	logTestMeal(t, mealSvc, "Dinner", 500)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, authedRequest("DELETE", "/api/v1/meals", token))
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, int64(1), resp.Deleted)
}

func TestAnalyzeRequiresPhoto(t *testing.T) {
	router, _, token := setupMealAPI(t)

	req := authedRequest("POST", "/api/v1/meals/analyze", token)
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "Invalid request", resp.Error)
	assert.Contains(t, resp.Message, "photo")
}

func TestPendingRoutesReportMissing(t *testing.T) {
	// Without Redis the pending store is nil; this test only covers the
	// route wiring for unauthenticated access.
	router, _, _ := setupMealAPI(t)

	for _, route := range []struct{ method, path string }{
		{"POST", "/api/v1/meals/pending/some-id/confirm"},
		{"DELETE", "/api/v1/meals/pending/some-id"},
	} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(route.method, route.path, nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code, fmt.Sprintf("%s %s", route.method, route.path))
	}
}
