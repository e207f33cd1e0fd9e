package api

import "github.com/mealmetrics/backend/internal/types"

// TokenRequest identifies a chat user the gateway wants a token for.
type TokenRequest struct {
	UserID    int64  `json:"user_id" binding:"required"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// TokenResponse carries a freshly minted JWT.
type TokenResponse struct {
	Token string `json:"token"`
}

// AnalyzeResponse is returned by the analyze endpoint. Message is the
// chat ready Markdown rendering of the analysis, PendingID is what the
// client sends back to confirm or discard it.
type AnalyzeResponse struct {
	PendingID string              `json:"pending_id"`
	Message   string              `json:"message"`
	Analysis  *types.MealAnalysis `json:"analysis"`
}
