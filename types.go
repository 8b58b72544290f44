package tastevault

import (
	"time"
)

// Event is published on every committed mutation or restore so that
// realtime listeners can refresh their view of a recipe.
type Event struct {
	RecipeID      string    `json:"recipeId"`
	Kind          string    `json:"kind"`
	VersionNumber int       `json:"versionNumber"`
	Timestamp     time.Time `json:"timestamp"`
}

const (
	EventKindUpdated  string = "updated"
	EventKindRestored string = "restored"
	EventKindDeleted  string = "deleted"
)

// GenerateRequest is the payload sent to the model service.
type GenerateRequest struct {
	Model     string `json:"model"`
	Prompt    string `json:"prompt"`
	MaxTokens int    `json:"maxTokens,omitempty"`
}

type GenerateUsage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
}

// GenerateResponse is the model service's completion result.
type GenerateResponse struct {
	Text  string         `json:"text"`
	Model string         `json:"model"`
	Usage *GenerateUsage `json:"usage,omitempty"`
}

// Suggestion is an improvement suggestion for a recipe, generated from
// the aggregate state as of BasedOnVersion.
type Suggestion struct {
	RecipeID       string    `json:"recipeId"`
	BasedOnVersion int       `json:"basedOnVersion"`
	Text           string    `json:"text"`
	CreatedAt      time.Time `json:"createdAt"`
}
