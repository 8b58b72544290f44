package usecase

import (
	"context"

	"github.com/google/uuid"

	"github.com/tastevault/tastevault"
	"github.com/tastevault/tastevault/internal/domain"
)

// AggregateRepository defines non-versioned access to the recipe
// aggregate: creation, reads and whole-recipe deletion.
type AggregateRepository interface {
	Create(ctx context.Context, agg domain.Aggregate) (*domain.Aggregate, error)
	Capture(ctx context.Context, recipeID uuid.UUID) (*domain.Aggregate, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Recipe, error)
	Delete(ctx context.Context, recipeID uuid.UUID) error
}

// VersionLedger reads the append-only version history.
type VersionLedger interface {
	List(ctx context.Context, recipeID uuid.UUID) ([]domain.RecipeVersion, error)
	Get(ctx context.Context, recipeID, versionID uuid.UUID) (*domain.RecipeVersion, error)
	LatestNumber(ctx context.Context, recipeID uuid.UUID) (int, error)
}

// VersioningRepository runs the snapshot-before-mutation protocol.
// Every method appends a version capturing the pre-mutation state and
// applies the mutation in the same transaction, returning the number
// of the version it created.
type VersioningRepository interface {
	UpdateRecipeFields(ctx context.Context, recipeID uuid.UUID, update domain.RecipeUpdate, meta domain.ChangeMeta) (int, error)
	PutIngredient(ctx context.Context, recipeID uuid.UUID, ing domain.Ingredient, meta domain.ChangeMeta) (int, error)
	DeleteIngredient(ctx context.Context, recipeID, ingredientID uuid.UUID, meta domain.ChangeMeta) (int, error)
	PutStep(ctx context.Context, recipeID uuid.UUID, st domain.CookingStep, meta domain.ChangeMeta) (int, error)
	DeleteStep(ctx context.Context, recipeID, stepID uuid.UUID, meta domain.ChangeMeta) (int, error)
	ReplaceCategories(ctx context.Context, recipeID uuid.UUID, categoryIDs []uuid.UUID, meta domain.ChangeMeta) (int, error)
	Restore(ctx context.Context, recipeID, versionID uuid.UUID) (int, error)
}

// CategoryRepository serves the shared category vocabulary.
type CategoryRepository interface {
	List(ctx context.Context) ([]domain.Category, error)
	Get(ctx context.Context, categoryID uuid.UUID) (*domain.Category, error)
	Ensure(ctx context.Context, name, categoryType string) (*domain.Category, error)
}

// EventPublisher announces committed changes to realtime listeners.
type EventPublisher interface {
	Publish(ctx context.Context, event tastevault.Event) error
}

// SuggestionGateway generates improvement suggestions from an
// aggregate state.
type SuggestionGateway interface {
	Suggest(ctx context.Context, agg domain.Aggregate, basedOnVersion int) (*tastevault.Suggestion, error)
}
