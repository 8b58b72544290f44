package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tastevault/tastevault"
	"github.com/tastevault/tastevault/internal/domain"
)

type RecipeUsecase struct {
	aggregates AggregateRepository
	versioning VersioningRepository
	categories CategoryRepository
	events     EventPublisher
}

func NewRecipeUsecase(
	aggregates AggregateRepository,
	versioning VersioningRepository,
	categories CategoryRepository,
	events EventPublisher,
) *RecipeUsecase {
	return &RecipeUsecase{
		aggregates: aggregates,
		versioning: versioning,
		categories: categories,
		events:     events,
	}
}

// Create persists a new recipe aggregate. No version is written:
// version 1 is captured by the first mutation and represents the
// pre-edit state.
func (uc *RecipeUsecase) Create(ctx context.Context, agg domain.Aggregate) (*domain.Aggregate, error) {
	if strings.TrimSpace(agg.Recipe.Title) == "" {
		return nil, domain.ValidationError{Field: "title", Message: "must not be empty"}
	}
	if agg.Recipe.OwnerID == "" {
		return nil, domain.ValidationError{Field: "ownerId", Message: "must not be empty"}
	}
	return uc.aggregates.Create(ctx, agg)
}

func (uc *RecipeUsecase) Get(ctx context.Context, recipeID uuid.UUID) (*domain.Aggregate, error) {
	return uc.aggregates.Capture(ctx, recipeID)
}

func (uc *RecipeUsecase) ListByOwner(ctx context.Context, ownerID string) ([]domain.Recipe, error) {
	return uc.aggregates.ListByOwner(ctx, ownerID)
}

func (uc *RecipeUsecase) Delete(ctx context.Context, recipeID uuid.UUID) error {
	if err := uc.aggregates.Delete(ctx, recipeID); err != nil {
		return err
	}
	uc.publish(ctx, recipeID, tastevault.EventKindDeleted, 0)
	return nil
}

func (uc *RecipeUsecase) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return uc.categories.List(ctx)
}

func (uc *RecipeUsecase) GetCategory(ctx context.Context, categoryID uuid.UUID) (*domain.Category, error) {
	return uc.categories.Get(ctx, categoryID)
}

// CreateCategory adds a vocabulary entry. Creation is idempotent: an
// existing entry with the same name and type is returned as-is.
func (uc *RecipeUsecase) CreateCategory(ctx context.Context, name, categoryType string) (*domain.Category, error) {
	if strings.TrimSpace(name) == "" {
		return nil, domain.ValidationError{Field: "name", Message: "must not be empty"}
	}
	if strings.TrimSpace(categoryType) == "" {
		return nil, domain.ValidationError{Field: "type", Message: "must not be empty"}
	}
	return uc.categories.Ensure(ctx, name, categoryType)
}

// UpdateFields applies a partial scalar update. The version written
// before the mutation carries the list of fields being altered.
func (uc *RecipeUsecase) UpdateFields(ctx context.Context, recipeID uuid.UUID, update domain.RecipeUpdate) (int, error) {
	changedFields := update.ChangedFields()
	if len(changedFields) == 0 {
		return 0, domain.ValidationError{Message: "no fields to update"}
	}
	if update.Title != nil && strings.TrimSpace(*update.Title) == "" {
		return 0, domain.ValidationError{Field: "title", Message: "must not be empty"}
	}
	if update.Servings != nil && *update.Servings < 0 {
		return 0, domain.ValidationError{Field: "servings", Message: "must not be negative"}
	}

	meta := domain.ChangeMeta{
		Description:   fmt.Sprintf("Updated recipe fields: %s", strings.Join(changedFields, ", ")),
		ChangedFields: changedFields,
	}

	n, err := uc.versioning.UpdateRecipeFields(ctx, recipeID, update, meta)
	if err != nil {
		return 0, err
	}
	uc.publish(ctx, recipeID, tastevault.EventKindUpdated, n)
	return n, nil
}

// PutIngredient creates or updates one ingredient. ChangedFields stays
// empty: the mutation targets a child collection, not scalar fields.
func (uc *RecipeUsecase) PutIngredient(ctx context.Context, recipeID uuid.UUID, ing domain.Ingredient) (int, error) {
	if strings.TrimSpace(ing.Name) == "" {
		return 0, domain.ValidationError{Field: "name", Message: "must not be empty"}
	}
	if ing.Order < 1 {
		return 0, domain.ValidationError{Field: "order", Message: "must be positive"}
	}

	verb := "Updated"
	if ing.ID == uuid.Nil {
		verb = "Added"
	}
	meta := domain.ChangeMeta{
		Description: fmt.Sprintf("%s ingredient %q", verb, ing.Name),
	}

	n, err := uc.versioning.PutIngredient(ctx, recipeID, ing, meta)
	if err != nil {
		return 0, err
	}
	uc.publish(ctx, recipeID, tastevault.EventKindUpdated, n)
	return n, nil
}

func (uc *RecipeUsecase) DeleteIngredient(ctx context.Context, recipeID, ingredientID uuid.UUID) (int, error) {
	meta := domain.ChangeMeta{
		Description: "Removed ingredient",
	}

	n, err := uc.versioning.DeleteIngredient(ctx, recipeID, ingredientID, meta)
	if err != nil {
		return 0, err
	}
	uc.publish(ctx, recipeID, tastevault.EventKindUpdated, n)
	return n, nil
}

// PutStep creates or updates one cooking step.
func (uc *RecipeUsecase) PutStep(ctx context.Context, recipeID uuid.UUID, st domain.CookingStep) (int, error) {
	if strings.TrimSpace(st.Instruction) == "" {
		return 0, domain.ValidationError{Field: "instruction", Message: "must not be empty"}
	}
	if st.StepNumber < 1 {
		return 0, domain.ValidationError{Field: "stepNumber", Message: "must be positive"}
	}

	verb := "Updated"
	if st.ID == uuid.Nil {
		verb = "Added"
	}
	meta := domain.ChangeMeta{
		Description: fmt.Sprintf("%s step %d", verb, st.StepNumber),
	}

	n, err := uc.versioning.PutStep(ctx, recipeID, st, meta)
	if err != nil {
		return 0, err
	}
	uc.publish(ctx, recipeID, tastevault.EventKindUpdated, n)
	return n, nil
}

func (uc *RecipeUsecase) DeleteStep(ctx context.Context, recipeID, stepID uuid.UUID) (int, error) {
	meta := domain.ChangeMeta{
		Description: "Removed step",
	}

	n, err := uc.versioning.DeleteStep(ctx, recipeID, stepID, meta)
	if err != nil {
		return 0, err
	}
	uc.publish(ctx, recipeID, tastevault.EventKindUpdated, n)
	return n, nil
}

// ReplaceCategories swaps the recipe's category set for the given ids.
func (uc *RecipeUsecase) ReplaceCategories(ctx context.Context, recipeID uuid.UUID, categoryIDs []uuid.UUID) (int, error) {
	meta := domain.ChangeMeta{
		Description: fmt.Sprintf("Replaced categories (%d selected)", len(categoryIDs)),
	}

	n, err := uc.versioning.ReplaceCategories(ctx, recipeID, categoryIDs, meta)
	if err != nil {
		return 0, err
	}
	uc.publish(ctx, recipeID, tastevault.EventKindUpdated, n)
	return n, nil
}

// publish is best-effort: a missed event never fails a committed
// mutation.
func (uc *RecipeUsecase) publish(ctx context.Context, recipeID uuid.UUID, kind string, versionNumber int) {
	if uc.events == nil {
		return
	}
	event := tastevault.Event{
		RecipeID:      recipeID.String(),
		Kind:          kind,
		VersionNumber: versionNumber,
		Timestamp:     time.Now().UTC(),
	}
	if err := uc.events.Publish(ctx, event); err != nil {
		slog.WarnContext(ctx, "Event publish failed",
			slog.String("error", err.Error()),
			slog.String("recipeId", event.RecipeID),
			slog.String("module", "usecase"),
		)
	}
}
