package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tastevault/tastevault/internal/domain"
	"github.com/tastevault/tastevault/internal/infra/database/models"
)

type RecipeRepository struct {
	db *gorm.DB
}

func NewRecipeRepository(db *gorm.DB) *RecipeRepository {
	return &RecipeRepository{db: db}
}

func (r *RecipeRepository) Create(ctx context.Context, agg domain.Aggregate) (*domain.Aggregate, error) {
	if agg.Recipe.ID == uuid.Nil {
		agg.Recipe.ID = uuid.New()
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, err := recipeToModel(agg.Recipe)
		if err != nil {
			return err
		}
		if err := tx.Create(&rec).Error; err != nil {
			return err
		}

		for i := range agg.Ingredients {
			if agg.Ingredients[i].ID == uuid.Nil {
				agg.Ingredients[i].ID = uuid.New()
			}
			agg.Ingredients[i].RecipeID = agg.Recipe.ID
			ing := ingredientToModel(agg.Ingredients[i])
			if err := tx.Create(&ing).Error; err != nil {
				return err
			}
		}

		for i := range agg.Steps {
			if agg.Steps[i].ID == uuid.Nil {
				agg.Steps[i].ID = uuid.New()
			}
			agg.Steps[i].RecipeID = agg.Recipe.ID
			st := stepToModel(agg.Steps[i])
			if err := tx.Create(&st).Error; err != nil {
				return err
			}
		}

		for _, cat := range agg.Categories {
			link := models.RecipeCategory{RecipeID: agg.Recipe.ID, CategoryID: cat.ID}
			if err := tx.Create(&link).Error; err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, translateDBError(err, "recipe")
	}

	return r.Capture(ctx, agg.Recipe.ID)
}

// Capture reads the full live aggregate at one instant. No side
// effects.
func (r *RecipeRepository) Capture(ctx context.Context, recipeID uuid.UUID) (*domain.Aggregate, error) {
	return captureAggregate(r.db.WithContext(ctx), recipeID)
}

func (r *RecipeRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.Recipe, error) {
	var recs []models.Recipe
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("m_date DESC").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}

	recipes := make([]domain.Recipe, 0, len(recs))
	for _, rec := range recs {
		recipe, err := recipeFromModel(rec)
		if err != nil {
			return nil, err
		}
		recipes = append(recipes, recipe)
	}
	return recipes, nil
}

// Delete removes the recipe. Children and version history go with it
// via FK cascade.
func (r *RecipeRepository) Delete(ctx context.Context, recipeID uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.Recipe{}, "id = ?", recipeID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.NotFoundError{Resource: "recipe"}
	}
	return nil
}

// captureAggregate is the tx-scoped capture used both for plain reads
// and inside write transactions, where tx already holds the recipe row
// lock.
func captureAggregate(tx *gorm.DB, recipeID uuid.UUID) (*domain.Aggregate, error) {
	var rec models.Recipe
	err := tx.Take(&rec, "id = ?", recipeID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NotFoundError{Resource: "recipe"}
	}
	if err != nil {
		return nil, err
	}

	recipe, err := recipeFromModel(rec)
	if err != nil {
		return nil, err
	}

	var ings []models.Ingredient
	err = tx.Where("recipe_id = ?", recipeID).
		Order("display_order ASC").
		Find(&ings).Error
	if err != nil {
		return nil, err
	}

	var steps []models.CookingStep
	err = tx.Where("recipe_id = ?", recipeID).
		Order("step_number ASC").
		Find(&steps).Error
	if err != nil {
		return nil, err
	}

	var cats []models.Category
	err = tx.
		Joins("JOIN recipe_categories ON recipe_categories.category_id = categories.id").
		Where("recipe_categories.recipe_id = ?", recipeID).
		Order("categories.type ASC, categories.name ASC").
		Find(&cats).Error
	if err != nil {
		return nil, err
	}

	agg := domain.Aggregate{
		Recipe:      recipe,
		Ingredients: make([]domain.Ingredient, 0, len(ings)),
		Steps:       make([]domain.CookingStep, 0, len(steps)),
		Categories:  make([]domain.Category, 0, len(cats)),
	}
	for _, ing := range ings {
		agg.Ingredients = append(agg.Ingredients, ingredientFromModel(ing))
	}
	for _, st := range steps {
		agg.Steps = append(agg.Steps, stepFromModel(st))
	}
	for _, cat := range cats {
		agg.Categories = append(agg.Categories, domain.Category{ID: cat.ID, Name: cat.Name, Type: cat.Type})
	}

	return &agg, nil
}

func translateDBError(err error, resource string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.NotFoundError{Resource: resource}
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ConflictError{Resource: resource}
	}
	return err
}

func recipeToModel(r domain.Recipe) (models.Recipe, error) {
	equipment := "[]"
	if r.Equipment != nil {
		b, err := json.Marshal(r.Equipment)
		if err != nil {
			return models.Recipe{}, err
		}
		equipment = string(b)
	}

	return models.Recipe{
		ID:              r.ID,
		OwnerID:         r.OwnerID,
		Title:           r.Title,
		Description:     r.Description,
		Servings:        r.Servings,
		Difficulty:      r.Difficulty,
		PrepTimeMinutes: r.PrepTimeMinutes,
		CookTimeMinutes: r.CookTimeMinutes,
		Equipment:       equipment,
		Calories:        r.Calories,
		ProteinGrams:    r.ProteinGrams,
		CarbGrams:       r.CarbGrams,
		FatGrams:        r.FatGrams,
		Published:       r.Published,
	}, nil
}

func recipeFromModel(m models.Recipe) (domain.Recipe, error) {
	equipment := []string{}
	if m.Equipment != "" {
		if err := json.Unmarshal([]byte(m.Equipment), &equipment); err != nil {
			return domain.Recipe{}, err
		}
	}

	return domain.Recipe{
		ID:              m.ID,
		OwnerID:         m.OwnerID,
		Title:           m.Title,
		Description:     m.Description,
		Servings:        m.Servings,
		Difficulty:      m.Difficulty,
		PrepTimeMinutes: m.PrepTimeMinutes,
		CookTimeMinutes: m.CookTimeMinutes,
		Equipment:       equipment,
		Calories:        m.Calories,
		ProteinGrams:    m.ProteinGrams,
		CarbGrams:       m.CarbGrams,
		FatGrams:        m.FatGrams,
		Published:       m.Published,
		CreatedAt:       m.CDate,
		UpdatedAt:       m.MDate,
	}, nil
}

func ingredientToModel(i domain.Ingredient) models.Ingredient {
	return models.Ingredient{
		ID:           i.ID,
		RecipeID:     i.RecipeID,
		Name:         i.Name,
		Amount:       i.Amount,
		Unit:         i.Unit,
		Calories:     i.Calories,
		Notes:        i.Notes,
		DisplayOrder: i.Order,
	}
}

func ingredientFromModel(m models.Ingredient) domain.Ingredient {
	return domain.Ingredient{
		ID:       m.ID,
		RecipeID: m.RecipeID,
		Name:     m.Name,
		Amount:   m.Amount,
		Unit:     m.Unit,
		Calories: m.Calories,
		Notes:    m.Notes,
		Order:    m.DisplayOrder,
	}
}

func stepToModel(s domain.CookingStep) models.CookingStep {
	return models.CookingStep{
		ID:              s.ID,
		RecipeID:        s.RecipeID,
		StepNumber:      s.StepNumber,
		Instruction:     s.Instruction,
		DurationMinutes: s.DurationMinutes,
		Temperature:     s.Temperature,
		Tips:            s.Tips,
	}
}

func stepFromModel(m models.CookingStep) domain.CookingStep {
	return domain.CookingStep{
		ID:              m.ID,
		RecipeID:        m.RecipeID,
		StepNumber:      m.StepNumber,
		Instruction:     m.Instruction,
		DurationMinutes: m.DurationMinutes,
		Temperature:     m.Temperature,
		Tips:            m.Tips,
	}
}
