package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tastevault/tastevault/internal/domain"
	"github.com/tastevault/tastevault/internal/infra/database/models"
	"github.com/tastevault/tastevault/internal/snapshot"
)

// VersioningRepository is the only writer that touches the aggregate
// tables and the version ledger together. Every operation runs as one
// transaction that first takes a row lock on the recipe, so writers on
// the same recipe serialize and version numbers never collide.
type VersioningRepository struct {
	db *gorm.DB
}

func NewVersioningRepository(db *gorm.DB) *VersioningRepository {
	return &VersioningRepository{db: db}
}

// withRecipeLock runs fn inside a transaction holding SELECT ... FOR
// UPDATE on the recipe row. The pre-mutation snapshot has already been
// appended to the ledger when fn runs.
func (r *VersioningRepository) withRecipeLock(
	ctx context.Context,
	recipeID uuid.UUID,
	meta domain.ChangeMeta,
	fn func(tx *gorm.DB, current *domain.Aggregate) error,
) (int, error) {
	var versionNumber int

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockRecipe(tx, recipeID); err != nil {
			return err
		}

		current, err := captureAggregate(tx, recipeID)
		if err != nil {
			return err
		}

		blob, err := snapshot.Encode(*current)
		if err != nil {
			return err
		}

		ver, err := appendVersion(tx, recipeID, blob, meta)
		if err != nil {
			return err
		}
		versionNumber = ver.VersionNumber

		if err := fn(tx, current); err != nil {
			return err
		}

		return touchRecipe(tx, recipeID)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return 0, domain.ConflictError{Resource: "recipe aggregate"}
		}
		return 0, err
	}

	return versionNumber, nil
}

// lockRecipe takes SELECT ... FOR UPDATE on the recipe row so writers
// on the same recipe serialize. sqlite, which backs the package tests,
// has no FOR UPDATE; its single-writer transactions already serialize.
func lockRecipe(tx *gorm.DB, recipeID uuid.UUID) error {
	q := tx
	if tx.Dialector.Name() != "sqlite" {
		q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var rec models.Recipe
	err := q.Take(&rec, "id = ?", recipeID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.NotFoundError{Resource: "recipe"}
	}
	return err
}

func touchRecipe(tx *gorm.DB, recipeID uuid.UUID) error {
	return tx.Model(&models.Recipe{}).
		Where("id = ?", recipeID).
		Update("m_date", time.Now().UTC()).Error
}

// UpdateRecipeFields applies a partial scalar update after snapshotting
// the pre-mutation state.
func (r *VersioningRepository) UpdateRecipeFields(ctx context.Context, recipeID uuid.UUID, update domain.RecipeUpdate, meta domain.ChangeMeta) (int, error) {
	return r.withRecipeLock(ctx, recipeID, meta, func(tx *gorm.DB, current *domain.Aggregate) error {
		recipe := current.Recipe
		update.Apply(&recipe)

		rec, err := recipeToModel(recipe)
		if err != nil {
			return err
		}

		return tx.Model(&models.Recipe{}).
			Where("id = ?", recipeID).
			Select("*").
			Omit("id", "c_date", "m_date").
			Updates(&rec).Error
	})
}

// PutIngredient creates the ingredient when it is new, otherwise
// updates it in place. The ingredient must belong to the recipe.
func (r *VersioningRepository) PutIngredient(ctx context.Context, recipeID uuid.UUID, ing domain.Ingredient, meta domain.ChangeMeta) (int, error) {
	return r.withRecipeLock(ctx, recipeID, meta, func(tx *gorm.DB, current *domain.Aggregate) error {
		ing.RecipeID = recipeID

		if ing.ID == uuid.Nil {
			ing.ID = uuid.New()
			row := ingredientToModel(ing)
			return tx.Create(&row).Error
		}

		result := tx.Model(&models.Ingredient{}).
			Where("id = ? AND recipe_id = ?", ing.ID, recipeID).
			Select("*").
			Omit("id", "recipe_id").
			Updates(ingredientToModel(ing))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.NotFoundError{Resource: "ingredient"}
		}
		return nil
	})
}

func (r *VersioningRepository) DeleteIngredient(ctx context.Context, recipeID, ingredientID uuid.UUID, meta domain.ChangeMeta) (int, error) {
	return r.withRecipeLock(ctx, recipeID, meta, func(tx *gorm.DB, current *domain.Aggregate) error {
		result := tx.Delete(&models.Ingredient{}, "id = ? AND recipe_id = ?", ingredientID, recipeID)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.NotFoundError{Resource: "ingredient"}
		}
		return nil
	})
}

// PutStep mirrors PutIngredient for cooking steps.
func (r *VersioningRepository) PutStep(ctx context.Context, recipeID uuid.UUID, st domain.CookingStep, meta domain.ChangeMeta) (int, error) {
	return r.withRecipeLock(ctx, recipeID, meta, func(tx *gorm.DB, current *domain.Aggregate) error {
		st.RecipeID = recipeID

		if st.ID == uuid.Nil {
			st.ID = uuid.New()
			row := stepToModel(st)
			return tx.Create(&row).Error
		}

		result := tx.Model(&models.CookingStep{}).
			Where("id = ? AND recipe_id = ?", st.ID, recipeID).
			Select("*").
			Omit("id", "recipe_id").
			Updates(stepToModel(st))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.NotFoundError{Resource: "cooking step"}
		}
		return nil
	})
}

func (r *VersioningRepository) DeleteStep(ctx context.Context, recipeID, stepID uuid.UUID, meta domain.ChangeMeta) (int, error) {
	return r.withRecipeLock(ctx, recipeID, meta, func(tx *gorm.DB, current *domain.Aggregate) error {
		result := tx.Delete(&models.CookingStep{}, "id = ? AND recipe_id = ?", stepID, recipeID)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.NotFoundError{Resource: "cooking step"}
		}
		return nil
	})
}

// ReplaceCategories swaps the recipe's whole category set.
func (r *VersioningRepository) ReplaceCategories(ctx context.Context, recipeID uuid.UUID, categoryIDs []uuid.UUID, meta domain.ChangeMeta) (int, error) {
	return r.withRecipeLock(ctx, recipeID, meta, func(tx *gorm.DB, current *domain.Aggregate) error {
		return replaceCategoryLinks(tx, recipeID, categoryIDs)
	})
}

// Restore overwrites the live aggregate with the target version's
// snapshot. The ledger gains two entries: a safety snapshot of the
// state being overwritten, then a record of the post-restore state.
// Returns the number of the final restore-event version.
func (r *VersioningRepository) Restore(ctx context.Context, recipeID, versionID uuid.UUID) (int, error) {
	var versionNumber int

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockRecipe(tx, recipeID); err != nil {
			return err
		}

		var row models.RecipeVersion
		err := tx.Take(&row, "id = ? AND recipe_id = ?", versionID, recipeID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.NotFoundError{Resource: "version"}
		}
		if err != nil {
			return err
		}

		// Decode before writing anything. A corrupt target must abort
		// with the live aggregate untouched.
		target, err := snapshot.Decode([]byte(row.SnapshotData))
		if err != nil {
			return err
		}

		current, err := captureAggregate(tx, recipeID)
		if err != nil {
			return err
		}
		safetyBlob, err := snapshot.Encode(*current)
		if err != nil {
			return err
		}
		_, err = appendVersion(tx, recipeID, safetyBlob, domain.ChangeMeta{
			Description: fmt.Sprintf("Safety snapshot before restoring version %d", row.VersionNumber),
		})
		if err != nil {
			return err
		}

		if err := applySnapshot(tx, recipeID, target); err != nil {
			return err
		}

		restored, err := captureAggregate(tx, recipeID)
		if err != nil {
			return err
		}
		restoredBlob, err := snapshot.Encode(*restored)
		if err != nil {
			return err
		}
		finalVer, err := appendVersion(tx, recipeID, restoredBlob, domain.ChangeMeta{
			Description:   fmt.Sprintf("Restored version %d", row.VersionNumber),
			ChangedFields: []string{"restored"},
		})
		if err != nil {
			return err
		}
		versionNumber = finalVer.VersionNumber

		return touchRecipe(tx, recipeID)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return 0, domain.ConflictError{Resource: "recipe aggregate"}
		}
		return 0, err
	}

	return versionNumber, nil
}

// applySnapshot replaces the live aggregate content with the decoded
// snapshot: scalar update on the root, delete-all-then-insert-all on
// each child collection.
func applySnapshot(tx *gorm.DB, recipeID uuid.UUID, target *domain.Aggregate) error {
	recipe := target.Recipe
	recipe.ID = recipeID

	rec, err := recipeToModel(recipe)
	if err != nil {
		return err
	}
	err = tx.Model(&models.Recipe{}).
		Where("id = ?", recipeID).
		Select("*").
		Omit("id", "c_date", "m_date").
		Updates(&rec).Error
	if err != nil {
		return err
	}

	if err := tx.Delete(&models.Ingredient{}, "recipe_id = ?", recipeID).Error; err != nil {
		return err
	}
	for _, ing := range target.Ingredients {
		ing.RecipeID = recipeID
		if ing.ID == uuid.Nil {
			ing.ID = uuid.New()
		}
		row := ingredientToModel(ing)
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
	}

	if err := tx.Delete(&models.CookingStep{}, "recipe_id = ?", recipeID).Error; err != nil {
		return err
	}
	for _, st := range target.Steps {
		st.RecipeID = recipeID
		if st.ID == uuid.Nil {
			st.ID = uuid.New()
		}
		row := stepToModel(st)
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
	}

	categoryIDs := make([]uuid.UUID, 0, len(target.Categories))
	for _, cat := range target.Categories {
		categoryIDs = append(categoryIDs, cat.ID)
	}
	return replaceCategoryLinks(tx, recipeID, categoryIDs)
}

// replaceCategoryLinks rewrites the recipe's category set. Ids no
// longer present in the vocabulary are skipped: the snapshot keeps
// their denormalized name for history, but there is nothing left to
// link to.
func replaceCategoryLinks(tx *gorm.DB, recipeID uuid.UUID, categoryIDs []uuid.UUID) error {
	if err := tx.Delete(&models.RecipeCategory{}, "recipe_id = ?", recipeID).Error; err != nil {
		return err
	}

	if len(categoryIDs) == 0 {
		return nil
	}

	var existing []models.Category
	if err := tx.Where("id IN ?", categoryIDs).Find(&existing).Error; err != nil {
		return err
	}
	known := make(map[uuid.UUID]bool, len(existing))
	for _, cat := range existing {
		known[cat.ID] = true
	}

	seen := make(map[uuid.UUID]bool, len(categoryIDs))
	for _, id := range categoryIDs {
		if !known[id] || seen[id] {
			continue
		}
		seen[id] = true
		link := models.RecipeCategory{RecipeID: recipeID, CategoryID: id}
		if err := tx.Create(&link).Error; err != nil {
			return err
		}
	}
	return nil
}
