package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tastevault/tastevault/internal/domain"
	"github.com/tastevault/tastevault/internal/infra/database/models"
	"github.com/tastevault/tastevault/internal/snapshot"
)

// VersionRepository reads the append-only ledger. Writes only happen
// through appendVersion, inside a versioning transaction that holds
// the recipe row lock.
type VersionRepository struct {
	db *gorm.DB
}

func NewVersionRepository(db *gorm.DB) *VersionRepository {
	return &VersionRepository{db: db}
}

// List returns the recipe's history, newest first.
func (r *VersionRepository) List(ctx context.Context, recipeID uuid.UUID) ([]domain.RecipeVersion, error) {
	var rows []models.RecipeVersion
	err := r.db.WithContext(ctx).
		Where("recipe_id = ?", recipeID).
		Order("version_number DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	versions := make([]domain.RecipeVersion, 0, len(rows))
	for _, row := range rows {
		ver, err := versionFromModel(row)
		if err != nil {
			return nil, err
		}
		versions = append(versions, ver)
	}
	return versions, nil
}

// Get loads one ledger entry. The recipe id scopes the lookup so a
// version can only be addressed through the recipe it belongs to.
func (r *VersionRepository) Get(ctx context.Context, recipeID, versionID uuid.UUID) (*domain.RecipeVersion, error) {
	var row models.RecipeVersion
	err := r.db.WithContext(ctx).Take(&row, "id = ? AND recipe_id = ?", versionID, recipeID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NotFoundError{Resource: "version"}
	}
	if err != nil {
		return nil, err
	}

	ver, err := versionFromModel(row)
	if err != nil {
		return nil, err
	}
	return &ver, nil
}

// LatestNumber returns the highest version number for the recipe, 0
// when no versions exist.
func (r *VersionRepository) LatestNumber(ctx context.Context, recipeID uuid.UUID) (int, error) {
	return maxVersionNumber(r.db.WithContext(ctx), recipeID)
}

func maxVersionNumber(tx *gorm.DB, recipeID uuid.UUID) (int, error) {
	var n int
	err := tx.Model(&models.RecipeVersion{}).
		Where("recipe_id = ?", recipeID).
		Select("COALESCE(MAX(version_number), 0)").
		Scan(&n).Error
	return n, err
}

// appendVersion assigns max+1 and inserts the record. The caller must
// hold the recipe row lock in tx; the unique index on
// (recipe_id, version_number) turns any remaining race into a
// duplicate-key error rather than a shared number.
func appendVersion(tx *gorm.DB, recipeID uuid.UUID, blob []byte, meta domain.ChangeMeta) (*domain.RecipeVersion, error) {
	current, err := maxVersionNumber(tx, recipeID)
	if err != nil {
		return nil, err
	}

	changedFields := "[]"
	if len(meta.ChangedFields) > 0 {
		b, err := json.Marshal(meta.ChangedFields)
		if err != nil {
			return nil, err
		}
		changedFields = string(b)
	}

	row := models.RecipeVersion{
		ID:                uuid.New(),
		RecipeID:          recipeID,
		VersionNumber:     current + 1,
		SnapshotData:      string(blob),
		SnapshotDigest:    snapshot.Digest(blob),
		ChangeDescription: meta.Description,
		ChangedFields:     changedFields,
	}

	if err := tx.Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, domain.ConflictError{Resource: "recipe version"}
		}
		return nil, err
	}

	ver, err := versionFromModel(row)
	if err != nil {
		return nil, err
	}
	return &ver, nil
}

func versionFromModel(m models.RecipeVersion) (domain.RecipeVersion, error) {
	changedFields := []string{}
	if m.ChangedFields != "" {
		if err := json.Unmarshal([]byte(m.ChangedFields), &changedFields); err != nil {
			return domain.RecipeVersion{}, err
		}
	}

	return domain.RecipeVersion{
		ID:                m.ID,
		RecipeID:          m.RecipeID,
		VersionNumber:     m.VersionNumber,
		SnapshotData:      []byte(m.SnapshotData),
		SnapshotDigest:    m.SnapshotDigest,
		ChangeDescription: m.ChangeDescription,
		ChangedFields:     changedFields,
		CreatedAt:         m.CDate,
	}, nil
}
