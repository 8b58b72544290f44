package models

import (
	"time"

	"github.com/google/uuid"
)

// RecipeVersion rows are append-only. The composite unique index on
// (recipe_id, version_number) is the backstop for the per-recipe
// numbering invariant: a racing writer hits a duplicate-key error
// instead of silently sharing a number.
type RecipeVersion struct {
	ID                uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	RecipeID          uuid.UUID `json:"recipeId" gorm:"type:uuid;index;uniqueIndex:idx_recipe_version,priority:1;not null"`
	Recipe            Recipe    `json:"-" gorm:"constraint:OnDelete:CASCADE;"`
	VersionNumber     int       `json:"versionNumber" gorm:"uniqueIndex:idx_recipe_version,priority:2;not null"`
	SnapshotData      string    `json:"snapshotData" gorm:"->;<-:create;type:text;not null"`
	SnapshotDigest    string    `json:"snapshotDigest" gorm:"->;<-:create;type:text;not null"`
	ChangeDescription string    `json:"changeDescription" gorm:"type:text"`
	ChangedFields     string    `json:"changedFields" gorm:"type:text"` // JSON array of strings
	CDate             time.Time `json:"cdate" gorm:"->;<-:create;not null;autoCreateTime"`
}
