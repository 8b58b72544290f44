package domain

import (
	"time"

	"github.com/google/uuid"
)

// RecipeVersion is one entry in a recipe's append-only edit history.
// SnapshotData is immutable once written; version numbers are strictly
// increasing per recipe, gap-free from 1.
type RecipeVersion struct {
	ID                uuid.UUID `json:"id"`
	RecipeID          uuid.UUID `json:"recipeId"`
	VersionNumber     int       `json:"versionNumber"`
	SnapshotData      []byte    `json:"-"`
	SnapshotDigest    string    `json:"snapshotDigest"`
	ChangeDescription string    `json:"changeDescription,omitempty"`
	ChangedFields     []string  `json:"changedFields,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
}

// ChangeMeta describes a mutation for the version record written ahead
// of it. ChangedFields is empty when the mutation targets a child
// collection rather than recipe scalar fields.
type ChangeMeta struct {
	Description   string
	ChangedFields []string
}
