// Package snapshot encodes a full recipe aggregate into the opaque
// blob stored on a version record, and decodes it back. The document
// carries a schemaVersion discriminator so old blobs stay readable
// when the aggregate shape evolves.
package snapshot

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/xxh3"

	"github.com/tastevault/tastevault/internal/domain"
)

// SchemaVersion is the current snapshot document schema.
const SchemaVersion = 1

type document struct {
	SchemaVersion int            `json:"schemaVersion"`
	CapturedAt    time.Time      `json:"capturedAt"`
	Recipe        recipeDoc      `json:"recipe"`
	Ingredients   []ingredient   `json:"ingredients"`
	Steps         []step         `json:"steps"`
	Categories    []categoryLink `json:"categories"`
}

type recipeDoc struct {
	ID              uuid.UUID `json:"id"`
	OwnerID         string    `json:"ownerId"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Servings        int       `json:"servings"`
	Difficulty      string    `json:"difficulty"`
	PrepTimeMinutes int       `json:"prepTimeMinutes"`
	CookTimeMinutes int       `json:"cookTimeMinutes"`
	Equipment       []string  `json:"equipment"`
	Calories        int       `json:"calories"`
	ProteinGrams    float64   `json:"proteinGrams"`
	CarbGrams       float64   `json:"carbGrams"`
	FatGrams        float64   `json:"fatGrams"`
	Published       bool      `json:"published"`
}

type ingredient struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Amount   float64   `json:"amount"`
	Unit     string    `json:"unit"`
	Calories int       `json:"calories"`
	Notes    string    `json:"notes"`
	Order    int       `json:"order"`
}

type step struct {
	ID              uuid.UUID `json:"id"`
	StepNumber      int       `json:"stepNumber"`
	Instruction     string    `json:"instruction"`
	DurationMinutes *int      `json:"durationMinutes,omitempty"`
	Temperature     *int      `json:"temperature,omitempty"`
	Tips            string    `json:"tips"`
}

// categoryLink carries the category name and type denormalized next to
// the id. The snapshot is read-only history and must stay
// interpretable even if the vocabulary entry is later renamed or
// deleted.
type categoryLink struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Type string    `json:"type"`
}

// Encode serializes the aggregate as a self-describing JSON document.
func Encode(agg domain.Aggregate) ([]byte, error) {
	doc := document{
		SchemaVersion: SchemaVersion,
		CapturedAt:    time.Now().UTC(),
		Recipe: recipeDoc{
			ID:              agg.Recipe.ID,
			OwnerID:         agg.Recipe.OwnerID,
			Title:           agg.Recipe.Title,
			Description:     agg.Recipe.Description,
			Servings:        agg.Recipe.Servings,
			Difficulty:      agg.Recipe.Difficulty,
			PrepTimeMinutes: agg.Recipe.PrepTimeMinutes,
			CookTimeMinutes: agg.Recipe.CookTimeMinutes,
			Equipment:       agg.Recipe.Equipment,
			Calories:        agg.Recipe.Calories,
			ProteinGrams:    agg.Recipe.ProteinGrams,
			CarbGrams:       agg.Recipe.CarbGrams,
			FatGrams:        agg.Recipe.FatGrams,
			Published:       agg.Recipe.Published,
		},
		Ingredients: make([]ingredient, 0, len(agg.Ingredients)),
		Steps:       make([]step, 0, len(agg.Steps)),
		Categories:  make([]categoryLink, 0, len(agg.Categories)),
	}

	for _, ing := range agg.Ingredients {
		doc.Ingredients = append(doc.Ingredients, ingredient{
			ID:       ing.ID,
			Name:     ing.Name,
			Amount:   ing.Amount,
			Unit:     ing.Unit,
			Calories: ing.Calories,
			Notes:    ing.Notes,
			Order:    ing.Order,
		})
	}

	for _, st := range agg.Steps {
		doc.Steps = append(doc.Steps, step{
			ID:              st.ID,
			StepNumber:      st.StepNumber,
			Instruction:     st.Instruction,
			DurationMinutes: st.DurationMinutes,
			Temperature:     st.Temperature,
			Tips:            st.Tips,
		})
	}

	for _, cat := range agg.Categories {
		doc.Categories = append(doc.Categories, categoryLink{
			ID:   cat.ID,
			Name: cat.Name,
			Type: cat.Type,
		})
	}

	return json.Marshal(doc)
}

// Decode parses a snapshot blob back into an aggregate. It returns
// domain.CorruptSnapshotError when the blob cannot be interpreted.
func Decode(blob []byte) (*domain.Aggregate, error) {
	var doc document
	if err := json.Unmarshal(blob, &doc); err != nil {
		return nil, domain.CorruptSnapshotError{Reason: err.Error()}
	}

	if doc.SchemaVersion != SchemaVersion {
		return nil, domain.CorruptSnapshotError{
			Reason: fmt.Sprintf("unsupported schema version %d", doc.SchemaVersion),
		}
	}

	if doc.Recipe.ID == uuid.Nil {
		return nil, domain.CorruptSnapshotError{Reason: "missing recipe id"}
	}

	agg := domain.Aggregate{
		Recipe: domain.Recipe{
			ID:              doc.Recipe.ID,
			OwnerID:         doc.Recipe.OwnerID,
			Title:           doc.Recipe.Title,
			Description:     doc.Recipe.Description,
			Servings:        doc.Recipe.Servings,
			Difficulty:      doc.Recipe.Difficulty,
			PrepTimeMinutes: doc.Recipe.PrepTimeMinutes,
			CookTimeMinutes: doc.Recipe.CookTimeMinutes,
			Equipment:       doc.Recipe.Equipment,
			Calories:        doc.Recipe.Calories,
			ProteinGrams:    doc.Recipe.ProteinGrams,
			CarbGrams:       doc.Recipe.CarbGrams,
			FatGrams:        doc.Recipe.FatGrams,
			Published:       doc.Recipe.Published,
		},
		Ingredients: make([]domain.Ingredient, 0, len(doc.Ingredients)),
		Steps:       make([]domain.CookingStep, 0, len(doc.Steps)),
		Categories:  make([]domain.Category, 0, len(doc.Categories)),
	}

	for _, ing := range doc.Ingredients {
		agg.Ingredients = append(agg.Ingredients, domain.Ingredient{
			ID:       ing.ID,
			RecipeID: doc.Recipe.ID,
			Name:     ing.Name,
			Amount:   ing.Amount,
			Unit:     ing.Unit,
			Calories: ing.Calories,
			Notes:    ing.Notes,
			Order:    ing.Order,
		})
	}

	for _, st := range doc.Steps {
		agg.Steps = append(agg.Steps, domain.CookingStep{
			ID:              st.ID,
			RecipeID:        doc.Recipe.ID,
			StepNumber:      st.StepNumber,
			Instruction:     st.Instruction,
			DurationMinutes: st.DurationMinutes,
			Temperature:     st.Temperature,
			Tips:            st.Tips,
		})
	}

	for _, cat := range doc.Categories {
		agg.Categories = append(agg.Categories, domain.Category{
			ID:   cat.ID,
			Name: cat.Name,
			Type: cat.Type,
		})
	}

	return &agg, nil
}

// Digest returns the xxh3 content digest of an encoded snapshot,
// stored alongside the blob so operators can spot bit rot.
func Digest(blob []byte) string {
	return fmt.Sprintf("%016x", xxh3.Hash(blob))
}
