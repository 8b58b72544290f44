package domain

import (
	"time"

	"github.com/google/uuid"
)

// Recipe is the aggregate root. Its ingredients, steps and category
// links are owned by it and share its consistency boundary.
type Recipe struct {
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
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Ingredient belongs to exactly one Recipe. Order defines display
// sequence; unique within a recipe but not necessarily contiguous.
type Ingredient struct {
	ID       uuid.UUID `json:"id"`
	RecipeID uuid.UUID `json:"recipeId"`
	Name     string    `json:"name"`
	Amount   float64   `json:"amount"`
	Unit     string    `json:"unit"`
	Calories int       `json:"calories"`
	Notes    string    `json:"notes"`
	Order    int       `json:"order"`
}

// CookingStep belongs to exactly one Recipe. StepNumber is the 1-based
// position in the instruction sequence.
type CookingStep struct {
	ID              uuid.UUID `json:"id"`
	RecipeID        uuid.UUID `json:"recipeId"`
	StepNumber      int       `json:"stepNumber"`
	Instruction     string    `json:"instruction"`
	DurationMinutes *int      `json:"durationMinutes,omitempty"`
	Temperature     *int      `json:"temperature,omitempty"`
	Tips            string    `json:"tips"`
}

// Category is an entry in the shared category vocabulary.
type Category struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Type string    `json:"type"`
}

// RecipeUpdate is a partial update of the recipe scalar fields. Nil
// fields are left untouched; the set of non-nil fields becomes the
// changedFields list on the version written before the mutation.
type RecipeUpdate struct {
	Title           *string   `json:"title,omitempty"`
	Description     *string   `json:"description,omitempty"`
	Servings        *int      `json:"servings,omitempty"`
	Difficulty      *string   `json:"difficulty,omitempty"`
	PrepTimeMinutes *int      `json:"prepTimeMinutes,omitempty"`
	CookTimeMinutes *int      `json:"cookTimeMinutes,omitempty"`
	Equipment       *[]string `json:"equipment,omitempty"`
	Calories        *int      `json:"calories,omitempty"`
	ProteinGrams    *float64  `json:"proteinGrams,omitempty"`
	CarbGrams       *float64  `json:"carbGrams,omitempty"`
	FatGrams        *float64  `json:"fatGrams,omitempty"`
	Published       *bool     `json:"published,omitempty"`
}

// ChangedFields lists the scalar field names this update touches, in
// declaration order.
func (u RecipeUpdate) ChangedFields() []string {
	var fields []string
	if u.Title != nil {
		fields = append(fields, "title")
	}
	if u.Description != nil {
		fields = append(fields, "description")
	}
	if u.Servings != nil {
		fields = append(fields, "servings")
	}
	if u.Difficulty != nil {
		fields = append(fields, "difficulty")
	}
	if u.PrepTimeMinutes != nil {
		fields = append(fields, "prepTimeMinutes")
	}
	if u.CookTimeMinutes != nil {
		fields = append(fields, "cookTimeMinutes")
	}
	if u.Equipment != nil {
		fields = append(fields, "equipment")
	}
	if u.Calories != nil {
		fields = append(fields, "calories")
	}
	if u.ProteinGrams != nil {
		fields = append(fields, "proteinGrams")
	}
	if u.CarbGrams != nil {
		fields = append(fields, "carbGrams")
	}
	if u.FatGrams != nil {
		fields = append(fields, "fatGrams")
	}
	if u.Published != nil {
		fields = append(fields, "published")
	}
	return fields
}

// Apply copies the non-nil fields onto the recipe.
func (u RecipeUpdate) Apply(r *Recipe) {
	if u.Title != nil {
		r.Title = *u.Title
	}
	if u.Description != nil {
		r.Description = *u.Description
	}
	if u.Servings != nil {
		r.Servings = *u.Servings
	}
	if u.Difficulty != nil {
		r.Difficulty = *u.Difficulty
	}
	if u.PrepTimeMinutes != nil {
		r.PrepTimeMinutes = *u.PrepTimeMinutes
	}
	if u.CookTimeMinutes != nil {
		r.CookTimeMinutes = *u.CookTimeMinutes
	}
	if u.Equipment != nil {
		r.Equipment = *u.Equipment
	}
	if u.Calories != nil {
		r.Calories = *u.Calories
	}
	if u.ProteinGrams != nil {
		r.ProteinGrams = *u.ProteinGrams
	}
	if u.CarbGrams != nil {
		r.CarbGrams = *u.CarbGrams
	}
	if u.FatGrams != nil {
		r.FatGrams = *u.FatGrams
	}
	if u.Published != nil {
		r.Published = *u.Published
	}
}

// Aggregate is the full editable state of one recipe: the root record
// plus its three owned collections, as read at one instant.
type Aggregate struct {
	Recipe      Recipe        `json:"recipe"`
	Ingredients []Ingredient  `json:"ingredients"`
	Steps       []CookingStep `json:"steps"`
	Categories  []Category    `json:"categories"`
}
