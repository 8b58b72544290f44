package models

import (
	"time"

	"github.com/google/uuid"
)

type Recipe struct {
	ID              uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	OwnerID         string    `json:"ownerId" gorm:"type:text;index;not null"`
	Title           string    `json:"title" gorm:"type:text;not null"`
	Description     string    `json:"description" gorm:"type:text"`
	Servings        int       `json:"servings" gorm:"not null;default:0"`
	Difficulty      string    `json:"difficulty" gorm:"type:text"`
	PrepTimeMinutes int       `json:"prepTimeMinutes" gorm:"not null;default:0"`
	CookTimeMinutes int       `json:"cookTimeMinutes" gorm:"not null;default:0"`
	Equipment       string    `json:"equipment" gorm:"type:text"` // JSON array of strings
	Calories        int       `json:"calories" gorm:"not null;default:0"`
	ProteinGrams    float64   `json:"proteinGrams" gorm:"not null;default:0"`
	CarbGrams       float64   `json:"carbGrams" gorm:"not null;default:0"`
	FatGrams        float64   `json:"fatGrams" gorm:"not null;default:0"`
	Published       bool      `json:"published" gorm:"not null;default:false"`
	CDate           time.Time `json:"cdate" gorm:"->;<-:create;not null;autoCreateTime"`
	MDate           time.Time `json:"mdate" gorm:"not null;autoUpdateTime"`
}

type Ingredient struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	RecipeID     uuid.UUID `json:"recipeId" gorm:"type:uuid;index;uniqueIndex:idx_ingredient_order,priority:1;not null"`
	Recipe       Recipe    `json:"-" gorm:"constraint:OnDelete:CASCADE;"`
	Name         string    `json:"name" gorm:"type:text;not null"`
	Amount       float64   `json:"amount" gorm:"not null;default:0"`
	Unit         string    `json:"unit" gorm:"type:text"`
	Calories     int       `json:"calories" gorm:"not null;default:0"`
	Notes        string    `json:"notes" gorm:"type:text"`
	DisplayOrder int       `json:"order" gorm:"column:display_order;uniqueIndex:idx_ingredient_order,priority:2;not null"`
}

type CookingStep struct {
	ID              uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	RecipeID        uuid.UUID `json:"recipeId" gorm:"type:uuid;index;uniqueIndex:idx_step_number,priority:1;not null"`
	Recipe          Recipe    `json:"-" gorm:"constraint:OnDelete:CASCADE;"`
	StepNumber      int       `json:"stepNumber" gorm:"uniqueIndex:idx_step_number,priority:2;not null"`
	Instruction     string    `json:"instruction" gorm:"type:text;not null"`
	DurationMinutes *int      `json:"durationMinutes,omitempty"`
	Temperature     *int      `json:"temperature,omitempty"`
	Tips            string    `json:"tips" gorm:"type:text"`
}

type Category struct {
	ID   uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Name string    `json:"name" gorm:"type:text;uniqueIndex:idx_category_name,priority:1;not null"`
	Type string    `json:"type" gorm:"type:text;uniqueIndex:idx_category_name,priority:2;index;not null"`
}

type RecipeCategory struct {
	RecipeID   uuid.UUID `json:"recipeId" gorm:"type:uuid;primaryKey"`
	Recipe     Recipe    `json:"-" gorm:"constraint:OnDelete:CASCADE;"`
	CategoryID uuid.UUID `json:"categoryId" gorm:"type:uuid;primaryKey"`
	Category   Category  `json:"-" gorm:"constraint:OnDelete:CASCADE;"`
}
