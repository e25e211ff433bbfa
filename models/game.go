// models/game.go
package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Game is a supported title. Name is a URL-safe slug ("freefire").
type Game struct {
	ID          string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name        string `json:"name" gorm:"uniqueIndex;not null"`
	DisplayName string `json:"display_name" gorm:"not null"`
	Icon        string `json:"icon"`
	Description string `json:"description"`
	IsActive    bool   `json:"is_active" gorm:"not null"`

	Timestamps
}

func (g *Game) BeforeCreate(tx *gorm.DB) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	return nil
}
