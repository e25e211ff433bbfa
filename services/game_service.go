package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/olauber7232/tournament-latest-1/models"

	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

type GameService struct {
	DB *gorm.DB
}

func NewGameService(db *gorm.DB) *GameService {
	return &GameService{DB: db}
}

type CreateGameRequest struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name" validate:"required,max=80"`
	Icon        string `json:"icon"`
	Description string `json:"description"`
}

// CreateGame registers a title. When no name is given it is derived from the
// display name ("Call of Duty Mobile" -> "call-of-duty-mobile").
func (s *GameService) CreateGame(ctx context.Context, req CreateGameRequest) (*models.Game, error) {
	display := strings.TrimSpace(req.DisplayName)
	if display == "" {
		return nil, validationf("display_name is required")
	}
	name := req.Name
	if name == "" {
		name = display
	}
	name = slug.Make(name)
	if name == "" {
		return nil, validationf("name must contain letters or digits")
	}

	g := &models.Game{
		Name:        name,
		DisplayName: display,
		Icon:        req.Icon,
		Description: req.Description,
		IsActive:    true,
	}
	if err := s.DB.WithContext(ctx).Create(g).Error; err != nil {
		return nil, dbError(err, "game "+name)
	}
	return g, nil
}

func (s *GameService) ListActive(ctx context.Context) ([]models.Game, error) {
	var games []models.Game
	if err := s.DB.WithContext(ctx).Where("is_active = ?", true).Order("display_name ASC").Find(&games).Error; err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	return games, nil
}

func (s *GameService) GetByName(ctx context.Context, name string) (*models.Game, error) {
	var g models.Game
	if err := s.DB.WithContext(ctx).First(&g, "name = ?", name).Error; err != nil {
		return nil, dbError(err, "game")
	}
	return &g, nil
}
