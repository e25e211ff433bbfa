package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type TournamentStatus string

const (
	TournamentUpcoming       TournamentStatus = "upcoming"
	TournamentActive         TournamentStatus = "active"
	TournamentPendingResults TournamentStatus = "pending_results"
	TournamentCompleted      TournamentStatus = "completed"
	TournamentCancelled      TournamentStatus = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s TournamentStatus) Terminal() bool {
	return s == TournamentCompleted || s == TournamentCancelled
}

// Tournament is a scheduled paid contest for a single game.
type Tournament struct {
	ID             string           `json:"id" gorm:"primaryKey;type:varchar(36)"`
	GameID         string           `json:"game_id" gorm:"not null;index"`
	Name           string           `json:"name" gorm:"not null"`
	Description    string           `json:"description"`
	EntryFee       decimal.Decimal  `json:"entry_fee" gorm:"type:numeric(12,2);not null;default:0"`
	PrizePool      decimal.Decimal  `json:"prize_pool" gorm:"type:numeric(12,2);not null;default:0"`
	MaxPlayers     int              `json:"max_players" gorm:"not null"`
	CurrentPlayers int              `json:"current_players" gorm:"not null;default:0"`
	StartTime      time.Time        `json:"start_time" gorm:"not null;index"`
	EndTime        time.Time        `json:"end_time" gorm:"not null;index"`
	Status         TournamentStatus `json:"status" gorm:"type:varchar(20);not null;index"`
	Rules          string           `json:"rules" gorm:"type:text"`
	MapName        *string          `json:"map_name,omitempty"`
	ImageURL       *string          `json:"image_url,omitempty"`

	Game *Game `json:"game,omitempty" gorm:"foreignKey:GameID"`

	Timestamps
}

func (t *Tournament) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = TournamentUpcoming
	}
	return nil
}

// AvailableSlots is derived, never stored.
func (t *Tournament) AvailableSlots() int {
	if n := t.MaxPlayers - t.CurrentPlayers; n > 0 {
		return n
	}
	return 0
}

// TournamentEntry records one user's paid place in a tournament. Position and
// Prize mirror the user's TournamentResult once results are ingested.
type TournamentEntry struct {
	ID               string           `json:"id" gorm:"primaryKey;type:varchar(36)"`
	TournamentID     string           `json:"tournament_id" gorm:"not null;uniqueIndex:idx_entry_tournament_user"`
	UserID           string           `json:"user_id" gorm:"not null;uniqueIndex:idx_entry_tournament_user;index"`
	EntryFee         decimal.Decimal  `json:"entry_fee" gorm:"type:numeric(12,2);not null;default:0"`
	PaidFromDeposit  decimal.Decimal  `json:"paid_from_deposit" gorm:"type:numeric(12,2);not null;default:0"`
	PaidFromReferral decimal.Decimal  `json:"paid_from_referral" gorm:"type:numeric(12,2);not null;default:0"`
	Position         *int             `json:"position,omitempty"`
	Prize            *decimal.Decimal `json:"prize,omitempty" gorm:"type:numeric(12,2)"`
	Refunded         bool             `json:"refunded" gorm:"not null;default:false"`
	CreatedAt        time.Time        `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt        time.Time        `json:"updated_at" gorm:"autoUpdateTime"`

	Tournament *Tournament `json:"tournament,omitempty" gorm:"foreignKey:TournamentID"`
}

func (e *TournamentEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

// TournamentResult is one finisher's outcome and the source of truth for placements.
type TournamentResult struct {
	ID            string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	TournamentID  string          `json:"tournament_id" gorm:"not null;uniqueIndex:idx_result_position;uniqueIndex:idx_result_user"`
	UserID        string          `json:"user_id" gorm:"not null;uniqueIndex:idx_result_user;index"`
	GameID        string          `json:"game_id" gorm:"not null"`
	Position      int             `json:"position" gorm:"not null;uniqueIndex:idx_result_position"`
	TotalKills    int             `json:"total_kills" gorm:"not null;default:0"`
	WinningAmount decimal.Decimal `json:"winning_amount" gorm:"type:numeric(12,2);not null;default:0"`
	IsLastWinner  bool            `json:"is_last_winner" gorm:"not null;default:false"`
	CreatedAt     time.Time       `json:"created_at" gorm:"autoCreateTime"`
}

func (r *TournamentResult) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
