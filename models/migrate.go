package models

import "gorm.io/gorm"

// All lists every persisted model in migration order.
func All() []any {
	return []any{
		&User{},
		&Game{},
		&Tournament{},
		&TournamentEntry{},
		&TournamentResult{},
		&Transaction{},
		&PaymentOrder{},
		&Withdrawal{},
		&HelpRequest{},
		&AdminMessage{},
	}
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(All()...)
}
