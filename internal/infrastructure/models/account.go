package models

import (
	"time"

	"github.com/google/uuid"
)

// The partial unique index on (address, currency, kind) enforces the
// wallet binding at the schema; system accounts carry an empty address
// and stay outside it.
type Account struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index"`
	Currency  string    `gorm:"type:varchar(16);not null;index;uniqueIndex:uidx_accounts_wallet_binding"`
	Address   string    `gorm:"type:varchar(255);not null;index;uniqueIndex:uidx_accounts_wallet_binding,where:address <> ''"`
	Name      string    `gorm:"type:varchar(255)"`
	Kind      string    `gorm:"type:varchar(4);not null;index;uniqueIndex:uidx_accounts_wallet_binding"`
	Balance   string    `gorm:"type:decimal(36,18);not null;default:'0';check:balance_non_negative,balance >= 0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type User struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name      string    `gorm:"type:varchar(255)"`
	AuthToken string    `gorm:"type:varchar(255)"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
