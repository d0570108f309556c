package models

import (
	"time"

	"github.com/google/uuid"
)

type Transaction struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	GroupID     uuid.UUID `gorm:"type:uuid;not null;index"`
	UserID      uuid.UUID `gorm:"type:uuid;not null;index"`
	DrAccountID uuid.UUID `gorm:"type:uuid;not null;index"`
	CrAccountID uuid.UUID `gorm:"type:uuid;not null;index"`
	Currency    string    `gorm:"type:varchar(16);not null"`
	Value       string    `gorm:"type:decimal(36,18);not null"`
	Kind        string    `gorm:"type:varchar(32);not null"`
	Status      string    `gorm:"type:varchar(16);not null;index"`
	HoldUntil   *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type TxGroup struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey"`
	Kind             string    `gorm:"type:varchar(16);not null"`
	Status           string    `gorm:"type:varchar(16);not null;index"`
	UserID           uuid.UUID `gorm:"type:uuid;not null;index"`
	BlockchainTxHash *string   `gorm:"type:varchar(255);index"`
	Tx1ID            *uuid.UUID `gorm:"type:uuid"`
	Tx2ID            *uuid.UUID `gorm:"type:uuid"`
	Tx3ID            *uuid.UUID `gorm:"type:uuid"`
	Tx4ID            *uuid.UUID `gorm:"type:uuid"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
