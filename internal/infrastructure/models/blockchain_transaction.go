package models

import (
	"time"
)

type BlockchainTransaction struct {
	Hash          string `gorm:"type:varchar(255);primaryKey"`
	FromAddress   string `gorm:"type:varchar(255);not null;index"`
	ToAddress     string `gorm:"type:varchar(255);not null;index"`
	Currency      string `gorm:"type:varchar(16);not null"`
	Value         string `gorm:"type:decimal(36,18);not null"`
	Fee           string `gorm:"type:decimal(36,18);not null;default:'0'"`
	BlockNumber   int64
	Confirmations int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type PendingBlockchainTransaction struct {
	Hash        string `gorm:"type:varchar(255);primaryKey"`
	FromAddress string `gorm:"type:varchar(255);not null"`
	ToAddress   string `gorm:"type:varchar(255);not null"`
	Currency    string `gorm:"type:varchar(16);not null"`
	Value       string `gorm:"type:decimal(36,18);not null"`
	Fee         string `gorm:"type:decimal(36,18);not null;default:'0'"`
	CreatedAt   time.Time
}

type StrangeBlockchainTransaction struct {
	ID            uint   `gorm:"primaryKey;autoIncrement"`
	Hash          string `gorm:"type:varchar(255);not null;index"`
	FromAddress   string `gorm:"type:varchar(255)"`
	ToAddress     string `gorm:"type:varchar(255)"`
	Currency      string `gorm:"type:varchar(16);not null"`
	Value         string `gorm:"type:decimal(36,18);not null"`
	Fee           string `gorm:"type:decimal(36,18);not null;default:'0'"`
	BlockNumber   int64
	Confirmations int
	Commentary    string `gorm:"type:text;not null"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type SeenHash struct {
	Hash        string `gorm:"type:varchar(255);primaryKey"`
	Currency    string `gorm:"type:varchar(16);primaryKey"`
	BlockNumber int64
	CreatedAt   time.Time
}

type KeyValue struct {
	Key       string `gorm:"type:varchar(255);primaryKey;column:key"`
	Value     string `gorm:"type:jsonb;not null;default:'{}'"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
