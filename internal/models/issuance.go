package models

import (
	"time"
)

// Issuance audit record of one issued claim signature
type Issuance struct {
	ID        string `json:"id" gorm:"primaryKey;type:varchar(36)"` // UUID
	RequestID string `json:"request_id" gorm:"type:varchar(64);index"`

	Address  string `json:"address" gorm:"type:varchar(42);not null;index:idx_issuance_address_token"` // lowercase 0x address
	Token    string `json:"token" gorm:"type:varchar(42);not null;index:idx_issuance_address_token"`
	Contract string `json:"contract" gorm:"type:varchar(42);not null"`

	// uint256 values as decimal strings
	Amount    string `json:"amount" gorm:"type:varchar(78);not null"`
	Nonce     string `json:"nonce" gorm:"type:varchar(78);not null"`
	Withdrawn string `json:"withdrawn" gorm:"type:varchar(78)"`

	Hash      string `json:"hash" gorm:"type:varchar(66);not null;uniqueIndex:idx_issuance_hash_signature"`
	Signature string `json:"signature" gorm:"type:varchar(132);not null;uniqueIndex:idx_issuance_hash_signature"`
	Signer    string `json:"signer" gorm:"type:varchar(42)"`

	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

// TableName table for issuance records
func (Issuance) TableName() string {
	return "claim_issuances"
}
