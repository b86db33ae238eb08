package model

import (
	"time"

	"github.com/google/uuid"
)

// SettlementRecord is one persisted sweep leg. Amounts are stored as base-10
// strings because they routinely exceed int64.
type SettlementRecord struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	BatchID     uuid.UUID `gorm:"type:uuid;index" json:"batch_id"`
	Caller      string    `gorm:"index" json:"caller"`
	Maker       string    `gorm:"index" json:"maker"`
	Token       string    `gorm:"index" json:"token"`
	Destination string    `json:"destination"`
	TokenAmount string    `json:"token_amount"`
	GrossWei    string    `json:"gross_wei"`
	PayableWei  string    `json:"payable_wei"`
	DiscountBps uint64    `json:"discount_bps"`
	CreatedAt   time.Time `json:"created_at"`
}

func (SettlementRecord) TableName() string {
	return "settlement_records"
}

// TokenMetadataSnapshot mirrors the in-memory metadata cache into the
// database so restarts do not re-probe every token.
type TokenMetadataSnapshot struct {
	Token     string    `gorm:"primaryKey" json:"token"`
	Decimals  uint8     `json:"decimals"`
	Tier      uint8     `json:"tier"`
	Source    string    `json:"source"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (TokenMetadataSnapshot) TableName() string {
	return "token_metadata_snapshots"
}

// PayoutRecord is one persisted protocol fee payout.
type PayoutRecord struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	PrimaryWallet   string    `json:"primary_wallet"`
	PrimaryAmount   string    `json:"primary_amount_wei"`
	SecondaryWallet string    `json:"secondary_wallet"`
	SecondaryAmount string    `json:"secondary_amount_wei"`
	CreatedAt       time.Time `json:"created_at"`
}

func (PayoutRecord) TableName() string {
	return "payout_records"
}

// DestinationOverride redirects a maker's payouts to an alternate address.
// Only the maker can register one, and removing it is done by pointing the
// destination back at the maker.
type DestinationOverride struct {
	Maker       string    `gorm:"primaryKey" json:"maker"`
	Destination string    `json:"destination"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (DestinationOverride) TableName() string {
	return "destination_overrides"
}

// RecordQuery filters settlement record listings. Zero fields match
// everything.
type RecordQuery struct {
	Caller  string
	Maker   string
	Token   string
	BatchID uuid.UUID
	Limit   int
}
