package indexer

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Interaction kinds.
const (
	KindInitiate = "initiate"
	KindRefund   = "refund"
)

// Interaction records a draw initiation or refund.
type Interaction struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	User      string    `gorm:"size:42;index"`
	Kind      string    `gorm:"size:16;index"`
	Quantity  int
	Rail      string `gorm:"size:16"`
	Amount    string `gorm:"size:80"`
	RequestID string `gorm:"size:66;index"`
	CreatedAt time.Time
}

// Fulfillment records one dispensed asset.
type Fulfillment struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	User       string    `gorm:"size:42;index"`
	Collection string    `gorm:"size:42"`
	Item       string    `gorm:"size:80"`
	Tier       int
	TargetTier int
	DrawIndex  int
	CreatedAt  time.Time
}

// Asset mirrors a registry record. InDeck turns false once the record leaves
// the registry.
type Asset struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Collection string    `gorm:"size:42;uniqueIndex:idx_asset_key"`
	Item       string    `gorm:"size:80;uniqueIndex:idx_asset_key"`
	Kind       int
	Quantity   uint64
	Tier       int  `gorm:"index"`
	InDeck     bool `gorm:"index"`
	UpdatedAt  time.Time
}

// GlobalState stores the latest value of a module parameter keyed by
// "<module>.<field>".
type GlobalState struct {
	Key       string `gorm:"primaryKey;size:64"`
	Value     string
	UpdatedAt time.Time
}

// AutoMigrate creates or updates the mirror tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Interaction{}, &Fulfillment{}, &Asset{}, &GlobalState{})
}
