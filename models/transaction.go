package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Point transaction types.
const (
	TxPurchase = "purchase"
	TxView     = "view"
	TxBonus    = "bonus"
)

// PointTransaction is an immutable ledger entry. Amount is signed: credits
// are positive, debits negative. For a given user the sum of all rows equals
// the cached users.points value.
type PointTransaction struct {
	bun.BaseModel `bun:"table:point_transactions,alias:pt"`

	ID          int64     `bun:"id,pk,autoincrement" json:"id"`
	UserID      int64     `bun:"user_id,notnull" json:"userID"`
	Amount      int       `bun:"amount,notnull" json:"amount"`
	Type        string    `bun:"type,notnull" json:"type"`
	Description string    `bun:"description,notnull,default:''" json:"description"`
	RelatedID   *string   `bun:"related_id" json:"relatedId,omitempty"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"createdAt"`
}
