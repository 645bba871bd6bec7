package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Feature is a marketing blurb shown on the top page. Icon is a plain tag
// ("Trophy", "TrendingUp", ...) resolved to a component at render time.
// Order values across all features are always the contiguous set 1..N.
type Feature struct {
	bun.BaseModel `bun:"table:features,alias:f"`

	ID          int64     `bun:"id,pk,autoincrement" json:"id"`
	Icon        string    `bun:"icon,notnull" json:"icon"`
	Title       string    `bun:"title,notnull" json:"title"`
	Description string    `bun:"description,notnull" json:"description"`
	Order       int       `bun:"display_order,notnull" json:"order"`
	IsPublished bool      `bun:"is_published,notnull,default:false" json:"isPublished"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt   time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updatedAt"`
}
