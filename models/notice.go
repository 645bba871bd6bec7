package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Notice types.
const (
	NoticeCampaign    = "campaign"
	NoticeMaintenance = "maintenance"
	NoticeUpdate      = "update"
)

// Notice is a site announcement.
type Notice struct {
	bun.BaseModel `bun:"table:notices,alias:n"`

	ID          int64     `bun:"id,pk,autoincrement" json:"id"`
	Title       string    `bun:"title,notnull" json:"title"`
	Content     string    `bun:"content,notnull" json:"content"`
	Type        string    `bun:"type,notnull" json:"type"`
	IsNew       bool      `bun:"is_new,notnull,default:false" json:"isNew"`
	IsPublished bool      `bun:"is_published,notnull,default:false" json:"isPublished"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt   time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updatedAt"`
}
