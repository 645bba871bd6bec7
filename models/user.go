package models

import (
	"time"

	"github.com/uptrace/bun"
)

// User is a site member. Points is a cached balance; the point_transactions
// table is the source of truth and the two must agree after every write.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID               int64     `bun:"id,pk,autoincrement" json:"id"`
	LineID           string    `bun:"line_id,notnull,unique" json:"lineId"`
	Name             string    `bun:"name,notnull" json:"name"`
	Email            *string   `bun:"email" json:"email,omitempty"`
	Password         string    `bun:"password,notnull" json:"-"`
	Points           int       `bun:"points,notnull,default:0" json:"points"`
	IsAdmin          bool      `bun:"is_admin,notnull,default:false" json:"isAdmin"`
	IsLineFriend     bool      `bun:"is_line_friend,notnull,default:false" json:"isLineFriend"`
	FriendBonusGiven bool      `bun:"friend_bonus_given,notnull,default:false" json:"friendBonusGiven"`
	CreatedAt        time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt        time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updatedAt"`
}
