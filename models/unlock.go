package models

import (
	"time"

	"github.com/uptrace/bun"
)

// UnlockRecord marks a race as paid for by a user. At most one row exists per
// (user, race) pair; re-unlocking returns the existing row without a second
// charge.
type UnlockRecord struct {
	bun.BaseModel `bun:"table:unlock_records,alias:ur"`

	ID         int64     `bun:"id,pk,autoincrement" json:"id"`
	UserID     int64     `bun:"user_id,notnull,unique:unlocks_no_dupes" json:"userID"`
	RaceID     int64     `bun:"race_id,notnull,unique:unlocks_no_dupes" json:"raceID"`
	PointsUsed int       `bun:"points_used,notnull" json:"pointsUsed"`
	UnlockedAt time.Time `bun:"unlocked_at,nullzero,notnull,default:current_timestamp" json:"unlockedAt"`
}
