package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Horse is a single entry on a race card. Index is the derived score used to
// rank the paid table; it is recomputed whenever the entry is written.
type Horse struct {
	bun.BaseModel `bun:"table:horses,alias:h"`

	ID           int64     `bun:"id,pk,autoincrement" json:"id"`
	RaceID       int64     `bun:"race_id,notnull,unique:horses_no_dupes" json:"raceID"`
	HorseNumber  int       `bun:"horse_number,notnull,unique:horses_no_dupes" json:"horseNumber"`
	HorseName    string    `bun:"horse_name,notnull" json:"horseName"`
	Age          int       `bun:"age,notnull" json:"age"`
	Sex          string    `bun:"sex,notnull" json:"sex"`
	Weight       int       `bun:"weight,notnull" json:"weight"`
	WeightChange *int      `bun:"weight_change" json:"weightChange,omitempty"`
	Jockey       string    `bun:"jockey,notnull" json:"jockey"`
	Trainer      string    `bun:"trainer,notnull" json:"trainer"`
	Odds         *float64  `bun:"odds" json:"odds,omitempty"`
	Popularity   *int      `bun:"popularity" json:"popularity,omitempty"`
	Index        float64   `bun:"index,notnull,default:0" json:"index"`
	Comment      *string   `bun:"comment" json:"comment,omitempty"`
	CreatedAt    time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt    time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updatedAt"`
}
