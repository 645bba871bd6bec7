package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Race grade buckets used by the public list filter.
const (
	GradeG1 = "G1"
	GradeG2 = "G2"
	GradeG3 = "G3"
)

// Race is a scheduled race card. PointCost must be zero when IsFree is set.
// TopOrder is only meaningful while ShowOnTop is true and is unique among
// those races.
type Race struct {
	bun.BaseModel `bun:"table:races,alias:rc"`

	ID             int64     `bun:"id,pk,autoincrement" json:"id"`
	RaceDate       string    `bun:"race_date,notnull,type:date" json:"raceDate"`
	Venue          string    `bun:"venue,notnull" json:"venue"`
	RaceNumber     int       `bun:"race_number,notnull" json:"raceNumber"`
	RaceName       string    `bun:"race_name,notnull" json:"raceName"`
	RaceType       string    `bun:"race_type,notnull" json:"raceType"`
	Distance       int       `bun:"distance,notnull" json:"distance"`
	Weather        *string   `bun:"weather" json:"weather,omitempty"`
	TrackCondition *string   `bun:"track_condition" json:"trackCondition,omitempty"`
	PostTime       string    `bun:"post_time,notnull" json:"postTime"`
	GradeClass     *string   `bun:"grade_class" json:"gradeClass,omitempty"`
	PrizeFirst     *int      `bun:"prize_first" json:"prizeFirst,omitempty"`
	NoteURL        *string   `bun:"note_url" json:"noteUrl,omitempty"`
	PointCost      int       `bun:"point_cost,notnull,default:0" json:"pointCost"`
	IsFree         bool      `bun:"is_free,notnull,default:false" json:"isFree"`
	IsPublished    bool      `bun:"is_published,notnull,default:false" json:"isPublished"`
	ShowOnTop      bool      `bun:"show_on_top,notnull,default:false" json:"showOnTop"`
	TopOrder       *int      `bun:"top_order" json:"topOrder,omitempty"`
	CreatedAt      time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt      time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updatedAt"`

	Horses []*Horse `bun:"rel:has-many,join:id=race_id" json:"horses,omitempty"`
}
