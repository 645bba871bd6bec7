// Package store is the persistence boundary. Services talk to the Store
// interface only; Postgres backs the real server and Memory backs tests.
package store

import (
	"context"
	"errors"

	"github.com/takigawalab/indexapi/models"
)

// ErrNotFound is returned when a requested entity does not exist. The public
// race surface also maps unpublished races onto it so callers cannot tell an
// unpublished race from a missing one.
var ErrNotFound = errors.New("not found")

// ErrDuplicateUnlock is returned by CreateUnlock when a record for the same
// (user, race) pair already exists. The unlock service treats it as "already
// unlocked" and re-reads the existing record.
var ErrDuplicateUnlock = errors.New("unlock record already exists")

// RaceQuery narrows ListRaces. Zero values mean "no constraint".
type RaceQuery struct {
	Date          string
	Venues        []string // keep only these venues
	ExcludeVenues []string // drop these venues
	Grades        []string // keep only these grade classes
	FreeOnly      bool
	PublishedOnly bool
	OnTopOnly     bool // showOnTop races, ordered by topOrder
}

// Store is the full repository surface.
//
// RunInTx runs fn against a transactional view of the store; every write in
// fn commits or rolls back as one unit. Implementations may serialize
// transactions. Inside a transaction UserForUpdate pins the user row against
// concurrent writers until the transaction ends.
type Store interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error

	// Users
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUserByLineID(ctx context.Context, lineID string) (*models.User, error)
	UserForUpdate(ctx context.Context, id int64) (*models.User, error)
	UpdateUser(ctx context.Context, u *models.User) error
	SetUserPoints(ctx context.Context, id int64, points int) error

	// Point ledger
	AppendTransaction(ctx context.Context, tx *models.PointTransaction) error
	TransactionsByUser(ctx context.Context, userID int64) ([]models.PointTransaction, error)

	// Races and horses
	CreateRace(ctx context.Context, r *models.Race) error
	GetRace(ctx context.Context, id int64) (*models.Race, error)
	UpdateRace(ctx context.Context, r *models.Race) error
	DeleteRace(ctx context.Context, id int64) error
	ListRaces(ctx context.Context, q RaceQuery) ([]models.Race, error)
	ReplaceHorses(ctx context.Context, raceID int64, horses []*models.Horse) error
	HorsesByRace(ctx context.Context, raceID int64) ([]models.Horse, error)

	// Notices
	CreateNotice(ctx context.Context, n *models.Notice) error
	GetNotice(ctx context.Context, id int64) (*models.Notice, error)
	UpdateNotice(ctx context.Context, n *models.Notice) error
	DeleteNotice(ctx context.Context, id int64) error
	ListNotices(ctx context.Context, publishedOnly bool, typ string) ([]models.Notice, error)

	// Features
	CreateFeature(ctx context.Context, f *models.Feature) error
	GetFeature(ctx context.Context, id int64) (*models.Feature, error)
	UpdateFeature(ctx context.Context, f *models.Feature) error
	DeleteFeature(ctx context.Context, id int64) error
	ListFeatures(ctx context.Context, publishedOnly bool) ([]models.Feature, error)

	// Unlock records
	CreateUnlock(ctx context.Context, ur *models.UnlockRecord) error
	GetUnlock(ctx context.Context, userID, raceID int64) (*models.UnlockRecord, error)
	UnlocksByUser(ctx context.Context, userID int64) ([]models.UnlockRecord, error)
	RaceHasUnlocks(ctx context.Context, raceID int64) (bool, error)
}
