// Package unlock gates race detail access behind the point ledger. A paid
// race moves Locked -> Unlocked exactly once per user: the debit and the
// unlock record are written in one transaction, and repeat calls return the
// existing record without charging again.
package unlock

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/takigawalab/indexapi/ledger"
	"github.com/takigawalab/indexapi/models"
	"github.com/takigawalab/indexapi/store"
)

// Service composes the ledger and the catalog store.
type Service struct {
	store  store.Store
	ledger *ledger.Service
}

// HistoryEntry pairs an unlock record with its race summary for the mypage
// view history.
type HistoryEntry struct {
	Record models.UnlockRecord `json:"record"`
	Race   *models.Race        `json:"race,omitempty"`
}

// New creates an unlock service.
func New(st store.Store, lg *ledger.Service) *Service {
	return &Service{store: st, ledger: lg}
}

// Unlock grants the user standing access to a race's index table.
//
// Already unlocked: the existing record is returned as-is, nothing is
// charged. Free race: a zero-cost record is written without touching the
// ledger. Paid race: pointCost is debited and the record created in the same
// transaction; ledger.ErrInsufficientBalance leaves no record and no debit.
//
// Unpublished races are invisible here and report store.ErrNotFound.
func (s *Service) Unlock(ctx context.Context, userID, raceID int64) (*models.UnlockRecord, error) {
	race, err := s.store.GetRace(ctx, raceID)
	if err != nil {
		return nil, err
	}
	if !race.IsPublished {
		return nil, store.ErrNotFound
	}

	if ur, err := s.store.GetUnlock(ctx, userID, raceID); err == nil {
		return ur, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	if race.IsFree {
		ur := &models.UnlockRecord{UserID: userID, RaceID: raceID, PointsUsed: 0}
		if err := s.store.CreateUnlock(ctx, ur); err != nil {
			if errors.Is(err, store.ErrDuplicateUnlock) {
				return s.store.GetUnlock(ctx, userID, raceID)
			}
			return nil, err
		}
		return ur, nil
	}

	var out *models.UnlockRecord
	err = s.ledger.WithUser(userID, func() error {
		return s.store.RunInTx(ctx, func(ctx context.Context, tx store.Store) error {
			// Re-check under the user lock: a concurrent call may have won.
			if ur, err := tx.GetUnlock(ctx, userID, raceID); err == nil {
				out = ur
				return nil
			} else if !errors.Is(err, store.ErrNotFound) {
				return err
			}

			related := strconv.FormatInt(raceID, 10)
			desc := fmt.Sprintf("%s %dR %s", race.Venue, race.RaceNumber, race.RaceName)
			if _, err := s.ledger.DebitInTx(ctx, tx, userID, race.PointCost, models.TxView, desc, &related); err != nil {
				return err
			}

			ur := &models.UnlockRecord{UserID: userID, RaceID: raceID, PointsUsed: race.PointCost}
			if err := tx.CreateUnlock(ctx, ur); err != nil {
				return err
			}
			out = ur
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// HasAccess reports whether the user may view the race's index table. Free
// races are always accessible; otherwise an unlock record must exist. Pure
// read, no side effects. Unpublished races report store.ErrNotFound.
func (s *Service) HasAccess(ctx context.Context, userID, raceID int64) (bool, error) {
	race, err := s.store.GetRace(ctx, raceID)
	if err != nil {
		return false, err
	}
	if !race.IsPublished {
		return false, store.ErrNotFound
	}
	if race.IsFree {
		return true, nil
	}
	if userID == 0 {
		return false, nil
	}
	_, err = s.store.GetUnlock(ctx, userID, raceID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	return false, err
}

// History returns the user's unlock records, newest first, each joined with
// its race when the race still exists.
func (s *Service) History(ctx context.Context, userID int64) ([]HistoryEntry, error) {
	urs, err := s.store.UnlocksByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]HistoryEntry, 0, len(urs))
	for _, ur := range urs {
		entry := HistoryEntry{Record: ur}
		if race, err := s.store.GetRace(ctx, ur.RaceID); err == nil {
			entry.Race = race
		} else if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, nil
}
