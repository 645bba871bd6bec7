// Package ledger maintains per-user point balances as an append-only
// transaction log plus the cached users.points total. The log is the source
// of truth; every write updates both inside one store transaction, so the
// cached balance always equals the sum of the user's transactions.
package ledger

import (
	"context"
	"errors"
	"sync"

	"github.com/takigawalab/indexapi/models"
	"github.com/takigawalab/indexapi/store"
)

var (
	// ErrInvalidAmount rejects non-positive credit/debit amounts.
	ErrInvalidAmount = errors.New("amount must be a positive integer")

	// ErrInsufficientBalance is returned when a debit exceeds the balance.
	// The balance is left unchanged.
	ErrInsufficientBalance = errors.New("insufficient point balance")

	// ErrBonusAlreadyGranted is returned when the one-time friend bonus has
	// already been credited to the user.
	ErrBonusAlreadyGranted = errors.New("friend bonus already granted")
)

// FriendBonusPoints is credited once when a user registers as a LINE friend.
const FriendBonusPoints = 100

// Service is the point ledger.
type Service struct {
	store store.Store

	mu    sync.Mutex
	users map[int64]*sync.Mutex
}

// New creates a ledger service over the given store.
func New(st store.Store) *Service {
	return &Service{store: st, users: map[int64]*sync.Mutex{}}
}

// userLock returns the mutex serializing balance writes for one user.
func (s *Service) userLock(userID int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.users[userID]
	if !ok {
		m = &sync.Mutex{}
		s.users[userID] = m
	}
	return m
}

// WithUser runs fn while holding the per-user write lock. Callers composing
// a debit with other writes in their own transaction (the unlock service)
// use this to get the same serialization as Credit/Debit.
func (s *Service) WithUser(userID int64, fn func() error) error {
	m := s.userLock(userID)
	m.Lock()
	defer m.Unlock()
	return fn()
}

// Credit appends a positive transaction and raises the cached balance.
func (s *Service) Credit(ctx context.Context, userID int64, amount int, typ, description string, relatedID *string) (*models.PointTransaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	var out *models.PointTransaction
	err := s.WithUser(userID, func() error {
		return s.store.RunInTx(ctx, func(ctx context.Context, tx store.Store) error {
			u, err := tx.UserForUpdate(ctx, userID)
			if err != nil {
				return err
			}
			pt := &models.PointTransaction{
				UserID:      userID,
				Amount:      amount,
				Type:        typ,
				Description: description,
				RelatedID:   relatedID,
			}
			if err := tx.AppendTransaction(ctx, pt); err != nil {
				return err
			}
			if err := tx.SetUserPoints(ctx, userID, u.Points+amount); err != nil {
				return err
			}
			out = pt
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Debit appends a negative transaction and lowers the cached balance.
// It never lets the balance go below zero: a debit larger than the current
// balance fails with ErrInsufficientBalance and writes nothing.
func (s *Service) Debit(ctx context.Context, userID int64, amount int, typ, description string, relatedID *string) (*models.PointTransaction, error) {
	var out *models.PointTransaction
	err := s.WithUser(userID, func() error {
		return s.store.RunInTx(ctx, func(ctx context.Context, tx store.Store) error {
			pt, err := s.DebitInTx(ctx, tx, userID, amount, typ, description, relatedID)
			if err != nil {
				return err
			}
			out = pt
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DebitInTx performs the debit inside an already-open transaction. The caller
// must hold the user's lock via WithUser; the row lock from UserForUpdate
// covers the Postgres path.
func (s *Service) DebitInTx(ctx context.Context, tx store.Store, userID int64, amount int, typ, description string, relatedID *string) (*models.PointTransaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	u, err := tx.UserForUpdate(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.Points < amount {
		return nil, ErrInsufficientBalance
	}
	pt := &models.PointTransaction{
		UserID:      userID,
		Amount:      -amount,
		Type:        typ,
		Description: description,
		RelatedID:   relatedID,
	}
	if err := tx.AppendTransaction(ctx, pt); err != nil {
		return nil, err
	}
	if err := tx.SetUserPoints(ctx, userID, u.Points-amount); err != nil {
		return nil, err
	}
	return pt, nil
}

// BalanceOf returns the cached balance for a user.
func (s *Service) BalanceOf(ctx context.Context, userID int64) (int, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	return u.Points, nil
}

// History returns the user's transactions, newest first.
func (s *Service) History(ctx context.Context, userID int64) ([]models.PointTransaction, error) {
	return s.store.TransactionsByUser(ctx, userID)
}

// GrantFriendBonus credits the one-time LINE friend bonus. A second call for
// the same user fails with ErrBonusAlreadyGranted and credits nothing.
func (s *Service) GrantFriendBonus(ctx context.Context, userID int64) (*models.PointTransaction, error) {
	var out *models.PointTransaction
	err := s.WithUser(userID, func() error {
		return s.store.RunInTx(ctx, func(ctx context.Context, tx store.Store) error {
			u, err := tx.UserForUpdate(ctx, userID)
			if err != nil {
				return err
			}
			if u.FriendBonusGiven {
				return ErrBonusAlreadyGranted
			}
			pt := &models.PointTransaction{
				UserID:      userID,
				Amount:      FriendBonusPoints,
				Type:        models.TxBonus,
				Description: "LINE friend registration bonus",
			}
			if err := tx.AppendTransaction(ctx, pt); err != nil {
				return err
			}
			if err := tx.SetUserPoints(ctx, userID, u.Points+FriendBonusPoints); err != nil {
				return err
			}
			u.FriendBonusGiven = true
			u.IsLineFriend = true
			u.Points += FriendBonusPoints
			if err := tx.UpdateUser(ctx, u); err != nil {
				return err
			}
			out = pt
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
