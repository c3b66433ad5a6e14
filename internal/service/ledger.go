package service

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"bossfit/internal/apperr"
	"bossfit/internal/repository"
)

// Wallet is the economy slice of a user record.
type Wallet struct {
	Points int64  `json:"points"`
	Avatar string `json:"avatar"`
}

// Ledger moves points on user records. Credits come from boss defeats,
// debits from avatar purchases.
type Ledger struct {
	store repository.Store
	log   zerolog.Logger
}

func NewLedger(store repository.Store, log zerolog.Logger) *Ledger {
	return &Ledger{store: store, log: log}
}

func (l *Ledger) Credit(ctx context.Context, userID int64, amount int64) error {
	err := l.store.Tx(ctx, func(r repository.Repos) error {
		return credit(ctx, r, []int64{userID}, amount)
	})
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return storeErr(err)
	}
	return nil
}

// credit pays every user inside the caller's transaction.
func credit(ctx context.Context, r repository.Repos, userIDs []int64, amount int64) error {
	if amount < 0 {
		return apperr.Validationf("credit amount must not be negative")
	}
	for _, id := range userIDs {
		if err := r.Users().AddPoints(ctx, id, amount); err != nil {
			return err
		}
	}
	return nil
}

func (l *Ledger) Balance(ctx context.Context, userID int64) (Wallet, error) {
	var wallet Wallet
	err := l.store.Tx(ctx, func(r repository.Repos) error {
		user, err := r.Users().Find(ctx, repository.ByID(userID))
		if err != nil {
			return err
		}
		wallet = Wallet{Points: user.Points, Avatar: user.Avatar}
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return Wallet{}, ErrUserNotFound
		}
		return Wallet{}, storeErr(err)
	}
	return wallet, nil
}

// Purchase debits price and switches the avatar in one update. A balance
// below price leaves the record untouched and yields ErrInsufficientFunds.
func (l *Ledger) Purchase(ctx context.Context, userID int64, avatar string, price int64) (Wallet, error) {
	avatar = strings.TrimSpace(avatar)
	if avatar == "" {
		return Wallet{}, apperr.Validationf("avatar required")
	}
	if price < 0 {
		return Wallet{}, apperr.Validationf("price must not be negative")
	}

	var wallet Wallet
	err := l.store.Tx(ctx, func(r repository.Repos) error {
		user, err := r.Users().FindForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if price > user.Points {
			return ErrInsufficientFunds
		}
		wallet = Wallet{Points: user.Points - price, Avatar: avatar}
		return r.Users().UpdateWallet(ctx, userID, wallet.Points, wallet.Avatar)
	})
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return Wallet{}, ErrUserNotFound
		}
		return Wallet{}, storeErr(err)
	}

	l.log.Info().Int64("user_id", userID).Str("avatar", avatar).Int64("price", price).Msg("avatar purchased")
	return wallet, nil
}
