package service

import "context"

// ScoreBoard tracks lifetime points earned from boss defeats. It is updated
// after the payout commits, so it may lag the ledger but never leads it.
type ScoreBoard interface {
	Record(ctx context.Context, userIDs []int64, points int64) error
	Top(ctx context.Context, limit int) ([]Standing, error)
}

type Standing struct {
	Rank     int    `json:"rank"`
	UserID   int64  `json:"id"`
	Username string `json:"name"`
	Points   int64  `json:"points"`
}
