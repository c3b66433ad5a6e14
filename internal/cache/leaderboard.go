package cache

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"bossfit/internal/service"
)

const leaderboardKey = "leaderboard:lifetime_points"

// Leaderboard keeps lifetime points earned from boss defeats in a sorted set.
// Spending points does not lower a player's standing.
type Leaderboard struct {
	client *redis.Client
}

var _ service.ScoreBoard = (*Leaderboard)(nil)

func NewLeaderboard(client *redis.Client) *Leaderboard {
	return &Leaderboard{client: client}
}

func (l *Leaderboard) Record(ctx context.Context, userIDs []int64, points int64) error {
	pipe := l.client.TxPipeline()
	for _, id := range userIDs {
		pipe.ZIncrBy(ctx, leaderboardKey, float64(points), strconv.FormatInt(id, 10))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record leaderboard: %w", err)
	}
	return nil
}

func (l *Leaderboard) Top(ctx context.Context, limit int) ([]service.Standing, error) {
	entries, err := l.client.ZRevRangeWithScores(ctx, leaderboardKey, 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("read leaderboard: %w", err)
	}

	standings := make([]service.Standing, 0, len(entries))
	for i, entry := range entries {
		member, ok := entry.Member.(string)
		if !ok {
			continue
		}
		id, err := strconv.ParseInt(member, 10, 64)
		if err != nil {
			continue
		}
		standings = append(standings, service.Standing{
			Rank:   i + 1,
			UserID: id,
			Points: int64(entry.Score),
		})
	}
	return standings, nil
}
