package app

import (
	"context"

	"edu-duel-service/internal/domain"
)

// StatsService derives win/loss history from completed duels. Read-only.
type StatsService struct {
	duels DuelRepository
}

func NewStatsService(duels DuelRepository) *StatsService {
	return &StatsService{duels: duels}
}

// StatsFor computes totals, win rate and the current win streak for a user,
// optionally scoped to one subject. The streak counts consecutive wins from
// the most recently ended duel backwards, stopping at the first non-win.
func (s *StatsService) StatsFor(ctx context.Context, userID, subjectID string) (domain.DuelStats, error) {
	duels, err := s.duels.ListCompletedForUser(ctx, userID, subjectID)
	if err != nil {
		return domain.DuelStats{}, err
	}

	var stats domain.DuelStats
	streakOpen := true
	for _, duel := range duels {
		p := duel.Participant(userID)
		if p == nil || p.Result == nil {
			continue
		}
		stats.Total++
		switch *p.Result {
		case domain.ResultWin:
			stats.Wins++
			if streakOpen {
				stats.CurrentStreak++
			}
		case domain.ResultLose:
			stats.Losses++
			streakOpen = false
		case domain.ResultDraw:
			stats.Draws++
			streakOpen = false
		}
	}
	if stats.Total > 0 {
		stats.WinRate = float64(stats.Wins) / float64(stats.Total)
	}
	return stats, nil
}
