package game

import (
	"math"

	"github.com/mrkazawa/quiz-quest-app-sub000/internal/domain"
)

const (
	streakBonusStep     = 0.1
	maxStreakMultiplier = 1.5
)

// Score converts a submission into points and an updated streak. It is a pure
// function: the caller supplies elapsed time however it measures it.
//
// A correct answer earns floor(points * timeBonus * streakMultiplier), where
// timeBonus falls linearly from 1 at instant answers to 0 at the deadline and
// the streak multiplier grows 10% per consecutive correct answer, capped at
// 1.5x. Wrong or missing answers earn nothing and reset the streak.
func Score(q domain.Question, selected *int, elapsedSeconds float64, streak int) domain.ScoreResult {
	if selected == nil || *selected != q.CorrectIndex {
		return domain.ScoreResult{Correct: false, Points: 0, Streak: 0}
	}

	limit := float64(q.TimeLimitSeconds)
	if elapsedSeconds < 0 {
		elapsedSeconds = 0
	}
	if elapsedSeconds > limit {
		elapsedSeconds = limit
	}

	timeBonus := 1 - elapsedSeconds/limit
	newStreak := streak + 1
	multiplier := 1 + float64(newStreak)*streakBonusStep
	if multiplier > maxStreakMultiplier {
		multiplier = maxStreakMultiplier
	}

	earned := int(math.Floor(float64(q.Points) * timeBonus * multiplier))
	return domain.ScoreResult{Correct: true, Points: earned, Streak: newStreak}
}
