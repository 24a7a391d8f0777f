package models

import "time"

// InputEvent is one raw client input sample. Timestamps are client-side
// milliseconds since attempt start.
type InputEvent struct {
	TimestampMs int64  `json:"t"`
	Kind        string `json:"k,omitempty"`
}

// ActiveAttempt — состояние оплаченной попытки между start-attempt и submit.
// Живет только в кеше; одноразовое потребление через Del решает гонку
// двойного submit.
type ActiveAttempt struct {
	UserID        string    `json:"userId"`
	EntryID       string    `json:"entryId"`
	TournamentID  string    `json:"tournamentId"`
	AttemptNumber int       `json:"attemptNumber"`
	StartedAt     time.Time `json:"startedAt"`
}

type StartAttemptResponse struct {
	AttemptID         string  `json:"attemptId"`
	AttemptNumber     int     `json:"attemptNumber"`
	AttemptsRemaining int     `json:"attemptsRemaining"`
	CostSats          int64   `json:"costSats"`
	CostUSD           float64 `json:"costUsd"`
	NewBalanceSats    int64   `json:"newBalanceSats"`
	PrizePoolSats     int64   `json:"prizePoolSats"`
}

type SubmitRequest struct {
	AttemptID  string       `json:"attemptId"`
	Score      int64        `json:"score" binding:"required"`
	Level      int64        `json:"level" binding:"required"`
	DurationMs int64        `json:"durationMs" binding:"required"`
	FrameCount *int64       `json:"frameCount"`
	InputLog   []InputEvent `json:"inputLog"`
}

type SubmitResponse struct {
	Accepted      bool   `json:"accepted"`
	AttemptNumber int    `json:"attemptNumber"`
	Score         int64  `json:"score"`
	BestScore     int64  `json:"bestScore"`
	IsNewBest     bool   `json:"isNewBest"`
	AttemptScores []*int64 `json:"attemptScores"`
}

// AttemptsResponse is the pre-game snapshot the client polls before offering
// the play button.
type AttemptsResponse struct {
	AttemptsUsed      int     `json:"attemptsUsed"`
	MaxAttempts       int     `json:"maxAttempts"`
	AttemptsRemaining int     `json:"attemptsRemaining"`
	CostSats          int64   `json:"costSats"`
	CostUSD           float64 `json:"costUsd"`
	HasEntry          bool    `json:"hasEntry"`
}

// GameSession is the persisted audit row for one submitted attempt.
type GameSession struct {
	ID         int64     `json:"id"`
	EntryID    string    `json:"entryId"`
	Score      int64     `json:"score"`
	Level      int64     `json:"level"`
	DurationMs int64     `json:"durationMs"`
	InputHash  string    `json:"-"`
	Verified   bool      `json:"verified"`
	CreatedAt  time.Time `json:"createdAt"`
}

// StatsResponse aggregates a player's history in the current tournament.
type StatsResponse struct {
	Sessions      int   `json:"sessions"`
	BestScore     int64 `json:"bestScore"`
	TotalScore    int64 `json:"totalScore"`
	VerifiedCount int   `json:"verifiedCount"`
}
