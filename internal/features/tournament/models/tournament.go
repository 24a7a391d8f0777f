package models

import "time"

type TournamentStatus string

const (
	StatusOpen      TournamentStatus = "open"
	StatusCompleted TournamentStatus = "completed"
)

type PayoutStatus string

const (
	PayoutPending PayoutStatus = "pending"
	PayoutPaid    PayoutStatus = "paid"
)

// Tournament — один турнир на каждую UTC-дату. Создается лениво при первом
// обращении, закрывается ровно один раз.
type Tournament struct {
	ID            string           `json:"id"`
	Date          string           `json:"date"`
	BuyInSats     int64            `json:"buyInSats"`
	PrizePoolSats int64            `json:"prizePoolSats"`
	Status        TournamentStatus `json:"status"`
	StartTime     time.Time        `json:"startTime"`
	EndTime       time.Time        `json:"endTime"`
	CreatedAt     time.Time        `json:"-"`
}

// Entry binds a user to a tournament. Attempt columns are written once each;
// best_score is the leaderboard key.
type Entry struct {
	ID            string    `json:"id"`
	TournamentID  string    `json:"tournamentId"`
	UserID        string    `json:"userId"`
	AttemptsUsed  int       `json:"attemptsUsed"`
	MaxAttempts   int       `json:"maxAttempts"`
	Attempt1Score *int64    `json:"attempt1Score"`
	Attempt2Score *int64    `json:"attempt2Score"`
	Attempt3Score *int64    `json:"attempt3Score"`
	BestScore     int64     `json:"bestScore"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"-"`
}

// Payout — одна выплата победителю. UNIQUE (tournament_id, place) в схеме
// гарантирует, что закрытие турнира не породит дублей.
type Payout struct {
	ID           string       `json:"id"`
	TournamentID string       `json:"tournamentId"`
	UserID       string       `json:"userId"`
	Place        int          `json:"place"`
	AmountSats   int64        `json:"amountSats"`
	Destination  string       `json:"-"`
	Status       PayoutStatus `json:"status"`
	PaymentHash  string       `json:"-"`
	FailureCount int          `json:"-"`
	PaidAt       *time.Time   `json:"paidAt,omitempty"`
	CreatedAt    time.Time    `json:"-"`
}

// Winner is a leaderboard row joined with the data payouts need.
type Winner struct {
	UserID           string
	DisplayName      string
	LightningAddress string
	BestScore        int64
	EntryID          string
}

// LeaderboardRow is the public leaderboard projection.
type LeaderboardRow struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	BestScore   int64  `json:"bestScore"`
}

// PayoutStructure describes how the current pool would split at close.
type PayoutStructure struct {
	HouseFeePercent int     `json:"houseFeePercent"`
	Splits          []Split `json:"splits"`
}

type Split struct {
	Place      int     `json:"place"`
	Percent    float64 `json:"percent"`
	AmountSats int64   `json:"amountSats"`
}

type CurrentTournamentResponse struct {
	Tournament      *Tournament     `json:"tournament"`
	PlayerCount     int             `json:"playerCount"`
	PrizePoolUSD    float64         `json:"prizePoolUsd"`
	PayoutStructure PayoutStructure `json:"payoutStructure"`
}
