// Package types contains common types used across the application
package types

import "time"

// Entry is one line of a challenge leaderboard.
type Entry struct {
	Rank  int     `json:"rank"`
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// Summary is the challenge overview: standings plus how far along the
// challenge is.
type Summary struct {
	ChallengeID   int64              `json:"challenge_id"`
	Name          string             `json:"name"`
	RuleSet       int                `json:"rule_set"`
	Totals        map[string]float64 `json:"totals"`
	Checkins      map[string]int     `json:"checkins"`
	Leaderboard   []Entry            `json:"leaderboard"`
	KnockedOut    []string           `json:"knocked_out"`
	Pot           float64            `json:"pot"`
	TotalPossible int                `json:"total_possible"`
	PossibleSoFar int                `json:"possible_so_far"`
}

// CheckinInput is an incoming check-in before it is resolved against the
// store. An empty Tier is looked up in Note; a zero Time means now.
type CheckinInput struct {
	Name string    `json:"name"`
	Tier string    `json:"tier"`
	Time time.Time `json:"time"`
	Note string    `json:"note"`
}
