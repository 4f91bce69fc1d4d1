package models

import (
	"time"

	"github.com/google/uuid"
)

// Game is the durable record for a single matchup in a season
type Game struct {
	ID           uuid.UUID  `json:"id"`
	Season       int        `json:"season"`
	Week         int        `json:"week"`
	Team1        string     `json:"team1"`
	Team2        string     `json:"team2"`
	Team1Score   int        `json:"team1Score"`
	Team2Score   int        `json:"team2Score"`
	Quarter      string     `json:"quarter"`
	IsLive       bool       `json:"isLive"`
	IsFinal      bool       `json:"isFinal"`
	BallPosition int        `json:"ballPosition"`
	LastPlay     string     `json:"lastPlay"`
	GameTime     *time.Time `json:"gameTime,omitempty"`
	Location     *string    `json:"location,omitempty"`
	StreamLink   *string    `json:"streamLink,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}
