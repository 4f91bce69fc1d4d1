package games

import (
	"time"
	"unicode/utf8"

	"github.com/mcdev12/fanzone/go/internal/apperrors"
)

const (
	MinBallPosition     = 0
	MaxBallPosition     = 100
	DefaultBallPosition = 50

	MaxLastPlayLength = 500
	MaxQuarterLength  = 16
)

// ClampPosition pins a field position into [MinBallPosition, MaxBallPosition].
func ClampPosition(v int) int {
	if v < MinBallPosition {
		return MinBallPosition
	}
	if v > MaxBallPosition {
		return MaxBallPosition
	}
	return v
}

// GamePatch is a partial update; nil fields are left untouched.
type GamePatch struct {
	BallPosition *int    `json:"ballPosition,omitempty"`
	LastPlay     *string `json:"lastPlay,omitempty"`
	Team1Score   *int    `json:"team1Score,omitempty"`
	Team2Score   *int    `json:"team2Score,omitempty"`
	Quarter      *string `json:"quarter,omitempty"`
	IsLive       *bool   `json:"isLive,omitempty"`
	IsFinal      *bool   `json:"isFinal,omitempty"`
}

// IsEmpty reports whether the patch changes nothing
func (p GamePatch) IsEmpty() bool {
	return p.BallPosition == nil && p.LastPlay == nil && p.Team1Score == nil &&
		p.Team2Score == nil && p.Quarter == nil && p.IsLive == nil && p.IsFinal == nil
}

// PositionOnly reports whether the patch touches nothing but the ball position
func (p GamePatch) PositionOnly() bool {
	return p.BallPosition != nil && p.LastPlay == nil && p.Team1Score == nil &&
		p.Team2Score == nil && p.Quarter == nil && p.IsLive == nil && p.IsFinal == nil
}

// Clamped returns a copy with BallPosition pinned into range.
func (p GamePatch) Clamped() GamePatch {
	if p.BallPosition != nil {
		v := ClampPosition(*p.BallPosition)
		p.BallPosition = &v
	}
	return p
}

// Validate rejects the whole patch if any field is out of range.
// Ball positions are clamped rather than rejected, so call Clamped first.
func (p GamePatch) Validate() error {
	if p.IsEmpty() {
		return apperrors.Invalid("fields", "at least one field is required")
	}
	if p.Team1Score != nil && *p.Team1Score < 0 {
		return apperrors.Invalid("team1Score", "must not be negative")
	}
	if p.Team2Score != nil && *p.Team2Score < 0 {
		return apperrors.Invalid("team2Score", "must not be negative")
	}
	if p.LastPlay != nil && utf8.RuneCountInString(*p.LastPlay) > MaxLastPlayLength {
		return apperrors.Invalid("lastPlay", "must be at most 500 characters")
	}
	if p.Quarter != nil && utf8.RuneCountInString(*p.Quarter) > MaxQuarterLength {
		return apperrors.Invalid("quarter", "must be at most 16 characters")
	}
	if p.IsLive != nil && p.IsFinal != nil && *p.IsLive && *p.IsFinal {
		return apperrors.Invalid("isFinal", "a game cannot be live and final at the same time")
	}
	if p.BallPosition != nil && (*p.BallPosition < MinBallPosition || *p.BallPosition > MaxBallPosition) {
		return apperrors.Invalid("ballPosition", "must be between 0 and 100")
	}
	return nil
}

// Fields lists the JSON names of the fields this patch sets, including the
// flag that is implicitly cleared when the other is raised.
func (p GamePatch) Fields() []string {
	var fields []string
	if p.BallPosition != nil {
		fields = append(fields, "ballPosition")
	}
	if p.LastPlay != nil {
		fields = append(fields, "lastPlay")
	}
	if p.Team1Score != nil {
		fields = append(fields, "team1Score")
	}
	if p.Team2Score != nil {
		fields = append(fields, "team2Score")
	}
	if p.Quarter != nil {
		fields = append(fields, "quarter")
	}
	if p.IsLive != nil || (p.IsFinal != nil && *p.IsFinal) {
		fields = append(fields, "isLive")
	}
	if p.IsFinal != nil || (p.IsLive != nil && *p.IsLive) {
		fields = append(fields, "isFinal")
	}
	return fields
}

// ListFilter narrows ListGames. Nil fields match everything.
type ListFilter struct {
	Season   *int
	Week     *int
	LiveOnly bool
}

// CreateGameRequest describes a scheduled game
type CreateGameRequest struct {
	Season     int        `json:"season" yaml:"season"`
	Week       int        `json:"week" yaml:"week"`
	Team1      string     `json:"team1" yaml:"team1"`
	Team2      string     `json:"team2" yaml:"team2"`
	GameTime   *time.Time `json:"gameTime,omitempty" yaml:"game_time"`
	Location   *string    `json:"location,omitempty" yaml:"location"`
	StreamLink *string    `json:"streamLink,omitempty" yaml:"stream_link"`
}

// Validate checks a create request
func (r CreateGameRequest) Validate() error {
	if r.Team1 == "" {
		return apperrors.Invalid("team1", "is required")
	}
	if r.Team2 == "" {
		return apperrors.Invalid("team2", "is required")
	}
	if r.Team1 == r.Team2 {
		return apperrors.Invalid("team2", "must differ from team1")
	}
	if r.Season < 1 {
		return apperrors.Invalid("season", "must be positive")
	}
	if r.Week < 1 {
		return apperrors.Invalid("week", "must be positive")
	}
	return nil
}
