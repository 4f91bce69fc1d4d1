package main

import (
	"testing"
	"time"
)

const sample = `
season: 2025
weeks:
  - week: 1
    games:
      - team1: Packers
        team2: Bears
        game_time: 2025-09-07T17:00:00Z
        location: Lambeau Field
      - team1: Lions
        team2: Vikings
  - week: 2
    games:
      - team1: Bears
        team2: Lions
        season: 2026
`

func TestLoadSchedule(t *testing.T) {
	got, err := loadSchedule([]byte(sample))
	if err != nil {
		t.Fatalf("loadSchedule: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d games, want 3", len(got))
	}

	first := got[0]
	if first.Season != 2025 || first.Week != 1 || first.Team1 != "Packers" {
		t.Fatalf("first game = %+v", first)
	}
	if first.GameTime == nil || !first.GameTime.Equal(time.Date(2025, 9, 7, 17, 0, 0, 0, time.UTC)) {
		t.Fatalf("game time = %v", first.GameTime)
	}
	if first.Location == nil || *first.Location != "Lambeau Field" {
		t.Fatalf("location = %v", first.Location)
	}
	if got[1].GameTime != nil || got[1].Location != nil {
		t.Fatalf("optional fields should stay nil: %+v", got[1])
	}
	if got[2].Season != 2026 || got[2].Week != 2 {
		t.Fatalf("explicit season should win: %+v", got[2])
	}
}

func TestLoadScheduleRejectsBadGames(t *testing.T) {
	bad := `
season: 2025
weeks:
  - week: 3
    games:
      - team1: Packers
        team2: Packers
`
	if _, err := loadSchedule([]byte(bad)); err == nil {
		t.Fatalf("expected validation error")
	}
	if _, err := loadSchedule([]byte("season: [")); err == nil {
		t.Fatalf("expected YAML error")
	}
}
