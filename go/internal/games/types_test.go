package games

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mcdev12/fanzone/go/internal/apperrors"
)

func ptr[T any](v T) *T { return &v }

func TestClampPosition(t *testing.T) {
	for in, want := range map[int]int{-20: 0, 0: 0, 37: 37, 100: 100, 250: 100} {
		if got := ClampPosition(in); got != want {
			t.Fatalf("ClampPosition(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestGamePatchValidate(t *testing.T) {
	tests := []struct {
		name    string
		patch   GamePatch
		wantErr string
	}{
		{"empty", GamePatch{}, "fields"},
		{"negative score", GamePatch{Team1Score: ptr(-1)}, "team1Score"},
		{"negative away score", GamePatch{Team2Score: ptr(-3)}, "team2Score"},
		{"last play too long", GamePatch{LastPlay: ptr(strings.Repeat("x", 501))}, "lastPlay"},
		{"live and final", GamePatch{IsLive: ptr(true), IsFinal: ptr(true)}, "isFinal"},
		{"unclamped position", GamePatch{BallPosition: ptr(140)}, "ballPosition"},
		{"last play at limit", GamePatch{LastPlay: ptr(strings.Repeat("é", 500))}, ""},
		{"final whistle", GamePatch{IsLive: ptr(false), IsFinal: ptr(true), Quarter: ptr("Final")}, ""},
		{"score update", GamePatch{Team1Score: ptr(14), Team2Score: ptr(7)}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.patch.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var ve *apperrors.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if ve.Field != tt.wantErr {
				t.Fatalf("field = %s, want %s", ve.Field, tt.wantErr)
			}
		})
	}
}

func TestGamePatchClamped(t *testing.T) {
	p := GamePatch{BallPosition: ptr(-5)}.Clamped()
	if *p.BallPosition != 0 {
		t.Fatalf("expected clamp to 0, got %d", *p.BallPosition)
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("clamped patch should validate: %v", err)
	}
}

func TestGamePatchFields(t *testing.T) {
	tests := []struct {
		name  string
		patch GamePatch
		want  []string
	}{
		{"position", GamePatch{BallPosition: ptr(40)}, []string{"ballPosition"}},
		{"going final clears live", GamePatch{IsFinal: ptr(true)}, []string{"isLive", "isFinal"}},
		{"going live clears final", GamePatch{IsLive: ptr(true), LastPlay: ptr("Kickoff")}, []string{"lastPlay", "isLive", "isFinal"}},
		{"lowering live only", GamePatch{IsLive: ptr(false)}, []string{"isLive"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, tt.patch.Fields()); diff != "" {
				t.Fatalf("Fields() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPositionOnly(t *testing.T) {
	if !(GamePatch{BallPosition: ptr(10)}).PositionOnly() {
		t.Fatalf("expected position-only patch")
	}
	if (GamePatch{BallPosition: ptr(10), LastPlay: ptr("Run for 3")}).PositionOnly() {
		t.Fatalf("mixed patch is not position-only")
	}
	if (GamePatch{}).PositionOnly() {
		t.Fatalf("empty patch is not position-only")
	}
}

func TestCreateGameRequestValidate(t *testing.T) {
	ok := CreateGameRequest{Season: 2025, Week: 3, Team1: "Packers", Team2: "Bears"}
	if err := ok.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	same := ok
	same.Team2 = "Packers"
	if err := same.Validate(); !apperrors.IsValidation(err) {
		t.Fatalf("expected validation error for identical teams, got %v", err)
	}
	noWeek := ok
	noWeek.Week = 0
	if err := noWeek.Validate(); !apperrors.IsValidation(err) {
		t.Fatalf("expected validation error for week 0, got %v", err)
	}
}
