package live

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/mcdev12/fanzone/go/internal/apperrors"
	"github.com/mcdev12/fanzone/go/internal/games"
	"github.com/mcdev12/fanzone/go/internal/models"
)

func TestParseEvent(t *testing.T) {
	score, live := 7, false
	tests := []struct {
		name    string
		in      string
		want    Event
		wantErr string
	}{
		{"drag rounds", `{"type":"ball_move","ballPosition":42.6}`, PositionDrag{Position: 43}, ""},
		{"commit", `{"type":"ball_commit","ballPosition":80}`, PositionCommit{Position: 80}, ""},
		{"huge position stays in int range", `{"type":"ball_commit","ballPosition":1e300}`, PositionCommit{Position: 101}, ""},
		{"negative position", `{"type":"ball_move","ballPosition":-1e12}`, PositionDrag{Position: -1}, ""},
		{"missing position", `{"type":"ball_move"}`, nil, "ballPosition"},
		{"null position", `{"type":"ball_commit","ballPosition":null}`, nil, "ballPosition"},
		{"non numeric position", `{"type":"ball_move","ballPosition":"abc"}`, nil, "ballPosition"},
		{"edit", `{"type":"game_update","fields":{"team1Score":7,"isLive":false}}`, AdminEdit{Fields: games.GamePatch{Team1Score: &score, IsLive: &live}}, ""},
		{"edit without fields", `{"type":"game_update"}`, nil, "fields"},
		{"edit with bad fields", `{"type":"game_update","fields":{"team1Score":"seven"}}`, nil, "fields"},
		{"chat", `{"type":"chat_message","username":"fan1","message":"Go Pack"}`, ChatPost{Username: "fan1", Text: "Go Pack"}, ""},
		{"unknown type", `{"type":"timeout"}`, nil, "type"},
		{"no type", `{"ballPosition":3}`, nil, "type"},
		{"malformed", `{"type":`, nil, "frame"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseEvent([]byte(tt.in))
			if tt.wantErr != "" {
				var ve *apperrors.ValidationError
				if !errors.As(err, &ve) || ve.Field != tt.wantErr {
					t.Fatalf("expected validation error on %s, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseEvent: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("event mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func decode(t *testing.T, f Frame) map[string]interface{} {
	t.Helper()
	data, err := f.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	return m
}

func TestBallFramesKeepZeroPosition(t *testing.T) {
	id := uuid.New()

	commit := decode(t, BallCommitFrame(id, 0))
	want := map[string]interface{}{
		"type":         "ball_commit",
		"gameId":       id.String(),
		"ballPosition": float64(0),
		"persisted":    true,
	}
	if diff := cmp.Diff(want, commit); diff != "" {
		t.Fatalf("ball_commit mismatch (-want +got):\n%s", diff)
	}

	move := decode(t, BallMoveFrame(id, 0))
	if _, ok := move["persisted"]; ok {
		t.Fatalf("ball_move must not claim persistence: %v", move)
	}
	if move["ballPosition"] != float64(0) {
		t.Fatalf("ball_move lost zero position: %v", move)
	}
}

func TestChatMessageFrame(t *testing.T) {
	created := time.Date(2025, 10, 12, 18, 4, 5, 0, time.UTC)
	msg := &models.ChatMessage{ID: uuid.New(), Username: "fan1", Message: "Go Pack", CreatedAt: created}

	got := decode(t, ChatMessageFrame(msg))
	if _, ok := got["gameId"]; ok {
		t.Fatalf("global chat frame must omit gameId: %v", got)
	}
	if got["type"] != "chat_message" || got["message"] != "Go Pack" || got["username"] != "fan1" {
		t.Fatalf("unexpected chat frame: %v", got)
	}
	if got["createdAt"] != "2025-10-12T18:04:05Z" {
		t.Fatalf("unexpected createdAt: %v", got["createdAt"])
	}
}

func TestErrorFrameEchoesRejectedText(t *testing.T) {
	text := strings.Repeat("a", 501)
	got := decode(t, ErrorFrame(apperrors.Invalid("message", "must be at most 500 characters"), text))
	body := got["error"].(map[string]interface{})
	if body["code"] != "INVALID_ARGUMENT" || body["retryable"] != false || body["text"] != text {
		t.Fatalf("unexpected error body: %v", body)
	}

	got = decode(t, ErrorFrame(apperrors.Persistence("commit", errors.New("timeout")), ""))
	body = got["error"].(map[string]interface{})
	if body["code"] != "UNAVAILABLE" || body["retryable"] != true {
		t.Fatalf("persistence failure should be retryable: %v", body)
	}
}
