package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/fanzone/go/internal/apperrors"
)

var testSecret = []byte(strings.Repeat("s", 32))

func TestIssueAndVerify(t *testing.T) {
	clock := clockwork.NewFakeClock()
	v, err := NewVerifier(testSecret, "fanzone", clock)
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}

	token, err := v.Issue("u-1", "coach", RoleAdmin, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	capability, err := v.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !capability.IsAdmin() || capability.Username != "coach" || capability.UserID != "u-1" {
		t.Fatalf("unexpected capability: %+v", capability)
	}

	clock.Advance(2 * time.Hour)
	if _, err := v.Verify(token); !errors.Is(err, apperrors.ErrUnauthorized) {
		t.Fatalf("expected expired token to be rejected, got %v", err)
	}
}

func TestVerifyEmptyTokenIsAnonymous(t *testing.T) {
	v, _ := NewVerifier(testSecret, "fanzone", clockwork.NewFakeClock())
	capability, err := v.Verify("")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if capability.IsAuthenticated() || capability.IsAdmin() {
		t.Fatalf("expected anonymous capability, got %+v", capability)
	}
}

func TestVerifyRejectsForeignTokens(t *testing.T) {
	clock := clockwork.NewFakeClock()
	v, _ := NewVerifier(testSecret, "fanzone", clock)
	other, _ := NewVerifier([]byte(strings.Repeat("x", 32)), "fanzone", clock)
	wrongIssuer, _ := NewVerifier(testSecret, "someone-else", clock)

	forged, _ := other.Issue("u-1", "coach", RoleAdmin, time.Hour)
	if _, err := v.Verify(forged); !errors.Is(err, apperrors.ErrUnauthorized) {
		t.Fatalf("expected bad signature rejection, got %v", err)
	}
	misissued, _ := wrongIssuer.Issue("u-1", "coach", RoleAdmin, time.Hour)
	if _, err := v.Verify(misissued); !errors.Is(err, apperrors.ErrUnauthorized) {
		t.Fatalf("expected issuer rejection, got %v", err)
	}
	if _, err := v.Verify("not.a.jwt"); !errors.Is(err, apperrors.ErrUnauthorized) {
		t.Fatalf("expected garbage rejection, got %v", err)
	}
}

func TestUnknownRoleIsViewer(t *testing.T) {
	v, _ := NewVerifier(testSecret, "fanzone", clockwork.NewFakeClock())
	token, _ := v.Issue("u-2", "fan", Role("superuser"), time.Hour)
	capability, err := v.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if capability.IsAdmin() || !capability.IsAuthenticated() {
		t.Fatalf("expected authenticated viewer, got %+v", capability)
	}
}

func TestNewVerifierRejectsShortSecret(t *testing.T) {
	if _, err := NewVerifier([]byte("short"), "fanzone", nil); err == nil {
		t.Fatalf("expected short secret to be rejected")
	}
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws/chat?token=query-token", nil)
	r.Header.Set("Authorization", "Bearer header-token")
	if got := TokenFromRequest(r); got != "header-token" {
		t.Fatalf("bearer header should win, got %q", got)
	}

	r = httptest.NewRequest("GET", "/ws/chat?token=query-token", nil)
	if got := TokenFromRequest(r); got != "query-token" {
		t.Fatalf("expected query token, got %q", got)
	}

	r = httptest.NewRequest("GET", "/ws/chat", nil)
	r.AddCookie(&http.Cookie{Name: CookieName, Value: "cookie-token"})
	if got := TokenFromRequest(r); got != "cookie-token" {
		t.Fatalf("expected cookie token, got %q", got)
	}
}
