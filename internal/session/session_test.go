package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("test-secret")

func signToken(t *testing.T, uid string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": uid,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	s, err := tok.SignedString(testSecret)
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return s
}

func TestSetTokenLogsIn(t *testing.T) {
	m := NewManager(testSecret, nil)

	var transitions []Identity
	m.OnChange(func(prev, next Identity) {
		transitions = append(transitions, next)
	})

	if err := m.SetToken(signToken(t, "u-1")); err != nil {
		t.Fatalf("SetToken failed: %v", err)
	}
	if got := m.Current(); got.UID != "u-1" {
		t.Errorf("Current().UID = %q, want u-1", got.UID)
	}
	if len(transitions) != 1 {
		t.Fatalf("expected 1 transition, got %d", len(transitions))
	}
}

func TestSetTokenSameUserIsNoop(t *testing.T) {
	m := NewManager(testSecret, nil)

	count := 0
	m.OnChange(func(prev, next Identity) { count++ })

	tok := signToken(t, "u-1")
	if err := m.SetToken(tok); err != nil {
		t.Fatal(err)
	}
	if err := m.SetToken(tok); err != nil {
		t.Fatal(err)
	}
	// A fresh token for the same user must not notify either.
	if err := m.SetToken(signToken(t, "u-1")); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("expected exactly 1 notification, got %d", count)
	}
}

func TestClear(t *testing.T) {
	m := NewManager(testSecret, nil)

	var last Identity
	m.OnChange(func(prev, next Identity) { last = next })

	// Clearing an anonymous session notifies nobody.
	m.Clear()
	if !m.Current().Anonymous() {
		t.Fatal("expected anonymous")
	}

	if err := m.SetToken(signToken(t, "u-2")); err != nil {
		t.Fatal(err)
	}
	m.Clear()
	if !m.Current().Anonymous() {
		t.Error("Clear did not log out")
	}
	if !last.Anonymous() {
		t.Error("listener did not see logout")
	}
}

func TestSwitchUser(t *testing.T) {
	m := NewManager(testSecret, nil)

	var prevs, nexts []string
	m.OnChange(func(prev, next Identity) {
		prevs = append(prevs, prev.UID)
		nexts = append(nexts, next.UID)
	})

	if err := m.SetToken(signToken(t, "alice")); err != nil {
		t.Fatal(err)
	}
	if err := m.SetToken(signToken(t, "bob")); err != nil {
		t.Fatal(err)
	}

	if len(nexts) != 2 || nexts[1] != "bob" || prevs[1] != "alice" {
		t.Errorf("unexpected transitions prev=%v next=%v", prevs, nexts)
	}
}

func TestSetTokenRejectsBadSignature(t *testing.T) {
	m := NewManager(testSecret, nil)

	other := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "mallory"})
	s, err := other.SignedString([]byte("wrong-secret"))
	if err != nil {
		t.Fatal(err)
	}

	if err := m.SetToken(s); err == nil {
		t.Fatal("expected error for forged token")
	}
	if !m.Current().Anonymous() {
		t.Error("failed login must not change identity")
	}
}

func TestSetTokenRejectsMissingSubject(t *testing.T) {
	m := NewManager(testSecret, nil)

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()})
	s, err := tok.SignedString(testSecret)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.SetToken(s); err == nil {
		t.Fatal("expected error for token without subject")
	}
}
