package service

import (
	"strings"
	"testing"
)

func TestIsOriginAllowed(t *testing.T) {
	cases := []struct {
		name    string
		origin  string
		allowed []string
		want    bool
	}{
		{"empty allow-list permits everything", "https://evil.example", nil, true},
		{"missing origin permits server-to-server", "", []string{"https://app.example"}, true},
		{"substring match", "https://app.example", []string{" app.example "}, true},
		{"no match rejected", "https://evil.example", []string{"app.example"}, false},
		{"wildcard allows all", "https://anything", []string{"*"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsOriginAllowed(tc.origin, tc.allowed); got != tc.want {
				t.Errorf("IsOriginAllowed(%q, %v) = %v, want %v", tc.origin, tc.allowed, got, tc.want)
			}
		})
	}
}

func TestIsValidRoomName(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want bool
	}{
		{"single char", "a", true},
		{"max length", strings.Repeat("a", 100), true},
		{"too long", strings.Repeat("a", 101), false},
		{"empty", "", false},
		{"valid mixed", "Team_Retro-2026", true},
		{"rejects space", "my room", false},
		{"rejects slash", "a/b", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsValidRoomName(tc.in); got != tc.want {
				t.Errorf("IsValidRoomName(%q) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestIsWSMessageWithinLimit(t *testing.T) {
	if !IsWSMessageWithinLimit(MaxWSMessageBytes) {
		t.Error("exactly-at-limit message should be allowed")
	}
	if IsWSMessageWithinLimit(MaxWSMessageBytes + 1) {
		t.Error("over-limit message should be rejected")
	}
}

func TestCanAddObject(t *testing.T) {
	if !CanAddObject(MaxObjectsPerRoom - 1) {
		t.Error("room one below cap should accept another object")
	}
	if CanAddObject(MaxObjectsPerRoom) {
		t.Error("room at cap should reject another object")
	}
}

func TestIsAIMessageValid(t *testing.T) {
	if IsAIMessageValid("") {
		t.Error("empty message should be invalid")
	}
	if !IsAIMessageValid("make three sticky notes") {
		t.Error("normal message should be valid")
	}
	if !IsAIMessageValid(strings.Repeat("a", MaxAIMessageChars)) {
		t.Error("message at exactly the cap should be valid")
	}
	if IsAIMessageValid(strings.Repeat("a", MaxAIMessageChars+1)) {
		t.Error("message over the cap should be invalid")
	}
}
