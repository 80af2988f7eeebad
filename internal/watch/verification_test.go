package watch

import (
	"strings"
	"testing"
)

func matchEvent(kind, id string, home, away int, status string, elapsed int) WireEvent {
	return WireEvent{
		Type: kind, MatchID: id,
		HomeScore: home, AwayScore: away,
		Status: status, ElapsedMinute: elapsed,
	}
}

func TestVerifierAcceptsWellFormedStream(t *testing.T) {
	v := NewVerifier()
	v.Observe(matchEvent("MATCH_LIVE_STARTED", "m1", 1, 0, "LIVE", 3))
	v.Observe(matchEvent("GOAL", "m1", 2, 0, "LIVE", 17))
	v.Observe(matchEvent("HALF_TIME", "m1", 2, 0, "LIVE", 46))
	v.Observe(matchEvent("GOAL", "m1", 2, 1, "LIVE", 71))
	v.Observe(matchEvent("MATCH_COMPLETED", "m1", 2, 1, "COMPLETED", 95))

	if got := v.Violations(); len(got) != 0 {
		t.Fatalf("violations = %v, want none", got)
	}
	if v.MatchesSeen() != 1 {
		t.Fatalf("matches seen = %d, want 1", v.MatchesSeen())
	}
}

func TestVerifierFlagsBackwardScore(t *testing.T) {
	v := NewVerifier()
	v.Observe(matchEvent("GOAL", "m1", 2, 1, "LIVE", 30))
	v.Observe(matchEvent("GOAL", "m1", 1, 1, "LIVE", 31))

	got := v.Violations()
	if len(got) != 1 || !strings.Contains(got[0], "score went backwards") {
		t.Fatalf("violations = %v", got)
	}
}

func TestVerifierFlagsBackwardStatus(t *testing.T) {
	v := NewVerifier()
	v.Observe(matchEvent("MATCH_COMPLETED", "m1", 1, 0, "COMPLETED", 95))
	v.Observe(matchEvent("MATCH_LIVE_STARTED", "m1", 1, 0, "LIVE", 95))

	got := v.Violations()
	if len(got) != 1 || !strings.Contains(got[0], "status moved backwards") {
		t.Fatalf("violations = %v", got)
	}
}

func TestVerifierFlagsRepeatedHalfTime(t *testing.T) {
	v := NewVerifier()
	v.Observe(matchEvent("HALF_TIME", "m1", 0, 0, "LIVE", 46))
	v.Observe(matchEvent("HALF_TIME", "m1", 0, 0, "LIVE", 48))

	got := v.Violations()
	if len(got) != 1 || !strings.Contains(got[0], "half-time") {
		t.Fatalf("violations = %v", got)
	}
}

func TestVerifierIgnoresNonLifecycleFrames(t *testing.T) {
	v := NewVerifier()
	v.Observe(matchEvent("GOAL", "m1", 2, 1, "LIVE", 30))
	v.Observe(WireEvent{Type: "USER_JOINED", Username: "alice", Topic: "matches"})
	v.Observe(WireEvent{Type: "CHAT_MESSAGE", Username: "alice", MatchID: "m1", Message: "hi"})

	if v.MatchesSeen() != 1 || len(v.Violations()) != 0 {
		t.Fatalf("non-lifecycle frames should be ignored: seen=%d violations=%v", v.MatchesSeen(), v.Violations())
	}
}

func TestVerifierTracksIndependentMatches(t *testing.T) {
	v := NewVerifier()
	v.Observe(matchEvent("GOAL", "m1", 3, 0, "LIVE", 40))
	v.Observe(matchEvent("GOAL", "m2", 0, 1, "LIVE", 12))
	v.Observe(matchEvent("GOAL", "m2", 0, 2, "LIVE", 20))

	if len(v.Violations()) != 0 {
		t.Fatalf("violations = %v, want none", v.Violations())
	}
	scores := v.FinalScores()
	if len(scores) != 2 || !strings.HasPrefix(scores[0], "m1 3-0") || !strings.HasPrefix(scores[1], "m2 0-2") {
		t.Fatalf("final scores = %v", scores)
	}
}

func TestFrameForTopic(t *testing.T) {
	cases := []struct {
		topic   string
		want    joinFrame
		wantErr bool
	}{
		{"matches", joinFrame{Type: "join", Username: "u"}, false},
		{"", joinFrame{Type: "join", Username: "u"}, false},
		{"match:m1", joinFrame{Type: "join", Username: "u", MatchID: "m1"}, false},
		{"league:premier-league", joinFrame{Type: "join", Username: "u", LeagueID: "premier-league"}, false},
		{"player:p9", joinFrame{Type: "join", Username: "u", PlayerID: "p9"}, false},
		{"channel:x", joinFrame{}, true},
	}
	for _, tc := range cases {
		got, err := frameForTopic(tc.topic, "u")
		if tc.wantErr {
			if err == nil {
				t.Errorf("topic %q: expected error", tc.topic)
			}
			continue
		}
		if err != nil {
			t.Errorf("topic %q: %v", tc.topic, err)
			continue
		}
		if got != tc.want {
			t.Errorf("topic %q: frame = %+v, want %+v", tc.topic, got, tc.want)
		}
	}
}
