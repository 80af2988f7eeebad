package watch

import (
	"fmt"
	"sort"
)

// matchState tracks what the stream has claimed about one match so far.
type matchState struct {
	homeScore int
	awayScore int
	status    string
	elapsed   int
	halfTimes int
}

// Verifier checks stream invariants across observed match events:
// scores never decrease, status only moves forward, elapsed time does
// not run backwards and half-time is announced at most once.
type Verifier struct {
	matches    map[string]*matchState
	violations []string
}

// NewVerifier creates an empty verifier.
func NewVerifier() *Verifier {
	return &Verifier{matches: make(map[string]*matchState)}
}

// statusRank orders the lifecycle for forward-only checks. Unknown
// statuses rank below everything so they always flag.
func statusRank(status string) int {
	switch status {
	case "SCHEDULED":
		return 0
	case "LIVE":
		return 1
	case "COMPLETED", "CANCELLED", "POSTPONED":
		return 2
	}
	return -1
}

// Observe folds one match lifecycle event into the verifier.
// Membership, chat and error frames carry no score snapshot and are
// ignored.
func (v *Verifier) Observe(ev WireEvent) {
	switch ev.Type {
	case "MATCH_LIVE_STARTED", "GOAL", "HALF_TIME", "MATCH_COMPLETED", "STATUS_CHANGED":
	default:
		return
	}
	if ev.MatchID == "" {
		return
	}

	state, ok := v.matches[ev.MatchID]
	if !ok {
		state = &matchState{homeScore: ev.HomeScore, awayScore: ev.AwayScore, status: ev.Status, elapsed: ev.ElapsedMinute}
		v.matches[ev.MatchID] = state
	}

	if ev.HomeScore < state.homeScore || ev.AwayScore < state.awayScore {
		v.flag("match %s: score went backwards (%d-%d after %d-%d)",
			ev.MatchID, ev.HomeScore, ev.AwayScore, state.homeScore, state.awayScore)
	}
	if ev.HomeScore < 0 || ev.AwayScore < 0 {
		v.flag("match %s: negative score %d-%d", ev.MatchID, ev.HomeScore, ev.AwayScore)
	}
	if statusRank(ev.Status) < statusRank(state.status) {
		v.flag("match %s: status moved backwards (%s after %s)", ev.MatchID, ev.Status, state.status)
	}
	if ev.ElapsedMinute < state.elapsed {
		v.flag("match %s: elapsed minute went backwards (%d after %d)", ev.MatchID, ev.ElapsedMinute, state.elapsed)
	}
	if ev.Type == "HALF_TIME" {
		state.halfTimes++
		if state.halfTimes > 1 {
			v.flag("match %s: half-time announced %d times", ev.MatchID, state.halfTimes)
		}
	}
	if statusRank(state.status) == 2 && ev.Type == "GOAL" {
		v.flag("match %s: goal after final status %s", ev.MatchID, state.status)
	}

	if ev.HomeScore > state.homeScore {
		state.homeScore = ev.HomeScore
	}
	if ev.AwayScore > state.awayScore {
		state.awayScore = ev.AwayScore
	}
	if statusRank(ev.Status) > statusRank(state.status) {
		state.status = ev.Status
	}
	if ev.ElapsedMinute > state.elapsed {
		state.elapsed = ev.ElapsedMinute
	}
}

func (v *Verifier) flag(format string, args ...interface{}) {
	v.violations = append(v.violations, fmt.Sprintf(format, args...))
}

// Violations returns every invariant breach seen so far.
func (v *Verifier) Violations() []string {
	return v.violations
}

// MatchesSeen returns how many distinct matches appeared in the stream.
func (v *Verifier) MatchesSeen() int {
	return len(v.matches)
}

// FinalScores returns "id home-away status" lines sorted by match ID,
// for the end-of-session report.
func (v *Verifier) FinalScores() []string {
	ids := make([]string, 0, len(v.matches))
	for id := range v.matches {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]string, 0, len(ids))
	for _, id := range ids {
		s := v.matches[id]
		out = append(out, fmt.Sprintf("%s %d-%d %s", id, s.homeScore, s.awayScore, s.status))
	}
	return out
}
