// Package seed populates the match store with a realistic schedule at
// startup: recently completed fixtures, matches in progress right now,
// and fixtures over the coming days. Without it a fresh deployment has
// nothing live to progress or broadcast.
package seed

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"matchpulse/internal/adapters/repository"
	"matchpulse/internal/domain/model"
	"matchpulse/internal/domain/sim"
	"matchpulse/pkg/logger"
)

const (
	matchDuration = 95 * time.Minute

	attendanceMin = 25000
	attendanceMax = 75000
)

type team struct {
	id     string
	name   string
	ground string
}

type league struct {
	id    string
	name  string
	teams []team
}

var leagues = []league{
	{
		id:   "premier-league",
		name: "Premier League",
		teams: []team{
			{"arsenal", "Arsenal", "Emirates Stadium"},
			{"chelsea", "Chelsea", "Stamford Bridge"},
			{"liverpool", "Liverpool", "Anfield"},
			{"man-city", "Manchester City", "Etihad Stadium"},
			{"man-united", "Manchester United", "Old Trafford"},
			{"tottenham", "Tottenham Hotspur", "Tottenham Hotspur Stadium"},
			{"newcastle", "Newcastle United", "St James' Park"},
			{"aston-villa", "Aston Villa", "Villa Park"},
			{"everton", "Everton", "Goodison Park"},
			{"west-ham", "West Ham United", "London Stadium"},
		},
	},
	{
		id:   "la-liga",
		name: "La Liga",
		teams: []team{
			{"real-madrid", "Real Madrid", "Santiago Bernabeu"},
			{"barcelona", "Barcelona", "Camp Nou"},
			{"atletico", "Atletico Madrid", "Metropolitano"},
			{"sevilla", "Sevilla", "Ramon Sanchez-Pizjuan"},
			{"valencia", "Valencia", "Mestalla"},
			{"athletic", "Athletic Bilbao", "San Mames"},
		},
	},
}

var referees = []string{
	"Michael Oliver",
	"Anthony Taylor",
	"Paul Tierney",
	"Stuart Attwell",
	"Craig Pawson",
	"Simon Hooper",
	"Jarred Gillett",
	"Robert Jones",
}

// Seeder writes the bootstrap schedule into a match store.
type Seeder struct {
	store repository.Store
	model *sim.Model
	rng   *rand.Rand
	now   func() time.Time
	log   logger.Logger
}

// Option configures a Seeder.
type Option func(*Seeder)

// WithNow overrides the clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(s *Seeder) {
		if now != nil {
			s.now = now
		}
	}
}

// WithModel injects the scoring model used for seeded scores.
func WithModel(m *sim.Model) Option {
	return func(s *Seeder) {
		if m != nil {
			s.model = m
		}
	}
}

// WithRand sets the random source used for pairings and attendance.
func WithRand(rng *rand.Rand) Option {
	return func(s *Seeder) {
		if rng != nil {
			s.rng = rng
		}
	}
}

// New creates a seeder over the given store.
func New(store repository.Store, opts ...Option) *Seeder {
	s := &Seeder{
		store: store,
		model: sim.NewModel(),
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
		now:   time.Now,
		log:   logger.Get().Named("seed"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Seed writes the full bootstrap schedule and returns how many matches
// were stored. A failed save is logged and skipped; one bad fixture
// does not abort the rest.
func (s *Seeder) Seed(ctx context.Context) (int, error) {
	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var kickoffs []time.Time

	// today's card
	for _, slot := range []time.Duration{15 * time.Hour, 17*time.Hour + 30*time.Minute, 20 * time.Hour} {
		kickoffs = append(kickoffs, today.Add(slot))
	}
	// upcoming days, two fixtures each
	for day := 1; day <= 3; day++ {
		d := today.AddDate(0, 0, day)
		kickoffs = append(kickoffs, d.Add(14*time.Hour), d.Add(19*time.Hour))
	}
	// recent history, one completed fixture per day
	for day := 1; day <= 2; day++ {
		kickoffs = append(kickoffs, today.AddDate(0, 0, -day).Add(18*time.Hour))
	}

	pairs := s.pairings(len(kickoffs))

	stored := 0
	for i, kickoff := range kickoffs {
		m := s.fixture(pairs[i], kickoff, now)
		if _, err := s.store.Save(ctx, m); err != nil {
			s.log.Warn(ctx, "seed fixture rejected",
				logger.String("match_id", m.ID),
				logger.Error(err))
			continue
		}
		stored++
	}

	s.log.Info(ctx, "match store seeded", logger.Int("matches", stored))
	return stored, nil
}

type pairing struct {
	league     league
	home, away team
}

// pairings draws n home/away pairs, cycling through leagues and
// shuffling each league's teams so repeated seeds vary.
func (s *Seeder) pairings(n int) []pairing {
	shuffled := make([]league, len(leagues))
	copy(shuffled, leagues)
	for i := range shuffled {
		teams := make([]team, len(shuffled[i].teams))
		copy(teams, shuffled[i].teams)
		s.rng.Shuffle(len(teams), func(a, b int) { teams[a], teams[b] = teams[b], teams[a] })
		shuffled[i].teams = teams
	}

	out := make([]pairing, 0, n)
	cursor := make([]int, len(shuffled))
	for i := 0; i < n; i++ {
		lg := shuffled[i%len(shuffled)]
		c := &cursor[i%len(shuffled)]
		if *c+1 >= len(lg.teams) {
			*c = 0
		}
		out = append(out, pairing{league: lg, home: lg.teams[*c], away: lg.teams[*c+1]})
		*c += 2
	}
	return out
}

// fixture builds one match, deriving its status and score from where
// the kickoff sits relative to now.
func (s *Seeder) fixture(p pairing, kickoff, now time.Time) model.Match {
	m := model.Match{
		ID:         uuid.NewString(),
		HomeTeamID: p.home.id,
		HomeTeam:   p.home.name,
		AwayTeamID: p.away.id,
		AwayTeam:   p.away.name,
		LeagueID:   p.league.id,
		League:     p.league.name,
		Kickoff:    kickoff,
		Status:     model.StatusScheduled,
		Venue:      p.home.ground,
		Referee:    referees[s.rng.Intn(len(referees))],
		Attendance: attendanceMin + s.rng.Intn(attendanceMax-attendanceMin+1),
	}

	switch {
	case kickoff.Add(matchDuration).Before(now):
		m.Status = model.StatusCompleted
		m.HomeScore, m.AwayScore = s.model.FinalScore()
	case !kickoff.After(now):
		m.Status = model.StatusLive
		m.HomeScore, m.AwayScore = s.model.KickoffScore()
	}
	return m
}
