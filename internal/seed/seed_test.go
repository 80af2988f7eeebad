package seed

import (
	"context"
	"math/rand"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"matchpulse/internal/adapters/repository"
	"matchpulse/internal/domain/model"
	"matchpulse/internal/domain/sim"
)

func newSeeder(store repository.Store, now time.Time) *Seeder {
	return New(store,
		WithNow(func() time.Time { return now }),
		WithRand(rand.New(rand.NewSource(1))),
		WithModel(sim.NewModel(sim.WithRand(rand.New(rand.NewSource(2))))),
	)
}

func TestSeedSchedule(t *testing.T) {
	Convey("Given a seeder running at 18:00", t, func() {
		ctx := context.Background()
		now := time.Date(2026, 8, 30, 18, 0, 0, 0, time.UTC)
		store := repository.NewMemoryStore()

		n, err := newSeeder(store, now).Seed(ctx)
		So(err, ShouldBeNil)
		So(n, ShouldEqual, 11)
		So(store.Count(ctx), ShouldEqual, 11)

		all, err := store.List(ctx)
		So(err, ShouldBeNil)

		Convey("Today's early fixture is completed with a plausible score", func() {
			m := findByKickoff(all, time.Date(2026, 8, 30, 15, 0, 0, 0, time.UTC))
			So(m, ShouldNotBeNil)
			So(m.Status, ShouldEqual, model.StatusCompleted)
			So(m.HomeScore, ShouldBeBetweenOrEqual, 0, 5)
			So(m.AwayScore, ShouldBeBetweenOrEqual, 0, 5)
		})

		Convey("The fixture in progress is LIVE with a kickoff-draw score", func() {
			m := findByKickoff(all, time.Date(2026, 8, 30, 17, 30, 0, 0, time.UTC))
			So(m, ShouldNotBeNil)
			So(m.Status, ShouldEqual, model.StatusLive)
			So(m.HomeScore, ShouldBeBetweenOrEqual, 0, 2)
			So(m.AwayScore, ShouldBeBetweenOrEqual, 0, 2)
		})

		Convey("Tonight's late fixture is still scheduled at 0-0", func() {
			m := findByKickoff(all, time.Date(2026, 8, 30, 20, 0, 0, 0, time.UTC))
			So(m, ShouldNotBeNil)
			So(m.Status, ShouldEqual, model.StatusScheduled)
			So(m.HomeScore, ShouldEqual, 0)
			So(m.AwayScore, ShouldEqual, 0)
		})

		Convey("The next three days carry two scheduled fixtures each", func() {
			upcoming, err := store.FindByStatus(ctx, model.StatusScheduled)
			So(err, ShouldBeNil)
			// tonight's 20:00 plus 2 per upcoming day
			So(len(upcoming), ShouldEqual, 7)
			for _, m := range upcoming {
				So(m.Kickoff.After(now), ShouldBeTrue)
			}
		})

		Convey("The past two days each have one completed fixture", func() {
			done, err := store.FindByStatus(ctx, model.StatusCompleted)
			So(err, ShouldBeNil)
			// two from history plus today's 15:00
			So(len(done), ShouldEqual, 3)
		})

		Convey("Every fixture carries full metadata", func() {
			for _, m := range all {
				So(m.ID, ShouldNotBeEmpty)
				So(m.HomeTeam, ShouldNotBeEmpty)
				So(m.AwayTeam, ShouldNotBeEmpty)
				So(m.HomeTeamID, ShouldNotEqual, m.AwayTeamID)
				So(m.League, ShouldNotBeEmpty)
				So(m.Venue, ShouldNotBeEmpty)
				So(m.Referee, ShouldNotBeEmpty)
				So(m.Attendance, ShouldBeBetweenOrEqual, attendanceMin, attendanceMax)
			}
		})
	})
}

func TestSeedEarlyMorning(t *testing.T) {
	Convey("Seeding before today's card leaves every fixture today scheduled", t, func() {
		ctx := context.Background()
		now := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
		store := repository.NewMemoryStore()

		_, err := newSeeder(store, now).Seed(ctx)
		So(err, ShouldBeNil)

		live, err := store.FindByStatus(ctx, model.StatusLive)
		So(err, ShouldBeNil)
		So(len(live), ShouldEqual, 0)

		upcoming, err := store.FindByStatus(ctx, model.StatusScheduled)
		So(err, ShouldBeNil)
		So(len(upcoming), ShouldEqual, 9)
	})
}

func findByKickoff(matches []model.Match, kickoff time.Time) *model.Match {
	for i := range matches {
		if matches[i].Kickoff.Equal(kickoff) {
			return &matches[i]
		}
	}
	return nil
}
