package scheduler

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"matchpulse/internal/adapters/feed"
	"matchpulse/internal/adapters/repository"
	"matchpulse/internal/domain/model"
	"matchpulse/internal/domain/sim"
	"matchpulse/internal/registry"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []model.Event
}

func (p *capturePublisher) Publish(ctx context.Context, e model.Event) {
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
}

func (p *capturePublisher) byKind(kind model.Kind) []model.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []model.Event
	for _, e := range p.events {
		if e.Kind() == kind {
			out = append(out, e)
		}
	}
	return out
}

func (p *capturePublisher) reset() {
	p.mu.Lock()
	p.events = nil
	p.mu.Unlock()
}

func seededModel(seed int64, goalProb float64) *sim.Model {
	return sim.NewModel(
		sim.WithRand(rand.New(rand.NewSource(seed))),
		sim.WithGoalProbability(goalProb),
	)
}

func testScheduler(store repository.Store, reg *registry.Registry, pub Publisher, now time.Time, m *sim.Model, opts ...Option) *Scheduler {
	base := []Option{
		WithNow(func() time.Time { return now }),
		WithModel(m),
		WithLookahead(15 * time.Minute),
	}
	return New(store, reg, pub, append(base, opts...)...)
}

func scheduled(id string, kickoff time.Time) model.Match {
	return model.Match{
		ID:         id,
		HomeTeamID: "h-" + id,
		HomeTeam:   "Home " + id,
		AwayTeamID: "a-" + id,
		AwayTeam:   "Away " + id,
		LeagueID:   "league-1",
		League:     "Premier League",
		Kickoff:    kickoff,
		Status:     model.StatusScheduled,
	}
}

func TestTickProgressesLiveMatch(t *testing.T) {
	Convey("Given a match that kicked off 10 minutes ago and a disabled goal model", t, func() {
		ctx := context.Background()
		now := time.Date(2026, 8, 30, 15, 10, 0, 0, time.UTC)
		store := repository.NewMemoryStore()
		reg := registry.New()
		pub := &capturePublisher{}

		m := scheduled("m1", now.Add(-10*time.Minute))
		_, err := store.Save(ctx, m)
		So(err, ShouldBeNil)

		sched := testScheduler(store, reg, pub, now, seededModel(1, 0))
		sched.Tick(ctx)

		Convey("After one tick the match is LIVE with the registration score", func() {
			got, err := store.FindByID(ctx, "m1")
			So(err, ShouldBeNil)
			So(got.Status, ShouldEqual, model.StatusLive)
			So(got.HomeScore, ShouldBeBetweenOrEqual, 0, 2)
			So(got.AwayScore, ShouldBeBetweenOrEqual, 0, 2)

			starts := pub.byKind(model.KindLiveStarted)
			So(len(starts), ShouldEqual, 1)
			snap := starts[0].(model.LiveStarted)
			So(snap.ElapsedMinute, ShouldEqual, 10)
			So(snap.MatchID, ShouldEqual, "m1")
			So(snap.Status, ShouldEqual, model.StatusLive)

			Convey("Further ticks leave the score untouched and emit nothing new", func() {
				pub.reset()
				sched.Tick(ctx)
				sched.Tick(ctx)

				after, err := store.FindByID(ctx, "m1")
				So(err, ShouldBeNil)
				So(after.HomeScore, ShouldEqual, got.HomeScore)
				So(after.AwayScore, ShouldEqual, got.AwayScore)
				pub.mu.Lock()
				n := len(pub.events)
				pub.mu.Unlock()
				So(n, ShouldEqual, 0)
			})
		})
	})
}

func TestTickCompletesOverdueMatch(t *testing.T) {
	Convey("Given a match registered 96 minutes after kickoff", t, func() {
		ctx := context.Background()
		now := time.Date(2026, 8, 30, 16, 36, 0, 0, time.UTC)
		store := repository.NewMemoryStore()
		reg := registry.New()
		pub := &capturePublisher{}

		m := scheduled("m1", now.Add(-96*time.Minute))
		_, err := store.Save(ctx, m)
		So(err, ShouldBeNil)

		sched := testScheduler(store, reg, pub, now, seededModel(2, 0))

		Convey("The first pass registers and completes it", func() {
			sched.Tick(ctx)
			sched.Tick(ctx)

			got, err := store.FindByID(ctx, "m1")
			So(err, ShouldBeNil)
			So(got.Status, ShouldEqual, model.StatusCompleted)
			So(got.HomeScore, ShouldBeBetweenOrEqual, 0, 6)
			So(got.AwayScore, ShouldBeBetweenOrEqual, 0, 5)
			So(reg.Contains("m1"), ShouldBeFalse)

			completions := pub.byKind(model.KindCompleted)
			So(len(completions), ShouldEqual, 1)
			So(completions[0].(model.Completed).Status, ShouldEqual, model.StatusCompleted)

			Convey("Later ticks mutate nothing further", func() {
				sched.Tick(ctx)
				after, err := store.FindByID(ctx, "m1")
				So(err, ShouldBeNil)
				So(after.HomeScore, ShouldEqual, got.HomeScore)
				So(after.AwayScore, ShouldEqual, got.AwayScore)
				So(len(pub.byKind(model.KindCompleted)), ShouldEqual, 1)
			})
		})
	})
}

func TestCompletionNeverLowersScore(t *testing.T) {
	Convey("A live match with an accumulated score keeps it at completion", t, func() {
		ctx := context.Background()
		now := time.Date(2026, 8, 30, 16, 36, 0, 0, time.UTC)
		store := repository.NewMemoryStore()
		reg := registry.New()
		pub := &capturePublisher{}

		m := scheduled("m1", now.Add(-96*time.Minute))
		m.Status = model.StatusLive
		m.HomeScore, m.AwayScore = 7, 6 // above the final draw's range
		_, err := store.Save(ctx, m)
		So(err, ShouldBeNil)

		sched := testScheduler(store, reg, pub, now, seededModel(3, 1))
		reg.Register("m1", m.Kickoff)
		reg.Drain()
		reg.RecordLiveTick("m1")

		// snapshot carries LiveTicks=1, so no final draw applies
		sched.Tick(ctx)

		got, err := store.FindByID(ctx, "m1")
		So(err, ShouldBeNil)
		So(got.Status, ShouldEqual, model.StatusCompleted)
		So(got.HomeScore, ShouldEqual, 7)
		So(got.AwayScore, ShouldEqual, 6)
	})
}

func TestHalfTimeEmittedOnce(t *testing.T) {
	Convey("Given a match inside the half-time window", t, func() {
		ctx := context.Background()
		base := time.Date(2026, 8, 30, 15, 0, 0, 0, time.UTC)
		store := repository.NewMemoryStore()
		reg := registry.New()
		pub := &capturePublisher{}

		m := scheduled("m1", base.Add(-46*time.Minute))
		_, err := store.Save(ctx, m)
		So(err, ShouldBeNil)

		now := base
		sched := New(store, reg, pub,
			WithNow(func() time.Time { return now }),
			WithModel(seededModel(4, 0)),
		)

		Convey("Repeated ticks inside the window emit HALF_TIME exactly once", func() {
			sched.Tick(ctx) // elapsed 46
			now = now.Add(time.Minute)
			sched.Tick(ctx) // 47
			now = now.Add(time.Minute)
			sched.Tick(ctx) // 48

			So(len(pub.byKind(model.KindHalfTime)), ShouldEqual, 1)
			ht := pub.byKind(model.KindHalfTime)[0].(model.HalfTime)
			So(ht.ElapsedMinute, ShouldEqual, 46)
			So(ht.Status, ShouldEqual, model.StatusLive)
		})

		Convey("The goal model still runs inside the window", func() {
			certain := New(store, reg, pub,
				WithNow(func() time.Time { return now }),
				WithModel(seededModel(5, 1)),
			)
			certain.Tick(ctx)

			got, err := store.FindByID(ctx, "m1")
			So(err, ShouldBeNil)
			So(got.HomeScore+got.AwayScore, ShouldBeGreaterThan, 0)
			So(len(pub.byKind(model.KindGoal)), ShouldBeGreaterThan, 0)
		})
	})
}

func TestGoalModelMovesScore(t *testing.T) {
	Convey("Given a certain goal model", t, func() {
		ctx := context.Background()
		base := time.Date(2026, 8, 30, 15, 10, 0, 0, time.UTC)
		store := repository.NewMemoryStore()
		reg := registry.New()
		pub := &capturePublisher{}

		m := scheduled("m1", base.Add(-10*time.Minute))
		_, err := store.Save(ctx, m)
		So(err, ShouldBeNil)

		now := base
		sched := New(store, reg, pub,
			WithNow(func() time.Time { return now }),
			WithModel(seededModel(6, 1)),
		)

		Convey("Each tick adds one goal per side and emits GOAL events", func() {
			sched.Tick(ctx)
			first, err := store.FindByID(ctx, "m1")
			So(err, ShouldBeNil)

			now = now.Add(time.Minute)
			sched.Tick(ctx)
			second, err := store.FindByID(ctx, "m1")
			So(err, ShouldBeNil)

			So(second.HomeScore, ShouldEqual, first.HomeScore+1)
			So(second.AwayScore, ShouldEqual, first.AwayScore+1)
			So(len(pub.byKind(model.KindGoal)), ShouldBeGreaterThanOrEqualTo, 4)

			for _, e := range pub.byKind(model.KindGoal) {
				g := e.(model.Goal)
				So(g.HomeScore, ShouldBeGreaterThanOrEqualTo, 0)
				So(g.Status, ShouldEqual, model.StatusLive)
			}
		})
	})
}

func TestAdministrativeOverrideDetection(t *testing.T) {
	Convey("Given a live registered match", t, func() {
		ctx := context.Background()
		now := time.Date(2026, 8, 30, 15, 10, 0, 0, time.UTC)
		store := repository.NewMemoryStore()
		reg := registry.New()
		pub := &capturePublisher{}

		m := scheduled("m1", now.Add(-10*time.Minute))
		_, err := store.Save(ctx, m)
		So(err, ShouldBeNil)

		sched := testScheduler(store, reg, pub, now, seededModel(7, 0))
		sched.Tick(ctx)
		So(reg.Contains("m1"), ShouldBeTrue)

		Convey("A forced CANCELLED status deregisters without a completion event", func() {
			got, err := store.FindByID(ctx, "m1")
			So(err, ShouldBeNil)
			got.Status = model.StatusCancelled
			_, err = store.Save(ctx, got)
			So(err, ShouldBeNil)
			pub.reset()

			sched.Tick(ctx)

			So(reg.Contains("m1"), ShouldBeFalse)
			So(len(pub.byKind(model.KindCompleted)), ShouldEqual, 0)
			So(len(pub.byKind(model.KindStatusChanged)), ShouldEqual, 0)

			after, err := store.FindByID(ctx, "m1")
			So(err, ShouldBeNil)
			So(after.Status, ShouldEqual, model.StatusCancelled)
		})

		Convey("A forced POSTPONED status deregisters the same way", func() {
			got, err := store.FindByID(ctx, "m1")
			So(err, ShouldBeNil)
			got.Status = model.StatusPostponed
			_, err = store.Save(ctx, got)
			So(err, ShouldBeNil)
			pub.reset()

			sched.Tick(ctx)

			So(reg.Contains("m1"), ShouldBeFalse)
			So(len(pub.byKind(model.KindCompleted)), ShouldEqual, 0)
		})

		Convey("A vanished match is dropped silently", func() {
			// no delete on the store; simulate by using a fresh store
			fresh := repository.NewMemoryStore()
			orphan := New(fresh, reg, pub,
				WithNow(func() time.Time { return now }),
				WithModel(seededModel(8, 0)),
			)
			orphan.Tick(ctx)
			So(reg.Contains("m1"), ShouldBeFalse)
		})
	})
}

func TestRegistrationWindow(t *testing.T) {
	Convey("Given matches around the lookahead boundary", t, func() {
		ctx := context.Background()
		now := time.Date(2026, 8, 30, 15, 0, 0, 0, time.UTC)
		store := repository.NewMemoryStore()
		reg := registry.New()
		pub := &capturePublisher{}

		inWindow := scheduled("soon", now.Add(10*time.Minute))
		outWindow := scheduled("later", now.Add(3*time.Hour))
		for _, m := range []model.Match{inWindow, outWindow} {
			_, err := store.Save(ctx, m)
			So(err, ShouldBeNil)
		}

		sched := testScheduler(store, reg, pub, now, seededModel(9, 0))
		sched.Tick(ctx)

		Convey("Only the in-window match registers, with a persisted kickoff draw", func() {
			So(reg.Contains("soon"), ShouldBeTrue)
			So(reg.Contains("later"), ShouldBeFalse)

			got, err := store.FindByID(ctx, "soon")
			So(err, ShouldBeNil)
			So(got.Status, ShouldEqual, model.StatusScheduled)
			So(got.HomeScore, ShouldBeBetweenOrEqual, 0, 2)

			Convey("The draw happens once, not per tick", func() {
				first := got
				sched.Tick(ctx)
				again, err := store.FindByID(ctx, "soon")
				So(err, ShouldBeNil)
				So(again.HomeScore, ShouldEqual, first.HomeScore)
				So(again.AwayScore, ShouldEqual, first.AwayScore)
			})

			Convey("Before kickoff the match stays SCHEDULED and silent", func() {
				So(len(pub.byKind(model.KindLiveStarted)), ShouldEqual, 0)
			})
		})
	})
}

func TestSeededLiveMatchesAreAdopted(t *testing.T) {
	Convey("A LIVE match already in the store registers without a new draw", t, func() {
		ctx := context.Background()
		now := time.Date(2026, 8, 30, 15, 30, 0, 0, time.UTC)
		store := repository.NewMemoryStore()
		reg := registry.New()
		pub := &capturePublisher{}

		m := scheduled("m1", now.Add(-30*time.Minute))
		m.Status = model.StatusLive
		m.HomeScore, m.AwayScore = 1, 0
		_, err := store.Save(ctx, m)
		So(err, ShouldBeNil)

		sched := testScheduler(store, reg, pub, now, seededModel(10, 0))
		sched.Tick(ctx)
		sched.Tick(ctx)

		So(reg.Contains("m1"), ShouldBeTrue)
		got, err := store.FindByID(ctx, "m1")
		So(err, ShouldBeNil)
		So(got.HomeScore, ShouldEqual, 1)
		So(got.AwayScore, ShouldEqual, 0)
		// already LIVE, so no synthetic start announcement
		So(len(pub.byKind(model.KindLiveStarted)), ShouldEqual, 0)
	})
}

// failingStore wraps a Store and fails Save for one match id.
type failingStore struct {
	repository.Store
	failID string
}

func (f *failingStore) Save(ctx context.Context, m model.Match) (model.Match, error) {
	if m.ID == f.failID {
		return model.Match{}, errors.New("disk full")
	}
	return f.Store.Save(ctx, m)
}

func TestPersistenceFailureIsolation(t *testing.T) {
	Convey("Given one match whose persistence always fails", t, func() {
		ctx := context.Background()
		now := time.Date(2026, 8, 30, 15, 10, 0, 0, time.UTC)
		mem := repository.NewMemoryStore()
		reg := registry.New()
		pub := &capturePublisher{}

		bad := scheduled("bad", now.Add(-10*time.Minute))
		good := scheduled("good", now.Add(-10*time.Minute))
		for _, m := range []model.Match{bad, good} {
			_, err := mem.Save(ctx, m)
			So(err, ShouldBeNil)
		}

		store := &failingStore{Store: mem, failID: "bad"}
		sched := testScheduler(store, reg, pub, now, seededModel(11, 0))
		sched.Tick(ctx)

		Convey("The healthy match progresses while the broken one is retried", func() {
			// "bad" failed its kickoff draw persist, so only "good" registered
			So(reg.Contains("good"), ShouldBeTrue)
			So(reg.Contains("bad"), ShouldBeFalse)

			got, err := mem.FindByID(ctx, "good")
			So(err, ShouldBeNil)
			So(got.Status, ShouldEqual, model.StatusLive)

			stillScheduled, err := mem.FindByID(ctx, "bad")
			So(err, ShouldBeNil)
			So(stillScheduled.Status, ShouldEqual, model.StatusScheduled)

			Convey("Once the store recovers it catches up", func() {
				store.failID = ""
				sched.Tick(ctx)
				So(reg.Contains("bad"), ShouldBeTrue)
				sched.Tick(ctx)
				recovered, err := mem.FindByID(ctx, "bad")
				So(err, ShouldBeNil)
				So(recovered.Status, ShouldEqual, model.StatusLive)
			})
		})
	})
}

// flakyStore wraps a Store and fails the next FindByID calls for one
// match id until disarmed.
type flakyStore struct {
	repository.Store
	failID    string
	remaining int
}

func (f *flakyStore) FindByID(ctx context.Context, id string) (model.Match, error) {
	if id == f.failID && f.remaining > 0 {
		f.remaining--
		return model.Match{}, errors.New("connection reset by peer")
	}
	return f.Store.FindByID(ctx, id)
}

func TestTransientLoadErrorKeepsEntry(t *testing.T) {
	Convey("Given a live match in the half-time band", t, func() {
		ctx := context.Background()
		now := time.Date(2026, 8, 30, 15, 46, 0, 0, time.UTC)
		mem := repository.NewMemoryStore()
		reg := registry.New()
		pub := &capturePublisher{}

		m := scheduled("m1", now.Add(-46*time.Minute))
		m.Status = model.StatusLive
		_, err := mem.Save(ctx, m)
		So(err, ShouldBeNil)

		store := &flakyStore{Store: mem, failID: "m1"}
		sched := testScheduler(store, reg, pub, now, seededModel(14, 0))

		sched.Tick(ctx)
		So(len(pub.byKind(model.KindHalfTime)), ShouldEqual, 1)

		Convey("When a load fails transiently on the next tick", func() {
			store.remaining = 1
			sched.Tick(ctx)

			Convey("The entry survives and keeps its progression state", func() {
				So(reg.Contains("m1"), ShouldBeTrue)
			})

			Convey("Half-time is not announced again after recovery", func() {
				sched.Tick(ctx)
				sched.Tick(ctx)
				So(len(pub.byKind(model.KindHalfTime)), ShouldEqual, 1)
			})
		})
	})
}

type stubFeed struct {
	snaps map[string]feed.Snapshot
	err   error
}

func (s *stubFeed) Fetch(ctx context.Context, matchID string) (feed.Snapshot, error) {
	if s.err != nil {
		return feed.Snapshot{}, s.err
	}
	snap, ok := s.snaps[matchID]
	if !ok {
		return feed.Snapshot{}, errors.New("unknown match")
	}
	return snap, nil
}

func TestFeedSupersedesGoalModel(t *testing.T) {
	Convey("Given an authoritative feed reporting 3-1", t, func() {
		ctx := context.Background()
		now := time.Date(2026, 8, 30, 15, 10, 0, 0, time.UTC)
		store := repository.NewMemoryStore()
		reg := registry.New()
		pub := &capturePublisher{}

		m := scheduled("m1", now.Add(-10*time.Minute))
		m.Status = model.StatusLive
		m.HomeScore, m.AwayScore = 1, 1
		_, err := store.Save(ctx, m)
		So(err, ShouldBeNil)

		provider := &stubFeed{snaps: map[string]feed.Snapshot{
			"m1": {MatchID: "m1", HomeScore: 3, AwayScore: 1, Status: model.StatusLive},
		}}
		sched := testScheduler(store, reg, pub, now, seededModel(12, 1), WithFeed(provider))
		sched.Tick(ctx)

		Convey("The feed score wins over the certain goal model", func() {
			got, err := store.FindByID(ctx, "m1")
			So(err, ShouldBeNil)
			So(got.HomeScore, ShouldEqual, 3)
			So(got.AwayScore, ShouldEqual, 1)
			So(len(pub.byKind(model.KindGoal)), ShouldEqual, 2)
		})

		Convey("A feed error falls back to the goal model", func() {
			provider.err = errors.New("upstream down")
			before, err := store.FindByID(ctx, "m1")
			So(err, ShouldBeNil)

			sched.Tick(ctx)
			after, err := store.FindByID(ctx, "m1")
			So(err, ShouldBeNil)
			So(after.HomeScore, ShouldEqual, before.HomeScore+1)
			So(after.AwayScore, ShouldEqual, before.AwayScore+1)
		})

		Convey("A throttled feed also falls back, quietly", func() {
			provider.err = feed.ErrThrottled
			before, err := store.FindByID(ctx, "m1")
			So(err, ShouldBeNil)

			sched.Tick(ctx)
			after, err := store.FindByID(ctx, "m1")
			So(err, ShouldBeNil)
			So(after.HomeScore, ShouldEqual, before.HomeScore+1)
		})

		Convey("The feed never lowers a score", func() {
			provider.snaps["m1"] = feed.Snapshot{MatchID: "m1", HomeScore: 0, AwayScore: 0}
			before, err := store.FindByID(ctx, "m1")
			So(err, ShouldBeNil)

			sched.Tick(ctx)
			after, err := store.FindByID(ctx, "m1")
			So(err, ShouldBeNil)
			So(after.HomeScore, ShouldEqual, before.HomeScore)
			So(after.AwayScore, ShouldEqual, before.AwayScore)
		})
	})
}

func TestStartStop(t *testing.T) {
	Convey("Start ticks immediately and Stop lets the loop finish", t, func() {
		ctx := context.Background()
		now := time.Date(2026, 8, 30, 15, 10, 0, 0, time.UTC)
		store := repository.NewMemoryStore()
		reg := registry.New()
		pub := &capturePublisher{}

		m := scheduled("m1", now.Add(-10*time.Minute))
		_, err := store.Save(ctx, m)
		So(err, ShouldBeNil)

		sched := testScheduler(store, reg, pub, now, seededModel(13, 0),
			WithTickInterval(time.Hour))
		sched.Start(ctx)

		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			if got, err := store.FindByID(ctx, "m1"); err == nil && got.Status == model.StatusLive {
				break
			}
			time.Sleep(5 * time.Millisecond)
		}

		stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		sched.Stop(stopCtx)

		got, err := store.FindByID(ctx, "m1")
		So(err, ShouldBeNil)
		So(got.Status, ShouldEqual, model.StatusLive)
	})
}
