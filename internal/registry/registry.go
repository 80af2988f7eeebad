// Package registry tracks which matches are currently being progressed.
package registry

import (
	"context"
	"sort"
	"sync"
	"time"

	"matchpulse/pkg/logger"
	"matchpulse/pkg/metrics"
)

const defaultCommandBuffer = 256

// Entry is the progression state for one registered match.
type Entry struct {
	MatchID        string
	SimulatedStart time.Time
	HalfTimeSent   bool
	LiveTicks      int
}

type opKind int

const (
	opRegister opKind = iota
	opDeregister
)

type command struct {
	op    opKind
	id    string
	start time.Time
}

// Registry holds the set of matches under progression. All entry
// mutation happens on the scheduler goroutine, which calls Drain at
// the top of each tick; Register and Deregister from other goroutines
// only enqueue commands. Snapshot reads are safe from anywhere.
type Registry struct {
	mu       sync.RWMutex
	entries  map[string]*Entry
	commands chan command
	log      logger.Logger
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		entries:  make(map[string]*Entry),
		commands: make(chan command, defaultCommandBuffer),
		log:      logger.Get().Named("registry"),
	}
}

// Register queues a match for progression starting from the given
// simulated kickoff. Registering an already-present match is a no-op
// once drained. The call never blocks; if the command buffer is full
// the request is dropped with a warning and can be retried.
func (r *Registry) Register(matchID string, simulatedStart time.Time) {
	select {
	case r.commands <- command{op: opRegister, id: matchID, start: simulatedStart}:
	default:
		r.log.Warn(context.Background(), "command buffer full, dropping register",
			logger.String("match_id", matchID))
	}
}

// Deregister queues removal of a match from progression.
func (r *Registry) Deregister(matchID string) {
	select {
	case r.commands <- command{op: opDeregister, id: matchID}:
	default:
		r.log.Warn(context.Background(), "command buffer full, dropping deregister",
			logger.String("match_id", matchID))
	}
}

// Drain applies all queued commands. Called by the owning scheduler at
// the top of each tick.
func (r *Registry) Drain() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for {
		select {
		case cmd := <-r.commands:
			switch cmd.op {
			case opRegister:
				if _, ok := r.entries[cmd.id]; ok {
					continue
				}
				r.entries[cmd.id] = &Entry{
					MatchID:        cmd.id,
					SimulatedStart: cmd.start,
				}
			case opDeregister:
				delete(r.entries, cmd.id)
			}
		default:
			metrics.UpdateRegistryEntries(len(r.entries))
			return
		}
	}
}

// Remove drops an entry immediately. Owner-only; used when a match
// completes or vanishes mid-progression.
func (r *Registry) Remove(matchID string) {
	r.mu.Lock()
	delete(r.entries, matchID)
	n := len(r.entries)
	r.mu.Unlock()
	metrics.UpdateRegistryEntries(n)
}

// Contains reports whether a match is currently registered.
func (r *Registry) Contains(matchID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[matchID]
	return ok
}

// MarkHalfTime records that the half-time event has been emitted.
// Owner-only.
func (r *Registry) MarkHalfTime(matchID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[matchID]; ok {
		e.HalfTimeSent = true
	}
}

// RecordLiveTick increments the entry's live tick count. Owner-only.
func (r *Registry) RecordLiveTick(matchID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[matchID]; ok {
		e.LiveTicks++
	}
}

// Snapshot returns a copy of every entry, ordered by match id so tick
// processing is deterministic.
func (r *Registry) Snapshot() []Entry {
	r.mu.RLock()
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, *e)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].MatchID < out[j].MatchID })
	return out
}

// Len returns the number of registered matches.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
