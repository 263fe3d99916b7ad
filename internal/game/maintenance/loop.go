// Package maintenance periodically re-asserts power effects the host resets
// behind our back.
package maintenance

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/crystalpowers/internal/game/effect"
	"github.com/cory-johannsen/crystalpowers/internal/game/power"
	"github.com/cory-johannsen/crystalpowers/internal/game/session"
	"github.com/cory-johannsen/crystalpowers/internal/game/tick"
)

// DefaultPeriod is the flight reconciliation period in ticks.
const DefaultPeriod = 100

// Resolver returns the power currently selected by an actor. It is consulted
// on every correction, so corrections never act on a stale selection.
type Resolver interface {
	Resolve(id uuid.UUID) (*power.Definition, bool)
}

// Loop reconciles flight for connected actors.
type Loop struct {
	sessions   *session.Manager
	resolver   Resolver
	applicator *effect.Applicator
	sched      tick.Scheduler
	logger     *zap.Logger
}

// New creates a Loop. Nothing runs until Start or ScheduleCheck.
//
// Precondition: all arguments must be non-nil.
func New(sessions *session.Manager, resolver Resolver, applicator *effect.Applicator, sched tick.Scheduler, logger *zap.Logger) *Loop {
	return &Loop{
		sessions:   sessions,
		resolver:   resolver,
		applicator: applicator,
		sched:      sched,
		logger:     logger,
	}
}

// Start schedules the periodic pass every period ticks, the first one period
// ticks from now.
//
// Precondition: period must be >= 1.
func (l *Loop) Start(period int) {
	l.sched.Every(period, period, func() { l.Tick() })
}

// Tick runs one pass over every connected actor.
//
// Postcondition: Returns the number of actors whose flight was re-enabled.
func (l *Loop) Tick() int {
	fixed := 0
	for _, s := range l.sessions.All() {
		if l.correct(s) {
			fixed++
		}
	}
	if fixed > 0 {
		l.logger.Debug("maintenance pass", zap.Int("reasserted", fixed))
	}
	return fixed
}

// ScheduleCheck runs the flight correction for one actor after ticks ticks.
// The actor may have disconnected or changed power by then.
func (l *Loop) ScheduleCheck(id uuid.UUID, ticks int) {
	l.sched.After(ticks, func() { l.Check(id) })
}

// Check runs the flight correction for one connected actor now.
//
// Postcondition: Returns true when flight was re-enabled.
func (l *Loop) Check(id uuid.UUID) bool {
	s, ok := l.sessions.Get(id)
	if !ok {
		return false
	}
	return l.correct(s)
}

func (l *Loop) correct(s *session.Session) bool {
	def, ok := l.resolver.Resolve(s.Actor.ID())
	if !ok {
		return false
	}
	if !l.applicator.ReassertFlight(s.Actor, def) {
		return false
	}
	_ = s.Outbox.Push("flight restored")
	return true
}
