// Package powers is the owning context of the power system. Service wires the
// catalog, selection store, effect applicator, reaction rules and maintenance
// loop together and exposes the operations hosts and transports call.
//
// Every Service method that touches a live actor must run on the tick thread;
// transports submit work through tick.Loop.Do.
package powers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/crystalpowers/internal/game/actor"
	"github.com/cory-johannsen/crystalpowers/internal/game/effect"
	"github.com/cory-johannsen/crystalpowers/internal/game/maintenance"
	"github.com/cory-johannsen/crystalpowers/internal/game/power"
	"github.com/cory-johannsen/crystalpowers/internal/game/reaction"
	"github.com/cory-johannsen/crystalpowers/internal/game/selection"
	"github.com/cory-johannsen/crystalpowers/internal/game/session"
	"github.com/cory-johannsen/crystalpowers/internal/game/tick"
)

// Delays, in ticks, of the follow-up work scheduled by Join and Select.
const (
	JoinApplyDelay        = 10
	JoinFlightCheckDelay  = 40
	JoinInstructionsDelay = 40
	SelectFlightDelay     = 20
)

// Notices pushed to an actor's outbox.
const (
	NoticeChoose   = "Choose your power: list the catalog, then select one, or pick at random."
	NoticeSelected = "You are now %s."
	NoticeCleared  = "Your power has been removed."
)

// Options tunes a Service.
type Options struct {
	// FlightCheckTicks is the maintenance period; 0 uses maintenance.DefaultPeriod.
	FlightCheckTicks int
	// SelectionCooldown is reported through Status; no operation enforces it.
	SelectionCooldown time.Duration
	// Now overrides the clock used for Status.
	Now func() time.Time
}

// ReloadHook runs after the catalog reloaded successfully.
type ReloadHook func(ctx context.Context) error

// Service implements the power operations.
type Service struct {
	catalog    *power.Catalog
	store      *selection.Store
	sessions   *session.Manager
	sched      tick.Scheduler
	applicator *effect.Applicator
	reactions  *reaction.Engine
	maint      *maintenance.Loop
	logger     *zap.Logger
	opts       Options

	mu          sync.Mutex
	cipher      selection.Cipher
	reloadHooks []ReloadHook
}

// Status describes an actor's selection.
type Status struct {
	Record selection.Record
	// Power is nil when nothing is selected or the selected id left the catalog.
	Power *power.Definition
	// CanChange evaluates the cooldown rule; informational only.
	CanChange bool
}

// NewService creates a Service. hook may be nil.
//
// Precondition: catalog, store, sessions, sched and logger must be non-nil.
// Postcondition: Nothing is scheduled until Start.
func NewService(
	catalog *power.Catalog,
	store *selection.Store,
	cipher selection.Cipher,
	sessions *session.Manager,
	sched tick.Scheduler,
	hook reaction.DamageHook,
	logger *zap.Logger,
	opts Options,
) *Service {
	if opts.FlightCheckTicks <= 0 {
		opts.FlightCheckTicks = maintenance.DefaultPeriod
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Service{
		catalog:    catalog,
		store:      store,
		cipher:     cipher,
		sessions:   sessions,
		sched:      sched,
		applicator: effect.NewApplicator(logger),
		logger:     logger,
		opts:       opts,
	}
	s.reactions = reaction.NewEngine(s, sched, hook, logger)
	s.maint = maintenance.New(sessions, s, s.applicator, sched, logger)
	return s
}

// Start schedules the periodic maintenance pass.
func (s *Service) Start() {
	s.maint.Start(s.opts.FlightCheckTicks)
}

// OnReload registers fn to run after every successful Reload.
func (s *Service) OnReload(fn ReloadHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reloadHooks = append(s.reloadHooks, fn)
}

// Resolve returns the definition currently selected by id.
func (s *Service) Resolve(id uuid.UUID) (*power.Definition, bool) {
	rec, ok := s.store.GetIfExists(id)
	if !ok || !rec.HasSelected {
		return nil, false
	}
	def, err := s.catalog.Get(rec.PowerID)
	if err != nil {
		return nil, false
	}
	return def, true
}

// Catalog returns the catalog in display order.
func (s *Service) Catalog() []*power.Definition {
	return s.catalog.All()
}

// CatalogVersion returns the loaded table version.
func (s *Service) CatalogVersion() int {
	return s.catalog.Version()
}

// Session returns the connected session for id.
func (s *Service) Session(id uuid.UUID) (*session.Session, bool) {
	return s.sessions.Get(id)
}

// Snapshot returns every selected record.
func (s *Service) Snapshot() []selection.Record {
	return s.store.Snapshot()
}

// Cipher returns the cipher currently protecting persisted records.
func (s *Service) Cipher() selection.Cipher {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cipher
}

// SetCipher swaps the cipher used for subsequent writes.
func (s *Service) SetCipher(c selection.Cipher) {
	s.mu.Lock()
	s.cipher = c
	s.mu.Unlock()
	s.store.SetCipher(c)
}

// LastPersistError returns the most recent persistence failure, if any.
func (s *Service) LastPersistError() error {
	return s.store.LastPersistError()
}

// Current returns the actor's selection status.
func (s *Service) Current(id uuid.UUID) Status {
	rec, ok := s.store.GetIfExists(id)
	if !ok {
		rec = selection.Record{ActorID: id}
	}
	st := Status{Record: rec, CanChange: rec.CanChange(s.opts.Now(), s.opts.SelectionCooldown)}
	if def, ok := s.Resolve(id); ok {
		st.Power = def
	}
	return st
}

// Select binds powerID to a connected actor and applies its effects.
//
// Postcondition: Returns the selected definition, or an error wrapping
// power.ErrNotFound, selection.ErrAlreadySelected or session.ErrNotConnected.
func (s *Service) Select(ctx context.Context, id uuid.UUID, powerID string) (*power.Definition, error) {
	sess, ok := s.sessions.Get(id)
	if !ok {
		return nil, fmt.Errorf("selecting for %s: %w", id, session.ErrNotConnected)
	}
	def, err := s.catalog.Get(powerID)
	if err != nil {
		return nil, err
	}
	return def, s.bind(ctx, sess, def)
}

// RandomSelect binds a uniformly random power to a connected actor.
//
// Postcondition: Returns the selected definition, or an error wrapping
// selection.ErrAlreadySelected, power.ErrEmptyCatalog or session.ErrNotConnected.
func (s *Service) RandomSelect(ctx context.Context, id uuid.UUID) (*power.Definition, error) {
	sess, ok := s.sessions.Get(id)
	if !ok {
		return nil, fmt.Errorf("selecting for %s: %w", id, session.ErrNotConnected)
	}
	if rec, ok := s.store.GetIfExists(id); ok && rec.HasSelected {
		return nil, fmt.Errorf("selecting for %s: %w", id, selection.ErrAlreadySelected)
	}
	def, err := s.catalog.PickRandom()
	if err != nil {
		return nil, err
	}
	return def, s.bind(ctx, sess, def)
}

func (s *Service) bind(ctx context.Context, sess *session.Session, def *power.Definition) error {
	a := sess.Actor
	if err := s.store.Select(ctx, a.ID(), def.ID); err != nil {
		return fmt.Errorf("selecting %q for %s: %w", def.ID, a.ID(), err)
	}
	s.applicator.Apply(a, def)
	_ = sess.Outbox.Push(fmt.Sprintf(NoticeSelected, def.Name))
	s.maint.ScheduleCheck(a.ID(), SelectFlightDelay)
	s.logger.Info("power selected",
		zap.String("actor", a.ID().String()),
		zap.String("power", def.ID),
	)
	return nil
}

// Clear removes the actor's power. Effects are removed first when the actor
// is connected; offline actors only lose the record.
//
// Postcondition: Returns nil or an error wrapping selection.ErrNothingToClear.
func (s *Service) Clear(ctx context.Context, id uuid.UUID) error {
	return s.unbind(ctx, id, s.store.Clear)
}

// Reset removes the actor's power and replaces the record with a fresh one.
//
// Postcondition: Returns nil or an error wrapping selection.ErrNothingToClear.
func (s *Service) Reset(ctx context.Context, id uuid.UUID) error {
	return s.unbind(ctx, id, s.store.Reset)
}

func (s *Service) unbind(ctx context.Context, id uuid.UUID, mutate func(context.Context, uuid.UUID) error) error {
	rec, ok := s.store.GetIfExists(id)
	if !ok || !rec.HasSelected {
		return fmt.Errorf("clearing %s: %w", id, selection.ErrNothingToClear)
	}
	sess, online := s.sessions.Get(id)
	if online {
		if def, err := s.catalog.Get(rec.PowerID); err == nil {
			s.applicator.Remove(sess.Actor, def)
		}
	}
	if err := mutate(ctx, id); err != nil {
		return fmt.Errorf("clearing %s: %w", id, err)
	}
	if online {
		_ = sess.Outbox.Push(NoticeCleared)
	}
	s.logger.Info("power cleared",
		zap.String("actor", id.String()),
		zap.String("power", rec.PowerID),
	)
	return nil
}

// Reload rebuilds the catalog, then runs the registered reload hooks. On a
// catalog error the previous catalog stays active.
func (s *Service) Reload(ctx context.Context) error {
	if err := s.catalog.Reload(); err != nil {
		return fmt.Errorf("reloading catalog: %w", err)
	}
	s.mu.Lock()
	hooks := append([]ReloadHook(nil), s.reloadHooks...)
	s.mu.Unlock()

	var errs []error
	for _, h := range hooks {
		if err := h(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	s.logger.Info("powers reloaded",
		zap.Int("powers", s.catalog.Len()),
		zap.Int("version", s.catalog.Version()),
	)
	return errors.Join(errs...)
}

// Join registers a connected actor. A selected power is re-applied
// JoinApplyDelay ticks later, followed by a flight check; actors without a
// selection receive the selection instructions.
//
// Postcondition: Returns whether the actor still has to select a power, or an
// error wrapping session.ErrAlreadyConnected.
func (s *Service) Join(_ context.Context, a actor.Actor) (bool, error) {
	sess, err := s.sessions.Add(a)
	if err != nil {
		return false, err
	}
	id := a.ID()
	if rec, ok := s.store.GetIfExists(id); !ok || !rec.HasSelected {
		s.sched.After(JoinInstructionsDelay, func() {
			if cur, ok := s.sessions.Get(id); ok && cur == sess {
				_ = sess.Outbox.Push(NoticeChoose)
			}
		})
		return true, nil
	}
	s.sched.After(JoinApplyDelay, func() {
		cur, ok := s.sessions.Get(id)
		if !ok || cur != sess {
			return
		}
		def, ok := s.Resolve(id)
		if !ok {
			return
		}
		s.applicator.Apply(a, def)
		s.maint.ScheduleCheck(id, JoinFlightCheckDelay)
	})
	return false, nil
}

// Quit unregisters the actor and flushes the store.
//
// Postcondition: Returns an error wrapping session.ErrNotConnected, or the
// persistence error, if any.
func (s *Service) Quit(ctx context.Context, id uuid.UUID) error {
	if _, err := s.sessions.Remove(id); err != nil {
		return err
	}
	return s.store.Persist(ctx)
}

// Shutdown disconnects every actor and performs the final flush.
func (s *Service) Shutdown(ctx context.Context) error {
	for _, sess := range s.sessions.All() {
		_, _ = s.sessions.Remove(sess.Actor.ID())
	}
	if err := s.store.Persist(ctx); err != nil {
		return fmt.Errorf("final persist: %w", err)
	}
	s.logger.Info("selections flushed")
	return nil
}

// HandleDamage applies the damage rules of the actor's power to ev.
func (s *Service) HandleDamage(a actor.Actor, ev *actor.DamageEvent) {
	if def, ok := s.Resolve(a.ID()); ok {
		s.reactions.Damage(a, def, ev)
	}
}

// HandleMove applies the movement rules of the actor's power.
func (s *Service) HandleMove(a actor.Actor) {
	if def, ok := s.Resolve(a.ID()); ok {
		s.reactions.Move(a, def)
	}
}

// HandleInteract applies the interaction rules of the actor's power to ev.
func (s *Service) HandleInteract(a actor.Actor, ev *actor.InteractEvent) {
	if def, ok := s.Resolve(a.ID()); ok {
		s.reactions.Interact(a, def, ev)
	}
}

// HandleInventoryClick applies the equipment rules of the actor's power to ev.
func (s *Service) HandleInventoryClick(a actor.Actor, ev *actor.InventoryClickEvent) {
	if def, ok := s.Resolve(a.ID()); ok {
		s.reactions.InventoryClick(a, def, ev)
	}
}

// HandleToggleFlight reacts to the actor starting or stopping flight.
func (s *Service) HandleToggleFlight(a actor.Actor, flying bool) {
	if def, ok := s.Resolve(a.ID()); ok {
		s.reactions.ToggleFlight(a, def, flying)
	}
}

// MaintenancePass runs one flight reconciliation pass immediately.
//
// Postcondition: Returns the number of actors corrected.
func (s *Service) MaintenancePass() int {
	return s.maint.Tick()
}
