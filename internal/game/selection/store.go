package selection

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrAlreadySelected is returned by Select when the actor already chose a power.
	ErrAlreadySelected = errors.New("power already selected")
	// ErrNothingToClear is returned by Clear and Reset for actors without a selection.
	ErrNothingToClear = errors.New("no power selected")
	// ErrPersistenceWrite wraps durable storage write failures.
	ErrPersistenceWrite = errors.New("persisting selections")
	// ErrPersistenceRead wraps durable storage read failures.
	ErrPersistenceRead = errors.New("loading selections")
)

// Repository is durable storage for selected records.
type Repository interface {
	// LoadAll returns every stored entry.
	LoadAll(ctx context.Context) ([]Entry, error)
	// ReplaceAll makes entries the complete stored set.
	ReplaceAll(ctx context.Context, entries []Entry) error
}

// Cipher protects the persisted power field.
type Cipher interface {
	Initialized() bool
	Encrypt(plaintext string) (string, error)
	Decrypt(blob string) (string, error)
}

// Store is the in-memory selection map backed by a Repository.
// All methods are safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	records map[uuid.UUID]Record
	repo    Repository
	cipher  Cipher
	logger  *zap.Logger
	now     func() time.Time
	lastErr error
}

// Option customises a Store.
type Option func(*Store)

// WithClock overrides the time source used for LastChange.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates an empty Store.
//
// Precondition: repo and logger must not be nil. cipher may be nil for plaintext storage.
func NewStore(repo Repository, cipher Cipher, logger *zap.Logger, opts ...Option) *Store {
	s := &Store{
		records: make(map[uuid.UUID]Record),
		repo:    repo,
		cipher:  cipher,
		logger:  logger,
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SetCipher replaces the cipher used by subsequent Persist calls.
func (s *Store) SetCipher(c Cipher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cipher = c
}

// GetOrCreate returns the actor's record, inserting an unselected one if absent.
func (s *Store) GetOrCreate(id uuid.UUID) Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		r = Record{ActorID: id}
		s.records[id] = r
	}
	return r
}

// GetIfExists returns the actor's record without inserting one.
func (s *Store) GetIfExists(id uuid.UUID) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	return r, ok
}

// Select records powerID as the actor's choice and persists.
//
// Precondition: powerID must name a catalog power; the store does not check.
// Postcondition: Returns ErrAlreadySelected with the record unchanged if the
// actor already selected; otherwise the record is selected. A persistence
// failure is logged and remembered but not returned.
func (s *Store) Select(ctx context.Context, id uuid.UUID, powerID string) error {
	s.mu.Lock()
	r, ok := s.records[id]
	if ok && r.HasSelected {
		s.mu.Unlock()
		return fmt.Errorf("%w: actor %s has %q", ErrAlreadySelected, id, r.PowerID)
	}
	s.records[id] = Record{ActorID: id, PowerID: powerID, HasSelected: true, LastChange: s.now()}
	s.mu.Unlock()

	_ = s.Persist(ctx)
	return nil
}

// Clear unselects the actor's power and persists. Callers remove the power's
// effects first.
//
// Postcondition: Returns ErrNothingToClear without mutation if nothing is selected.
func (s *Store) Clear(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	r, ok := s.records[id]
	if !ok || !r.HasSelected {
		s.mu.Unlock()
		return ErrNothingToClear
	}
	r.PowerID = ""
	r.HasSelected = false
	s.records[id] = r
	s.mu.Unlock()

	_ = s.Persist(ctx)
	return nil
}

// Reset clears the actor's selection and replaces the record with a fresh
// default, discarding LastChange.
//
// Postcondition: Returns ErrNothingToClear without mutation if nothing is selected.
func (s *Store) Reset(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	r, ok := s.records[id]
	if !ok || !r.HasSelected {
		s.mu.Unlock()
		return ErrNothingToClear
	}
	s.records[id] = Record{ActorID: id}
	s.mu.Unlock()

	_ = s.Persist(ctx)
	return nil
}

// Snapshot returns every selected record ordered by actor id.
func (s *Store) Snapshot() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedLocked()
}

func (s *Store) selectedLocked() []Record {
	out := make([]Record, 0, len(s.records))
	for _, r := range s.records {
		if r.HasSelected {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ActorID.String() < out[j].ActorID.String() })
	return out
}

// Persist writes exactly the selected records to the repository, encrypting
// the power field when the cipher is initialised.
//
// Postcondition: On failure the error wraps ErrPersistenceWrite, is logged and
// is returned by LastPersistError until the next successful Persist.
func (s *Store) Persist(ctx context.Context) error {
	s.mu.Lock()
	records := s.selectedLocked()
	cipher := s.cipher
	s.mu.Unlock()

	entries := make([]Entry, 0, len(records))
	for _, r := range records {
		value := r.PowerID
		if cipher != nil && cipher.Initialized() {
			enc, err := cipher.Encrypt(value)
			if err != nil {
				return s.writeFailed(fmt.Errorf("%w: encrypting %s: %w", ErrPersistenceWrite, r.ActorID, err))
			}
			value = enc
		}
		entries = append(entries, Entry{ActorID: r.ActorID.String(), Power: value})
	}
	if err := s.repo.ReplaceAll(ctx, entries); err != nil {
		return s.writeFailed(fmt.Errorf("%w: %w", ErrPersistenceWrite, err))
	}

	s.mu.Lock()
	s.lastErr = nil
	s.mu.Unlock()
	return nil
}

func (s *Store) writeFailed(err error) error {
	s.logger.Error("selection persist failed", zap.Error(err))
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
	return err
}

// LastPersistError returns the error of the most recent failed Persist, or nil
// once a later Persist succeeds.
func (s *Store) LastPersistError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Load reads every stored entry into memory, decrypting when the cipher is
// initialised. Entries with an invalid actor id or an undecryptable power are
// skipped with a warning.
//
// Postcondition: Returns the number of loaded records, or an error wrapping
// ErrPersistenceRead when the repository cannot be read.
func (s *Store) Load(ctx context.Context) (int, error) {
	entries, err := s.repo.LoadAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrPersistenceRead, err)
	}

	s.mu.Lock()
	cipher := s.cipher
	s.mu.Unlock()

	loaded := make([]Record, 0, len(entries))
	for _, e := range entries {
		id, err := uuid.Parse(e.ActorID)
		if err != nil {
			s.logger.Warn("skipping selection with invalid actor id",
				zap.String("actor", e.ActorID), zap.Error(err))
			continue
		}
		value := e.Power
		if cipher != nil && cipher.Initialized() {
			value, err = cipher.Decrypt(e.Power)
			if err != nil {
				s.logger.Warn("skipping undecryptable selection",
					zap.String("actor", e.ActorID), zap.Error(err))
				continue
			}
		}
		if value == "" {
			continue
		}
		loaded = append(loaded, Record{ActorID: id, PowerID: value, HasSelected: true})
	}

	s.mu.Lock()
	for _, r := range loaded {
		s.records[r.ActorID] = r
	}
	s.mu.Unlock()

	s.logger.Info("selections loaded", zap.Int("count", len(loaded)), zap.Int("stored", len(entries)))
	return len(loaded), nil
}
