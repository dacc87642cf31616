package preferences

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"eatech-voice/pkg/debounce"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

// DefaultQuietPeriod is how long the store waits after the last update before
// persisting.
const DefaultQuietPeriod = 500 * time.Millisecond

const persistTimeout = 5 * time.Second

type Option func(*Store)

// WithRemote adds a second backend that Load reconciles against and every
// persist writes to.
func WithRemote(b Backend) Option {
	return func(s *Store) { s.remote = b }
}

func WithQuietPeriod(d time.Duration) Option {
	return func(s *Store) { s.quiet = d }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithLogger(log *logrus.Logger) Option {
	return func(s *Store) { s.log = log }
}

func WithValidator(v *validator.Validate) Option {
	return func(s *Store) { s.validate = v }
}

// Store owns the preferences of one device. All mutations go through Update.
type Store struct {
	mu        sync.RWMutex
	prefs     Preferences
	dirty     bool
	listeners []func(Preferences)

	writeMu  sync.Mutex
	local    Backend
	remote   Backend
	validate *validator.Validate
	quiet    time.Duration
	now      func() time.Time
	log      *logrus.Logger
	persist  *debounce.Timer
}

func NewStore(local Backend, opts ...Option) *Store {
	s := &Store{
		prefs: Defaults(),
		local: local,
		quiet: DefaultQuietPeriod,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.validate == nil {
		s.validate = NewValidator()
	}
	if s.log == nil {
		s.log = logrus.New()
		s.log.SetOutput(io.Discard)
	}
	s.persist = debounce.New(s.quiet, s.persistInBackground)
	return s
}

// Get returns a copy of the current preferences.
func (s *Store) Get() Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prefs.Clone()
}

// Dirty reports whether there are changes not yet persisted.
func (s *Store) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty
}

// OnChange registers fn to be called with the new state after every accepted update.
func (s *Store) OnChange(fn func(Preferences)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Update applies fn to a copy of the current state. The copy replaces the
// current state only if it validates; otherwise a *ValidationError is
// returned and nothing changes.
func (s *Store) Update(fn func(*Preferences)) error {
	return s.update(func(p *Preferences) error {
		fn(p)
		return nil
	})
}

// Patch merges a partial JSON document into the current state. Statistics
// cannot be patched.
func (s *Store) Patch(data []byte) error {
	return s.update(func(p *Preferences) error {
		stats := p.Stats
		if err := json.Unmarshal(data, p); err != nil {
			return fmt.Errorf("decode patch: %w", err)
		}
		p.Stats = stats
		return nil
	})
}

// Reset restores the defaults and keeps the usage statistics.
func (s *Store) Reset() error {
	return s.Update(func(p *Preferences) {
		stats := p.Stats
		*p = Defaults()
		p.Stats = stats
	})
}

// RecordUsage folds one processed command into the statistics.
func (s *Store) RecordUsage(success bool, confidence float64) error {
	confidence = max(0, min(1, confidence))
	now := s.now()
	return s.Update(func(p *Preferences) {
		st := &p.Stats
		st.TotalCommands++
		if success {
			st.SuccessfulCommands++
		}
		st.AverageConfidence += (confidence - st.AverageConfidence) / float64(st.TotalCommands)
		st.LastUsed = now
	})
}

func (s *Store) update(fn func(*Preferences) error) error {
	s.mu.Lock()
	candidate := s.prefs.Clone()
	if err := fn(&candidate); err != nil {
		s.mu.Unlock()
		return err
	}
	candidate.Version = CurrentVersion
	if err := Validate(s.validate, candidate); err != nil {
		s.mu.Unlock()
		return err
	}
	candidate.LastModified = s.now()
	s.prefs = candidate
	s.dirty = true
	listeners := append([]func(Preferences){}, s.listeners...)
	s.mu.Unlock()

	s.persist.Trigger()
	for _, l := range listeners {
		l(candidate.Clone())
	}
	return nil
}

// Flush persists pending changes now.
func (s *Store) Flush(ctx context.Context) error {
	s.persist.Stop()
	return s.save(ctx)
}

// Close flushes pending changes.
func (s *Store) Close(ctx context.Context) error {
	return s.Flush(ctx)
}

func (s *Store) persistInBackground() {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := s.save(ctx); err != nil {
		s.log.WithFields(logrus.Fields{
			"error": err.Error(),
		}).Error("failed to persist voice preferences")
	}
}

func (s *Store) save(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	if !s.dirty {
		s.mu.RUnlock()
		return nil
	}
	snapshot := s.prefs.Clone()
	s.mu.RUnlock()

	data, err := Encode(snapshot)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}
	if err := s.local.Write(ctx, data); err != nil {
		return fmt.Errorf("write local preferences: %w", err)
	}
	if s.remote != nil {
		if err := s.remote.Write(ctx, data); err != nil {
			s.log.WithFields(logrus.Fields{
				"error": err.Error(),
			}).Warn("failed to write remote voice preferences")
		}
	}

	s.mu.Lock()
	if s.prefs.LastModified.Equal(snapshot.LastModified) {
		s.dirty = false
	}
	s.mu.Unlock()
	return nil
}

// Load reads the local record, migrating older versions, and reconciles it
// with the remote copy when one is configured: the newer valid record wins.
// A missing or invalid record falls back to defaults.
func (s *Store) Load(ctx context.Context) error {
	local, localOK, localMigrated := s.readBackend(ctx, s.local, "local")
	chosen, ok := local, localOK
	needsWrite := localMigrated

	if s.remote != nil {
		remote, remoteOK, _ := s.readBackend(ctx, s.remote, "remote")
		switch {
		case remoteOK && (!localOK || remote.LastModified.After(local.LastModified)):
			chosen, ok = remote, true
			needsWrite = true
		case localOK && (!remoteOK || local.LastModified.After(remote.LastModified)):
			needsWrite = true
		}
	}
	if !ok {
		chosen = Defaults()
	}

	s.mu.Lock()
	s.prefs = chosen
	s.dirty = needsWrite
	s.mu.Unlock()

	if needsWrite {
		return s.save(ctx)
	}
	return nil
}

func (s *Store) readBackend(ctx context.Context, b Backend, name string) (Preferences, bool, bool) {
	data, err := b.Read(ctx)
	if errors.Is(err, ErrNotFound) {
		return Preferences{}, false, false
	}
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"backend": name,
			"error":   err.Error(),
		}).Warn("failed to read voice preferences")
		return Preferences{}, false, false
	}

	p, migrated, err := Decode(data)
	if err == nil {
		err = Validate(s.validate, p)
	}
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"backend": name,
			"error":   err.Error(),
		}).Warn("discarding unusable voice preferences")
		return Preferences{}, false, false
	}
	return p, true, migrated
}
