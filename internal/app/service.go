// Package service wires screenshot recognition, team identity resolution
// and the score ledger into the operations exposed by the HTTP API.
package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/eito54/grosoq/internal/adapters/repository"
	"github.com/eito54/grosoq/internal/domain/identity"
	"github.com/eito54/grosoq/internal/domain/model"
	"github.com/eito54/grosoq/internal/domain/scoring"
	"github.com/eito54/grosoq/pkg/logger"
	"github.com/eito54/grosoq/pkg/metrics"
)

// Recognizer reads player rows from a screenshot.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte, mode model.Mode, mapping model.PlayerMapping) ([]model.RawPlayerResult, error)
}

// Stats is a snapshot of the service state for monitoring.
type Stats struct {
	Started        bool       `json:"started"`
	Busy           bool       `json:"busy"`
	Teams          int        `json:"teams"`
	MappedPlayers  int        `json:"mappedPlayers"`
	SelfPlayer     string     `json:"selfPlayer,omitempty"`
	PinnedTeam     string     `json:"pinnedTeam,omitempty"`
	LedgerMode     model.Mode `json:"ledgerMode,omitempty"`
	Analyses       int64      `json:"analyses"`
	CachedResults  int        `json:"cachedResults"`
	LastAnalysisID string     `json:"lastAnalysisId,omitempty"`
	LastAnalysisAt *time.Time `json:"lastAnalysisAt,omitempty"`
}

// Service owns the busy guard, the last-result cache and the domain
// components.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      repository.Store
	recognizer Recognizer
	resolver   *identity.Resolver
	aggregator *scoring.Aggregator
	results    *resultCache

	// Configuration
	cacheTTL time.Duration
	notifier scoring.Notifier
	now      func() time.Time

	// State
	started  bool
	busy     atomic.Bool
	pinned   string
	analyses atomic.Int64
	last     *Analysis

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the persistence backend. Defaults to an in-memory store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithRecognizer sets the screenshot recognizer.
func WithRecognizer(r Recognizer) Option {
	return func(s *Service) {
		if r != nil {
			s.recognizer = r
		}
	}
}

// WithCacheTTL bounds how long the last result is served from cache.
// Zero keeps it until it is replaced.
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl >= 0 {
			s.cacheTTL = ttl
		}
	}
}

// WithPinnedTeam sets the initial current-team override.
func WithPinnedTeam(team string) Option {
	return func(s *Service) {
		s.pinned = identity.Canonical(team)
	}
}

// WithNotifier registers a hook called after every ledger save.
func WithNotifier(n scoring.Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		now:    time.Now,
		logger: nil, // replaced in Start
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes the domain components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore()
		s.logger.Info(ctx, "using in-memory store")
	}

	s.resolver = identity.NewResolver(s.store, s.store,
		identity.WithLogger(s.logger.Named("identity")),
		identity.WithClock(s.now),
	)
	s.aggregator = scoring.NewAggregator(s.store,
		scoring.WithLogger(s.logger.Named("scoring")),
		scoring.WithNotifier(s.notifier),
	)
	s.results = newResultCache(s.cacheTTL)

	if m, err := s.store.LoadMappings(ctx); err == nil {
		metrics.UpdateMappingEntries(len(m))
	}
	metrics.UpdateLedgerTeams(len(s.aggregator.Ledger(ctx)))

	s.started = true
	s.logger.Info(ctx, "score service started",
		logger.Bool("recognizer", s.recognizer != nil),
		logger.String("pinnedTeam", s.pinned),
		logger.Duration("cacheTTL", s.cacheTTL),
	)
	return nil
}

// Stop releases the store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	if err := s.store.Close(); err != nil {
		s.logger.Warn(context.Background(), "failed to close store", logger.Error(err))
	}
	s.started = false
	s.logger.Info(context.Background(), "score service stopped")
}

func (s *Service) ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

// acquire sets the busy flag or reports ErrBusy. The returned func clears it.
func (s *Service) acquire() (func(), error) {
	if !s.busy.CompareAndSwap(false, true) {
		metrics.RecordBusyRejection()
		return nil, ErrBusy
	}
	return func() { s.busy.Store(false) }, nil
}

// Analyze recognizes image, resolves team identities and folds the rows
// into the ledger. Only one call runs at a time; a concurrent call fails
// with ErrBusy. Identical race-mode screenshots are answered from the
// last-result cache without touching the ledger again. A total-mode pass
// first clears the mapping and the self-player record so teams are
// rebuilt from the overlay alone.
func (s *Service) Analyze(ctx context.Context, image []byte, mode model.Mode) (a *Analysis, err error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	release, err := s.acquire()
	if err != nil {
		metrics.RecordAnalysis(mode.String(), metrics.OutcomeBusy)
		return nil, err
	}
	defer release()
	defer func() {
		if err != nil {
			metrics.RecordAnalysis(mode.String(), metricOutcome(err))
			s.logger.Warn(ctx, "analysis failed", logger.String("mode", mode.String()), logger.Error(err))
		}
	}()

	if mode != model.ModeRace && mode != model.ModeTotal {
		return nil, fmt.Errorf("%w: mode %q", ErrInvalidInput, mode)
	}
	if len(image) == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrInvalidInput)
	}
	if s.recognizer == nil {
		return nil, ErrNoRecognizer
	}

	key := cacheKey(image, mode)
	if cached, ok := s.results.get(key, mode); ok {
		cached.Cached = true
		metrics.RecordCacheHit()
		metrics.RecordAnalysis(mode.String(), metrics.OutcomeCached)
		s.logger.Debug(ctx, "served analysis from cache", logger.String("id", cached.ID))
		return cached, nil
	}

	if mode == model.ModeTotal {
		if err := s.resetIdentity(ctx); err != nil {
			return nil, err
		}
	}

	hint, herr := s.store.LoadMappings(ctx)
	if herr != nil {
		s.logger.Warn(ctx, "mapping hint unavailable", logger.Error(herr))
		hint = model.PlayerMapping{}
	}

	rows, err := s.recognizer.Recognize(ctx, image, mode, hint)
	if err != nil {
		return nil, fmt.Errorf("recognize: %w", err)
	}

	resolved, _ := s.resolver.Resolve(ctx, rows)
	ledger, err := s.aggregator.Apply(ctx, mode, resolved, s.CurrentTeam())
	if err != nil {
		return nil, fmt.Errorf("aggregate: %w", err)
	}

	a = &Analysis{
		ID:        uuid.NewString(),
		Mode:      mode,
		Results:   resolved,
		Ledger:    ledger.Standings(),
		CreatedAt: s.now(),
	}
	s.results.put(key, a)
	s.analyses.Add(1)
	s.mu.Lock()
	s.last = a.clone()
	s.mu.Unlock()

	metrics.RecordAnalysis(mode.String(), metrics.OutcomeSuccess)
	s.logger.Info(ctx, "analysis applied",
		logger.String("id", a.ID),
		logger.String("mode", mode.String()),
		logger.Int("players", len(resolved)),
		logger.Int("teams", len(ledger)),
	)
	return a, nil
}

// Scores returns the ranked ledger.
func (s *Service) Scores(ctx context.Context) ([]model.Standing, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.aggregator.Ledger(ctx).Standings(), nil
}

// SetTeamScore overwrites the score of team, creating it when absent.
func (s *Service) SetTeamScore(ctx context.Context, team string, score int) ([]model.Standing, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	ledger, err := s.aggregator.SetScore(ctx, team, score)
	if err != nil {
		return nil, err
	}
	s.results.clear()
	return ledger.Standings(), nil
}

// DeleteTeam removes team from the ledger.
func (s *Service) DeleteTeam(ctx context.Context, team string) ([]model.Standing, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	ledger, err := s.aggregator.Delete(ctx, team)
	if err != nil {
		return nil, err
	}
	s.results.clear()
	return ledger.Standings(), nil
}

// ResetLedger empties the ledger.
func (s *Service) ResetLedger(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	s.aggregator.Reset(ctx)
	s.results.clear()
	s.logger.Info(ctx, "ledger reset")
	return nil
}

// ResetMappings clears the player mapping and the self-player record. It
// is refused while an analysis is running.
func (s *Service) ResetMappings(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	release, err := s.acquire()
	if err != nil {
		return err
	}
	defer release()

	return s.resetIdentity(ctx)
}

// resetIdentity empties the mapping and the self-player record. The caller
// holds the busy flag.
func (s *Service) resetIdentity(ctx context.Context) error {
	if err := s.store.SaveMappings(ctx, model.PlayerMapping{}); err != nil {
		metrics.RecordStoreError("mappings", "save")
		return fmt.Errorf("reset mappings: %w", err)
	}
	if err := s.store.ClearSelfPlayer(ctx); err != nil {
		metrics.RecordStoreError("self_player", "save")
		return fmt.Errorf("reset self player: %w", err)
	}
	metrics.UpdateMappingEntries(0)
	s.results.clear()
	s.logger.Info(ctx, "mappings reset")
	return nil
}

// Mappings returns the stored player mapping.
func (s *Service) Mappings(ctx context.Context) (model.PlayerMapping, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	m, err := s.store.LoadMappings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load mappings: %w", err)
	}
	if m == nil {
		m = model.PlayerMapping{}
	}
	return m, nil
}

// SelfPlayer returns the recorded self player, or nil.
func (s *Service) SelfPlayer(ctx context.Context) (*model.SelfPlayerRecord, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rec, err := s.store.LoadSelfPlayer(ctx)
	if err != nil {
		return nil, fmt.Errorf("load self player: %w", err)
	}
	return rec, nil
}

// PinTeam sets the current-team override and reapplies it to the ledger.
// An empty name removes the override.
func (s *Service) PinTeam(ctx context.Context, team string) ([]model.Standing, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	team = identity.Canonical(team)
	s.mu.Lock()
	s.pinned = team
	s.mu.Unlock()

	s.logger.Info(ctx, "current team pinned", logger.String("team", team))
	if team == "" {
		return s.aggregator.Ledger(ctx).Standings(), nil
	}
	return s.aggregator.Pin(ctx, team).Standings(), nil
}

// CurrentTeam returns the pinned team, or "".
func (s *Service) CurrentTeam() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pinned
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) Stats {
	s.mu.RLock()
	stats := Stats{
		Started:    s.started,
		Busy:       s.busy.Load(),
		PinnedTeam: s.pinned,
		Analyses:   s.analyses.Load(),
	}
	last := s.last
	started := s.started
	s.mu.RUnlock()

	if last != nil {
		at := last.CreatedAt
		stats.LastAnalysisID = last.ID
		stats.LastAnalysisAt = &at
	}
	if !started {
		return stats
	}

	stats.CachedResults = s.results.size()
	stats.Teams = len(s.aggregator.Ledger(ctx))
	if m, err := s.store.LoadMappings(ctx); err == nil {
		stats.MappedPlayers = len(m)
	}
	if rec, err := s.store.LoadSelfPlayer(ctx); err == nil && rec != nil {
		stats.SelfPlayer = rec.Name
	}
	if mode, err := s.store.LedgerMode(ctx); err == nil {
		stats.LedgerMode = mode
	}
	return stats
}
