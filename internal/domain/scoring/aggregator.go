package scoring

import (
	"context"
	"fmt"
	"sync"

	"github.com/eito54/grosoq/internal/domain/identity"
	"github.com/eito54/grosoq/internal/domain/model"
	"github.com/eito54/grosoq/pkg/logger"
	"github.com/eito54/grosoq/pkg/metrics"
)

// LedgerStore persists the score ledger. LoadLedger returns an empty
// ledger without error when nothing was saved yet.
type LedgerStore interface {
	LoadLedger(ctx context.Context) (model.Ledger, error)
	SaveLedger(ctx context.Context, entries model.Ledger, mode model.Mode) error
}

// Notifier is called after the ledger was saved.
type Notifier func(ctx context.Context, entries model.Ledger, mode model.Mode)

// Aggregator applies result batches and manual edits to the ledger.
type Aggregator struct {
	mu       sync.Mutex
	store    LedgerStore
	notify   Notifier
	logger   logger.Logger
	fallback model.Ledger
}

// Option applies a configuration option to the Aggregator.
type Option func(*Aggregator)

// WithLogger sets the aggregator logger.
func WithLogger(l logger.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithNotifier registers the post-save hook.
func WithNotifier(n Notifier) Option {
	return func(a *Aggregator) {
		a.notify = n
	}
}

// NewAggregator creates an aggregator backed by store.
func NewAggregator(store LedgerStore, opts ...Option) *Aggregator {
	a := &Aggregator{
		store:  store,
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Apply folds results into the ledger using mode, runs the merge and
// current-player passes, persists the outcome and returns it. A non-empty
// pinned name overrides the current-player flags.
func (a *Aggregator) Apply(ctx context.Context, mode model.Mode, results []model.RawPlayerResult, pinned string) (model.Ledger, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	ledger := a.load(ctx)

	var next model.Ledger
	switch mode {
	case model.ModeRace:
		next = ApplyRace(ledger, results)
	case model.ModeTotal:
		next = ApplyTotals(ledger, results)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}

	next, merged := MergeByInitial(next)
	if merged > 0 {
		metrics.RecordTeamMerges(merged)
		a.logger.Debug(ctx, "merged teams by initial", logger.Int("merged", merged))
	}
	next = EnforceCurrentPlayer(next, identity.Canonical(pinned))

	a.save(ctx, next, mode)
	return next.Clone(), nil
}

// Ledger returns the current ledger.
func (a *Aggregator) Ledger(ctx context.Context) model.Ledger {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.load(ctx).Clone()
}

// SetScore sets the score of team, creating it when absent. Team names
// are matched in their canonical upper-cased form. Every AddedScore is
// cleared since the edit is not a race result.
func (a *Aggregator) SetScore(ctx context.Context, team string, score int) (model.Ledger, error) {
	team = identity.Canonical(team)
	if team == "" {
		return nil, ErrEmptyTeam
	}
	if score < 0 {
		return nil, fmt.Errorf("%w: %d", ErrNegativeScore, score)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	ledger := a.load(ctx).Clone()
	for i := range ledger {
		ledger[i].AddedScore = 0
	}
	if idx := ledger.Index(team); idx >= 0 {
		ledger[idx].Score = score
	} else {
		ledger = append(ledger, model.LedgerEntry{Name: team, Score: score})
	}
	a.save(ctx, ledger, model.ModeManual)
	return ledger.Clone(), nil
}

// Delete removes team from the ledger.
func (a *Aggregator) Delete(ctx context.Context, team string) (model.Ledger, error) {
	team = identity.Canonical(team)

	a.mu.Lock()
	defer a.mu.Unlock()

	ledger := a.load(ctx)
	idx := ledger.Index(team)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrTeamNotFound, team)
	}
	next := make(model.Ledger, 0, len(ledger)-1)
	next = append(next, ledger[:idx]...)
	next = append(next, ledger[idx+1:]...)
	a.save(ctx, next, model.ModeManual)
	return next.Clone(), nil
}

// Pin recomputes the current-player flags for pinned and saves the ledger.
// An empty name leaves the flags as they are.
func (a *Aggregator) Pin(ctx context.Context, pinned string) model.Ledger {
	a.mu.Lock()
	defer a.mu.Unlock()

	ledger := EnforceCurrentPlayer(a.load(ctx).Clone(), identity.Canonical(pinned))
	a.save(ctx, ledger, model.ModeManual)
	return ledger.Clone()
}

// Reset empties the ledger.
func (a *Aggregator) Reset(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.save(ctx, model.Ledger{}, model.ModeManual)
}

// load reads the stored ledger. A read failure falls back to the last
// ledger this aggregator saw, which is empty on a fresh process.
func (a *Aggregator) load(ctx context.Context) model.Ledger {
	ledger, err := a.store.LoadLedger(ctx)
	if err != nil {
		a.logger.Warn(ctx, "ledger store unreadable, using in-memory ledger", logger.Error(err))
		metrics.RecordStoreError("ledger", "load")
		return a.fallback.Clone()
	}
	return ledger
}

// save persists entries and fires the notifier. Write failures are logged;
// the in-memory ledger still reflects the change.
func (a *Aggregator) save(ctx context.Context, entries model.Ledger, mode model.Mode) {
	a.fallback = entries.Clone()
	metrics.UpdateLedgerTeams(len(entries))
	if err := a.store.SaveLedger(ctx, entries, mode); err != nil {
		a.logger.Error(ctx, "failed to persist ledger", logger.Error(err), logger.String("mode", mode.String()))
		metrics.RecordStoreError("ledger", "save")
		return
	}
	metrics.RecordLedgerSave(mode.String())
	if a.notify != nil {
		a.notify(ctx, entries.Clone(), mode)
	}
}
