package identity

import (
	"context"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/eito54/grosoq/internal/domain/model"
	"github.com/eito54/grosoq/pkg/logger"
	"github.com/eito54/grosoq/pkg/metrics"
)

// minPrefixLen is the shortest computed prefix accepted as a team name.
const minPrefixLen = 2

// MappingStore persists the player name -> team name mapping.
type MappingStore interface {
	LoadMappings(ctx context.Context) (model.PlayerMapping, error)
	SaveMappings(ctx context.Context, m model.PlayerMapping) error
}

// SelfPlayerStore persists the last highlighted player. LoadSelfPlayer
// returns nil without error when nothing was recorded yet.
type SelfPlayerStore interface {
	LoadSelfPlayer(ctx context.Context) (*model.SelfPlayerRecord, error)
	SaveSelfPlayer(ctx context.Context, rec model.SelfPlayerRecord) error
}

// Resolver assigns canonical team names to the players of a batch.
// It is not safe for concurrent use; callers serialize resolution passes.
type Resolver struct {
	mappings MappingStore
	self     SelfPlayerStore
	logger   logger.Logger
	now      func() time.Time
}

// Option applies a configuration option to the Resolver.
type Option func(*Resolver)

// WithLogger sets the resolver logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock overrides the time source used for self-player timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

// NewResolver creates a resolver backed by the given stores.
func NewResolver(mappings MappingStore, self SelfPlayerStore, opts ...Option) *Resolver {
	r := &Resolver{
		mappings: mappings,
		self:     self,
		logger:   logger.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve runs one full pass over a batch: names are normalized (rows
// whose name normalizes to empty are dropped), the self flag is tracked,
// the mapping is updated and each row's Team is replaced by its canonical
// name. It returns the corrected batch and the full mapping.
func (r *Resolver) Resolve(ctx context.Context, results []model.RawPlayerResult) ([]model.RawPlayerResult, model.PlayerMapping) {
	batch := make([]model.RawPlayerResult, 0, len(results))
	for _, res := range results {
		res.Name = Normalize(res.Name)
		if res.Name == "" {
			continue
		}
		batch = append(batch, res)
	}

	r.TrackSelf(ctx, batch)

	names := make([]string, len(batch))
	for i := range batch {
		names[i] = batch[i].Name
	}
	mapping := r.UpdateMappings(ctx, names)
	ApplyTeams(batch, mapping)
	return batch, mapping
}

// UpdateMappings folds names into the stored mapping and persists it when
// an entry changed. Store failures are logged; the in-memory mapping is
// returned regardless.
func (r *Resolver) UpdateMappings(ctx context.Context, names []string) model.PlayerMapping {
	mapping, err := r.mappings.LoadMappings(ctx)
	if err != nil {
		r.logger.Warn(ctx, "mapping store unreadable, starting empty", logger.Error(err))
		metrics.RecordStoreError("mappings", "load")
		mapping = nil
	}
	if mapping == nil {
		mapping = model.PlayerMapping{}
	}

	if UpdateMapping(mapping, names) {
		if err := r.mappings.SaveMappings(ctx, mapping); err != nil {
			r.logger.Error(ctx, "failed to persist mapping", logger.Error(err))
			metrics.RecordStoreError("mappings", "save")
		} else {
			metrics.RecordMappingWrite()
			r.logger.Debug(ctx, "mapping updated", logger.Int("entries", len(mapping)))
		}
	}
	metrics.UpdateMappingEntries(len(mapping))
	return mapping
}

// UpdateMapping applies the grouping rules to mapping in place and reports
// whether any entry changed. Stored names take part in grouping even when
// they are absent from names.
func UpdateMapping(mapping model.PlayerMapping, names []string) bool {
	members := make(map[string]struct{}, len(names)+len(mapping))
	for _, n := range names {
		if n = Normalize(n); n != "" {
			members[n] = struct{}{}
		}
	}
	for n := range mapping {
		if n != "" {
			members[n] = struct{}{}
		}
	}

	groups := make(map[string][]string)
	for n := range members {
		key := Initial(n)
		groups[key] = append(groups[key], n)
	}

	changed := false
	for key, group := range groups {
		sort.Strings(group)
		canonical := canonicalName(key, group, mapping)
		for _, n := range group {
			existing := mapping[n]
			switch {
			case existing == "":
			case utf8.RuneCountInString(existing) == 1 && utf8.RuneCountInString(canonical) > 1:
			default:
				continue
			}
			if existing != canonical {
				mapping[n] = canonical
				changed = true
			}
		}
	}
	return changed
}

// canonicalName picks the team name for one first-letter group.
// group must be sorted.
func canonicalName(key string, group []string, mapping model.PlayerMapping) string {
	for _, n := range group {
		if v := mapping[n]; utf8.RuneCountInString(v) > 1 {
			return upper(v)
		}
	}
	if len(group) >= minPrefixLen {
		prefix := strings.TrimSpace(LongestCommonPrefix(group))
		if utf8.RuneCountInString(prefix) >= minPrefixLen {
			return upper(prefix)
		}
	}
	return key
}

// TrackSelf records the highlighted row of the batch, or re-flags the
// previously recorded player when no row is highlighted. It mutates
// results in place and never flags more than one row itself.
func (r *Resolver) TrackSelf(ctx context.Context, results []model.RawPlayerResult) {
	for i := range results {
		if !results[i].IsCurrentPlayer {
			continue
		}
		name := Normalize(results[i].Name)
		if name == "" {
			continue
		}
		metrics.RecordSelfPlayerDetected()
		rec := model.SelfPlayerRecord{Name: name, Timestamp: r.now()}
		if err := r.self.SaveSelfPlayer(ctx, rec); err != nil {
			r.logger.Error(ctx, "failed to persist self player", logger.Error(err))
			metrics.RecordStoreError("self_player", "save")
		}
		return
	}

	rec, err := r.self.LoadSelfPlayer(ctx)
	if err != nil {
		r.logger.Warn(ctx, "self player store unreadable", logger.Error(err))
		metrics.RecordStoreError("self_player", "load")
		return
	}
	if rec == nil || rec.Name == "" {
		return
	}
	for i := range results {
		if Normalize(results[i].Name) == rec.Name {
			results[i].IsCurrentPlayer = true
			r.logger.Debug(ctx, "re-flagged self player", logger.String("name", rec.Name))
			return
		}
	}
}

// ApplyTeams overwrites each row's Team with its mapped canonical name.
// Rows whose name has no mapping keep the model's guess.
func ApplyTeams(results []model.RawPlayerResult, mapping model.PlayerMapping) {
	for i := range results {
		if team, ok := mapping[Normalize(results[i].Name)]; ok {
			results[i].Team = team
		}
	}
}
