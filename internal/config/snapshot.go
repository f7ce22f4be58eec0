package config

import (
	"fmt"
	"sort"
	"time"

	"github.com/notarikon-nz/notabot/internal/filter"
	"github.com/notarikon-nz/notabot/internal/ierr"
)

// Snapshot is the immutable, fully-resolved configuration in force at
// one instant (spec §3 ConfigSnapshot). It is never mutated after
// build returns it; C4 publishes new values by atomic pointer swap
// (internal/config.Manager), never in-place edits.
type Snapshot struct {
	Filter                  *filter.Snapshot
	Timers                  []TimerSpec
	Tunables                Tunables
	WorkerThreads           int
	GracefulShutdownSeconds int
	Version                 int
	LoadedAt                time.Time

	// effectivenessPriors carries community-bundle advisory seeds by
	// filter id (spec §9: advisory only, never overriding a live
	// FilterEffectiveness once real observations exist).
	effectivenessPriors map[string]float64
}

// EffectivenessPrior returns the community-bundle seed accuracy for
// filterID, if any was imported.
func (s *Snapshot) EffectivenessPrior(filterID string) (float64, bool) {
	v, ok := s.effectivenessPriors[filterID]
	return v, ok
}

// TimerSpec is the resolved form of one timers.yaml entry, ready for
// C10's scheduler.
type TimerSpec struct {
	ID       string
	Name     string
	Schedule string
	Message  string
	Channel  string
	Enabled  bool
}

// sources bundles every parsed config file before validation/build, so
// validate can check cross-references (escalation_ref, pattern_collection)
// without re-reading disk.
type sources struct {
	bot        botYAML
	patterns   patternsYAML
	filters    filtersYAML
	escalations escalationsYAML
	timers     timersYAML
	community  []communityBundleJSON
}

// build compiles sources into a Snapshot, or returns an
// ierr.ErrConfigInvalid-wrapped error if validation fails. version and
// loadedAt are supplied by the caller (Manager) so build stays a pure
// function of its inputs.
func build(src sources, version int, loadedAt time.Time) (*Snapshot, error) {
	if err := validate(src); err != nil {
		return nil, err
	}

	all := append(append([]filterYAML{}, src.filters.BlacklistFilters...), src.filters.SpamFilters...)
	for _, bundle := range src.community {
		all = append(all, bundle.Filters...)
	}

	compiled := make([]*filter.Filter, 0, len(all))
	for _, fy := range all {
		f, err := compileFilter(fy, src)
		if err != nil {
			return nil, fmt.Errorf("%w: filter %q: %v", ierr.ErrConfigInvalid, fy.ID, err)
		}
		compiled = append(compiled, f)
	}

	sort.SliceStable(compiled, func(i, j int) bool {
		if compiled[i].Priority != compiled[j].Priority {
			return compiled[i].Priority > compiled[j].Priority
		}
		return compiled[i].ID < compiled[j].ID
	})

	maxFilters := src.filters.GlobalSettings.MaxFiltersPerMessage
	if maxFilters == 0 {
		maxFilters = src.bot.Core.MaxFiltersPerMessage
	}

	perFilterMS := src.bot.Performance.PerFilterBudgetMS
	if perFilterMS <= 0 {
		perFilterMS = 100
	}
	perMessageMS := src.bot.Performance.PerMessageBudgetMS
	if perMessageMS <= 0 {
		if src.bot.Features.ParallelProcessing {
			perMessageMS = 5
		} else {
			perMessageMS = 10
		}
	}

	timers := make([]TimerSpec, 0, len(src.timers.Timers))
	for _, t := range src.timers.Timers {
		timers = append(timers, TimerSpec{ID: t.ID, Name: t.Name, Schedule: t.Schedule, Message: t.Message, Channel: t.Channel, Enabled: t.Enabled})
	}

	priors := make(map[string]float64)
	for _, bundle := range src.community {
		for id, v := range bundle.Metadata.EffectivenessPriors {
			priors[id] = v
		}
	}

	poolSizes := map[string]int{
		"twitch":  src.bot.Platforms.Twitch.MaxConnections,
		"youtube": src.bot.Platforms.YouTube.MaxConnections,
	}

	return &Snapshot{
		Filter: &filter.Snapshot{
			Filters:              compiled,
			MaxFiltersPerMessage: maxFilters,
			PerFilterBudget:      time.Duration(perFilterMS) * time.Millisecond,
			PerMessageBudget:     time.Duration(perMessageMS) * time.Millisecond,
		},
		Timers:                  timers,
		WorkerThreads:           src.bot.Core.WorkerThreads,
		GracefulShutdownSeconds: src.bot.Core.GracefulShutdownSecs,
		Tunables: Tunables{
			BatchSize:           src.bot.Performance.BatchSize,
			ResponseDelayMS:     src.bot.Performance.ResponseDelayMS,
			PoolSizes:           poolSizes,
			IdleTimeoutS:        src.bot.Performance.IdleTimeoutS,
			RetryDelayS:         src.bot.Performance.RetryDelayS,
			MaxConcurrentChecks: src.bot.Performance.MaxConcurrentChecks,
		},
		Version:             version,
		LoadedAt:            loadedAt,
		effectivenessPriors: priors,
	}, nil
}
