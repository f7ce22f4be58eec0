package config

import (
	"fmt"
	"time"

	"github.com/notarikon-nz/notabot/internal/escalation"
	"github.com/notarikon-nz/notabot/internal/filter"
	"github.com/notarikon-nz/notabot/internal/ierr"
	"github.com/notarikon-nz/notabot/internal/pattern"
)

// validate checks cross-file invariants before any compilation is
// attempted (spec §4.4: "ids unique, priorities in range, patterns
// compile, cross-references resolve").
func validate(src sources) error {
	seen := make(map[string]bool)
	all := append(append([]filterYAML{}, src.filters.BlacklistFilters...), src.filters.SpamFilters...)
	for _, bundle := range src.community {
		all = append(all, bundle.Filters...)
	}

	for _, f := range all {
		if f.ID == "" {
			return fmt.Errorf("%w: filter with empty id", ierr.ErrConfigInvalid)
		}
		if seen[f.ID] {
			return fmt.Errorf("%w: duplicate filter id %q", ierr.ErrConfigInvalid, f.ID)
		}
		seen[f.ID] = true

		if f.Priority < 0 || f.Priority > 10 {
			return fmt.Errorf("%w: filter %q priority %d out of [0,10]", ierr.ErrConfigInvalid, f.ID, f.Priority)
		}
		if f.Enabled && len(f.Patterns) == 0 && f.PatternCollection == "" {
			return fmt.Errorf("%w: enabled filter %q has no patterns", ierr.ErrConfigInvalid, f.ID)
		}
		if f.ConfidenceThreshold < 0 || f.ConfidenceThreshold > 1 {
			return fmt.Errorf("%w: filter %q confidence_threshold %v out of (0,1]", ierr.ErrConfigInvalid, f.ID, f.ConfidenceThreshold)
		}
		if f.PatternCollection != "" {
			if _, ok := src.patterns.PatternCollections[f.PatternCollection]; !ok {
				return fmt.Errorf("%w: filter %q references unknown pattern_collection %q", ierr.ErrConfigInvalid, f.ID, f.PatternCollection)
			}
		}
		if f.EscalationRef != "" {
			if _, ok := src.escalations.Policies[f.EscalationRef]; !ok {
				return fmt.Errorf("%w: filter %q references unknown escalation_ref %q", ierr.ErrConfigInvalid, f.ID, f.EscalationRef)
			}
		}
		for _, spec := range f.Patterns {
			if _, err := pattern.Compile(spec); err != nil {
				return fmt.Errorf("%w: filter %q: %v", ierr.ErrConfigInvalid, f.ID, err)
			}
		}
	}

	for id, coll := range src.patterns.PatternCollections {
		for _, spec := range coll.Patterns {
			if _, err := pattern.Compile(spec); err != nil {
				return fmt.Errorf("%w: pattern_collection %q: %v", ierr.ErrConfigInvalid, id, err)
			}
		}
	}

	timerIDs := make(map[string]bool)
	for _, t := range src.timers.Timers {
		if t.ID == "" {
			return fmt.Errorf("%w: timer with empty id", ierr.ErrConfigInvalid)
		}
		if timerIDs[t.ID] {
			return fmt.Errorf("%w: duplicate timer id %q", ierr.ErrConfigInvalid, t.ID)
		}
		timerIDs[t.ID] = true
	}

	return nil
}

var exemptionLevels = map[string]filter.ExemptionLevel{
	"":             filter.ExemptNone,
	"None":         filter.ExemptNone,
	"Regular":      filter.ExemptRegular,
	"Subscriber":   filter.ExemptSubscriber,
	"Moderator":    filter.ExemptModerator,
	"Owner":        filter.ExemptOwner,
}

func compileFilter(fy filterYAML, src sources) (*filter.Filter, error) {
	f := filter.NewFilter()
	f.ID = fy.ID
	f.Name = fy.Name
	f.Enabled = fy.Enabled
	f.Category = fy.Category
	f.Priority = fy.Priority
	f.CaseSensitive = fy.CaseSensitive
	f.WholeWordsOnly = fy.WholeWordsOnly
	f.CustomMessage = fy.CustomMessage
	f.SilentMode = fy.SilentMode
	f.Tags = fy.Tags
	f.MinAccountAge = fy.MinAccountAgeDays
	f.ConfidenceThreshold = fy.ConfidenceThreshold
	if f.ConfidenceThreshold == 0 {
		f.ConfidenceThreshold = 0.7
	}
	f.LearningEnabled = fy.LearningEnabled
	f.AutoDisableThresh = fy.AutoDisableThreshold
	if f.AutoDisableThresh == 0 {
		f.AutoDisableThresh = 0.6
	}

	level, ok := exemptionLevels[fy.ExemptionLevel]
	if !ok {
		return nil, fmt.Errorf("unknown exemption_level %q", fy.ExemptionLevel)
	}
	f.ExemptionLevel = level

	f.ExemptUsers = make(map[string]bool, len(fy.ExemptUsers))
	for _, u := range fy.ExemptUsers {
		f.ExemptUsers[u] = true
	}

	if len(fy.ActiveHours) > 0 || len(fy.ActiveDays) > 0 {
		days := make([]time.Weekday, 0, len(fy.ActiveDays))
		for _, d := range fy.ActiveDays {
			days = append(days, time.Weekday(d))
		}
		f.ActiveHours = &filter.ActiveWindow{Hours: fy.ActiveHours, Days: days}
	}

	specs := fy.Patterns
	if fy.PatternCollection != "" {
		specs = src.patterns.PatternCollections[fy.PatternCollection].Patterns
	}
	weighted := make([]pattern.Weighted, 0, len(specs))
	for _, spec := range specs {
		w, err := pattern.Compile(spec)
		if err != nil {
			return nil, err
		}
		weighted = append(weighted, w)
	}
	f.Patterns = weighted

	if fy.EscalationRef != "" {
		pol := src.escalations.Policies[fy.EscalationRef]
		f.Escalation = escalation.Policy{
			FirstOffense:  pol.FirstOffense.resolve(),
			RepeatOffense: pol.RepeatOffense.resolve(),
			OffenseWindow: time.Duration(pol.OffenseWindowSeconds) * time.Second,
			MaxLevel:      pol.MaxLevel,
			CoolingOff:    time.Duration(pol.CoolingOffSeconds) * time.Second,
			BaseDuration:  time.Duration(pol.BaseDurationSeconds) * time.Second,
			MaxTimeout:    time.Duration(pol.MaxTimeoutSeconds) * time.Second,
		}
	}

	return f, nil
}
