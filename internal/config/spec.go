// Package config implements the hot-reloadable configuration manager
// (spec §4.4, C4): it watches bot.yaml/patterns.yaml/filters.yaml/
// timers.yaml plus community_filters.json bundles, validates each
// change, compiles a new immutable Snapshot, and atomically swaps it
// in. Validation failures retain the previous snapshot, matching the
// teacher's "never leave callers with a half-applied config" posture
// even though the teacher itself only ever did a one-shot config.Load.
package config

import (
	"time"

	"github.com/notarikon-nz/notabot/internal/escalation"
	"github.com/notarikon-nz/notabot/internal/pattern"
)

// botYAML mirrors bot.yaml's top-level shape (spec §6).
type botYAML struct {
	Core struct {
		WorkerThreads          int `yaml:"worker_threads"`
		MaxFiltersPerMessage   int `yaml:"max_filters_per_message"`
		GracefulShutdownSecs   int `yaml:"graceful_shutdown_seconds"`
	} `yaml:"core"`
	Platforms struct {
		Twitch  platformYAML `yaml:"twitch"`
		YouTube platformYAML `yaml:"youtube"`
	} `yaml:"platforms"`
	Features struct {
		ParallelProcessing bool `yaml:"parallel_processing"`
		LearningMode       bool `yaml:"learning_mode"`
	} `yaml:"features"`
	Performance struct {
		PerFilterBudgetMS  int `yaml:"per_filter_budget_ms"`
		PerMessageBudgetMS int `yaml:"per_message_budget_ms"`
		CacheSizeMB        int `yaml:"cache_size_mb"`
		BatchSize          int `yaml:"batch_size"`
		ResponseDelayMS    int `yaml:"response_delay_ms"`
		IdleTimeoutS       int `yaml:"idle_timeout_s"`
		RetryDelayS        int `yaml:"retry_delay_s"`
		MaxConcurrentChecks int `yaml:"max_concurrent_checks"`
	} `yaml:"performance"`
	Security struct {
		SnapshotHistorySize int `yaml:"snapshot_history_size"`
	} `yaml:"security"`
}

type platformYAML struct {
	Enabled                    bool    `yaml:"enabled"`
	MaxConnections             int     `yaml:"max_connections_per_platform"`
	MinIdleConnections         int     `yaml:"min_idle_connections"`
	HealthCheckIntervalSeconds int     `yaml:"health_check_interval_seconds"`
	RetryAttempts              int     `yaml:"retry_attempts"`
	ConnectionTimeoutSeconds   int     `yaml:"connection_timeout_seconds"`
	MessagesPerSecond          float64 `yaml:"messages_per_second"`
	BurstLimit                 int     `yaml:"burst_limit"`
}

// patternsYAML mirrors patterns.yaml's pattern_collections map.
type patternsYAML struct {
	PatternCollections map[string]patternCollectionYAML `yaml:"pattern_collections"`
}

type patternCollectionYAML struct {
	Patterns            []pattern.Spec `yaml:"patterns"`
	Priority            int            `yaml:"priority"`
	ConfidenceThreshold float64        `yaml:"confidence_threshold"`
	LearningEnabled     bool           `yaml:"learning_enabled"`
}

// filtersYAML mirrors filters.yaml.
type filtersYAML struct {
	BlacklistFilters []filterYAML          `yaml:"blacklist_filters"`
	SpamFilters      []filterYAML          `yaml:"spam_filters"`
	GlobalSettings   globalFilterSettings   `yaml:"global_settings"`
	Categories       []string               `yaml:"categories"`
}

type globalFilterSettings struct {
	MaxFiltersPerMessage int `yaml:"max_filters_per_message"`
}

type filterYAML struct {
	ID                  string         `yaml:"id"`
	Name                string         `yaml:"name"`
	Enabled             bool           `yaml:"enabled"`
	Category            string         `yaml:"category"`
	Priority            int            `yaml:"priority"`
	PatternCollection   string         `yaml:"pattern_collection"`
	Patterns            []pattern.Spec `yaml:"patterns"`
	CaseSensitive       bool           `yaml:"case_sensitive"`
	WholeWordsOnly      bool           `yaml:"whole_words_only"`
	ExemptionLevel      string         `yaml:"exemption_level"`
	ExemptUsers         []string       `yaml:"exempt_users"`
	ActiveHours         []int          `yaml:"active_hours"`
	ActiveDays          []int          `yaml:"active_days"`
	MinAccountAgeDays   int            `yaml:"min_account_age_days"`
	EscalationRef       string         `yaml:"escalation_ref"`
	CustomMessage       string         `yaml:"custom_message"`
	SilentMode          bool           `yaml:"silent_mode"`
	Tags                []string       `yaml:"tags"`
	ConfidenceThreshold float64        `yaml:"confidence_threshold"`
	LearningEnabled     bool           `yaml:"learning_enabled"`
	AutoDisableThreshold float64       `yaml:"auto_disable_threshold"`
}

// escalationsYAML mirrors the escalation_policies map referenced by
// filterYAML.EscalationRef (kept alongside filters.yaml rather than its
// own file, spec §3 EscalationPolicy has no dedicated config file name).
type escalationsYAML struct {
	Policies map[string]escalationPolicyYAML `yaml:"escalation_policies"`
}

type escalationPolicyYAML struct {
	FirstOffense        actionYAML `yaml:"first_offense"`
	RepeatOffense       actionYAML `yaml:"repeat_offense"`
	OffenseWindowSeconds int       `yaml:"offense_window_seconds"`
	MaxLevel             int       `yaml:"max_level"`
	CoolingOffSeconds    int       `yaml:"cooling_off_seconds"`
	BaseDurationSeconds  int       `yaml:"base_duration_seconds"`
	MaxTimeoutSeconds    int       `yaml:"max_timeout_seconds"`
}

type actionYAML struct {
	Kind            string `yaml:"kind"` // log_only, warn_user, delete_message, timeout_user, ban_user
	Message         string `yaml:"message"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
}

func (a actionYAML) resolve() escalation.Action {
	switch a.Kind {
	case "warn_user":
		return escalation.Action{Kind: escalation.ActionWarnUser, Message: a.Message}
	case "delete_message":
		return escalation.Action{Kind: escalation.ActionDeleteMessage}
	case "timeout_user":
		return escalation.Action{Kind: escalation.ActionTimeoutUser, TimeoutDuration: time.Duration(a.TimeoutSeconds) * time.Second}
	case "ban_user":
		return escalation.Action{Kind: escalation.ActionBanUser}
	default:
		return escalation.Action{Kind: escalation.ActionLogOnly}
	}
}

// timersYAML mirrors timers.yaml.
type timersYAML struct {
	Timers         []timerYAML            `yaml:"timers"`
	GlobalSettings map[string]interface{} `yaml:"global_settings"`
	Variables      map[string]string      `yaml:"variables"`
}

type timerYAML struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Schedule string `yaml:"schedule"` // cron expression
	Message  string `yaml:"message"`
	Channel  string `yaml:"channel"`
	Enabled  bool   `yaml:"enabled"`
}

// communityBundleJSON mirrors community_filters.json's import bundle
// shape (spec §6, §9 "advisory priors only").
type communityBundleJSON struct {
	Version  string             `json:"version"`
	Filters  []filterYAML       `json:"filters"`
	Metadata communityMetadata  `json:"metadata"`
}

type communityMetadata struct {
	EffectivenessPriors map[string]float64 `json:"effectiveness_priors"` // filter id -> seed accuracy
}
