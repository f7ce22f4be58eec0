package protocol

// Event names published on the internal event bus (internal/bus), kept
// as string constants so producers and consumers never hand-type names.
const (
	EventHealth    = "health"
	EventCron      = "cron"
	EventPresence  = "presence"
	EventTick      = "tick"
	EventShutdown  = "shutdown"
	EventHeartbeat = "heartbeat"

	// EventModerationAction is published after every filter evaluation
	// that resolves to an action other than Pass.
	EventModerationAction = "moderation.action"

	// EventAppealDecision names the event for an accepted or rejected
	// appeal (spec §6 AppealEvent). Nothing in this module publishes it.
	EventAppealDecision = "appeal.decision"

	// EventConfigReloaded is published whenever C4 swaps in a new
	// ConfigSnapshot, successfully or not.
	EventConfigReloaded = "config.reloaded"

	// EventFilterAutoDisabled names the event for a filter's auto-disable
	// flag being set. Nothing in this module publishes it.
	EventFilterAutoDisabled = "filter.auto_disabled"

	// EventPlatformStatus names the event for connection, disconnection
	// and health-check transitions inside C6's pool. The pool does not
	// publish it.
	EventPlatformStatus = "platform.status"
)

// Moderation event subtypes (in payload.reason), not exhaustive — filters
// set their own free-form reason strings.
const (
	ReasonFilterMatch = "filter_match"
	ReasonAppeal      = "appeal_accepted"
)
