// Package escalation implements the per-(user, filter) escalation state
// machine (spec §4.3): Clean -> Offender(level) -> CoolingOff -> Clean,
// with a sliding offense window, rehabilitation decay, and appeal-driven
// level decrements.
package escalation

import "time"

// ActionKind identifies the enforcement action a Policy resolves to.
type ActionKind int

const (
	ActionLogOnly ActionKind = iota
	ActionWarnUser
	ActionDeleteMessage
	ActionTimeoutUser
	ActionBanUser
	ActionPass // not a spec Action variant; used for "no decision" / exempt
)

func (k ActionKind) String() string {
	switch k {
	case ActionLogOnly:
		return "log_only"
	case ActionWarnUser:
		return "warn_user"
	case ActionDeleteMessage:
		return "delete_message"
	case ActionTimeoutUser:
		return "timeout_user"
	case ActionBanUser:
		return "ban_user"
	default:
		return "pass"
	}
}

// Action is a concrete enforcement action with its parameters resolved
// (spec §3 EscalationPolicy.Action).
type Action struct {
	Kind            ActionKind
	Message         string        // WarnUser's message
	TimeoutDuration time.Duration // TimeoutUser's duration
}

// Policy is the per-filter escalation policy (spec §3 EscalationPolicy).
type Policy struct {
	FirstOffense    Action
	RepeatOffense   Action
	OffenseWindow   time.Duration
	MaxLevel        int
	CoolingOff      time.Duration
	BaseDuration    time.Duration // base for TimeoutUser(0) doubling, spec §4.3
	MaxTimeout      time.Duration // cap for escalated duration, default 24h
}

// DefaultMaxTimeout is applied when Policy.MaxTimeout is zero.
const DefaultMaxTimeout = 24 * time.Hour

// ActionForLevel resolves the Action for a given offense level and
// cooling-off state (spec §4.3 "Action selection").
//
//   - level 1            -> FirstOffense
//   - level 2..MaxLevel   -> RepeatOffense, with duration doubling when
//     RepeatOffense is TimeoutUser(0): base * 2^(level-1), capped at
//     MaxTimeout.
//   - while CoolingOff    -> the resolved action is attenuated one step
//     (Ban -> Timeout(base * 2^(level-1), capped at MaxTimeout), Timeout -> Delete, Delete -> Warn, Warn -> LogOnly).
func (p Policy) ActionForLevel(level int, coolingOff bool) Action {
	var action Action
	switch {
	case level <= 0:
		action = Action{Kind: ActionLogOnly}
	case level == 1:
		action = p.FirstOffense
	default:
		action = p.RepeatOffense
		if action.Kind == ActionTimeoutUser && action.TimeoutDuration == 0 {
			action.TimeoutDuration = p.escalatedDuration(level)
		}
	}

	if coolingOff {
		action = attenuate(action, p.escalatedDuration(level))
	}
	return action
}

// escalatedDuration computes base * 2^(level-1) capped at MaxTimeout.
func (p Policy) escalatedDuration(level int) time.Duration {
	base := p.BaseDuration
	if base == 0 {
		base = 1 * time.Minute
	}
	max := p.MaxTimeout
	if max == 0 {
		max = DefaultMaxTimeout
	}
	if level < 1 {
		level = 1
	}
	d := base
	for i := 1; i < level; i++ {
		d *= 2
		if d > max {
			return max
		}
	}
	if d > max {
		d = max
	}
	return d
}

// attenuate steps an action down one severity level (spec §4.3 "while in
// CoolingOff... actions are attenuated one step").
func attenuate(a Action, fallbackTimeout time.Duration) Action {
	switch a.Kind {
	case ActionBanUser:
		return Action{Kind: ActionTimeoutUser, TimeoutDuration: fallbackTimeout}
	case ActionTimeoutUser:
		return Action{Kind: ActionDeleteMessage}
	case ActionDeleteMessage:
		return Action{Kind: ActionWarnUser, Message: a.Message}
	case ActionWarnUser:
		return Action{Kind: ActionLogOnly}
	default:
		return a
	}
}
