package model

import "fmt"

// Action is a sanction action applied to a target across guilds.
type Action int

const (
	ActionNone Action = iota
	ActionWarn
	ActionMute
	ActionQuarantine
	ActionKick
	ActionBan
)

func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionWarn:
		return "warn"
	case ActionMute:
		return "mute"
	case ActionQuarantine:
		return "quarantine"
	case ActionKick:
		return "kick"
	case ActionBan:
		return "ban"
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

func ParseAction(value string) (Action, error) {
	switch value {
	case "none":
		return ActionNone, nil
	case "warn":
		return ActionWarn, nil
	case "mute":
		return ActionMute, nil
	case "quarantine":
		return ActionQuarantine, nil
	case "kick":
		return ActionKick, nil
	case "ban":
		return ActionBan, nil
	}
	return ActionNone, fmt.Errorf("unknown action %q", value)
}

// Durable reports whether a successful application of the action leaves
// a standing restriction that must be tracked and eventually unwound.
func (a Action) Durable() bool {
	switch a {
	case ActionBan, ActionKick, ActionQuarantine:
		return true
	case ActionNone, ActionWarn, ActionMute:
		return false
	}
	return false
}

// MaxDurationDays is the longest allowed duration for the action.
// Zero means the action cannot carry a duration at all.
func (a Action) MaxDurationDays() int {
	switch a {
	case ActionMute:
		return 28
	case ActionQuarantine, ActionBan:
		return 365
	case ActionNone, ActionWarn, ActionKick:
		return 0
	}
	return 0
}

// AppealAction reverses a previously applied Action.
type AppealAction int

const (
	AppealUnmute AppealAction = iota + 1
	AppealUnquarantine
	AppealUnban
)

func (a AppealAction) String() string {
	switch a {
	case AppealUnmute:
		return "unmute"
	case AppealUnquarantine:
		return "unquarantine"
	case AppealUnban:
		return "unban"
	}
	return fmt.Sprintf("AppealAction(%d)", int(a))
}

// AppealFor returns the appeal action that reverses the given action,
// or false if the action has nothing to reverse.
func AppealFor(a Action) (AppealAction, bool) {
	switch a {
	case ActionMute:
		return AppealUnmute, true
	case ActionQuarantine:
		return AppealUnquarantine, true
	case ActionBan:
		return AppealUnban, true
	case ActionNone, ActionWarn, ActionKick:
		return 0, false
	}
	return 0, false
}

// Scope selects which guilds a sanction fans out to.
type Scope int

const (
	ScopeTargeted Scope = iota
	ScopeMutual
	ScopeGlobal
)

func (s Scope) String() string {
	switch s {
	case ScopeTargeted:
		return "targeted"
	case ScopeMutual:
		return "mutual"
	case ScopeGlobal:
		return "global"
	}
	return fmt.Sprintf("Scope(%d)", int(s))
}

func ParseScope(value string) (Scope, error) {
	switch value {
	case "targeted":
		return ScopeTargeted, nil
	case "mutual":
		return ScopeMutual, nil
	case "global":
		return ScopeGlobal, nil
	}
	return ScopeTargeted, fmt.Errorf("unknown scope %q", value)
}
