package globalactions

import (
	"errors"
	"net/http"

	"github.com/bwmarrin/discordgo"
)

// ActionResult is the per-guild outcome of applying one action.
type ActionResult int

const (
	// Applied means the platform accepted the action.
	Applied ActionResult = iota
	// Failed means the action was attempted and did not land.
	Failed
	// NotApplicable means the guild was skipped without side effects.
	NotApplicable
)

func (r ActionResult) String() string {
	switch r {
	case Applied:
		return "applied"
	case Failed:
		return "failed"
	case NotApplicable:
		return "not applicable"
	}
	return "unknown"
}

// Fault classifies a platform error.
type Fault int

const (
	// FaultNone means the error was nil.
	FaultNone Fault = iota
	// FaultPermission means the bot lacks a capability in the guild.
	// The guild gets opt-in disabled rather than retried.
	FaultPermission
	// FaultNotFound means a role, channel, member or ban entry vanished.
	FaultNotFound
	// FaultTransient covers rate limits, network errors and everything
	// else. The single guild fails, nothing is disabled.
	FaultTransient
)

// Classify maps a platform client error onto the fault taxonomy.
func Classify(err error) Fault {
	if err == nil {
		return FaultNone
	}
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil {
		switch restErr.Response.StatusCode {
		case http.StatusForbidden:
			return FaultPermission
		case http.StatusNotFound:
			return FaultNotFound
		}
	}
	return FaultTransient
}
