package reports

import (
	"errors"
	"fmt"
	"time"

	"guardnet/model"
	"guardnet/timer"
	"guardnet/utils/database"
)

var (
	ErrNotStaff         = errors.New("only admins and moderators may vote")
	ErrNoSuchOption     = errors.New("no such option")
	ErrDurationRequired = errors.New("this action requires a duration")
	ErrNoDuration       = errors.New("this action cannot carry a duration")
	ErrGuildsRequired   = errors.New("targeted scope requires a guild list")
	ErrNoSanctions      = errors.New("an option needs at least one sanction")
)

// VerifyOutcome describes what a stage-1 vote did to the poll.
type VerifyOutcome int

const (
	// VerifyPending means the vote landed but no threshold was hit.
	VerifyPending VerifyOutcome = iota
	// VerifyAdvanced means the poll moved to stage 2.
	VerifyAdvanced
	// VerifyRejected means the report was voted down and deleted.
	VerifyRejected
)

func (p *Pipeline) weight(stage int, voterID string) (float64, error) {
	if !p.cfg.IsStaff(voterID) {
		return 0, ErrNotStaff
	}
	weights := p.cfg.Polling.Stage1Weights
	if stage == 2 {
		weights = p.cfg.Polling.Stage2Weights
	}
	if p.cfg.IsAdmin(voterID) {
		return weights.Admin, nil
	}
	return weights.Moderator, nil
}

// votablePoll loads the poll and rejects votes on anything no longer
// live. A vote after resolution or expiry must never silently apply.
func (p *Pipeline) votablePoll(pollID int64, stage int) (*model.Polling, error) {
	poll, err := p.getPoll(pollID)
	if err != nil {
		return nil, err
	}
	if poll.Type != model.PollTypePolled || poll.Expired(time.Now()) {
		return nil, ErrPollExpired
	}
	if poll.Stage != stage {
		return nil, ErrWrongStage
	}
	return poll, nil
}

// VoteVerify casts a weighted stage-1 vote. Hitting the for-threshold
// advances the poll to stage 2; hitting the against-threshold deletes
// the report outright.
func (p *Pipeline) VoteVerify(pollID int64, voterID string, favor bool) (VerifyOutcome, error) {
	poll, err := p.votablePoll(pollID, 1)
	if err != nil {
		return VerifyPending, err
	}
	weight, err := p.weight(1, voterID)
	if err != nil {
		return VerifyPending, err
	}
	if err := poll.Stage1Vote.Cast(voterID, weight, favor); err != nil {
		return VerifyPending, err
	}

	switch {
	case poll.Stage1Vote.PointsFor >= p.cfg.Polling.VerifyThreshold:
		poll.Stage = 2
		if err := p.savePoll(poll); err != nil {
			return VerifyPending, err
		}
		return VerifyAdvanced, nil
	case poll.Stage1Vote.PointsAgainst >= p.cfg.Polling.VerifyThreshold:
		if err := p.deletePoll(pollID); err != nil {
			return VerifyPending, err
		}
		return VerifyRejected, nil
	default:
		return VerifyPending, p.savePoll(poll)
	}
}

func (p *Pipeline) deletePoll(pollID int64) error {
	if err := p.timers.Cancel(timer.EventPoll, encodeIDPayload(pollID)); err != nil {
		return err
	}
	return database.DeletePolling(p.db, pollID)
}

// validateSpec enforces the per-action duration and scope rules before
// a sanction proposal enters the poll.
func validateSpec(spec *model.SanctionSpec) error {
	if len(spec.Users) == 0 {
		return ErrNoReportedUsers
	}
	maxDays := spec.Action.MaxDurationDays()
	if spec.Duration != nil {
		if maxDays == 0 {
			return ErrNoDuration
		}
		limit := int64(maxDays) * 24 * 60 * 60
		if *spec.Duration <= 0 || *spec.Duration > limit {
			return fmt.Errorf("duration for %s must be within %d days", spec.Action, maxDays)
		}
	} else if spec.Action == model.ActionMute {
		return ErrDurationRequired
	}
	if spec.Scope == model.ScopeTargeted && len(spec.GuildIDs) == 0 {
		return ErrGuildsRequired
	}
	return nil
}

// AddOption appends a competing sanction proposal to a stage-2 poll.
// The attachment pool across all options is bounded at 25.
func (p *Pipeline) AddOption(pollID int64, option model.Option) error {
	if !p.cfg.IsStaff(option.Owner) {
		return ErrNotStaff
	}
	if len(option.Sanctions) == 0 {
		return ErrNoSanctions
	}
	if !p.validCategory(option.Category, option.Subcategory) {
		return ErrUnknownCategory
	}
	for i := range option.Sanctions {
		if err := validateSpec(&option.Sanctions[i]); err != nil {
			return err
		}
	}

	poll, err := p.votablePoll(pollID, 2)
	if err != nil {
		return err
	}
	pool := len(option.Attachments)
	for i := range poll.Options {
		pool += len(poll.Options[i].Attachments)
	}
	if pool > maxPollAttachments {
		return ErrTooManyAttachments
	}
	poll.Options = append(poll.Options, option)
	return p.savePoll(poll)
}

// VoteOption casts a weighted stage-2 vote on one option. An immediate
// option hitting the threshold short-circuits resolution without
// waiting for the poll timer; the first option to do so wins even if
// others later accrue more points.
func (p *Pipeline) VoteOption(pollID int64, optionIndex int, voterID string, favor bool) (resolved bool, err error) {
	poll, err := p.votablePoll(pollID, 2)
	if err != nil {
		return false, err
	}
	if optionIndex < 0 || optionIndex >= len(poll.Options) {
		return false, ErrNoSuchOption
	}
	weight, err := p.weight(2, voterID)
	if err != nil {
		return false, err
	}
	option := &poll.Options[optionIndex]
	if err := option.Polling.Cast(voterID, weight, favor); err != nil {
		return false, err
	}

	if option.AddressingType == model.AddressingImmediate &&
		option.Polling.PointsFor >= p.cfg.Polling.OptionThreshold {
		return true, p.resolveWith(poll, optionIndex)
	}
	return false, p.savePoll(poll)
}
