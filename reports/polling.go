package reports

import (
	"encoding/json"
	"errors"
	"log"
	"time"

	"guardnet/globalactions"
	"guardnet/model"
	"guardnet/timer"
	"guardnet/utils/database"
)

// minDistinctVoters is the engagement floor: a poll resolved by fewer
// distinct voters goes back to the queue no matter the points.
const minDistinctVoters = 5

var (
	ErrPollNotFound = errors.New("poll not found")
	ErrPollExpired  = errors.New("poll expired")
	ErrWrongStage   = errors.New("wrong stage for this operation")
	ErrNotQueued    = errors.New("poll is not queued")
)

// Submit promotes an owned draft into a stage-1 poll, deletes the
// draft and swaps its expiry timer for the 1-day poll timer.
func (p *Pipeline) Submit(owner string, draftID int64) (*model.Polling, error) {
	record, err := database.GetDraft(p.db, draftID, owner)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrDraftNotFound
	}

	open, err := database.FindOpenStage1ByOwner(p.db, owner)
	if err != nil {
		return nil, err
	}
	if open != nil {
		return nil, ErrOpenReport
	}

	draft, err := record.Decode()
	if err != nil {
		return nil, err
	}
	now := time.Now()
	poll := &model.Polling{
		ID:                draft.ID,
		Owner:             draft.Owner,
		Category:          draft.Category,
		Subcategory:       draft.Subcategory,
		ReportedUsers:     draft.ReportedUsers,
		AssociatedServers: draft.AssociatedServers,
		BriefDescription:  draft.BriefDescription,
		LongDescription:   draft.LongDescription,
		Attachments:       draft.Attachments,
		IsAnonymous:       draft.IsAnonymous,
		Type:              model.PollTypePolled,
		Stage:             1,
		CreatedAt:         now,
		ExpiresAt:         now.Add(pollLifetime),
	}
	encoded, err := poll.Encode()
	if err != nil {
		return nil, err
	}
	if err := database.InsertPolling(p.db, encoded); err != nil {
		return nil, err
	}
	if _, err := database.DeleteDraft(p.db, draftID, owner); err != nil {
		return nil, err
	}
	if err := p.timers.Cancel(timer.EventDraftExpire, encodeIDPayload(draftID)); err != nil {
		log.Printf("[Polling] Failed to cancel draft timer for %d: %v", draftID, err)
	}
	p.armPollTimer(poll.ID, poll.ExpiresAt)
	return poll, nil
}

func (p *Pipeline) armPollTimer(pollID int64, fireAt time.Time) {
	if _, err := p.timers.Create(fireAt, timer.EventPoll, encodeIDPayload(pollID)); err != nil {
		log.Printf("[Polling] Failed to arm poll timer for %d: %v", pollID, err)
	}
}

func (p *Pipeline) getPoll(pollID int64) (*model.Polling, error) {
	record, err := database.GetPolling(p.db, pollID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrPollNotFound
	}
	return record.Decode()
}

func (p *Pipeline) savePoll(poll *model.Polling) error {
	record, err := poll.Encode()
	if err != nil {
		return err
	}
	return database.UpdatePolling(p.db, record)
}

// Requeue parks a poll for manual restart, keeping its votes.
func (p *Pipeline) Requeue(pollID int64) error {
	poll, err := p.getPoll(pollID)
	if err != nil {
		return err
	}
	if poll.Type == model.PollTypeEnded {
		return ErrPollExpired
	}
	poll.Type = model.PollTypeQueued
	if err := p.savePoll(poll); err != nil {
		return err
	}
	return p.timers.Cancel(timer.EventPoll, encodeIDPayload(pollID))
}

// Start moves a queued poll back to polled and re-arms the 1-day
// timer. Accumulated votes are untouched; restarting is always legal.
func (p *Pipeline) Start(pollID int64) error {
	poll, err := p.getPoll(pollID)
	if err != nil {
		return err
	}
	if poll.Type != model.PollTypeQueued {
		return ErrNotQueued
	}
	poll.Type = model.PollTypePolled
	poll.ExpiresAt = time.Now().Add(pollLifetime)
	if err := p.savePoll(poll); err != nil {
		return err
	}
	p.armPollTimer(pollID, poll.ExpiresAt)
	return nil
}

// ListQueued returns the parked polls oldest first.
func (p *Pipeline) ListQueued() ([]*model.Polling, error) {
	records, err := database.ListQueuedPollings(p.db)
	if err != nil {
		return nil, err
	}
	out := make([]*model.Polling, 0, len(records))
	for i := range records {
		poll, err := records[i].Decode()
		if err != nil {
			return nil, err
		}
		out = append(out, poll)
	}
	return out, nil
}

// HandlePollTimer is the timer handler for the poll event. A poll
// already resolved or deleted is a no-op.
func (p *Pipeline) HandlePollTimer(raw string) {
	var payload idPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		log.Printf("[Polling] Bad poll timer payload: %v", err)
		return
	}
	if err := p.Resolve(payload.ID); err != nil && !errors.Is(err, ErrPollNotFound) {
		log.Printf("[Polling] Failed to resolve poll %d: %v", payload.ID, err)
	}
}

// Resolve picks the winning option and dispatches it, or requeues the
// poll when engagement or points fall short. Unresolved polls are
// never discarded.
func (p *Pipeline) Resolve(pollID int64) error {
	poll, err := p.getPoll(pollID)
	if err != nil {
		return err
	}
	if poll.Type == model.PollTypeEnded || poll.Type == model.PollTypeQueued {
		return nil
	}

	winner := -1
	for i := range poll.Options {
		if winner < 0 || poll.Options[i].Polling.PointsFor > poll.Options[winner].Polling.PointsFor {
			winner = i
		}
	}
	if winner < 0 ||
		poll.DistinctOptionVoters() < minDistinctVoters ||
		poll.Options[winner].Polling.PointsFor < p.cfg.Polling.OptionThreshold {
		log.Printf("[Polling] Poll %d unresolved, requeueing", pollID)
		poll.Type = model.PollTypeQueued
		return p.savePoll(poll)
	}
	return p.resolveWith(poll, winner)
}

// resolveWith ends the poll with the given winning option, fans its
// sanctions out and archives the immutable report. The poll is marked
// ended and persisted before any dispatch so a crash mid-fan-out
// cannot re-open voting.
func (p *Pipeline) resolveWith(poll *model.Polling, winner int) error {
	poll.Type = model.PollTypeEnded
	if err := p.savePoll(poll); err != nil {
		return err
	}
	if err := p.timers.Cancel(timer.EventPoll, encodeIDPayload(poll.ID)); err != nil {
		log.Printf("[Polling] Failed to cancel poll timer for %d: %v", poll.ID, err)
	}

	option := &poll.Options[winner]
	now := time.Now()
	stats := make(map[string]model.SanctionStats)
	for _, spec := range option.Sanctions {
		var expires *time.Time
		if spec.Duration != nil {
			t := now.Add(time.Duration(*spec.Duration) * time.Second)
			expires = &t
		}
		for _, userID := range spec.Users {
			outcome := p.coord.Sanction(globalactions.SanctionRequest{
				Scope:       spec.Scope,
				Category:    option.Category,
				Subcategory: option.Subcategory,
				Action:      spec.Action,
				TargetID:    userID,
				CaseID:      poll.ID,
				Reason:      spec.Reason,
				GuildIDs:    spec.GuildIDs,
				Expires:     expires,
			})
			merged := stats[userID]
			merged.Success += outcome.Success
			merged.Failure += outcome.Failure
			merged.Total += outcome.Total
			merged.GuildIDs = append(merged.GuildIDs, outcome.GuildIDs...)
			stats[userID] = merged
		}
	}

	report := &model.Report{
		ID:                poll.ID,
		ReportedUsers:     poll.ReportedUsers,
		AssociatedServers: poll.AssociatedServers,
		Category:          option.Category,
		Subcategory:       option.Subcategory,
		Attachments:       append(append([]model.Attachment{}, poll.Attachments...), option.Attachments...),
		AddressingType:    option.AddressingType,
		ReportedBy:        poll.Owner,
		IsAnonymous:       poll.IsAnonymous,
		Sanctions:         option.Sanctions,
		Polling:           option.Polling,
		CreatedAt:         poll.CreatedAt,
		PushedAt:          now,
		Stats:             stats,
	}
	record, err := report.Encode()
	if err != nil {
		return err
	}
	if err := database.InsertReport(p.db, record); err != nil {
		return err
	}
	log.Printf("[Polling] Poll %d resolved, report archived", poll.ID)
	return nil
}
