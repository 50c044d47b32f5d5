package reports

import (
	"testing"
	"time"

	"guardnet/model"
	"guardnet/timer"
	"guardnet/utils/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func warnOption(owner string, addressing string) model.Option {
	return model.Option{
		Owner:          owner,
		AddressingType: addressing,
		Category:       "spam",
		Subcategory:    "phishing",
		Sanctions: []model.SanctionSpec{{
			Users:  []string{"u1"},
			Action: model.ActionWarn,
			Reason: "first offense",
			Scope:  model.ScopeGlobal,
		}},
	}
}

func TestStage1AdvancesExactlyAtThreshold(t *testing.T) {
	e := newEnv(t)
	poll := e.submitReport(t, "owner", "u1")

	// Three moderator votes at weight 1.0 land exactly on the
	// threshold of 3.
	e.advanceToStage2(t, poll.ID)

	record, err := database.GetPolling(e.db, poll.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, record.Stage)
}

func TestStage1RejectionDeletesReport(t *testing.T) {
	e := newEnv(t)
	poll := e.submitReport(t, "owner", "u1")

	outcome, err := e.pipeline.VoteVerify(poll.ID, "admin1", false)
	require.NoError(t, err)
	assert.Equal(t, VerifyPending, outcome)
	outcome, err = e.pipeline.VoteVerify(poll.ID, "admin2", false)
	require.NoError(t, err)
	assert.Equal(t, VerifyRejected, outcome)

	record, err := database.GetPolling(e.db, poll.ID)
	require.NoError(t, err)
	assert.Nil(t, record, "rejected reports are deleted outright")
}

func TestStage1SwitchingSidesRetracts(t *testing.T) {
	e := newEnv(t)
	poll := e.submitReport(t, "owner", "u1")

	_, err := e.pipeline.VoteVerify(poll.ID, "admin1", true)
	require.NoError(t, err)
	_, err = e.pipeline.VoteVerify(poll.ID, "admin1", false)
	require.NoError(t, err)

	record, err := database.GetPolling(e.db, poll.ID)
	require.NoError(t, err)
	decoded, err := record.Decode()
	require.NoError(t, err)
	assert.Zero(t, decoded.Stage1Vote.PointsFor)
	assert.Equal(t, 1.5, decoded.Stage1Vote.PointsAgainst)
	assert.Empty(t, decoded.Stage1Vote.VotersFor)
}

func TestNonStaffCannotVote(t *testing.T) {
	e := newEnv(t)
	poll := e.submitReport(t, "owner", "u1")

	_, err := e.pipeline.VoteVerify(poll.ID, "bystander", true)
	assert.ErrorIs(t, err, ErrNotStaff)
}

func TestVoteOnExpiredPollRejected(t *testing.T) {
	e := newEnv(t)
	poll := e.submitReport(t, "owner", "u1")

	poll.ExpiresAt = time.Now().Add(-time.Minute)
	record, err := poll.Encode()
	require.NoError(t, err)
	require.NoError(t, database.UpdatePolling(e.db, record))

	_, err = e.pipeline.VoteVerify(poll.ID, "mod1", true)
	assert.ErrorIs(t, err, ErrPollExpired)
}

func TestOptionValidation(t *testing.T) {
	e := newEnv(t)
	poll := e.submitReport(t, "owner", "u1")
	e.advanceToStage2(t, poll.ID)

	option := warnOption("mod1", model.AddressingNonImmediate)
	option.Sanctions[0].Action = model.ActionMute
	err := e.pipeline.AddOption(poll.ID, option)
	assert.ErrorIs(t, err, ErrDurationRequired)

	tooLong := int64(400 * 24 * 60 * 60)
	option.Sanctions[0].Duration = &tooLong
	assert.Error(t, e.pipeline.AddOption(poll.ID, option))

	option = warnOption("mod1", model.AddressingNonImmediate)
	option.Sanctions[0].Scope = model.ScopeTargeted
	assert.ErrorIs(t, e.pipeline.AddOption(poll.ID, option), ErrGuildsRequired)

	option = warnOption("bystander", model.AddressingNonImmediate)
	assert.ErrorIs(t, e.pipeline.AddOption(poll.ID, option), ErrNotStaff)
}

func TestImmediateOptionShortCircuits(t *testing.T) {
	e := newEnv(t)
	e.fake.AddUser("u1")
	poll := e.submitReport(t, "owner", "u1")
	e.advanceToStage2(t, poll.ID)
	require.NoError(t, e.pipeline.AddOption(poll.ID, warnOption("mod1", model.AddressingImmediate)))

	resolved, err := e.pipeline.VoteOption(poll.ID, 0, "admin1", true)
	require.NoError(t, err)
	assert.False(t, resolved)
	resolved, err = e.pipeline.VoteOption(poll.ID, 0, "admin2", true)
	require.NoError(t, err)
	assert.False(t, resolved)

	// 2.0 + 2.0 + 1.0 hits the threshold of 5; resolution fires
	// without waiting for the poll timer.
	resolved, err = e.pipeline.VoteOption(poll.ID, 0, "mod1", true)
	require.NoError(t, err)
	assert.True(t, resolved)

	record, err := database.GetPolling(e.db, poll.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PollTypeEnded, record.Type)

	report, err := database.GetReport(e.db, poll.ID)
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Equal(t, "owner", report.ReportedBy)

	// Votes after resolution must be rejected, not silently applied.
	_, err = e.pipeline.VoteOption(poll.ID, 0, "mod2", true)
	assert.ErrorIs(t, err, ErrPollExpired)
}

func TestLowEngagementRequeues(t *testing.T) {
	e := newEnv(t)
	e.fake.AddUser("u1")
	poll := e.submitReport(t, "owner", "u1")
	e.advanceToStage2(t, poll.ID)
	require.NoError(t, e.pipeline.AddOption(poll.ID, warnOption("mod1", model.AddressingNonImmediate)))

	// Four distinct voters reach 6 points, above the option threshold
	// but under the engagement floor of 5 voters.
	for _, voter := range []string{"admin1", "admin2", "mod1", "mod2"} {
		resolved, err := e.pipeline.VoteOption(poll.ID, 0, voter, true)
		require.NoError(t, err)
		require.False(t, resolved)
	}

	require.NoError(t, e.pipeline.Resolve(poll.ID))

	record, err := database.GetPolling(e.db, poll.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PollTypeQueued, record.Type)

	report, err := database.GetReport(e.db, poll.ID)
	require.NoError(t, err)
	assert.Nil(t, report, "no report is archived for a requeued poll")
}

func TestNoWinnerRequeuesInsteadOfDeleting(t *testing.T) {
	e := newEnv(t)
	poll := e.submitReport(t, "owner", "u1")
	e.advanceToStage2(t, poll.ID)

	// Timer fires with no options at all.
	e.pipeline.HandlePollTimer(encodeIDPayload(poll.ID))

	record, err := database.GetPolling(e.db, poll.ID)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, model.PollTypeQueued, record.Type)
}

func TestStartReArmsQueuedPoll(t *testing.T) {
	e := newEnv(t)
	poll := e.submitReport(t, "owner", "u1")
	_, err := e.pipeline.VoteVerify(poll.ID, "mod1", true)
	require.NoError(t, err)

	require.NoError(t, e.pipeline.Requeue(poll.ID))
	assert.Zero(t, e.timerCount(t, timer.EventPoll))

	require.NoError(t, e.pipeline.Start(poll.ID))
	record, err := database.GetPolling(e.db, poll.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PollTypePolled, record.Type)
	assert.Equal(t, 1, e.timerCount(t, timer.EventPoll))

	// Accumulated votes survive the round trip.
	decoded, err := record.Decode()
	require.NoError(t, err)
	assert.Equal(t, 1.0, decoded.Stage1Vote.PointsFor)
}
