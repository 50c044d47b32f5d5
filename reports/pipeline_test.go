package reports

import (
	"fmt"
	"strings"
	"testing"

	"guardnet/model"
	"guardnet/timer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateDraftValidation(t *testing.T) {
	e := newEnv(t)

	_, err := e.pipeline.CreateDraft("owner", "spam", "phishing", []string{"u1"}, nil, "too short", "", false)
	assert.ErrorIs(t, err, ErrBriefLength)

	_, err = e.pipeline.CreateDraft("owner", "spam", "phishing", []string{"u1"}, nil, strings.Repeat("x", 300), "", false)
	assert.ErrorIs(t, err, ErrBriefLength)

	_, err = e.pipeline.CreateDraft("owner", "gossip", "phishing", []string{"u1"}, nil, validBrief, "", false)
	assert.ErrorIs(t, err, ErrUnknownCategory)

	_, err = e.pipeline.CreateDraft("owner", "spam", "quarreling", []string{"u1"}, nil, validBrief, "", false)
	assert.ErrorIs(t, err, ErrUnknownCategory)

	_, err = e.pipeline.CreateDraft("owner", "spam", "phishing", nil, nil, validBrief, "", false)
	assert.ErrorIs(t, err, ErrNoReportedUsers)
}

func TestDraftLimitPerOwner(t *testing.T) {
	e := newEnv(t)
	for i := 0; i < 5; i++ {
		_, err := e.pipeline.CreateDraft("owner", "spam", "phishing", []string{fmt.Sprintf("u%d", i)}, nil, validBrief, "", false)
		require.NoError(t, err)
	}
	_, err := e.pipeline.CreateDraft("owner", "spam", "phishing", []string{"u9"}, nil, validBrief, "", false)
	assert.ErrorIs(t, err, ErrTooManyDrafts)

	// Another owner is unaffected.
	_, err = e.pipeline.CreateDraft("other", "spam", "phishing", []string{"u9"}, nil, validBrief, "", false)
	assert.NoError(t, err)
}

func TestAttachmentLimit(t *testing.T) {
	e := newEnv(t)
	draft, err := e.pipeline.CreateDraft("owner", "spam", "phishing", []string{"u1"}, nil, validBrief, "", false)
	require.NoError(t, err)

	batch := make([]model.Attachment, maxDraftAttachments)
	for i := range batch {
		batch[i] = model.Attachment{Name: fmt.Sprintf("proof%d", i), Type: "png"}
	}
	require.NoError(t, e.pipeline.AttachProof("owner", draft.ID, batch))

	err = e.pipeline.AttachProof("owner", draft.ID, []model.Attachment{{Name: "one too many", Type: "png"}})
	assert.ErrorIs(t, err, ErrTooManyAttachments)
}

func TestEditDraftRevalidates(t *testing.T) {
	e := newEnv(t)
	draft, err := e.pipeline.CreateDraft("owner", "spam", "phishing", []string{"u1"}, nil, validBrief, "", false)
	require.NoError(t, err)

	short := "nope"
	_, err = e.pipeline.EditDraft("owner", draft.ID, DraftUpdate{BriefDescription: &short})
	assert.ErrorIs(t, err, ErrBriefLength)

	long := "the long description can say anything"
	edited, err := e.pipeline.EditDraft("owner", draft.ID, DraftUpdate{LongDescription: &long})
	require.NoError(t, err)
	assert.Equal(t, long, edited.LongDescription)
	assert.Equal(t, validBrief, edited.BriefDescription)

	// Only the owner can touch it.
	_, err = e.pipeline.EditDraft("intruder", draft.ID, DraftUpdate{LongDescription: &long})
	assert.ErrorIs(t, err, ErrDraftNotFound)
}

func TestSubmitPromotesDraft(t *testing.T) {
	e := newEnv(t)
	draft, err := e.pipeline.CreateDraft("owner", "spam", "phishing", []string{"u1"}, nil, validBrief, "", false)
	require.NoError(t, err)
	assert.Equal(t, 1, e.timerCount(t, timer.EventDraftExpire))

	poll, err := e.pipeline.Submit("owner", draft.ID)
	require.NoError(t, err)
	assert.Equal(t, draft.ID, poll.ID, "the draft id follows the report")
	assert.Equal(t, model.PollTypePolled, poll.Type)
	assert.Equal(t, 1, poll.Stage)

	drafts, err := e.pipeline.ListDrafts("owner")
	require.NoError(t, err)
	assert.Empty(t, drafts)

	// The draft timer is swapped for the poll timer.
	assert.Zero(t, e.timerCount(t, timer.EventDraftExpire))
	assert.Equal(t, 1, e.timerCount(t, timer.EventPoll))
}

func TestDuplicateTargetRejected(t *testing.T) {
	e := newEnv(t)
	e.submitReport(t, "owner", "u1")

	_, err := e.pipeline.CreateDraft("other", "spam", "phishing", []string{"u1"}, nil, validBrief, "", false)
	assert.ErrorIs(t, err, ErrDuplicateTarget)
}

func TestOneOpenStage1PerOwner(t *testing.T) {
	e := newEnv(t)
	e.submitReport(t, "owner", "u1")

	draft, err := e.pipeline.CreateDraft("owner", "spam", "phishing", []string{"u2"}, nil, validBrief, "", false)
	require.NoError(t, err)
	_, err = e.pipeline.Submit("owner", draft.ID)
	assert.ErrorIs(t, err, ErrOpenReport)
}

func TestDraftExpiryIsIdempotent(t *testing.T) {
	e := newEnv(t)
	draft, err := e.pipeline.CreateDraft("owner", "spam", "phishing", []string{"u1"}, nil, validBrief, "", false)
	require.NoError(t, err)

	payload := encodeIDPayload(draft.ID)
	e.pipeline.HandleDraftExpiry(payload)
	drafts, err := e.pipeline.ListDrafts("owner")
	require.NoError(t, err)
	assert.Empty(t, drafts)

	// Duplicate delivery finds nothing and stays quiet.
	e.pipeline.HandleDraftExpiry(payload)
}

func TestDeleteDraftKeepsPrefixIdTimers(t *testing.T) {
	e := newEnv(t)
	// Counter ids run 1..10 across the two owners, so draft 1 shares a
	// decimal prefix with draft 10.
	var first *model.Draft
	for i := 0; i < 10; i++ {
		owner := "alice"
		if i >= 5 {
			owner = "bob"
		}
		draft, err := e.pipeline.CreateDraft(owner, "spam", "phishing", []string{fmt.Sprintf("u%d", i)}, nil, validBrief, "", false)
		require.NoError(t, err)
		if first == nil {
			first = draft
		}
	}
	require.EqualValues(t, 1, first.ID)
	require.Equal(t, 10, e.timerCount(t, timer.EventDraftExpire))

	require.NoError(t, e.pipeline.DeleteDraft("alice", first.ID))
	assert.Equal(t, 9, e.timerCount(t, timer.EventDraftExpire))

	var orphaned int
	require.NoError(t, e.db.Get(&orphaned,
		"SELECT COUNT(*) FROM timers WHERE event = ? AND payload = ?",
		timer.EventDraftExpire, encodeIDPayload(10)))
	assert.Equal(t, 1, orphaned, "draft 10's timer must survive deleting draft 1")
}

func TestCreateDraftCountsRunesNotBytes(t *testing.T) {
	e := newEnv(t)
	// 100 runes, 300 bytes.
	brief := strings.Repeat("多", 100)
	draft, err := e.pipeline.CreateDraft("owner", "spam", "phishing", []string{"u1"}, nil, brief, "", false)
	require.NoError(t, err)
	assert.Equal(t, brief, draft.BriefDescription)

	// 40 runes is still too short even at 120 bytes.
	short := strings.Repeat("多", 40)
	_, err = e.pipeline.EditDraft("owner", draft.ID, DraftUpdate{BriefDescription: &short})
	assert.ErrorIs(t, err, ErrBriefLength)
}

func TestDeleteDraftCancelsTimer(t *testing.T) {
	e := newEnv(t)
	draft, err := e.pipeline.CreateDraft("owner", "spam", "phishing", []string{"u1"}, nil, validBrief, "", false)
	require.NoError(t, err)

	require.NoError(t, e.pipeline.DeleteDraft("owner", draft.ID))
	assert.Zero(t, e.timerCount(t, timer.EventDraftExpire))
	assert.ErrorIs(t, e.pipeline.DeleteDraft("owner", draft.ID), ErrDraftNotFound)
}
